package wire

import "github.com/hagenberger/doip-client/doiperr"

// Channel distinguishes the two channel kinds for accepted-set and
// channel_max purposes (spec.md §4.1, §4.2).
type Channel int

const (
	ChannelTCP Channel = iota
	ChannelUDP
)

func (c Channel) maxPayload() int {
	if c == ChannelUDP {
		return UDPChannelMaxPayload
	}
	return TCPChannelMaxPayload
}

func (c Channel) accepts(t PayloadType) bool {
	if c == ChannelUDP {
		return AcceptedByUDP(t)
	}
	return AcceptedByTCP(t)
}

// ProcessResult is the outcome of ProcessHeader: either a clean Header, or
// a classified Nack with optional CloseSocket action (spec.md §4.1).
type ProcessResult struct {
	Header Header
	Nack   *doiperr.NackCode // nil when Header is valid
}

// ProcessHeader implements the five-step NACK classification of spec.md
// §4.1 against an already-read 8-byte header. It does not read the
// payload; callers reassemble the payload separately once the header is
// known good (see ReadFrame and DecodeDatagram).
func ProcessHeader(headerBytes []byte, ch Channel) ProcessResult {
	hdr, err := ParseHeaderBytes(headerBytes)
	if err != nil {
		// Caller's responsibility to have supplied exactly HeaderSize bytes;
		// treat as the strictest NACK since the frame cannot be trusted.
		nack := doiperr.NackIncorrectPattern
		return ProcessResult{Nack: &nack}
	}

	// Step 1: version/inverse mismatch.
	if inverseOf(headerBytes) != ^byte(hdr.ProtocolVersion) {
		nack := doiperr.NackIncorrectPattern
		return ProcessResult{Nack: &nack}
	}
	if byte(hdr.ProtocolVersion) != Version2012 && byte(hdr.ProtocolVersion) != VersionDefault {
		nack := doiperr.NackIncorrectPattern
		return ProcessResult{Nack: &nack}
	}

	// Step 2: payload type must belong to the channel's accepted set.
	if !ch.accepts(hdr.PayloadType) {
		nack := doiperr.NackUnknownPayload
		return ProcessResult{Nack: &nack}
	}

	// Step 3: protocol-maximum length.
	if uint64(hdr.PayloadLength) > ProtocolMaxPayload {
		nack := doiperr.NackMessageTooLarge
		return ProcessResult{Nack: &nack}
	}

	// Step 4: channel-maximum length.
	if hdr.PayloadLength > uint32(ch.maxPayload()) {
		nack := doiperr.NackOutOfMemory
		return ProcessResult{Nack: &nack}
	}

	// Step 5: per-type length validity.
	if min, max, constrained := validLengthRange(hdr.PayloadType); constrained {
		l := int(hdr.PayloadLength)
		if l < min || l > max {
			nack := doiperr.NackInvalidPayloadLen
			return ProcessResult{Nack: &nack}
		}
	}

	return ProcessResult{Header: hdr}
}
