package wire

import (
	"errors"
	"io"

	"github.com/hagenberger/doip-client/doiperr"
)

// ErrRemoteDisconnected is returned by ReadFrame when the peer closed the
// connection before a complete 8-byte header arrived — spec.md §4.1: "EOF
// below 8 bytes is remote disconnected, not a protocol error."
var ErrRemoteDisconnected = errors.New("wire: remote disconnected")

// Frame is a fully reassembled DoIP message: a valid header plus its
// complete payload.
type Frame struct {
	Header  Header
	Payload []byte
}

// ReadFrame performs the TCP reassembly rule of spec.md §4.1: read exactly
// HeaderSize bytes, process the header, then read exactly payload_length
// more bytes before returning a complete frame. Short reads are retried by
// io.ReadFull; EOF before the full header has been read is mapped to
// ErrRemoteDisconnected so callers can distinguish "connection closed
// cleanly" from "protocol violation".
//
// If the header classifies to a NACK, ReadFrame still consumes the
// payload bytes on the wire when the NACK does not close the socket, so
// the stream stays framed for discard. The error is then nil: the
// returned ProcessResult carries the Nack classification and the caller
// decides whether to close the socket per NackCode.CloseSocket.
func ReadFrame(r io.Reader, ch Channel) (Frame, *ProcessResult, error) {
	headerBuf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, headerBuf)
	if err != nil {
		if n < HeaderSize && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			return Frame{}, nil, ErrRemoteDisconnected
		}
		return Frame{}, nil, err
	}

	result := ProcessHeader(headerBuf, ch)
	if result.Nack != nil {
		// Length is untrustworthy for IncorrectPattern (step 1); for the
		// other NACKs payload_length decoded fine, so drain it to keep
		// framing synchronized unless the socket is about to be closed
		// anyway.
		if !result.Nack.CloseSocket() {
			hdr, parseErr := ParseHeaderBytes(headerBuf)
			if parseErr == nil && hdr.PayloadLength > 0 && hdr.PayloadLength <= ProtocolMaxPayload {
				discard := make([]byte, hdr.PayloadLength)
				_, _ = io.ReadFull(r, discard)
			}
		}
		return Frame{}, &result, nil
	}

	payload := make([]byte, result.Header.PayloadLength)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, nil, err
		}
	}
	return Frame{Header: result.Header, Payload: payload}, &result, nil
}

// ErrShortDatagram is returned by DecodeDatagram when a UDP datagram
// arrived with fewer than HeaderSize bytes — too short to even carry a
// generic header. UDP has no byte-stream framing to resynchronize
// against, so this is simply dropped by the caller.
var ErrShortDatagram = errors.New("wire: short datagram")

// DecodeDatagram decodes one complete, already-received UDP datagram
// (header and payload are both present in buf, since UDP delivers
// whole datagrams or nothing — unlike TCP's byte stream, there is
// nothing to reassemble here). A payload_length claiming more bytes
// than buf actually contains classifies as NackInvalidPayloadLen,
// the UDP analogue of a TCP short read.
func DecodeDatagram(buf []byte, ch Channel) (Frame, *ProcessResult, error) {
	if len(buf) < HeaderSize {
		return Frame{}, nil, ErrShortDatagram
	}
	result := ProcessHeader(buf[:HeaderSize], ch)
	if result.Nack != nil {
		return Frame{}, &result, nil
	}
	end := HeaderSize + int(result.Header.PayloadLength)
	if end > len(buf) {
		nack := doiperr.NackInvalidPayloadLen
		return Frame{}, &ProcessResult{Nack: &nack}, nil
	}
	return Frame{Header: result.Header, Payload: buf[HeaderSize:end]}, &result, nil
}
