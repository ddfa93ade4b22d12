package wire

import "fmt"

// HeaderSize is the fixed size of a DoIP generic header in bytes.
const HeaderSize = 8

// Header represents a decoded DoIP generic header (spec.md §3).
type Header struct {
	ProtocolVersion PayloadVersion
	PayloadType     PayloadType
	PayloadLength   uint32
}

// PayloadVersion is the protocol_version byte. Its inverse is not stored:
// Marshal derives it and ProcessHeader checks it against the wire byte.
type PayloadVersion byte

// Marshal serializes the header to wire format: [version, ~version,
// type_hi, type_lo, len_b3..len_b0].
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	b[0] = byte(h.ProtocolVersion)
	b[1] = ^byte(h.ProtocolVersion)
	putUint16(b[2:4], uint16(h.PayloadType))
	putUint32(b[4:8], h.PayloadLength)
	return b
}

// Compose builds a complete outbound DoIP message: header plus payload.
// version defaults to Version2012 when zero.
func Compose(version byte, t PayloadType, payload []byte) []byte {
	if version == 0 {
		version = Version2012
	}
	h := Header{ProtocolVersion: PayloadVersion(version), PayloadType: t, PayloadLength: uint32(len(payload))}
	out := make([]byte, HeaderSize+len(payload))
	copy(out, h.Marshal())
	copy(out[HeaderSize:], payload)
	return out
}

// ErrShortHeader is returned by ParseHeaderBytes when fewer than HeaderSize
// bytes are available; callers must retry the read, this is not a NACK.
var ErrShortHeader = fmt.Errorf("wire: short header read")

// ParseHeaderBytes decodes the 8-byte generic header without performing
// any of the NACK classification in §4.1 — use ProcessHeader for that.
func ParseHeaderBytes(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	return Header{
		ProtocolVersion: PayloadVersion(b[0]),
		PayloadType:     PayloadType(getUint16(b[2:4])),
		PayloadLength:   getUint32(b[4:8]),
	}, nil
}

// inverseOf returns the inverse byte stored alongside ProtocolVersion.
func inverseOf(b []byte) byte {
	if len(b) < 2 {
		return 0
	}
	return b[1]
}
