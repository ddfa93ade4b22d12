// Package wire implements the DoIP generic header codec (ISO 13400): the
// 8-byte header, payload type registry, and per-type length validation.
//
// Standards Compliance:
//
// This package implements the wire format from ISO 13400-2 ("Road
// vehicles — Diagnostic communication over Internet Protocol"):
//
//   - the generic header (protocol version, inverse version, payload type,
//     payload length)
//   - the payload types used by a diagnostic tester: vehicle identification/
//     announcement, routing activation, alive check, and diagnostic message
//     (with positive/negative acknowledgement)
//
// Error Handling:
//
// ProcessHeader never returns a Go error for a malformed message; a
// malformed message classifies to a NackCode (see doiperr.NackCode), per
// ISO 13400's NACK semantics. A Go error is returned only for short reads
// that the caller must retry.
package wire

import "encoding/binary"

// PayloadType identifies the DoIP payload carried after the generic header.
type PayloadType uint16

const (
	PayloadVehicleIdentificationRequest    PayloadType = 0x0001
	PayloadVehicleIdentificationRequestEID PayloadType = 0x0002
	PayloadVehicleIdentificationRequestVIN PayloadType = 0x0003
	PayloadVehicleAnnouncement             PayloadType = 0x0004
	PayloadRoutingActivationRequest        PayloadType = 0x0005
	PayloadRoutingActivationResponse       PayloadType = 0x0006
	PayloadAliveCheckRequest               PayloadType = 0x0007
	PayloadAliveCheckResponse              PayloadType = 0x0008
	PayloadDiagnosticMessage               PayloadType = 0x8001
	PayloadDiagnosticMessagePosAck         PayloadType = 0x8002
	PayloadDiagnosticMessageNegAck         PayloadType = 0x8003
)

func (t PayloadType) String() string {
	switch t {
	case PayloadVehicleIdentificationRequest:
		return "VehicleIdentificationRequest"
	case PayloadVehicleIdentificationRequestEID:
		return "VehicleIdentificationRequestEID"
	case PayloadVehicleIdentificationRequestVIN:
		return "VehicleIdentificationRequestVIN"
	case PayloadVehicleAnnouncement:
		return "VehicleAnnouncement"
	case PayloadRoutingActivationRequest:
		return "RoutingActivationRequest"
	case PayloadRoutingActivationResponse:
		return "RoutingActivationResponse"
	case PayloadAliveCheckRequest:
		return "AliveCheckRequest"
	case PayloadAliveCheckResponse:
		return "AliveCheckResponse"
	case PayloadDiagnosticMessage:
		return "DiagnosticMessage"
	case PayloadDiagnosticMessagePosAck:
		return "DiagnosticMessagePosAck"
	case PayloadDiagnosticMessageNegAck:
		return "DiagnosticMessageNegAck"
	default:
		return "Unknown"
	}
}

// Default protocol version constants (ISO 13400-2).
const (
	Version2012  byte = 0x02
	Version2019  byte = 0x03
	VersionDefault byte = 0xFF
)

// DefaultPort is the default DoIP TCP/UDP port.
const DefaultPort = 13400

// Channel payload-length ceilings (spec.md §3).
const (
	TCPChannelMaxPayload = 4096
	UDPChannelMaxPayload = 41
)

// ProtocolMaxPayload is the absolute protocol maximum (4 GiB), exclusive of
// the header, per the 4-byte length field.
const ProtocolMaxPayload = 0xFFFFFFFF

// tcpAcceptedSet and udpAcceptedSet are the per-channel accepted payload
// type sets (spec.md §4.2); anything else is NACK 0x01.
var tcpAcceptedSet = map[PayloadType]bool{
	PayloadRoutingActivationResponse: true,
	PayloadDiagnosticMessage:         true,
	PayloadDiagnosticMessagePosAck:   true,
	PayloadDiagnosticMessageNegAck:   true,
	PayloadAliveCheckRequest:         true,
}

var udpAcceptedSet = map[PayloadType]bool{
	PayloadVehicleAnnouncement: true,
}

// AcceptedByTCP reports whether the TCP channel accepts this payload type.
func AcceptedByTCP(t PayloadType) bool { return tcpAcceptedSet[t] }

// AcceptedByUDP reports whether the UDP channel accepts this payload type.
func AcceptedByUDP(t PayloadType) bool { return udpAcceptedSet[t] }

// validLengthRange returns the [min,max] payload_length byte range this
// payload type permits (spec.md §4.1 per-type length validity), and
// whether this type constrains length at all.
func validLengthRange(t PayloadType) (min, max int, constrained bool) {
	switch t {
	case PayloadRoutingActivationResponse:
		return 9, 13, true
	case PayloadDiagnosticMessage:
		return 5, 1 << 30, true
	case PayloadDiagnosticMessagePosAck, PayloadDiagnosticMessageNegAck:
		return 5, 1 << 30, true
	case PayloadAliveCheckRequest:
		return 0, 13, true
	case PayloadVehicleAnnouncement:
		return 0, 33, true
	default:
		return 0, 0, false
	}
}

// putUint16 and putUint32 are tiny wrappers kept local so callers never
// need to import encoding/binary just to build a header.
func putUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func putUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getUint16(b []byte) uint16    { return binary.BigEndian.Uint16(b) }
func getUint32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
