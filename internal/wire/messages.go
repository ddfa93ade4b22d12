package wire

// This file builds and parses the typed payloads of spec.md §6 on top of
// the generic header codec in codec.go/header.go.

// RoutingActivationTypeDefault is the act_type byte of a routing activation
// request. This engine only ever requests the default diagnostic type.
const RoutingActivationTypeDefault byte = 0x00

// BuildRoutingActivationRequest composes [SA(2), act_type(1), reserved(4)],
// 7 bytes total (spec.md §4.3).
func BuildRoutingActivationRequest(sourceAddr uint16) []byte {
	p := make([]byte, 7)
	putUint16(p[0:2], sourceAddr)
	p[2] = RoutingActivationTypeDefault
	return p
}

// RoutingActivationResponseCode is the code byte of a routing activation
// response (spec.md §6).
type RoutingActivationResponseCode byte

const (
	RACodeUnknownSA                   RoutingActivationResponseCode = 0x00
	RACodeAllSocketsActive            RoutingActivationResponseCode = 0x01
	RACodeDifferentSAOnSameSocket     RoutingActivationResponseCode = 0x02
	RACodeSAActiveOnDifferentSocket   RoutingActivationResponseCode = 0x03
	RACodeMissingAuthentication       RoutingActivationResponseCode = 0x04
	RACodeRejectedConfirmation        RoutingActivationResponseCode = 0x05
	RACodeUnsupportedActivationType   RoutingActivationResponseCode = 0x06
	RACodeTLSRequired                 RoutingActivationResponseCode = 0x07
	RACodeSuccessful                  RoutingActivationResponseCode = 0x10
	RACodeConfirmationRequired        RoutingActivationResponseCode = 0x11
)

// RoutingActivationResponse is the decoded payload of a
// RoutingActivationResponse message (9..13 bytes).
type RoutingActivationResponse struct {
	ClientLogicalAddress uint16
	ServerLogicalAddress uint16
	Code                 RoutingActivationResponseCode
}

// ParseRoutingActivationResponse decodes [client_LA(2), server_LA(2),
// code(1), reserved(4), vm_specific(4)?].
func ParseRoutingActivationResponse(payload []byte) RoutingActivationResponse {
	r := RoutingActivationResponse{}
	if len(payload) < 5 {
		return r
	}
	r.ClientLogicalAddress = getUint16(payload[0:2])
	r.ServerLogicalAddress = getUint16(payload[2:4])
	r.Code = RoutingActivationResponseCode(payload[4])
	return r
}

// BuildDiagnosticMessage composes [SA(2), TA(2), UDS...].
func BuildDiagnosticMessage(sourceAddr, targetAddr uint16, uds []byte) []byte {
	p := make([]byte, 4+len(uds))
	putUint16(p[0:2], sourceAddr)
	putUint16(p[2:4], targetAddr)
	copy(p[4:], uds)
	return p
}

// DiagAckCode is the ack_code byte of a PosAck/NegAck message.
type DiagAckCode byte

const (
	DiagAckOK DiagAckCode = 0x00

	DiagNackInvalidSA        DiagAckCode = 0x02
	DiagNackUnknownTA        DiagAckCode = 0x03
	DiagNackMessageTooLarge  DiagAckCode = 0x04
	DiagNackOutOfMemory      DiagAckCode = 0x05
	DiagNackTargetUnreachable DiagAckCode = 0x06
	DiagNackUnknownNetwork   DiagAckCode = 0x07
	DiagNackTPError          DiagAckCode = 0x08
)

// DiagnosticMessageAck is the decoded payload of a PosAck/NegAck message:
// [SA(2), TA(2), ack_code(1), previous_message?(N)].
type DiagnosticMessageAck struct {
	SourceAddr uint16
	TargetAddr uint16
	Code       DiagAckCode
	PrevMsg    []byte
}

func ParseDiagnosticMessageAck(payload []byte) DiagnosticMessageAck {
	a := DiagnosticMessageAck{}
	if len(payload) < 5 {
		return a
	}
	a.SourceAddr = getUint16(payload[0:2])
	a.TargetAddr = getUint16(payload[2:4])
	a.Code = DiagAckCode(payload[4])
	if len(payload) > 5 {
		a.PrevMsg = payload[5:]
	}
	return a
}

// DiagnosticMessage is the decoded payload of a DiagnosticMessage:
// [SA(2), TA(2), UDS(>=1)].
type DiagnosticMessage struct {
	SourceAddr uint16
	TargetAddr uint16
	UDS        []byte
}

func ParseDiagnosticMessage(payload []byte) DiagnosticMessage {
	m := DiagnosticMessage{}
	if len(payload) < 4 {
		return m
	}
	m.SourceAddr = getUint16(payload[0:2])
	m.TargetAddr = getUint16(payload[2:4])
	m.UDS = payload[4:]
	return m
}

// IsResponsePending reports whether a UDS payload is the NRC 0x78
// "response pending" pattern [0x7F, SID, 0x78] (spec.md §4.3).
func IsResponsePending(uds []byte) bool {
	return len(uds) >= 3 && uds[0] == 0x7F && uds[2] == 0x78
}

// VehicleIdentificationMode selects which VehicleIdentificationRequest
// variant SendVehicleIdentificationRequest builds (spec.md §4.4).
type VehicleIdentificationMode int

const (
	VIModeBroadcast VehicleIdentificationMode = iota
	VIModeByVIN
	VIModeByEID
)

// BuildVehicleIdentificationRequest builds the payload type and bytes for
// the requested mode. selector is the 17-byte VIN (VIModeByVIN) or the
// 6-byte EID (VIModeByEID); ignored for VIModeBroadcast.
func BuildVehicleIdentificationRequest(mode VehicleIdentificationMode, selector []byte) (PayloadType, []byte) {
	switch mode {
	case VIModeByVIN:
		vin := make([]byte, 17)
		copy(vin, selector)
		return PayloadVehicleIdentificationRequestVIN, vin
	case VIModeByEID:
		eid := make([]byte, 6)
		copy(eid, selector)
		return PayloadVehicleIdentificationRequestEID, eid
	default:
		return PayloadVehicleIdentificationRequest, nil
	}
}

// VehicleAnnouncement is a decoded VehicleAnnouncement/IdentificationResponse
// payload (0x0004). The engine is opaque to its internal layout beyond
// treating it as an aggregated byte blob plus the peer it arrived from;
// UDS/VIN-level interpretation is a caller concern.
type VehicleAnnouncement struct {
	Payload []byte
	FromIP  string
}
