// Package tcpchannel implements the TCP channel of spec.md §4.3: the
// per-connection routing-activation state machine, the diagnostic-message
// state machine (with P2/P2* timing), and the connection lifecycle that
// owns them both.
//
// Grounded on the teacher's internal/server/tcp_server.go connection
// handling: one reader goroutine per connection (handleConnection),
// length-driven framing (readMessage), and a timeout-bounded shutdown —
// adapted from a length-prefixed DNS-over-TCP server accepting
// connections to a DoIP client dialing out and running two interleaved
// state machines instead of one request/response loop per message.
package tcpchannel

// RAState is the Routing Activation state (spec.md §4.3).
type RAState int

const (
	RAIdle RAState = iota
	RAWaitForResponse
	RASuccessful
	RAFailed
)

func (s RAState) String() string {
	switch s {
	case RAIdle:
		return "Idle"
	case RAWaitForResponse:
		return "WaitForResponse"
	case RASuccessful:
		return "Successful"
	case RAFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// DMState is the Diagnostic Message state (spec.md §4.3).
type DMState int

const (
	DMIdle DMState = iota // only reachable once RA is Successful
	DMWaitForAck
	DMWaitForResponse
	DMRecvdPendingRes
	DMRecvdFinalRes
	DMSuccess
)

func (s DMState) String() string {
	switch s {
	case DMIdle:
		return "DiagIdle"
	case DMWaitForAck:
		return "WaitForAck"
	case DMWaitForResponse:
		return "WaitForResponse"
	case DMRecvdPendingRes:
		return "RecvdPendingRes"
	case DMRecvdFinalRes:
		return "RecvdFinalRes"
	case DMSuccess:
		return "Success"
	default:
		return "Unknown"
	}
}

// Timer durations fixed by spec.md §4.3 (kDoIPCtrl-family constants).
const (
	RoutingActivationTimeoutMS = 1000
	DiagnosticAckTimeoutMS     = 2000 // kDoIPDiagnosticAckTimeout
)
