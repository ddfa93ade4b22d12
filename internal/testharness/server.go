// Package testharness implements a minimal in-module DoIP server used
// only by this engine's own integration tests: it plays the diagnostic
// server role against the client engine's TCP/UDP channels so the
// end-to-end scenarios of spec.md §8 can run over real loopback
// sockets instead of being reasoned about statically.
//
// Grounded on the teacher's internal/server/tcp_server.go acceptLoop
// and internal/server/udp_server.go recvLoop: one accept goroutine per
// listener, one handler goroutine per connection, adapted from
// "terminate a DNS query and respond" to "terminate a DoIP routing
// activation + diagnostic message exchange and respond per script".
package testharness

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/hagenberger/doip-client/internal/wire"
)

// ECUScript describes how the harness answers a single connection.
type ECUScript struct {
	// RoutingActivationCode is the code byte the harness replies with.
	// Defaults to wire.RACodeSuccessful.
	RoutingActivationCode wire.RoutingActivationResponseCode
	// ServerLogicalAddress is echoed back in the routing activation
	// response.
	ServerLogicalAddress uint16
	// OnDiagnosticMessage is called with the received UDS request; it
	// returns the ack code to send and zero or more follow-up UDS
	// payloads (e.g. a 0x78 pending response followed by a final
	// response) the harness sends as separate DiagnosticMessages.
	OnDiagnosticMessage func(uds []byte) (ack wire.DiagAckCode, responses [][]byte)
	// SkipRoutingActivationResponse suppresses the response entirely,
	// for exercising the ConnectTimeout scenario.
	SkipRoutingActivationResponse bool
}

// Server is a scripted DoIP TCP server.
type Server struct {
	log    *slog.Logger
	ln     net.Listener
	script ECUScript

	wg sync.WaitGroup
}

// NewServer starts listening on addr (use "127.0.0.1:0" for an
// ephemeral port) and returns the Server; call Serve to start
// accepting.
func NewServer(addr string, script ECUScript, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if script.RoutingActivationCode == 0 && !script.SkipRoutingActivationResponse {
		script.RoutingActivationCode = wire.RACodeSuccessful
	}
	return &Server{log: logger, ln: ln, script: script}, nil
}

// Addr returns the harness's listen address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve accepts connections until Close is called. ctx is handed to each
// connection handler; cancelling it does not stop the accept loop.
func (s *Server) Serve(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// Close stops accepting connections and waits for in-flight handlers.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.wg.Wait()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	frame, result, err := wire.ReadFrame(conn, wire.ChannelTCP)
	if err != nil || (result != nil && result.Nack != nil) {
		return
	}
	if frame.Header.PayloadType != wire.PayloadRoutingActivationRequest {
		return
	}
	req := frame.Payload
	clientSA := uint16(0)
	if len(req) >= 2 {
		clientSA = uint16(req[0])<<8 | uint16(req[1])
	}

	if s.script.SkipRoutingActivationResponse {
		<-ctx.Done()
		return
	}

	resp := make([]byte, 9)
	resp[0] = byte(clientSA >> 8)
	resp[1] = byte(clientSA)
	resp[2] = byte(s.script.ServerLogicalAddress >> 8)
	resp[3] = byte(s.script.ServerLogicalAddress)
	resp[4] = byte(s.script.RoutingActivationCode)
	if _, err := conn.Write(wire.Compose(wire.Version2012, wire.PayloadRoutingActivationResponse, resp)); err != nil {
		return
	}
	if s.script.RoutingActivationCode != wire.RACodeSuccessful && s.script.RoutingActivationCode != wire.RACodeConfirmationRequired {
		return
	}

	for {
		frame, result, err := wire.ReadFrame(conn, wire.ChannelTCP)
		if err != nil {
			return
		}
		if result != nil && result.Nack != nil {
			if result.Nack.CloseSocket() {
				return
			}
			continue
		}
		if frame.Header.PayloadType != wire.PayloadDiagnosticMessage {
			continue
		}

		msg := wire.ParseDiagnosticMessage(frame.Payload)
		if s.script.OnDiagnosticMessage == nil {
			continue
		}
		ackCode, responses := s.script.OnDiagnosticMessage(msg.UDS)

		ack := make([]byte, 5)
		ack[0] = byte(msg.TargetAddr >> 8)
		ack[1] = byte(msg.TargetAddr)
		ack[2] = byte(clientSA >> 8)
		ack[3] = byte(clientSA)
		ack[4] = byte(ackCode)
		payloadType := wire.PayloadDiagnosticMessagePosAck
		if ackCode != wire.DiagAckOK {
			payloadType = wire.PayloadDiagnosticMessageNegAck
		}
		if _, err := conn.Write(wire.Compose(wire.Version2012, payloadType, ack)); err != nil {
			return
		}
		if ackCode != wire.DiagAckOK {
			continue
		}

		for _, uds := range responses {
			out := wire.BuildDiagnosticMessage(msg.TargetAddr, clientSA, uds)
			if _, err := conn.Write(wire.Compose(wire.Version2012, wire.PayloadDiagnosticMessage, out)); err != nil {
				return
			}
		}
	}
}
