package tcpchannel

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hagenberger/doip-client/doiperr"
	"github.com/hagenberger/doip-client/internal/logging"
	"github.com/hagenberger/doip-client/internal/socket"
	"github.com/hagenberger/doip-client/internal/synctimer"
	"github.com/hagenberger/doip-client/internal/wire"
)

// IndicationParams describes an inbound DiagnosticMessage to a
// Handler, mirroring the parameter set spec.md §4.5 assigns to a
// conversation's message indication callback.
type IndicationParams struct {
	SourceAddr uint16
	TargetAddr uint16
	Size       int
}

// Handler is the callback contract a conversation registers with a
// Channel (spec.md §4.5). Indication is asked first whether the
// message should be accepted at all, sized against the conversation's
// configured rx buffer; HandleMessage delivers the payload once a
// final (non-pending) response to the in-flight request has fully
// arrived. Diagnostic messages arriving while no request awaits a
// response are dropped and reach neither callback.
type Handler interface {
	Indication(p IndicationParams) doiperr.IndicationResult
	HandleMessage(p IndicationParams, payload []byte)
}

// Options configures a Channel.
type Options struct {
	SourceAddr      uint16
	P2ClientMax     uint16 // milliseconds
	P2StarClientMax uint16 // milliseconds
	DialOpts        socket.TCPDialOptions
	Handler         Handler
	Logger          *slog.Logger
}

func (o Options) p2Millis() uint16 {
	if o.P2ClientMax == 0 {
		return 150
	}
	return o.P2ClientMax
}

func (o Options) p2StarMillis() uint16 {
	if o.P2StarClientMax == 0 {
		return 5000
	}
	return o.P2StarClientMax
}

// Channel is one TCP channel: a single connection to one diagnostic
// server running the routing-activation and diagnostic-message state
// machines of spec.md §4.3.
//
// Grounded on the teacher's internal/server/tcp_server.go
// handleConnection: one reader goroutine owns the socket, a mutex
// guards the state shared with request-issuing goroutines, and
// Disconnect waits for the reader to exit through the readDone channel.
type Channel struct {
	opts   Options
	log    *slog.Logger
	conn   net.Conn
	connMu sync.Mutex // guards conn and writes to it

	stateMu sync.Mutex
	ra      RAState
	dm      DMState

	raTimer *synctimer.Timer
	dmTimer *synctimer.Timer

	// fields set by the read loop under stateMu, consumed by the
	// blocked caller goroutine once its timer is cancelled.
	raResp    wire.RoutingActivationResponse
	raGotResp bool
	ackCode   wire.DiagAckCode
	gotAck    bool
	gotNack   bool
	pending   bool
	final     []byte

	txMu sync.Mutex // single-flight guard: only one Transmit in progress

	readDone chan struct{}
	closeErr error
}

// New builds an unconnected Channel.
func New(opts Options) *Channel {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Channel{
		opts:    opts,
		log:     logging.Component(l, "tcpchannel"),
		ra:      RAIdle,
		dm:      DMIdle,
		raTimer: synctimer.New(),
		dmTimer: synctimer.New(),
	}
}

// ConnectToHost dials addr, starts the reader goroutine, sends a
// RoutingActivationRequest, and blocks until routing activation
// settles or the 1000ms timer (RoutingActivationTimeoutMS) expires
// (spec.md §4.3).
func (c *Channel) ConnectToHost(ctx context.Context, addr string) (doiperr.ConnectResult, error) {
	conn, err := socket.DialTCP(ctx, addr, c.opts.DialOpts)
	if err != nil {
		return doiperr.ConnectFailed, doiperr.FromBoostSupportError(err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.readDone = make(chan struct{})
	go c.readLoop()

	return c.activateRouting()
}

func (c *Channel) activateRouting() (doiperr.ConnectResult, error) {
	c.stateMu.Lock()
	c.ra = RAWaitForResponse
	c.raGotResp = false
	c.stateMu.Unlock()

	req := wire.Compose(wire.Version2012, wire.PayloadRoutingActivationRequest,
		wire.BuildRoutingActivationRequest(c.opts.SourceAddr))
	if err := c.writeRaw(req); err != nil {
		c.setRA(RAFailed)
		return doiperr.ConnectFailed, doiperr.FromBoostSupportError(err)
	}

	var result doiperr.ConnectResult
	c.raTimer.WaitForTimeout(
		func() {
			c.log.Warn("routing activation timed out")
			c.setRA(RAFailed)
			result = doiperr.ConnectTimeout
		},
		func() {
			c.stateMu.Lock()
			resp := c.raResp
			c.stateMu.Unlock()
			result = c.evaluateRoutingActivation(resp)
		},
		RoutingActivationTimeoutMS*time.Millisecond,
	)
	return result, nil
}

// evaluateRoutingActivation applies spec.md §9's resolution of the
// open question on code 0x11: accepted as terminal success, logged at
// warn since no confirmation handshake is implemented.
func (c *Channel) evaluateRoutingActivation(resp wire.RoutingActivationResponse) doiperr.ConnectResult {
	switch resp.Code {
	case wire.RACodeSuccessful:
		c.setRA(RASuccessful)
		c.setDM(DMIdle)
		return doiperr.ConnectSuccess
	case wire.RACodeConfirmationRequired:
		c.log.Warn("routing activation confirmation required, treating as successful",
			"code", resp.Code)
		c.setRA(RASuccessful)
		c.setDM(DMIdle)
		return doiperr.ConnectSuccess
	default:
		c.log.Warn("routing activation rejected", "code", resp.Code)
		c.setRA(RAFailed)
		return doiperr.ConnectFailed
	}
}

// Disconnect closes the connection and resets channel state.
func (c *Channel) Disconnect() doiperr.DisconnectResult {
	c.stateMu.Lock()
	if c.ra == RAIdle || c.ra == RAFailed {
		c.stateMu.Unlock()
		return doiperr.AlreadyDisconnected
	}
	c.ra = RAIdle
	c.dm = DMIdle
	c.stateMu.Unlock()

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn == nil {
		return doiperr.AlreadyDisconnected
	}
	if err := conn.Close(); err != nil {
		return doiperr.DisconnectFailed
	}
	if c.readDone != nil {
		<-c.readDone
	}
	return doiperr.DisconnectSuccess
}

// Transmit sends uds as a DiagnosticMessage and runs it through the
// full ack -> (pending)* -> final state progression of spec.md §4.3,
// returning the final UDS response bytes on success.
func (c *Channel) Transmit(ctx context.Context, targetAddr uint16, uds []byte) ([]byte, doiperr.DiagResult) {
	c.stateMu.Lock()
	if c.ra != RASuccessful {
		c.stateMu.Unlock()
		return nil, doiperr.DiagGenericFailure
	}
	c.stateMu.Unlock()

	if !c.txMu.TryLock() {
		return nil, doiperr.DiagBusyProcessing
	}
	defer c.txMu.Unlock()

	c.setDM(DMWaitForAck)
	c.stateMu.Lock()
	c.gotAck, c.gotNack, c.pending = false, false, false
	c.final = nil
	c.stateMu.Unlock()

	msg := wire.Compose(wire.Version2012, wire.PayloadDiagnosticMessage,
		wire.BuildDiagnosticMessage(c.opts.SourceAddr, targetAddr, uds))
	if err := c.writeRaw(msg); err != nil {
		c.setDM(DMIdle)
		return nil, doiperr.DiagRequestSendFailed
	}

	if result, ok := c.waitForAck(); !ok {
		return nil, result
	}

	return c.waitForResponse()
}

func (c *Channel) waitForAck() (doiperr.DiagResult, bool) {
	var result doiperr.DiagResult
	var ok bool
	c.dmTimer.WaitForTimeout(
		func() {
			c.log.Warn("diagnostic ack timed out")
			c.setDM(DMIdle)
			result, ok = doiperr.DiagAckTimeout, false
		},
		func() {
			c.stateMu.Lock()
			nack := c.gotNack
			c.stateMu.Unlock()
			if nack {
				c.setDM(DMIdle)
				result, ok = doiperr.DiagNegAckReceived, false
				return
			}
			c.setDM(DMWaitForResponse)
			result, ok = doiperr.DiagSuccess, true
		},
		DiagnosticAckTimeoutMS*time.Millisecond,
	)
	return result, ok
}

// waitForResponse loops across P2/P2* windows: every RecvdPendingRes
// re-arms with P2StarClientMax and continues; a RecvdFinalRes breaks
// out with the final response's UDS payload.
func (c *Channel) waitForResponse() ([]byte, doiperr.DiagResult) {
	first := true
	for {
		d := time.Duration(c.opts.p2StarMillis()) * time.Millisecond
		if first {
			d = time.Duration(c.opts.p2Millis()) * time.Millisecond
			first = false
		}

		var timedOut bool
		c.dmTimer.WaitForTimeout(
			func() { timedOut = true },
			func() { timedOut = false },
			d,
		)
		if timedOut {
			c.log.Warn("diagnostic response timed out")
			c.setDM(DMIdle)
			return nil, doiperr.DiagResponseTimeout
		}

		c.stateMu.Lock()
		pending := c.pending
		final := c.final
		c.stateMu.Unlock()

		if pending {
			c.setDM(DMRecvdPendingRes)
			c.stateMu.Lock()
			c.pending = false
			c.stateMu.Unlock()
			continue
		}

		c.setDM(DMRecvdFinalRes)
		c.setDM(DMSuccess)
		c.setDM(DMIdle)
		return final, doiperr.DiagSuccess
	}
}

func (c *Channel) setRA(s RAState) {
	c.stateMu.Lock()
	c.ra = s
	c.stateMu.Unlock()
}

func (c *Channel) setDM(s DMState) {
	c.stateMu.Lock()
	c.dm = s
	c.stateMu.Unlock()
}

func (c *Channel) writeRaw(b []byte) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return errors.New("tcpchannel: not connected")
	}
	_, err := conn.Write(b)
	if err != nil {
		return doiperr.NewBoostSupportError(doiperr.BoostSupportSocketError, err)
	}
	return nil
}

// readLoop owns the socket for reading: it reassembles frames via
// wire.ReadFrame and dispatches them into the state machines,
// mirroring the teacher's per-connection read goroutine
// (internal/server/tcp_server.go handleConnection).
func (c *Channel) readLoop() {
	defer close(c.readDone)
	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return
		}

		frame, result, err := wire.ReadFrame(conn, wire.ChannelTCP)
		if err != nil {
			if !errors.Is(err, wire.ErrRemoteDisconnected) {
				c.log.Error("tcp read failed", "err", err)
			}
			c.failAllWaiters()
			return
		}
		if result != nil && result.Nack != nil {
			c.log.Warn("tcp channel received NACK", "code", result.Nack.String())
			if result.Nack.CloseSocket() {
				c.connMu.Lock()
				if c.conn != nil {
					_ = c.conn.Close()
					c.conn = nil
				}
				c.connMu.Unlock()
				c.failAllWaiters()
				return
			}
			continue
		}

		c.dispatch(frame)
	}
}

func (c *Channel) dispatch(frame wire.Frame) {
	switch frame.Header.PayloadType {
	case wire.PayloadRoutingActivationResponse:
		c.stateMu.Lock()
		if c.ra == RAWaitForResponse {
			c.raResp = wire.ParseRoutingActivationResponse(frame.Payload)
			c.raGotResp = true
		}
		c.stateMu.Unlock()
		c.raTimer.Cancel()

	case wire.PayloadDiagnosticMessagePosAck, wire.PayloadDiagnosticMessageNegAck:
		ack := wire.ParseDiagnosticMessageAck(frame.Payload)
		c.stateMu.Lock()
		waiting := c.dm == DMWaitForAck
		if waiting {
			c.ackCode = ack.Code
			c.gotAck = frame.Header.PayloadType == wire.PayloadDiagnosticMessagePosAck
			c.gotNack = frame.Header.PayloadType == wire.PayloadDiagnosticMessageNegAck
		}
		c.stateMu.Unlock()
		if waiting {
			c.dmTimer.Cancel()
		} else {
			c.log.Warn("dropping ack received outside WaitForAck", "state", c.dmStateSnapshot())
		}

	case wire.PayloadDiagnosticMessage:
		c.handleDiagnosticMessage(frame)

	case wire.PayloadAliveCheckRequest:
		c.handleAliveCheck()

	default:
		c.log.Warn("unhandled tcp payload type", "type", frame.Header.PayloadType.String())
	}
}

func (c *Channel) handleDiagnosticMessage(frame wire.Frame) {
	msg := wire.ParseDiagnosticMessage(frame.Payload)

	c.stateMu.Lock()
	state := c.dm
	c.stateMu.Unlock()

	if state != DMWaitForResponse && state != DMRecvdPendingRes {
		c.log.Warn("dropping data response received before ack", "state", state)
		return
	}

	params := IndicationParams{SourceAddr: msg.SourceAddr, TargetAddr: msg.TargetAddr, Size: len(msg.UDS)}
	if c.opts.Handler != nil {
		if res := c.opts.Handler.Indication(params); res != doiperr.IndicationOk {
			c.log.Warn("conversation handler rejected indication", "result", res.String())
			return
		}
	}

	if wire.IsResponsePending(msg.UDS) {
		c.stateMu.Lock()
		c.pending = true
		c.stateMu.Unlock()
		c.dmTimer.Cancel()
		return
	}

	c.stateMu.Lock()
	c.pending = false
	c.final = msg.UDS
	c.stateMu.Unlock()
	if c.opts.Handler != nil {
		c.opts.Handler.HandleMessage(params, msg.UDS)
	}
	c.dmTimer.Cancel()
}

// handleAliveCheck auto-responds with an AliveCheckResponse carrying
// this channel's source address, the minimal behavior needed to keep
// a server-initiated keepalive probe from tearing the socket down
// (ISO 13400 AliveCheck; not itself part of any state machine).
func (c *Channel) handleAliveCheck() {
	p := make([]byte, 2)
	p[0] = byte(c.opts.SourceAddr >> 8)
	p[1] = byte(c.opts.SourceAddr)
	resp := wire.Compose(wire.Version2012, wire.PayloadAliveCheckResponse, p)
	if err := c.writeRaw(resp); err != nil {
		c.log.Warn("alive check response failed", "err", err)
	}
}

func (c *Channel) failAllWaiters() {
	c.setRA(RAFailed)
	c.setDM(DMIdle)
	c.raTimer.Cancel()
	c.dmTimer.Cancel()
}

func (c *Channel) dmStateSnapshot() DMState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.dm
}

// RAState reports the current routing-activation state.
func (c *Channel) RAState() RAState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.ra
}

