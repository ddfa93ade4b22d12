package conversation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hagenberger/doip-client/config"
	"github.com/hagenberger/doip-client/doiperr"
	"github.com/hagenberger/doip-client/internal/logging"
	"github.com/hagenberger/doip-client/internal/socket"
	"github.com/hagenberger/doip-client/internal/tcpchannel"
)

// DiagConversation is the public surface of a DM conversation
// (spec.md §6 "Per conversation" operations).
type DiagConversation interface {
	Name() string
	Startup(ctx context.Context) error
	Shutdown() error
	ConnectToDiagServer(ctx context.Context, targetAddr uint16, ip string) (doiperr.ConnectResult, error)
	DisconnectFromDiagServer() doiperr.DisconnectResult
	SendDiagnosticRequest(ctx context.Context, uds []byte) ([]byte, doiperr.DiagResult)
	State() State
}

// DMConversation owns exactly one TCP channel for its lifetime
// (spec.md §4: "a conversation exclusively owns one TCP channel").
type DMConversation struct {
	stateBox
	cfg        config.ConversationConfig
	targetAddr uint16
	channel    *tcpchannel.Channel
	log        *slog.Logger
}

// NewDMConversation builds a conversation from its configuration
// entry, including its TCP channel; the channel's socket is not opened
// until ConnectToDiagServer.
func NewDMConversation(cfg config.ConversationConfig, logger *slog.Logger) *DMConversation {
	c := &DMConversation{cfg: cfg, log: logging.Component(logger, "conversation."+cfg.ConversationName)}
	c.buildChannel()
	return c
}

func (c *DMConversation) buildChannel() {
	dialOpts := socket.TCPDialOptions{Kind: socket.TCPPlain}
	if c.cfg.TLS.Enabled {
		switch c.cfg.TLS.MinVersion {
		case "1.3":
			dialOpts.Kind = socket.TCPTLS13
		default:
			dialOpts.Kind = socket.TCPTLS12
		}
	}
	c.channel = tcpchannel.New(tcpchannel.Options{
		SourceAddr:      c.cfg.SourceAddress,
		P2ClientMax:     c.cfg.P2ClientMax,
		P2StarClientMax: c.cfg.P2StarClientMax,
		DialOpts:        dialOpts,
		Handler:         c,
		Logger:          c.log,
	})
}

func (c *DMConversation) Name() string { return c.cfg.ConversationName }

// Startup marks the conversation Active; the channel itself opens its
// socket lazily in ConnectToDiagServer (spec.md §4: "sockets are...
// connected on demand (TCP)").
func (c *DMConversation) Startup(_ context.Context) error {
	c.set(StateActive)
	return nil
}

// Shutdown disconnects the channel if connected and marks the
// conversation ShutDown.
func (c *DMConversation) Shutdown() error {
	if c.channel != nil {
		c.channel.Disconnect()
	}
	c.set(StateShutDown)
	return nil
}

func (c *DMConversation) ConnectToDiagServer(ctx context.Context, targetAddr uint16, ip string) (doiperr.ConnectResult, error) {
	c.targetAddr = targetAddr
	return c.channel.ConnectToHost(ctx, ip)
}

func (c *DMConversation) DisconnectFromDiagServer() doiperr.DisconnectResult {
	return c.channel.Disconnect()
}

func (c *DMConversation) SendDiagnosticRequest(ctx context.Context, uds []byte) ([]byte, doiperr.DiagResult) {
	if len(uds) == 0 {
		return nil, doiperr.DiagInvalidParameter
	}
	// reqID correlates the request/response pair (and any interleaved
	// pending NRCs) across the log lines this transaction produces.
	reqID := uuid.New().String()
	c.log.Debug("sending diagnostic request", "req_id", reqID, "target_addr", c.targetAddr, "size", len(uds))
	payload, result := c.channel.Transmit(ctx, c.targetAddr, uds)
	c.log.Debug("diagnostic request completed", "req_id", reqID, "result", result.String())
	return payload, result
}

// Indication implements tcpchannel.Handler: rejects any inbound
// message that would overflow the conversation's configured rx
// buffer (spec.md §4.5 IndicationOverflow).
func (c *DMConversation) Indication(p tcpchannel.IndicationParams) doiperr.IndicationResult {
	if c.cfg.RxBufferSize > 0 && uint32(p.Size) > c.cfg.RxBufferSize {
		c.log.Warn("diagnostic response exceeds configured rx buffer", "size", p.Size, "rx_buffer_size", c.cfg.RxBufferSize)
		return doiperr.IndicationOverflow
	}
	return doiperr.IndicationOk
}

// HandleMessage implements tcpchannel.Handler. The actual payload is
// already returned synchronously to the SendDiagnosticRequest caller
// by the channel's Transmit; this callback exists for observability
// (and for a future out-of-band subscriber) rather than value
// delivery.
func (c *DMConversation) HandleMessage(p tcpchannel.IndicationParams, _ []byte) {
	c.log.Debug("diagnostic message delivered", "source_addr", p.SourceAddr, "target_addr", p.TargetAddr, "size", p.Size)
}
