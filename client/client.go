// Package client is the engine's public caller surface (spec.md §6
// "Public operations"): Initialize/DeInitialize lifecycle plus
// accessors for the conversations the conversation manager built from
// configuration.
//
// Grounded on the teacher's cmd/hydradns/main.go wiring style: load
// config, build a *server.Runner, run it — adapted here from "a
// standalone server process" to "a library entry point an embedding
// program calls into".
package client

import (
	"context"
	"log/slog"

	"github.com/hagenberger/doip-client/config"
	"github.com/hagenberger/doip-client/conversation"
	"github.com/hagenberger/doip-client/doiperr"
	"github.com/hagenberger/doip-client/internal/convmgr"
	"github.com/hagenberger/doip-client/internal/logging"
	"github.com/hagenberger/doip-client/internal/reactorstats"
	"github.com/hagenberger/doip-client/internal/wire"
)

// Client is the top-level engine handle an embedding program builds
// once at startup (spec.md §6 Public operations).
type Client struct {
	cfg     *config.Config
	log     *slog.Logger
	mgr     *convmgr.Manager
	monitor *reactorstats.Monitor
	cancel  context.CancelFunc
}

// New builds a Client from an already-loaded configuration. Call
// Initialize to open sockets and start conversations.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Configure(logging.Config{Level: cfg.Logging.Level, Structured: cfg.Logging.Structured, StructuredFormat: cfg.Logging.StructuredFormat, IncludePID: cfg.Logging.IncludePID})
	}
	mgr, err := convmgr.Build(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, log: logging.Component(logger, "client"), mgr: mgr}, nil
}

// Initialize starts every conversation and the reactor health
// monitor (spec.md §6 Initialize; SPEC_FULL.md §4.7).
func (c *Client) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := c.mgr.Startup(ctx); err != nil {
		cancel()
		return err
	}

	c.monitor = reactorstats.New(c.log)
	c.monitor.Start(ctx)
	return nil
}

// DeInitialize shuts every conversation down and stops the health
// monitor.
func (c *Client) DeInitialize() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.mgr.Shutdown()
	return nil
}

// GetDiagnosticClientConversation returns the named DM conversation
// (spec.md §6).
func (c *Client) GetDiagnosticClientConversation(name string) (conversation.DiagConversation, error) {
	return c.mgr.GetDiagnosticClientConversation(name)
}

// SendVehicleIdentificationRequest drives the VD conversation's active
// discovery transaction (spec.md §6).
func (c *Client) SendVehicleIdentificationRequest(ctx context.Context, mode wire.VehicleIdentificationMode, selector []byte) ([]wire.VehicleAnnouncement, error) {
	anns, err := c.mgr.VehicleDiscovery().SendVehicleIdentificationRequest(ctx, mode, selector)
	if err != nil {
		return nil, doiperr.NewDoipError(doiperr.DoipGenericError, err)
	}
	return anns, nil
}
