// Package convmgr builds and owns every conversation for the engine's
// lifetime: the single VD (vehicle-discovery) conversation plus one DM
// conversation per configured entry (spec.md §4.6).
//
// Grounded on the teacher's internal/server.Runner: a single
// orchestrating type that turns a parsed *config.Config into running
// components and owns their shutdown, adapted from "build resolver
// chain + start UDP/TCP servers" to "build one VD conversation + N DM
// conversations from Conversations[]".
package convmgr

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/hagenberger/doip-client/config"
	"github.com/hagenberger/doip-client/conversation"
	"github.com/hagenberger/doip-client/doiperr"
	"github.com/hagenberger/doip-client/internal/logging"
	"github.com/hagenberger/doip-client/internal/udpchannel"
	"github.com/hagenberger/doip-client/internal/wire"
)

// Manager owns every conversation built from configuration.
type Manager struct {
	log *slog.Logger

	mu  sync.RWMutex
	dm  map[string]conversation.DiagConversation
	vd  conversation.DiscoveryConversation
}

// Build constructs a Manager's conversations from cfg but does not yet
// open any sockets (spec.md §4.6: "Builds conversations from the
// parsed configuration"); call Startup to open them.
func Build(cfg *config.Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		log: logging.Component(logger, "convmgr"),
		dm:  make(map[string]conversation.DiagConversation, len(cfg.Conversations)),
	}

	for _, entry := range cfg.Conversations {
		m.dm[entry.ConversationName] = conversation.NewDMConversation(entry, m.log)
	}

	destAddr := net.JoinHostPort(cfg.UdpBroadcastAddress, fmt.Sprintf("%d", wire.DefaultPort))
	localAddr := net.JoinHostPort(cfg.UdpIPAddress, "0")
	m.vd = conversation.NewVDConversation(udpchannel.Options{
		LocalAddr:       localAddr,
		BroadcastAddr:   net.JoinHostPort(cfg.UdpIPAddress, fmt.Sprintf("%d", wire.DefaultPort)),
		DestinationAddr: destAddr,
	}, m.log)

	return m, nil
}

// Startup brings up the VD conversation and every DM conversation.
func (m *Manager) Startup(ctx context.Context) error {
	if err := m.vd.Startup(ctx); err != nil {
		return doiperr.NewDmError(doiperr.DmInitializationFailed, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, c := range m.dm {
		if err := c.Startup(ctx); err != nil {
			return doiperr.NewDmError(doiperr.DmInitializationFailed, fmt.Errorf("conversation %q: %w", name, err))
		}
	}
	return nil
}

// GetDiagnosticClientConversation returns the named DM conversation.
// An unknown name is a fatal configuration error (spec.md §4.6).
func (m *Manager) GetDiagnosticClientConversation(name string) (conversation.DiagConversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.dm[name]
	if !ok {
		m.log.Error("unknown conversation requested", "name", name)
		return nil, doiperr.NewDmError(doiperr.DmInitializationFailed, fmt.Errorf("convmgr: unknown conversation %q", name))
	}
	return c, nil
}

// VehicleDiscovery returns the VD conversation.
func (m *Manager) VehicleDiscovery() conversation.DiscoveryConversation {
	return m.vd
}

// Shutdown tears every conversation down. Any DM conversation still
// Active is force-shut-down with a warning (spec.md §4.6).
func (m *Manager) Shutdown() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, c := range m.dm {
		if c.State() == conversation.StateActive {
			m.log.Warn("force-shutting-down conversation still active", "name", name)
		}
		if err := c.Shutdown(); err != nil {
			m.log.Warn("conversation shutdown failed", "name", name, "err", err)
		}
	}
	if m.vd.State() == conversation.StateActive {
		m.log.Warn("force-shutting-down vehicle-discovery conversation still active")
	}
	if err := m.vd.Shutdown(); err != nil {
		m.log.Warn("vehicle-discovery conversation shutdown failed", "err", err)
	}
}
