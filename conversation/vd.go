package conversation

import (
	"context"
	"log/slog"

	"github.com/hagenberger/doip-client/internal/logging"
	"github.com/hagenberger/doip-client/internal/udpchannel"
	"github.com/hagenberger/doip-client/internal/wire"
)

// DiscoveryConversation is the public surface of the vehicle-discovery
// conversation (spec.md §4: "the vehicle-discovery conversation
// exclusively owns one UDP channel pair").
type DiscoveryConversation interface {
	Startup(ctx context.Context) error
	Shutdown() error
	SendVehicleIdentificationRequest(ctx context.Context, mode wire.VehicleIdentificationMode, selector []byte) ([]wire.VehicleAnnouncement, error)
	State() State
}

// VDConversation owns the UDP channel pair for its lifetime.
type VDConversation struct {
	stateBox
	channel *udpchannel.Channel
	log     *slog.Logger
}

// NewVDConversation builds the vehicle-discovery conversation.
func NewVDConversation(opts udpchannel.Options, logger *slog.Logger) *VDConversation {
	v := &VDConversation{log: logging.Component(logger, "conversation.vd")}
	opts.PassiveHandler = v
	opts.Logger = v.log
	v.channel = udpchannel.New(opts)
	return v
}

func (v *VDConversation) Startup(ctx context.Context) error {
	if err := v.channel.Startup(ctx); err != nil {
		return err
	}
	v.set(StateActive)
	return nil
}

func (v *VDConversation) Shutdown() error {
	v.channel.Shutdown()
	v.set(StateShutDown)
	return nil
}

func (v *VDConversation) SendVehicleIdentificationRequest(ctx context.Context, mode wire.VehicleIdentificationMode, selector []byte) ([]wire.VehicleAnnouncement, error) {
	return v.channel.SendVehicleIdentificationRequest(ctx, mode, selector)
}

// OnVehicleAnnouncement implements udpchannel.PassiveHandler: passive
// VehicleAnnouncements are logged; a richer engine would fan these out
// to subscribers, which is out of spec.md's scope (no pub/sub layer
// defined).
func (v *VDConversation) OnVehicleAnnouncement(ann wire.VehicleAnnouncement) {
	v.log.Info("vehicle announcement observed", "from_ip", ann.FromIP, "size", len(ann.Payload))
}
