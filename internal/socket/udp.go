package socket

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/hagenberger/doip-client/doiperr"
)

// broadcastControl enables SO_REUSEADDR and SO_BROADCAST, grounded on the
// teacher's listenReusePort (internal/server/udp_server.go) which enables
// SO_REUSEPORT via the same syscall.RawConn.Control idiom; this engine
// additionally sets SO_BROADCAST on the socket that listens for
// VehicleAnnouncements. VehicleIdentificationRequests are sent on the
// unicast socket (reuseAddrOnlyControl), which does not set SO_BROADCAST.
func broadcastControl(_, _ string, c syscall.RawConn) error {
	var ctrlErr error
	err := c.Control(func(fd uintptr) {
		if ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); ctrlErr != nil {
			return
		}
		ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return ctrlErr
}

// reuseAddrOnlyControl enables SO_REUSEADDR without SO_BROADCAST, for the
// unicast socket used for active VehicleIdentification transactions.
func reuseAddrOnlyControl(_, _ string, c syscall.RawConn) error {
	return reuseAddrControl("", "", c)
}

// ListenUDPBroadcast opens the broadcast socket: binds localAddr with
// SO_REUSEADDR and SO_BROADCAST enabled (spec.md §4.4).
func ListenUDPBroadcast(ctx context.Context, localAddr string) (*net.UDPConn, error) {
	return listenUDP(ctx, localAddr, broadcastControl)
}

// ListenUDPUnicast opens the unicast socket: binds localAddr with
// SO_REUSEADDR (spec.md §4.4).
func ListenUDPUnicast(ctx context.Context, localAddr string) (*net.UDPConn, error) {
	return listenUDP(ctx, localAddr, reuseAddrOnlyControl)
}

func listenUDP(ctx context.Context, localAddr string, ctrl func(string, string, syscall.RawConn) error) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: ctrl}
	pc, err := lc.ListenPacket(ctx, "udp", localAddr)
	if err != nil {
		return nil, doiperr.NewBoostSupportError(doiperr.BoostSupportSocketError, err)
	}
	return pc.(*net.UDPConn), nil
}
