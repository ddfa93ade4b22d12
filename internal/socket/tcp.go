// Package socket implements the polymorphic TCP/UDP transport the DoIP
// channels dial over: plain TCP, TLS 1.2, and TLS 1.3, plus UDP unicast
// and broadcast sockets — all opened with SO_REUSEADDR the way the
// teacher's listener setup uses SO_REUSEPORT
// (internal/server/tcp_server.go listenTCPReusePort,
// internal/server/udp_server.go listenReusePort), adapted from "many
// listening sockets sharing a port" to "one dial-out socket that can
// rebind quickly across reconnects without TIME_WAIT failures".
//
// spec.md §9 calls for "a single TcpSocket trait with three concrete
// implementers; the channel is generic over the trait. No inheritance
// needed." TCPSocket is that trait: net.Conn already is the interface,
// dialPlain/dialTLS12/dialTLS13 are the three implementers, selected by
// TCPSocketKind.
package socket

import (
	"context"
	"crypto/tls"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/hagenberger/doip-client/doiperr"
)

// TCPSocketKind selects among the three socket variants of spec.md §9.
type TCPSocketKind int

const (
	TCPPlain TCPSocketKind = iota
	TCPTLS12
	TCPTLS13
)

// TCPDialOptions configures DialTCP.
type TCPDialOptions struct {
	Kind      TCPSocketKind
	TLSConfig *tls.Config // required when Kind != TCPPlain; ServerName etc. is caller's concern
}

// reuseAddrControl sets SO_REUSEADDR on the socket before bind/connect, so
// a channel that reconnects after a short-lived prior connection does not
// fail to rebind its ephemeral local port while it is in TIME_WAIT.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var ctrlErr error
	err := c.Control(func(fd uintptr) {
		ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return ctrlErr
}

// DialTCP opens a TCP connection to addr, applying SO_REUSEADDR, and
// wraps it in TLS per opts.Kind when requested. Errors are returned as a
// BoostSupportError (SocketError); the calling channel maps them into the
// DoIP domain with doiperr.FromBoostSupportError.
func DialTCP(ctx context.Context, addr string, opts TCPDialOptions) (net.Conn, error) {
	dialer := &net.Dialer{Control: reuseAddrControl}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, doiperr.NewBoostSupportError(doiperr.BoostSupportSocketError, err)
	}

	switch opts.Kind {
	case TCPPlain:
		return conn, nil
	case TCPTLS12:
		cfg := cloneOrNew(opts.TLSConfig)
		cfg.MinVersion = tls.VersionTLS12
		cfg.MaxVersion = tls.VersionTLS12
		return wrapTLS(ctx, conn, cfg)
	case TCPTLS13:
		cfg := cloneOrNew(opts.TLSConfig)
		cfg.MinVersion = tls.VersionTLS13
		return wrapTLS(ctx, conn, cfg)
	default:
		return conn, nil
	}
}

func cloneOrNew(cfg *tls.Config) *tls.Config {
	if cfg == nil {
		return &tls.Config{}
	}
	return cfg.Clone()
}

func wrapTLS(ctx context.Context, conn net.Conn, cfg *tls.Config) (net.Conn, error) {
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, doiperr.NewBoostSupportError(doiperr.BoostSupportSocketError, err)
	}
	return tlsConn, nil
}
