package testharness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hagenberger/doip-client/doiperr"
	"github.com/hagenberger/doip-client/internal/socket"
	"github.com/hagenberger/doip-client/internal/tcpchannel"
	"github.com/hagenberger/doip-client/internal/wire"
)

func newClientChannel() *tcpchannel.Channel {
	return tcpchannel.New(tcpchannel.Options{
		SourceAddr:      0x0E80,
		P2ClientMax:     150,
		P2StarClientMax: 5000,
		DialOpts:        socket.TCPDialOptions{Kind: socket.TCPPlain},
	})
}

// TestScenarioRoutingActivationSuccess exercises spec.md §8 scenario 1.
func TestScenarioRoutingActivationSuccess(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", ECUScript{ServerLogicalAddress: 0x1234}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)
	defer srv.Close()

	ch := newClientChannel()
	defer ch.Disconnect()
	res, err := ch.ConnectToHost(context.Background(), srv.Addr())
	require.NoError(t, err)
	require.Equal(t, doiperr.ConnectSuccess, res)
}

// TestScenarioRoutingActivationTimeout exercises spec.md §8 scenario 2.
func TestScenarioRoutingActivationTimeout(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", ECUScript{SkipRoutingActivationResponse: true}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)
	defer srv.Close()
	// The silent handler returns only once ctx is cancelled, so cancel
	// before Close waits for it.
	defer cancel()

	ch := newClientChannel()
	start := time.Now()
	res, err := ch.ConnectToHost(context.Background(), srv.Addr())
	require.NoError(t, err)
	require.Equal(t, doiperr.ConnectTimeout, res)
	require.GreaterOrEqual(t, time.Since(start), 1000*time.Millisecond)
}

// TestScenarioSimpleDiagnosticExchange exercises spec.md §8 scenario 3.
func TestScenarioSimpleDiagnosticExchange(t *testing.T) {
	vin := make([]byte, 17)
	copy(vin, "TESTVIN1234567890")

	srv, err := NewServer("127.0.0.1:0", ECUScript{
		ServerLogicalAddress: 0x1234,
		OnDiagnosticMessage: func(uds []byte) (wire.DiagAckCode, [][]byte) {
			require.Equal(t, []byte{0x22, 0xF1, 0x90}, uds)
			resp := append([]byte{0x62, 0xF1, 0x90}, vin...)
			return wire.DiagAckOK, [][]byte{resp}
		},
	}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)
	defer srv.Close()

	ch := newClientChannel()
	defer ch.Disconnect()
	_, err = ch.ConnectToHost(context.Background(), srv.Addr())
	require.NoError(t, err)

	payload, result := ch.Transmit(context.Background(), 0x1234, []byte{0x22, 0xF1, 0x90})
	require.Equal(t, doiperr.DiagSuccess, result)
	require.Equal(t, byte(0x62), payload[0])
}

// TestScenarioPendingThenFinal exercises spec.md §8 scenario 4.
func TestScenarioPendingThenFinal(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", ECUScript{
		ServerLogicalAddress: 0x1234,
		OnDiagnosticMessage: func(uds []byte) (wire.DiagAckCode, [][]byte) {
			return wire.DiagAckOK, [][]byte{
				{0x7F, 0x22, 0x78},
				{0x62, 0xF1, 0x90, 0x01},
			}
		},
	}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)
	defer srv.Close()

	ch := newClientChannel()
	defer ch.Disconnect()
	_, err = ch.ConnectToHost(context.Background(), srv.Addr())
	require.NoError(t, err)

	payload, result := ch.Transmit(context.Background(), 0x1234, []byte{0x22, 0xF1, 0x90})
	require.Equal(t, doiperr.DiagSuccess, result)
	require.Equal(t, []byte{0x62, 0xF1, 0x90, 0x01}, payload)
}

// TestScenarioNegAck exercises spec.md §8 scenario 5.
func TestScenarioNegAck(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", ECUScript{
		ServerLogicalAddress: 0x1234,
		OnDiagnosticMessage: func(uds []byte) (wire.DiagAckCode, [][]byte) {
			return wire.DiagNackUnknownTA, nil
		},
	}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)
	defer srv.Close()

	ch := newClientChannel()
	defer ch.Disconnect()
	_, err = ch.ConnectToHost(context.Background(), srv.Addr())
	require.NoError(t, err)

	_, result := ch.Transmit(context.Background(), 0x1234, []byte{0x22, 0xF1, 0x90})
	require.Equal(t, doiperr.DiagNegAckReceived, result)
}
