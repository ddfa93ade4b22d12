package tcpchannel

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hagenberger/doip-client/doiperr"
	"github.com/hagenberger/doip-client/internal/socket"
	"github.com/hagenberger/doip-client/internal/wire"
)

// fakeServer is a minimal loopback DoIP peer driven by a test-supplied
// script; it owns the accepted connection so the test body can write
// scripted responses and read what the channel sends.
type fakeServer struct {
	ln   net.Listener
	conn net.Conn
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fs := &fakeServer{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	return fs
}

func (fs *fakeServer) accept(t *testing.T) {
	t.Helper()
	conn, err := fs.ln.Accept()
	require.NoError(t, err)
	fs.conn = conn
	t.Cleanup(func() { _ = conn.Close() })
}

func (fs *fakeServer) readFrame(t *testing.T) wire.Frame {
	t.Helper()
	frame, result, err := wire.ReadFrame(fs.conn, wire.ChannelTCP)
	require.NoError(t, err)
	require.Nil(t, result.Nack)
	return frame
}

func (fs *fakeServer) send(t *testing.T, payloadType wire.PayloadType, payload []byte) {
	t.Helper()
	_, err := fs.conn.Write(wire.Compose(wire.Version2012, payloadType, payload))
	require.NoError(t, err)
}

func newChannel(addr string) *Channel {
	return New(Options{
		SourceAddr:      0x0E00,
		P2ClientMax:     150,
		P2StarClientMax: 2000,
		DialOpts:        socket.TCPDialOptions{Kind: socket.TCPPlain},
	})
}

func TestConnectToHostSuccess(t *testing.T) {
	fs := startFakeServer(t)
	ch := newChannel(fs.ln.Addr().String())

	done := make(chan struct {
		res doiperr.ConnectResult
		err error
	}, 1)
	go func() {
		res, err := ch.ConnectToHost(context.Background(), fs.ln.Addr().String())
		done <- struct {
			res doiperr.ConnectResult
			err error
		}{res, err}
	}()

	fs.accept(t)
	req := fs.readFrame(t)
	require.Equal(t, wire.PayloadRoutingActivationRequest, req.Header.PayloadType)

	resp := make([]byte, 9)
	resp[4] = byte(wire.RACodeSuccessful)
	fs.send(t, wire.PayloadRoutingActivationResponse, resp)

	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, doiperr.ConnectSuccess, r.res)
	require.Equal(t, RASuccessful, ch.RAState())
}

func TestConnectToHostTimeout(t *testing.T) {
	fs := startFakeServer(t)
	ch := newChannel(fs.ln.Addr().String())

	done := make(chan doiperr.ConnectResult, 1)
	go func() {
		res, _ := ch.ConnectToHost(context.Background(), fs.ln.Addr().String())
		done <- res
	}()

	fs.accept(t)
	_ = fs.readFrame(t) // never answer

	select {
	case res := <-done:
		require.Equal(t, doiperr.ConnectTimeout, res)
	case <-time.After(3 * time.Second):
		t.Fatal("ConnectToHost did not time out")
	}
	require.Equal(t, RAFailed, ch.RAState())
}

func connectSuccessfully(t *testing.T, fs *fakeServer, ch *Channel) {
	t.Helper()
	done := make(chan doiperr.ConnectResult, 1)
	go func() {
		res, _ := ch.ConnectToHost(context.Background(), fs.ln.Addr().String())
		done <- res
	}()
	fs.accept(t)
	_ = fs.readFrame(t)
	resp := make([]byte, 9)
	resp[4] = byte(wire.RACodeSuccessful)
	fs.send(t, wire.PayloadRoutingActivationResponse, resp)
	require.Equal(t, doiperr.ConnectSuccess, <-done)
}

func TestTransmitSimpleExchange(t *testing.T) {
	fs := startFakeServer(t)
	ch := newChannel(fs.ln.Addr().String())
	connectSuccessfully(t, fs, ch)

	type txResult struct {
		payload []byte
		result  doiperr.DiagResult
	}
	done := make(chan txResult, 1)
	go func() {
		p, r := ch.Transmit(context.Background(), 0x1000, []byte{0x22, 0xF1, 0x90})
		done <- txResult{p, r}
	}()

	frame := fs.readFrame(t)
	require.Equal(t, wire.PayloadDiagnosticMessage, frame.Header.PayloadType)
	msg := wire.ParseDiagnosticMessage(frame.Payload)
	require.Equal(t, []byte{0x22, 0xF1, 0x90}, msg.UDS)

	ack := wire.BuildDiagnosticMessage(0x1000, 0x0E00, nil)
	ack = append(ack[:4], byte(wire.DiagAckOK))
	fs.send(t, wire.PayloadDiagnosticMessagePosAck, ack)

	finalResp := wire.BuildDiagnosticMessage(0x1000, 0x0E00, []byte{0x62, 0xF1, 0x90, 0x01, 0x02})
	fs.send(t, wire.PayloadDiagnosticMessage, finalResp)

	r := <-done
	require.Equal(t, doiperr.DiagSuccess, r.result)
	require.Equal(t, []byte{0x62, 0xF1, 0x90, 0x01, 0x02}, r.payload)
}

func TestTransmitPendingThenFinal(t *testing.T) {
	fs := startFakeServer(t)
	ch := newChannel(fs.ln.Addr().String())
	connectSuccessfully(t, fs, ch)

	done := make(chan doiperr.DiagResult, 1)
	var response []byte
	go func() {
		p, r := ch.Transmit(context.Background(), 0x1000, []byte{0x31, 0x01, 0xFF, 0x00})
		response = p
		done <- r
	}()

	_ = fs.readFrame(t)

	ack := wire.BuildDiagnosticMessage(0x1000, 0x0E00, nil)
	ack = append(ack[:4], byte(wire.DiagAckOK))
	fs.send(t, wire.PayloadDiagnosticMessagePosAck, ack)

	pending := wire.BuildDiagnosticMessage(0x1000, 0x0E00, []byte{0x7F, 0x31, 0x78})
	fs.send(t, wire.PayloadDiagnosticMessage, pending)

	time.Sleep(50 * time.Millisecond)

	final := wire.BuildDiagnosticMessage(0x1000, 0x0E00, []byte{0x71, 0x01, 0xFF, 0x00})
	fs.send(t, wire.PayloadDiagnosticMessage, final)

	r := <-done
	require.Equal(t, doiperr.DiagSuccess, r)
	require.Equal(t, []byte{0x71, 0x01, 0xFF, 0x00}, response)
}

func TestTransmitNegAck(t *testing.T) {
	fs := startFakeServer(t)
	ch := newChannel(fs.ln.Addr().String())
	connectSuccessfully(t, fs, ch)

	done := make(chan doiperr.DiagResult, 1)
	go func() {
		_, r := ch.Transmit(context.Background(), 0x1000, []byte{0x22, 0xF1, 0x90})
		done <- r
	}()

	_ = fs.readFrame(t)

	nack := wire.BuildDiagnosticMessage(0x1000, 0x0E00, nil)
	nack = append(nack[:4], byte(wire.DiagNackUnknownTA))
	fs.send(t, wire.PayloadDiagnosticMessageNegAck, nack)

	require.Equal(t, doiperr.DiagNegAckReceived, <-done)
}

func TestTransmitBusyWhileInFlight(t *testing.T) {
	fs := startFakeServer(t)
	ch := newChannel(fs.ln.Addr().String())
	connectSuccessfully(t, fs, ch)

	go func() {
		_, _ = ch.Transmit(context.Background(), 0x1000, []byte{0x22, 0xF1, 0x90})
	}()
	_ = fs.readFrame(t) // make sure first Transmit has actually started writing

	_, r := ch.Transmit(context.Background(), 0x1000, []byte{0x22, 0xF1, 0x91})
	require.Equal(t, doiperr.DiagBusyProcessing, r)
}

func TestTransmitBeforeRoutingActivationFails(t *testing.T) {
	ch := newChannel("127.0.0.1:0")
	_, r := ch.Transmit(context.Background(), 0x1000, []byte{0x22})
	require.Equal(t, doiperr.DiagGenericFailure, r)
}
