package wire

import (
	"bytes"
	"testing"

	"github.com/hagenberger/doip-client/doiperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeMarshalRoundTrip(t *testing.T) {
	payload := []byte{0x0E, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00}
	msg := Compose(0, PayloadRoutingActivationRequest, payload)

	require.Len(t, msg, HeaderSize+len(payload))
	assert.Equal(t, byte(Version2012), msg[0])
	assert.Equal(t, ^byte(Version2012), msg[1])

	hdr, err := ParseHeaderBytes(msg[:HeaderSize])
	require.NoError(t, err)
	assert.Equal(t, PayloadRoutingActivationRequest, hdr.PayloadType)
	assert.Equal(t, uint32(len(payload)), hdr.PayloadLength)
	assert.Equal(t, payload, msg[HeaderSize:])
}

// TestFramingRoundTrip is the quantified "framing round-trip" property of
// SPEC_FULL.md §8: decode(encode(T, P)) == (T, P) for all accepted T and
// |P| <= channel_max.
func TestFramingRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		t    PayloadType
		p    []byte
	}{
		{"routing-activation-response", PayloadRoutingActivationResponse, []byte{0x0E, 0x80, 0x12, 0x34, 0x10, 0, 0, 0, 0}},
		{"diagnostic-message", PayloadDiagnosticMessage, []byte{0x0E, 0x80, 0x12, 0x34, 0x22, 0xF1, 0x90}},
		{"alive-check", PayloadAliveCheckRequest, []byte{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			msg := Compose(0, c.t, c.p)
			frame, result, err := ReadFrame(bytes.NewReader(msg), ChannelTCP)
			require.NoError(t, err)
			require.Nil(t, result.Nack)
			assert.Equal(t, c.t, frame.Header.PayloadType)
			assert.Equal(t, c.p, frame.Payload)
		})
	}
}

func TestProcessHeaderIncorrectPatternClosesSocket(t *testing.T) {
	msg := Compose(0, PayloadDiagnosticMessage, []byte{0, 0, 0, 0, 0})
	msg[1] = 0x00 // corrupt the inverse-version byte
	result := ProcessHeader(msg[:HeaderSize], ChannelTCP)
	require.NotNil(t, result.Nack)
	assert.Equal(t, doiperr.NackIncorrectPattern, *result.Nack)
	assert.True(t, result.Nack.CloseSocket())
}

func TestProcessHeaderUnknownPayloadOnTCP(t *testing.T) {
	msg := Compose(0, PayloadVehicleAnnouncement, make([]byte, 10))
	result := ProcessHeader(msg[:HeaderSize], ChannelTCP)
	require.NotNil(t, result.Nack)
	assert.Equal(t, doiperr.NackUnknownPayload, *result.Nack)
	assert.False(t, result.Nack.CloseSocket())
}

// TestLengthGuard is the quantified "length guard" property of SPEC_FULL.md
// §8: payload_length > channel_max yields NACK 0x03 and no payload bytes
// reach the state machine.
func TestLengthGuard(t *testing.T) {
	oversized := make([]byte, TCPChannelMaxPayload+1)
	msg := Compose(0, PayloadDiagnosticMessage, oversized)
	frame, result, err := ReadFrame(bytes.NewReader(msg), ChannelTCP)
	require.NoError(t, err)
	require.NotNil(t, result.Nack)
	assert.Equal(t, doiperr.NackOutOfMemory, *result.Nack)
	assert.Empty(t, frame.Payload, "no payload bytes should reach the state machine on NACK")
}

func TestProcessHeaderInvalidPayloadLenClosesSocket(t *testing.T) {
	// RoutingActivationResponse requires 9..13 bytes; 3 is out of range.
	msg := Compose(0, PayloadRoutingActivationResponse, []byte{0x0E, 0x80, 0x10})
	result := ProcessHeader(msg[:HeaderSize], ChannelTCP)
	require.NotNil(t, result.Nack)
	assert.Equal(t, doiperr.NackInvalidPayloadLen, *result.Nack)
	assert.True(t, result.Nack.CloseSocket())
}

func TestUDPChannelMaxIsSmaller(t *testing.T) {
	msg := Compose(0, PayloadVehicleAnnouncement, make([]byte, UDPChannelMaxPayload+1))
	result := ProcessHeader(msg[:HeaderSize], ChannelUDP)
	require.NotNil(t, result.Nack)
	assert.Equal(t, doiperr.NackOutOfMemory, *result.Nack)
}

func TestReadFrameRemoteDisconnected(t *testing.T) {
	_, _, err := ReadFrame(bytes.NewReader(nil), ChannelTCP)
	require.ErrorIs(t, err, ErrRemoteDisconnected)
}

func TestDefaultVersionIs2012(t *testing.T) {
	msg := Compose(0, PayloadAliveCheckRequest, nil)
	assert.Equal(t, Version2012, msg[0])
}
