package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.UdpIPAddress)
	assert.Equal(t, "255.255.255.255", cfg.UdpBroadcastAddress)
	assert.Empty(t, cfg.Conversations)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoadFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doip.json")
	body := `{
		"UdpIpAddress": "192.168.1.10",
		"UdpBroadcastAddress": "192.168.1.255",
		"Conversations": [
			{
				"ConversationName": "ecu1",
				"SourceAddress": 3712,
				"P2ClientMax": 150,
				"P2StarClientMax": 5000,
				"RxBufferSize": 4096,
				"Network": {"TcpIpAddress": "10.0.0.2"}
			}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10", cfg.UdpIPAddress)
	require.Len(t, cfg.Conversations, 1)
	assert.Equal(t, "ecu1", cfg.Conversations[0].ConversationName)
	assert.Equal(t, uint16(3712), cfg.Conversations[0].SourceAddress)
	assert.Equal(t, "10.0.0.2", cfg.Conversations[0].Network.TCPIPAddress)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DOIP_UDP_IP_ADDRESS", "10.10.10.10")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.10.10.10", cfg.UdpIPAddress)
}

func TestValidateRejectsDuplicateConversationNames(t *testing.T) {
	cfg := &Config{Conversations: []ConversationConfig{
		{ConversationName: "a", P2ClientMax: 1, RxBufferSize: 1},
		{ConversationName: "a", P2ClientMax: 1, RxBufferSize: 1},
	}}
	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidateRejectsZeroP2(t *testing.T) {
	cfg := &Config{Conversations: []ConversationConfig{
		{ConversationName: "a", P2ClientMax: 0, RxBufferSize: 1},
	}}
	err := Validate(cfg)
	require.Error(t, err)
}
