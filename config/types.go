// Package config loads the engine's JSON configuration (spec.md §6),
// grounded on the teacher's internal/config package: spf13/viper driving
// defaults -> file -> environment override, retargeted from the teacher's
// YAML wire format to the JSON format spec.md §6 calls for (viper natively
// supports SetConfigType("json"); only the config-type selection and the
// schema differ from the teacher).
package config

// NetworkConfig holds the per-conversation TCP destination.
//
// The mapstructure tags match the json tags exactly (PascalCase, no
// underscores): viper's key-insensitivization only lowercases map keys,
// it never inserts or strips underscores, and it never descends into
// the []interface{} that backs the Conversations slice at all — so a
// snake_case mapstructure tag can never match either a top-level file
// key or a conversation-element key. Keeping the two tag sets identical
// sidesteps that mismatch entirely.
type NetworkConfig struct {
	TCPIPAddress string `json:"TcpIpAddress" mapstructure:"TcpIpAddress"`
}

// TLSConfig selects among the TCP socket variants of spec.md §9 design
// notes. This is additive beyond spec.md §6's literal JSON schema — see
// SPEC_FULL.md §6.
type TLSConfig struct {
	Enabled    bool   `json:"Enabled"    mapstructure:"Enabled"`
	MinVersion string `json:"MinVersion" mapstructure:"MinVersion"` // "1.2" or "1.3"
}

// ConversationConfig describes one configured DM conversation (spec.md
// §3, §6).
type ConversationConfig struct {
	ConversationName string        `json:"ConversationName" mapstructure:"ConversationName"`
	SourceAddress    uint16        `json:"SourceAddress"    mapstructure:"SourceAddress"`
	P2ClientMax      uint16        `json:"P2ClientMax"      mapstructure:"P2ClientMax"`
	P2StarClientMax  uint16        `json:"P2StarClientMax"  mapstructure:"P2StarClientMax"`
	RxBufferSize     uint32        `json:"RxBufferSize"     mapstructure:"RxBufferSize"`
	Network          NetworkConfig `json:"Network"          mapstructure:"Network"`
	TLS              TLSConfig     `json:"TLS"              mapstructure:"TLS"`
}

// LoggingConfig mirrors the teacher's logging section (SPEC_FULL.md §10
// ambient stack).
type LoggingConfig struct {
	Level            string `json:"Level"            mapstructure:"Level"`
	Structured       bool   `json:"Structured"       mapstructure:"Structured"`
	StructuredFormat string `json:"StructuredFormat" mapstructure:"StructuredFormat"`
	IncludePID       bool   `json:"IncludePID"       mapstructure:"IncludePID"`
}

// Config is the root configuration structure (spec.md §6).
type Config struct {
	UdpIPAddress        string               `json:"UdpIpAddress"        mapstructure:"UdpIpAddress"`
	UdpBroadcastAddress string               `json:"UdpBroadcastAddress" mapstructure:"UdpBroadcastAddress"`
	Conversations       []ConversationConfig `json:"Conversations"       mapstructure:"Conversations"`
	Logging             LoggingConfig        `json:"Logging"             mapstructure:"Logging"`
}
