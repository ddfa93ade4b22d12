package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment-variable prefix, the DoIP analogue of the
// teacher's HYDRADNS_ prefix (e.g. DOIP_UDPIPADDRESS).
const EnvPrefix = "DOIP"

// initViper sets up the loader with defaults, env binding, and the JSON
// config file — the same three-tier priority the teacher's
// internal/config.initConfig establishes, with SetConfigType("json")
// instead of the teacher's implicit YAML.
func initViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}
	return v, nil
}

// bindEnv maps each PascalCase key this package reads to an explicit,
// conventionally-spelled SCREAMING_SNAKE_CASE environment variable
// (e.g. UdpIpAddress -> DOIP_UDP_IP_ADDRESS). AutomaticEnv's own key
// derivation only uppercases the key and applies the "."->"_" replacer,
// so without an explicit binding "UdpIpAddress" would look up
// DOIP_UDPIPADDRESS, not the underscored form operators expect.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("UdpIpAddress", "DOIP_UDP_IP_ADDRESS")
	_ = v.BindEnv("UdpBroadcastAddress", "DOIP_UDP_BROADCAST_ADDRESS")
	_ = v.BindEnv("Logging.Level", "DOIP_LOGGING_LEVEL")
	_ = v.BindEnv("Logging.Structured", "DOIP_LOGGING_STRUCTURED")
	_ = v.BindEnv("Logging.StructuredFormat", "DOIP_LOGGING_STRUCTURED_FORMAT")
	_ = v.BindEnv("Logging.IncludePID", "DOIP_LOGGING_INCLUDE_PID")
}

// setDefaults uses the same PascalCase key spelling as the json/mapstructure
// tags in types.go. Viper's key-insensitivization only lowercases map keys —
// it never inserts or removes underscores — so a snake_case default key
// here would never be looked up by the matching PascalCase Get call below.
func setDefaults(v *viper.Viper) {
	v.SetDefault("UdpIpAddress", "0.0.0.0")
	v.SetDefault("UdpBroadcastAddress", "255.255.255.255")
	v.SetDefault("Conversations", []map[string]any{})
	v.SetDefault("Logging.Level", "INFO")
	v.SetDefault("Logging.Structured", false)
	v.SetDefault("Logging.StructuredFormat", "json")
	v.SetDefault("Logging.IncludePID", false)
}

// Load reads configuration from a JSON file with environment-variable
// overrides (priority: env > file > defaults), the teacher's
// internal/config.Load entrypoint retargeted to JSON.
func Load(path string) (*Config, error) {
	v, err := initViper(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.UdpIPAddress = v.GetString("UdpIpAddress")
	cfg.UdpBroadcastAddress = v.GetString("UdpBroadcastAddress")
	cfg.Logging.Level = strings.ToUpper(v.GetString("Logging.Level"))
	cfg.Logging.Structured = v.GetBool("Logging.Structured")
	cfg.Logging.StructuredFormat = v.GetString("Logging.StructuredFormat")
	cfg.Logging.IncludePID = v.GetBool("Logging.IncludePID")

	if err := v.UnmarshalKey("Conversations", &cfg.Conversations); err != nil {
		return nil, fmt.Errorf("config: failed to parse conversations: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the structural invariants Load cannot express through
// viper defaults alone: unique conversation names, and non-zero P2/rx
// buffer settings (spec.md §3 Conversation invariants).
func Validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Conversations))
	for _, c := range cfg.Conversations {
		if c.ConversationName == "" {
			return fmt.Errorf("config: conversation with empty ConversationName")
		}
		if seen[c.ConversationName] {
			return fmt.Errorf("config: duplicate ConversationName %q", c.ConversationName)
		}
		seen[c.ConversationName] = true
		if c.P2ClientMax == 0 {
			return fmt.Errorf("config: conversation %q: P2ClientMax must be non-zero", c.ConversationName)
		}
		if c.RxBufferSize == 0 {
			return fmt.Errorf("config: conversation %q: RxBufferSize must be non-zero", c.ConversationName)
		}
	}
	return nil
}
