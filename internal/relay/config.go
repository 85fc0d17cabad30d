package relay

import (
	"fmt"
	"net"
	"os"

	"github.com/BurntSushi/toml"

	"cryptex/internal/protocol/wire"
)

// Logging is the operational log configuration.
type Logging struct {
	Disable bool
	File    string
	Level   string
}

// Audit is the security audit log configuration.
type Audit struct {
	File string
}

// Metrics configures the optional Prometheus exposition endpoint.
type Metrics struct {
	Enable bool
	Addr   string
}

// Config is the relay daemon configuration.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string
	// MaxFrameBytes bounds the per-connection reassembly buffer.
	MaxFrameBytes int

	Logging Logging
	Audit   Audit
	Metrics Metrics
}

// DefaultAddr is used when the config names no listen address.
const DefaultAddr = "0.0.0.0:5555"

// Validate applies defaults and rejects unusable values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("config: invalid Addr: %w", err)
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = wire.DefaultMaxFrame
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "NOTICE"
	}
	if c.Audit.File == "" {
		c.Audit.File = "security_audit.log"
	}
	if c.Metrics.Enable && c.Metrics.Addr == "" {
		c.Metrics.Addr = ":6543"
	}
	return nil
}

// Load parses and validates the provided buffer as a config file body.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
