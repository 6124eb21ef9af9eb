package config

import (
	"fmt"
	"time"

	"github.com/pithecene-io/ferry/forge"
	"github.com/pithecene-io/ferry/retry"
	"github.com/pithecene-io/ferry/transport"
)

// Config represents a ferry.yaml configuration file.
// CLI flags always override config values.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Listen   ListenConfig   `yaml:"listen"`
	Retry    RetryConfig    `yaml:"retry"`
	Forge    ForgeConfig    `yaml:"forge"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Adapter  AdapterConfig  `yaml:"adapter"`
	LogLevel string         `yaml:"log_level"`
}

// EngineConfig locates the automation engine.
type EngineConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	PushPort    int      `yaml:"push_port"`
	CallTimeout Duration `yaml:"call_timeout"`
	DialTimeout Duration `yaml:"dial_timeout"`
}

// ListenConfig tunes the push channel.
type ListenConfig struct {
	IncludeFeed    bool     `yaml:"include_feed"`
	ReconnectDelay Duration `yaml:"reconnect_delay"`
	ErrorLogRate   float64  `yaml:"error_log_rate"`
	ErrorLogBurst  int      `yaml:"error_log_burst"`
}

// RetryConfig bounds retried reads.
type RetryConfig struct {
	Attempts int      `yaml:"attempts"`
	Delay    Duration `yaml:"delay"`
}

// ForgeConfig selects the forgery row slot.
type ForgeConfig struct {
	Database string   `yaml:"database"`
	Slot     int64    `yaml:"slot"`
	Settle   Duration `yaml:"settle"`
}

// SnapshotConfig holds row snapshot storage settings.
// An empty Backend disables snapshots.
type SnapshotConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds push bridge settings. An empty Type disables it.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
	// SplitRooms publishes group messages on per-room redis channels.
	SplitRooms bool `yaml:"split_rooms,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the engine defaults: 127.0.0.1:10086, MSG0.db slot 55,
// a 1s settle and five retried reads one second apart.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Host:        transport.DefaultHost,
			Port:        transport.DefaultPort,
			DialTimeout: Duration{transport.DefaultDialTimeout},
		},
		Listen: ListenConfig{
			ReconnectDelay: Duration{transport.DefaultReconnectDelay},
			ErrorLogRate:   transport.DefaultErrorLogRate,
			ErrorLogBurst:  transport.DefaultErrorLogBurst,
		},
		Retry: RetryConfig{
			Attempts: retry.DefaultPolicy.Attempts,
			Delay:    Duration{retry.DefaultPolicy.Delay},
		},
		Forge: ForgeConfig{
			Database: forge.DefaultDatabase,
			Slot:     forge.DefaultSlot,
			Settle:   Duration{forge.DefaultSettle},
		},
		LogLevel: "info",
	}
}

// Validate rejects values no component accepts.
func (c *Config) Validate() error {
	if c.Engine.Port < 0 || c.Engine.Port > 65535 {
		return fmt.Errorf("engine.port out of range: %d", c.Engine.Port)
	}
	if c.Engine.PushPort < 0 || c.Engine.PushPort > 65535 {
		return fmt.Errorf("engine.push_port out of range: %d", c.Engine.PushPort)
	}
	if c.Retry.Attempts < 0 {
		return fmt.Errorf("retry.attempts must be >= 0, got %d", c.Retry.Attempts)
	}
	switch c.Snapshot.Backend {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("snapshot.backend must be fs or s3, got %q", c.Snapshot.Backend)
	}
	if c.Snapshot.Backend != "" && c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path is required for backend %s", c.Snapshot.Backend)
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		return fmt.Errorf("adapter.type must be webhook or redis, got %q", c.Adapter.Type)
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		return fmt.Errorf("adapter.url is required for adapter %s", c.Adapter.Type)
	}
	return nil
}

// TransportConfig returns the engine connection settings.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		Host:           c.Engine.Host,
		Port:           c.Engine.Port,
		PushPort:       c.Engine.PushPort,
		CallTimeout:    c.Engine.CallTimeout.Duration,
		DialTimeout:    c.Engine.DialTimeout.Duration,
		ReconnectDelay: c.Listen.ReconnectDelay.Duration,
		ErrorLogRate:   c.Listen.ErrorLogRate,
		ErrorLogBurst:  c.Listen.ErrorLogBurst,
	}
}

// RetryPolicy returns the retried-read policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{Attempts: c.Retry.Attempts, Delay: c.Retry.Delay.Duration}
}

// ForgeConfig returns the forgery slot settings.
func (c *Config) ForgeConfig() forge.Config {
	return forge.Config{
		Database: c.Forge.Database,
		Slot:     c.Forge.Slot,
		Settle:   c.Forge.Settle.Duration,
	}
}
