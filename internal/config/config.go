// Package config loads the agent configuration from TOML.
//
// Example file:
//
//	[stack]
//	depth = 10
//
//	[dump]
//	path = "/tmp/contention.trace"
//	queue_size = 4096
//	flush_interval = "1s"
//
//	[log]
//	level = "info"
//	format = "text"
//
// Missing keys keep their defaults. Unknown keys are rejected.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/kolkov/monitortrace/internal/logging"
)

// Defaults.
const (
	DefaultStackDepth    = 10
	MaxStackDepth        = 256
	DefaultQueueSize     = 4096
	DefaultFlushInterval = time.Second
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the agent configuration.
type Config struct {
	Stack StackConfig `toml:"stack"`
	Dump  DumpConfig  `toml:"dump"`
	Log   LogConfig   `toml:"log"`
}

// StackConfig configures stack snapshots.
type StackConfig struct {
	// Depth is the maximum number of frames per snapshot.
	Depth int `toml:"depth"`
}

// DumpConfig configures the record dumper.
type DumpConfig struct {
	// Path is the output file. Empty selects a per-session file in the
	// temporary directory.
	Path          string   `toml:"path"`
	QueueSize     int      `toml:"queue_size"`
	FlushInterval Duration `toml:"flush_interval"`
}

// LogConfig configures the diagnostic logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a string ("250ms", "1s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Stack: StackConfig{Depth: DefaultStackDepth},
		Dump: DumpConfig{
			QueueSize:     DefaultQueueSize,
			FlushInterval: Duration{DefaultFlushInterval},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := checkUndecoded(meta); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults and validates the result.
func Parse(data string) (Config, error) {
	cfg := Default()
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := checkUndecoded(meta); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func checkUndecoded(meta toml.MetaData) error {
	keys := meta.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return fmt.Errorf("%w: unknown keys: %s", ErrInvalid, strings.Join(names, ", "))
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Stack.Depth < 1 || c.Stack.Depth > MaxStackDepth {
		return fmt.Errorf("%w: [stack].depth must be in 1..%d, got %d", ErrInvalid, MaxStackDepth, c.Stack.Depth)
	}
	if c.Dump.QueueSize < 1 {
		return fmt.Errorf("%w: [dump].queue_size must be positive, got %d", ErrInvalid, c.Dump.QueueSize)
	}
	if c.Dump.FlushInterval.Duration <= 0 {
		return fmt.Errorf("%w: [dump].flush_interval must be positive, got %s", ErrInvalid, c.Dump.FlushInterval)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: [log].level: %v", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: [log].format must be \"text\" or \"json\", got %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Logging returns the logger configuration for output w.
func (c Config) Logging(w io.Writer) logging.Config {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.Config{Level: level, Format: c.Log.Format, Output: w}
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
