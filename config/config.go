// Package config loads petcore runtime settings. Sources are layered, each
// overriding the previous one: built-in defaults, an optional YAML file,
// PETCORE_* environment variables, then command-line flags the user set.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/nathoo/petcore/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PETCORE_"

// Save backends.
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds the runtime settings of a petcore process.
type Config struct {
	// Game is a directory of .lua files or a .yaml game document.
	Game        string `koanf:"game" env:"GAME"`
	SaveBackend string `koanf:"save_backend" env:"SAVE_BACKEND"`
	SavePath    string `koanf:"save_path" env:"SAVE_PATH"`
	AutoSave    bool   `koanf:"auto_save" env:"AUTO_SAVE"`

	TaskInterval time.Duration `koanf:"task_interval" env:"TASK_INTERVAL"`
	// IdleInterval of zero disables idle animations.
	IdleInterval time.Duration `koanf:"idle_interval" env:"IDLE_INTERVAL"`
	MaxRetries   int           `koanf:"max_retries" env:"MAX_RETRIES"`
	// Seed of zero picks a random seed at startup.
	Seed int64 `koanf:"seed" env:"SEED"`

	LogFormat   string `koanf:"log_format" env:"LOG_FORMAT"`
	LogLevel    string `koanf:"log_level" env:"LOG_LEVEL"`
	MetricsAddr string `koanf:"metrics_addr" env:"METRICS_ADDR"`

	Plain     bool          `koanf:"plain" env:"PLAIN"`
	LineDelay time.Duration `koanf:"line_delay" env:"LINE_DELAY"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Game:         "games/pocketpet",
		SaveBackend:  BackendFile,
		SavePath:     "petcore-save.json",
		AutoSave:     true,
		TaskInterval: 500 * time.Millisecond,
		IdleInterval: 10 * time.Second,
		MaxRetries:   3,
		LogFormat:    "text",
		LogLevel:     "info",
	}
}

// RegisterFlags adds one flag per setting to fs, named like the YAML key
// with dashes.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("game", d.Game, "game definition: directory of .lua files or a .yaml file")
	fs.String("save-backend", d.SaveBackend, "save backend: file, sqlite or none")
	fs.String("save-path", d.SavePath, "save file or sqlite database path")
	fs.Bool("auto-save", d.AutoSave, "save the store after every change")
	fs.Duration("task-interval", d.TaskInterval, "delay before each queued task")
	fs.Duration("idle-interval", d.IdleInterval, "delay between idle animations (0 disables)")
	fs.Int("max-retries", d.MaxRetries, "attempts after the first before a task is dropped")
	fs.Int64("seed", d.Seed, "RNG seed (0 picks one)")
	fs.String("log-format", d.LogFormat, "log format: json or text")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
	fs.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address")
	fs.Bool("plain", d.Plain, "use the line-based driver instead of the terminal UI")
	fs.Duration("line-delay", d.LineDelay, "pause between narrated lines")
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when empty), the environment and the flags in fs that were set.
// fs may be nil.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("loading config file %s: %w", path, err)
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return cfg, fmt.Errorf("decoding config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if fs != nil {
		k := koanf.New(".")
		provider := posflag.ProviderWithFlag(fs, ".", nil, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return cfg, fmt.Errorf("loading flags: %w", err)
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return cfg, fmt.Errorf("decoding flags: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Game == "" {
		return fmt.Errorf("game is required")
	}
	switch c.SaveBackend {
	case BackendNone:
	case BackendFile, BackendSQLite:
		if c.SavePath == "" {
			return fmt.Errorf("save-path is required for the %s backend", c.SaveBackend)
		}
	default:
		return fmt.Errorf("save-backend must be 'file', 'sqlite' or 'none', got %q", c.SaveBackend)
	}
	if c.TaskInterval <= 0 {
		return fmt.Errorf("task-interval must be positive, got %s", c.TaskInterval)
	}
	if c.IdleInterval < 0 {
		return fmt.Errorf("idle-interval must not be negative, got %s", c.IdleInterval)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative, got %d", c.MaxRetries)
	}
	if c.LineDelay < 0 {
		return fmt.Errorf("line-delay must not be negative, got %s", c.LineDelay)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	return nil
}
