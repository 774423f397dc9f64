// Package config loads sqldivider configuration from defaults, a YAML file,
// SQLDIVIDER_ environment variables and command-line flags.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/bawdo/sqldivider/binding"
	"github.com/bawdo/sqldivider/decompose"
	"github.com/bawdo/sqldivider/engine"
	"github.com/bawdo/sqldivider/handoff"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "SQLDIVIDER_"

// DefaultConfigFile is looked up in the working directory when no explicit
// config file is given.
const DefaultConfigFile = "sqldivider.yaml"

// Config holds all configuration options.
type Config struct {
	SettingsPath       string        `koanf:"settings_path"`
	HistoryFile        string        `koanf:"history_file"`
	Pattern            string        `koanf:"pattern"`
	LogLevel           string        `koanf:"log_level"`
	MaxRows            int           `koanf:"max_rows"`
	HandoffTimeout     time.Duration `koanf:"handoff_timeout"`
	HandoffInterval    time.Duration `koanf:"handoff_interval"`
	DecomposeCacheSize int           `koanf:"decompose_cache_size"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// Defaults returns the built-in values.
func Defaults() map[string]any {
	dir := dataDir()
	return map[string]any{
		"settings_path":        filepath.Join(dir, "settings.db"),
		"history_file":         filepath.Join(dir, "history"),
		"pattern":              binding.MyBatis.String(),
		"log_level":            "warn",
		"max_rows":             engine.DefaultMaxRows,
		"handoff_timeout":      handoff.DefaultTimeout.String(),
		"handoff_interval":     handoff.DefaultInterval.String(),
		"decompose_cache_size": decompose.DefaultCacheSize,
	}
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".sqldivider")
}

// Load reads configuration. Precedence, highest first: flags that were set
// explicitly, environment variables, the config file, defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			cfgFile = DefaultConfigFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// SQLDIVIDER_MAX_ROWS -> max_rows
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = cfgFile

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted silently.
func (c *Config) Validate() error {
	if _, err := binding.ParsePattern(c.Pattern); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must not be negative, got %d", c.MaxRows)
	}
	if c.HandoffTimeout <= 0 {
		return fmt.Errorf("handoff_timeout must be positive, got %s", c.HandoffTimeout)
	}
	if c.HandoffInterval <= 0 {
		return fmt.Errorf("handoff_interval must be positive, got %s", c.HandoffInterval)
	}
	return nil
}

// BindPattern returns the configured placeholder pattern.
func (c *Config) BindPattern() binding.Pattern {
	p, err := binding.ParsePattern(c.Pattern)
	if err != nil {
		return binding.MyBatis
	}
	return p
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return l, nil
}

// NewLogger returns a text logger on w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

type loggerKey struct{}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// GetLogger retrieves the logger from ctx, or a discard logger.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
