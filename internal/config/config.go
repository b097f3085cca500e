// Package config loads sqlplan's YAML configuration file.
//
// The file is optional. When present it is validated against an embedded
// CUE schema before any field is used, so a typo or out-of-range value is
// reported with its path instead of being silently ignored.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlplan/internal/wire"
)

//go:embed schema.cue
var schemaCUE string

// AppName names the per-user config and data directory.
const AppName = "sqlplan"

// Defaults.
const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultLogLevel       = "info"
)

// Config is the resolved configuration.
type Config struct {
	// Store is the SQLite file holding profiles and history.
	Store string

	LogLevel    string
	DefaultPort uint16

	ConnectTimeout time.Duration

	// QueryTimeout bounds each query including the wait for the session.
	// Zero means no limit.
	QueryTimeout time.Duration

	Rewrite RewriteConfig
}

// RewriteConfig controls SELECT * rewriting.
type RewriteConfig struct {
	Enabled    bool
	Permissive bool
}

// file mirrors config.yaml. Pointers distinguish absent keys from zero values.
type file struct {
	Store          *string      `yaml:"store"`
	LogLevel       *string      `yaml:"log_level"`
	DefaultPort    *uint16      `yaml:"default_port"`
	ConnectTimeout *string      `yaml:"connect_timeout"`
	QueryTimeout   *string      `yaml:"query_timeout"`
	Rewrite        *rewriteFile `yaml:"rewrite"`
}

type rewriteFile struct {
	Enabled    *bool `yaml:"enabled"`
	Permissive *bool `yaml:"permissive"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Store:          defaultStorePath(),
		LogLevel:       DefaultLogLevel,
		DefaultPort:    wire.DefaultPort,
		ConnectTimeout: DefaultConnectTimeout,
		Rewrite:        RewriteConfig{Enabled: true},
	}
}

// DefaultPath returns <UserConfigDir>/sqlplan/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return AppName + ".db"
	}
	return filepath.Join(dir, AppName, AppName+".db")
}

// Load reads the file at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates and decodes YAML config data over the defaults.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var f file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return f.apply(Default())
}

func validate(raw map[string]any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (f *file) apply(cfg *Config) (*Config, error) {
	if f.Store != nil {
		cfg.Store = *f.Store
	}
	if f.LogLevel != nil {
		cfg.LogLevel = *f.LogLevel
	}
	if f.DefaultPort != nil {
		cfg.DefaultPort = *f.DefaultPort
	}
	if f.ConnectTimeout != nil {
		d, err := time.ParseDuration(*f.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = d
	}
	if f.QueryTimeout != nil {
		d, err := time.ParseDuration(*f.QueryTimeout)
		if err != nil {
			return nil, fmt.Errorf("query_timeout: %w", err)
		}
		cfg.QueryTimeout = d
	}
	if f.Rewrite != nil {
		if f.Rewrite.Enabled != nil {
			cfg.Rewrite.Enabled = *f.Rewrite.Enabled
		}
		if f.Rewrite.Permissive != nil {
			cfg.Rewrite.Permissive = *f.Rewrite.Permissive
		}
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog.Level; unknown names map to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
