// Package config loads the notetaker config file.
//
// The format follows the extension: .yaml/.yml through gopkg.in/yaml.v3,
// .toml through BurntSushi/toml. Only keys present in the file override the
// defaults, and a relative dir is resolved against the file's directory.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/core"
)

// Config mirrors the keys of the config file.
type Config struct {
	Adapter     string `yaml:"adapter,omitempty" toml:"adapter,omitempty"`
	Mode        string `yaml:"mode,omitempty" toml:"mode,omitempty"`
	Dir         string `yaml:"dir,omitempty" toml:"dir,omitempty"`
	Pattern     string `yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	ReadOnly    bool   `yaml:"read_only,omitempty" toml:"read_only,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Token       string `yaml:"token,omitempty" toml:"token,omitempty"`
	EventBuffer int    `yaml:"event_buffer,omitempty" toml:"event_buffer,omitempty"`
	Verbose     bool   `yaml:"verbose,omitempty" toml:"verbose,omitempty"`

	// Path is the file the configuration was read from.
	Path string `yaml:"-" toml:"-"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %q", ext)
	}

	cfg.Path = path
	cfg.Adapter = strings.TrimSpace(cfg.Adapter)
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Dir != "" && !filepath.IsAbs(cfg.Dir) {
		cfg.Dir = filepath.Join(filepath.Dir(path), cfg.Dir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Discover finds the nearest config file above startDir and loads it.
// It returns (nil, nil) when there is none.
func Discover(startDir string) (*Config, error) {
	path, err := platform.FindConfig(startDir)
	if errors.Is(err, platform.ErrConfigNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Adapter {
	case "", platform.AdapterFS, platform.AdapterMemory, platform.AdapterRemote:
	default:
		return fmt.Errorf("unknown adapter: %s", c.Adapter)
	}
	if _, err := core.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("event_buffer must not be negative: %d", c.EventBuffer)
	}
	if c.Adapter == platform.AdapterRemote && c.Endpoint == "" {
		return fmt.Errorf("adapter %q needs an endpoint", c.Adapter)
	}
	return nil
}

// Options converts the file values into platform options. Unset values are
// left to the defaults.
func (c *Config) Options() []platform.Option {
	var opts []platform.Option
	if c.Adapter != "" {
		opts = append(opts, platform.WithAdapter(c.Adapter))
	}
	if mode, err := core.ParseMode(c.Mode); err == nil && c.Mode != "" {
		opts = append(opts, platform.WithMode(mode))
	}
	if c.Dir != "" {
		opts = append(opts, platform.WithDir(c.Dir))
	}
	if c.Pattern != "" {
		opts = append(opts, platform.WithPattern(c.Pattern))
	}
	if c.ReadOnly {
		opts = append(opts, platform.WithReadOnly(true))
	}
	if c.Endpoint != "" {
		opts = append(opts, platform.WithEndpoint(c.Endpoint))
	}
	if c.Token != "" {
		opts = append(opts, platform.WithToken(c.Token))
	}
	if c.EventBuffer > 0 {
		opts = append(opts, platform.WithEventBuffer(c.EventBuffer))
	}
	return opts
}
