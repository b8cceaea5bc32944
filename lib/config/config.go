// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is not given.
const EnvironmentVariable = "CALAB_CONFIG"

// DefaultAppURL is the public CaTune deployment.
const DefaultAppURL = "https://miniscope.github.io/CaLab/CaTune/"

// Config is the master configuration for the calab CLI.
type Config struct {
	// Bridge configures the browser handoff used by "calab tune".
	Bridge BridgeConfig `yaml:"bridge"`

	// Log configures diagnostic output.
	Log LogConfig `yaml:"log"`

	// source is the file the config was loaded from, or empty.
	source string
}

// BridgeConfig configures the browser handoff.
type BridgeConfig struct {
	// AppURL is the CaTune deployment to open. Point it at a local
	// development server to test unreleased builds.
	// Default: the public deployment.
	AppURL string `yaml:"app_url"`

	// Port is the loopback port to bind. Zero picks an ephemeral port.
	// Default: 0
	Port int `yaml:"port"`

	// Timeout bounds the wait for exported parameters, as a Go
	// duration string ("10m", "90s"). Empty or "0" waits indefinitely.
	// Default: empty
	Timeout string `yaml:"timeout"`

	// OpenBrowser controls whether the default browser is launched.
	// Default: true
	OpenBrowser bool `yaml:"open_browser"`
}

// LogConfig configures diagnostic output.
type LogConfig struct {
	// Level is the minimum level logged: debug, info, warn, or error.
	// Default: warn
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			AppURL:      DefaultAppURL,
			OpenBrowser: true,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load loads configuration from the file named by CALAB_CONFIG. It fails
// if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your calab.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Values absent
// from the file keep their defaults. Unknown keys are rejected so a
// misspelled setting is not silently ignored.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.source = path

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve returns the configuration for a command: the file at
// flagPath if non-empty, otherwise the file named by CALAB_CONFIG if
// set, otherwise the defaults.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	return Default(), nil
}

// Source returns the path the configuration was loaded from, or an empty
// string for the defaults.
func (c *Config) Source() string {
	return c.source
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in string
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Bridge.AppURL = expandVars(c.Bridge.AppURL, vars)
	c.Bridge.Timeout = expandVars(c.Bridge.Timeout, vars)
	c.Log.Level = expandVars(c.Log.Level, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if parsed, err := url.Parse(c.Bridge.AppURL); err != nil || parsed.Host == "" ||
		(parsed.Scheme != "http" && parsed.Scheme != "https") {
		errs = append(errs, fmt.Errorf("bridge.app_url must be an absolute http or https URL, got %q", c.Bridge.AppURL))
	}
	if c.Bridge.Port < 0 || c.Bridge.Port > 65535 {
		errs = append(errs, fmt.Errorf("bridge.port must be between 0 and 65535, got %d", c.Bridge.Port))
	}
	if _, err := c.Bridge.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// TimeoutDuration parses Timeout. An empty value is zero.
func (b BridgeConfig) TimeoutDuration() (time.Duration, error) {
	if b.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(b.Timeout)
	if err != nil {
		return 0, fmt.Errorf("bridge.timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("bridge.timeout must not be negative, got %s", b.Timeout)
	}
	return timeout, nil
}

// SlogLevel parses Level. An empty value is warn.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", l.Level)
	}
}
