// Package config loads gitscope settings from the user config directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks a config file that exists but cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds user-tunable settings. Zero or out-of-range values fall
// back to the defaults during Load.
type Config struct {
	// GitBin is the git executable used for mutations. Empty means
	// "git" resolved through PATH.
	GitBin string `yaml:"git_bin"`
	// LogLimit caps how many commits the log command renders by
	// default. Zero or negative selects the built-in limit.
	LogLimit int `yaml:"log_limit"`
	// WatchDebounceMS is the quiet period, in milliseconds, between a
	// filesystem change and a reload while watching.
	WatchDebounceMS int `yaml:"watch_debounce_ms"`
	// Color controls ANSI output: "auto", "always" or "never".
	Color string `yaml:"color"`
	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		GitBin:          "git",
		LogLimit:        500,
		WatchDebounceMS: 350,
		Color:           "auto",
	}
}

// Path returns the location of the config file, normally
// ~/.config/gitscope/config.yaml on Linux.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "gitscope", "config.yaml"), nil
}

// Load reads the config file from Path. A missing file is not an
// error; the defaults are returned instead.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Default(), err
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the config file at path, falling back
// to the defaults when the file does not exist.
func LoadFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return normalize(cfg), nil
}

func normalize(cfg Config) Config {
	out := Default()
	if cfg.GitBin != "" {
		out.GitBin = cfg.GitBin
	}
	if cfg.LogLimit > 0 {
		out.LogLimit = cfg.LogLimit
	}
	if cfg.WatchDebounceMS > 0 {
		out.WatchDebounceMS = cfg.WatchDebounceMS
	}
	switch cfg.Color {
	case "always", "never":
		out.Color = cfg.Color
	}
	out.Verbose = cfg.Verbose
	return out
}

// DebounceDelay converts WatchDebounceMS into a duration.
func (c Config) DebounceDelay() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}
