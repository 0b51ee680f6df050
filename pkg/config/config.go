// Package config loads the nodlang.yaml settings shared by the console and
// desktop hosts.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the settings file looked up next to the sources.
const FileName = "nodlang.yaml"

// Desktop holds the window settings of cmd/desktop.
type Desktop struct {
	Width         int `yaml:"width"`
	Height        int `yaml:"height"`
	StepsPerFrame int `yaml:"steps_per_frame"`
}

type Config struct {
	Strict   bool    `yaml:"strict"`
	LogLevel string  `yaml:"log_level"`
	MaxSteps int     `yaml:"max_steps"`
	ShowAsm  bool    `yaml:"show_asm"`
	Desktop  Desktop `yaml:"desktop"`
}

func Default() Config {
	return Config{
		LogLevel: "warn",
		MaxSteps: 1_000_000,
		Desktop: Desktop{
			Width:         1024,
			Height:        640,
			StepsPerFrame: 1,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps)
	}
	if c.Desktop.Width <= 0 || c.Desktop.Height <= 0 {
		return fmt.Errorf("desktop size must be positive, got %dx%d", c.Desktop.Width, c.Desktop.Height)
	}
	if c.Desktop.StepsPerFrame < 0 {
		return fmt.Errorf("desktop.steps_per_frame must not be negative, got %d", c.Desktop.StepsPerFrame)
	}
	return nil
}

// Level is the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps debug, info, warn and error to their slog level. An
// empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return l, nil
}
