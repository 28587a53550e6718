package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls a simulator run.
type Config struct {
	// Seed picks the flicker sequence. 1 reproduces the device; 0 is
	// treated as 1.
	Seed uint32 `yaml:"seed"`
	// TickMicros is the wall-clock length of one tick. 0 runs as fast as
	// the terminal allows.
	TickMicros int `yaml:"tick_us"`
	// Frames stops the run after this many flicker frames. 0 runs until
	// interrupted.
	Frames int `yaml:"frames"`
	// Width is the bar width in characters.
	Width int `yaml:"width"`
	// ShowRamp also prints the lighting-up ramp.
	ShowRamp bool   `yaml:"show_ramp"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig matches the pace of the original strobe at about 5us a tick.
func DefaultConfig() Config {
	return Config{
		Seed:       1,
		TickMicros: 5,
		Width:      48,
		LogLevel:   "info",
	}
}

// LoadConfig reads a YAML config over the defaults. An empty path returns
// the defaults.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, errors.New("parse " + path + ": " + err.Error())
	}
	return c, c.validate()
}

func (c Config) validate() error {
	if c.TickMicros < 0 {
		return errors.New("tick_us must not be negative")
	}
	if c.Frames < 0 {
		return errors.New("frames must not be negative")
	}
	if c.Width < 1 {
		return errors.New("width must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Tick returns the wall-clock tick length.
func (c Config) Tick() time.Duration {
	return time.Duration(c.TickMicros) * time.Microsecond
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.New("unknown log_level " + s)
}
