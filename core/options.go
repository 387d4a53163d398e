package core

import (
	"time"
)

// Config holds engine configuration
type Config struct {
	ShutdownTimeout time.Duration
	RestartDelay    time.Duration
}

// EngineOption is a function that modifies engine configuration
type EngineOption func(*Config)

// defaultConfig returns default configuration
func defaultConfig() *Config {
	return &Config{
		ShutdownTimeout: 30 * time.Second,
		RestartDelay:    time.Second,
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout
func WithShutdownTimeout(d time.Duration) EngineOption {
	return func(c *Config) {
		c.ShutdownTimeout = d
	}
}

// WithRestartDelay sets the pause before a failed stage is restarted
func WithRestartDelay(d time.Duration) EngineOption {
	return func(c *Config) {
		c.RestartDelay = d
	}
}
