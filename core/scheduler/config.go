package scheduler

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetassign/core/model"
)

// Config defines the periodic auto-assignment settings.
type Config struct {
	Enabled           bool   `json:"enabled"`
	IntervalSeconds   int    `json:"interval_seconds"`
	Strategy          string `json:"strategy"`
	RunTimeoutSeconds int    `json:"run_timeout_seconds"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 60
	}
	if c.RunTimeoutSeconds == 0 {
		c.RunTimeoutSeconds = 30
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.IntervalSeconds < 0 {
		return fmt.Errorf("scheduler: interval_seconds must be positive")
	}
	if c.RunTimeoutSeconds < 0 {
		return fmt.Errorf("scheduler: run_timeout_seconds must be positive")
	}
	if _, err := model.ParseStrategy(c.Strategy, model.StrategyNearest); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}

// Interval returns the tick period.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RunTimeout bounds a single batch run.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}
