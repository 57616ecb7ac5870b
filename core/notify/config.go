package notify

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetassign/core/factory"
)

// Config controls the asynchronous dispatcher and the configured sinks.
type Config struct {
	Workers       int                    `json:"workers"`
	QueueSize     int                    `json:"queue_size"`
	TimeoutMS     int                    `json:"timeout_ms"`
	RatePerSecond float64                `json:"rate_per_second"`
	Sinks         []factory.ModuleConfig `json:"sinks"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 2000
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []factory.ModuleConfig{{Type: "log"}}
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.RatePerSecond < 0 {
		return fmt.Errorf("notify: rate_per_second must not be negative")
	}
	return nil
}

// Timeout returns the per-send deadline.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
