package dispatch

import (
	"fmt"

	"github.com/kilianp07/fleetassign/core/model"
)

// Config defines assignment related settings.
type Config struct {
	DefaultStrategy string `json:"default_strategy"`
	// MaxActiveMissions caps the active missions per vehicle. Nil means
	// DefaultMaxActiveMissions, zero disables the cap.
	MaxActiveMissions *int    `json:"max_active_missions"`
	Weights           Weights `json:"weights"`
	AverageSpeedKmh   float64 `json:"average_speed_kmh"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = string(model.StrategyNearest)
	}
	if c.MaxActiveMissions == nil {
		n := DefaultMaxActiveMissions
		c.MaxActiveMissions = &n
	}
	c.Weights.SetDefaults()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := model.ParseStrategy(c.DefaultStrategy, model.StrategyNearest); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if c.MaxActiveMissions != nil && *c.MaxActiveMissions < 0 {
		return fmt.Errorf("dispatch: max_active_missions must not be negative")
	}
	if c.AverageSpeedKmh < 0 {
		return fmt.Errorf("dispatch: average_speed_kmh must not be negative")
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	return nil
}

// MissionCap returns the effective active mission cap.
func (c Config) MissionCap() int {
	if c.MaxActiveMissions == nil {
		return DefaultMaxActiveMissions
	}
	return *c.MaxActiveMissions
}

// Strategy returns the parsed default strategy.
func (c Config) Strategy() model.Strategy {
	s, err := model.ParseStrategy(c.DefaultStrategy, model.StrategyNearest)
	if err != nil {
		return model.StrategyNearest
	}
	return s
}
