package model

import "fmt"

// Strategy selects how a vehicle is picked among eligible candidates.
type Strategy string

const (
	StrategyNearest         Strategy = "nearest"
	StrategyBestCapacityFit Strategy = "best_capacity_fit"
	StrategyLoadBalanced    Strategy = "load_balanced"
)

// String returns the wire name of the strategy.
func (s Strategy) String() string { return string(s) }

// ParseStrategy converts a wire name to a Strategy. The empty string yields
// def.
func ParseStrategy(s string, def Strategy) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return def, nil
	case StrategyNearest, StrategyBestCapacityFit, StrategyLoadBalanced:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}
