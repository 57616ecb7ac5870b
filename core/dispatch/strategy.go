package dispatch

import (
	"math"

	"github.com/kilianp07/fleetassign/core/model"
)

// Scored is an eligible candidate with its score.
type Scored struct {
	Candidate
	Breakdown Breakdown
}

// Policy ranks scored candidates. The candidate with the lowest key wins;
// ties fall back to the lowest score, then to input order.
type Policy interface {
	Strategy() model.Strategy
	Key(c Scored, o model.Order) float64
}

type nearestPolicy struct{}

func (nearestPolicy) Strategy() model.Strategy { return model.StrategyNearest }

func (nearestPolicy) Key(c Scored, _ model.Order) float64 { return c.Breakdown.Total }

type capacityFitPolicy struct{}

func (capacityFitPolicy) Strategy() model.Strategy { return model.StrategyBestCapacityFit }

func (capacityFitPolicy) Key(c Scored, o model.Order) float64 {
	return math.Abs(c.Vehicle.CapacityKg - o.Weight)
}

type loadBalancedPolicy struct{}

func (loadBalancedPolicy) Strategy() model.Strategy { return model.StrategyLoadBalanced }

func (loadBalancedPolicy) Key(c Scored, _ model.Order) float64 { return float64(c.ActiveMissions) }

var policies = map[model.Strategy]Policy{
	model.StrategyNearest:         nearestPolicy{},
	model.StrategyBestCapacityFit: capacityFitPolicy{},
	model.StrategyLoadBalanced:    loadBalancedPolicy{},
}

// PolicyFor returns the policy implementing s.
func PolicyFor(s model.Strategy) (Policy, error) {
	p, ok := policies[s]
	if !ok {
		return nil, validationErr("unknown strategy %q", s)
	}
	return p, nil
}

// Best returns the index of the winning candidate, or -1 when cands is
// empty.
func Best(p Policy, cands []Scored, o model.Order) int {
	best := -1
	var bestKey float64
	for i, c := range cands {
		key := p.Key(c, o)
		if best < 0 || key < bestKey || (key == bestKey && c.Breakdown.Total < cands[best].Breakdown.Total) {
			best, bestKey = i, key
		}
	}
	return best
}
