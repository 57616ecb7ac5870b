package dispatch

import (
	"context"

	"github.com/kilianp07/fleetassign/core/geo"
	"github.com/kilianp07/fleetassign/core/model"
)

// Selector picks the vehicle best suited to an order. It has no side
// effects: the result only becomes binding once committed.
type Selector struct {
	filter EligibilityFilter
	scorer Scorer
	geo    geo.Estimator
}

// NewSelector returns a Selector. A nil estimator falls back to the
// haversine estimator at the default speed.
func NewSelector(filter EligibilityFilter, scorer Scorer, est geo.Estimator) *Selector {
	if est == nil {
		est = geo.NewHaversineEstimator(0)
	}
	return &Selector{filter: filter, scorer: scorer, geo: est}
}

// Candidate builds the candidate of v for o, asking the estimator for the
// vehicle to pickup distance.
func (s *Selector) Candidate(ctx context.Context, v model.Vehicle, o model.Order, active int) (Candidate, error) {
	c := Candidate{Vehicle: v, ActiveMissions: active}
	est, ok, err := s.geo.Estimate(ctx, v.Position, o.Pickup)
	if err != nil {
		dependencyFailures.WithLabelValues("estimate").Inc()
		return c, dependencyErr("estimate distance", err)
	}
	if ok {
		c.DistanceKm = est.DistanceKm
		c.DistanceKnown = true
	}
	return c, nil
}

// Candidates scores every eligible vehicle of the snapshot, preserving input
// order.
func (s *Selector) Candidates(ctx context.Context, o model.Order, vehicles []model.Vehicle, active map[string]int) ([]Scored, error) {
	out := make([]Scored, 0, len(vehicles))
	for _, v := range s.filter.Eligible(vehicles, o, active) {
		c, err := s.Candidate(ctx, v, o, active[v.ID])
		if err != nil {
			return nil, err
		}
		b, ok := s.scorer.Score(c, o)
		if !ok {
			continue
		}
		out = append(out, Scored{Candidate: c, Breakdown: b})
	}
	return out, nil
}

// Select returns the winning candidate under p. ok is false when no vehicle
// is eligible.
func (s *Selector) Select(ctx context.Context, o model.Order, vehicles []model.Vehicle, active map[string]int, p Policy) (Scored, bool, error) {
	cands, err := s.Candidates(ctx, o, vehicles, active)
	if err != nil {
		return Scored{}, false, err
	}
	i := Best(p, cands, o)
	if i < 0 {
		return Scored{}, false, nil
	}
	return cands[i], true, nil
}
