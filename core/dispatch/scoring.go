package dispatch

import (
	"fmt"

	"github.com/kilianp07/fleetassign/core/model"
)

// Weights parameterises the scoring penalties.
type Weights struct {
	DistancePerKm   float64 `json:"distance_per_km"`
	OverloadPenalty float64 `json:"overload_penalty"`
	OverloadRatio   float64 `json:"overload_ratio"`
	UnderusePenalty float64 `json:"underuse_penalty"`
	UnderuseRatio   float64 `json:"underuse_ratio"`
	RatingPerStar   float64 `json:"rating_per_star"`
	LoadPerMission  float64 `json:"load_per_mission"`
}

// DefaultWeights returns the reference weights.
func DefaultWeights() Weights {
	return Weights{
		DistancePerKm:   10,
		OverloadPenalty: 50,
		OverloadRatio:   0.8,
		UnderusePenalty: 20,
		UnderuseRatio:   0.3,
		RatingPerStar:   10,
		LoadPerMission:  15,
	}
}

// SetDefaults installs the reference weights when w is entirely unset.
// A partially filled value is kept as is, so a zero weight switches its
// penalty off.
func (w *Weights) SetDefaults() {
	if *w == (Weights{}) {
		*w = DefaultWeights()
	}
}

// Validate rejects weights that could produce a negative score or an
// ambiguous capacity band.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"distance_per_km", w.DistancePerKm},
		{"overload_penalty", w.OverloadPenalty},
		{"underuse_penalty", w.UnderusePenalty},
		{"rating_per_star", w.RatingPerStar},
		{"load_per_mission", w.LoadPerMission},
	} {
		if f.v < 0 {
			return fmt.Errorf("weights: %s must not be negative", f.name)
		}
	}
	if w.OverloadRatio <= 0 || w.OverloadRatio > 1 {
		return fmt.Errorf("weights: overload_ratio must be in (0,1]")
	}
	if w.UnderuseRatio <= 0 || w.UnderuseRatio > 1 {
		return fmt.Errorf("weights: underuse_ratio must be in (0,1]")
	}
	if w.UnderuseRatio >= w.OverloadRatio {
		return fmt.Errorf("weights: underuse_ratio must be below overload_ratio")
	}
	return nil
}

// Candidate is a vehicle considered for an order together with the
// per-order facts the scorer needs.
type Candidate struct {
	Vehicle        model.Vehicle
	ActiveMissions int
	// DistanceKm is the vehicle to pickup distance. Only meaningful when
	// DistanceKnown is set.
	DistanceKm    float64
	DistanceKnown bool
}

// Breakdown details each penalty of a score. Lower totals are better.
type Breakdown struct {
	DistanceKm    float64 `json:"distance_km"`
	DistanceKnown bool    `json:"distance_known"`
	Distance      float64 `json:"distance_penalty"`
	Capacity      float64 `json:"capacity_penalty"`
	Rating        float64 `json:"rating_penalty"`
	Load          float64 `json:"load_penalty"`
	Total         float64 `json:"total"`
}

// Scorer computes the cost-like fitness of a vehicle for an order.
type Scorer struct {
	Weights Weights
}

// NewScorer returns a Scorer. Zero weights are replaced by DefaultWeights.
func NewScorer(w Weights) Scorer {
	w.SetDefaults()
	return Scorer{Weights: w}
}

// Score returns the penalty breakdown of c serving o. The boolean is false,
// and nothing is computed, when the vehicle cannot carry the order weight.
// An unknown distance contributes nothing.
func (s Scorer) Score(c Candidate, o model.Order) (Breakdown, bool) {
	capacity := c.Vehicle.CapacityKg
	if capacity <= 0 || capacity < o.Weight {
		return Breakdown{}, false
	}
	w := s.Weights
	var b Breakdown
	if c.DistanceKnown {
		b.DistanceKm = c.DistanceKm
		b.DistanceKnown = true
		b.Distance = c.DistanceKm * w.DistancePerKm
	}
	ratio := o.Weight / capacity
	switch {
	case ratio > w.OverloadRatio:
		b.Capacity = w.OverloadPenalty
	case ratio < w.UnderuseRatio:
		b.Capacity = w.UnderusePenalty
	}
	b.Rating = (model.MaxRating - c.Vehicle.Rating) * w.RatingPerStar
	b.Load = float64(c.ActiveMissions) * w.LoadPerMission
	b.Total = b.Distance + b.Capacity + b.Rating + b.Load
	return b, true
}
