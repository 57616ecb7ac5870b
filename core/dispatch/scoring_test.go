package dispatch

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetassign/core/geo"
	"github.com/kilianp07/fleetassign/core/model"
)

func TestScoreOverloadedButOnlyCandidate(t *testing.T) {
	s := NewScorer(Weights{})
	o := model.Order{ID: "o1", Weight: 500}
	a := Candidate{Vehicle: model.Vehicle{ID: "A", CapacityKg: 400, Rating: 5}}
	b := Candidate{Vehicle: model.Vehicle{ID: "B", CapacityKg: 600, Rating: 5}}

	_, ok := s.Score(a, o)
	assert.False(t, ok, "vehicle A cannot carry 500kg")

	br, ok := s.Score(b, o)
	require.True(t, ok)
	assert.Equal(t, 0.0, br.Distance)
	assert.Equal(t, 50.0, br.Capacity)
	assert.Equal(t, 0.0, br.Rating)
	assert.Equal(t, 0.0, br.Load)
	assert.Equal(t, 50.0, br.Total)
	assert.False(t, br.DistanceKnown)
}

func TestScoreNeverComputedBelowWeight(t *testing.T) {
	s := NewScorer(DefaultWeights())
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		capacity := r.Float64() * 2000
		weight := r.Float64()*2000 + 0.001
		c := Candidate{Vehicle: model.Vehicle{ID: "v", CapacityKg: capacity, Rating: r.Float64() * 5}}
		b, ok := s.Score(c, model.Order{ID: "o", Weight: weight})
		if capacity < weight {
			if ok || b != (Breakdown{}) {
				t.Fatalf("capacity %.2f < weight %.2f scored %+v", capacity, weight, b)
			}
			continue
		}
		if !ok {
			t.Fatalf("capacity %.2f >= weight %.2f not scored", capacity, weight)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := NewScorer(DefaultWeights())
	o := model.Order{ID: "o", Weight: 120, Pickup: &model.Coordinates{Lat: 48.85, Lon: 2.35}}
	c := Candidate{
		Vehicle:        model.Vehicle{ID: "v", CapacityKg: 1000, Rating: 3.7},
		ActiveMissions: 2,
		DistanceKm:     12.5,
		DistanceKnown:  true,
	}
	first, ok := s.Score(c, o)
	require.True(t, ok)
	second, _ := s.Score(c, o)
	assert.Equal(t, first, second)
}

func TestScoreHigherRatingIsBetter(t *testing.T) {
	s := NewScorer(DefaultWeights())
	o := model.Order{ID: "o", Weight: 300}
	ratings := []float64{0, 1, 2.5, 3, 4.9, 5}
	for i := 1; i < len(ratings); i++ {
		lo := Candidate{Vehicle: model.Vehicle{ID: "lo", CapacityKg: 600, Rating: ratings[i-1]}}
		hi := Candidate{Vehicle: model.Vehicle{ID: "hi", CapacityKg: 600, Rating: ratings[i]}}
		bl, _ := s.Score(lo, o)
		bh, _ := s.Score(hi, o)
		if bh.Total >= bl.Total {
			t.Fatalf("rating %.1f scored %.2f, rating %.1f scored %.2f", ratings[i], bh.Total, ratings[i-1], bl.Total)
		}
	}
}

func TestScorePenalties(t *testing.T) {
	s := NewScorer(DefaultWeights())
	paris := model.Coordinates{Lat: 48.8566, Lon: 2.3522}
	versailles := model.Coordinates{Lat: 48.8049, Lon: 2.1204}
	dist := geo.Haversine(paris, versailles)

	b, ok := s.Score(Candidate{
		Vehicle:        model.Vehicle{ID: "v", CapacityKg: 1000, Rating: 4},
		ActiveMissions: 2,
		DistanceKm:     dist,
		DistanceKnown:  true,
	}, model.Order{ID: "o", Weight: 100})
	require.True(t, ok)
	assert.InDelta(t, dist*10, b.Distance, 1e-9)
	assert.Equal(t, 20.0, b.Capacity, "ratio 0.1 is underused")
	assert.Equal(t, 10.0, b.Rating)
	assert.Equal(t, 30.0, b.Load)
	assert.InDelta(t, dist*10+60, b.Total, 1e-9)
}

func TestScoreMidRangeRatioHasNoCapacityPenalty(t *testing.T) {
	s := NewScorer(DefaultWeights())
	b, ok := s.Score(Candidate{Vehicle: model.Vehicle{ID: "v", CapacityKg: 1000, Rating: 5}}, model.Order{ID: "o", Weight: 500})
	require.True(t, ok)
	assert.Equal(t, 0.0, b.Total)
}

func TestWeightsSetDefaults(t *testing.T) {
	var w Weights
	w.SetDefaults()
	assert.Equal(t, DefaultWeights(), w)

	partial := DefaultWeights()
	partial.UnderusePenalty = 0
	got := partial
	got.SetDefaults()
	assert.Equal(t, partial, got, "a zero penalty in a filled set is kept")
	assert.Equal(t, 0.0, NewScorer(partial).Weights.UnderusePenalty)
}

func TestWeightsValidate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())

	tests := []struct {
		name string
		mut  func(*Weights)
	}{
		{"negative rating", func(w *Weights) { w.RatingPerStar = -10 }},
		{"negative distance", func(w *Weights) { w.DistancePerKm = -1 }},
		{"negative load", func(w *Weights) { w.LoadPerMission = -15 }},
		{"negative overload penalty", func(w *Weights) { w.OverloadPenalty = -1 }},
		{"negative underuse penalty", func(w *Weights) { w.UnderusePenalty = -1 }},
		{"overload ratio zero", func(w *Weights) { w.OverloadRatio = 0 }},
		{"overload ratio above one", func(w *Weights) { w.OverloadRatio = 1.2 }},
		{"underuse ratio zero", func(w *Weights) { w.UnderuseRatio = 0 }},
		{"ratios inverted", func(w *Weights) { w.UnderuseRatio, w.OverloadRatio = 0.8, 0.3 }},
		{"ratios equal", func(w *Weights) { w.UnderuseRatio = w.OverloadRatio }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.mut(&w)
			if err := w.Validate(); err == nil {
				t.Fatalf("expected error for %+v", w)
			}
		})
	}
}

func TestConfigRejectsNegativeWeights(t *testing.T) {
	cfg := Config{Weights: Weights{RatingPerStar: -10}}
	cfg.SetDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rating_per_star")
}

func TestZeroUnderusePenaltyDisablesIt(t *testing.T) {
	w := DefaultWeights()
	w.UnderusePenalty = 0
	cfg := Config{Weights: w}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	b, ok := NewScorer(cfg.Weights).Score(Candidate{Vehicle: model.Vehicle{ID: "v", CapacityKg: 1000, Rating: 5}}, model.Order{ID: "o", Weight: 100})
	require.True(t, ok)
	assert.Equal(t, 0.0, b.Capacity)
	assert.Equal(t, 0.0, b.Total)
}
