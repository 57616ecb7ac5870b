package geo

import (
	"context"
	"math"

	"github.com/kilianp07/fleetassign/core/model"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Estimate is a distance and travel-time estimate between two points.
type Estimate struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// Estimator returns travel estimates. ok is false when either coordinate is
// unknown; err is reserved for provider failures.
type Estimator interface {
	Estimate(ctx context.Context, from, to *model.Coordinates) (est Estimate, ok bool, err error)
}

// Haversine returns the great-circle distance in kilometres between a and b.
func Haversine(a, b model.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// HaversineEstimator derives the travel time from the great-circle distance
// and a constant average speed.
type HaversineEstimator struct {
	SpeedKmh float64
}

// DefaultSpeedKmh is the average road speed used when none is configured.
const DefaultSpeedKmh = 60.0

// NewHaversineEstimator returns an estimator using speedKmh, or
// DefaultSpeedKmh when speedKmh is not positive.
func NewHaversineEstimator(speedKmh float64) HaversineEstimator {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return HaversineEstimator{SpeedKmh: speedKmh}
}

// Estimate implements Estimator.
func (h HaversineEstimator) Estimate(ctx context.Context, from, to *model.Coordinates) (Estimate, bool, error) {
	if from == nil || to == nil {
		return Estimate{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return Estimate{}, false, err
	}
	speed := h.SpeedKmh
	if speed <= 0 {
		speed = DefaultSpeedKmh
	}
	d := Haversine(*from, *to)
	return Estimate{DistanceKm: d, DurationMinutes: d / speed * 60}, true, nil
}
