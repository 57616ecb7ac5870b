package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fleetassign/core/metrics"
	"github.com/kilianp07/fleetassign/infra/logger"
)

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes assignment activity to an InfluxDB instance.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAssignments writes one point per order outcome.
func (s *InfluxSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(recs))
	for _, r := range recs {
		p := write.NewPointWithMeasurement("assignment_outcome").
			AddTag("order_id", r.OrderID).
			AddTag("strategy", r.Strategy.String()).
			AddTag("reason", r.Reason).
			AddTag("run_id", r.RunID).
			AddField("score", round3(r.Score)).
			SetTime(r.Time)
		if r.VehicleID != "" {
			p = p.AddTag("vehicle_id", r.VehicleID)
		}
		points = append(points, p)
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

func (s *InfluxSink) RecordBatch(sum coremetrics.BatchSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("assignment_batch").
		AddTag("run_id", sum.RunID).
		AddTag("strategy", sum.Strategy.String()).
		AddTag("trigger", sum.Trigger).
		AddField("orders", sum.Orders).
		AddField("assigned", sum.Assigned).
		AddField("mean_score", round3(sum.MeanScore)).
		AddField("min_score", round3(sum.MinScore)).
		AddField("max_score", round3(sum.MaxScore)).
		AddField("duration_ms", round3(sum.Duration.Seconds()*1000)).
		SetTime(sum.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordStatusChange(ev coremetrics.StatusChange) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("order_status_change").
		AddTag("order_id", ev.OrderID).
		AddTag("from", string(ev.From)).
		AddTag("to", string(ev.To)).
		AddField("vehicle_id", ev.VehicleID).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
