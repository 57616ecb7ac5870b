package logging

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

func sampleRecords() []LogRecord {
	return []LogRecord{
		{
			RunID: "r1", Timestamp: base, Strategy: "nearest", Trigger: "api",
			Worklist: []string{"o1", "o2"},
			Outcomes: []OutcomeEntry{
				{OrderID: "o1", VehicleID: "v1", Score: 50, Reason: "assigned"},
				{OrderID: "o2", Reason: "no_eligible_vehicle"},
			},
		},
		{
			RunID: "r2", Timestamp: base.Add(time.Hour), Strategy: "load_balanced", Trigger: "scheduler",
			Worklist: []string{"o2"},
			Outcomes: []OutcomeEntry{{OrderID: "o2", VehicleID: "v2", Score: 30, Reason: "assigned"}},
		},
	}
}

func TestLogRecord_JSON(t *testing.T) {
	data, err := json.Marshal(sampleRecords()[0])
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"run_id", "timestamp", "strategy", "trigger", "worklist", "outcomes", "duration_ms"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %s", k)
		}
	}
}

func TestLogRecord_Matches(t *testing.T) {
	r := sampleRecords()[0]
	assert.True(t, r.Matches(LogQuery{}))
	assert.True(t, r.Matches(LogQuery{OrderID: "o2"}))
	assert.True(t, r.Matches(LogQuery{VehicleID: "v1"}))
	assert.False(t, r.Matches(LogQuery{OrderID: "o2", VehicleID: "v1"}))
	assert.False(t, r.Matches(LogQuery{Strategy: "load_balanced"}))
	assert.False(t, r.Matches(LogQuery{Start: base.Add(time.Minute)}))
	assert.False(t, r.Matches(LogQuery{End: base.Add(-time.Minute)}))
}

func exerciseStore(t *testing.T, s LogStore) {
	t.Helper()
	ctx := context.Background()
	for _, r := range sampleRecords() {
		require.NoError(t, s.Append(ctx, r))
	}

	all, err := s.Query(ctx, LogQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].RunID)
	assert.Equal(t, base, all[0].Timestamp.UTC())

	byOrder, err := s.Query(ctx, LogQuery{OrderID: "o2"})
	require.NoError(t, err)
	assert.Len(t, byOrder, 2)

	byVehicle, err := s.Query(ctx, LogQuery{VehicleID: "v2"})
	require.NoError(t, err)
	require.Len(t, byVehicle, 1)
	assert.Equal(t, "r2", byVehicle[0].RunID)

	byStrategy, err := s.Query(ctx, LogQuery{Strategy: "nearest"})
	require.NoError(t, err)
	require.Len(t, byStrategy, 1)
	assert.Equal(t, "r1", byStrategy[0].RunID)

	window, err := s.Query(ctx, LogQuery{Start: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, window, 1)

	last, err := s.Query(ctx, LogQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "r2", last[0].RunID)
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLStore_Query(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 5, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	big := make([]string, 20000)
	for i := range big {
		big[i] = "order-with-a-long-identifier"
	}
	rec := LogRecord{RunID: "big", Timestamp: base, Worklist: big}
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Append(context.Background(), rec))
	}
	files, _ := filepath.Glob(filepath.Join(dir, "runs*"))
	if len(files) < 2 {
		t.Fatalf("expected rotated files, got %v", files)
	}
	out, err := s.Query(context.Background(), LogQuery{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{Path: filepath.Join(dir, "a.jsonl")})
	require.NoError(t, err)
	assert.IsType(t, &JSONLStore{}, s)
	_ = s.Close()

	s, err = Open(Config{Path: filepath.Join(dir, "b.jsonl"), MaxSizeMB: 1})
	require.NoError(t, err)
	assert.IsType(t, &RotatingJSONLStore{}, s)
	_ = s.Close()

	s, err = Open(Config{Backend: "sqlite", Path: filepath.Join(dir, "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	_ = s.Close()

	_, err = Open(Config{Backend: "csv"})
	assert.Error(t, err)
}
