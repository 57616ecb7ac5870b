//go:build integration

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/fleetassign/core/model"
	corestore "github.com/kilianp07/fleetassign/core/store"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "fleet",
			"POSTGRES_PASSWORD": "fleet",
			"POSTGRES_DB":       "fleet",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://fleet:fleet@%s:%s/fleet?sslmode=disable", host, port.Port())
}

func TestPostgresStoreAssignmentFlow(t *testing.T) {
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, startPostgres(t))
	require.NoError(t, err)
	defer s.Close()

	pos := &model.Coordinates{Lat: 48.85, Lon: 2.35}
	require.NoError(t, s.Seed(ctx, corestore.Fixtures{
		Vehicles: []model.Vehicle{
			{ID: "v1", OperatorID: "op1", CapacityKg: 1000, Available: true, Status: model.VehicleAvailable, Rating: 4.5, Position: pos},
			{ID: "v2", OperatorID: "op2", CapacityKg: 1000, Available: true, Status: model.VehicleAvailable, Rating: 4},
		},
	}))

	created := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	o, err := s.CreateOrder(ctx, model.Order{ClientID: "c1", Weight: 120, Pickup: pos, CreatedAt: created})
	require.NoError(t, err)
	assert.Equal(t, "CMD202405020001", o.Number)
	assert.Equal(t, model.StatusPending, o.Status)
	o2, err := s.CreateOrder(ctx, model.Order{ClientID: "c1", Weight: 50, CreatedAt: created.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, "CMD202405020002", o2.Number)

	pending, err := s.ListOrders(ctx, corestore.OrderFilter{Status: model.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, o.ID, pending[0].ID)
	assert.Equal(t, *pos, *pending[0].Pickup)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, vid := range []string{"v1", "v2"} {
		wg.Add(1)
		go func(vid string) {
			defer wg.Done()
			_, err := s.AssignOrder(ctx, corestore.AssignRequest{
				OrderID:   o.ID,
				VehicleID: vid,
				Entry:     model.TrackingEntry{OrderID: o.ID, VehicleID: vid, Kind: model.TrackVehicleAssigned, Timestamp: created.Add(30 * time.Minute)},
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, corestore.ErrConflict)
		}(vid)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAssigned, got.Status)
	assert.Equal(t, int64(2), got.Version)

	counts, err := s.ActiveMissionCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[got.VehicleID])

	_, err = s.AssignOrder(ctx, corestore.AssignRequest{
		OrderID:   o2.ID,
		VehicleID: got.VehicleID,
		Guard: func(v model.Vehicle, active int) error {
			if active >= 1 {
				return fmt.Errorf("busy")
			}
			return nil
		},
	})
	assert.ErrorIs(t, err, corestore.ErrConflict)

	_, err = s.UpdateStatus(ctx, corestore.StatusUpdate{OrderID: o.ID, From: model.StatusPending, To: model.StatusCancelled})
	assert.ErrorIs(t, err, corestore.ErrConflict)
	_, err = s.UpdateStatus(ctx, corestore.StatusUpdate{
		OrderID: o.ID, From: model.StatusAssigned, To: model.StatusPickedUp,
		Entry: model.TrackingEntry{Kind: model.TrackPickedUp, Timestamp: created.Add(time.Hour)},
	})
	require.NoError(t, err)

	entries, err := s.Tracking(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, model.TrackPickedUp, entries[0].Kind)
	assert.Equal(t, model.TrackOrderCreated, entries[2].Kind)

	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, corestore.ErrNotFound)
	assert.ErrorIs(t, s.UpdatePosition(ctx, "missing", *pos, created), corestore.ErrNotFound)
}
