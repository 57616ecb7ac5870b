// Package store provides the PostgreSQL implementation of the order and
// vehicle repository.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/fleetassign/core/model"
	corestore "github.com/kilianp07/fleetassign/core/store"
)

const (
	orderColumns = `id, number, client_id, weight, volume, pickup_lat, pickup_lon,
	dropoff_lat, dropoff_lon, priority, status, COALESCE(vehicle_id, ''), created_at, version`
	vehicleColumns = `id, operator_id, plate, capacity_kg, capacity_m3, lat, lon,
	position_at, available, status, rating`
	activeStatuses = `('assigned', 'in_transit', 'delivering')`
)

// PostgresStore implements core/store.Store on PostgreSQL. Assignments lock
// the order row then the vehicle row, so concurrent commits on different
// vehicles never wait on each other.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ corestore.Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and creates the schema when missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := &PostgresStore{pool: pool, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (model.Order, error) {
	var (
		o                    model.Order
		pLat, pLon, dLat, dL *float64
	)
	err := row.Scan(&o.ID, &o.Number, &o.ClientID, &o.Weight, &o.Volume, &pLat, &pLon,
		&dLat, &dL, &o.Priority, &o.Status, &o.VehicleID, &o.CreatedAt, &o.Version)
	if err != nil {
		return model.Order{}, err
	}
	o.Pickup = coords(pLat, pLon)
	o.Dropoff = coords(dLat, dL)
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

func scanVehicle(row scanner) (model.Vehicle, error) {
	var (
		v        model.Vehicle
		lat, lon *float64
		at       *time.Time
	)
	err := row.Scan(&v.ID, &v.OperatorID, &v.Plate, &v.CapacityKg, &v.CapacityM3, &lat, &lon,
		&at, &v.Available, &v.Status, &v.Rating)
	if err != nil {
		return model.Vehicle{}, err
	}
	v.Position = coords(lat, lon)
	if at != nil {
		v.PositionAt = at.UTC()
	}
	return v, nil
}

func coords(lat, lon *float64) *model.Coordinates {
	if lat == nil || lon == nil {
		return nil
	}
	return &model.Coordinates{Lat: *lat, Lon: *lon}
}

func latLon(c *model.Coordinates) (any, any) {
	if c == nil {
		return nil, nil
	}
	return c.Lat, c.Lon
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, corestore.ErrNotFound)
	}
	return err
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (model.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return model.Order{}, notFound("order", id, err)
	}
	return o, nil
}

func (s *PostgresStore) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	v, err := scanVehicle(s.pool.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id))
	if err != nil {
		return model.Vehicle{}, notFound("vehicle", id, err)
	}
	return v, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, f corestore.OrderFilter) ([]model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE ($1 = '' OR status = $1)
		AND (cardinality($2::text[]) = 0 OR id = ANY($2))
		ORDER BY created_at, id`
	ids := f.IDs
	if ids == nil {
		ids = []string{}
	}
	rows, err := s.pool.Query(ctx, q, string(f.Status), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ActiveMissionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT vehicle_id, count(*) FROM orders
		WHERE vehicle_id IS NOT NULL AND status IN `+activeStatuses+` GROUP BY vehicle_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = model.StatusPending
	}
	if o.Priority == "" {
		o.Priority = model.PriorityNormal
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	o.CreatedAt = o.CreatedAt.UTC()
	if err := o.Validate(); err != nil {
		return model.Order{}, err
	}
	o.Version = 1

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if o.Number == "" {
		var seq int
		err := tx.QueryRow(ctx, `INSERT INTO order_numbers (day, seq) VALUES ($1, 1)
			ON CONFLICT (day) DO UPDATE SET seq = order_numbers.seq + 1 RETURNING seq`,
			o.CreatedAt.Format("20060102")).Scan(&seq)
		if err != nil {
			return model.Order{}, err
		}
		o.Number = corestore.OrderNumber(o.CreatedAt, seq)
	}
	if err := insertOrder(ctx, tx, o); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Order{}, fmt.Errorf("order %s already exists: %w", o.ID, corestore.ErrConflict)
		}
		return model.Order{}, err
	}
	entry := model.TrackingEntry{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Kind:      model.TrackOrderCreated,
		Position:  o.Pickup,
		Timestamp: o.CreatedAt,
	}
	if err := insertEntry(ctx, tx, o.ID, entry, s.now); err != nil {
		return model.Order{}, err
	}
	return o, tx.Commit(ctx)
}

func insertOrder(ctx context.Context, tx pgx.Tx, o model.Order) error {
	pLat, pLon := latLon(o.Pickup)
	dLat, dLon := latLon(o.Dropoff)
	var vehicle any
	if o.VehicleID != "" {
		vehicle = o.VehicleID
	}
	_, err := tx.Exec(ctx, `INSERT INTO orders (id, number, client_id, weight, volume,
		pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, priority, status, vehicle_id, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.Number, o.ClientID, o.Weight, o.Volume, pLat, pLon, dLat, dLon,
		string(o.Priority), string(o.Status), vehicle, o.CreatedAt, o.Version)
	return err
}

func (s *PostgresStore) UpsertVehicle(ctx context.Context, v model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	lat, lon := latLon(v.Position)
	var at any
	if !v.PositionAt.IsZero() {
		at = v.PositionAt
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO vehicles (`+vehicleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET operator_id = EXCLUDED.operator_id, plate = EXCLUDED.plate,
			capacity_kg = EXCLUDED.capacity_kg, capacity_m3 = EXCLUDED.capacity_m3,
			lat = EXCLUDED.lat, lon = EXCLUDED.lon, position_at = EXCLUDED.position_at,
			available = EXCLUDED.available, status = EXCLUDED.status, rating = EXCLUDED.rating`,
		v.ID, v.OperatorID, v.Plate, v.CapacityKg, v.CapacityM3, lat, lon, at, v.Available, string(v.Status), v.Rating)
	return err
}

func (s *PostgresStore) UpdatePosition(ctx context.Context, vehicleID string, pos model.Coordinates, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE vehicles SET lat = $2, lon = $3, position_at = $4 WHERE id = $1`,
		vehicleID, pos.Lat, pos.Lon, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vehicle %s: %w", vehicleID, corestore.ErrNotFound)
	}
	return nil
}

// AssignOrder locks the order row, then the vehicle row, so that the guard
// sees an active mission count no concurrent commit can change before this
// transaction ends.
func (s *PostgresStore) AssignOrder(ctx context.Context, req corestore.AssignRequest) (model.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status model.OrderStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, req.OrderID).Scan(&status); err != nil {
		return model.Order{}, notFound("order", req.OrderID, err)
	}
	v, err := scanVehicle(tx.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1 FOR UPDATE`, req.VehicleID))
	if err != nil {
		return model.Order{}, notFound("vehicle", req.VehicleID, err)
	}
	if status != model.StatusPending {
		return model.Order{}, fmt.Errorf("order %s is %s: %w", req.OrderID, status, corestore.ErrConflict)
	}
	if req.Guard != nil {
		var active int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM orders WHERE vehicle_id = $1 AND status IN `+activeStatuses, v.ID).Scan(&active); err != nil {
			return model.Order{}, err
		}
		if err := req.Guard(v, active); err != nil {
			return model.Order{}, fmt.Errorf("vehicle %s: %w: %w", v.ID, corestore.ErrConflict, err)
		}
	}
	o, err := scanOrder(tx.QueryRow(ctx, `UPDATE orders SET status = 'assigned', vehicle_id = $2, version = version + 1
		WHERE id = $1 AND status = 'pending' RETURNING `+orderColumns, req.OrderID, v.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, fmt.Errorf("order %s: %w", req.OrderID, corestore.ErrConflict)
		}
		return model.Order{}, err
	}
	if err := insertEntry(ctx, tx, o.ID, req.Entry, s.now); err != nil {
		return model.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, req corestore.StatusUpdate) (model.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, req.OrderID))
	if err != nil {
		return model.Order{}, notFound("order", req.OrderID, err)
	}
	if o.Status != req.From {
		return model.Order{}, fmt.Errorf("order %s is %s, expected %s: %w", o.ID, o.Status, req.From, corestore.ErrConflict)
	}
	o.Status = req.To
	switch {
	case req.To == model.StatusPending:
		o.VehicleID = ""
	case o.VehicleID == "" && req.VehicleID != "":
		o.VehicleID = req.VehicleID
	}
	if err := o.Validate(); err != nil {
		return model.Order{}, fmt.Errorf("%w: %w", corestore.ErrConflict, err)
	}
	var vehicle any
	if o.VehicleID != "" {
		vehicle = o.VehicleID
	}
	if err := tx.QueryRow(ctx, `UPDATE orders SET status = $2, vehicle_id = $3, version = version + 1
		WHERE id = $1 RETURNING version`, o.ID, string(o.Status), vehicle).Scan(&o.Version); err != nil {
		return model.Order{}, err
	}
	if err := insertEntry(ctx, tx, o.ID, req.Entry, s.now); err != nil {
		return model.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, orderID string, e model.TrackingEntry, now func() time.Time) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now()
	}
	lat, lon := latLon(e.Position)
	_, err := tx.Exec(ctx, `INSERT INTO tracking_entries (id, order_id, vehicle_id, kind, note, lat, lon, actor, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, orderID, e.VehicleID, string(e.Kind), e.Note, lat, lon, e.Actor, e.Timestamp)
	return err
}

func (s *PostgresStore) Tracking(ctx context.Context, orderID string) ([]model.TrackingEntry, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("order %s: %w", orderID, corestore.ErrNotFound)
	}
	rows, err := s.pool.Query(ctx, `SELECT id, order_id, vehicle_id, kind, note, lat, lon, actor, ts
		FROM tracking_entries WHERE order_id = $1 ORDER BY ts DESC, seq DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TrackingEntry{}
	for rows.Next() {
		var (
			e        model.TrackingEntry
			lat, lon *float64
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.VehicleID, &e.Kind, &e.Note, &lat, &lon, &e.Actor, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Position = coords(lat, lon)
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Seed upserts fixture vehicles and inserts fixture orders that do not
// exist yet, keeping their status and vehicle.
func (s *PostgresStore) Seed(ctx context.Context, f corestore.Fixtures) error {
	for _, v := range f.Vehicles {
		if err := s.UpsertVehicle(ctx, v); err != nil {
			return err
		}
	}
	for _, o := range f.Orders {
		if _, err := s.GetOrder(ctx, o.ID); err == nil {
			continue
		}
		if _, err := s.CreateOrder(ctx, o); err != nil {
			return fmt.Errorf("seed order %s: %w", o.ID, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
