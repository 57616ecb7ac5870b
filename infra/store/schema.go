package store

const schema = `
CREATE TABLE IF NOT EXISTS vehicles (
	id          TEXT PRIMARY KEY,
	operator_id TEXT NOT NULL DEFAULT '',
	plate       TEXT NOT NULL DEFAULT '',
	capacity_kg DOUBLE PRECISION NOT NULL,
	capacity_m3 DOUBLE PRECISION,
	lat         DOUBLE PRECISION,
	lon         DOUBLE PRECISION,
	position_at TIMESTAMPTZ,
	available   BOOLEAN NOT NULL DEFAULT FALSE,
	status      TEXT NOT NULL,
	rating      DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS orders (
	id          TEXT PRIMARY KEY,
	number      TEXT NOT NULL DEFAULT '',
	client_id   TEXT NOT NULL DEFAULT '',
	weight      DOUBLE PRECISION NOT NULL,
	volume      DOUBLE PRECISION,
	pickup_lat  DOUBLE PRECISION,
	pickup_lon  DOUBLE PRECISION,
	dropoff_lat DOUBLE PRECISION,
	dropoff_lon DOUBLE PRECISION,
	priority    TEXT NOT NULL,
	status      TEXT NOT NULL,
	vehicle_id  TEXT REFERENCES vehicles(id),
	created_at  TIMESTAMPTZ NOT NULL,
	version     BIGINT NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS orders_status_created_idx ON orders (status, created_at, id);
CREATE INDEX IF NOT EXISTS orders_vehicle_idx ON orders (vehicle_id) WHERE vehicle_id IS NOT NULL;
CREATE TABLE IF NOT EXISTS tracking_entries (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	order_id   TEXT NOT NULL REFERENCES orders(id),
	vehicle_id TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	note       TEXT NOT NULL DEFAULT '',
	lat        DOUBLE PRECISION,
	lon        DOUBLE PRECISION,
	actor      TEXT NOT NULL DEFAULT '',
	ts         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tracking_order_idx ON tracking_entries (order_id, ts);
CREATE TABLE IF NOT EXISTS order_numbers (
	day TEXT PRIMARY KEY,
	seq INTEGER NOT NULL
);
`
