package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// schema is applied in order on boot. Statements must stay idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS trips (
		id          TEXT PRIMARY KEY,
		started_at  TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		distance_m  INTEGER NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS trips_started_at_idx ON trips (started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS waypoints (
		id          BIGSERIAL PRIMARY KEY,
		trip_id     TEXT NOT NULL REFERENCES trips (id),
		location    GEOGRAPHY(POINT, 4326) NOT NULL,
		speed_mps   DOUBLE PRECISION NOT NULL DEFAULT 0,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS waypoints_trip_idx ON waypoints (trip_id, recorded_at)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         TEXT PRIMARY KEY,
		device_id  TEXT NOT NULL,
		token      TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ
	)`,
}

// Migrate creates the tables used by the trip store and device auth.
func Migrate(ctx context.Context, q Querier) error {
	start := time.Now()
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	log.Printf("schema migrated (%d statements) in %s", len(schema), time.Since(start))
	return nil
}
