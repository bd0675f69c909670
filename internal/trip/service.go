package trip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"backend-triptracker/internal/db"
	"backend-triptracker/internal/shared/format"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/montanaflynn/stats"
)

// Channel is the stream channel that receives every trip write.
const Channel = "trips"

var ErrNotFound = errors.New("trip not found")

type Broadcaster interface {
	Broadcast(channel string, payload []byte)
}

type Service struct {
	db  db.Querier
	hub Broadcaster
}

func NewService(db db.Querier, hub Broadcaster) *Service {
	return &Service{db: db, hub: hub}
}

func (s *Service) CreateTrip(ctx context.Context, startedAt time.Time) (Trip, error) {
	trip := Trip{ID: uuid.NewString(), StartedAt: startedAt}
	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (id, started_at, duration_ms, distance_m)
		VALUES ($1,$2,0,0)
		RETURNING started_at
	`, trip.ID, trip.StartedAt)
	if err := row.Scan(&trip.StartedAt); err != nil {
		return Trip{}, fmt.Errorf("create trip: %w", err)
	}
	s.publish("created", trip)
	return trip, nil
}

func (s *Service) UpdateTrip(ctx context.Context, trip Trip) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET duration_ms=$2, distance_m=$3
		WHERE id=$1
	`, trip.ID, trip.DurationMs, trip.DistanceM)
	if err != nil {
		return fmt.Errorf("update trip %s: %w", trip.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update trip %s: %w", trip.ID, ErrNotFound)
	}
	s.publish("updated", trip)
	return nil
}

func (s *Service) AddWaypoint(ctx context.Context, wp Waypoint) (Waypoint, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO waypoints (trip_id, location, speed_mps, recorded_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2,$3), 4326)::geography, $4, $5)
		RETURNING id
	`, wp.TripID, wp.Lng, wp.Lat, wp.SpeedMps, wp.RecordedAt)
	if err := row.Scan(&wp.ID); err != nil {
		return Waypoint{}, fmt.Errorf("add waypoint to trip %s: %w", wp.TripID, err)
	}
	return wp, nil
}

func (s *Service) GetTrip(ctx context.Context, id string) (Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, started_at, duration_ms, distance_m
		FROM trips WHERE id=$1
	`, id)
	var trip Trip
	if err := row.Scan(&trip.ID, &trip.StartedAt, &trip.DurationMs, &trip.DistanceM); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trip{}, ErrNotFound
		}
		return Trip{}, err
	}
	return trip, nil
}

// Trips lists every trip, newest first.
func (s *Service) Trips(ctx context.Context) ([]Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, started_at, duration_ms, distance_m
		FROM trips
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []Trip{}
	for rows.Next() {
		var t Trip
		if err := rows.Scan(&t.ID, &t.StartedAt, &t.DurationMs, &t.DistanceM); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (s *Service) Waypoints(ctx context.Context, tripID string) ([]Waypoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, recorded_at, speed_mps, ST_Y(location::geometry), ST_X(location::geometry)
		FROM waypoints WHERE trip_id=$1
		ORDER BY recorded_at, id
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	waypoints := []Waypoint{}
	for rows.Next() {
		var w Waypoint
		if err := rows.Scan(&w.ID, &w.TripID, &w.RecordedAt, &w.SpeedMps, &w.Lat, &w.Lng); err != nil {
			return nil, err
		}
		waypoints = append(waypoints, w)
	}
	return waypoints, rows.Err()
}

func (s *Service) History(ctx context.Context) ([]HistoryItem, error) {
	trips, err := s.Trips(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]HistoryItem, 0, len(trips))
	for _, t := range trips {
		items = append(items, HistoryItem{
			Trip:          t,
			StartedAtText: t.StartedAt.Format("January 2, 2006 15:04:05 MST"),
			DurationText:  format.Elapsed(time.Duration(t.DurationMs) * time.Millisecond),
			DistanceText:  format.Distance(t.DistanceM),
		})
	}
	return items, nil
}

func (s *Service) Stats(ctx context.Context, tripID string) (Stats, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return Stats{}, err
	}
	waypoints, err := s.Waypoints(ctx, tripID)
	if err != nil {
		return Stats{}, err
	}

	out := Stats{
		TripID:      trip.ID,
		PointCount:  len(waypoints),
		DistanceM:   trip.DistanceM,
		DurationSec: trip.DurationMs / 1000,
	}
	if trip.DurationMs > 0 {
		out.AverageSpeedM = float64(trip.DistanceM) / (float64(trip.DurationMs) / 1000)
	}
	if len(waypoints) == 0 {
		return out, nil
	}

	speeds := make(stats.Float64Data, 0, len(waypoints))
	for _, w := range waypoints {
		speeds = append(speeds, w.SpeedMps)
	}
	// stats only fails on empty input, which is excluded above
	out.MeanSpeedM, _ = speeds.Mean()
	out.MedianSpeedM, _ = speeds.Median()
	out.MaxSpeedM, _ = speeds.Max()
	return out, nil
}

func (s *Service) publish(event string, trip Trip) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(struct {
		Event string `json:"event"`
		Trip  Trip   `json:"trip"`
	}{event, trip})
	if err != nil {
		log.Printf("trip %s: encode %s event: %v", trip.ID, event, err)
		return
	}
	s.hub.Broadcast(Channel, payload)
}
