package trip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

type recordingHub struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (h *recordingHub) Broadcast(channel string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels = append(h.channels, channel)
	h.payloads = append(h.payloads, payload)
}

var waypointColumns = []string{"id", "trip_id", "recorded_at", "speed_mps", "lat", "lng"}

func TestCreateUpdateTripPublishes(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	hub := &recordingHub{}
	svc := NewService(mock, hub)
	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO trips`).
		WithArgs(pgxmock.AnyArg(), started).
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}).AddRow(started))

	trip, err := svc.CreateTrip(context.Background(), started)
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if trip.ID == "" || trip.DistanceM != 0 || trip.DurationMs != 0 {
		t.Fatalf("unexpected trip %+v", trip)
	}

	trip.DistanceM = 120
	trip.DurationMs = 30000
	mock.ExpectExec(`UPDATE trips`).
		WithArgs(trip.ID, int64(30000), 120).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := svc.UpdateTrip(context.Background(), trip); err != nil {
		t.Fatalf("update trip: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
	if len(hub.channels) != 2 || hub.channels[0] != Channel {
		t.Fatalf("expected two trip broadcasts, got %v", hub.channels)
	}
	var evt struct {
		Event string `json:"event"`
		Trip  Trip   `json:"trip"`
	}
	if err := json.Unmarshal(hub.payloads[1], &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Event != "updated" || evt.Trip.DistanceM != 120 {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestCreateTripError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO trips`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errTrip)

	hub := &recordingHub{}
	_, err = NewService(mock, hub).CreateTrip(context.Background(), time.Now())
	if !errors.Is(err, errTrip) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if len(hub.channels) != 0 {
		t.Fatalf("failed create must not broadcast")
	}
}

func TestUpdateTripMissing(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE trips`).
		WithArgs("trip-x", int64(0), 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewService(mock, nil).UpdateTrip(context.Background(), Trip{ID: "trip-x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateTripExecError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE trips`).
		WithArgs("trip-1", int64(10), 5).
		WillReturnError(errTrip)

	if err := NewService(mock, nil).UpdateTrip(context.Background(), Trip{ID: "trip-1", DurationMs: 10, DistanceM: 5}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAddWaypoint(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	at := time.Now()
	mock.ExpectQuery(`INSERT INTO waypoints`).
		WithArgs("trip-1", 106.8, -6.2, 1.5, at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	wp, err := NewService(mock, nil).AddWaypoint(context.Background(), Waypoint{TripID: "trip-1", Lat: -6.2, Lng: 106.8, SpeedMps: 1.5, RecordedAt: at})
	if err != nil {
		t.Fatalf("add waypoint: %v", err)
	}
	if wp.ID != 7 {
		t.Fatalf("expected id 7, got %d", wp.ID)
	}
}

func TestAddWaypointError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO waypoints`).
		WithArgs("trip-1", 0.0, 0.0, 0.0, pgxmock.AnyArg()).
		WillReturnError(errTrip)

	if _, err := NewService(mock, nil).AddWaypoint(context.Background(), Waypoint{TripID: "trip-1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGetTripNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, started_at, duration_ms, distance_m\s+FROM trips WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := NewService(mock, nil).GetTrip(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTripsHistoryNewestFirst(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	newer := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	older := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, started_at, duration_ms, distance_m\s+FROM trips\s+ORDER BY started_at DESC`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "started_at", "duration_ms", "distance_m"}).
			AddRow("trip-2", newer, int64(3723000), 1234).
			AddRow("trip-1", older, int64(59000), 850))

	items, err := NewService(mock, nil).History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(items) != 2 || items[0].ID != "trip-2" {
		t.Fatalf("unexpected history %+v", items)
	}
	if items[0].DurationText != "1:02:03" || items[0].DistanceText != "1.2 km" {
		t.Fatalf("unexpected formatting %+v", items[0])
	}
	if items[1].DurationText != "00:59" || items[1].DistanceText != "850 m" {
		t.Fatalf("unexpected formatting %+v", items[1])
	}
}

func TestTripsQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM trips`).WillReturnError(errTrip)

	if _, err := NewService(mock, nil).Trips(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStats(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	expectTrip(mock, "trip-1", now, 100000, 500)
	mock.ExpectQuery(`FROM waypoints WHERE trip_id=\$1`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows(waypointColumns).
			AddRow(int64(1), "trip-1", now, 1.0, -6.2, 106.8).
			AddRow(int64(2), "trip-1", now.Add(time.Second), 3.0, -6.2001, 106.8).
			AddRow(int64(3), "trip-1", now.Add(2*time.Second), 8.0, -6.2002, 106.8))

	st, err := NewService(mock, nil).Stats(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.PointCount != 3 || st.MaxSpeedM != 8 || st.MedianSpeedM != 3 || st.MeanSpeedM != 4 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.AverageSpeedM != 5 || st.DurationSec != 100 {
		t.Fatalf("unexpected averages %+v", st)
	}
}

func TestStatsNoWaypoints(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	expectTrip(mock, "trip-1", time.Now(), 0, 0)
	mock.ExpectQuery(`FROM waypoints`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows(waypointColumns))

	st, err := NewService(mock, nil).Stats(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.PointCount != 0 || st.AverageSpeedM != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestExportGPX(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	expectTrip(mock, "trip-1", at, 1000, 10)
	mock.ExpectQuery(`FROM waypoints`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows(waypointColumns).
			AddRow(int64(1), "trip-1", at, 1.0, 52.5, 13.4).
			AddRow(int64(2), "trip-1", at.Add(5*time.Second), 1.0, 52.5001, 13.4))

	var buf bytes.Buffer
	if err := NewService(mock, nil).ExportGPX(context.Background(), "trip-1", &buf); err != nil {
		t.Fatalf("export gpx: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "<?xml") {
		t.Fatalf("expected xml header")
	}
	if strings.Count(out, "<trkpt") != 2 || !strings.Contains(out, `lat="52.5001"`) {
		t.Fatalf("unexpected gpx: %s", out)
	}
	if !strings.Contains(out, "<time>2024-05-01T08:00:05Z</time>") {
		t.Fatalf("missing point time: %s", out)
	}
}

func TestExportGeoJSON(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	expectTrip(mock, "trip-1", at, 1000, 10)
	mock.ExpectQuery(`FROM waypoints`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows(waypointColumns).
			AddRow(int64(1), "trip-1", at, 1.0, 52.5, 13.4).
			AddRow(int64(2), "trip-1", at.Add(5*time.Second), 2.0, 52.5001, 13.4))

	body, err := NewService(mock, nil).ExportGeoJSON(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("export geojson: %v", err)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string       `json:"type"`
				Coordinates [][2]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("unexpected collection %s", body)
	}
	geom := fc.Features[0].Geometry
	if geom.Type != "LineString" || len(geom.Coordinates) != 2 {
		t.Fatalf("unexpected geometry %s", body)
	}
	// GeoJSON coordinates are lng, lat
	if geom.Coordinates[0][0] != 13.4 || geom.Coordinates[0][1] != 52.5 {
		t.Fatalf("unexpected coordinate order %v", geom.Coordinates[0])
	}
	if fc.Features[0].Properties["trip_id"] != "trip-1" {
		t.Fatalf("missing trip id property")
	}
}

func TestExportMissingTrip(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM trips WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	var buf bytes.Buffer
	if err := NewService(mock, nil).ExportGPX(context.Background(), "missing", &buf); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func expectTrip(mock pgxmock.PgxPoolIface, id string, started time.Time, durationMs int64, distance int) {
	mock.ExpectQuery(`SELECT id, started_at, duration_ms, distance_m\s+FROM trips WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "started_at", "duration_ms", "distance_m"}).
			AddRow(id, started, durationMs, distance))
}

var errTrip = errors.New("trip error")
