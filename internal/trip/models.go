package trip

import "time"

// Trip is one recorded outing. Duration and distance grow while it is being tracked.
type Trip struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	DistanceM  int       `json:"distance_m"`
}

type Waypoint struct {
	ID         int64     `json:"id"`
	TripID     string    `json:"trip_id"`
	RecordedAt time.Time `json:"recorded_at"`
	SpeedMps   float64   `json:"speed_mps"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
}

// HistoryItem is a trip prepared for the history list.
type HistoryItem struct {
	Trip
	StartedAtText string `json:"started_at_text"`
	DurationText  string `json:"duration_text"`
	DistanceText  string `json:"distance_text"`
}

type Stats struct {
	TripID        string  `json:"trip_id"`
	PointCount    int     `json:"point_count"`
	DistanceM     int     `json:"distance_m"`
	DurationSec   int64   `json:"duration_sec"`
	AverageSpeedM float64 `json:"average_speed_mps"`
	MeanSpeedM    float64 `json:"mean_sample_speed_mps"`
	MedianSpeedM  float64 `json:"median_sample_speed_mps"`
	MaxSpeedM     float64 `json:"max_sample_speed_mps"`
}
