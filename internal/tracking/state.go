package tracking

import (
	"encoding/json"
	"fmt"
	"time"

	"backend-triptracker/internal/settings"
	"backend-triptracker/internal/trip"
)

const (
	DefaultStillnessTimeout = 3 * time.Minute
	StillConfidence         = 75
)

type Mode int

const (
	ModeStopped Mode = iota
	ModeTracking
	ModePaused
)

func (m Mode) String() string {
	switch m {
	case ModeTracking:
		return "tracking"
	case ModePaused:
		return "paused"
	default:
		return "stopped"
	}
}

func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Mode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "stopped":
		*m = ModeStopped
	case "tracking":
		*m = ModeTracking
	case "paused":
		*m = ModePaused
	default:
		return fmt.Errorf("unknown tracking mode %q", s)
	}
	return nil
}

// Sample is one location fix reported by the device.
type Sample struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	SpeedMps float64 `json:"speed_mps"`
}

// LiveLocation is the latest position shown to the user. It is never persisted.
type LiveLocation struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	SpeedMps  float64 `json:"speed_mps"`
	DistanceM int     `json:"distance_m"`
	ElapsedMs int64   `json:"elapsed_ms"`
}

// State is everything the state machine remembers between events.
type State struct {
	Mode      Mode
	Previous  *Sample
	Trip      *trip.Trip
	DistanceM int
	StartedAt time.Time

	// StillSince is zero while the stillness timer is not running.
	StillSince       time.Time
	StillnessTimeout time.Duration

	IntervalSec       int
	Background        bool
	PermissionGranted bool
}

func NewState(s settings.Settings, stillnessTimeout time.Duration) State {
	if stillnessTimeout <= 0 {
		stillnessTimeout = DefaultStillnessTimeout
	}
	if s.LocationInterval <= 0 {
		s.LocationInterval = settings.DefaultLocationInterval
	}
	return State{
		Mode:              ModeStopped,
		StillnessTimeout:  stillnessTimeout,
		IntervalSec:       s.LocationInterval,
		Background:        s.BackgroundTracking,
		PermissionGranted: true,
	}
}

func (s State) subscription() Subscription {
	active := s.Mode != ModeStopped
	return Subscription{
		IntervalSec:  s.IntervalSec,
		HighAccuracy: active,
		Foreground:   active && s.Background,
	}
}
