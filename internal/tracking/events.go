package tracking

import (
	"time"

	"backend-triptracker/internal/settings"
	"backend-triptracker/internal/trip"
)

// Event is an input to Transition.
type Event interface {
	event()
}

type CommandKind int

const (
	CommandStart CommandKind = iota
	CommandPause
	CommandResume
	CommandStop
	// CommandDetach stops tracking only when background tracking is disabled.
	CommandDetach
)

func (k CommandKind) String() string {
	switch k {
	case CommandStart:
		return "start"
	case CommandPause:
		return "pause"
	case CommandResume:
		return "resume"
	case CommandStop:
		return "stop"
	case CommandDetach:
		return "detach"
	}
	return "unknown"
}

type Command struct {
	Kind CommandKind
	At   time.Time
}

// Location carries a location callback. A nil Sample means the device has no fix.
type Location struct {
	Sample *Sample
	At     time.Time
}

type ActivityUpdate struct {
	Activity Activity
	At       time.Time
}

type SettingsChanged struct {
	Settings settings.Settings
}

type PermissionChanged struct {
	Granted bool
}

// TripCreated is fed back after the store has assigned an id to a new trip.
type TripCreated struct {
	Trip   trip.Trip
	Sample Sample
	At     time.Time
}

func (Command) event()           {}
func (Location) event()          {}
func (ActivityUpdate) event()    {}
func (SettingsChanged) event()   {}
func (PermissionChanged) event() {}
func (TripCreated) event()       {}

// Effect is an output of Transition. Effects are executed in order.
type Effect interface {
	effect()
}

// PublishLocation replaces the live projection. A nil Location clears it.
type PublishLocation struct {
	Location *LiveLocation
}

type PublishMode struct {
	Mode Mode
}

// CreateTrip asks the store for a new trip. Its result comes back as TripCreated.
type CreateTrip struct {
	StartedAt time.Time
	Sample    Sample
	At        time.Time
}

type UpdateTrip struct {
	Trip trip.Trip
}

type AddWaypoint struct {
	Waypoint trip.Waypoint
}

type Notify struct {
	Notification Notification
}

type Subscribe struct {
	Subscription Subscription
}

type Unsubscribe struct{}

func (PublishLocation) effect() {}
func (PublishMode) effect()     {}
func (CreateTrip) effect()      {}
func (UpdateTrip) effect()      {}
func (AddWaypoint) effect()     {}
func (Notify) effect()          {}
func (Subscribe) effect()       {}
func (Unsubscribe) effect()     {}

// Subscription is the location request handed to the device.
type Subscription struct {
	IntervalSec  int  `json:"interval_sec"`
	HighAccuracy bool `json:"high_accuracy"`
	// Foreground asks the device to keep tracking with a persistent notification.
	Foreground bool `json:"foreground"`
}

type NotificationKind string

const NotificationStillnessStop NotificationKind = "stillness_stop"

type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	At      time.Time        `json:"at"`
}
