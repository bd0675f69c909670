package tracking

import (
	"math"
	"time"

	"backend-triptracker/internal/shared/geo"
	"backend-triptracker/internal/trip"
)

// Transition applies one event to the state. It performs no I/O; every
// externally visible consequence is returned as an Effect.
func Transition(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case Command:
		return command(s, e)
	case Location:
		return location(s, e)
	case ActivityUpdate:
		if e.Activity.IsStill() {
			if s.StillSince.IsZero() {
				s.StillSince = e.At
			}
		} else {
			s.StillSince = time.Time{}
		}
		return s, nil
	case SettingsChanged:
		s.IntervalSec = e.Settings.LocationInterval
		s.Background = e.Settings.BackgroundTracking
		return s, s.resubscribe()
	case PermissionChanged:
		was := s.PermissionGranted
		s.PermissionGranted = e.Granted
		if e.Granted && !was {
			return s, s.resubscribe()
		}
		return s, nil
	case TripCreated:
		t := e.Trip
		s.Trip = &t
		return s, []Effect{AddWaypoint{Waypoint: waypoint(t.ID, e.Sample, e.At)}}
	}
	return s, nil
}

func command(s State, c Command) (State, []Effect) {
	switch c.Kind {
	case CommandStart:
		s.Previous = nil
		s.Trip = nil
		s.DistanceM = 0
		s.StillSince = time.Time{}
		s.StartedAt = c.At
		s.Mode = ModeTracking
		return s, append([]Effect{PublishMode{Mode: s.Mode}}, s.resubscribe()...)
	case CommandPause:
		if s.Mode != ModeTracking {
			return s, nil
		}
		s.Mode = ModePaused
		return s, []Effect{PublishMode{Mode: s.Mode}}
	case CommandResume:
		if s.Mode != ModePaused {
			return s, nil
		}
		s.Mode = ModeTracking
		s.StillSince = time.Time{}
		return s, []Effect{PublishMode{Mode: s.Mode}}
	case CommandStop:
		return stop(s)
	case CommandDetach:
		if s.Background {
			return s, nil
		}
		var effects []Effect
		s, effects = stop(s)
		// stop re-subscribes at low accuracy; detaching drops the subscription instead
		kept := effects[:0]
		for _, eff := range effects {
			if _, ok := eff.(Subscribe); !ok {
				kept = append(kept, eff)
			}
		}
		return s, append(kept, Unsubscribe{})
	}
	return s, nil
}

func stop(s State) (State, []Effect) {
	s.Mode = ModeStopped
	s.Previous = nil
	s.Trip = nil
	s.StartedAt = time.Time{}
	s.StillSince = time.Time{}
	return s, append([]Effect{PublishMode{Mode: s.Mode}}, s.resubscribe()...)
}

func location(s State, l Location) (State, []Effect) {
	if l.Sample == nil {
		return s, []Effect{PublishLocation{}}
	}
	sample := *l.Sample

	if s.Mode == ModeStopped {
		return s, []Effect{PublishLocation{Location: &LiveLocation{Lat: sample.Lat, Lng: sample.Lng}}}
	}

	elapsed := l.At.Sub(s.StartedAt).Milliseconds()

	if s.Previous == nil {
		effects := []Effect{PublishLocation{Location: live(sample, 0, elapsed)}}
		if s.Mode == ModePaused {
			// paused before the first fix: no trip until tracking resumes
			return s, effects
		}
		s.Previous = &sample
		s.DistanceM = 0
		return s, append(effects, CreateTrip{StartedAt: l.At, Sample: sample, At: l.At})
	}

	if s.Mode == ModePaused {
		return s, []Effect{PublishLocation{Location: live(sample, s.DistanceM, elapsed)}}
	}

	step := geo.DistanceM(s.Previous.Lat, s.Previous.Lng, sample.Lat, sample.Lng)
	s.DistanceM += int(math.Round(step))
	s.Previous = &sample

	effects := []Effect{PublishLocation{Location: live(sample, s.DistanceM, elapsed)}}
	if s.Trip != nil {
		t := *s.Trip
		t.DurationMs = elapsed
		t.DistanceM = s.DistanceM
		s.Trip = &t
		effects = append(effects,
			UpdateTrip{Trip: t},
			AddWaypoint{Waypoint: waypoint(t.ID, sample, l.At)},
		)
	}

	if !s.StillSince.IsZero() && l.At.Sub(s.StillSince) > s.StillnessTimeout {
		effects = append(effects, Notify{Notification: Notification{
			Kind:    NotificationStillnessStop,
			Message: "Tracking stopped because no movement was detected",
			At:      l.At,
		}})
		var stopped []Effect
		s, stopped = stop(s)
		effects = append(effects, stopped...)
	}
	return s, effects
}

func (s State) resubscribe() []Effect {
	if !s.PermissionGranted {
		return nil
	}
	return []Effect{Subscribe{Subscription: s.subscription()}}
}

func live(sample Sample, distance int, elapsedMs int64) *LiveLocation {
	return &LiveLocation{
		Lat:       sample.Lat,
		Lng:       sample.Lng,
		SpeedMps:  sample.SpeedMps,
		DistanceM: distance,
		ElapsedMs: elapsedMs,
	}
}

func waypoint(tripID string, sample Sample, at time.Time) trip.Waypoint {
	return trip.Waypoint{
		TripID:     tripID,
		RecordedAt: at,
		SpeedMps:   sample.SpeedMps,
		Lat:        sample.Lat,
		Lng:        sample.Lng,
	}
}
