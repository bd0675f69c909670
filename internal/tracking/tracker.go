package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"backend-triptracker/internal/settings"
	"backend-triptracker/internal/trip"
)

var ErrTrackerClosed = errors.New("tracker is not running")

type TripStore interface {
	CreateTrip(ctx context.Context, startedAt time.Time) (trip.Trip, error)
	UpdateTrip(ctx context.Context, t trip.Trip) error
	AddWaypoint(ctx context.Context, wp trip.Waypoint) (trip.Waypoint, error)
}

type LiveSink interface {
	SetUserLocation(ctx context.Context, loc *LiveLocation)
	SetTrackingState(ctx context.Context, mode Mode)
}

type LocationSource interface {
	Subscribe(ctx context.Context, sub Subscription) error
	Unsubscribe(ctx context.Context) error
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type request struct {
	ev     Event
	result chan error
}

// Tracker owns the tracking State and processes events one at a time on the
// goroutine running Run. Every public method blocks until its event and all
// resulting effects have completed.
type Tracker struct {
	store    TripStore
	live     LiveSink
	source   LocationSource
	notifier Notifier
	now      func() time.Time

	events chan request
	done   chan struct{}

	mu    sync.RWMutex
	state State
	err   error
}

func NewTracker(initial State, store TripStore, live LiveSink, source LocationSource, notifier Notifier) *Tracker {
	return &Tracker{
		store:    store,
		live:     live,
		source:   source,
		notifier: notifier,
		now:      time.Now,
		events:   make(chan request),
		done:     make(chan struct{}),
		state:    initial,
	}
}

// Run processes events until ctx is cancelled or a store write fails. It must
// be called exactly once.
func (t *Tracker) Run(ctx context.Context) error {
	defer close(t.done)

	t.execute(ctx, t.State().resubscribe())

	for {
		select {
		case <-ctx.Done():
			if err := t.source.Unsubscribe(context.Background()); err != nil {
				log.Printf("tracking: unsubscribe on shutdown: %v", err)
			}
			return nil
		case req := <-t.events:
			err := t.apply(ctx, req.ev)
			req.result <- err
			if err != nil {
				err = fmt.Errorf("tracking stopped: %w", err)
				t.mu.Lock()
				t.err = err
				t.mu.Unlock()
				log.Printf("%v", err)
				return err
			}
		}
	}
}

// Done is closed when Run returns.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Err returns the failure that terminated Run, if any.
func (t *Tracker) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Tracker) Start(ctx context.Context) error  { return t.command(ctx, CommandStart) }
func (t *Tracker) Pause(ctx context.Context) error  { return t.command(ctx, CommandPause) }
func (t *Tracker) Resume(ctx context.Context) error { return t.command(ctx, CommandResume) }
func (t *Tracker) Stop(ctx context.Context) error   { return t.command(ctx, CommandStop) }
func (t *Tracker) Detach(ctx context.Context) error { return t.command(ctx, CommandDetach) }

// OnLocation feeds a location callback; nil means no fix.
func (t *Tracker) OnLocation(ctx context.Context, sample *Sample) error {
	return t.send(ctx, Location{Sample: sample, At: t.now()})
}

func (t *Tracker) OnActivity(ctx context.Context, a Activity) error {
	return t.send(ctx, ActivityUpdate{Activity: a, At: t.now()})
}

func (t *Tracker) ApplySettings(ctx context.Context, s settings.Settings) error {
	return t.send(ctx, SettingsChanged{Settings: s})
}

func (t *Tracker) SetPermission(ctx context.Context, granted bool) error {
	return t.send(ctx, PermissionChanged{Granted: granted})
}

// FollowSettings applies every value from updates until the channel closes,
// ctx is cancelled or the tracker stops.
func (t *Tracker) FollowSettings(ctx context.Context, updates <-chan settings.Settings) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			if err := t.ApplySettings(ctx, s); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

func (t *Tracker) command(ctx context.Context, kind CommandKind) error {
	return t.send(ctx, Command{Kind: kind, At: t.now()})
}

func (t *Tracker) send(ctx context.Context, ev Event) error {
	req := request{ev: ev, result: make(chan error, 1)}
	select {
	case t.events <- req:
	case <-t.done:
		return ErrTrackerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) apply(ctx context.Context, ev Event) error {
	t.mu.Lock()
	next, effects := Transition(t.state, ev)
	t.state = next
	t.mu.Unlock()

	return t.execute(ctx, effects)
}

// execute runs effects in order. Only store writes can fail the tracker;
// delivery problems on the other collaborators are logged.
func (t *Tracker) execute(ctx context.Context, effects []Effect) error {
	for _, eff := range effects {
		switch e := eff.(type) {
		case PublishLocation:
			t.live.SetUserLocation(ctx, e.Location)
		case PublishMode:
			t.live.SetTrackingState(ctx, e.Mode)
		case CreateTrip:
			created, err := t.store.CreateTrip(ctx, e.StartedAt)
			if err != nil {
				return err
			}
			if err := t.apply(ctx, TripCreated{Trip: created, Sample: e.Sample, At: e.At}); err != nil {
				return err
			}
		case UpdateTrip:
			if err := t.store.UpdateTrip(ctx, e.Trip); err != nil {
				return err
			}
		case AddWaypoint:
			if _, err := t.store.AddWaypoint(ctx, e.Waypoint); err != nil {
				return err
			}
		case Notify:
			if t.notifier == nil {
				continue
			}
			if err := t.notifier.Notify(ctx, e.Notification); err != nil {
				log.Printf("tracking: notify %s: %v", e.Notification.Kind, err)
			}
		case Subscribe:
			if err := t.source.Subscribe(ctx, e.Subscription); err != nil {
				log.Printf("tracking: subscribe: %v", err)
			}
		case Unsubscribe:
			if err := t.source.Unsubscribe(ctx); err != nil {
				log.Printf("tracking: unsubscribe: %v", err)
			}
		}
	}
	return nil
}
