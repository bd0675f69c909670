package tracking

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"backend-triptracker/internal/shared/format"
)

const (
	ChannelLive          = "live"
	ChannelDevice        = "device"
	ChannelNotifications = "notifications"
)

type Broadcaster interface {
	Broadcast(channel string, payload []byte)
}

// Snapshot is the live projection together with the tracking mode.
type Snapshot struct {
	Mode     Mode          `json:"mode"`
	Location *LiveLocation `json:"location"`
}

// View is the snapshot prepared for a tracking screen.
type View struct {
	Snapshot
	HasLocation   bool   `json:"has_location"`
	ShowStart     bool   `json:"show_start"`
	ShowPause     bool   `json:"show_pause"`
	ShowResume    bool   `json:"show_resume"`
	ShowStop      bool   `json:"show_stop"`
	ShowExtraInfo bool   `json:"show_extra_info"`
	Speed         string `json:"speed"`
	Distance      string `json:"distance"`
	Elapsed       string `json:"elapsed"`
}

// LiveRepository keeps the latest projection in memory and broadcasts each change.
type LiveRepository struct {
	hub Broadcaster

	mu       sync.RWMutex
	snapshot Snapshot
}

func NewLiveRepository(hub Broadcaster) *LiveRepository {
	return &LiveRepository{hub: hub}
}

func (r *LiveRepository) SetUserLocation(_ context.Context, loc *LiveLocation) {
	r.mu.Lock()
	if loc != nil {
		copied := *loc
		loc = &copied
	}
	r.snapshot.Location = loc
	snap := r.snapshot
	r.mu.Unlock()
	r.broadcast(snap)
}

func (r *LiveRepository) SetTrackingState(_ context.Context, mode Mode) {
	r.mu.Lock()
	r.snapshot.Mode = mode
	snap := r.snapshot
	r.mu.Unlock()
	r.broadcast(snap)
}

func (r *LiveRepository) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

func (r *LiveRepository) View() View {
	snap := r.Snapshot()
	loc := snap.Location
	v := View{
		Snapshot:      snap,
		HasLocation:   loc != nil,
		ShowStart:     snap.Mode == ModeStopped,
		ShowPause:     snap.Mode == ModeTracking,
		ShowResume:    snap.Mode == ModePaused,
		ShowStop:      snap.Mode != ModeStopped,
		ShowExtraInfo: snap.Mode == ModeTracking && loc != nil,
		Speed:         format.Speed(0),
		Distance:      format.Distance(0),
		Elapsed:       format.Elapsed(0),
	}
	if loc != nil {
		v.Speed = format.Speed(loc.SpeedMps)
		v.Distance = format.Distance(loc.DistanceM)
		v.Elapsed = format.Elapsed(time.Duration(loc.ElapsedMs) * time.Millisecond)
	}
	return v
}

func (r *LiveRepository) broadcast(snap Snapshot) {
	if r.hub == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("live projection: encode: %v", err)
		return
	}
	r.hub.Broadcast(ChannelLive, payload)
}
