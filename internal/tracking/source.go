package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
)

type deviceDirective struct {
	Action       string        `json:"action"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// DeviceSource hands location subscriptions to the paired device over the
// device stream channel and remembers the active one for polling clients.
type DeviceSource struct {
	hub Broadcaster

	mu      sync.RWMutex
	current *Subscription
}

func NewDeviceSource(hub Broadcaster) *DeviceSource {
	return &DeviceSource{hub: hub}
}

func (d *DeviceSource) Subscribe(_ context.Context, sub Subscription) error {
	d.mu.Lock()
	d.current = &sub
	d.mu.Unlock()
	return d.publish(deviceDirective{Action: "subscribe", Subscription: &sub})
}

func (d *DeviceSource) Unsubscribe(_ context.Context) error {
	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()
	return d.publish(deviceDirective{Action: "unsubscribe"})
}

// Current returns the active subscription, if any.
func (d *DeviceSource) Current() (Subscription, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.current == nil {
		return Subscription{}, false
	}
	return *d.current, true
}

func (d *DeviceSource) publish(msg deviceDirective) error {
	if d.hub == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	d.hub.Broadcast(ChannelDevice, payload)
	return nil
}

// HubNotifier delivers user notifications on the notifications stream channel.
type HubNotifier struct {
	hub Broadcaster
}

func NewHubNotifier(hub Broadcaster) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Notify(_ context.Context, note Notification) error {
	log.Printf("notification %s: %s", note.Kind, note.Message)
	if n.hub == nil {
		return nil
	}
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	n.hub.Broadcast(ChannelNotifications, payload)
	return nil
}

// Notifiers delivers a notification to every notifier in turn.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
