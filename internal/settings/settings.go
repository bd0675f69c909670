package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultLocationInterval   = 5
	DefaultBackgroundTracking = false

	redisKey            = "settings"
	fieldInterval       = "location_interval"
	fieldBackground     = "background_tracking"
	minLocationInterval = 1
)

var ErrInvalidInterval = errors.New("location interval must be at least 1 second")

type Settings struct {
	LocationInterval   int  `json:"location_interval"`
	BackgroundTracking bool `json:"background_tracking"`
}

func Defaults() Settings {
	return Settings{
		LocationInterval:   DefaultLocationInterval,
		BackgroundTracking: DefaultBackgroundTracking,
	}
}

// Store persists the tracking preferences in a redis hash and fans every
// change out to watchers. Without redis it keeps values in memory.
type Store struct {
	redis    *redis.Client
	defaults Settings

	mu       sync.Mutex
	local    Settings
	watchers map[chan Settings]struct{}
}

func NewStore(redisClient *redis.Client, defaults Settings) *Store {
	if defaults.LocationInterval < minLocationInterval {
		defaults.LocationInterval = DefaultLocationInterval
	}
	return &Store{
		redis:    redisClient,
		defaults: defaults,
		local:    defaults,
		watchers: map[chan Settings]struct{}{},
	}
}

func (s *Store) Get(ctx context.Context) (Settings, error) {
	if s.redis == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.local, nil
	}

	values, err := s.redis.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	out := s.defaults
	if raw, ok := values[fieldInterval]; ok {
		if v, err := strconv.Atoi(raw); err == nil && v >= minLocationInterval {
			out.LocationInterval = v
		}
	}
	if raw, ok := values[fieldBackground]; ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			out.BackgroundTracking = v
		}
	}
	return out, nil
}

func (s *Store) SetLocationInterval(ctx context.Context, seconds int) error {
	if seconds < minLocationInterval {
		return ErrInvalidInterval
	}
	return s.update(ctx, fieldInterval, strconv.Itoa(seconds), func(st *Settings) {
		st.LocationInterval = seconds
	})
}

func (s *Store) SetBackgroundTracking(ctx context.Context, enabled bool) error {
	return s.update(ctx, fieldBackground, strconv.FormatBool(enabled), func(st *Settings) {
		st.BackgroundTracking = enabled
	})
}

// Watch emits the current settings, then every subsequent change. Slow
// readers only see the latest value. The channel closes when ctx is done.
func (s *Store) Watch(ctx context.Context) <-chan Settings {
	ch := make(chan Settings, 1)

	current, err := s.Get(ctx)
	if err != nil {
		current = s.defaults
	}

	s.mu.Lock()
	ch <- current
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

func (s *Store) update(ctx context.Context, field, value string, apply func(*Settings)) error {
	if s.redis != nil {
		if err := s.redis.HSet(ctx, redisKey, field, value).Err(); err != nil {
			return fmt.Errorf("write setting %s: %w", field, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	apply(&s.local)

	next := s.local
	if s.redis != nil {
		if fresh, err := s.Get(ctx); err == nil {
			next = fresh
			s.local = fresh
		}
	}
	for ch := range s.watchers {
		offer(ch, next)
	}
	return nil
}

func offer(ch chan Settings, value Settings) {
	select {
	case ch <- value:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- value:
	default:
	}
}
