package server

import (
	"context"
	"errors"
	"log"

	"backend-triptracker/internal/auth"
	"backend-triptracker/internal/config"
	"backend-triptracker/internal/db"
	"backend-triptracker/internal/mq"
	"backend-triptracker/internal/notify"
	"backend-triptracker/internal/settings"
	"backend-triptracker/internal/stream"
	"backend-triptracker/internal/tracking"
	"backend-triptracker/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     db.Querier
	Redis  *redis.Client
	Stream *stream.Hub
	Events *mq.Publisher

	Auth     *auth.Service
	Trips    *trip.Service
	Settings *settings.Store
	Live     *tracking.LiveRepository
	Source   *tracking.DeviceSource
	Tracker  *tracking.Tracker
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (*Server, error) {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	var q db.Querier = db.Unavailable
	if pool != nil {
		q = pool
	}

	authSvc, err := auth.NewService(cfg.JWTSecret, cfg.DeviceKey, q)
	if err != nil {
		return nil, err
	}

	hub := stream.NewHub(redisClient)
	out := fanout{hub}

	var events *mq.Publisher
	if cfg.AMQPURL != "" {
		events, err = dialEventsFn(cfg.AMQPURL, cfg.AMQPExchange, trip.Channel, tracking.ChannelNotifications)
		if err != nil {
			log.Printf("rabbitmq disabled: %v", err)
		} else {
			out = append(out, events)
		}
	}

	notifiers := tracking.Notifiers{tracking.NewHubNotifier(out)}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("telegram notifications disabled: %v", err)
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	defaults := settings.Settings{
		LocationInterval:   cfg.DefaultLocationInterval,
		BackgroundTracking: cfg.DefaultBackgroundTracking,
	}

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       q,
		Redis:    redisClient,
		Stream:   hub,
		Events:   events,
		Auth:     authSvc,
		Trips:    trip.NewService(q, out),
		Settings: settings.NewStore(redisClient, defaults),
		Live:     tracking.NewLiveRepository(out),
		Source:   tracking.NewDeviceSource(out),
	}
	s.Tracker = tracking.NewTracker(
		tracking.NewState(defaults, cfg.StillnessTimeout),
		s.Trips, s.Live, s.Source, notifiers,
	)

	registerRoutes(s)
	return s, nil
}

// Start runs the tracker and keeps it in sync with the settings store until
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.Tracker.Run(ctx); err != nil {
			log.Printf("tracker exited: %v", err)
		}
	}()
	go func() {
		err := s.Tracker.FollowSettings(ctx, s.Settings.Watch(ctx))
		if err != nil && !errors.Is(err, tracking.ErrTrackerClosed) {
			log.Printf("settings follower exited: %v", err)
		}
	}()
}

// Close releases the stream hub and the broker connection.
func (s *Server) Close() error {
	err := s.Stream.Close()
	if s.Events != nil {
		if cerr := s.Events.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var dialEventsFn = mq.Dial

// fanout relays every broadcast to the websocket hub and, when configured,
// to the message broker.
type fanout []tracking.Broadcaster

func (f fanout) Broadcast(channel string, payload []byte) {
	for _, b := range f {
		b.Broadcast(channel, payload)
	}
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		status, tracker := "ok", "running"
		select {
		case <-s.Tracker.Done():
			tracker = "stopped"
			if s.Tracker.Err() != nil {
				status = "degraded"
			}
		default:
		}
		return c.JSON(fiber.Map{"status": status, "tracker": tracker})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), s.Auth)
	trip.RegisterRoutes(s.App.Group("/trips", jwtMiddleware), s.Trips)
	settings.RegisterRoutes(s.App.Group("/settings"), s.Settings, jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracker, s.Live, s.Source, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream,
		tracking.ChannelLive, tracking.ChannelDevice, tracking.ChannelNotifications, trip.Channel)
}
