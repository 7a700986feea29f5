package cmd

import (
	"context"
	"log/slog"
	"os"

	"exhibition-system/config"
	"exhibition-system/internal/events"
	"exhibition-system/internal/handlers"
	"exhibition-system/internal/locker"
	"exhibition-system/internal/services"
	"exhibition-system/internal/store"
	"exhibition-system/monitoring"
	"exhibition-system/security"
	"exhibition-system/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var _ services.Metrics = (*monitoring.Monitor)(nil)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := monitoring.SetupTracing(ctx, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	// Redis is optional; without it locks and seat projections stay in process.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = utils.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	publisher, closePublishers, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublishers()

	var lk locker.Locker = locker.NewLocal(cfg.LockWaitTimeout)
	if redisClient != nil {
		lk = locker.NewRedis(redisClient, locker.RedisOptions{
			TTL:           cfg.SessionLockTTL,
			WaitTimeout:   cfg.LockWaitTimeout,
			RetryInterval: cfg.LockRetryInterval,
		})
	}

	// Initialize services
	engine := services.NewEngine(store.NewPocketBase(app), lk, publisher)
	engine.CheckInGrace = cfg.CheckInGracePeriod
	engine.DefaultDuration = cfg.DefaultSessionDuration
	if redisClient != nil {
		engine.Cache = services.NewProjectionCache(redisClient, 0)
	}

	if cfg.EnableMetrics {
		var monitor *monitoring.Monitor
		if redisClient != nil {
			monitor = monitoring.NewMonitor(redisClient)
		} else {
			monitor = monitoring.NewMonitor(nil)
		}
		engine.Metrics = monitor
		go monitor.Run(ctx)
	}

	sessionService := services.NewSessionService(engine)
	seatLedger := services.NewSeatLedger(engine)
	moderationService := services.NewModerationService(engine)
	seriesPlanner := services.NewSeriesPlanner(engine, sessionService)

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionService)
	bookingHandler := handlers.NewBookingHandler(seatLedger)
	moderationHandler := handlers.NewModerationHandler(moderationService, seriesPlanner)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: !cfg.IsProduction(),
	})

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		superuser := apis.RequireSuperuserAuth()

		// Public read endpoints
		e.Router.GET("/api/v1/sessions/{id}", sessionHandler.GetSession)
		e.Router.GET("/api/v1/sessions/{id}/actions", sessionHandler.GetNextActions)
		e.Router.GET("/api/v1/sessions/{id}/seats", bookingHandler.GetSeats)

		v1 := e.Router.Group("/api/v1")
		v1.Bind(apis.RequireAuth())

		// Session endpoints
		v1.POST("/sessions", sessionHandler.CreateSession)
		v1.PATCH("/sessions/{id}/schedule", sessionHandler.Reschedule)
		v1.POST("/sessions/{id}/table", sessionHandler.AssignTable)
		v1.POST("/sessions/{id}/submit", sessionHandler.Submit)
		v1.POST("/sessions/{id}/resubmit", sessionHandler.Resubmit)
		v1.POST("/sessions/{id}/cancel", sessionHandler.Cancel)
		v1.POST("/sessions/{id}/start", sessionHandler.Start).Bind(superuser)
		v1.POST("/sessions/{id}/end", sessionHandler.End).Bind(superuser)

		// Booking endpoints
		reserve := v1.POST("/sessions/{id}/bookings", bookingHandler.Reserve)
		if redisClient != nil {
			reserve.Bind(security.NewRateLimiter(redisClient, cfg.BookingRateLimit, cfg.BookingRateWindow).BookingRateLimit())
		}
		v1.GET("/sessions/{id}/bookings", bookingHandler.ListBookings).Bind(superuser)
		v1.POST("/sessions/{id}/attendance/close", bookingHandler.CloseAttendance).Bind(superuser)
		v1.POST("/bookings/{id}/cancel", bookingHandler.Cancel)
		v1.POST("/bookings/{id}/check-in", bookingHandler.CheckIn)
		v1.GET("/bookings/{id}/position", bookingHandler.GetWaitlistPosition)
		v1.POST("/bookings/{id}/attendance", bookingHandler.MarkAttendance).Bind(superuser)

		// Moderation endpoints
		v1.POST("/sessions/{id}/approve", moderationHandler.Approve).Bind(superuser)
		v1.POST("/sessions/{id}/reject", moderationHandler.Reject).Bind(superuser)
		v1.POST("/sessions/{id}/request-changes", moderationHandler.RequestChanges).Bind(superuser)
		v1.GET("/sessions/{id}/moderation", moderationHandler.GetHistory)
		v1.POST("/series", moderationHandler.PlanSeries).Bind(superuser)

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if redisClient != nil {
				if err := utils.RedisHealthCheck(e.Request.Context(), redisClient); err != nil {
					return e.JSON(503, map[string]string{
						"status": "unhealthy",
						"error":  err.Error(),
					})
				}
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		slog.Info("Server routes registered", "environment", cfg.Environment)
		return e.Next()
	})

	// Serve on the configured port when no subcommand is given
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve", "--http=0.0.0.0:"+cfg.Port)
	}
	return app.Start()
}

// newPublisher fans domain events out to every configured broker.
func newPublisher(cfg *config.Config) (events.Publisher, func(), error) {
	fanout := events.NewFanout()
	closers := []func() error{}

	if cfg.PubNubEnabled() {
		fanout.Add("pubnub", events.NewPubNubPublisher(events.PubNubConfig{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		}))
	}

	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		fanout.Add("amqp", amqpPublisher)
		closers = append(closers, amqpPublisher.Close)
	}

	return fanout, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("Failed to close event publisher", "error", err)
			}
		}
	}, nil
}
