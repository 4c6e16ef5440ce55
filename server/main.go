package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ticketly/api/routes"
	_ "ticketly/docs"
	"ticketly/internal/notifications"
	"ticketly/internal/scheduler"
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/database"
	"ticketly/internal/shared/migrations"
	"ticketly/pkg/lock"
	"ticketly/pkg/logger"
	"ticketly/pkg/ratelimit"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// @title Ticketly API
// @version 1.0
// @description Ticket booking engine: events, seat selection, bookings, waitlists, and dynamic pricing.
// @BasePath /api/v1
func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Run(db.GetPostgreSQL()); err != nil {
		appLogger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Preload the lock release script so the first booking does not pay the
	// script upload.
	if db.Redis != nil {
		lockService := lock.NewService(db.Redis, cfg.Lock.PollInterval)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := lockService.PreloadScripts(ctx); err != nil {
			// Scripts fall back to EVAL on first use.
			appLogger.Error("failed to preload Redis Lua scripts", slog.Any("error", err))
		} else {
			appLogger.Info("Redis Lua scripts preloaded")
		}
		cancel()
	}

	// Rate limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), cfg.RateLimit)
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Notification pipeline: a Kafka publisher for outbound intents and a
	// dispatcher that consumes them. Both are optional; without Kafka the
	// engine runs with a no-op publisher.
	var publisher notifications.Publisher = notifications.NopPublisher{}
	notifyCtx, notifyCancel := context.WithCancel(context.Background())
	defer notifyCancel()

	if cfg.Kafka.Enabled {
		kafkaPublisher, err := notifications.NewKafkaPublisher(&notifications.KafkaProducerConfig{
			Brokers:          cfg.Kafka.Brokers,
			IntentTopic:      cfg.Kafka.IntentTopic,
			DeadLetterTopic:  cfg.Kafka.DLQTopic,
			RetryMax:         3,
			Timeout:          10 * time.Second,
			RequiredAcks:     notifications.DefaultKafkaProducerConfig().RequiredAcks,
			CompressionType:  notifications.DefaultKafkaProducerConfig().CompressionType,
			IdempotentWrites: true,
			MaxMessageBytes:  1000000,
		})
		if err != nil {
			appLogger.Error("failed to initialize Kafka publisher, continuing without notifications", slog.Any("error", err))
		} else {
			publisher = kafkaPublisher
			defer kafkaPublisher.Close()

			dispatcher, err := notifications.NewDispatcher(&notifications.ConsumerConfig{
				Brokers:        cfg.Kafka.Brokers,
				GroupID:        cfg.Kafka.ConsumerGroup,
				Topics:         []string{cfg.Kafka.IntentTopic},
				SessionTimeout: 30 * time.Second,
				Heartbeat:      3 * time.Second,
				MaxRetries:     3,
				RetryBackoff:   time.Second,
			}, notifications.LogSink{})
			if err != nil {
				appLogger.Error("failed to initialize notification dispatcher", slog.Any("error", err))
			} else {
				go func() {
					if err := dispatcher.Start(notifyCtx); err != nil {
						appLogger.Error("notification dispatcher stopped", slog.Any("error", err))
					}
				}()
				defer dispatcher.Stop()
				appLogger.Info("notification dispatcher started",
					slog.String("topic", cfg.Kafka.IntentTopic),
					slog.String("group", cfg.Kafka.ConsumerGroup),
				)
			}
		}
	}

	// Routes and the dependency graph behind them.
	appRouter := routes.NewRouter(cfg, db, publisher)
	engine := setupEngine(cfg, appRouter, rateLimiter)

	// Background sweeps share the wired services with the HTTP layer.
	jobs := scheduler.NewJobProcessor(
		appRouter.BookingService(),
		appRouter.WaitlistCoordinator(),
		appRouter.SeatController(),
		appRouter.PricingService(),
		cfg,
	)
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()
	jobs.Start(schedulerCtx)
	defer jobs.Stop()

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("version", Version),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
			slog.Bool("kafka", cfg.Kafka.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("server exited gracefully")
}

func setupEngine(cfg *config.Config, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	// Built-in middleware: logs requests + recovers from panics
	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	// CORS configuration
	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // allow every origin dynamically
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-RateLimit-*"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	appRouter.SetupRoutes(engine)

	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		l.LogHTTPRequest(c, duration)
	}
}
