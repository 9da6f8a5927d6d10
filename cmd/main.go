package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/duynhne/pkg/logger/zerolog"
	"github.com/duynhne/sawa-admin/config"
	"github.com/duynhne/sawa-admin/internal/backend"
	database "github.com/duynhne/sawa-admin/internal/core"
	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/internal/core/repository"
	logicv1 "github.com/duynhne/sawa-admin/internal/logic/v1"
	"github.com/duynhne/sawa-admin/internal/notify"
	"github.com/duynhne/sawa-admin/internal/tokenstore"
	v1 "github.com/duynhne/sawa-admin/internal/web/v1"
	"github.com/duynhne/sawa-admin/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	// Initialize Zerolog with LOG_LEVEL from config
	zerolog.Setup(cfg.Logging.Level)

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("env", cfg.Service.Env).
		Str("port", cfg.Service.Port).
		Str("backend", cfg.Backend.BaseURL).
		Msg("Service starting")

	// Initialize OpenTelemetry tracing
	var tp interface{ Shutdown(context.Context) error }
	if cfg.Tracing.Enabled {
		provider, err := middleware.InitTracing(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		} else {
			tp = provider
			log.Info().
				Str("endpoint", cfg.Tracing.Endpoint).
				Float64("sample_rate", cfg.Tracing.SampleRate).
				Msg("Tracing initialized")
		}
	} else {
		log.Info().Msg("Tracing disabled (TRACING_ENABLED=false)")
	}

	// Initialize Pyroscope profiling
	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize profiling")
		} else {
			log.Info().
				Str("endpoint", cfg.Profiling.Endpoint).
				Msg("Profiling initialized")
			defer middleware.StopProfiling()
		}
	} else {
		log.Info().Msg("Profiling disabled (PROFILING_ENABLED=false)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Backend REST client
	api, err := backend.NewClient(cfg.Backend.BaseURL, &http.Client{Timeout: cfg.GetBackendTimeoutDuration()})
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid backend URL")
	}

	// Storage: Postgres when DATABASE_URL is set, Redis for the local-storage
	// mirror and profile cache when REDIS_URL is set, memory otherwise.
	var (
		pool        *pgxpool.Pool
		redisClient *redis.Client
	)
	var localStorage domain.LocalStorage = repository.NewMemoryLocalStorage()
	var deviceRepo domain.DeviceTokenRepository = repository.NewMemoryDeviceTokenRepository()
	var profileCache domain.ProfileCache = repository.NewMemoryProfileCache(repository.DefaultProfileCacheSize, cfg.GetProfileCacheTTLDuration())

	if cfg.Database.URL != "" {
		pool, err = database.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()
		if err := database.Migrate(cfg.Database.URL); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
		localStorage = repository.NewPgxLocalStorage(pool)
		deviceRepo = repository.NewPgxDeviceTokenRepository(pool)
		log.Info().Msg("Database connection pool established")
	} else {
		log.Warn().Msg("DATABASE_URL not set, device tokens are kept in memory")
	}

	if cfg.Redis.URL != "" {
		redisClient, err = repository.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redisClient.Close()
		profileCache = repository.NewRedisProfileCache(redisClient)
		if pool == nil {
			localStorage = repository.NewRedisLocalStorage(redisClient)
		}
		log.Info().Msg("Redis client established")
	}

	devices := logicv1.NewDeviceService(deviceRepo, api)

	// Notification delivery: hub of open pages, native notifier, worker.
	hub := notify.NewHub(32, log.Logger)

	var notifier notify.NativeNotifier = notify.NewLogNotifier(log.Logger)
	if cfg.Notification.FirebaseProjectID != "" {
		fcm, err := notify.NewFCMNotifier(ctx, cfg.Notification.FirebaseProjectID, cfg.Notification.FirebaseCredentialsFile, devices, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("FCM unavailable, native notifications will only be logged")
		} else {
			notifier = fcm
			log.Info().Str("project", cfg.Notification.FirebaseProjectID).Msg("FCM notifier initialized")
		}
	}

	vapidKey := cfg.Notification.VAPIDKey
	if err := notify.CheckVAPIDKey(vapidKey); err != nil {
		log.Warn().Err(err).Msg("Web push registration disabled, set FIREBASE_VAPID_KEY")
		vapidKey = ""
	} else {
		log.Info().Msg("VAPID key validated")
	}

	worker := notify.NewServiceWorker(notifier, hub, notify.WorkerOptions{
		Icon:   cfg.Notification.Icon,
		Logger: log.Logger,
	})

	var wg sync.WaitGroup
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = worker.Run(workerCtx)
	}()

	var intake *notify.KafkaIntake
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		intake, err = notify.NewKafkaIntake(brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create kafka intake")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := intake.Run(workerCtx, worker); err != nil {
				log.Error().Err(err).Msg("Kafka intake stopped")
			}
		}()
		log.Info().Strs("brokers", brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka intake started")
	}

	handler := v1.NewHandler(v1.Options{
		Auth:         api,
		Passwords:    api,
		AdminBaseURL: api.BaseURL(),
		Tokens: tokenstore.NewFactory(localStorage, tokenstore.CookieOptions{
			Secure:   cfg.IsProduction(),
			HTTPOnly: true,
		}),
		Devices:         devices,
		Hub:             hub,
		Worker:          worker,
		ProfileCache:    profileCache,
		ProfileCacheTTL: cfg.GetProfileCacheTTLDuration(),
		FailurePolicy:   logicv1.ParseProfileFailurePolicy(cfg.Session.ProfileFailurePolicy),
		CookieDays:      cfg.Session.CookieDays,
		PushSecret:      cfg.Notification.IntakeSecret,
		VAPIDKey:        vapidKey,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	var isShuttingDown atomic.Bool

	// Tracing middleware
	r.Use(middleware.TracingMiddleware())

	// Logging middleware
	r.Use(middleware.LoggingMiddleware())

	// Prometheus middleware
	r.Use(middleware.PrometheusMiddleware())

	// Route guard runs before any page handler
	r.Use(middleware.RouteGuard())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Readiness check
	// Returns 503 once shutdown has started, to drain traffic before HTTP shutdown.
	r.GET("/ready", func(c *gin.Context) {
		if isShuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "pages": hub.Len()})
	})

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Console pages, /api and /internal/push
	handler.RegisterRoutes(r)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Service.Port).Msg("Starting console gateway")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	// Fail readiness first and wait for propagation.
	isShuttingDown.Store(true)
	drainDelay := cfg.GetReadinessDrainDelayDuration()
	if drainDelay > 0 {
		log.Info().Dur("delay", drainDelay).Msg("Readiness drain delay started")
		time.Sleep(drainDelay)
		log.Info().Dur("delay", drainDelay).Msg("Readiness drain delay completed")
	}

	// Shutdown context with configurable timeout
	shutdownTimeout := cfg.GetShutdownTimeoutDuration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info().Dur("timeout", shutdownTimeout).Msg("Shutting down server...")

	// 1. Stop the push intake and the worker, then end open streams
	stopWorker()
	if intake != nil {
		if err := intake.Close(); err != nil {
			log.Error().Err(err).Msg("Kafka intake close error")
		}
	}
	wg.Wait()
	hub.Close()
	log.Info().Msg("Notification worker stopped")

	// 2. Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		log.Info().Msg("HTTP server shutdown complete")
	}

	// 3. Close database connections
	if pool != nil {
		pool.Close()
		log.Info().Msg("Database pool closed")
	}

	// 4. Shutdown tracer
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Tracer shutdown error")
		} else {
			log.Info().Msg("Tracer shutdown complete")
		}
	}

	log.Info().Msg("Graceful shutdown complete")
}
