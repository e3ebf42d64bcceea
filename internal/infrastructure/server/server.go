package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/livepen/internal/api/http"
	"github.com/GriffinCanCode/livepen/internal/api/middleware"
	"github.com/GriffinCanCode/livepen/internal/api/ws"
	"github.com/GriffinCanCode/livepen/internal/domain/hosting"
	"github.com/GriffinCanCode/livepen/internal/domain/library"
	"github.com/GriffinCanCode/livepen/internal/domain/share"
	"github.com/GriffinCanCode/livepen/internal/domain/theme"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/backup"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/db"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/scheduler"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livepen/internal/providers/sandbox"
	"github.com/GriffinCanCode/livepen/internal/shared/paths"
)

// Scheduled job names.
const (
	JobSweep  = "retention-sweep"
	JobBackup = "backup"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	database  *db.DB
	hosting   *hosting.Service
	backups   *backup.Manager
	scheduler *scheduler.Scheduler
	pool      *sandbox.Pool
	tracer    *tracing.Tracer
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
	cancel    context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Logging))
	if err != nil {
		if cfg.Logging.Development {
			logger = logging.NewDevelopment()
		} else {
			logger = logging.NewDefault()
		}
		logger.Warn("Invalid log configuration, using defaults", zap.Error(err))
	}

	layout := paths.New(cfg.Database.DataDir)
	logger.Info("Initializing LivePen server",
		zap.String("port", cfg.Server.Port),
		zap.String("public_url", cfg.Server.PublicURL),
		zap.String("data_dir", layout.Root),
	)

	// Metrics first, other components record into them
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	if err := layout.Ensure(); err != nil {
		return nil, fmt.Errorf("preparing data directory: %w", err)
	}
	database, err := db.Open(layout.Database())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	logger.Info("Database ready", zap.String("path", database.Path()))

	hostingSvc := hosting.NewService(
		hosting.NewRepository(database),
		cfg.Server.PublicURL,
		hosting.RetentionFromConfig(cfg.Retention),
		metrics,
		logging.Component(logger.Logger, "hosting"),
	)
	backups := backup.New(database, layout, cfg.Retention.BackupMaxAge, metrics, logging.Component(logger.Logger, "backup"))

	sched := scheduler.New(time.Local, logging.Component(logger.Logger, "scheduler"))
	if cfg.Retention.Enabled {
		if err := sched.AddDaily(JobSweep, cfg.Retention.SweepAt, func(ctx context.Context) error {
			_, err := hostingSvc.Sweep(ctx)
			return err
		}); err != nil {
			database.Close()
			return nil, fmt.Errorf("scheduling sweep: %w", err)
		}
		if err := sched.AddDaily(JobBackup, cfg.Retention.BackupAt, func(ctx context.Context) error {
			_, err := backups.Run(ctx)
			return err
		}); err != nil {
			database.Close()
			return nil, fmt.Errorf("scheduling backup: %w", err)
		}
	}

	runtime := sandbox.New(sandbox.Config{
		Timeout:  cfg.Sandbox.Timeout,
		MaxTasks: cfg.Sandbox.MaxTasks,
	}, logging.Component(logger.Logger, "sandbox")).WithMetrics(metrics)
	pool := sandbox.NewPool(runtime, cfg.Sandbox.PoolSize)

	tracer := tracing.New("livepen", logger.Logger)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSConfigFor(cfg.Server.CORSOrigins)))

	guards := apihttp.RouteGuards{
		Admin: middleware.AdminAuth(cfg.Admin.TokenHash, logging.Component(logger.Logger, "admin")),
	}
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Duration("window", cfg.RateLimit.Window),
			zap.Int("create", cfg.RateLimit.CreateLimit),
			zap.Int("update", cfg.RateLimit.UpdateLimit),
		)
		guards.Create = middleware.RateLimit(middleware.RateLimitConfig{
			Bucket:  "create",
			Max:     cfg.RateLimit.CreateLimit,
			Window:  cfg.RateLimit.Window,
			Message: "Too many requests, please try again later",
		}, metrics, logging.Component(logger.Logger, "ratelimit"))
		guards.Update = middleware.RateLimit(middleware.RateLimitConfig{
			Bucket:  "update",
			Max:     cfg.RateLimit.UpdateLimit,
			Window:  cfg.RateLimit.Window,
			Message: "Too many updates, please try again later",
		}, metrics, logging.Component(logger.Logger, "ratelimit"))
	}

	libraries := library.Builtin()
	handlers := apihttp.NewHandlers(apihttp.Options{
		Hosting:    hostingSvc,
		Backups:    backups,
		Runner:     pool,
		Codec:      share.NewCodec(cfg.Playground.MaxTokenBytes, metrics),
		Libraries:  libraries,
		Themes:     theme.Builtin(),
		PublicURL:  cfg.Server.PublicURL,
		RunTimeout: cfg.Sandbox.Timeout,
		Metrics:    metrics,
		Logger:     logging.Component(logger.Logger, "api"),
	})
	wsHandler := ws.NewHandler(ws.Options{
		Runner:    pool,
		Libraries: libraries,
		Timeout:   cfg.Sandbox.Timeout,
		Metrics:   metrics,
		Logger:    logging.Component(logger.Logger, "ws"),
	})
	metricsAggregator := apihttp.NewMetricsAggregator(metrics, hostingSvc, pool)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/metrics/json", metricsAggregator.GetAggregatedMetrics)

	// WebSocket
	router.GET("/api/run/ws", wsHandler.HandleConnection)

	// REST routes, including the /:id permalink catch-all
	handlers.Register(router, guards)

	logger.Info("Server initialized successfully")

	return &Server{
		router:    router,
		database:  database,
		hosting:   hostingSvc,
		backups:   backups,
		scheduler: sched,
		pool:      pool,
		tracer:    tracer,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Scheduler returns the job scheduler.
func (s *Server) Scheduler() *scheduler.Scheduler { return s.scheduler }

// Run starts the scheduled jobs and serves HTTP until Close is called.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.scheduler.Start(ctx)

	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()
	s.pool.Close()
	s.tracer.Close()

	if err := s.database.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.logger.Info("Closed database")

	// Sync logger before exit
	s.logger.Sync()

	return nil
}
