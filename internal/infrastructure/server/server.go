// Package server wires configuration, content, loader and HTTP surface into
// the asset service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/assetcatalog/internal/api/http"
	"github.com/GriffinCanCode/assetcatalog/internal/api/middleware"
	"github.com/GriffinCanCode/assetcatalog/internal/domain/catalog"
	"github.com/GriffinCanCode/assetcatalog/internal/domain/loader"
	"github.com/GriffinCanCode/assetcatalog/internal/domain/prewarm"
	"github.com/GriffinCanCode/assetcatalog/internal/domain/registry"
	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/host/authoring"
	"github.com/GriffinCanCode/assetcatalog/internal/host/packaged"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/config"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/logging"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/watcher"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	engine    *loader.Engine
	registry  *registry.Registry
	scheduler *prewarm.Scheduler
	watcher   *watcher.Watcher
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics

	stopOnce sync.Once
	cancel   context.CancelFunc
}

// NewServer builds every component from cfg and initializes the registry.
// A missing catalog or deployment directory is an error; a package that
// fails to open is not.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	logger.Info("Initializing asset service",
		zap.String("port", cfg.Server.Port),
		zap.String("mode", cfg.Content.Mode),
		zap.String("root", cfg.Content.Root),
		zap.String("platform", cfg.Content.Platform),
		zap.String("catalog", cfg.Content.Catalog),
	)

	// Private registry so tests can build more than one server per process
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(promReg)

	cat, err := catalog.Load(cfg.Content.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	contentHost, err := newHost(cfg.Content, logger)
	if err != nil {
		return nil, err
	}

	reg := registry.New(cat, contentHost, registry.Options{
		Root:     cfg.Content.Root,
		Platform: cfg.Content.Platform,
		Logger:   logger.Component("registry"),
		Metrics:  metrics,
	})
	if err := reg.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize content registry: %w", err)
	}

	engine := loader.New(reg, loader.Options{
		Logger:  logger.Component("loader"),
		Metrics: metrics,
		Breaker: breakerSettings(cfg.Breaker, logger.Component("breaker")),
	})
	scheduler := prewarm.New(engine, cfg.Content.PrewarmQuantum, logger.Component("prewarm"), metrics)
	engine.AttachScheduler(scheduler)

	s := &Server{
		engine:    engine,
		registry:  reg,
		scheduler: scheduler,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}
	s.router = s.newRouter(promReg)
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Content.WatchDeployment && cfg.Content.Mode == config.ModePackaged {
		s.watcher, err = watcher.New(watcher.Config{
			Dir:         packaged.PlatformDir(cfg.Content.Root, cfg.Content.Platform),
			DebounceDur: 500 * time.Millisecond,
			Logger:      logger.Component("watcher"),
		})
		if err != nil {
			logger.Warn("Deployment watcher disabled", zap.Error(err))
			s.watcher = nil
		}
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

// newHost selects the host implementation for the content mode.
func newHost(cfg config.ContentConfig, logger *logging.Logger) (host.Host, error) {
	switch cfg.Mode {
	case config.ModeAuthoring:
		if err := requireDir(cfg.SourceRoot); err != nil {
			return nil, fmt.Errorf("unusable source root: %w", err)
		}
		return authoring.New(cfg.SourceRoot, logger.Component("authoring")), nil
	default:
		packages, err := packaged.Scan(cfg.Root, cfg.Platform)
		if err != nil {
			return nil, fmt.Errorf("unusable deployment root: %w", err)
		}
		logger.Info("Deployment scanned",
			zap.String("dir", packaged.PlatformDir(cfg.Root, cfg.Platform)),
			zap.Int("packages", len(packages)))
		return packaged.New(logger.Component("packaged")), nil
	}
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// breakerSettings trips a container's breaker after cfg.Failures
// consecutive host failures.
func breakerSettings(cfg config.BreakerConfig, logger *zap.Logger) resilience.Settings {
	failures := cfg.Failures
	if failures == 0 {
		failures = 5
	}
	return resilience.Settings{
		Timeout: cfg.Timeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Container breaker state changed",
				zap.String("container", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	}
}

func (s *Server) newRouter(gatherer prometheus.Gatherer) *gin.Engine {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(s.logger.Component("http")))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(s.engine, s.metrics, s.logger.Component("api"), cfg.Content.DestroyDerived)
	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(monitoring.Handler(gatherer)))

	return router
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler { return s.router }

// Engine returns the loader engine.
func (s *Server) Engine() *loader.Engine { return s.engine }

// Start launches the prewarm scheduler and the deployment watcher.
func (s *Server) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.scheduler.Start(ctx)

	if s.watcher == nil {
		return
	}
	changes, err := s.watcher.Start()
	if err != nil {
		s.logger.Warn("Deployment watcher not started", zap.Error(err))
		_ = s.watcher.Stop()
		s.watcher = nil
		return
	}
	go s.watchDeployment(ctx, changes)
}

// watchDeployment reopens unavailable packages whenever package files change.
func (s *Server) watchDeployment(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if len(s.registry.Unavailable()) == 0 {
				continue
			}
			opened := s.registry.RetryUnavailable(ctx)
			s.logger.Info("Deployment changed",
				zap.Int("opened", opened),
				zap.Strings("unavailable", s.registry.Unavailable()))
		}
	}
}

// Run starts the components and serves HTTP until Shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.Start(ctx)
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, stops prewarming, completes pending
// loads and releases every container.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	s.stopOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop watcher: %w", err))
			}
		}
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
		}
		if err := s.engine.Shutdown(ctx, s.config.Content.DestroyDerived); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down loader: %w", err))
		}
		if s.cancel != nil {
			s.cancel()
		}

		s.logger.Info("Server stopped", zap.Error(errors.Join(errs...)))
		_ = s.logger.Sync()
	})
	return errors.Join(errs...)
}
