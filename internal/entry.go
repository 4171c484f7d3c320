// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/chancery/internal/admissions"
	"github.com/starford/chancery/internal/api"
	"github.com/starford/chancery/internal/dispatch"
	"github.com/starford/chancery/internal/mcpserver"
	"github.com/starford/chancery/internal/metrics"
	"github.com/starford/chancery/internal/scribe"
	"github.com/starford/chancery/internal/sse"
	"github.com/starford/chancery/internal/storage"
)

// components holds what is shared by the HTTP and MCP entry points.
type components struct {
	logger  *slog.Logger
	backend storage.Backend
	store   *storage.Store
	svc     *admissions.Service
	guide   scribe.Generator
}

func (a *application) logger(defaultOut io.Writer) *slog.Logger {
	out := a.logOut
	if out == nil {
		out = defaultOut
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// build opens the record store and wires the admissions service. A nil
// broker disables live event streaming.
func (a *application) build(ctx context.Context, logger *slog.Logger, broker *sse.Broker) (*components, error) {
	cfg := a.config

	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	store := storage.NewStore(backend, logger)

	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := metrics.New(a.registry)

	reporter := dispatch.ReporterFunc(func(e dispatch.Event) {
		if broker != nil {
			broker.Publish(sse.Event{Type: e.Kind, Data: e})
		}
	})

	drafts := newGenerator(cfg.Scribe, "")
	pipeline := dispatch.New(
		dispatch.WithTiming(cfg.Dispatch.Timing()),
		dispatch.WithGenerator(drafts),
		dispatch.WithRelay(a.relay),
		dispatch.WithReporter(reporter),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(m),
	)

	svcOpts := []admissions.Option{
		admissions.WithDispatcher(pipeline),
		admissions.WithGenerator(drafts),
		admissions.WithAcknowledgment(cfg.Intake.GenerateAcknowledgment),
		admissions.WithLogger(logger),
		admissions.WithMetrics(m),
	}
	if broker != nil {
		svcOpts = append(svcOpts, admissions.WithEvents(broker.PublishRecordEvent))
	}

	svc, err := admissions.New(ctx, store, svcOpts...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init admissions: %w", err)
	}

	return &components{
		logger:  logger,
		backend: backend,
		store:   store,
		svc:     svc,
		guide:   newGenerator(cfg.Scribe, scribe.GuideInstruction),
	}, nil
}

// watch reloads the service whenever the file backend is edited by another
// process. Other backends return immediately.
func (rt *components) watch(ctx context.Context) error {
	fs, ok := rt.backend.(*storage.FS)
	if !ok {
		return nil
	}
	return storage.Watch(ctx, fs, rt.logger, func(keys []string) {
		if err := rt.svc.Reload(ctx); err != nil {
			rt.logger.Error("reload after external edit failed",
				slog.Any("keys", keys),
				slog.String("error", err.Error()))
		}
	})
}

func openBackend(ctx context.Context, cfg StoreConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case BackendMemory:
		return storage.NewMemory(), nil
	case BackendSQLite:
		return storage.OpenSQLite(cfg.SQLite.Path)
	case BackendRedis:
		return storage.NewRedis(ctx, storage.RedisOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	default:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create records dir: %w", err)
		}
		return storage.NewFS(cfg.Path)
	}
}

func newGenerator(cfg ScribeConfig, systemInstruction string) scribe.Generator {
	switch cfg.Mode {
	case ScribeStatic:
		return scribe.Static(cfg.StaticText)
	case ScribeGemini:
		return scribe.NewGemini(scribe.GeminiOptions{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			SystemInstruction: systemInstruction,
			Timeout:           cfg.Timeout,
		})
	default:
		return scribe.Disabled{}
	}
}

func (a *application) apply(opts []Option) error {
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return fmt.Errorf("config is required")
	}
	return nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	if err := app.apply(opts); err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("scribe_mode", cfg.Scribe.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	rt, err := app.build(ctx, logger, broker)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	events := broker.Stream(func() []sse.Event {
		return []sse.Event{{Type: dispatch.EventState, Data: rt.svc.DispatchState()}}
	})
	apiRouter := api.NewRouter(rt.svc, rt.guide, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := rt.store.Load(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload records edited outside the process.
	g.Go(func() error {
		if err := rt.watch(gCtx); err != nil {
			logger.Warn("record watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams stay open until the broker closes.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the admin tools over stdio. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	if err := app.apply(opts); err != nil {
		return err
	}

	logger := app.logger(os.Stderr)
	slog.SetDefault(logger)

	rt, err := app.build(ctx, logger, nil)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	srv := mcpserver.New(rt.svc)
	logger.Info("MCP server starting on stdio", slog.String("store_backend", app.config.Store.Backend))

	watchCtx, cancel := context.WithCancel(ctx)
	g, gCtx := errgroup.WithContext(watchCtx)
	g.Go(func() error {
		if err := rt.watch(gCtx); err != nil {
			logger.Warn("record watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return srv.ServeStdio()
	})
	return g.Wait()
}
