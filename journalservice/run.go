// Package journalservice wires the journal service together and runs it until shutdown.
package journalservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/api"
	"github.com/echovault/echovault/internal/chat"
	"github.com/echovault/echovault/internal/config"
	"github.com/echovault/echovault/internal/embeddings"
	"github.com/echovault/echovault/internal/events"
	"github.com/echovault/echovault/internal/factory"
	"github.com/echovault/echovault/internal/health"
	"github.com/echovault/echovault/internal/logger"
	"github.com/echovault/echovault/internal/maintenance"
	"github.com/echovault/echovault/internal/pipeline"
	"github.com/echovault/echovault/internal/relevance"
	"github.com/echovault/echovault/internal/safety"
	"github.com/echovault/echovault/internal/session"
	"github.com/echovault/echovault/internal/store"
	"github.com/echovault/echovault/internal/temporal"
)

// Run starts the journal service HTTP server and blocks until shutdown or error.
func Run() error {
	cfg, err := config.New()
	if err != nil {
		l := logger.New("journal-service")
		l.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	return RunWithConfig(cfg)
}

// RunWithConfig is Run with an already resolved configuration.
func RunWithConfig(cfg *config.Config) error {
	log := logger.NewWithWriter("journal-service", cfg.LogLevel, os.Stdout)

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("embed_provider", cfg.EmbedProvider).
		Str("llm_provider", cfg.LLMProvider).
		Msg("Journal service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = deps.closeStore() }()

	// Health checkers double as the offline watcher's connectivity signal
	storeChecker, svcHealth := startHealthCheckers(ctx, cfg, log, deps.store, deps.embedder)

	bus := events.NewBus(64)
	sched := newScheduler(cfg, log, deps, bus)
	if err := sched.Schedule(ctx, cfg.MaintenanceSchedule); err != nil {
		log.Error().Err(err).Str("schedule", cfg.MaintenanceSchedule).Msg("invalid maintenance schedule")
		return err
	}

	sessions := session.NewRegistry(session.Config{
		Pipeline: pipeline.Config{
			LowMoodThreshold: cfg.LowMoodThreshold,
			ContextVersion:   cfg.ContextVersion,
			Relevance:        relevance.Options{Threshold: relevance.Threshold(cfg.RelevanceThreshold), TopK: cfg.RelevanceTopK},
			RecentWindow:     cfg.RecentWindow,
		},
		Deps: pipeline.Deps{
			Store:        deps.store,
			Analyzer:     deps.analyzer,
			Embedder:     deps.embedder,
			Gate:         safety.NewDefaultGate(),
			Temporal:     temporal.NewResolver(nil),
			Events:       bus,
			Connectivity: storeChecker,
			Log:          log,
		},
		Scheduler:     sched,
		WatchInterval: healthInterval(cfg),
	}, log)

	router := api.NewRouter(api.Deps{
		Sessions: sessions,
		Store:    deps.store,
		Chat: chat.NewService(deps.store, deps.embedder, deps.analyzer,
			relevance.Options{Threshold: relevance.Threshold(cfg.RelevanceThreshold), TopK: cfg.RelevanceTopK}, cfg.RecentWindow, log),
		Transcriber: deps.transcriber,
		Scheduler:   sched,
		Bus:         bus,
		Health:      svcHealth,
		Log:         log,
	})

	// HTTP server and serve
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			runErr = err
		}
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		runErr = err
	}

	// Let in-flight enrichment settle before the store closes
	sessions.Close()
	sched.Stop()
	log.Info().Msg("Server exited")
	return runErr
}

type dependencies struct {
	store       store.Store
	closeStore  func() error
	analyzer    analyzer.TextAnalyzer
	embedder    embeddings.Provider
	transcriber analyzer.Transcriber
}

// initDependencies constructs required components and enforces fail-fast on missing deps.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	st, closeStore, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}

	an, err := factory.NewAnalyzer(ctx, cfg, log)
	if err != nil {
		_ = closeStore()
		log.Error().Stack().Err(err).Msg("Text analyzer unavailable")
		return nil, err
	}

	embProvider := factory.NewEmbeddingProvider(ctx, cfg, log)
	if embProvider == nil {
		_ = closeStore()
		return nil, fmt.Errorf("embedding provider not configured")
	}

	return &dependencies{
		store:       st,
		closeStore:  closeStore,
		analyzer:    an,
		embedder:    factory.BoundedEmbedder(embProvider, cfg),
		transcriber: factory.NewTranscriber(cfg),
	}, nil
}

func newScheduler(cfg *config.Config, log zerolog.Logger, deps *dependencies, bus *events.Bus) *maintenance.Scheduler {
	retrofit := maintenance.NewSchemaRetrofit(deps.store, deps.analyzer, maintenance.RetrofitConfig{
		Target:       cfg.ContextVersion,
		BatchSize:    cfg.RetrofitBatchSize,
		BatchDelay:   cfg.RetrofitBatchDelay(),
		RecentWindow: cfg.RecentWindow,
	}, log)
	backfill := maintenance.NewEmbeddingBackfill(deps.store, deps.embedder, maintenance.BackfillConfig{
		Cap:   cfg.BackfillCap,
		Delay: cfg.BackfillDelay(),
	}, log)
	return maintenance.NewScheduler(retrofit, backfill, bus, log)
}

// startHealthCheckers starts component checkers and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, embProvider embeddings.Provider) (*store.StoreHealthChecker, *health.ServiceHealthChecker) {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := healthInterval(cfg)

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	// First probe runs synchronously so sessions start with a real connectivity reading
	storeChecker.Check(ctx)
	go storeChecker.Start(ctx, interval)

	embChecker := embeddings.NewProviderHealthChecker(embProvider, log, probeTimeout)
	go embChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker, embChecker)
	go svcHealth.Start(ctx, interval)
	return storeChecker, svcHealth
}

func healthInterval(cfg *config.Config) time.Duration {
	if cfg.HealthIntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.HealthIntervalSeconds) * time.Second
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams are long-lived; handlers bound their own work.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
