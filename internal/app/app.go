// Package app assembles the service from its parts and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/esimwatch/esim-crawler/internal/api"
	"github.com/esimwatch/esim-crawler/internal/artifact"
	"github.com/esimwatch/esim-crawler/internal/cache"
	"github.com/esimwatch/esim-crawler/internal/clock/system"
	"github.com/esimwatch/esim-crawler/internal/config"
	"github.com/esimwatch/esim-crawler/internal/extract"
	"github.com/esimwatch/esim-crawler/internal/fetcher/browser"
	"github.com/esimwatch/esim-crawler/internal/fetcher/direct"
	"github.com/esimwatch/esim-crawler/internal/history"
	"github.com/esimwatch/esim-crawler/internal/id/uuid"
	"github.com/esimwatch/esim-crawler/internal/metrics"
	"github.com/esimwatch/esim-crawler/internal/progress"
	progresssinks "github.com/esimwatch/esim-crawler/internal/progress/sinks"
	"github.com/esimwatch/esim-crawler/internal/publisher"
	"github.com/esimwatch/esim-crawler/internal/scrape"
)

// App contains the service's wired dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	session   *browser.Session
	hub       *progress.Hub
	cache     *cache.Cache
	runner    *recordingRunner
	apiServer *api.Server
	store     history.Store
	blobs     artifact.BlobStore
}

// New wires the application. The returned App must be closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	fetcher, err := a.buildFetcher(ctx)
	if err != nil {
		return nil, err
	}

	a.hub = progress.NewHub(
		progress.Config{Logger: logger},
		progresssinks.NewLogSink(logger),
		progresssinks.NewPrometheusSink(),
	)

	enum := scrape.NewListingEnumerator(fetcher, scrape.ListingConfig{
		BaseURL:     cfg.Scraper.BaseURL,
		MaxProducts: cfg.Scraper.MaxProducts,
	}, logger)

	orchestrator := scrape.NewOrchestrator(
		enum,
		fetcher,
		extract.New(logger),
		system.New(),
		uuid.NewGenerator(),
		a.hub,
		logger,
		scrape.OrchestratorConfig{
			Delay:         cfg.Delay(),
			FetchAttempts: cfg.Scraper.FetchAttempts,
		},
	)

	store, err := a.buildHistoryStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	pub, err := a.buildPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	blobs, err := a.buildBlobStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.blobs = blobs

	a.runner = &recordingRunner{
		inner:        orchestrator,
		blobs:        blobs,
		artifactPath: cfg.Artifact.Path,
		store:        store,
		pub:          pub,
		topic:        cfg.Publisher.Topic,
		logger:       logger,
	}

	a.cache = cache.New(a.runner, cache.Config{
		RefreshTimeout: time.Duration(cfg.Cache.RefreshTimeoutSeconds) * time.Second,
	}, logger)

	a.apiServer = api.NewServer(a.cache, cfg, logger)
	return a, nil
}

func (a *App) buildFetcher(ctx context.Context) (scrape.Fetcher, error) {
	cfg := a.cfg
	switch cfg.Fetcher.Channel {
	case "direct":
		return direct.New(direct.Config{
			BaseURL:   cfg.Scraper.BaseURL,
			Country:   cfg.Scraper.Country,
			UserAgent: cfg.Scraper.UserAgent,
			Limit:     cfg.Scraper.MaxProducts,
			Timeout:   time.Duration(cfg.Fetcher.HTTPTimeoutSec) * time.Second,
		}), nil
	case "browserapi", "dom":
		session, err := browser.NewSession(browser.Config{
			Headless:          cfg.Fetcher.Headless,
			UserAgent:         cfg.Scraper.UserAgent,
			NavigationTimeout: time.Duration(cfg.Fetcher.NavTimeoutSec) * time.Second,
			BootstrapWait:     time.Duration(cfg.Fetcher.BootstrapWaitSec) * time.Second,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		a.session = session
		storefront := cfg.Scraper.BaseURL + "/us/en/esims/"
		if err := session.Bootstrap(ctx, storefront); err != nil {
			a.logger.Warn("browser bootstrap failed, fetches may be blocked", zap.Error(err))
		}
		if cfg.Fetcher.Channel == "dom" {
			return browser.NewDOMFetcher(session, browser.DOMConfig{BaseURL: cfg.Scraper.BaseURL}), nil
		}
		return browser.NewAPIFetcher(session, browser.APIConfig{
			BaseURL: cfg.Scraper.BaseURL,
			Country: cfg.Scraper.Country,
			Limit:   cfg.Scraper.MaxProducts,
		}), nil
	default:
		return nil, fmt.Errorf("unknown fetcher channel %q", cfg.Fetcher.Channel)
	}
}

func (a *App) buildHistoryStore(ctx context.Context) (history.Store, error) {
	switch a.cfg.History.Provider {
	case "postgres":
		store, err := history.NewPostgresStore(ctx, history.PostgresConfig{DSN: a.cfg.History.DSN})
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
		return store, nil
	default:
		return history.NewMemoryStore(), nil
	}
}

func (a *App) buildPublisher(ctx context.Context) (publisher.Publisher, error) {
	switch a.cfg.Publisher.Provider {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, a.cfg.Publisher.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		return publisher.NewPubSub(client)
	default:
		return publisher.NewMemory(), nil
	}
}

func (a *App) buildBlobStore(ctx context.Context) (artifact.BlobStore, error) {
	switch a.cfg.Artifact.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage client: %w", err)
		}
		return artifact.NewGCSStore(client, a.cfg.Artifact.GCSBucket)
	case "memory":
		return artifact.NewMemoryStore(), nil
	default:
		return artifact.NewLocalStore(a.cfg.Artifact.BaseDir)
	}
}

// Serve runs the HTTP server until the context is canceled or a signal
// arrives.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	a.logger.Info("http server stopped")
	return nil
}

// Batch executes one scrape run and exits. The runner writes the snapshot
// artifact and history row as part of the run.
func (a *App) Batch(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, a.cfg.RunTimeout())
	defer cancel()

	result, err := a.runner.Run(runCtx)
	if err != nil {
		return fmt.Errorf("batch run: %w", err)
	}

	a.logger.Info("batch run complete",
		zap.String("run_id", result.RunID),
		zap.Int("products", result.Len()),
	)
	return nil
}

// Close releases browser, hub, and store resources.
func (a *App) Close() {
	if a.hub != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.hub.Close(closeCtx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
		cancel()
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
