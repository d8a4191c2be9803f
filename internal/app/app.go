// Package app wires configuration into the concrete services the CLI
// commands run: stores, fetchers, the crawler, and the ingest pipeline.
package app

import (
	"context"
	"fmt"

	gcsclient "cloud.google.com/go/storage"
	gpubsub "cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/clock/system"
	"github.com/hoopindex/ratings-pipeline/internal/config"
	"github.com/hoopindex/ratings-pipeline/internal/crawl"
	"github.com/hoopindex/ratings-pipeline/internal/export"
	collyfetcher "github.com/hoopindex/ratings-pipeline/internal/fetcher/colly"
	"github.com/hoopindex/ratings-pipeline/internal/fetcher/headless"
	"github.com/hoopindex/ratings-pipeline/internal/ingest"
	"github.com/hoopindex/ratings-pipeline/internal/logging"
	"github.com/hoopindex/ratings-pipeline/internal/metrics"
	pubmem "github.com/hoopindex/ratings-pipeline/internal/publisher/memory"
	pubgcp "github.com/hoopindex/ratings-pipeline/internal/publisher/pubsub"
	"github.com/hoopindex/ratings-pipeline/internal/ratings"
	"github.com/hoopindex/ratings-pipeline/internal/reconcile"
	storemem "github.com/hoopindex/ratings-pipeline/internal/store/memory"
	"github.com/hoopindex/ratings-pipeline/internal/store/postgres"
	storeredis "github.com/hoopindex/ratings-pipeline/internal/store/redis"
	blobgcs "github.com/hoopindex/ratings-pipeline/internal/storage/gcs"
	bloblocal "github.com/hoopindex/ratings-pipeline/internal/storage/local"
	blobmem "github.com/hoopindex/ratings-pipeline/internal/storage/memory"
)

// App holds the shared dependencies behind every command.
type App struct {
	Cfg       config.Config
	Logger    *zap.Logger
	Store     ratings.Store
	Logs      ratings.RequestLogStore
	Limits    ratings.RateLimitStore
	Blobs     ratings.BlobStore
	Publisher ratings.Publisher
	Clock     ratings.Clock

	closers []func()
}

// New loads config and builds the dependency graph. The DSN decides the
// store backend: Postgres when set, in-memory otherwise.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	metrics.Init()

	a := &App{
		Cfg:    cfg,
		Logger: logger,
		Clock:  system.New(),
	}
	if err := a.buildStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildLimits(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildBlobs(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases every resource the app opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

func (a *App) buildStore(ctx context.Context) error {
	if a.Cfg.DB.DSN == "" {
		store := storemem.NewStore()
		a.Store = store
		a.Logs = store
		a.Logger.Info("using in-memory store")
		return nil
	}
	store, err := postgres.New(ctx, postgres.Config{
		DSN:      a.Cfg.DB.DSN,
		MaxConns: a.Cfg.DB.MaxConns,
		MinConns: a.Cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("build postgres store: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	a.Store = store
	a.Logs = store
	return nil
}

func (a *App) buildLimits() error {
	if a.Cfg.RateLimit.Backend != "redis" {
		a.Limits = storemem.NewRateLimitStore()
		return nil
	}
	limits, err := storeredis.New(storeredis.Config{URL: a.redisURL()})
	if err != nil {
		return fmt.Errorf("build redis rate limiter: %w", err)
	}
	a.closers = append(a.closers, func() { _ = limits.Close() })
	a.Limits = limits
	return nil
}

func (a *App) redisURL() string {
	if a.Cfg.Redis.Password != "" {
		return fmt.Sprintf("redis://:%s@%s/%d", a.Cfg.Redis.Password, a.Cfg.Redis.Addr, a.Cfg.Redis.DB)
	}
	return fmt.Sprintf("redis://%s/%d", a.Cfg.Redis.Addr, a.Cfg.Redis.DB)
}

func (a *App) buildBlobs(ctx context.Context) error {
	switch a.Cfg.Export.Backend {
	case "memory":
		a.Blobs = blobmem.NewBlobStore()
	case "local":
		blobs, err := bloblocal.New(bloblocal.Config{BaseDir: a.Cfg.Export.LocalDir})
		if err != nil {
			return fmt.Errorf("build local blob store: %w", err)
		}
		a.Blobs = blobs
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("build gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		blobs, err := blobgcs.New(client, blobgcs.Config{Bucket: a.Cfg.Export.GCSBucket})
		if err != nil {
			return err
		}
		a.Blobs = blobs
	default:
		return fmt.Errorf("unknown export backend %q", a.Cfg.Export.Backend)
	}
	return nil
}

func (a *App) buildPublisher(ctx context.Context) error {
	if a.Cfg.PubSub.ProjectID == "" {
		a.Publisher = pubmem.New()
		return nil
	}
	client, err := gpubsub.NewClient(ctx, a.Cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("build pubsub client: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.Publisher = pubgcp.New(client)
	return nil
}

// BuildCrawler assembles the probe/headless fetch pipeline and the
// category crawler on top of it.
func (a *App) BuildCrawler() (*crawl.Crawler, error) {
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.Cfg.Crawler.UserAgent,
		Timeout:   a.Cfg.Fetch.Timeout(),
	})
	browser, err := headless.New(headless.Config{
		MaxParallel:       a.Cfg.Headless.MaxParallel,
		UserAgent:         a.Cfg.Crawler.UserAgent,
		NavigationTimeout: a.Cfg.Headless.NavTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("build headless fetcher: %w", err)
	}
	a.closers = append(a.closers, browser.Close)

	var selectors []string
	if a.Cfg.Crawler.RequiredSelector != "" {
		selectors = []string{a.Cfg.Crawler.RequiredSelector}
	}
	detector := crawl.NewChallengeDetector(
		a.Cfg.Headless.MinHTMLBytes,
		a.Cfg.Headless.ChallengeKeywords,
		selectors,
	)
	retry := crawl.NewRetryPolicy(
		a.Cfg.Fetch.MaxAttempts,
		a.Cfg.Fetch.BackoffBase(),
		a.Cfg.Fetch.BackoffMax(),
	)
	pacer := crawl.NewPacer(a.Cfg.Crawler.PolitenessDelay())

	paths, err := categoryPaths(a.Cfg.Crawler.CategoryPaths)
	if err != nil {
		return nil, err
	}
	return crawl.New(probe, browser, detector, retry, pacer, a.Clock, a.Logger, crawl.Config{
		BaseURL:        a.Cfg.Crawler.BaseURL,
		CategoryPaths:  paths,
		Workers:        a.Cfg.Crawler.Workers,
		DetailPagesOff: a.Cfg.Crawler.DetailPagesOff,
		MaxTeamsPerRun: a.Cfg.Crawler.MaxTeamsPerRun,
	})
}

// BuildExporter returns the artifact exporter for the configured blob
// backend and path.
func (a *App) BuildExporter() (*export.Exporter, error) {
	return export.New(a.Store, a.Blobs, a.Logger, a.Cfg.Export.Path)
}

// BuildIngest assembles the full crawl-reconcile-export pipeline.
func (a *App) BuildIngest() (*ingest.Service, error) {
	crawler, err := a.BuildCrawler()
	if err != nil {
		return nil, err
	}
	exporter, err := a.BuildExporter()
	if err != nil {
		return nil, err
	}
	engine := reconcile.New(a.Store, a.Logger)
	return ingest.New(crawler, engine, exporter, a.Publisher, a.Clock, a.Logger, a.Cfg.PubSub.TopicName), nil
}

func categoryPaths(raw map[string]string) (map[ratings.Category]string, error) {
	out := make(map[ratings.Category]string, len(raw))
	for key, path := range raw {
		category, err := ratings.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("crawler.category_paths: %w", err)
		}
		out[category] = path
	}
	return out, nil
}
