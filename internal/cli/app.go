// Package cli is the greencycle command-line front end. Each screen of the
// platform maps to a command that drives the services in internal/service
// and internal/ai.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/greencycle/greencycle/internal/ai"
	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/cache"
	"github.com/greencycle/greencycle/internal/config"
	"github.com/greencycle/greencycle/internal/events"
	"github.com/greencycle/greencycle/internal/metrics"
	"github.com/greencycle/greencycle/internal/repository"
	"github.com/greencycle/greencycle/internal/service"
	"github.com/greencycle/greencycle/internal/session"
	"github.com/greencycle/greencycle/internal/storage/minio"
	"github.com/greencycle/greencycle/internal/tokenstore"
)

// ErrNoDatabase is returned by catalog commands when DATABASE_URL is unset.
var ErrNoDatabase = errors.New("DATABASE_URL is not set")

// Streams are the process's standard streams.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// App is the session context shared by every command: one token store, one
// event registry, one request client.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Streams  Streams
	Metrics  *metrics.InMemoryRecorder
	Registry *events.Registry
	Store    tokenstore.Store
	API      *apiclient.Client
	Session  *session.Session

	Blogs       *service.BlogService
	Bloggers    *service.BloggerService
	Campaigns   *service.CampaignService
	Donations   *service.DonationService
	Subscribers *service.SubscriberService
	Games       *service.GameService
	Items       *service.RecyclepediaService

	cache *cache.Cache
	input *bufio.Scanner

	mu   sync.Mutex
	ai   *ai.Client
	repo *repository.Repository
}

// NewApp builds the application from configuration. Redis is connected only
// when REDIS_URL is set; the AI client and the catalog database are opened
// on first use.
func NewApp(ctx context.Context, cfg *config.Config, streams Streams, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Streams:  streams,
		Metrics:  metrics.NewInMemory(),
		Registry: events.NewRegistry(logger),
	}

	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.cache = c
	}

	store, err := a.openStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	a.API, err = apiclient.New(apiclient.Options{
		BaseURL:  cfg.APIBaseURL,
		APIKey:   cfg.APIKey,
		Timeout:  cfg.HTTPTimeout,
		Service:  "api",
		Store:    store,
		Registry: a.Registry,
		Metrics:  a.Metrics,
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create api client: %w", err)
	}
	a.Session = session.New(ctx, a.API, store, logger)

	var catalog service.CatalogCache
	if a.cache != nil {
		catalog = cache.NewCatalogCache(a.cache, cfg.CatalogCacheTTL)
	}

	a.Blogs = service.NewBlogService(a.API)
	a.Bloggers = service.NewBloggerService(a.API)
	a.Campaigns = service.NewCampaignService(a.API)
	a.Donations = service.NewDonationService(a.API)
	a.Subscribers = service.NewSubscriberService(a.API)
	a.Games = service.NewGameService(a.API)
	a.Items = service.NewRecyclepediaService(a.API, catalog, a.Metrics, logger)
	return a, nil
}

func (a *App) openStore() (tokenstore.Store, error) {
	switch a.Config.TokenStore {
	case config.TokenStoreMemory:
		return tokenstore.NewMemoryStore(), nil
	case config.TokenStoreRedis:
		if a.cache == nil {
			return nil, fmt.Errorf("%w: TOKEN_STORE=redis requires REDIS_URL", config.ErrInvalidConfig)
		}
		return cache.NewSessionStore(a.cache, a.Logger), nil
	default:
		path, err := a.Config.ResolveTokenStorePath()
		if err != nil {
			return nil, fmt.Errorf("resolve token store path: %w", err)
		}
		return tokenstore.NewFileStore(path, a.Logger), nil
	}
}

// AI returns the inference client, creating it on first use. Annotated
// images are archived when object storage is configured.
func (a *App) AI(ctx context.Context) (*ai.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ai != nil {
		return a.ai, nil
	}

	opts := ai.Options{
		BaseURL:   a.Config.AIBaseURL,
		VideoPath: a.Config.AIVideoPath,
		Timeout:   a.Config.HTTPTimeout,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	}
	if a.Config.Storage.Enabled() {
		archive, err := minio.Open(ctx, a.Config.Storage)
		if err != nil {
			return nil, fmt.Errorf("open prediction archive: %w", err)
		}
		opts.Archive = archive
	}

	client, err := ai.New(opts)
	if err != nil {
		return nil, fmt.Errorf("create ai client: %w", err)
	}
	a.ai = client
	return client, nil
}

// Repository opens the catalog mirror on first use and applies migrations.
func (a *App) Repository(ctx context.Context) (*repository.Repository, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.repo != nil {
		return a.repo, nil
	}
	if a.Config.DatabaseURL == "" {
		return nil, ErrNoDatabase
	}

	repo, err := repository.New(ctx, a.Config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	a.repo = repo
	return repo, nil
}

// Close releases the Redis and database connections.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.repo != nil {
		a.repo.Close()
		a.repo = nil
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Logger.Warn("failed to close redis", slog.String("error", err.Error()))
		}
		a.cache = nil
	}
}
