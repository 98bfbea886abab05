package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
	"github.com/noah-isme/enrollment-insight-api/internal/repository"
	"github.com/noah-isme/enrollment-insight-api/internal/service"
	"github.com/noah-isme/enrollment-insight-api/pkg/cache"
	"github.com/noah-isme/enrollment-insight-api/pkg/config"
	"github.com/noah-isme/enrollment-insight-api/pkg/database"
	"github.com/noah-isme/enrollment-insight-api/pkg/jobs"
	"github.com/noah-isme/enrollment-insight-api/pkg/storage"
)

const importQueueName = "mirror-import"

// RecordStore is the external record store as the application uses it.
type RecordStore interface {
	service.RecordWriter
	service.RecordReader
	Ping(ctx context.Context) error
}

// App holds the wired services of one process.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   RecordStore
	Metrics *service.MetricsService
	Cache   *service.CacheService

	Auth        *service.AuthService
	Sanitizer   *service.RecordSanitizer
	Mirror      *service.MirrorSyncService
	Paginator   *service.RecordPaginator
	Aggregator  *service.CohortAggregator
	Comparisons *service.ComparisonService
	Insights    *service.InsightService
	Exports     *service.ExportService
	Imports     *service.ImportService
	Worker      *service.ImportWorker
	Queue       *jobs.Queue

	closers []func() error
}

// New connects to the configured record store and, when enabled, Redis.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var closers []func() error

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			// Reports are still served, only without caching.
			logger.Warn("redis unavailable, report cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logger)
			cacheRepo = repo
			closers = append(closers, repo.Close)
		}
	}

	a := NewWithStore(cfg, logger, store, cacheRepo)
	a.closers = append(a.closers, closers...)
	return a, nil
}

// NewWithStore wires the services around an already opened store. cacheRepo
// may be nil.
func NewWithStore(cfg *config.Config, logger *zap.Logger, store RecordStore, cacheRepo service.CacheRepository) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logger, cfg.Cache.Enabled && cacheRepo != nil)

	a := &App{Config: cfg, Logger: logger, Store: store, Metrics: metrics, Cache: cacheSvc}
	a.Auth = service.NewAuthService(logger, service.AuthConfig{Secret: cfg.JWT.Secret, TokenExpiry: cfg.JWT.Expiration})
	a.Sanitizer = service.NewRecordSanitizer(metrics, logger)
	a.Mirror = service.NewMirrorSyncService(store, cacheSvc, metrics, logger, service.MirrorSyncConfig{
		BatchSize:   cfg.Import.BatchSize,
		CallTimeout: cfg.Store.Timeout,
	})
	a.Paginator = service.NewRecordPaginator(store, metrics, logger, service.PaginatorConfig{
		PageSize:    cfg.Comparison.PageSize,
		CallTimeout: cfg.Store.Timeout,
	})
	a.Aggregator = service.NewCohortAggregator(service.AggregatorConfig{
		WindowDays:    cfg.Comparison.WindowDays,
		Terms:         cfg.Comparison.Terms,
		WeekdayLocale: cfg.Comparison.WeekdayLocale,
	})
	a.Comparisons = service.NewComparisonService(a.Paginator, a.Aggregator, cacheSvc, validate, logger, cfg.Cache.TTL)
	a.Insights = service.NewInsightService(a.Paginator, cacheSvc, validate, logger, cfg.Cache.TTL)
	a.Exports = service.NewExportService(a.Comparisons, logger, nil, nil, nil)
	a.Worker = service.NewImportWorker(a.Sanitizer, a.Mirror, logger)
	// Imports are never retried: a repeated delete-then-insert could wipe a
	// unit that a newer upload has just written.
	a.Queue = jobs.NewQueue(importQueueName, a.Worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Import.Workers,
		BufferSize: cfg.Import.QueueSize,
		MaxRetries: 0,
		Logger:     logger,
	})
	a.Imports = service.NewImportService(a.Queue, validate, logger, cfg.Import.MaxFileSizeBytes)

	if cfg.Import.SpoolDir != "" {
		spool, err := storage.NewSpool(cfg.Import.SpoolDir)
		if err != nil {
			logger.Warn("upload spool unavailable, queued uploads stay in memory", zap.String("dir", cfg.Import.SpoolDir), zap.Error(err))
		} else {
			if cfg.Import.SpoolTTL > 0 {
				if swept, err := spool.Sweep(cfg.Import.SpoolTTL); err != nil {
					logger.Warn("upload spool sweep failed", zap.Error(err))
				} else if len(swept) > 0 {
					logger.Info("stale uploads removed", zap.Int("count", len(swept)))
				}
			}
			a.Imports.WithSpool(spool)
			a.Worker.WithSpool(spool)
		}
	}
	return a
}

// Start launches the import workers.
func (a *App) Start(ctx context.Context) {
	a.Queue.Start(ctx)
}

// Close stops the workers and releases connections.
func (a *App) Close() error {
	a.Queue.Stop()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunImport executes an import synchronously, bypassing the queue.
func (a *App) RunImport(ctx context.Context, unitID, filename string, payload []byte) (models.SyncReport, error) {
	return a.Worker.Run(ctx, models.ImportTask{JobID: "cli", UnitID: unitID, Filename: filename, Payload: payload})
}

func openStore(ctx context.Context, cfg *config.Config) (RecordStore, func() error, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open record store: %w", err)
		}
		return repository.NewPostgresRecordStore(db, cfg.Store.Table), db.Close, nil
	case config.StoreDriverREST:
		store := repository.NewRestRecordStore(repository.RestStoreConfig{
			BaseURL: cfg.Store.RESTURL,
			APIKey:  cfg.Store.RESTKey,
			Table:   cfg.Store.Table,
			Timeout: cfg.Store.Timeout,
		}, &http.Client{Timeout: cfg.Store.Timeout})
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
