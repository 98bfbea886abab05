package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
)

const (
	defaultBatchSize   = 500
	defaultCallTimeout = 120 * time.Second
)

// RecordWriter is the write side of the external record store.
type RecordWriter interface {
	DeleteByUnit(ctx context.Context, unitID string) (int64, error)
	InsertBatch(ctx context.Context, records []models.CanonicalRecord) error
}

type unitCacheInvalidator interface {
	InvalidateUnit(ctx context.Context, unitID string) error
}

// MirrorSyncConfig tunes batching and the per-call ceiling.
type MirrorSyncConfig struct {
	BatchSize   int
	CallTimeout time.Duration
}

// MirrorSyncService replaces a unit's records in the store: delete all, then
// insert in ordered batches. There is no retry. A failed delete or batch is
// logged and the import carries on.
//
// Two imports for the same unit are not coordinated and may interleave at the
// store.
type MirrorSyncService struct {
	store   RecordWriter
	cache   unitCacheInvalidator
	metrics *MetricsService
	logger  *zap.Logger
	cfg     MirrorSyncConfig
}

// NewMirrorSyncService constructs a MirrorSyncService.
func NewMirrorSyncService(store RecordWriter, cache unitCacheInvalidator, metrics *MetricsService, logger *zap.Logger, cfg MirrorSyncConfig) *MirrorSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &MirrorSyncService{store: store, cache: cache, metrics: metrics, logger: logger, cfg: cfg}
}

// Sync mirrors the records of a unit into the store.
func (s *MirrorSyncService) Sync(ctx context.Context, unitID string, records []models.CanonicalRecord) models.SyncReport {
	start := time.Now()
	logger := s.logger.With(zap.String("unit_id", unitID))
	report := models.SyncReport{UnitID: unitID, Attempted: len(records)}

	removed, err := s.deleteUnit(ctx, unitID)
	if err != nil {
		// Stale and new records may now coexist for this unit.
		report.DeleteFailed = true
		logger.Error("mirror delete failed, continuing with insert", zap.Error(err))
	} else {
		logger.Info("mirror delete finished", zap.Int64("removed", removed))
	}

	batches := PartitionRecords(records, s.cfg.BatchSize)
	report.Batches = len(batches)
	for i, batch := range batches {
		if err := s.insertBatch(ctx, batch); err != nil {
			report.FailedBatches++
			logger.Error("mirror batch failed",
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			continue
		}
		report.Inserted += len(batch)
		logger.Info("mirror batch written",
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("progress", report.Inserted),
			zap.Int("attempted", report.Attempted),
		)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUnit(ctx, unitID); err != nil {
			logger.Warn("report cache invalidation failed", zap.Error(err))
		}
	}

	report.Duration = time.Since(start)
	s.metrics.RecordImport(report)

	fields := []zap.Field{
		zap.Int("attempted", report.Attempted),
		zap.Int("batches", report.Batches),
		zap.Int("failed_batches", report.FailedBatches),
		zap.Int("inserted", report.Inserted),
		zap.Bool("delete_failed", report.DeleteFailed),
		zap.Duration("duration", report.Duration),
	}
	if report.Degraded() {
		logger.Warn("mirror import finished degraded", fields...)
	} else {
		logger.Info("mirror import finished", fields...)
	}
	return report
}

func (s *MirrorSyncService) deleteUnit(ctx context.Context, unitID string) (int64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	start := time.Now()
	removed, err := s.store.DeleteByUnit(callCtx, unitID)
	s.metrics.ObserveStoreCall("delete", err, time.Since(start))
	return removed, err
}

func (s *MirrorSyncService) insertBatch(ctx context.Context, batch []models.CanonicalRecord) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	start := time.Now()
	err := s.store.InsertBatch(callCtx, batch)
	s.metrics.ObserveStoreCall("insert", err, time.Since(start))
	s.metrics.RecordImportBatch(len(batch), err)
	return err
}

// PartitionRecords splits records into consecutive batches of at most size
// elements, preserving order. The batches share the input's backing array.
func PartitionRecords(records []models.CanonicalRecord, size int) [][]models.CanonicalRecord {
	if size <= 0 {
		size = defaultBatchSize
	}
	if len(records) == 0 {
		return nil
	}
	batches := make([][]models.CanonicalRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end:end])
	}
	return batches
}
