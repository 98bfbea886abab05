package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
)

const defaultPageSize = 1000

// RecordReader is the read side of the external record store.
type RecordReader interface {
	FetchPage(ctx context.Context, filter models.RecordFilter, offset, limit int) ([]models.StoredRecord, error)
}

// PaginatorConfig tunes paged retrieval.
type PaginatorConfig struct {
	PageSize    int
	CallTimeout time.Duration
}

// Retrieval is the assembled result of a paged read. Truncated is set when a
// page failed and the records are only the pages read before it.
type Retrieval struct {
	Records   []models.StoredRecord
	Pages     int
	Truncated bool
}

// RecordPaginator reads every matching record page by page, sequentially.
type RecordPaginator struct {
	store   RecordReader
	metrics *MetricsService
	logger  *zap.Logger
	cfg     PaginatorConfig
}

// NewRecordPaginator constructs a RecordPaginator.
func NewRecordPaginator(store RecordReader, metrics *MetricsService, logger *zap.Logger, cfg PaginatorConfig) *RecordPaginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &RecordPaginator{store: store, metrics: metrics, logger: logger, cfg: cfg}
}

// FetchAll stops at the first empty or short page. A failing page ends the
// read early; what was gathered so far is returned, never an error.
func (p *RecordPaginator) FetchAll(ctx context.Context, filter models.RecordFilter) Retrieval {
	var result Retrieval
	for offset := 0; ; offset += p.cfg.PageSize {
		page, err := p.fetchPage(ctx, filter, offset)
		if err != nil {
			result.Truncated = true
			p.metrics.RecordRetrievalAbort()
			p.logger.Error("record retrieval aborted, returning partial data",
				zap.String("unit_id", filter.UnitID),
				zap.Int("offset", offset),
				zap.Int("retrieved", len(result.Records)),
				zap.Error(err),
			)
			break
		}
		if len(page) == 0 {
			break
		}
		result.Pages++
		result.Records = append(result.Records, page...)
		if len(page) < p.cfg.PageSize {
			break
		}
	}

	p.logger.Debug("record retrieval finished",
		zap.String("unit_id", filter.UnitID),
		zap.Int("pages", result.Pages),
		zap.Int("retrieved", len(result.Records)),
	)
	return result
}

func (p *RecordPaginator) fetchPage(ctx context.Context, filter models.RecordFilter, offset int) ([]models.StoredRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()
	start := time.Now()
	page, err := p.store.FetchPage(callCtx, filter, offset, p.cfg.PageSize)
	p.metrics.ObserveStoreCall("fetch", err, time.Since(start))
	return page, err
}
