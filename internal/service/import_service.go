package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
	"github.com/noah-isme/enrollment-insight-api/pkg/jobs"
	"github.com/noah-isme/enrollment-insight-api/pkg/spreadsheet"
)

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type uploadSpool interface {
	Put(key string, data []byte) (string, error)
	Read(key string) ([]byte, error)
	Remove(key string) error
}

// ImportService accepts uploads and hands them to the import queue. It
// never waits for the import itself.
type ImportService struct {
	queue       jobEnqueuer
	spool       uploadSpool
	validator   *validator.Validate
	logger      *zap.Logger
	maxFileSize int64
}

// NewImportService constructs an ImportService.
func NewImportService(queue jobEnqueuer, validate *validator.Validate, logger *zap.Logger, maxFileSize int64) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ImportService{queue: queue, validator: validate, logger: logger, maxFileSize: maxFileSize}
}

// WithSpool parks accepted uploads on disk so queued jobs only carry a key.
func (s *ImportService) WithSpool(spool uploadSpool) *ImportService {
	s.spool = spool
	return s
}

// Submit validates the upload and enqueues it.
func (s *ImportService) Submit(ctx context.Context, req models.ImportRequest) (*models.ImportAck, error) {
	req.UnitID = strings.TrimSpace(req.UnitID)
	req.Filename = filepath.Base(strings.TrimSpace(req.Filename))

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationMessage(err))
	}
	if !spreadsheet.Supported(req.Filename) {
		return nil, appErrors.ErrUnsupportedFile
	}
	if s.maxFileSize > 0 && int64(len(req.Payload)) > s.maxFileSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("uploaded file exceeds %d bytes", s.maxFileSize))
	}

	task := models.ImportTask{
		JobID:      uuid.NewString(),
		UnitID:     req.UnitID,
		Filename:   req.Filename,
		Payload:    req.Payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if s.spool != nil {
		key, err := s.spool.Put(task.JobID+strings.ToLower(filepath.Ext(task.Filename)), req.Payload)
		if err != nil {
			s.logger.Error("import spool failed", zap.String("unit_id", task.UnitID), zap.String("job_id", task.JobID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
		}
		task.SpoolKey = key
		task.Payload = nil
	}
	if err := s.queue.Enqueue(jobs.Job{ID: task.JobID, Type: models.ImportJobType, Payload: task, Enqueued: task.EnqueuedAt}); err != nil {
		s.logger.Error("import enqueue failed",
			zap.String("unit_id", task.UnitID),
			zap.String("job_id", task.JobID),
			zap.Error(err),
		)
		if task.SpoolKey != "" {
			_ = s.spool.Remove(task.SpoolKey)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrQueueUnavailable.Code, appErrors.ErrQueueUnavailable.Status, appErrors.ErrQueueUnavailable.Message)
	}

	s.logger.Info("import queued",
		zap.String("unit_id", task.UnitID),
		zap.String("job_id", task.JobID),
		zap.String("filename", task.Filename),
		zap.Int("bytes", len(req.Payload)),
		zap.Bool("spooled", task.SpoolKey != ""),
	)
	return &models.ImportAck{
		JobID:    task.JobID,
		UnitID:   task.UnitID,
		Filename: task.Filename,
		Status:   models.ImportStatusQueued,
		Message:  fmt.Sprintf("file %q received; records for unit %s will be replaced in the background", task.Filename, task.UnitID),
	}, nil
}

type mirrorSyncer interface {
	Sync(ctx context.Context, unitID string, records []models.CanonicalRecord) models.SyncReport
}

// ImportWorker runs queued imports: parse, sanitize, then mirror.
type ImportWorker struct {
	sanitizer *RecordSanitizer
	mirror    mirrorSyncer
	spool     uploadSpool
	logger    *zap.Logger
}

// NewImportWorker constructs an ImportWorker.
func NewImportWorker(sanitizer *RecordSanitizer, mirror mirrorSyncer, logger *zap.Logger) *ImportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sanitizer == nil {
		sanitizer = NewRecordSanitizer(nil, logger)
	}
	return &ImportWorker{sanitizer: sanitizer, mirror: mirror, logger: logger}
}

// WithSpool lets the worker load uploads parked by ImportService.WithSpool.
func (w *ImportWorker) WithSpool(spool uploadSpool) *ImportWorker {
	w.spool = spool
	return w
}

// Handle is the jobs.Handler for mirror imports.
func (w *ImportWorker) Handle(ctx context.Context, job jobs.Job) error {
	task, ok := job.Payload.(models.ImportTask)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	if task.JobID == "" {
		task.JobID = job.ID
	}
	_, err := w.Run(ctx, task)
	return err
}

// Run executes one import synchronously. A file that cannot be parsed, or
// lacks the mandatory columns, leaves the store untouched.
func (w *ImportWorker) Run(ctx context.Context, task models.ImportTask) (models.SyncReport, error) {
	logger := w.logger.With(zap.String("unit_id", task.UnitID), zap.String("job_id", task.JobID))

	payload, err := w.payload(task)
	if err != nil {
		return models.SyncReport{UnitID: task.UnitID}, err
	}
	table, err := spreadsheet.Read(task.Filename, payload)
	if err != nil {
		return models.SyncReport{UnitID: task.UnitID}, fmt.Errorf("read %s: %w", task.Filename, err)
	}
	if missing := missingColumns(table.Headers, colStudentID, colTermID); len(missing) > 0 {
		return models.SyncReport{UnitID: task.UnitID}, fmt.Errorf("read %s: missing required columns %s", task.Filename, strings.Join(missing, ", "))
	}
	logger.Info("import file parsed",
		zap.String("sheet", table.Sheet),
		zap.Int("rows", len(table.Rows)),
	)

	summary := w.sanitizer.Sanitize(task.UnitID, table)
	report := w.mirror.Sync(ctx, task.UnitID, summary.Records)
	return report, nil
}

// payload returns the upload bytes. A spooled upload is consumed: it is
// removed once read, whatever the outcome of the import.
func (w *ImportWorker) payload(task models.ImportTask) ([]byte, error) {
	if task.SpoolKey == "" {
		return task.Payload, nil
	}
	if w.spool == nil {
		return nil, fmt.Errorf("upload %s is spooled but no spool is configured", task.SpoolKey)
	}
	data, err := w.spool.Read(task.SpoolKey)
	if err != nil {
		return nil, fmt.Errorf("load upload %s: %w", task.SpoolKey, err)
	}
	if err := w.spool.Remove(task.SpoolKey); err != nil {
		w.logger.Warn("spooled upload not removed", zap.String("key", task.SpoolKey), zap.Error(err))
	}
	return data, nil
}

func missingColumns(headers []string, required ...string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}
