package models

import "time"

// ImportStatus captures the lifecycle of a mirror import.
type ImportStatus string

const (
	ImportStatusQueued ImportStatus = "queued"
)

// ImportJobType identifies mirror imports on the shared worker queue.
const ImportJobType = "mirror_import"

// ImportRequest is handed from the HTTP layer to the import queue.
type ImportRequest struct {
	UnitID   string `validate:"required,max=64"`
	Filename string `validate:"required"`
	Payload  []byte `validate:"required,min=1"`
}

// ImportTask is the queued unit of work. The upload travels either inline
// in Payload or on disk under SpoolKey.
type ImportTask struct {
	JobID      string
	UnitID     string
	Filename   string
	Payload    []byte
	SpoolKey   string
	EnqueuedAt time.Time
}

// ImportAck acknowledges an accepted upload; it says nothing about the outcome.
type ImportAck struct {
	JobID    string       `json:"job_id"`
	UnitID   string       `json:"unit_id"`
	Filename string       `json:"filename"`
	Status   ImportStatus `json:"status"`
	Message  string       `json:"message"`
}

// SyncReport summarises one mirror replacement.
type SyncReport struct {
	UnitID        string        `json:"unit_id"`
	Attempted     int           `json:"attempted"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	Inserted      int           `json:"inserted"`
	DeleteFailed  bool          `json:"delete_failed"`
	Duration      time.Duration `json:"duration"`
}

// Degraded reports whether any part of the replacement failed.
func (r SyncReport) Degraded() bool {
	return r.DeleteFailed || r.FailedBatches > 0
}
