package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-importer/internal/importer"
)

// ErrJobNotFound is returned by a JobStore for an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// ErrPermanent marks a handler error that a retry cannot fix. Queues fail the
// job on the first attempt.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct{ err error }

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() []error { return []error{ErrPermanent, e.err} }

// Permanent wraps err so that errors.Is(err, ErrPermanent) holds. The message
// is unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the import finished, even if every row was skipped.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed after its last retry.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ImportStatementJob imports one uploaded statement in the background. The
// statement is either held inline in Data or fetched from GCSURI.
type ImportStatementJob struct {
	JobID string `json:"job_id"`

	UserID                  string `json:"user_id"`
	Filename                string `json:"filename"`
	ContentType             string `json:"content_type,omitempty"`
	Format                  string `json:"format,omitempty"`
	CreateMissingCategories bool   `json:"create_missing_categories"`
	SkipDuplicates          bool   `json:"skip_duplicates"`

	// GCSURI is where the statement was archived, if it was.
	GCSURI string `json:"gcs_uri,omitempty"`

	// Data is the raw upload when it was not archived. It is released once
	// the job completes.
	Data []byte `json:"-"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the last attempt failed.
	Error string `json:"error,omitempty"`

	// Result is set when the import completed.
	Result *importer.Result `json:"result,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues jobs. Implementations may be in-memory or backed by a
// managed queue.
type Publisher interface {
	// PublishImport enqueues a statement import.
	PublishImport(ctx context.Context, job *ImportStatementJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. It returns an error if the job failed and
// should be retried.
type JobHandler func(ctx context.Context, job *ImportStatementJob) error

// JobStore keeps job state for status queries.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ImportStatementJob) error

	// GetJob retrieves a job by ID. Unknown IDs give ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*ImportStatementJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ImportStatementJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	UserID string
	Status JobStatus
	Limit  int
	Offset int
}
