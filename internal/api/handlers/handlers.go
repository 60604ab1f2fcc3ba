package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/statement-importer/internal/api/middleware"
	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/importer"
	"github.com/dvloznov/statement-importer/internal/jobs"
	"github.com/dvloznov/statement-importer/internal/logger"
	"github.com/dvloznov/statement-importer/internal/statement"
	"github.com/rs/zerolog"
)

// multipartMemory is kept in memory by ParseMultipartForm; larger parts spill
// to temporary files.
const multipartMemory = 8 << 20

// StatementImporter runs a synchronous import.
type StatementImporter interface {
	Import(ctx context.Context, data []byte, opts importer.Options) (*importer.Result, error)
}

// TransactionLister lists stored transactions.
type TransactionLister interface {
	ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error)
}

// CategoryLister lists a user's categories.
type CategoryLister interface {
	List(ctx context.Context, userID string) ([]domain.Category, error)
}

// ImportsHandler handles statement uploads.
type ImportsHandler struct {
	importer  StatementImporter
	publisher jobs.Publisher    // nil disables async imports
	archiver  importer.Archiver // archives async uploads before they are queued
	maxUpload int64
	log       zerolog.Logger
}

// NewImportsHandler creates a new imports handler. publisher and archiver may
// be nil.
func NewImportsHandler(imp StatementImporter, publisher jobs.Publisher, archiver importer.Archiver, maxUpload int64, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		importer:  imp,
		publisher: publisher,
		archiver:  archiver,
		maxUpload: maxUpload,
		log:       log,
	}
}

// upload is a parsed import form.
type upload struct {
	data []byte
	opts importer.Options
}

// readUpload parses the multipart form shared by the sync and async import
// endpoints. It writes the error response itself and returns false on failure.
func (h *ImportsHandler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxUpload))
			return nil, false
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Could not read file")
		return nil, false
	}

	opts := importer.DefaultOptions(middleware.UserIDFromContext(r.Context()), filepath.Base(header.Filename))
	opts.ContentType = header.Header.Get("Content-Type")

	for field, dst := range map[string]*bool{
		"create_missing_categories": &opts.CreateMissingCategories,
		"skip_duplicates":           &opts.SkipDuplicates,
	} {
		raw := strings.TrimSpace(r.FormValue(field))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", field))
			return nil, false
		}
		*dst = v
	}

	if raw := r.FormValue("format"); raw != "" {
		f, ok := statement.ParseFormat(raw)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported format %q", raw))
			return nil, false
		}
		opts.Format = f
	}

	return &upload{data: data, opts: opts}, true
}

// Import handles POST /api/transactions/import
func (h *ImportsHandler) Import(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.importer.Import(r.Context(), up.data, up.opts)
	if err != nil {
		log := logger.FromContext(r.Context())
		var storeErr *importer.StoreError
		if errors.As(err, &storeErr) {
			log.Error().Err(err).Str("op", storeErr.Op).Msg("Import failed in store")
			middleware.WriteError(w, http.StatusInternalServerError, storeErr.Error())
			return
		}
		log.Error().Err(err).Msg("Import failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Import failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// EnqueueImport handles POST /api/imports
func (h *ImportsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Async imports are disabled")
		return
	}

	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	log := logger.FromContext(ctx)

	job := &jobs.ImportStatementJob{
		UserID:                  up.opts.UserID,
		Filename:                up.opts.Filename,
		ContentType:             up.opts.ContentType,
		Format:                  string(up.opts.Format),
		CreateMissingCategories: up.opts.CreateMissingCategories,
		SkipDuplicates:          up.opts.SkipDuplicates,
	}

	if h.archiver != nil {
		uri, err := h.archiver.Archive(ctx, up.opts.UserID, up.opts.Filename, up.data)
		if err != nil {
			log.Warn().Err(err).Msg("Could not archive upload, queueing it inline")
			job.Data = up.data
		} else {
			job.GCSURI = uri
		}
	} else {
		job.Data = up.data
	}

	if err := h.publisher.PublishImport(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("filename", job.Filename).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(jobs.JobStatusPending),
	})
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	repo TransactionLister
	log  zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo TransactionLister, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		repo: repo,
		log:  log,
	}
}

// ListTransactions handles GET /api/transactions. start_date and end_date
// are optional YYYY-MM-DD bounds.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var bounds [2]time.Time
	for i, name := range []string{"start_date", "end_date"} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		d, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s format", name))
			return
		}
		bounds[i] = d
	}
	if !bounds[0].IsZero() && !bounds[1].IsZero() && bounds[1].Before(bounds[0]) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	transactions, err := h.repo.ListTransactions(ctx, middleware.UserIDFromContext(ctx), bounds[0], bounds[1])
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	repo CategoryLister
	log  zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(repo CategoryLister, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{
		repo: repo,
		log:  log,
	}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.repo.List(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}. Jobs of other users are reported as
// not found.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) || (err == nil && job.UserID != middleware.UserIDFromContext(ctx)) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: middleware.UserIDFromContext(ctx),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
