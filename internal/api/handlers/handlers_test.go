package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/statement-importer/internal/api/middleware"
	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/importer"
	"github.com/dvloznov/statement-importer/internal/infra/sqlite"
	"github.com/dvloznov/statement-importer/internal/jobs"
	"github.com/dvloznov/statement-importer/internal/jobs/inmemory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementCSV = "Date,Description,Debit,Credit,Ref No\n" +
	"31/01/2024,UPI-ZOMATO-123,250.00,,UTR1\n" +
	"2024-13-40,Swiggy,100,,\n" +
	"01/02/2024,SALARY,,50000,\n" +
	"02/02/2024,Gym membership,1200,,\n" +
	"02/02/2024,Gym membership,1200,,\n"

type mockImporter struct {
	ImportFunc func(ctx context.Context, data []byte, opts importer.Options) (*importer.Result, error)
}

func (m *mockImporter) Import(ctx context.Context, data []byte, opts importer.Options) (*importer.Result, error) {
	return m.ImportFunc(ctx, data, opts)
}

type mockPublisher struct {
	published []*jobs.ImportStatementJob
	err       error
}

func (m *mockPublisher) PublishImport(_ context.Context, job *jobs.ImportStatementJob) error {
	if m.err != nil {
		return m.err
	}
	job.JobID = fmt.Sprintf("job-%d", len(m.published)+1)
	job.Status = jobs.JobStatusPending
	m.published = append(m.published, job)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type mockArchiver struct {
	ArchiveFunc func(ctx context.Context, userID, filename string, data []byte) (string, error)
}

func (m *mockArchiver) Archive(ctx context.Context, userID, filename string, data []byte) (string, error) {
	return m.ArchiveFunc(ctx, userID, filename, data)
}

type mockTransactions struct {
	ListTransactionsFunc func(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error)
}

func (m *mockTransactions) ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error) {
	return m.ListTransactionsFunc(ctx, userID, start, end)
}

type mockCategories struct {
	ListFunc func(ctx context.Context, userID string) ([]domain.Category, error)
}

func (m *mockCategories) List(ctx context.Context, userID string) ([]domain.Category, error) {
	return m.ListFunc(ctx, userID)
}

// multipartRequest builds a POST with the given file (skipped when filename
// is empty) and form fields.
func multipartRequest(t *testing.T, target, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, r io.Reader, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r).Decode(v))
}

func newSQLiteRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := zerolog.Nop()
	imp := importer.New(store.Categories(), store.Transactions())
	return NewRouter(Handlers{
		Imports:      NewImportsHandler(imp, nil, nil, 1<<20, log),
		Transactions: NewTransactionsHandler(store.Transactions(), log),
		Categories:   NewCategoriesHandler(store.Categories(), log),
	}, "default", log)
}

func TestImport_EndToEnd(t *testing.T) {
	router := newSQLiteRouter(t)

	req := multipartRequest(t, "/api/transactions/import", "jan.csv", []byte(statementCSV), nil)
	req.Header.Set(middleware.UserHeader, "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		CreatedCount   int              `json:"created_count"`
		SkippedCount   int              `json:"skipped_count"`
		Created        []map[string]any `json:"created"`
		SkippedReasons []string         `json:"skipped_reasons"`
	}
	decode(t, rec.Body, &res)
	assert.Equal(t, 2, res.CreatedCount)
	assert.Equal(t, 3, res.SkippedCount)
	assert.Equal(t, []string{importer.ReasonInvalidDate, importer.ReasonNoWithdrawal, importer.ReasonDuplicate}, res.SkippedReasons)
	require.Len(t, res.Created, 2)
	assert.Equal(t, "250.00", res.Created[0]["amount"])
	assert.Equal(t, "2024-01-31", res.Created[0]["transaction_date"])
	assert.Equal(t, "alice", res.Created[0]["user_id"])

	t.Run("reimport skips everything", func(t *testing.T) {
		req := multipartRequest(t, "/api/transactions/import", "jan.csv", []byte(statementCSV), nil)
		req.Header.Set(middleware.UserHeader, "alice")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var again importer.Result
		decode(t, rec.Body, &again)
		assert.Zero(t, again.CreatedCount)
		assert.Equal(t, 5, again.SkippedCount)
	})

	t.Run("transactions are listed per user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/transactions?start_date=2024-01-01&end_date=2024-12-31", nil)
		req.Header.Set(middleware.UserHeader, "alice")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var list []map[string]any
		decode(t, rec.Body, &list)
		assert.Len(t, list, 2)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("categories were created", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
		req.Header.Set(middleware.UserHeader, "alice")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Categories []domain.Category `json:"categories"`
			Count      int               `json:"count"`
		}
		decode(t, rec.Body, &body)
		assert.Equal(t, len(body.Categories), body.Count)
		assert.NotZero(t, body.Count)
	})
}

func TestImport_UnreadableFile(t *testing.T) {
	router := newSQLiteRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/transactions/import", "march.pdf", []byte("this is not a pdf"), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var res importer.Result
	decode(t, rec.Body, &res)
	assert.Zero(t, res.CreatedCount)
	assert.Equal(t, 1, res.SkippedCount)
	require.Len(t, res.SkippedReasons, 1)
	assert.Contains(t, res.SkippedReasons[0], "format not recognised")
}

func TestImport_FormValues(t *testing.T) {
	var got importer.Options
	imp := &mockImporter{ImportFunc: func(_ context.Context, _ []byte, opts importer.Options) (*importer.Result, error) {
		got = opts
		return &importer.Result{Created: []domain.Transaction{}, SkippedReasons: []string{}}, nil
	}}
	h := NewImportsHandler(imp, nil, nil, 1<<20, zerolog.Nop())
	router := NewRouter(Handlers{Imports: h}, "default", zerolog.Nop())

	tests := []struct {
		name       string
		filename   string
		fields     map[string]string
		wantStatus int
		check      func(t *testing.T)
	}{
		{
			name:       "defaults",
			filename:   "jan.csv",
			wantStatus: http.StatusOK,
			check: func(t *testing.T) {
				assert.True(t, got.CreateMissingCategories)
				assert.True(t, got.SkipDuplicates)
				assert.Equal(t, "default", got.UserID)
				assert.Equal(t, "jan.csv", got.Filename)
				assert.Empty(t, got.Format)
			},
		},
		{
			name:       "flags and format",
			filename:   "jan.pdf",
			fields:     map[string]string{"create_missing_categories": "false", "skip_duplicates": "0", "format": "csv"},
			wantStatus: http.StatusOK,
			check: func(t *testing.T) {
				assert.False(t, got.CreateMissingCategories)
				assert.False(t, got.SkipDuplicates)
				assert.Equal(t, "text", string(got.Format))
			},
		},
		{name: "missing file", wantStatus: http.StatusBadRequest},
		{name: "bad flag", filename: "a.csv", fields: map[string]string{"skip_duplicates": "maybe"}, wantStatus: http.StatusBadRequest},
		{name: "bad format", filename: "a.csv", fields: map[string]string{"format": "docx"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = importer.Options{}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, multipartRequest(t, "/api/transactions/import", tt.filename, []byte("x"), tt.fields))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t)
			}
		})
	}
}

func TestImport_TooLarge(t *testing.T) {
	imp := &mockImporter{ImportFunc: func(context.Context, []byte, importer.Options) (*importer.Result, error) {
		t.Fatal("import must not run")
		return nil, nil
	}}
	router := NewRouter(Handlers{Imports: NewImportsHandler(imp, nil, nil, 1024, zerolog.Nop())}, "default", zerolog.Nop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/transactions/import", "big.csv", bytes.Repeat([]byte("a"), 16<<10), nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "store error",
			err:     fmt.Errorf("pipeline step 4 failed: %w", &importer.StoreError{Op: "bulk create", Err: errors.New("disk full")}),
			wantMsg: "store: bulk create: disk full",
		},
		{name: "other error", err: errors.New("boom"), wantMsg: "Import failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := &mockImporter{ImportFunc: func(context.Context, []byte, importer.Options) (*importer.Result, error) {
				return nil, tt.err
			}}
			router := NewRouter(Handlers{Imports: NewImportsHandler(imp, nil, nil, 1<<20, zerolog.Nop())}, "default", zerolog.Nop())

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, multipartRequest(t, "/api/transactions/import", "a.csv", []byte("x"), nil))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)

			var body map[string]string
			decode(t, rec.Body, &body)
			assert.Equal(t, tt.wantMsg, body["error"])
		})
	}
}

func TestEnqueueImport(t *testing.T) {
	t.Run("inline data", func(t *testing.T) {
		pub := &mockPublisher{}
		router := NewRouter(Handlers{Imports: NewImportsHandler(nil, pub, nil, 1<<20, zerolog.Nop())}, "default", zerolog.Nop())

		req := multipartRequest(t, "/api/imports", "jan.csv", []byte(statementCSV), map[string]string{"skip_duplicates": "false"})
		req.Header.Set(middleware.UserHeader, "bob")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"job_id":"job-1","status":"pending"}`, rec.Body.String())
		require.Len(t, pub.published, 1)
		job := pub.published[0]
		assert.Equal(t, "bob", job.UserID)
		assert.Equal(t, []byte(statementCSV), job.Data)
		assert.Empty(t, job.GCSURI)
		assert.False(t, job.SkipDuplicates)
		assert.True(t, job.CreateMissingCategories)
	})

	t.Run("archived upload", func(t *testing.T) {
		pub := &mockPublisher{}
		arch := &mockArchiver{ArchiveFunc: func(_ context.Context, userID, filename string, _ []byte) (string, error) {
			return "gs://bucket/" + userID + "/" + filename, nil
		}}
		router := NewRouter(Handlers{Imports: NewImportsHandler(nil, pub, arch, 1<<20, zerolog.Nop())}, "default", zerolog.Nop())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "/api/imports", "jan.csv", []byte(statementCSV), nil))

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, pub.published, 1)
		assert.Equal(t, "gs://bucket/default/jan.csv", pub.published[0].GCSURI)
		assert.Nil(t, pub.published[0].Data)
	})

	t.Run("archive failure falls back to inline", func(t *testing.T) {
		pub := &mockPublisher{}
		arch := &mockArchiver{ArchiveFunc: func(context.Context, string, string, []byte) (string, error) {
			return "", errors.New("bucket missing")
		}}
		router := NewRouter(Handlers{Imports: NewImportsHandler(nil, pub, arch, 1<<20, zerolog.Nop())}, "default", zerolog.Nop())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "/api/imports", "jan.csv", []byte("data"), nil))
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, []byte("data"), pub.published[0].Data)
	})

	t.Run("publish failure", func(t *testing.T) {
		pub := &mockPublisher{err: jobs.ErrQueueClosed}
		router := NewRouter(Handlers{Imports: NewImportsHandler(nil, pub, nil, 1<<20, zerolog.Nop())}, "default", zerolog.Nop())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "/api/imports", "jan.csv", []byte("data"), nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		router := NewRouter(Handlers{Imports: NewImportsHandler(nil, nil, nil, 1<<20, zerolog.Nop())}, "default", zerolog.Nop())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "/api/imports", "jan.csv", []byte("data"), nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestJobsEndpoints(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	require.NoError(t, store.SaveJob(ctx, &jobs.ImportStatementJob{
		JobID: "j1", UserID: "alice", Status: jobs.JobStatusCompleted, CreatedAt: time.Now(),
		Result: &importer.Result{CreatedCount: 2, Created: []domain.Transaction{}, SkippedReasons: []string{}},
	}))
	require.NoError(t, store.SaveJob(ctx, &jobs.ImportStatementJob{JobID: "j2", UserID: "bob", Status: jobs.JobStatusPending}))

	router := NewRouter(Handlers{Jobs: NewJobsHandler(store, zerolog.Nop())}, "default", zerolog.Nop())

	get := func(path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(middleware.UserHeader, user)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("get own job", func(t *testing.T) {
		rec := get("/api/jobs/j1", "alice")
		require.Equal(t, http.StatusOK, rec.Code)
		var job map[string]any
		decode(t, rec.Body, &job)
		assert.Equal(t, "completed", job["status"])
		assert.Equal(t, float64(2), job["result"].(map[string]any)["created_count"])
	})

	t.Run("other user's job is hidden", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("/api/jobs/j2", "alice").Code)
	})

	t.Run("unknown job", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("/api/jobs/nope", "alice").Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := get("/api/jobs", "bob")
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Jobs  []map[string]any `json:"jobs"`
			Count int              `json:"count"`
		}
		decode(t, rec.Body, &body)
		assert.Equal(t, 1, body.Count)
		assert.Equal(t, "j2", body.Jobs[0]["job_id"])
	})
}

func TestListTransactions_Params(t *testing.T) {
	var gotStart, gotEnd time.Time
	repo := &mockTransactions{ListTransactionsFunc: func(_ context.Context, _ string, start, end time.Time) ([]domain.Transaction, error) {
		gotStart, gotEnd = start, end
		return nil, nil
	}}
	router := NewRouter(Handlers{Transactions: NewTransactionsHandler(repo, zerolog.Nop())}, "default", zerolog.Nop())

	tests := []struct {
		query      string
		wantStatus int
	}{
		{query: "", wantStatus: http.StatusOK},
		{query: "?start_date=2024-01-01", wantStatus: http.StatusOK},
		{query: "?start_date=01/01/2024", wantStatus: http.StatusBadRequest},
		{query: "?end_date=tomorrow", wantStatus: http.StatusBadRequest},
		{query: "?start_date=2024-02-01&end_date=2024-01-01", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions"+tt.query, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?start_date=2024-01-01", nil))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), gotStart)
	assert.True(t, gotEnd.IsZero())
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListCategories_Error(t *testing.T) {
	repo := &mockCategories{ListFunc: func(context.Context, string) ([]domain.Category, error) {
		return nil, errors.New("db down")
	}}
	router := NewRouter(Handlers{Categories: NewCategoriesHandler(repo, zerolog.Nop())}, "default", zerolog.Nop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	router := NewRouter(Handlers{}, "default", zerolog.Nop())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
