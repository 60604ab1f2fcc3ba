package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/statement-importer/internal/gcs"
	"github.com/dvloznov/statement-importer/internal/logger"
	"github.com/google/uuid"
)

// uploadTimeout bounds a single object write.
const uploadTimeout = 2 * time.Minute

// Client is the Cloud Storage implementation of gcs.StorageService.
// It assumes Application Default Credentials are configured.
type Client struct {
	client *storage.Client
}

// NewClient creates a storage client.
func NewClient(ctx context.Context) (*Client, error) {
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewClient: create storage client: %w", err)
	}
	return &Client{client: c}, nil
}

// Close releases the storage client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Put writes data to bucket/object.
func (c *Client) Put(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Put: write %s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Put: finalize upload %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Get reads bucket/object.
func (c *Client) Get(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Get: reading bytes: %w", err)
	}
	return data, nil
}

// Archiver keeps uploaded statements under
// statements/<user>/<yyyy>/<mm>/<uuid>-<filename> in one bucket.
type Archiver struct {
	store  gcs.StorageService
	bucket string
	now    func() time.Time
}

// NewArchiver returns an archiver writing to bucket through store.
func NewArchiver(store gcs.StorageService, bucket string) *Archiver {
	return &Archiver{store: store, bucket: bucket, now: time.Now}
}

// Archive stores data and returns its gs:// URI.
func (a *Archiver) Archive(ctx context.Context, userID, filename string, data []byte) (string, error) {
	object := a.objectName(userID, filename)
	if err := a.store.Put(ctx, a.bucket, object, data, contentTypeFor(filename)); err != nil {
		return "", fmt.Errorf("Archive: %w", err)
	}

	uri := gcs.URI(a.bucket, object)
	log := logger.FromContext(ctx)
	log.Debug().Str("uri", uri).Int("bytes", len(data)).Msg("statement archived")
	return uri, nil
}

// UploadFile archives a local file, as the upload command does.
func (a *Archiver) UploadFile(ctx context.Context, userID, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	return a.Archive(ctx, userID, filepath.Base(filePath), data)
}

func (a *Archiver) objectName(userID, filename string) string {
	now := a.now().UTC()
	return path.Join(
		"statements",
		sanitize(userID),
		now.Format("2006"),
		now.Format("01"),
		uuid.NewString()+"-"+sanitize(filename),
	)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "unnamed"
	}
	return s
}

// Fetch downloads the object behind a gs:// URI.
func Fetch(ctx context.Context, store gcs.StorageService, uri string) ([]byte, error) {
	bucket, object, err := gcs.ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	data, err := store.Get(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return data, nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".txt", ".tsv":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	case ".xlsx", ".xlsm":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	}
	return "application/octet-stream"
}
