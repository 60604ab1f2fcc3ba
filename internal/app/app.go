// Package app wires the configured store, archive and importer together for
// the command entrypoints.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-importer/internal/aisuggest"
	"github.com/dvloznov/statement-importer/internal/config"
	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/gcs"
	"github.com/dvloznov/statement-importer/internal/gcsuploader"
	"github.com/dvloznov/statement-importer/internal/importer"
	infraBQ "github.com/dvloznov/statement-importer/internal/infra/bigquery"
	"github.com/dvloznov/statement-importer/internal/infra/sqlite"
	"github.com/rs/zerolog"
)

// TransactionRepository is the transaction store as seen by the entrypoints.
type TransactionRepository interface {
	importer.TransactionStore
	ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error)
}

// App holds the long-lived dependencies of a command.
type App struct {
	Config       *config.Config
	Categories   importer.CategoryDirectory
	Transactions TransactionRepository
	Importer     *importer.Importer

	// Archiver is nil when gcs.bucket is empty.
	Archiver *gcsuploader.Archiver

	// Exactly one of these is set, depending on store.driver.
	SQLite   *sqlite.Store
	BigQuery *infraBQ.Store

	storage *gcsuploader.Client
	log     zerolog.Logger
}

// Open connects the configured store and builds the importer.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, log: log}

	switch cfg.Store.Driver {
	case config.DriverBigQuery:
		store, err := infraBQ.NewStore(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		a.BigQuery = store
		a.Categories = store.Categories()
		a.Transactions = store.Transactions()
	default:
		store, err := sqlite.NewStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		a.SQLite = store
		a.Categories = store.Categories()
		a.Transactions = store.Transactions()
	}
	log.Debug().Str("driver", cfg.Store.Driver).Msg("store opened")

	var opts []importer.Option

	if cfg.GCS.Bucket != "" {
		client, err := a.Storage(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("Open: %w", err)
		}
		a.Archiver = gcsuploader.NewArchiver(client, cfg.GCS.Bucket)
		opts = append(opts, importer.WithArchiver(a.Archiver))
	}

	if cfg.AI.Enabled {
		gen, err := aisuggest.NewGeminiGenerator(ctx, cfg.AI.Model)
		if err != nil {
			// Suggestions are optional; imports still work without them.
			log.Warn().Err(err).Msg("AI suggestions disabled")
		} else {
			opts = append(opts, importer.WithSuggester(aisuggest.NewSuggester(gen)))
		}
	}

	a.Importer = importer.New(a.Categories, a.Transactions, opts...)
	return a, nil
}

// Storage returns the GCS client, creating it on first use.
func (a *App) Storage(ctx context.Context) (*gcsuploader.Client, error) {
	if a.storage != nil {
		return a.storage, nil
	}
	client, err := gcsuploader.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Storage: %w", err)
	}
	a.storage = client
	return client, nil
}

// ReadSource loads a statement from a local path or a gs:// URI.
func (a *App) ReadSource(ctx context.Context, source string, readFile func(string) ([]byte, error)) ([]byte, error) {
	if !gcs.IsURI(source) {
		data, err := readFile(source)
		if err != nil {
			return nil, fmt.Errorf("ReadSource: %w", err)
		}
		return data, nil
	}
	client, err := a.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadSource: %w", err)
	}
	data, err := gcsuploader.Fetch(ctx, client, source)
	if err != nil {
		return nil, fmt.Errorf("ReadSource: %w", err)
	}
	return data, nil
}

// Close releases the store and the storage client.
func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.storage != nil {
		keep(a.storage.Close())
	}
	if a.SQLite != nil {
		keep(a.SQLite.Close())
	}
	if a.BigQuery != nil {
		keep(a.BigQuery.Close())
	}
	return firstErr
}
