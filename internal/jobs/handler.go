package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-importer/internal/importer"
	"github.com/dvloznov/statement-importer/internal/logger"
	"github.com/dvloznov/statement-importer/internal/statement"
)

// StatementImporter runs one import. *importer.Importer satisfies it.
type StatementImporter interface {
	Import(ctx context.Context, data []byte, opts importer.Options) (*importer.Result, error)
}

// Fetcher loads an archived statement by URI.
type Fetcher func(ctx context.Context, uri string) ([]byte, error)

// NewImportHandler returns the handler that runs import jobs. fetch may be nil
// when jobs always carry their data inline. Only fetch failures are retryable;
// every other error is wrapped with Permanent.
func NewImportHandler(imp StatementImporter, fetch Fetcher) JobHandler {
	return func(ctx context.Context, job *ImportStatementJob) error {
		log := logger.FromContext(ctx).With().
			Str("job_id", job.JobID).
			Int("attempt", job.RetryCount+1).
			Logger()
		ctx = logger.WithContext(ctx, log)

		data := job.Data
		if len(data) == 0 && job.GCSURI != "" {
			if fetch == nil {
				return Permanent(fmt.Errorf("ImportHandler: no fetcher for %s", job.GCSURI))
			}
			var err error
			data, err = fetch(ctx, job.GCSURI)
			if err != nil {
				return fmt.Errorf("ImportHandler: %w", err)
			}
		}

		opts := importer.Options{
			UserID:                  job.UserID,
			Filename:                job.Filename,
			ContentType:             job.ContentType,
			CreateMissingCategories: job.CreateMissingCategories,
			SkipDuplicates:          job.SkipDuplicates,
			ArchiveURI:              job.GCSURI,
		}
		if job.Format != "" {
			f, ok := statement.ParseFormat(job.Format)
			if !ok {
				return Permanent(fmt.Errorf("ImportHandler: unknown format %q", job.Format))
			}
			opts.Format = f
		}

		// A failed import may have written part of the batch; running it
		// again would insert those rows twice.
		result, err := imp.Import(ctx, data, opts)
		if err != nil {
			return Permanent(fmt.Errorf("ImportHandler: %w", err))
		}
		job.Result = result
		job.Data = nil
		return nil
	}
}
