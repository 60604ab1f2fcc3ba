package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-importer/internal/logger"
	"github.com/jomei/notionapi"
)

// BatchSize is the number of transactions logged as one batch.
const BatchSize = 100

// ExportSummary counts what an export did.
type ExportSummary struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Skipped int `json:"skipped"` // already in Notion
	Failed  int `json:"failed"`
}

// Exporter pushes imported withdrawals to a Notion database. Pages are keyed
// by the Transaction ID property, so running it twice creates nothing new.
type Exporter struct {
	source     TransactionSource
	notion     NotionService
	databaseID string
}

// NewExporter returns an exporter writing to databaseID.
func NewExporter(source TransactionSource, notion NotionService, databaseID string) *Exporter {
	return &Exporter{source: source, notion: notion, databaseID: databaseID}
}

// Export creates a page for every transaction of userID dated in
// [start, end] that has none yet. A failed page is logged and counted; it
// does not stop the export.
func (e *Exporter) Export(ctx context.Context, userID string, start, end time.Time, dryRun bool) (*ExportSummary, error) {
	log := logger.FromContext(ctx).With().Str("user_id", userID).Bool("dry_run", dryRun).Logger()

	transactions, err := e.source.ListTransactions(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("Export: list transactions: %w", err)
	}
	log.Info().Int("transaction_count", len(transactions)).Msg("retrieved transactions")

	pages, err := queryAllNotionPages(ctx, e.notion, e.databaseID)
	if err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}
	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if id := extractTransactionID(page); id != "" {
			existing[id] = true
		}
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("retrieved existing Notion pages")

	summary := &ExportSummary{Total: len(transactions)}
	for i := 0; i < len(transactions); i += BatchSize {
		stop := min(i+BatchSize, len(transactions))
		log.Debug().Int("batch_start", i).Int("batch_end", stop).Msg("processing batch")

		for _, tx := range transactions[i:stop] {
			if err := ctx.Err(); err != nil {
				return summary, fmt.Errorf("Export: %w", err)
			}
			if existing[tx.ID] {
				summary.Skipped++
				continue
			}
			if dryRun {
				log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] would create Notion page")
				summary.Created++
				continue
			}

			page, err := e.notion.CreatePage(ctx, e.databaseID, TransactionToNotionProperties(tx))
			if err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("failed to create Notion page")
				summary.Failed++
				continue
			}
			existing[tx.ID] = true
			log.Debug().Str("transaction_id", tx.ID).Str("page_id", string(page.ID)).Msg("created Notion page")
			summary.Created++
		}
	}

	log.Info().
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Notion export completed")
	return summary, nil
}

func queryAllNotionPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return all, nil
}
