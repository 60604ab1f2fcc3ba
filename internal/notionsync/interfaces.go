package notionsync

import (
	"context"
	"time"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/jomei/notionapi"
)

// NotionService defines the Notion operations the export needs.
// This interface enables mocking of the Notion API in tests.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// TransactionSource lists stored transactions. Both stores implement it.
type TransactionSource interface {
	ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error)
}
