package importer

import (
	"context"
	"time"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/shopspring/decimal"
)

// CategoryDirectory looks up and creates a user's categories.
type CategoryDirectory interface {
	// List returns the user's categories in display order.
	List(ctx context.Context, userID string) ([]domain.Category, error)

	// FindByName matches the name case-insensitively. It returns nil, nil
	// when the user has no such category.
	FindByName(ctx context.Context, userID, name string) (*domain.Category, error)

	// Create adds a category with the given defaults.
	Create(ctx context.Context, userID, name string, defaults domain.CategoryDefaults) (*domain.Category, error)
}

// TransactionStore checks for and stores withdrawals.
type TransactionStore interface {
	// Exists reports whether the user already has a transaction with the same
	// description (case-insensitive), amount and date.
	Exists(ctx context.Context, userID, description string, amount decimal.Decimal, date time.Time) (bool, error)

	// BulkCreate stores the candidates in one write.
	BulkCreate(ctx context.Context, userID string, candidates []domain.Candidate) ([]domain.Transaction, error)
}

// CategorySuggester proposes one of the user's category names for a
// description no rule matched.
type CategorySuggester interface {
	SuggestCategory(ctx context.Context, description string, categories []string) (string, error)
}

// Archiver keeps a copy of the uploaded statement and returns its location.
type Archiver interface {
	Archive(ctx context.Context, userID, filename string, data []byte) (string, error)
}
