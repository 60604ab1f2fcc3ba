package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/statement"
	"github.com/shopspring/decimal"
)

// memStore keeps categories and transactions in memory.
type memStore struct {
	categories   []domain.Category
	transactions []domain.Transaction

	bulkCalls   int
	existsCalls int
	createCalls int
}

func (m *memStore) List(ctx context.Context, userID string) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range m.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) FindByName(ctx context.Context, userID, name string) (*domain.Category, error) {
	for _, c := range m.categories {
		if c.UserID == userID && strings.EqualFold(c.Name, name) {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) Create(ctx context.Context, userID, name string, d domain.CategoryDefaults) (*domain.Category, error) {
	m.createCalls++
	c := domain.Category{
		ID:                fmt.Sprintf("cat-%d", len(m.categories)+1),
		UserID:            userID,
		Name:              name,
		Description:       d.Description,
		DefaultPercentage: d.DefaultPercentage,
		IsDefault:         d.IsDefault,
		IsFixed:           d.IsFixed,
	}
	m.categories = append(m.categories, c)
	return &c, nil
}

func (m *memStore) Exists(ctx context.Context, userID, description string, amount decimal.Decimal, date time.Time) (bool, error) {
	m.existsCalls++
	for _, t := range m.transactions {
		if t.UserID == userID &&
			strings.EqualFold(t.Description, description) &&
			t.Amount.Equal(amount) &&
			t.TransactionDate.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) BulkCreate(ctx context.Context, userID string, cands []domain.Candidate) ([]domain.Transaction, error) {
	m.bulkCalls++
	out := make([]domain.Transaction, 0, len(cands))
	for _, c := range cands {
		t := domain.Transaction{
			ID:              fmt.Sprintf("tx-%d", len(m.transactions)+1),
			UserID:          userID,
			Description:     c.Description,
			Amount:          c.Amount,
			CategoryID:      c.CategoryID,
			TransactionDate: c.TransactionDate,
		}
		m.transactions = append(m.transactions, t)
		out = append(out, t)
	}
	return out, nil
}

// mockTransactionStore lets a test override individual calls.
type mockTransactionStore struct {
	ExistsFunc     func(ctx context.Context, userID, description string, amount decimal.Decimal, date time.Time) (bool, error)
	BulkCreateFunc func(ctx context.Context, userID string, cands []domain.Candidate) ([]domain.Transaction, error)
}

func (m *mockTransactionStore) Exists(ctx context.Context, userID, description string, amount decimal.Decimal, date time.Time) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, userID, description, amount, date)
	}
	return false, nil
}

func (m *mockTransactionStore) BulkCreate(ctx context.Context, userID string, cands []domain.Candidate) ([]domain.Transaction, error) {
	if m.BulkCreateFunc != nil {
		return m.BulkCreateFunc(ctx, userID, cands)
	}
	return nil, nil
}

type mockSuggester struct {
	SuggestFunc func(ctx context.Context, description string, categories []string) (string, error)
	calls       int
}

func (m *mockSuggester) SuggestCategory(ctx context.Context, description string, categories []string) (string, error) {
	m.calls++
	return m.SuggestFunc(ctx, description, categories)
}

type mockArchiver struct {
	ArchiveFunc func(ctx context.Context, userID, filename string, data []byte) (string, error)
}

func (m *mockArchiver) Archive(ctx context.Context, userID, filename string, data []byte) (string, error) {
	return m.ArchiveFunc(ctx, userID, filename, data)
}

type staticAdapter struct {
	rows []statement.CanonicalRow
	err  error
}

func (a staticAdapter) Parse([]byte) ([]statement.CanonicalRow, error) {
	return a.rows, a.err
}
