package bigquery

import (
	"testing"
	"time"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRow_RoundTrip(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cand     domain.Candidate
		category string
	}{
		{
			name:     "categorised",
			cand:     domain.Candidate{Amount: decimal.RequireFromString("120.50"), Description: "SWIGGY", TransactionDate: date, CategoryID: "cat-1"},
			category: "Food",
		},
		{
			name: "uncategorised",
			cand: domain.Candidate{Amount: decimal.RequireFromString("0.01"), Description: "Misc", TransactionDate: date},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := newTransactionRow("tx-1", "u1", tt.cand, tt.category, now)
			assert.Equal(t, tt.cand.CategoryID != "", row.CategoryID.Valid)
			assert.Equal(t, tt.cand.CategoryID != "", row.CategoryName.Valid)
			assert.Equal(t, "2024-01-05", row.TransactionDate.String())

			got, err := row.toDomain()
			require.NoError(t, err)
			assert.Equal(t, "tx-1", got.ID)
			assert.Equal(t, "u1", got.UserID)
			assert.True(t, tt.cand.Amount.Equal(got.Amount), got.Amount.String())
			assert.Equal(t, tt.cand.CategoryID, got.CategoryID)
			assert.Equal(t, tt.category, got.CategoryName)
			assert.True(t, date.Equal(got.TransactionDate))
			assert.Equal(t, now, got.CreatedAt)
		})
	}
}

func TestCategoryRow_RoundTrip(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	row := newCategoryRow("cat-1", "u1", "Food", domain.CategoryDefaults{
		Description:       "meals",
		DefaultPercentage: decimal.RequireFromString("12.5"),
		IsFixed:           true,
	}, now)

	got, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, "Food", got.Name)
	assert.Equal(t, "meals", got.Description)
	assert.True(t, got.DefaultPercentage.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, got.IsFixed)
	assert.False(t, got.IsDefault)

	empty := newCategoryRow("cat-2", "u1", "Misc", domain.ImportCategoryDefaults(), now)
	assert.True(t, empty.Description.Valid)
	got, err = empty.toDomain()
	require.NoError(t, err)
	assert.True(t, got.DefaultPercentage.IsZero())
}

func TestRatToDecimal_Nil(t *testing.T) {
	d, err := ratToDecimal(nil)
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}

func TestDatasetRef_Table(t *testing.T) {
	ref := datasetRef{projectID: "proj", datasetID: "finance"}
	assert.Equal(t, "`proj.finance.transactions`", ref.table(transactionsTable))
}
