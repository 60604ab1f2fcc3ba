package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/shopspring/decimal"
)

// CategoryRow mirrors a row of the categories table.
type CategoryRow struct {
	CategoryID        string              `bigquery:"category_id"`        // REQUIRED
	UserID            string              `bigquery:"user_id"`            // REQUIRED
	Name              string              `bigquery:"name"`               // REQUIRED
	Description       bigquery.NullString `bigquery:"description"`        // NULLABLE
	DefaultPercentage *big.Rat            `bigquery:"default_percentage"` // NUMERIC
	IsDefault         bool                `bigquery:"is_default"`
	IsFixed           bool                `bigquery:"is_fixed"`
	CreatedTS         time.Time           `bigquery:"created_ts"` // REQUIRED
}

// TransactionRow mirrors a row of the transactions table. The category name
// is denormalised so listing needs no join.
type TransactionRow struct {
	TransactionID   string              `bigquery:"transaction_id"`   // REQUIRED
	UserID          string              `bigquery:"user_id"`          // REQUIRED
	Description     string              `bigquery:"description"`      // REQUIRED
	Amount          *big.Rat            `bigquery:"amount"`           // REQUIRED NUMERIC
	CategoryID      bigquery.NullString `bigquery:"category_id"`      // NULLABLE
	CategoryName    bigquery.NullString `bigquery:"category_name"`    // NULLABLE
	TransactionDate civil.Date          `bigquery:"transaction_date"` // REQUIRED
	CreatedTS       time.Time           `bigquery:"created_ts"`       // REQUIRED
}

func newCategoryRow(id, userID, name string, d domain.CategoryDefaults, now time.Time) *CategoryRow {
	return &CategoryRow{
		CategoryID:        id,
		UserID:            userID,
		Name:              name,
		Description:       bigquery.NullString{StringVal: d.Description, Valid: d.Description != ""},
		DefaultPercentage: d.DefaultPercentage.Rat(),
		IsDefault:         d.IsDefault,
		IsFixed:           d.IsFixed,
		CreatedTS:         now,
	}
}

func (r *CategoryRow) toDomain() (domain.Category, error) {
	pct, err := ratToDecimal(r.DefaultPercentage)
	if err != nil {
		return domain.Category{}, fmt.Errorf("category %s: default_percentage: %w", r.CategoryID, err)
	}
	return domain.Category{
		ID:                r.CategoryID,
		UserID:            r.UserID,
		Name:              r.Name,
		Description:       r.Description.StringVal,
		DefaultPercentage: pct,
		IsDefault:         r.IsDefault,
		IsFixed:           r.IsFixed,
		CreatedAt:         r.CreatedTS,
	}, nil
}

func newTransactionRow(id, userID string, c domain.Candidate, categoryName string, now time.Time) *TransactionRow {
	return &TransactionRow{
		TransactionID:   id,
		UserID:          userID,
		Description:     c.Description,
		Amount:          c.Amount.Rat(),
		CategoryID:      bigquery.NullString{StringVal: c.CategoryID, Valid: c.CategoryID != ""},
		CategoryName:    bigquery.NullString{StringVal: categoryName, Valid: c.CategoryID != ""},
		TransactionDate: civil.DateOf(c.TransactionDate),
		CreatedTS:       now,
	}
}

func (r *TransactionRow) toDomain() (domain.Transaction, error) {
	amount, err := ratToDecimal(r.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: amount: %w", r.TransactionID, err)
	}
	return domain.Transaction{
		ID:              r.TransactionID,
		UserID:          r.UserID,
		Description:     r.Description,
		Amount:          amount,
		CategoryID:      r.CategoryID.StringVal,
		CategoryName:    r.CategoryName.StringVal,
		TransactionDate: r.TransactionDate.In(time.UTC),
		CreatedAt:       r.CreatedTS,
	}, nil
}

// ratToDecimal converts a NUMERIC value. BigQuery NUMERIC carries at most nine
// fractional digits.
func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(r.FloatString(9))
}
