package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for transaction dates.
const DateLayout = "2006-01-02"

// Candidate is a withdrawal extracted from a statement row that has not been
// stored yet. Amount is always positive and Description never empty.
type Candidate struct {
	Amount            decimal.Decimal
	Description       string
	TransactionDate   time.Time // UTC midnight
	SuggestedCategory string    // empty when no rule matched
	CategoryID        string    // filled once the suggestion is resolved
}

// Transaction is a stored withdrawal as returned by the transaction stores.
type Transaction struct {
	ID              string
	UserID          string
	Description     string
	Amount          decimal.Decimal
	CategoryID      string
	CategoryName    string
	TransactionDate time.Time
	CreatedAt       time.Time
}

type transactionJSON struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Description     string    `json:"description"`
	Amount          string    `json:"amount"`
	CategoryID      *string   `json:"category_id"`
	CategoryName    *string   `json:"category_name"`
	TransactionDate string    `json:"transaction_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// MarshalJSON renders the amount with two decimals and the date as YYYY-MM-DD.
// Missing categories are rendered as null.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:              t.ID,
		UserID:          t.UserID,
		Description:     t.Description,
		Amount:          t.Amount.StringFixed(2),
		CategoryID:      optional(t.CategoryID),
		CategoryName:    optional(t.CategoryName),
		TransactionDate: t.TransactionDate.Format(DateLayout),
		CreatedAt:       t.CreatedAt,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
