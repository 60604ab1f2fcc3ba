package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is a user's spending category.
type Category struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	DefaultPercentage decimal.Decimal `json:"default_percentage"`
	IsDefault         bool            `json:"is_default"`
	IsFixed           bool            `json:"is_fixed"`
	CreatedAt         time.Time       `json:"created_at"`
}

// CategoryDefaults holds the attributes given to a category created on the fly.
type CategoryDefaults struct {
	Description       string
	DefaultPercentage decimal.Decimal
	IsDefault         bool
	IsFixed           bool
}

// ImportCategoryDefaults are used for categories created while importing a
// statement.
func ImportCategoryDefaults() CategoryDefaults {
	return CategoryDefaults{
		Description:       "Created during statement import",
		DefaultPercentage: decimal.Zero,
	}
}
