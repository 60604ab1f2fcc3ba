package statement

import (
	"fmt"
	"strings"
)

// CanonicalRow is the format-independent shape every adapter produces.
// A nil field means the column is absent or the cell is missing.
type CanonicalRow struct {
	Date        *string `json:"date"`
	Description *string `json:"description"`
	Debit       *string `json:"debit"`
	Credit      *string `json:"credit"`
	Amount      *string `json:"amount"`
	Type        *string `json:"type"`
	Reference   *string `json:"reference"`
}

// FormatError reports that the uploaded bytes could not be opened as the
// declared format at all.
type FormatError struct {
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s format not recognised", e.Format)
	}
	return fmt.Sprintf("%s format not recognised: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Str returns a pointer to s. Handy for building rows in tests and adapters.
func Str(s string) *string {
	return &s
}

// Value returns the dereferenced field or "" for nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
