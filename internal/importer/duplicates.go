package importer

import (
	"context"
	"strings"

	"github.com/dvloznov/statement-importer/internal/domain"
)

// DuplicateFilter rejects candidates the user already has, and candidates
// repeated within the same statement. One filter serves one import.
type DuplicateFilter struct {
	store  TransactionStore
	userID string
	seen   map[string]struct{}
}

// NewDuplicateFilter creates a filter for one import by userID.
func NewDuplicateFilter(store TransactionStore, userID string) *DuplicateFilter {
	return &DuplicateFilter{store: store, userID: userID, seen: make(map[string]struct{})}
}

// IsDuplicate reports whether c repeats a stored transaction or a candidate
// accepted earlier. Accepted candidates are remembered.
func (f *DuplicateFilter) IsDuplicate(ctx context.Context, c domain.Candidate) (bool, error) {
	key := duplicateKey(c)
	if _, ok := f.seen[key]; ok {
		return true, nil
	}
	exists, err := f.store.Exists(ctx, f.userID, c.Description, c.Amount, c.TransactionDate)
	if err != nil {
		return false, &StoreError{Op: "check duplicate", Err: err}
	}
	if exists {
		return true, nil
	}
	f.seen[key] = struct{}{}
	return false, nil
}

func duplicateKey(c domain.Candidate) string {
	return strings.ToLower(c.Description) + "|" + c.Amount.String() + "|" + c.TransactionDate.Format(domain.DateLayout)
}
