package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionRepository stores withdrawals in SQLite.
type TransactionRepository struct {
	db *sql.DB
}

// Exists reports whether an equal transaction is already stored. Amounts are
// stored in canonical decimal form so string equality is value equality.
func (r *TransactionRepository) Exists(ctx context.Context, userID, description string, amount decimal.Decimal, date time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM transactions
		WHERE user_id = ?
		  AND LOWER(description) = LOWER(?)
		  AND amount = ?
		  AND transaction_date = ?
	`, userID, description, amount.String(), date.Format(domain.DateLayout)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return n > 0, nil
}

// BulkCreate inserts all candidates in a single transaction; either every row
// is stored or none is.
func (r *TransactionRepository) BulkCreate(ctx context.Context, userID string, candidates []domain.Candidate) ([]domain.Transaction, error) {
	if len(candidates) == 0 {
		return []domain.Transaction{}, nil
	}

	created := make([]domain.Transaction, 0, len(candidates))
	now := time.Now().UTC()

	err := execTx(ctx, r.db, func(tx DBTX) error {
		names := map[string]string{}
		for _, c := range candidates {
			t := domain.Transaction{
				ID:              uuid.NewString(),
				UserID:          userID,
				Description:     c.Description,
				Amount:          c.Amount,
				CategoryID:      c.CategoryID,
				TransactionDate: c.TransactionDate,
				CreatedAt:       now,
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO transactions (id, user_id, description, amount, category_id, transaction_date, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, t.ID, t.UserID, t.Description, t.Amount.String(), nullString(t.CategoryID),
				t.TransactionDate.Format(domain.DateLayout), t.CreatedAt); err != nil {
				return fmt.Errorf("insert transaction %q: %w", t.Description, err)
			}

			if t.CategoryID != "" {
				name, ok := names[t.CategoryID]
				if !ok {
					err := tx.QueryRowContext(ctx, `SELECT name FROM categories WHERE id = ?`, t.CategoryID).Scan(&name)
					if err != nil {
						return fmt.Errorf("load category %s: %w", t.CategoryID, err)
					}
					names[t.CategoryID] = name
				}
				t.CategoryName = name
			}
			created = append(created, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("BulkCreate: %w", err)
	}
	return created, nil
}

// ListTransactions returns the user's transactions dated within [start, end],
// newest first. A zero start or end leaves that side open.
func (r *TransactionRepository) ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error) {
	query := `
		SELECT t.id, t.user_id, t.description, t.amount, t.category_id, c.name,
		       t.transaction_date, t.created_at
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ?`
	args := []any{userID}
	if !start.IsZero() {
		query += ` AND t.transaction_date >= ?`
		args = append(args, start.Format(domain.DateLayout))
	}
	if !end.IsZero() {
		query += ` AND t.transaction_date <= ?`
		args = append(args, end.Format(domain.DateLayout))
	}
	query += ` ORDER BY t.transaction_date DESC, t.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Transaction{}
	for rows.Next() {
		var (
			t            domain.Transaction
			categoryID   sql.NullString
			categoryName sql.NullString
			date         string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Description, &t.Amount, &categoryID, &categoryName, &date, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		t.TransactionDate, err = time.Parse(domain.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: transaction %s: bad date %q: %w", t.ID, date, err)
		}
		t.CategoryID = categoryID.String
		t.CategoryName = categoryName.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: iterate: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
