package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrCategoryExists is returned when a user already has a category with the
// same name, compared case-insensitively.
var ErrCategoryExists = errors.New("category already exists")

// CategoryRepository stores categories in SQLite.
type CategoryRepository struct {
	db *sql.DB
}

const categoryColumns = `id, user_id, name, description, default_percentage, is_default, is_fixed, created_at`

func scanCategory(scan func(dest ...any) error) (*domain.Category, error) {
	c := &domain.Category{}
	if err := scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.DefaultPercentage, &c.IsDefault, &c.IsFixed, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns the user's categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE user_id = ?
		ORDER BY name COLLATE NOCASE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("List: query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("List: scan category: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: iterate categories: %w", err)
	}
	return out, nil
}

// FindByName returns nil, nil when the user has no such category.
func (r *CategoryRepository) FindByName(ctx context.Context, userID, name string) (*domain.Category, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE user_id = ? AND name = ? COLLATE NOCASE
	`, userID, strings.TrimSpace(name))

	c, err := scanCategory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByName: %w", err)
	}
	return c, nil
}

// Create inserts a category with the given defaults.
func (r *CategoryRepository) Create(ctx context.Context, userID, name string, d domain.CategoryDefaults) (*domain.Category, error) {
	c := &domain.Category{
		ID:                uuid.NewString(),
		UserID:            userID,
		Name:              strings.TrimSpace(name),
		Description:       d.Description,
		DefaultPercentage: d.DefaultPercentage,
		IsDefault:         d.IsDefault,
		IsFixed:           d.IsFixed,
		CreatedAt:         time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Name, c.Description, c.DefaultPercentage.String(), c.IsDefault, c.IsFixed, c.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("Create: %q: %w", c.Name, ErrCategoryExists)
		}
		return nil, fmt.Errorf("Create: insert category: %w", err)
	}
	return c, nil
}
