package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// CategoryRepository implements the importer's category directory on BigQuery.
type CategoryRepository struct {
	client *bigquery.Client
	ref    datasetRef
}

// List delegates to listCategoriesWithClient.
func (r *CategoryRepository) List(ctx context.Context, userID string) ([]domain.Category, error) {
	return listCategoriesWithClient(ctx, r.client, r.ref, userID)
}

// FindByName delegates to findCategoryByNameWithClient.
func (r *CategoryRepository) FindByName(ctx context.Context, userID, name string) (*domain.Category, error) {
	return findCategoryByNameWithClient(ctx, r.client, r.ref, userID, name)
}

// Create delegates to createCategoryWithClient.
func (r *CategoryRepository) Create(ctx context.Context, userID, name string, d domain.CategoryDefaults) (*domain.Category, error) {
	return createCategoryWithClient(ctx, r.client, r.ref, userID, name, d)
}

// listCategoriesWithClient returns the user's categories ordered by name.
func listCategoriesWithClient(ctx context.Context, client *bigquery.Client, ref datasetRef, userID string) ([]domain.Category, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT category_id, user_id, name, description, default_percentage,
		       is_default, is_fixed, created_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY LOWER(name)
	`, ref.table(categoriesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	rows, err := readCategories(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	return rows, nil
}

// findCategoryByNameWithClient matches the name case-insensitively and
// returns nil, nil when there is no such category.
func findCategoryByNameWithClient(ctx context.Context, client *bigquery.Client, ref datasetRef, userID, name string) (*domain.Category, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT category_id, user_id, name, description, default_percentage,
		       is_default, is_fixed, created_ts
		FROM %s
		WHERE user_id = @user_id AND LOWER(name) = LOWER(@name)
		ORDER BY created_ts
		LIMIT 1
	`, ref.table(categoriesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "name", Value: strings.TrimSpace(name)},
	}

	rows, err := readCategories(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FindCategoryByName: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// createCategoryWithClient streams a new category row. BigQuery has no unique
// constraints, so the name is checked first.
func createCategoryWithClient(ctx context.Context, client *bigquery.Client, ref datasetRef, userID, name string, d domain.CategoryDefaults) (*domain.Category, error) {
	name = strings.TrimSpace(name)

	existing, err := findCategoryByNameWithClient(ctx, client, ref, userID, name)
	if err != nil {
		return nil, fmt.Errorf("CreateCategory: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("CreateCategory: %q: %w", name, ErrCategoryExists)
	}

	row := newCategoryRow(uuid.NewString(), userID, name, d, time.Now().UTC())
	if err := ref.handle(client, categoriesTable).Inserter().Put(ctx, row); err != nil {
		return nil, fmt.Errorf("CreateCategory: inserting row: %w", err)
	}

	c, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("CreateCategory: %w", err)
	}
	return &c, nil
}

func readCategories(ctx context.Context, q *bigquery.Query) ([]domain.Category, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var out []domain.Category
	for {
		var r CategoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		c, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
