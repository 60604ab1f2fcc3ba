package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// TransactionRepository implements the importer's transaction store on
// BigQuery using the streaming inserter.
type TransactionRepository struct {
	client *bigquery.Client
	ref    datasetRef
}

// Exists delegates to transactionExistsWithClient.
func (r *TransactionRepository) Exists(ctx context.Context, userID, description string, amount decimal.Decimal, date time.Time) (bool, error) {
	return transactionExistsWithClient(ctx, r.client, r.ref, userID, description, amount, date)
}

// BulkCreate delegates to insertTransactionsWithClient.
func (r *TransactionRepository) BulkCreate(ctx context.Context, userID string, candidates []domain.Candidate) ([]domain.Transaction, error) {
	return insertTransactionsWithClient(ctx, r.client, r.ref, userID, candidates)
}

// ListTransactions delegates to queryTransactionsByDateRangeWithClient.
func (r *TransactionRepository) ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error) {
	return queryTransactionsByDateRangeWithClient(ctx, r.client, r.ref, userID, start, end)
}

// transactionExistsWithClient counts transactions equal on description
// (case-insensitive), amount and date.
func transactionExistsWithClient(ctx context.Context, client *bigquery.Client, ref datasetRef, userID, description string, amount decimal.Decimal, date time.Time) (bool, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT COUNT(1) AS n
		FROM %s
		WHERE user_id = @user_id
		  AND LOWER(description) = LOWER(@description)
		  AND amount = @amount
		  AND transaction_date = @transaction_date
	`, ref.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "description", Value: description},
		{Name: "amount", Value: amount.Rat()},
		{Name: "transaction_date", Value: civil.DateOf(date)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("TransactionExists: query read: %w", err)
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return false, fmt.Errorf("TransactionExists: iter next: %w", err)
	}
	return row.N > 0, nil
}

// insertTransactionsWithClient streams the candidates in one Put call. The
// streaming API is not transactional: when some rows are rejected the others
// may already be stored, and the error reports how many failed.
func insertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ref datasetRef, userID string, candidates []domain.Candidate) ([]domain.Transaction, error) {
	if len(candidates) == 0 {
		return []domain.Transaction{}, nil
	}

	names, err := categoryNames(ctx, client, ref, userID, candidates)
	if err != nil {
		return nil, fmt.Errorf("InsertTransactions: %w", err)
	}

	now := time.Now().UTC()
	rows := make([]*TransactionRow, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, newTransactionRow(uuid.NewString(), userID, c, names[c.CategoryID], now))
	}

	if err := ref.handle(client, transactionsTable).Inserter().Put(ctx, rows); err != nil {
		var multi bigquery.PutMultiError
		if errors.As(err, &multi) {
			return nil, fmt.Errorf("InsertTransactions: %d of %d rows rejected: %w", len(multi), len(rows), err)
		}
		return nil, fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("InsertTransactions: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// categoryNames loads the names of the categories referenced by candidates.
func categoryNames(ctx context.Context, client *bigquery.Client, ref datasetRef, userID string, candidates []domain.Candidate) (map[string]string, error) {
	names := map[string]string{}
	needed := false
	for _, c := range candidates {
		if c.CategoryID != "" {
			needed = true
			break
		}
	}
	if !needed {
		return names, nil
	}

	cats, err := listCategoriesWithClient(ctx, client, ref, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	for _, c := range candidates {
		if _, ok := names[c.CategoryID]; c.CategoryID != "" && !ok {
			return nil, fmt.Errorf("unknown category %s", c.CategoryID)
		}
	}
	return names, nil
}

// queryTransactionsByDateRangeWithClient returns the user's transactions
// dated within [start, end], newest first. A zero bound is left open.
func queryTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, ref datasetRef, userID string, start, end time.Time) ([]domain.Transaction, error) {
	var where strings.Builder
	where.WriteString("user_id = @user_id")
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}
	if !start.IsZero() {
		where.WriteString(" AND transaction_date >= @start_date")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: civil.DateOf(start)})
	}
	if !end.IsZero() {
		where.WriteString(" AND transaction_date <= @end_date")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: civil.DateOf(end)})
	}

	q := client.Query(fmt.Sprintf(`
		SELECT transaction_id, user_id, description, amount, category_id,
		       category_name, transaction_date, created_ts
		FROM %s
		WHERE %s
		ORDER BY transaction_date DESC, created_ts DESC
	`, ref.table(transactionsTable), where.String()))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: query read: %w", err)
	}

	out := []domain.Transaction{}
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: iter next: %w", err)
		}
		t, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}
