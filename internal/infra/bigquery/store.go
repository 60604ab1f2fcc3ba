package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	categoriesTable   = "categories"
	transactionsTable = "transactions"
)

// ErrCategoryExists is returned when a user already has a category with the
// same name, compared case-insensitively.
var ErrCategoryExists = errors.New("category already exists")

// Store holds a shared BigQuery client for the categories and transactions
// tables of one dataset.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewStore creates a client for projectID. Tables live in datasetID.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Categories returns the category repository backed by this store.
func (s *Store) Categories() *CategoryRepository {
	return &CategoryRepository{client: s.client, ref: s.ref()}
}

// Transactions returns the transaction repository backed by this store.
func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{client: s.client, ref: s.ref()}
}

// Migrator returns a migrator for this store's dataset.
func (s *Store) Migrator(appliedBy string) *Migrator {
	return NewMigrator(s.client, s.projectID, s.datasetID, appliedBy)
}

func (s *Store) ref() datasetRef {
	return datasetRef{projectID: s.projectID, datasetID: s.datasetID}
}

type datasetRef struct {
	projectID string
	datasetID string
}

// table returns the back-quoted, fully qualified table name for use in SQL.
func (d datasetRef) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.projectID, d.datasetID, name)
}

func (d datasetRef) handle(client *bigquery.Client, name string) *bigquery.Table {
	return client.DatasetInProject(d.projectID, d.datasetID).Table(name)
}
