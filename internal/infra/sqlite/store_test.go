package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "importer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(s string) time.Time {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewStore_AppliesMigrations(t *testing.T) {
	s := newTestStore(t)

	version, dirty, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.False(t, dirty)
}

func TestNewStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "importer.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	_, err = s.Categories().Create(context.Background(), "u1", "Food", domain.ImportCategoryDefaults())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewStore(path)
	require.NoError(t, err)
	defer s.Close()

	cats, err := s.Categories().List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestNewStore_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	food, err := s.Categories().Create(ctx, "u1", "Food", domain.ImportCategoryDefaults())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Categories().List(ctx, "u1")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	created, err := s.Transactions().BulkCreate(ctx, "u1", []domain.Candidate{
		{Amount: decimal.RequireFromString("10"), Description: "Tea", TransactionDate: day("2024-01-05"), CategoryID: food.ID},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	cats, err := s.Categories().List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestCategoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Categories()

	created, err := repo.Create(ctx, "u1", " Groceries ", domain.CategoryDefaults{
		Description:       "food shopping",
		DefaultPercentage: decimal.RequireFromString("12.5"),
		IsFixed:           true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Groceries", created.Name)

	_, err = repo.Create(ctx, "u1", "Bills", domain.ImportCategoryDefaults())
	require.NoError(t, err)
	_, err = repo.Create(ctx, "u2", "Travel", domain.ImportCategoryDefaults())
	require.NoError(t, err)

	t.Run("list is per user and ordered by name", func(t *testing.T) {
		cats, err := repo.List(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, cats, 2)
		assert.Equal(t, "Bills", cats[0].Name)
		assert.Equal(t, "Groceries", cats[1].Name)
		assert.True(t, cats[1].DefaultPercentage.Equal(decimal.RequireFromString("12.5")))
		assert.True(t, cats[1].IsFixed)
		assert.Equal(t, "food shopping", cats[1].Description)
	})

	t.Run("find by name ignores case", func(t *testing.T) {
		found, err := repo.FindByName(ctx, "u1", "GROCERIES")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("find missing returns nil", func(t *testing.T) {
		found, err := repo.FindByName(ctx, "u1", "Travel")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := repo.Create(ctx, "u1", "bills", domain.ImportCategoryDefaults())
		assert.ErrorIs(t, err, ErrCategoryExists)
	})
}

func TestTransactionRepository(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	food, err := s.Categories().Create(ctx, "u1", "Food", domain.ImportCategoryDefaults())
	require.NoError(t, err)

	repo := s.Transactions()
	created, err := repo.BulkCreate(ctx, "u1", []domain.Candidate{
		{Amount: decimal.RequireFromString("120.50"), Description: "SWIGGY ORDER", TransactionDate: day("2024-01-05"), CategoryID: food.ID},
		{Amount: decimal.RequireFromString("9.99"), Description: "Misc", TransactionDate: day("2024-01-07")},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "Food", created[0].CategoryName)
	assert.Empty(t, created[1].CategoryID)

	t.Run("exists", func(t *testing.T) {
		tests := []struct {
			name   string
			user   string
			desc   string
			amount string
			date   string
			want   bool
		}{
			{name: "exact", user: "u1", desc: "SWIGGY ORDER", amount: "120.50", date: "2024-01-05", want: true},
			{name: "case and trailing zero", user: "u1", desc: "swiggy order", amount: "120.5", date: "2024-01-05", want: true},
			{name: "other date", user: "u1", desc: "SWIGGY ORDER", amount: "120.50", date: "2024-01-06"},
			{name: "other amount", user: "u1", desc: "SWIGGY ORDER", amount: "120.51", date: "2024-01-05"},
			{name: "other user", user: "u2", desc: "SWIGGY ORDER", amount: "120.50", date: "2024-01-05"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.Exists(ctx, tt.user, tt.desc, decimal.RequireFromString(tt.amount), day(tt.date))
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("list", func(t *testing.T) {
		all, err := repo.ListTransactions(ctx, "u1", time.Time{}, time.Time{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "Misc", all[0].Description)
		assert.Equal(t, "Food", all[1].CategoryName)
		assert.True(t, all[1].Amount.Equal(decimal.RequireFromString("120.5")))
		assert.Equal(t, day("2024-01-05"), all[1].TransactionDate)

		ranged, err := repo.ListTransactions(ctx, "u1", day("2024-01-06"), day("2024-01-31"))
		require.NoError(t, err)
		require.Len(t, ranged, 1)
		assert.Equal(t, "Misc", ranged[0].Description)

		none, err := repo.ListTransactions(ctx, "u2", time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("bulk create is all or nothing", func(t *testing.T) {
		_, err := repo.BulkCreate(ctx, "u1", []domain.Candidate{
			{Amount: decimal.NewFromInt(1), Description: "ok", TransactionDate: day("2024-02-01")},
			{Amount: decimal.NewFromInt(2), Description: "bad", TransactionDate: day("2024-02-01"), CategoryID: "missing"},
		})
		require.Error(t, err)

		feb, err := repo.ListTransactions(ctx, "u1", day("2024-02-01"), day("2024-02-29"))
		require.NoError(t, err)
		assert.Empty(t, feb)
	})

	t.Run("empty batch", func(t *testing.T) {
		got, err := repo.BulkCreate(ctx, "u1", nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
