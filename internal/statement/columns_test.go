package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindColumn(t *testing.T) {
	tests := []struct {
		name       string
		header     []string
		candidates []string
		want       int
	}{
		{
			name:       "exact match beats earlier substring match",
			header:     []string{"posting date info", "date"},
			candidates: dateHeaders,
			want:       1,
		},
		{
			name:       "substring match when nothing is exact",
			header:     []string{"txn date (ist)", "narration"},
			candidates: dateHeaders,
			want:       0,
		},
		{
			name:       "leftmost exact match wins",
			header:     []string{"date", "value date"},
			candidates: dateHeaders,
			want:       0,
		},
		{
			name:       "no match",
			header:     []string{"foo", "bar"},
			candidates: amountHeaders,
			want:       -1,
		},
		{
			name:       "empty header",
			header:     nil,
			candidates: dateHeaders,
			want:       -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findColumn(tt.header, tt.candidates))
		})
	}
}

func TestDetectColumns(t *testing.T) {
	cols := detectColumns([]string{"\ufeffDate", " Narration ", "Withdrawal Amt.", "Deposit Amt.", "Chq./Ref.No."})

	assert.Equal(t, 0, cols.date)
	assert.Equal(t, 1, cols.description)
	assert.Equal(t, 2, cols.debit)
	assert.Equal(t, 3, cols.credit)
	assert.Equal(t, 4, cols.reference)
	assert.Equal(t, -1, cols.kind)
}

func TestColumnMap_RowFromCells(t *testing.T) {
	cols := noColumns()
	cols.date = 0
	cols.description = 1
	cols.debit = 5

	row := cols.rowFromCells([]string{"31/01/2024", "Tea"})

	assert.Equal(t, "31/01/2024", Value(row.Date))
	assert.Equal(t, "Tea", Value(row.Description))
	assert.Nil(t, row.Debit, "cell past the end of the record")
	assert.Nil(t, row.Credit, "field without a column")
}
