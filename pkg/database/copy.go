package database

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// CopyBuffer stages rows column by column for a single COPY ... FROM STDIN.
type CopyBuffer struct {
	table   string
	columns []string
	values  [][]any
}

func NewCopyBuffer(table string, columns ...string) *CopyBuffer {
	return &CopyBuffer{
		table:   table,
		columns: columns,
		values:  make([][]any, len(columns)),
	}
}

// Append adds one row; values must be in column order.
func (b *CopyBuffer) Append(values ...any) error {
	if len(values) != len(b.columns) {
		return fmt.Errorf("copy into %s: got %d values for %d columns", b.table, len(values), len(b.columns))
	}
	for i, v := range values {
		b.values[i] = append(b.values[i], v)
	}
	return nil
}

func (b *CopyBuffer) Len() int {
	if len(b.values) == 0 {
		return 0
	}
	return len(b.values[0])
}

// Row reassembles row i from the column slices.
func (b *CopyBuffer) Row(i int) []any {
	row := make([]any, len(b.columns))
	for c := range b.columns {
		row[c] = b.values[c][i]
	}
	return row
}

// Load streams the buffer through one COPY statement on q and returns the row count.
// q is expected to be the batch transaction; lib/pq only allows COPY inside one.
func (b *CopyBuffer) Load(ctx context.Context, q Querier) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}

	stmt, err := q.PrepareContext(ctx, pq.CopyIn(b.table, b.columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare copy into %s: %w", b.table, err)
	}
	defer stmt.Close()

	for i := 0; i < b.Len(); i++ {
		if _, err := stmt.ExecContext(ctx, b.Row(i)...); err != nil {
			return 0, fmt.Errorf("copy row %d into %s: %w", i, b.table, err)
		}
	}

	// an argument-less Exec flushes the buffered rows
	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("flush copy into %s: %w", b.table, err)
	}

	return int64(b.Len()), nil
}
