package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// InsertBatchSize caps the rows per multi-row INSERT so the bind count stays
// well under the postgres limit of 65535 parameters.
const InsertBatchSize = 500

func Excluded(column string) string {
	return fmt.Sprintf("EXCLUDED.%s", column)
}

// OnConflictDoUpdate appends an upsert clause that overwrites updateColumns from the proposed row.
func OnConflictDoUpdate(query string, conflictColumns []string, updateColumns []string) string {
	assignments := make([]string, 0, len(updateColumns))
	for _, column := range updateColumns {
		assignments = append(assignments, fmt.Sprintf("%s = %s", column, Excluded(column)))
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", query, strings.Join(conflictColumns, ", "), strings.Join(assignments, ", "))
}

func OnConflictDoNothing(query string, conflictColumns ...string) string {
	if len(conflictColumns) == 0 {
		return query + " ON CONFLICT DO NOTHING"
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", query, strings.Join(conflictColumns, ", "))
}

func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return sqlbuilder.PostgreSQL.NewInsertBuilder()
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.PostgreSQL.NewUpdateBuilder()
}

func NewDeleteBuilder() *sqlbuilder.DeleteBuilder {
	return sqlbuilder.PostgreSQL.NewDeleteBuilder()
}

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}

// LookupBatchSize caps the values bound into one IN (...) lookup.
const LookupBatchSize = 5000

// SelectIn runs one select per chunk of values and collects the rows of all of them.
// build receives a fresh builder and the chunk to place in its IN clause.
func SelectIn[T any](ctx context.Context, q Querier, values []string, build func(sb *sqlbuilder.SelectBuilder, chunk []any)) ([]T, error) {
	var rows []T
	for _, chunk := range Chunks(values, LookupBatchSize) {
		sb := NewSelectBuilder()
		build(sb, Args(chunk))

		query, args := sb.Build()
		var batch []T
		if err := q.SelectContext(ctx, &batch, query, args...); err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}
	return rows, nil
}

// Chunks splits rows into consecutive slices of at most size elements.
func Chunks[T any](rows []T, size int) [][]T {
	if size <= 0 {
		size = InsertBatchSize
	}
	chunks := make([][]T, 0, (len(rows)+size-1)/size)
	for i := 0; i < len(rows); i += size {
		end := i + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[i:end])
	}
	return chunks
}

// Args widens values for the variadic In/Values builder methods.
func Args[T any](values []T) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func KeySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}
