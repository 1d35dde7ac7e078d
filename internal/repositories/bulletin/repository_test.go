package bulletin

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/database/dbtest"
	"github.com/Ramsey-B/docket/pkg/models"
)

func ptr(s string) *string { return &s }

func TestExistingIDs_CaseInsensitive(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT row_hash FROM bulletin_reports WHERE UPPER(row_hash) IN ($1, $2)`)).
		WithArgs("ABC", "DEF").
		WillReturnRows(sqlmock.NewRows([]string{"row_hash"}).AddRow("abc"))

	found, err := repo.ExistingIDs(context.Background(), []string{"abc", " def "})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"ABC": {}}, found)
}

func TestExistingIDs_ChunksLargeBatches(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	ids := make([]string, database.LookupBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("%032X", i)
	}

	lookup := regexp.QuoteMeta(`SELECT row_hash FROM bulletin_reports WHERE UPPER(row_hash) IN (`)
	mock.ExpectQuery(lookup).WillReturnRows(sqlmock.NewRows([]string{"row_hash"}).AddRow(ids[0]))
	mock.ExpectQuery(lookup + regexp.QuoteMeta(`$1)`)).
		WithArgs(ids[database.LookupBatchSize]).
		WillReturnRows(sqlmock.NewRows([]string{"row_hash"}).AddRow(ids[database.LookupBatchSize]))

	found, err := repo.ExistingIDs(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, ids[0])
	assert.Contains(t, found, ids[database.LookupBatchSize])
}

func TestCandidatesBySiteID(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	mock.ExpectQuery(`SELECT row_hash, site_id, category_key, name, time_text, location FROM bulletin_reports WHERE site_id IN \(\$1\)`).
		WithArgs("991").
		WillReturnRows(sqlmock.NewRows([]string{"row_hash", "site_id", "category_key", "name", "time_text", "location"}).
			AddRow("OLD", "991", "AR", "DOE, JOHN", "14:00", nil))

	candidates, err := repo.CandidatesBySiteID(context.Background(), []string{"991"})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "OLD", candidates[0].RowHash)
	assert.Equal(t, "DOE, JOHN", *candidates[0].Name)
	assert.Nil(t, candidates[0].Location)
}

func TestBulkInsert(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`COPY "bulletin_reports" \("row_hash", "site_id", .*"created_at"\) FROM STDIN`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	ctx, tx, err := db.GetTx(context.Background(), nil)
	require.NoError(t, err)

	n, err := repo.BulkInsert(ctx, []models.BulletinReport{
		{RowHash: "A", Name: ptr("DOE, JOHN")},
		{RowHash: "B", SiteID: ptr("991")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Commit(ctx))
}

func TestBulkInsert_Empty(t *testing.T) {
	db, _ := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	n, err := repo.BulkInsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
