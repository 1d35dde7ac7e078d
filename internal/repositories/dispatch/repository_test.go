package dispatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/database/dbtest"
	"github.com/Ramsey-B/docket/pkg/models"
)

func TestExistingIDs(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	mock.ExpectQuery(`SELECT call_id FROM dispatch_calls WHERE call_id IN \(\$1\)`).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"call_id"}).AddRow("C1"))

	found, err := repo.ExistingIDs(context.Background(), []string{"C1"})
	require.NoError(t, err)
	assert.Contains(t, found, "C1")
}

func TestInsertBatch_Chunks(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	calls := make([]models.DispatchCall, database.InsertBatchSize+1)
	for i := range calls {
		calls[i].CallID = fmt.Sprintf("C%d", i)
	}

	mock.ExpectExec(`INSERT INTO dispatch_calls`).WillReturnResult(sqlmock.NewResult(0, int64(database.InsertBatchSize)))
	mock.ExpectExec(`INSERT INTO dispatch_calls`).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.InsertBatch(context.Background(), calls))
}

func TestInsertBatch_Empty(t *testing.T) {
	db, _ := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	require.NoError(t, repo.InsertBatch(context.Background(), nil))
}

func TestInsertBatch_ConstraintViolation(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	mock.ExpectExec(`INSERT INTO dispatch_calls`).WillReturnError(&pq.Error{Code: "23505"})

	err := repo.InsertBatch(context.Background(), []models.DispatchCall{{CallID: "C1"}})
	require.Error(t, err)
	assert.Equal(t, database.ErrorClassConstraint, database.Classify(err))
}
