// Package dbtest wires go-sqlmock behind database.DB for repository and service tests.
package dbtest

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/docket/pkg/database"
)

// Logger discards every message.
func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// New returns a mock-backed database.DB. Expectations are verified on cleanup.
func New(t *testing.T, opts ...database.Option) (database.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mockDB.Close()
	})

	return database.NewDatabaseInstance(sqlx.NewDb(mockDB, "sqlmock"), Logger(), opts...), mock
}
