package registry

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/docket/pkg/database/dbtest"
	"github.com/Ramsey-B/docket/pkg/models"
)

func ptr(s string) *string { return &s }

func TestUpsert(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	mock.ExpectExec(`INSERT INTO registry_entrants .* ON CONFLICT \(registrant_id\) DO UPDATE SET oci = EXCLUDED.oci, .*last_changed = EXCLUDED.last_changed, updated_at = EXCLUDED.updated_at$`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), models.RegistryEntrant{RegistrantID: "R1", Tier: ptr("III")}))
}

func TestUpdateColumns_DoNotTouchCreatedAt(t *testing.T) {
	assert.NotContains(t, entrantUpdateColumns, "created_at")
	assert.NotContains(t, entrantUpdateColumns, "registrant_id")
	assert.Equal(t, "created_at", entrantColumns[len(entrantColumns)-2])
	assert.Equal(t, "updated_at", entrantUpdateColumns[len(entrantUpdateColumns)-1])
}

func TestReplaceChildren(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	entrant := models.RegistryEntrant{
		RegistrantID: "R1",
		Convictions: []models.Conviction{
			{Text: ptr("CRIMINAL SEXUAL CONDUCT"), Victims: []models.Victim{{Gender: ptr("F"), AgeGroup: ptr("MINOR")}, {Gender: ptr("M")}}},
			{Text: ptr("FAILURE TO REGISTER")},
		},
		Aliases:  []models.Alias{{LastName: ptr("SMITH")}},
		Markings: []string{"TATTOO LEFT ARM"},
	}

	mock.ExpectExec(`DELETE FROM registry_convictions WHERE registrant_id = \$1`).WithArgs("R1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM registry_aliases WHERE registrant_id = \$1`).WithArgs("R1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM registry_markings WHERE registrant_id = \$1`).WithArgs("R1").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(`INSERT INTO registry_convictions .* RETURNING conviction_id`).
		WillReturnRows(sqlmock.NewRows([]string{"conviction_id"}).AddRow(41))
	mock.ExpectExec(`INSERT INTO registry_conviction_victims \(conviction_id, gender, age_group\) VALUES \(\$1, \$2, \$3\), \(\$4, \$5, \$6\)`).
		WithArgs(int64(41), "F", "MINOR", int64(41), "M", nil).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`INSERT INTO registry_convictions .* RETURNING conviction_id`).
		WillReturnRows(sqlmock.NewRows([]string{"conviction_id"}).AddRow(42))

	mock.ExpectExec(`INSERT INTO registry_aliases`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO registry_markings`).WithArgs("R1", "TATTOO LEFT ARM").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ReplaceChildren(context.Background(), entrant))
}

func TestReplaceChildren_EmptyCollectionsClearStoredRows(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	mock.ExpectExec(`DELETE FROM registry_convictions`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM registry_aliases`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM registry_markings`).WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, repo.ReplaceChildren(context.Background(), models.RegistryEntrant{RegistrantID: "R1"}))
}

func TestUpdatePhoto(t *testing.T) {
	db, mock := dbtest.New(t)
	repo := NewRepository(db, dbtest.Logger())

	mock.ExpectExec(`UPDATE registry_entrants SET photo_data = \$1 WHERE registrant_id = \$2`).
		WithArgs([]byte("jpeg"), "R1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePhoto(context.Background(), "R1", []byte("jpeg")))
}
