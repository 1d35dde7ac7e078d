package ingestion

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Ramsey-B/docket/internal/repositories/roster"
	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/database/dbtest"
	"github.com/Ramsey-B/docket/pkg/events"
	"github.com/Ramsey-B/docket/pkg/fingerprint"
	"github.com/Ramsey-B/docket/pkg/models"
	"github.com/Ramsey-B/docket/pkg/resolver"
)

func ptr(s string) *string { return &s }

type recordingPublisher struct {
	events []*events.RecordsAdmitted
}

func (p *recordingPublisher) PublishRecordsAdmitted(_ context.Context, evt *events.RecordsAdmitted) error {
	p.events = append(p.events, evt)
	return nil
}

type IngestionSuite struct {
	suite.Suite

	mock      sqlmock.Sqlmock
	store     *memoryStore
	publisher *recordingPublisher
	service   *Service
}

func TestIngestionSuite(t *testing.T) {
	suite.Run(t, new(IngestionSuite))
}

func (s *IngestionSuite) SetupTest() {
	db, mock := dbtest.New(s.T())
	s.mock = mock
	s.store = newMemoryStore()
	s.publisher = &recordingPublisher{}

	logger := dbtest.Logger()
	s.service = NewService(db, s.store.stores(), resolver.NewResolver(resolver.DefaultFieldSet), events.NewEmitter(s.publisher, logger), logger)
}

func (s *IngestionSuite) expectCommittedBatch() {
	s.mock.ExpectBegin()
	s.mock.ExpectCommit()
}

func (s *IngestionSuite) TestRoster_InsertsNewAndUpdatesKnown() {
	s.store.roster["B1"] = models.RosterRecord{BookID: "B1", FirstName: ptr("OLD")}
	s.expectCommittedBatch()

	result, err := s.service.IngestRoster(context.Background(), []models.RosterRecord{
		{BookID: "B1", FirstName: ptr("NEW")},
		{BookID: "B2", Charges: []models.RosterCharge{{Description: ptr("THEFT")}}},
		{BookID: "  "},
	})
	s.Require().NoError(err)

	s.Equal(1, result.Inserted)
	s.Equal(1, result.Updated)
	s.Len(result.Rejected, 1)
	s.Equal("NEW", *s.store.roster["B1"].FirstName)
	s.Len(s.store.rosterCharges["B2"], 1)

	s.Require().Len(s.publisher.events, 1)
	s.Equal([]string{"B2"}, s.publisher.events[0].Identities)
	s.Equal("roster", s.publisher.events[0].Kind)
	s.NotEmpty(s.publisher.events[0].BatchID)
}

func (s *IngestionSuite) TestRoster_EmptyBatchIsRejected() {
	_, err := s.service.IngestRoster(context.Background(), nil)
	s.Require().Error(err)
	s.Equal(http.StatusBadRequest, httperror.GetStatusCode(err))
	s.Equal("No data provided", err.Error())
}

func (s *IngestionSuite) TestRoster_EmptyChargeListClearsCharges() {
	s.store.roster["B1"] = models.RosterRecord{BookID: "B1"}
	s.store.rosterCharges["B1"] = []models.RosterCharge{{Description: ptr("THEFT")}, {Description: ptr("DUI")}}
	s.expectCommittedBatch()

	_, err := s.service.IngestRoster(context.Background(), []models.RosterRecord{{BookID: "B1", Charges: []models.RosterCharge{}}})
	s.Require().NoError(err)
	s.Empty(s.store.rosterCharges["B1"])
}

func (s *IngestionSuite) TestRoster_NoFalseRelease() {
	released := models.NewTimestamp(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	s.store.roster["B1"] = models.RosterRecord{BookID: "B1", ReleasedDate: released}
	s.store.roster["B9"] = models.RosterRecord{BookID: "B9", FirstName: ptr("ACTIVE")}
	s.expectCommittedBatch()

	_, err := s.service.IngestRoster(context.Background(), []models.RosterRecord{{BookID: "B1"}})
	s.Require().NoError(err)

	s.Equal(released, s.store.roster["B1"].ReleasedDate)
	s.Nil(s.store.roster["B9"].ReleasedDate)
	s.Equal("ACTIVE", *s.store.roster["B9"].FirstName)
}

func (s *IngestionSuite) TestRoster_PhotoOnlyWhenSupplied() {
	s.store.rosterPhotos["B1"] = []byte("old")
	s.store.roster["B1"] = models.RosterRecord{BookID: "B1"}
	s.expectCommittedBatch()
	s.expectCommittedBatch()

	_, err := s.service.IngestRoster(context.Background(), []models.RosterRecord{{BookID: "B1"}})
	s.Require().NoError(err)
	s.Equal([]byte("old"), s.store.rosterPhotos["B1"])

	_, err = s.service.IngestRoster(context.Background(), []models.RosterRecord{{BookID: "B1", PhotoData: []byte("new")}})
	s.Require().NoError(err)
	s.Equal([]byte("new"), s.store.rosterPhotos["B1"])
}

func (s *IngestionSuite) TestDispatch_Idempotent() {
	calls := []models.DispatchCall{{CallID: "C1"}, {CallID: "C2"}}
	s.expectCommittedBatch()
	s.expectCommittedBatch()

	first, err := s.service.IngestDispatch(context.Background(), calls)
	s.Require().NoError(err)
	s.Equal(2, first.Inserted)
	s.Equal([]string{"C1", "C2"}, first.InsertedIDs)

	second, err := s.service.IngestDispatch(context.Background(), calls)
	s.Require().NoError(err)
	s.Equal(0, second.Inserted)
	s.Equal(2, second.Skipped)
	s.Empty(second.InsertedIDs)
	s.Len(s.store.dispatch, 2)

	// nothing admitted, nothing announced
	s.Len(s.publisher.events, 1)
}

func (s *IngestionSuite) TestDispatch_SelfDeduplication() {
	s.expectCommittedBatch()

	result, err := s.service.IngestDispatch(context.Background(), []models.DispatchCall{{CallID: "C1"}, {CallID: "C1"}})
	s.Require().NoError(err)
	s.Equal(1, result.Inserted)
	s.Equal(1, result.Skipped)
}

func (s *IngestionSuite) TestDispatch_EmptyBatch() {
	result, err := s.service.IngestDispatch(context.Background(), nil)
	s.Require().NoError(err)
	s.Zero(result.Inserted)
	s.NotNil(result.InsertedIDs)
}

func (s *IngestionSuite) TestRegistry_PhotoOmissionKeepsStoredPhoto() {
	s.store.registry["R1"] = models.RegistryEntrant{RegistrantID: "R1"}
	s.store.registryPhotos["R1"] = []byte("stored")
	s.store.registryMarkings["R1"] = []string{"SCAR"}
	s.expectCommittedBatch()

	result, err := s.service.IngestRegistry(context.Background(), []models.RegistryEntrant{
		{RegistrantID: "R1", Markings: []string{"TATTOO"}},
		{RegistrantID: "R2", PhotoData: []byte("fresh")},
	})
	s.Require().NoError(err)

	s.Equal(2, result.Count)
	s.Equal(1, result.Inserted)
	s.Equal(1, result.Updated)
	s.Equal([]byte("stored"), s.store.registryPhotos["R1"])
	s.Equal([]byte("fresh"), s.store.registryPhotos["R2"])
	s.Equal([]string{"TATTOO"}, s.store.registryMarkings["R1"])
}

func (s *IngestionSuite) TestBulletin_LogicalDuplicateAbsorbed() {
	s.store.bulletin["OLDHASH"] = models.BulletinReport{RowHash: "OLDHASH", SiteID: ptr("S"), Name: ptr("Doe, John"), TimeText: ptr("2/7/2026 14:00"), Key: ptr("AR")}
	s.expectCommittedBatch()

	result, err := s.service.IngestBulletin(context.Background(), []models.BulletinReport{
		{SiteID: ptr("S"), Name: ptr("DOE, JOHN "), TimeText: ptr("2/7/2026 14:00"), Key: ptr("ar"), Location: ptr("100 MAIN")},
		{RowHash: "oldhash"},
		{SiteID: ptr("S"), Name: ptr("ROE, JANE"), Key: ptr("AR")},
	})
	s.Require().NoError(err)

	s.Equal(1, result.Inserted)
	s.Equal(2, result.Skipped)
	s.Equal(1, result.LogicalDuplicates)
	s.Equal([]string{fingerprint.RowIdentity("AR", "ROE, JANE", "", "")}, result.InsertedIDs)
	s.Len(s.store.bulletin, 2)
}

func (s *IngestionSuite) TestBulletin_Idempotent() {
	reports := []models.BulletinReport{{RowHash: "A1", SiteID: ptr("1")}, {RowHash: "A2", SiteID: ptr("2")}}
	s.expectCommittedBatch()
	s.expectCommittedBatch()

	first, err := s.service.IngestBulletin(context.Background(), reports)
	s.Require().NoError(err)
	s.Equal(2, first.Inserted)

	second, err := s.service.IngestBulletin(context.Background(), reports)
	s.Require().NoError(err)
	s.Equal(0, second.Inserted)
	s.Equal(2, second.Skipped)
	s.Zero(second.LogicalDuplicates)
}

func (s *IngestionSuite) TestOffenders() {
	s.store.offenderSummaries["100"] = models.OffenderSummary{OffenderNumber: "100"}
	s.store.offenderDetails["100"] = models.OffenderDetail{OffenderNumber: "100"}
	s.store.offenderCharges["100"] = []models.OffenderCharge{{OffenseClass: ptr("B FELONY")}}
	s.expectCommittedBatch()
	s.expectCommittedBatch()

	summaries, err := s.service.IngestOffenderSummaries(context.Background(), []models.OffenderSummary{{OffenderNumber: "100"}, {OffenderNumber: "200"}})
	s.Require().NoError(err)
	s.Equal(1, summaries.Inserted)
	s.Equal(1, summaries.Skipped)

	details, err := s.service.IngestOffenderDetails(context.Background(), []models.OffenderDetail{{OffenderNumber: "100"}, {OffenderNumber: "200", Charges: []models.OffenderCharge{{}}}})
	s.Require().NoError(err)
	s.Equal(1, details.Inserted)
	s.Equal(1, details.Updated)
	s.Empty(s.store.offenderCharges["100"])
	s.Len(s.store.offenderCharges["200"], 1)
}

func (s *IngestionSuite) TestIngest_RoutesByKind() {
	s.expectCommittedBatch()

	batch, err := models.DecodeBatch(models.KindDispatch, []byte(`{"calls":[{"id":"C7"}]}`))
	s.Require().NoError(err)

	result, err := s.service.Ingest(context.Background(), batch)
	s.Require().NoError(err)
	s.Equal([]string{"C7"}, result.(models.DispatchResult).InsertedIDs)

	_, err = s.service.Ingest(context.Background(), models.Batch{Kind: "parcels"})
	s.Equal(http.StatusBadRequest, httperror.GetStatusCode(err))
}

func (s *IngestionSuite) TestStoreFailureRollsBackAndSkipsEvents() {
	s.store.failOn = "C2"
	s.mock.ExpectBegin()
	s.mock.ExpectRollback()

	_, err := s.service.IngestDispatch(context.Background(), []models.DispatchCall{{CallID: "C1"}, {CallID: "C2"}})
	s.Require().Error(err)
	s.Equal(http.StatusInternalServerError, httperror.GetStatusCode(err))
	s.Empty(s.publisher.events)
}

// The roster batch runs against the real repository so the rollback is observed at the driver.
func TestRoster_ConstraintViolationRollsBackWholeBatch(t *testing.T) {
	db, mock := dbtest.New(t)
	logger := dbtest.Logger()
	service := NewService(db, Stores{Roster: roster.NewRepository(db, logger)}, nil, events.NewEmitter(nil, logger), logger)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT book_id FROM roster_records`).WillReturnRows(sqlmock.NewRows([]string{"book_id"}))
	mock.ExpectExec(`INSERT INTO roster_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM roster_charges`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO roster_records`).WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	ctx := context.Background()
	_, err := service.IngestRoster(ctx, []models.RosterRecord{{BookID: "B1"}, {BookID: "B2"}, {BookID: "B3"}})
	require.Error(t, err)

	assert.Equal(t, http.StatusInternalServerError, httperror.GetStatusCode(err))
	meta := httperror.ToHTTPError(err).Meta
	assert.Equal(t, "roster", meta["kind"])
	assert.NotEmpty(t, meta["batch_id"])
	assert.Equal(t, string(database.ErrorClassConstraint), meta["error_class"])
	assert.NotContains(t, err.Error(), "duplicate key")
}

func TestBeginFailureIsRetryable(t *testing.T) {
	db, mock := dbtest.New(t)
	logger := dbtest.Logger()
	service := NewService(db, newMemoryStore().stores(), nil, nil, logger)

	mock.ExpectBegin().WillReturnError(&pq.Error{Code: "08006"})

	_, err := service.IngestDispatch(context.Background(), []models.DispatchCall{{CallID: "C1"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, httperror.GetStatusCode(err))
}
