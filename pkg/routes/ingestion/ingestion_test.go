package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/docket/pkg/middleware"
	"github.com/Ramsey-B/docket/pkg/models"
)

type fakeIngester struct {
	got    models.Batch
	result any
	err    error
}

func (f *fakeIngester) Ingest(_ context.Context, batch models.Batch) (any, error) {
	f.got = batch
	return f.result, f.err
}

func newServer(ingester Ingester) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	Register(e.Group("/api/ingestion"), ingester)
	return e
}

func post(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_DecodeByKind(t *testing.T) {
	tests := []struct {
		path string
		body string
		kind models.RecordKind
	}{
		{"/api/ingestion/jail/sync", `{"inmates":[{"book_id":"B1"}]}`, models.KindRoster},
		{"/api/ingestion/recent-calls/batch", `{"calls":[{"id":"C1"}]}`, models.KindDispatch},
		{"/api/ingestion/sex-offenders/batch", `{"registrants":[{"registrant_id":"R1"}]}`, models.KindRegistry},
		{"/api/ingestion/daily-bulletin/batch", `[{"id":"A1"}]`, models.KindBulletin},
		{"/api/ingestion/doc/batch-summary", `[{"OffenderNumber":"100"}]`, models.KindOffenderSummary},
		{"/api/ingestion/doc/batch-details", `[{"OffenderNumber":"100"}]`, models.KindOffenderDetail},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ingester := &fakeIngester{result: map[string]int{"inserted": 1}}
			rec := post(newServer(ingester), tt.path, tt.body)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"inserted":1}`, rec.Body.String())
			assert.Equal(t, tt.kind, ingester.got.Kind)
			assert.Equal(t, 1, ingester.got.Len())
		})
	}
}

func TestRoutes_MalformedBody(t *testing.T) {
	rec := post(newServer(&fakeIngester{}), "/api/ingestion/recent-calls/batch", `{"calls":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestRoutes_PropagatesServiceStatus(t *testing.T) {
	ingester := &fakeIngester{err: httperror.NewHTTPError(http.StatusServiceUnavailable, "failed to ingest bulletin batch").AddMetaValue("batch_id", "b-1")}
	rec := post(newServer(ingester), "/api/ingestion/daily-bulletin/batch", `[{"id":"A1"}]`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"batch_id":"b-1"`)
}
