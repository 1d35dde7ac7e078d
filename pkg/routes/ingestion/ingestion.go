package ingestion

import (
	"context"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/docket/pkg/models"
)

// Ingester applies one decoded batch and returns its per-kind result
type Ingester interface {
	Ingest(ctx context.Context, batch models.Batch) (any, error)
}

type handler struct {
	ingester Ingester
}

// Register mounts the scraper batch routes, usually on the /api/ingestion group
func Register(g *echo.Group, ingester Ingester) {
	h := &handler{ingester: ingester}

	g.POST("/jail/sync", h.ingest(models.KindRoster))
	g.POST("/recent-calls/batch", h.ingest(models.KindDispatch))
	g.POST("/sex-offenders/batch", h.ingest(models.KindRegistry))
	g.POST("/daily-bulletin/batch", h.ingest(models.KindBulletin))
	g.POST("/doc/batch-summary", h.ingest(models.KindOffenderSummary))
	g.POST("/doc/batch-details", h.ingest(models.KindOffenderDetail))
}

func (h *handler) ingest(kind models.RecordKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "failed to read request body")
		}

		batch, err := models.DecodeBatch(kind, body)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body").AddMetaValue("kind", kind.String())
		}

		result, err := h.ingester.Ingest(ctx, batch)
		if err != nil {
			return err
		}

		return c.JSON(http.StatusOK, result)
	}
}
