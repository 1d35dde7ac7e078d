package dispatch

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/models"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

var callColumns = []string{
	"call_id", "invid", "start_time", "close_time", "agency", "service", "nature", "address",
	"geo_x", "geo_y", "marker_details_xml", "rec_key", "icon_url", "icon", "created_at",
}

// Repository handles CAD call persistence. Calls are never updated once written.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	ctx, span := tracing.StartSpan(ctx, "dispatch.Repository.ExistingIDs")
	defer span.End()

	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}

	found, err := database.SelectIn[string](ctx, database.Conn(ctx, r.db), ids, func(sb *sqlbuilder.SelectBuilder, chunk []any) {
		sb.Select("call_id")
		sb.From("dispatch_calls")
		sb.Where(sb.In("call_id", chunk...))
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(ids)}).Error("Failed to look up existing dispatch calls")
		return nil, database.WrapQueryError(err, "look up existing dispatch calls")
	}

	return database.KeySet(found), nil
}

// InsertBatch writes calls in multi-row statements of at most database.InsertBatchSize rows
func (r *Repository) InsertBatch(ctx context.Context, calls []models.DispatchCall) error {
	ctx, span := tracing.StartSpan(ctx, "dispatch.Repository.InsertBatch")
	defer span.End()

	if len(calls) == 0 {
		return nil
	}

	now := time.Now().UTC()
	conn := database.Conn(ctx, r.db)

	for _, chunk := range database.Chunks(calls, database.InsertBatchSize) {
		sb := database.NewInsertBuilder()
		sb.InsertInto("dispatch_calls")
		sb.Cols(callColumns...)
		for _, c := range chunk {
			sb.Values(c.CallID, c.Invid, c.StartTime, c.CloseTime, c.Agency, c.Service, c.Nature, c.Address,
				c.GeoX, c.GeoY, c.MarkerDetailsXML, c.RecKey, c.IconURL, c.Icon, now)
		}

		query, args := sb.Build()
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(chunk)}).Error("Failed to insert dispatch calls")
			return database.WrapQueryError(err, "insert dispatch calls")
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(calls)}).Debug("Inserted dispatch calls")
	return nil
}
