package bulletin

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/fingerprint"
	"github.com/Ramsey-B/docket/pkg/models"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

var reportColumns = []string{
	"row_hash", "site_id", "invid", "category_key", "location", "name", "crime", "time_text", "property", "officer",
	"case_text", "description", "race", "sex", "last_name", "first_name", "charge", "middle_name", "lat", "lon",
	"event_time", "created_at",
}

// Repository handles daily bulletin persistence. Reports are append-only.
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

// ExistingIDs matches row hashes case-insensitively. Keys of the result are canonical.
func (r *Repository) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	ctx, span := tracing.StartSpan(ctx, "bulletin.Repository.ExistingIDs")
	defer span.End()

	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}

	canonical := make([]string, len(ids))
	for i, id := range ids {
		canonical[i] = fingerprint.Canonical(id)
	}

	found, err := database.SelectIn[string](ctx, database.Conn(ctx, r.db), canonical, func(sb *sqlbuilder.SelectBuilder, chunk []any) {
		sb.Select("row_hash")
		sb.From("bulletin_reports")
		sb.Where(sb.In("UPPER(row_hash)", chunk...))
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(ids)}).Error("Failed to look up existing bulletin reports")
		return nil, database.WrapQueryError(err, "look up existing bulletin reports")
	}

	set := make(map[string]struct{}, len(found))
	for _, id := range found {
		set[fingerprint.Canonical(id)] = struct{}{}
	}
	return set, nil
}

// CandidatesBySiteID loads the defining fields of every stored report under the given site ids
func (r *Repository) CandidatesBySiteID(ctx context.Context, siteIDs []string) ([]models.BulletinCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "bulletin.Repository.CandidatesBySiteID")
	defer span.End()

	if len(siteIDs) == 0 {
		return nil, nil
	}

	candidates, err := database.SelectIn[models.BulletinCandidate](ctx, database.Conn(ctx, r.db), siteIDs, func(sb *sqlbuilder.SelectBuilder, chunk []any) {
		sb.Select("row_hash", "site_id", "category_key", "name", "time_text", "location")
		sb.From("bulletin_reports")
		sb.Where(sb.In("site_id", chunk...))
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"site_ids": len(siteIDs)}).Error("Failed to load bulletin candidates")
		return nil, database.WrapQueryError(err, "load bulletin candidates")
	}

	return candidates, nil
}

// BulkInsert loads reports with a single COPY on the batch transaction
func (r *Repository) BulkInsert(ctx context.Context, reports []models.BulletinReport) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "bulletin.Repository.BulkInsert")
	defer span.End()

	now := time.Now().UTC()
	buf := database.NewCopyBuffer("bulletin_reports", reportColumns...)
	for _, b := range reports {
		err := buf.Append(b.RowHash, b.SiteID, b.Invid, b.Key, b.Location, b.Name, b.Crime, b.TimeText, b.Property, b.Officer,
			b.Case, b.Description, b.Race, b.Sex, b.LastName, b.FirstName, b.Charge, b.MiddleName, b.Lat, b.Lon,
			b.EventTime, now)
		if err != nil {
			return 0, err
		}
	}

	n, err := buf.Load(ctx, database.Conn(ctx, r.db))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": buf.Len()}).Error("Failed to bulk insert bulletin reports")
		return 0, database.WrapQueryError(err, "bulk insert bulletin reports")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": n}).Debug("Bulk inserted bulletin reports")
	return n, nil
}
