package offender

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/models"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

var detailColumns = []string{
	"offender_number", "location", "offense", "tdd_sdd", "commitment_date", "recall_date", "interview_date",
	"mandatory_minimum", "decision_type", "decision", "decision_date", "effective_date", "last_updated",
}

var chargeColumns = []string{"offender_number", "supervision_status", "offense_class", "county_of_commitment", "end_date"}

// Repository handles Department of Corrections offender persistence
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

// Summaries and details are keyed independently, so each lookup names its table.
type Lookup struct {
	repo  *Repository
	table string
}

// SummaryLookup resolves identities against offender_summaries
func (r *Repository) SummaryLookup() *Lookup {
	return &Lookup{repo: r, table: "offender_summaries"}
}

// DetailLookup resolves identities against offender_details
func (r *Repository) DetailLookup() *Lookup {
	return &Lookup{repo: r, table: "offender_details"}
}

func (l *Lookup) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	ctx, span := tracing.StartSpan(ctx, "offender.Lookup.ExistingIDs")
	defer span.End()

	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}

	found, err := database.SelectIn[string](ctx, database.Conn(ctx, l.repo.db), ids, func(sb *sqlbuilder.SelectBuilder, chunk []any) {
		sb.Select("offender_number")
		sb.From(l.table)
		sb.Where(sb.In("offender_number", chunk...))
	})
	if err != nil {
		l.repo.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"table": l.table, "count": len(ids)}).Error("Failed to look up existing offenders")
		return nil, database.WrapQueryError(err, "look up existing offenders")
	}

	return database.KeySet(found), nil
}

// InsertSummaries writes summaries that are not stored yet; a stored summary is never overwritten
func (r *Repository) InsertSummaries(ctx context.Context, summaries []models.OffenderSummary) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "offender.Repository.InsertSummaries")
	defer span.End()

	conn := database.Conn(ctx, r.db)
	var inserted int64

	for _, chunk := range database.Chunks(summaries, database.InsertBatchSize) {
		sb := database.NewInsertBuilder()
		sb.InsertInto("offender_summaries")
		sb.Cols("offender_number", "name", "gender", "age")
		for _, s := range chunk {
			sb.Values(s.OffenderNumber, s.Name, s.Gender, s.Age)
		}

		query, args := sb.Build()
		query = database.OnConflictDoNothing(query, "offender_number")

		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(chunk)}).Error("Failed to insert offender summaries")
			return inserted, database.WrapQueryError(err, "insert offender summaries")
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	return inserted, nil
}

// UpsertDetail inserts or overwrites the offender detail row
func (r *Repository) UpsertDetail(ctx context.Context, d models.OffenderDetail) error {
	ctx, span := tracing.StartSpan(ctx, "offender.Repository.UpsertDetail")
	defer span.End()

	sb := database.NewInsertBuilder()
	sb.InsertInto("offender_details")
	sb.Cols(detailColumns...)
	sb.Values(d.OffenderNumber, d.Location, d.Offense, d.TDDSDD, d.CommitmentDate, d.RecallDate, d.InterviewDate,
		d.MandatoryMinimum, d.DecisionType, d.Decision, d.DecisionDate, d.EffectiveDate, time.Now().UTC())

	query, args := sb.Build()
	query = database.OnConflictDoUpdate(query, []string{"offender_number"}, detailColumns[1:])

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"offender_number": d.OffenderNumber}).Error("Failed to upsert offender detail")
		return database.WrapQueryError(err, "upsert offender detail")
	}

	return nil
}

// ReplaceCharges rewrites the offender's charge rows
func (r *Repository) ReplaceCharges(ctx context.Context, offenderNumber string, charges []models.OffenderCharge) error {
	ctx, span := tracing.StartSpan(ctx, "offender.Repository.ReplaceCharges")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"offender_number": offenderNumber,
		"charges":         len(charges),
	})
	conn := database.Conn(ctx, r.db)

	del := database.NewDeleteBuilder()
	del.DeleteFrom("offender_charges")
	del.Where(del.Equal("offender_number", offenderNumber))

	query, args := del.Build()
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to delete offender charges")
		return database.WrapQueryError(err, "delete offender charges")
	}

	for _, chunk := range database.Chunks(charges, database.InsertBatchSize) {
		sb := database.NewInsertBuilder()
		sb.InsertInto("offender_charges")
		sb.Cols(chargeColumns...)
		for _, c := range chunk {
			sb.Values(offenderNumber, c.SupervisionStatus, c.OffenseClass, c.CountyOfCommitment, c.EndDate)
		}

		query, args := sb.Build()
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to insert offender charges")
			return database.WrapQueryError(err, "insert offender charges")
		}
	}

	return nil
}
