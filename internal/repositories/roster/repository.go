package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/models"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

var recordColumns = []string{
	"book_id", "invid", "first_name", "last_name", "middle_name", "display_name", "age", "dob", "sex", "race",
	"arrest_date", "released_date", "agency", "display_agency", "total_bond_amount", "next_court_date", "last_updated",
}

var chargeColumns = []string{"book_id", "charge_description", "status", "docket_number", "bond_amount", "disposition"}

// Repository handles jail roster persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new roster repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ExistingIDs returns the booking ids among ids that are already stored
func (r *Repository) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	ctx, span := tracing.StartSpan(ctx, "roster.Repository.ExistingIDs")
	defer span.End()

	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}

	found, err := database.SelectIn[string](ctx, database.Conn(ctx, r.db), ids, func(sb *sqlbuilder.SelectBuilder, chunk []any) {
		sb.Select("book_id")
		sb.From("roster_records")
		sb.Where(sb.In("book_id", chunk...))
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(ids)}).Error("Failed to look up existing roster records")
		return nil, database.WrapQueryError(err, "look up existing roster records")
	}

	return database.KeySet(found), nil
}

// Insert writes a new roster record
func (r *Repository) Insert(ctx context.Context, rec models.RosterRecord) error {
	ctx, span := tracing.StartSpan(ctx, "roster.Repository.Insert")
	defer span.End()

	sb := database.NewInsertBuilder()
	sb.InsertInto("roster_records")
	sb.Cols(recordColumns...)
	sb.Values(rec.BookID, rec.Invid, rec.FirstName, rec.LastName, rec.MiddleName, rec.DisplayName, rec.Age, rec.DOB, rec.Sex, rec.Race,
		rec.ArrestDate, rec.ReleasedDate, rec.Agency, rec.DisplayAgency, rec.TotalBondAmount, rec.NextCourtDate, time.Now().UTC())

	query, args := sb.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"book_id": rec.BookID}).Error("Failed to insert roster record")
		return database.WrapQueryError(err, "insert roster record")
	}

	return nil
}

// Update overwrites the mutable columns of a stored roster record. A stored
// released date is only replaced by a non-null incoming one.
func (r *Repository) Update(ctx context.Context, rec models.RosterRecord) error {
	ctx, span := tracing.StartSpan(ctx, "roster.Repository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("roster_records")
	ub.Set(
		ub.Assign("invid", rec.Invid),
		ub.Assign("first_name", rec.FirstName),
		ub.Assign("last_name", rec.LastName),
		ub.Assign("middle_name", rec.MiddleName),
		ub.Assign("display_name", rec.DisplayName),
		ub.Assign("age", rec.Age),
		ub.Assign("dob", rec.DOB),
		ub.Assign("sex", rec.Sex),
		ub.Assign("race", rec.Race),
		ub.Assign("arrest_date", rec.ArrestDate),
		fmt.Sprintf("released_date = COALESCE(%s, released_date)", ub.Var(rec.ReleasedDate)),
		ub.Assign("agency", rec.Agency),
		ub.Assign("display_agency", rec.DisplayAgency),
		ub.Assign("total_bond_amount", rec.TotalBondAmount),
		ub.Assign("next_court_date", rec.NextCourtDate),
		ub.Assign("last_updated", time.Now().UTC()),
	)
	ub.Where(ub.Equal("book_id", rec.BookID))

	query, args := ub.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"book_id": rec.BookID}).Error("Failed to update roster record")
		return database.WrapQueryError(err, "update roster record")
	}

	return nil
}

// ReplaceCharges deletes every stored charge of the booking and writes charges in its place
func (r *Repository) ReplaceCharges(ctx context.Context, bookID string, charges []models.RosterCharge) error {
	ctx, span := tracing.StartSpan(ctx, "roster.Repository.ReplaceCharges")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"book_id": bookID,
		"charges": len(charges),
	})
	conn := database.Conn(ctx, r.db)

	del := database.NewDeleteBuilder()
	del.DeleteFrom("roster_charges")
	del.Where(del.Equal("book_id", bookID))

	query, args := del.Build()
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to delete roster charges")
		return database.WrapQueryError(err, "delete roster charges")
	}

	for _, chunk := range database.Chunks(charges, database.InsertBatchSize) {
		sb := database.NewInsertBuilder()
		sb.InsertInto("roster_charges")
		sb.Cols(chargeColumns...)
		for _, c := range chunk {
			sb.Values(bookID, c.Description, c.Status, c.DocketNumber, c.BondAmount, c.Disposition)
		}

		query, args := sb.Build()
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to insert roster charges")
			return database.WrapQueryError(err, "insert roster charges")
		}
	}

	return nil
}

// UpsertPhoto stores the booking photo, replacing any previous one
func (r *Repository) UpsertPhoto(ctx context.Context, bookID string, photo []byte) error {
	ctx, span := tracing.StartSpan(ctx, "roster.Repository.UpsertPhoto")
	defer span.End()

	sb := database.NewInsertBuilder()
	sb.InsertInto("roster_photos")
	sb.Cols("book_id", "photo_data", "last_updated")
	sb.Values(bookID, photo, time.Now().UTC())

	query, args := sb.Build()
	query = database.OnConflictDoUpdate(query, []string{"book_id"}, []string{"photo_data", "last_updated"})

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"book_id": bookID, "bytes": len(photo)}).Error("Failed to upsert roster photo")
		return database.WrapQueryError(err, "upsert roster photo")
	}

	return nil
}
