package registry

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/models"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

var entrantColumns = []string{
	"registrant_id", "oci", "last_name", "first_name", "middle_name", "gender", "tier", "race", "hair_color", "eye_color",
	"height_inches", "weight_pounds", "address_line_1", "address_line_2", "city", "state", "postal_code", "county",
	"lat", "lon", "birthdate", "victim_minors", "victim_adults", "victim_unknown", "registrant_cluster", "photo_url",
	"distance", "last_changed", "created_at", "updated_at",
}

// entrantUpdateColumns are overwritten on conflict; created_at and photo_data are left alone.
var entrantUpdateColumns = append(append([]string{}, entrantColumns[1:len(entrantColumns)-2]...), "updated_at")

// childTables are cleared before a registrant's collections are rewritten.
// Victims go with their convictions through ON DELETE CASCADE.
var childTables = []string{"registry_convictions", "registry_aliases", "registry_markings"}

// Repository handles sex-offender registry persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new registry repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Repository.ExistingIDs")
	defer span.End()

	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}

	found, err := database.SelectIn[string](ctx, database.Conn(ctx, r.db), ids, func(sb *sqlbuilder.SelectBuilder, chunk []any) {
		sb.Select("registrant_id")
		sb.From("registry_entrants")
		sb.Where(sb.In("registrant_id", chunk...))
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(ids)}).Error("Failed to look up existing registrants")
		return nil, database.WrapQueryError(err, "look up existing registrants")
	}

	return database.KeySet(found), nil
}

// Upsert inserts the registrant or overwrites every mutable column of the stored row
func (r *Repository) Upsert(ctx context.Context, e models.RegistryEntrant) error {
	ctx, span := tracing.StartSpan(ctx, "registry.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()

	sb := database.NewInsertBuilder()
	sb.InsertInto("registry_entrants")
	sb.Cols(entrantColumns...)
	sb.Values(e.RegistrantID, e.OCI, e.LastName, e.FirstName, e.MiddleName, e.Gender, e.Tier, e.Race, e.HairColor, e.EyeColor,
		e.HeightInches, e.WeightPounds, e.AddressLine1, e.AddressLine2, e.City, e.State, e.PostalCode, e.County,
		e.Lat, e.Lon, e.Birthdate, e.VictimMinors, e.VictimAdults, e.VictimUnknown, e.RegistrantCluster, e.PhotoURL,
		e.Distance, e.LastChanged, now, now)

	query, args := sb.Build()
	query = database.OnConflictDoUpdate(query, []string{"registrant_id"}, entrantUpdateColumns)

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"registrant_id": e.RegistrantID}).Error("Failed to upsert registrant")
		return database.WrapQueryError(err, "upsert registrant")
	}

	return nil
}

// ReplaceChildren rewrites the registrant's convictions (with victims), aliases and markings
func (r *Repository) ReplaceChildren(ctx context.Context, e models.RegistryEntrant) error {
	ctx, span := tracing.StartSpan(ctx, "registry.Repository.ReplaceChildren")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"registrant_id": e.RegistrantID,
		"convictions":   len(e.Convictions),
		"aliases":       len(e.Aliases),
		"markings":      len(e.Markings),
	})
	conn := database.Conn(ctx, r.db)

	for _, table := range childTables {
		del := database.NewDeleteBuilder()
		del.DeleteFrom(table)
		del.Where(del.Equal("registrant_id", e.RegistrantID))

		query, args := del.Build()
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).WithField("table", table).Error("Failed to clear registrant children")
			return database.WrapQueryError(err, "clear "+table)
		}
	}

	for _, conviction := range e.Convictions {
		if err := r.insertConviction(ctx, conn, e.RegistrantID, conviction); err != nil {
			log.WithError(err).Error("Failed to insert conviction")
			return err
		}
	}

	for _, chunk := range database.Chunks(e.Aliases, database.InsertBatchSize) {
		sb := database.NewInsertBuilder()
		sb.InsertInto("registry_aliases")
		sb.Cols("registrant_id", "last_name", "first_name", "middle_name")
		for _, a := range chunk {
			sb.Values(e.RegistrantID, a.LastName, a.FirstName, a.MiddleName)
		}

		query, args := sb.Build()
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to insert aliases")
			return database.WrapQueryError(err, "insert registrant aliases")
		}
	}

	for _, chunk := range database.Chunks(e.Markings, database.InsertBatchSize) {
		sb := database.NewInsertBuilder()
		sb.InsertInto("registry_markings")
		sb.Cols("registrant_id", "marking_value")
		for _, m := range chunk {
			sb.Values(e.RegistrantID, m)
		}

		query, args := sb.Build()
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to insert markings")
			return database.WrapQueryError(err, "insert registrant markings")
		}
	}

	return nil
}

func (r *Repository) insertConviction(ctx context.Context, conn database.Querier, registrantID string, c models.Conviction) error {
	sb := database.NewInsertBuilder()
	sb.InsertInto("registry_convictions")
	sb.Cols("registrant_id", "conviction_text", "registrant_age")
	sb.Values(registrantID, c.Text, c.RegistrantAge)

	query, args := sb.Build()
	query += " RETURNING conviction_id"

	var convictionID int64
	if err := conn.GetContext(ctx, &convictionID, query, args...); err != nil {
		return database.WrapQueryError(err, "insert registrant conviction")
	}

	for _, chunk := range database.Chunks(c.Victims, database.InsertBatchSize) {
		vb := database.NewInsertBuilder()
		vb.InsertInto("registry_conviction_victims")
		vb.Cols("conviction_id", "gender", "age_group")
		for _, v := range chunk {
			vb.Values(convictionID, v.Gender, v.AgeGroup)
		}

		query, args := vb.Build()
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			return database.WrapQueryError(err, "insert conviction victims")
		}
	}

	return nil
}

// UpdatePhoto stores the registrant photo. Callers skip it when no photo was scraped
// so a missing photo never clears a stored one.
func (r *Repository) UpdatePhoto(ctx context.Context, registrantID string, photo []byte) error {
	ctx, span := tracing.StartSpan(ctx, "registry.Repository.UpdatePhoto")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("registry_entrants")
	ub.Set(ub.Assign("photo_data", photo))
	ub.Where(ub.Equal("registrant_id", registrantID))

	query, args := ub.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"registrant_id": registrantID, "bytes": len(photo)}).Error("Failed to update registrant photo")
		return database.WrapQueryError(err, "update registrant photo")
	}

	return nil
}
