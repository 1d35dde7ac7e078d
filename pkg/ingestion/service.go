// Package ingestion coordinates one scraper batch end to end: normalize, resolve
// identities, write, and commit or roll back as a single transaction.
package ingestion

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	ctxpkg "github.com/Ramsey-B/docket/pkg/context"
	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/events"
	"github.com/Ramsey-B/docket/pkg/metrics"
	"github.com/Ramsey-B/docket/pkg/models"
	"github.com/Ramsey-B/docket/pkg/normalizer"
	"github.com/Ramsey-B/docket/pkg/resolver"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

type RosterStore interface {
	resolver.ExistenceLookup
	Insert(ctx context.Context, rec models.RosterRecord) error
	Update(ctx context.Context, rec models.RosterRecord) error
	ReplaceCharges(ctx context.Context, bookID string, charges []models.RosterCharge) error
	UpsertPhoto(ctx context.Context, bookID string, photo []byte) error
}

type DispatchStore interface {
	resolver.ExistenceLookup
	InsertBatch(ctx context.Context, calls []models.DispatchCall) error
}

type RegistryStore interface {
	resolver.ExistenceLookup
	Upsert(ctx context.Context, e models.RegistryEntrant) error
	ReplaceChildren(ctx context.Context, e models.RegistryEntrant) error
	UpdatePhoto(ctx context.Context, registrantID string, photo []byte) error
}

type BulletinStore interface {
	resolver.BulletinLookup
	BulkInsert(ctx context.Context, reports []models.BulletinReport) (int64, error)
}

type OffenderStore interface {
	InsertSummaries(ctx context.Context, summaries []models.OffenderSummary) (int64, error)
	UpsertDetail(ctx context.Context, d models.OffenderDetail) error
	ReplaceCharges(ctx context.Context, offenderNumber string, charges []models.OffenderCharge) error
}

// Stores groups the per-kind persistence the service writes through.
type Stores struct {
	Roster            RosterStore
	Dispatch          DispatchStore
	Registry          RegistryStore
	Bulletin          BulletinStore
	Offender          OffenderStore
	OffenderSummaries resolver.ExistenceLookup
	OffenderDetails   resolver.ExistenceLookup
}

// Service is the only component that begins, commits or rolls back a batch transaction.
type Service struct {
	db       database.DB
	stores   Stores
	resolver *resolver.Resolver
	events   *events.Emitter
	logger   ectologger.Logger
}

func NewService(db database.DB, stores Stores, res *resolver.Resolver, emitter *events.Emitter, logger ectologger.Logger) *Service {
	if res == nil {
		res = resolver.NewResolver(resolver.DefaultFieldSet)
	}
	return &Service{
		db:       db,
		stores:   stores,
		resolver: res,
		events:   emitter,
		logger:   logger,
	}
}

// admission is what a batch body reports back to run for metrics and events.
type admission struct {
	identities []string
	inserted   int
	updated    int
}

var txOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// run executes write inside one transaction. Any error rolls the whole batch back.
func (s *Service) run(ctx context.Context, kind models.RecordKind, size int, write func(ctx context.Context) (admission, error)) error {
	start := time.Now()
	log := s.logger.WithContext(ctx).WithFields(ctxpkg.LogFields(ctx)).WithField("size", size)

	ctx, tx, err := s.db.GetTx(ctx, txOptions)
	if err != nil {
		metrics.IngestionBatchesTotal.WithLabelValues(kind.String(), metrics.BatchStatusRolledBack).Inc()
		return s.toHTTPError(ctx, kind, err)
	}
	defer tx.Rollback(ctx)

	result, err := write(ctx)
	if err != nil {
		log.WithError(err).Error("Batch failed, rolling back")
		metrics.IngestionBatchesTotal.WithLabelValues(kind.String(), metrics.BatchStatusRolledBack).Inc()
		return s.toHTTPError(ctx, kind, err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit batch")
		metrics.IngestionBatchesTotal.WithLabelValues(kind.String(), metrics.BatchStatusRolledBack).Inc()
		return s.toHTTPError(ctx, kind, err)
	}

	metrics.IngestionBatchesTotal.WithLabelValues(kind.String(), metrics.BatchStatusCommitted).Inc()
	metrics.IngestionBatchDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	log.WithFields(map[string]any{
		"inserted":    result.inserted,
		"updated":     result.updated,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Batch committed")

	s.events.Admitted(ctx, kind.String(), result.identities, result.inserted, result.updated)
	return nil
}

// begin tags ctx with the batch identity used by every log line and error of the batch.
func (s *Service) begin(ctx context.Context, kind models.RecordKind) context.Context {
	if ctxpkg.GetBatchID(ctx) == "" {
		ctx = ctxpkg.SetBatchID(ctx, uuid.New().String())
	}
	return ctxpkg.SetRecordKind(ctx, kind.String())
}

func (s *Service) toHTTPError(ctx context.Context, kind models.RecordKind, err error) error {
	var httpErr *httperror.HTTPError
	if qe, ok := database.AsQueryError(err); ok {
		httpErr = qe.ToHTTPError()
	} else if database.Classify(err) == database.ErrorClassTransient {
		httpErr = httperror.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("failed to ingest %s batch", kind))
	} else {
		httpErr = httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to ingest %s batch", kind))
	}
	return httpErr.AddMetaValue("batch_id", ctxpkg.GetBatchID(ctx)).AddMetaValue("kind", kind.String())
}

func (s *Service) reject(ctx context.Context, kind models.RecordKind, rejected []models.Rejection) {
	if len(rejected) == 0 {
		return
	}
	metrics.RecordOutcome(kind.String(), metrics.OutcomeRejected, len(rejected))
	s.logger.WithContext(ctx).WithFields(ctxpkg.LogFields(ctx)).WithField("rejected", len(rejected)).Warnf("Dropped %d invalid %s records", len(rejected), kind)
}

// Ingest routes a decoded batch to its entry point.
func (s *Service) Ingest(ctx context.Context, batch models.Batch) (any, error) {
	switch batch.Kind {
	case models.KindRoster:
		return s.IngestRoster(ctx, batch.Roster)
	case models.KindDispatch:
		return s.IngestDispatch(ctx, batch.Dispatch)
	case models.KindRegistry:
		return s.IngestRegistry(ctx, batch.Registry)
	case models.KindBulletin:
		return s.IngestBulletin(ctx, batch.Bulletin)
	case models.KindOffenderSummary:
		return s.IngestOffenderSummaries(ctx, batch.OffenderSummaries)
	case models.KindOffenderDetail:
		return s.IngestOffenderDetails(ctx, batch.OffenderDetails)
	}
	return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown record kind %q", batch.Kind))
}

// IngestRoster inserts new bookings and updates known ones. Bookings absent from
// the batch are left untouched.
func (s *Service) IngestRoster(ctx context.Context, records []models.RosterRecord) (models.RosterResult, error) {
	ctx = s.begin(ctx, models.KindRoster)
	ctx, span := tracing.StartSpan(ctx, "ingestion.Service.IngestRoster")
	defer span.End()

	if len(records) == 0 {
		return models.RosterResult{}, httperror.NewHTTPError(http.StatusBadRequest, "No data provided")
	}

	normalized, rejected := normalizer.Roster(records)
	s.reject(ctx, models.KindRoster, rejected)
	result := models.RosterResult{Rejected: rejected}
	if len(normalized) == 0 {
		metrics.IngestionBatchesTotal.WithLabelValues(models.KindRoster.String(), metrics.BatchStatusEmpty).Inc()
		return result, nil
	}

	err := s.run(ctx, models.KindRoster, len(normalized), func(ctx context.Context) (admission, error) {
		resolved, err := resolver.ResolveMutable(ctx, s.stores.Roster, normalized, func(r models.RosterRecord) string { return r.BookID })
		if err != nil {
			return admission{}, err
		}

		for _, d := range resolved.Decisions {
			rec := d.Record
			if d.Class == resolver.New {
				err = s.stores.Roster.Insert(ctx, rec)
				result.Inserted++
			} else {
				err = s.stores.Roster.Update(ctx, rec)
				result.Updated++
			}
			if err != nil {
				return admission{}, err
			}

			if err := s.stores.Roster.ReplaceCharges(ctx, rec.BookID, rec.Charges); err != nil {
				return admission{}, err
			}
			if len(rec.PhotoData) > 0 {
				if err := s.stores.Roster.UpsertPhoto(ctx, rec.BookID, rec.PhotoData); err != nil {
					return admission{}, err
				}
			}
		}

		return admission{identities: resolved.NewIdentities(), inserted: result.Inserted, updated: result.Updated}, nil
	})
	if err != nil {
		return models.RosterResult{}, err
	}

	metrics.RecordOutcome(models.KindRoster.String(), metrics.OutcomeInserted, result.Inserted)
	metrics.RecordOutcome(models.KindRoster.String(), metrics.OutcomeUpdated, result.Updated)
	return result, nil
}

// IngestDispatch inserts calls not seen before. A known call id is skipped, never updated.
func (s *Service) IngestDispatch(ctx context.Context, calls []models.DispatchCall) (models.DispatchResult, error) {
	ctx = s.begin(ctx, models.KindDispatch)
	ctx, span := tracing.StartSpan(ctx, "ingestion.Service.IngestDispatch")
	defer span.End()

	normalized, rejected := normalizer.Dispatch(calls)
	s.reject(ctx, models.KindDispatch, rejected)
	result := models.DispatchResult{InsertedIDs: []string{}, Rejected: rejected}
	if len(normalized) == 0 {
		metrics.IngestionBatchesTotal.WithLabelValues(models.KindDispatch.String(), metrics.BatchStatusEmpty).Inc()
		return result, nil
	}

	err := s.run(ctx, models.KindDispatch, len(normalized), func(ctx context.Context) (admission, error) {
		resolved, err := resolver.ResolveAppendOnly(ctx, s.stores.Dispatch, normalized, func(c models.DispatchCall) string { return c.CallID })
		if err != nil {
			return admission{}, err
		}

		if err := s.stores.Dispatch.InsertBatch(ctx, resolved.New()); err != nil {
			return admission{}, err
		}

		result.InsertedIDs = resolved.NewIdentities()
		result.Inserted = len(result.InsertedIDs)
		result.Skipped = resolved.Count(resolver.ExactDuplicate)
		return admission{identities: result.InsertedIDs, inserted: result.Inserted}, nil
	})
	if err != nil {
		return models.DispatchResult{}, err
	}

	metrics.RecordOutcome(models.KindDispatch.String(), metrics.OutcomeInserted, result.Inserted)
	metrics.RecordOutcome(models.KindDispatch.String(), metrics.OutcomeSkipped, result.Skipped)
	return result, nil
}

// IngestRegistry upserts every registrant and rewrites its child collections.
// A registrant without photo bytes keeps its stored photo.
func (s *Service) IngestRegistry(ctx context.Context, entrants []models.RegistryEntrant) (models.RegistryResult, error) {
	ctx = s.begin(ctx, models.KindRegistry)
	ctx, span := tracing.StartSpan(ctx, "ingestion.Service.IngestRegistry")
	defer span.End()

	normalized, rejected := normalizer.Registry(entrants)
	s.reject(ctx, models.KindRegistry, rejected)
	result := models.RegistryResult{Rejected: rejected}
	if len(normalized) == 0 {
		metrics.IngestionBatchesTotal.WithLabelValues(models.KindRegistry.String(), metrics.BatchStatusEmpty).Inc()
		return result, nil
	}

	err := s.run(ctx, models.KindRegistry, len(normalized), func(ctx context.Context) (admission, error) {
		resolved, err := resolver.ResolveMutable(ctx, s.stores.Registry, normalized, func(e models.RegistryEntrant) string { return e.RegistrantID })
		if err != nil {
			return admission{}, err
		}

		for _, d := range resolved.Decisions {
			e := d.Record
			if err := s.stores.Registry.Upsert(ctx, e); err != nil {
				return admission{}, err
			}
			if err := s.stores.Registry.ReplaceChildren(ctx, e); err != nil {
				return admission{}, err
			}
			if len(e.PhotoData) > 0 {
				if err := s.stores.Registry.UpdatePhoto(ctx, e.RegistrantID, e.PhotoData); err != nil {
					return admission{}, err
				}
			}

			if d.Class == resolver.New {
				result.Inserted++
			} else {
				result.Updated++
			}
			result.Count++
		}

		return admission{identities: resolved.NewIdentities(), inserted: result.Inserted, updated: result.Updated}, nil
	})
	if err != nil {
		return models.RegistryResult{}, err
	}

	metrics.RecordOutcome(models.KindRegistry.String(), metrics.OutcomeInserted, result.Inserted)
	metrics.RecordOutcome(models.KindRegistry.String(), metrics.OutcomeUpdated, result.Updated)
	return result, nil
}

// IngestBulletin bulk loads reports that are neither exact nor logical duplicates.
func (s *Service) IngestBulletin(ctx context.Context, reports []models.BulletinReport) (models.BulletinResult, error) {
	ctx = s.begin(ctx, models.KindBulletin)
	ctx, span := tracing.StartSpan(ctx, "ingestion.Service.IngestBulletin")
	defer span.End()

	normalized, rejected := normalizer.Bulletin(reports)
	s.reject(ctx, models.KindBulletin, rejected)
	result := models.BulletinResult{InsertedIDs: []string{}, Rejected: rejected}
	if len(normalized) == 0 {
		metrics.IngestionBatchesTotal.WithLabelValues(models.KindBulletin.String(), metrics.BatchStatusEmpty).Inc()
		return result, nil
	}

	err := s.run(ctx, models.KindBulletin, len(normalized), func(ctx context.Context) (admission, error) {
		resolved, err := s.resolver.ResolveBulletin(ctx, s.stores.Bulletin, normalized)
		if err != nil {
			return admission{}, err
		}

		loaded, err := s.stores.Bulletin.BulkInsert(ctx, resolved.New())
		if err != nil {
			return admission{}, err
		}

		result.Inserted = int(loaded)
		result.InsertedIDs = resolved.NewIdentities()
		result.LogicalDuplicates = resolved.Count(resolver.LogicalDuplicate)
		result.Skipped = resolved.Count(resolver.ExactDuplicate) + result.LogicalDuplicates
		return admission{identities: result.InsertedIDs, inserted: result.Inserted}, nil
	})
	if err != nil {
		return models.BulletinResult{}, err
	}

	metrics.RecordOutcome(models.KindBulletin.String(), metrics.OutcomeInserted, result.Inserted)
	metrics.RecordOutcome(models.KindBulletin.String(), metrics.OutcomeSkipped, result.Skipped-result.LogicalDuplicates)
	metrics.RecordOutcome(models.KindBulletin.String(), metrics.OutcomeLogicalDuplicate, result.LogicalDuplicates)
	return result, nil
}

// IngestOffenderSummaries inserts summaries for offender numbers not stored yet.
func (s *Service) IngestOffenderSummaries(ctx context.Context, summaries []models.OffenderSummary) (models.OffenderSummaryResult, error) {
	ctx = s.begin(ctx, models.KindOffenderSummary)
	ctx, span := tracing.StartSpan(ctx, "ingestion.Service.IngestOffenderSummaries")
	defer span.End()

	normalized, rejected := normalizer.OffenderSummaries(summaries)
	s.reject(ctx, models.KindOffenderSummary, rejected)
	result := models.OffenderSummaryResult{Rejected: rejected}
	if len(normalized) == 0 {
		metrics.IngestionBatchesTotal.WithLabelValues(models.KindOffenderSummary.String(), metrics.BatchStatusEmpty).Inc()
		return result, nil
	}

	err := s.run(ctx, models.KindOffenderSummary, len(normalized), func(ctx context.Context) (admission, error) {
		resolved, err := resolver.ResolveAppendOnly(ctx, s.stores.OffenderSummaries, normalized, func(o models.OffenderSummary) string { return o.OffenderNumber })
		if err != nil {
			return admission{}, err
		}

		if _, err := s.stores.Offender.InsertSummaries(ctx, resolved.New()); err != nil {
			return admission{}, err
		}

		result.Inserted = resolved.Count(resolver.New)
		result.Skipped = resolved.Count(resolver.ExactDuplicate)
		return admission{identities: resolved.NewIdentities(), inserted: result.Inserted}, nil
	})
	if err != nil {
		return models.OffenderSummaryResult{}, err
	}

	metrics.RecordOutcome(models.KindOffenderSummary.String(), metrics.OutcomeInserted, result.Inserted)
	metrics.RecordOutcome(models.KindOffenderSummary.String(), metrics.OutcomeSkipped, result.Skipped)
	return result, nil
}

// IngestOffenderDetails upserts each detail page and replaces its charges.
func (s *Service) IngestOffenderDetails(ctx context.Context, details []models.OffenderDetail) (models.OffenderDetailResult, error) {
	ctx = s.begin(ctx, models.KindOffenderDetail)
	ctx, span := tracing.StartSpan(ctx, "ingestion.Service.IngestOffenderDetails")
	defer span.End()

	normalized, rejected := normalizer.OffenderDetails(details)
	s.reject(ctx, models.KindOffenderDetail, rejected)
	result := models.OffenderDetailResult{Rejected: rejected}
	if len(normalized) == 0 {
		metrics.IngestionBatchesTotal.WithLabelValues(models.KindOffenderDetail.String(), metrics.BatchStatusEmpty).Inc()
		return result, nil
	}

	err := s.run(ctx, models.KindOffenderDetail, len(normalized), func(ctx context.Context) (admission, error) {
		resolved, err := resolver.ResolveMutable(ctx, s.stores.OffenderDetails, normalized, func(o models.OffenderDetail) string { return o.OffenderNumber })
		if err != nil {
			return admission{}, err
		}

		for _, d := range resolved.Decisions {
			if err := s.stores.Offender.UpsertDetail(ctx, d.Record); err != nil {
				return admission{}, err
			}
			if err := s.stores.Offender.ReplaceCharges(ctx, d.Record.OffenderNumber, d.Record.Charges); err != nil {
				return admission{}, err
			}
			if d.Class == resolver.New {
				result.Inserted++
			} else {
				result.Updated++
			}
		}

		return admission{identities: resolved.NewIdentities(), inserted: result.Inserted, updated: result.Updated}, nil
	})
	if err != nil {
		return models.OffenderDetailResult{}, err
	}

	metrics.RecordOutcome(models.KindOffenderDetail.String(), metrics.OutcomeInserted, result.Inserted)
	metrics.RecordOutcome(models.KindOffenderDetail.String(), metrics.OutcomeUpdated, result.Updated)
	return result, nil
}
