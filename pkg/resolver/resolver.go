// Package resolver classifies each record of a normalized batch against what is
// already stored, using one batched lookup per batch on the caller's transaction.
package resolver

import (
	"context"

	"github.com/Ramsey-B/docket/pkg/fingerprint"
	"github.com/Ramsey-B/docket/pkg/models"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

type Classification int

const (
	// New has never been seen, in storage or earlier in the batch.
	New Classification = iota
	// Existing matched a stored or earlier identity of a kind that updates on re-sighting.
	Existing
	// ExactDuplicate matched a stored or earlier identity of an append-only kind.
	ExactDuplicate
	// LogicalDuplicate has a new identity but the same site id and defining fields as a known row.
	LogicalDuplicate
)

func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case Existing:
		return "existing"
	case ExactDuplicate:
		return "exact_duplicate"
	case LogicalDuplicate:
		return "logical_duplicate"
	}
	return "unknown"
}

// ExistenceLookup returns which of ids are already stored.
type ExistenceLookup interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
}

// BulletinLookup adds the site-id scoped candidate pool used for logical matching.
type BulletinLookup interface {
	ExistenceLookup
	CandidatesBySiteID(ctx context.Context, siteIDs []string) ([]models.BulletinCandidate, error)
}

type Decision[T any] struct {
	Index    int
	Identity string
	Record   T
	Class    Classification
	// MatchedIdentity is the stored row a logical duplicate was matched to.
	MatchedIdentity string
}

type Result[T any] struct {
	Decisions []Decision[T]
}

func (r Result[T]) filter(class Classification) []T {
	var out []T
	for _, d := range r.Decisions {
		if d.Class == class {
			out = append(out, d.Record)
		}
	}
	return out
}

func (r Result[T]) New() []T               { return r.filter(New) }
func (r Result[T]) Existing() []T          { return r.filter(Existing) }
func (r Result[T]) ExactDuplicates() []T   { return r.filter(ExactDuplicate) }
func (r Result[T]) LogicalDuplicates() []T { return r.filter(LogicalDuplicate) }

func (r Result[T]) Count(class Classification) int {
	n := 0
	for _, d := range r.Decisions {
		if d.Class == class {
			n++
		}
	}
	return n
}

// NewIdentities lists admitted identities in input order.
func (r Result[T]) NewIdentities() []string {
	ids := make([]string, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		if d.Class == New {
			ids = append(ids, d.Identity)
		}
	}
	return ids
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func loadExisting[T any](ctx context.Context, lookup ExistenceLookup, records []T, identity func(T) string) ([]string, map[string]struct{}, error) {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = identity(rec)
	}

	known, err := lookup.ExistingIDs(ctx, distinct(ids))
	if err != nil {
		return nil, nil, err
	}
	if known == nil {
		known = map[string]struct{}{}
	}
	return ids, known, nil
}

// ResolveAppendOnly classifies records of kinds that are written once: a known
// identity, stored or earlier in the batch, is an exact duplicate.
func ResolveAppendOnly[T any](ctx context.Context, lookup ExistenceLookup, records []T, identity func(T) string) (Result[T], error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.ResolveAppendOnly")
	defer span.End()

	ids, known, err := loadExisting(ctx, lookup, records, identity)
	if err != nil {
		return Result[T]{}, err
	}

	result := Result[T]{Decisions: make([]Decision[T], 0, len(records))}
	for i, rec := range records {
		class := New
		if _, ok := known[ids[i]]; ok {
			class = ExactDuplicate
		} else {
			known[ids[i]] = struct{}{}
		}
		result.Decisions = append(result.Decisions, Decision[T]{Index: i, Identity: ids[i], Record: rec, Class: class})
	}
	return result, nil
}

// ResolveMutable classifies records of kinds that update on re-sighting. A
// repeated identity later in the same batch is Existing, so the last snapshot wins.
func ResolveMutable[T any](ctx context.Context, lookup ExistenceLookup, records []T, identity func(T) string) (Result[T], error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.ResolveMutable")
	defer span.End()

	ids, known, err := loadExisting(ctx, lookup, records, identity)
	if err != nil {
		return Result[T]{}, err
	}

	result := Result[T]{Decisions: make([]Decision[T], 0, len(records))}
	for i, rec := range records {
		class := New
		if _, ok := known[ids[i]]; ok {
			class = Existing
		} else {
			known[ids[i]] = struct{}{}
		}
		result.Decisions = append(result.Decisions, Decision[T]{Index: i, Identity: ids[i], Record: rec, Class: class})
	}
	return result, nil
}

type Resolver struct {
	fields FieldSet
}

func NewResolver(fields FieldSet) *Resolver {
	if len(fields) == 0 {
		fields = DefaultFieldSet
	}
	return &Resolver{fields: fields}
}

// Fields is the logical-match field set in effect
func (r *Resolver) Fields() FieldSet {
	return r.fields
}

// ResolveBulletin runs the two-tier match: exact identity first, then the
// configured defining fields against rows sharing the same site id. Admitted
// reports join both the identity set and the candidate pool.
func (r *Resolver) ResolveBulletin(ctx context.Context, lookup BulletinLookup, records []models.BulletinReport) (Result[models.BulletinReport], error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.ResolveBulletin")
	defer span.End()

	identity := func(rec models.BulletinReport) string { return fingerprint.Canonical(rec.RowHash) }

	ids, known, err := loadExisting(ctx, lookup, records, identity)
	if err != nil {
		return Result[models.BulletinReport]{}, err
	}

	siteIDs := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.SiteID != nil {
			siteIDs = append(siteIDs, *rec.SiteID)
		}
	}

	pool := map[string][]models.BulletinCandidate{}
	if siteIDs = distinct(siteIDs); len(siteIDs) > 0 {
		candidates, err := lookup.CandidatesBySiteID(ctx, siteIDs)
		if err != nil {
			return Result[models.BulletinReport]{}, err
		}
		for _, c := range candidates {
			if c.SiteID != nil {
				pool[*c.SiteID] = append(pool[*c.SiteID], c)
			}
		}
	}

	result := Result[models.BulletinReport]{Decisions: make([]Decision[models.BulletinReport], 0, len(records))}
	for i, rec := range records {
		decision := Decision[models.BulletinReport]{Index: i, Identity: ids[i], Record: rec, Class: New}

		if _, ok := known[ids[i]]; ok {
			decision.Class = ExactDuplicate
		} else if rec.SiteID != nil {
			for _, candidate := range pool[*rec.SiteID] {
				if r.fields.Matches(rec, candidate) {
					decision.Class = LogicalDuplicate
					decision.MatchedIdentity = candidate.RowHash
					break
				}
			}
		}

		if decision.Class == New {
			known[ids[i]] = struct{}{}
			if rec.SiteID != nil {
				pool[*rec.SiteID] = append(pool[*rec.SiteID], candidateOf(rec))
			}
		}
		result.Decisions = append(result.Decisions, decision)
	}

	return result, nil
}
