package ingestion

import (
	"context"
	"errors"

	"github.com/Ramsey-B/docket/pkg/fingerprint"
	"github.com/Ramsey-B/docket/pkg/models"
)

// memoryStore backs every store interface with maps. Writes land immediately, so
// tests only assert committed outcomes on it; rollback is covered against sqlmock.
type memoryStore struct {
	failOn string

	roster        map[string]models.RosterRecord
	rosterCharges map[string][]models.RosterCharge
	rosterPhotos  map[string][]byte

	dispatch map[string]models.DispatchCall

	registry         map[string]models.RegistryEntrant
	registryPhotos   map[string][]byte
	registryMarkings map[string][]string

	bulletin map[string]models.BulletinReport

	offenderSummaries map[string]models.OffenderSummary
	offenderDetails   map[string]models.OffenderDetail
	offenderCharges   map[string][]models.OffenderCharge
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		roster:            map[string]models.RosterRecord{},
		rosterCharges:     map[string][]models.RosterCharge{},
		rosterPhotos:      map[string][]byte{},
		dispatch:          map[string]models.DispatchCall{},
		registry:          map[string]models.RegistryEntrant{},
		registryPhotos:    map[string][]byte{},
		registryMarkings:  map[string][]string{},
		bulletin:          map[string]models.BulletinReport{},
		offenderSummaries: map[string]models.OffenderSummary{},
		offenderDetails:   map[string]models.OffenderDetail{},
		offenderCharges:   map[string][]models.OffenderCharge{},
	}
}

func (m *memoryStore) stores() Stores {
	return Stores{
		Roster:            memoryRoster{m},
		Dispatch:          memoryDispatch{m},
		Registry:          memoryRegistry{m},
		Bulletin:          memoryBulletin{m},
		Offender:          memoryOffender{m},
		OffenderSummaries: keyLookup[models.OffenderSummary](m.offenderSummaries),
		OffenderDetails:   keyLookup[models.OffenderDetail](m.offenderDetails),
	}
}

func (m *memoryStore) check(id string) error {
	if m.failOn != "" && m.failOn == id {
		return errors.New("write failed for " + id)
	}
	return nil
}

type keyLookup[T any] map[string]T

func (k keyLookup[T]) ExistingIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	found := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := k[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

type memoryRoster struct{ *memoryStore }

func (r memoryRoster) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	return keyLookup[models.RosterRecord](r.roster).ExistingIDs(ctx, ids)
}

func (r memoryRoster) Insert(_ context.Context, rec models.RosterRecord) error {
	if err := r.check(rec.BookID); err != nil {
		return err
	}
	r.roster[rec.BookID] = rec
	return nil
}

func (r memoryRoster) Update(_ context.Context, rec models.RosterRecord) error {
	if err := r.check(rec.BookID); err != nil {
		return err
	}
	if rec.ReleasedDate == nil {
		rec.ReleasedDate = r.roster[rec.BookID].ReleasedDate
	}
	r.roster[rec.BookID] = rec
	return nil
}

func (r memoryRoster) ReplaceCharges(_ context.Context, bookID string, charges []models.RosterCharge) error {
	r.rosterCharges[bookID] = charges
	return nil
}

func (r memoryRoster) UpsertPhoto(_ context.Context, bookID string, photo []byte) error {
	r.rosterPhotos[bookID] = photo
	return nil
}

type memoryDispatch struct{ *memoryStore }

func (d memoryDispatch) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	return keyLookup[models.DispatchCall](d.dispatch).ExistingIDs(ctx, ids)
}

func (d memoryDispatch) InsertBatch(_ context.Context, calls []models.DispatchCall) error {
	for _, c := range calls {
		if err := d.check(c.CallID); err != nil {
			return err
		}
	}
	for _, c := range calls {
		d.dispatch[c.CallID] = c
	}
	return nil
}

type memoryRegistry struct{ *memoryStore }

func (r memoryRegistry) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	return keyLookup[models.RegistryEntrant](r.registry).ExistingIDs(ctx, ids)
}

func (r memoryRegistry) Upsert(_ context.Context, e models.RegistryEntrant) error {
	if err := r.check(e.RegistrantID); err != nil {
		return err
	}
	r.registry[e.RegistrantID] = e
	return nil
}

func (r memoryRegistry) ReplaceChildren(_ context.Context, e models.RegistryEntrant) error {
	r.registryMarkings[e.RegistrantID] = e.Markings
	return nil
}

func (r memoryRegistry) UpdatePhoto(_ context.Context, registrantID string, photo []byte) error {
	r.registryPhotos[registrantID] = photo
	return nil
}

type memoryBulletin struct{ *memoryStore }

func (b memoryBulletin) ExistingIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	found := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := b.bulletin[fingerprint.Canonical(id)]; ok {
			found[fingerprint.Canonical(id)] = struct{}{}
		}
	}
	return found, nil
}

func (b memoryBulletin) CandidatesBySiteID(_ context.Context, siteIDs []string) ([]models.BulletinCandidate, error) {
	wanted := map[string]bool{}
	for _, id := range siteIDs {
		wanted[id] = true
	}

	var out []models.BulletinCandidate
	for _, r := range b.bulletin {
		if r.SiteID != nil && wanted[*r.SiteID] {
			out = append(out, models.BulletinCandidate{RowHash: r.RowHash, SiteID: r.SiteID, Key: r.Key, Name: r.Name, TimeText: r.TimeText, Location: r.Location})
		}
	}
	return out, nil
}

func (b memoryBulletin) BulkInsert(_ context.Context, reports []models.BulletinReport) (int64, error) {
	for _, r := range reports {
		if err := b.check(r.RowHash); err != nil {
			return 0, err
		}
		b.bulletin[r.RowHash] = r
	}
	return int64(len(reports)), nil
}

type memoryOffender struct{ *memoryStore }

func (o memoryOffender) InsertSummaries(_ context.Context, summaries []models.OffenderSummary) (int64, error) {
	var n int64
	for _, s := range summaries {
		if _, ok := o.offenderSummaries[s.OffenderNumber]; ok {
			continue
		}
		o.offenderSummaries[s.OffenderNumber] = s
		n++
	}
	return n, nil
}

func (o memoryOffender) UpsertDetail(_ context.Context, d models.OffenderDetail) error {
	if err := o.check(d.OffenderNumber); err != nil {
		return err
	}
	o.offenderDetails[d.OffenderNumber] = d
	return nil
}

func (o memoryOffender) ReplaceCharges(_ context.Context, offenderNumber string, charges []models.OffenderCharge) error {
	o.offenderCharges[offenderNumber] = charges
	return nil
}
