package models

import (
	"encoding/json"
	"fmt"
)

// Rejection reports a record the normalizer dropped from its batch.
type Rejection struct {
	Index    int    `json:"index"`
	Identity string `json:"identity,omitempty"`
	Reason   string `json:"reason"`
}

// Batch is a decoded scraper batch. Exactly one slice, selected by Kind, is populated.
type Batch struct {
	Kind              RecordKind
	Roster            []RosterRecord
	Dispatch          []DispatchCall
	Registry          []RegistryEntrant
	Bulletin          []BulletinReport
	OffenderSummaries []OffenderSummary
	OffenderDetails   []OffenderDetail
}

func (b Batch) Len() int {
	switch b.Kind {
	case KindRoster:
		return len(b.Roster)
	case KindDispatch:
		return len(b.Dispatch)
	case KindRegistry:
		return len(b.Registry)
	case KindBulletin:
		return len(b.Bulletin)
	case KindOffenderSummary:
		return len(b.OffenderSummaries)
	case KindOffenderDetail:
		return len(b.OffenderDetails)
	}
	return 0
}

// DecodeBatch parses a batch body in the same shape the HTTP routes accept:
// wrapped objects for roster, dispatch and registry, bare arrays otherwise.
func DecodeBatch(kind RecordKind, body []byte) (Batch, error) {
	batch := Batch{Kind: kind}

	var err error
	switch kind {
	case KindRoster:
		var req RosterBatchRequest
		err = json.Unmarshal(body, &req)
		batch.Roster = req.Inmates
	case KindDispatch:
		var req DispatchBatchRequest
		err = json.Unmarshal(body, &req)
		batch.Dispatch = req.Calls
	case KindRegistry:
		var req RegistryBatchRequest
		err = json.Unmarshal(body, &req)
		batch.Registry = req.Registrants
	case KindBulletin:
		err = json.Unmarshal(body, &batch.Bulletin)
	case KindOffenderSummary:
		err = json.Unmarshal(body, &batch.OffenderSummaries)
	case KindOffenderDetail:
		err = json.Unmarshal(body, &batch.OffenderDetails)
	default:
		return batch, fmt.Errorf("unknown record kind %q", kind)
	}
	if err != nil {
		return batch, fmt.Errorf("decode %s batch: %w", kind, err)
	}

	return batch, nil
}
