package models

import (
	"fmt"
	"strings"
)

// RecordKind tags which entity stream a batch belongs to.
type RecordKind string

const (
	KindRoster          RecordKind = "roster"
	KindDispatch        RecordKind = "dispatch"
	KindRegistry        RecordKind = "registry"
	KindBulletin        RecordKind = "bulletin"
	KindOffenderSummary RecordKind = "offender_summary"
	KindOffenderDetail  RecordKind = "offender_detail"
)

var AllKinds = []RecordKind{
	KindRoster,
	KindDispatch,
	KindRegistry,
	KindBulletin,
	KindOffenderSummary,
	KindOffenderDetail,
}

func ParseRecordKind(s string) (RecordKind, error) {
	normalized := RecordKind(strings.ToLower(strings.TrimSpace(s)))
	for _, kind := range AllKinds {
		if kind == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

func (k RecordKind) String() string {
	return string(k)
}
