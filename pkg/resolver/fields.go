package resolver

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/docket/pkg/fingerprint"
	"github.com/Ramsey-B/docket/pkg/models"
)

type accessor struct {
	report    func(models.BulletinReport) *string
	candidate func(models.BulletinCandidate) *string
}

// matchFields are the bulletin fields a logical-duplicate comparison may use.
var matchFields = map[string]accessor{
	"name": {
		report:    func(r models.BulletinReport) *string { return r.Name },
		candidate: func(c models.BulletinCandidate) *string { return c.Name },
	},
	"time": {
		report:    func(r models.BulletinReport) *string { return r.TimeText },
		candidate: func(c models.BulletinCandidate) *string { return c.TimeText },
	},
	"key": {
		report:    func(r models.BulletinReport) *string { return r.Key },
		candidate: func(c models.BulletinCandidate) *string { return c.Key },
	},
	"location": {
		report:    func(r models.BulletinReport) *string { return r.Location },
		candidate: func(c models.BulletinCandidate) *string { return c.Location },
	},
}

var DefaultFieldSet = FieldSet{"name", "time", "key"}

// FieldSet names the defining fields two bulletin rows must share to be logical duplicates.
type FieldSet []string

func ParseFieldSet(names []string) (FieldSet, error) {
	var set FieldSet
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		if _, ok := matchFields[name]; !ok {
			return nil, fmt.Errorf("unknown dedup match field %q", name)
		}
		seen[name] = true
		set = append(set, name)
	}
	if len(set) == 0 {
		return DefaultFieldSet, nil
	}
	return set, nil
}

// Matches compares the configured fields trimmed and case-insensitively. A missing value equals an empty one.
func (fs FieldSet) Matches(incoming models.BulletinReport, stored models.BulletinCandidate) bool {
	for _, name := range fs {
		field := matchFields[name]
		if canonical(field.report(incoming)) != canonical(field.candidate(stored)) {
			return false
		}
	}
	return true
}

func canonical(s *string) string {
	if s == nil {
		return ""
	}
	return fingerprint.Canonical(*s)
}

// candidateOf projects an admitted report into the candidate pool.
func candidateOf(r models.BulletinReport) models.BulletinCandidate {
	return models.BulletinCandidate{
		RowHash:  r.RowHash,
		SiteID:   r.SiteID,
		Key:      r.Key,
		Name:     r.Name,
		TimeText: r.TimeText,
		Location: r.Location,
	}
}
