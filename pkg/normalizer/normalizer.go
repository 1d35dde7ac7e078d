// Package normalizer turns decoded scraper records into canonical records:
// trimmed, truncated to their column widths, validated, and for bulletin
// reports carrying a derived identity. It performs no I/O.
package normalizer

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/docket/pkg/fingerprint"
	"github.com/Ramsey-B/docket/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// blankSiteIDs are placeholder values some bulletin sites render instead of an id.
var blankSiteIDs = map[string]bool{
	"":       true,
	"&nbsp;": true,
}

func normalizeAll[T any](records []T, identity func(T) string, finish func(*T) error) ([]T, []models.Rejection) {
	out := make([]T, 0, len(records))
	var rejected []models.Rejection

	for i, raw := range records {
		rec := cleanRecord(raw)

		if err := unrecognizedDate(reflect.ValueOf(rec), ""); err != nil {
			rejected = append(rejected, models.Rejection{Index: i, Identity: identity(rec), Reason: err.Error()})
			continue
		}
		if err := validate.Struct(rec); err != nil {
			rejected = append(rejected, models.Rejection{Index: i, Identity: identity(rec), Reason: validationReason(err)})
			continue
		}
		if finish != nil {
			if err := finish(&rec); err != nil {
				rejected = append(rejected, models.Rejection{Index: i, Identity: identity(rec), Reason: err.Error()})
				continue
			}
		}
		out = append(out, rec)
	}

	return out, rejected
}

func validationReason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		reasons = append(reasons, fmt.Sprintf("field '%s' failed rule '%s'", fe.Field(), fe.Tag()))
	}
	return strings.Join(reasons, "; ")
}

func Roster(records []models.RosterRecord) ([]models.RosterRecord, []models.Rejection) {
	return normalizeAll(records, func(r models.RosterRecord) string { return r.BookID }, nil)
}

func Dispatch(records []models.DispatchCall) ([]models.DispatchCall, []models.Rejection) {
	return normalizeAll(records, func(r models.DispatchCall) string { return r.CallID }, nil)
}

func Registry(records []models.RegistryEntrant) ([]models.RegistryEntrant, []models.Rejection) {
	return normalizeAll(records, func(r models.RegistryEntrant) string { return r.RegistrantID }, nil)
}

func OffenderSummaries(records []models.OffenderSummary) ([]models.OffenderSummary, []models.Rejection) {
	return normalizeAll(records, func(r models.OffenderSummary) string { return r.OffenderNumber }, nil)
}

func OffenderDetails(records []models.OffenderDetail) ([]models.OffenderDetail, []models.Rejection) {
	return normalizeAll(records, func(r models.OffenderDetail) string { return r.OffenderNumber }, nil)
}

// Bulletin canonicalizes the identity of each report, deriving it from the stable
// fields when the scraper did not send one.
func Bulletin(records []models.BulletinReport) ([]models.BulletinReport, []models.Rejection) {
	return normalizeAll(records, func(r models.BulletinReport) string { return r.RowHash }, finishBulletin)
}

func finishBulletin(rec *models.BulletinReport) error {
	if rec.SiteID != nil && blankSiteIDs[*rec.SiteID] {
		rec.SiteID = nil
	}

	if rec.RowHash == "" {
		key, name, timeText, location := value(rec.Key), value(rec.Name), value(rec.TimeText), value(rec.Location)
		if key == "" && name == "" && timeText == "" && location == "" {
			return errors.New("bulletin report has no id and no key, name, time or location to derive one from")
		}
		rec.RowHash = fingerprint.RowIdentity(key, name, timeText, location)
	}
	rec.RowHash = fingerprint.Canonical(rec.RowHash)

	return nil
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
