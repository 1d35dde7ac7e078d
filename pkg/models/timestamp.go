package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are the date formats scrapers are known to send.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"01/02/2006",
	"1/2/2006",
}

// Timestamp decodes the loosely formatted dates scrapers emit. Zone-less values are UTC.
// Text matching no known layout decodes to the zero time and is kept for Unrecognized,
// so one bad date costs its record rather than the whole batch.
type Timestamp struct {
	time.Time

	unrecognized string
}

func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

func ParseTimestamp(value string) (Timestamp, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := ParseTimestamp(raw)
	if err != nil {
		*t = Timestamp{unrecognized: strings.TrimSpace(raw)}
		return nil
	}
	*t = parsed
	return nil
}

// Unrecognized returns the raw text of a date that matched no known layout.
func (t *Timestamp) Unrecognized() (string, bool) {
	if t == nil || t.unrecognized == "" {
		return "", false
	}
	return t.unrecognized, true
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// Value stores the zero time as NULL.
func (t Timestamp) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time, nil
}
