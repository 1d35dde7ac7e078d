package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Canonical trims and upper-cases a field for identity and comparison purposes.
func Canonical(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// RowIdentity derives a bulletin row identity from its stable fields: category key,
// name, time text and location. Volatile fields such as the site id, invid or case
// number must never be passed here, so a re-scrape of the same event hashes the same.
//
// The result is 32 upper-case hex characters, which fits the 50 character identity
// column and matches the hashes scrapers already compute on their side.
func RowIdentity(key, name, timeText, location string) string {
	parts := []string{Canonical(key), Canonical(name), Canonical(timeText), Canonical(location)}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
