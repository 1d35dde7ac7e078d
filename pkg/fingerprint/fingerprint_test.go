package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowIdentity_Deterministic(t *testing.T) {
	a := RowIdentity("AR", "Doe, John", "2/7/2026 14:00", "100 MAIN ST")
	b := RowIdentity(" ar ", "DOE, JOHN", "2/7/2026 14:00 ", "100 main st")

	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.Equal(t, Canonical(a), a)
}

func TestRowIdentity_FieldBoundaries(t *testing.T) {
	// joining with a separator keeps shifted values from colliding
	assert.NotEqual(t, RowIdentity("AR", "DOE", "", ""), RowIdentity("A", "RDOE", "", ""))
	assert.NotEqual(t, RowIdentity("AR", "Doe, John", "14:00", ""), RowIdentity("AR", "Doe, John", "15:00", ""))
}
