// Package validation checks provider submissions before anything is written.
package validation

import (
	"math"

	"github.com/google/uuid"
)

// minTimestamp is 2015-01-01T00:00:00Z in milliseconds. Anything earlier is assumed to be
// seconds, not milliseconds.
const minTimestamp int64 = 1420099200000

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isFloat(f *float64) bool {
	if f == nil {
		return true
	}
	return !math.IsNaN(*f) && !math.IsInf(*f, 0)
}

// isPct accepts fractions in [0, 1].
func isPct(f float64) bool {
	return isFloat(&f) && f >= 0 && f <= 1
}

func isTimestamp(ms int64) bool {
	return ms >= minTimestamp
}

// isCoordinate rejects exactly 0, which providers send in place of a missing fix.
func isCoordinate(f *float64, limit float64) bool {
	if f == nil || !isFloat(f) {
		return false
	}
	return *f >= -limit && *f <= limit && *f != 0
}
