package keygen

import "time"

// Clock abstracts time access so expiry checks stay deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// IsExpired reports whether a credential created at createdAt has reached its
// maximum age. The boundary is inclusive: exactly maxAgeDays elapsed counts
// as expired.
func IsExpired(clock Clock, createdAt time.Time, maxAgeDays int) bool {
	if clock == nil {
		clock = SystemClock
	}
	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour
	return clock.Now().Sub(createdAt) >= maxAge
}
