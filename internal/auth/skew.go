package auth

import (
	"errors"
	"strconv"
	"time"
)

// ErrTimestampOutOfWindow rejects claimed timestamps outside the allowed
// clock drift.
var ErrTimestampOutOfWindow = errors.New("timestamp outside allowed window")

// ErrInvalidTimestamp rejects timestamp headers that are not unix seconds.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// SkewGuard validates a claimed unix timestamp against a tolerance
// window around a reference clock.
type SkewGuard struct {
	Window time.Duration

	// Now is the reference clock; nil means time.Now. Tests inject a
	// fixed clock here.
	Now func() time.Time
}

// Check parses the claimed unix-seconds timestamp and accepts it iff
// |now - claimed| <= Window. The wall clock is read exactly once, before
// any comparison, so slow downstream work cannot retroactively
// invalidate a request.
func (g SkewGuard) Check(claimed string) error {
	ts, err := strconv.ParseInt(claimed, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}

	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}

	// Compare in whole seconds. Converting the drift to a Duration would
	// overflow int64 for timestamps centuries away and wrap back inside
	// the window.
	drift := now.Unix() - ts
	if drift < 0 {
		drift = -drift
	}
	// Negating math.MinInt64 leaves it negative, as does the subtraction
	// wrapping for extreme claimed values.
	if drift < 0 || drift > int64(g.Window/time.Second) {
		return ErrTimestampOutOfWindow
	}
	return nil
}
