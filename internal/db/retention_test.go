package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotCutoff(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff := SnapshotCutoff(created, 30)

	now := created.Add(31 * 24 * time.Hour)
	assert.True(t, cutoff.Before(now), "a 31-day-old snapshot is past its cutoff")

	now = created.Add(29 * 24 * time.Hour)
	assert.True(t, cutoff.After(now), "a 29-day-old snapshot is not yet expired")
}
