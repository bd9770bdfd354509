package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupeHashDeterministic(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	raw := `192.168.1.1 - - [01/Jan/2024:12:00:00 +0000] "GET / HTTP/1.1" 200 0`

	a := DedupeHash(7, "agent-1", ts, raw)
	b := DedupeHash(7, "agent-1", ts, raw)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestDedupeHashDistinguishesComponents(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	base := DedupeHash(7, "agent-1", ts, "line")

	assert.NotEqual(t, base, DedupeHash(8, "agent-1", ts, "line"))
	assert.NotEqual(t, base, DedupeHash(7, "agent-2", ts, "line"))
	assert.NotEqual(t, base, DedupeHash(7, "agent-1", ts.Add(time.Second), "line"))
	assert.NotEqual(t, base, DedupeHash(7, "agent-1", ts, "other line"))
}

func TestDedupeHashSeparatorsPreventAmbiguity(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	// Shifting a character across a field boundary must change the hash.
	a := DedupeHash(7, "agent-1x", ts, "line")
	b := DedupeHash(7, "agent-1", ts, "xline")
	assert.NotEqual(t, a, b)
}
