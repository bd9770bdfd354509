package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCrowdSecSingleDecision(t *testing.T) {
	r := NewRegistry().WithClock(testClock)
	body := []byte(`{
		"id": 42,
		"value": "203.0.113.5",
		"type": "ban",
		"scenario": "crowdsecurity/ssh-bf",
		"duration": "4h",
		"scope": "Ip",
		"origin": "crowdsec"
	}`)

	out, err := r.Parse(SourceCrowdSec, body)
	require.NoError(t, err)
	require.Len(t, out.Events, 1)

	ev := out.Events[0]
	assert.Equal(t, SourceCrowdSec, ev.SourceType)
	assert.Equal(t, "203.0.113.5", ev.SrcIP)
	assert.Equal(t, "ban", ev.Action)
	assert.Equal(t, "medium", ev.Severity)
	assert.Equal(t, "crowdsecurity/ssh-bf", ev.Reason)
	assert.Equal(t, testClock(), ev.Timestamp)
	assert.Equal(t, "4h", ev.Metadata["duration"])
	assert.Equal(t, "Ip", ev.Metadata["scope"])
}

func TestParseCrowdSecDecisionArray(t *testing.T) {
	r := NewRegistry().WithClock(testClock)
	body := []byte(`[
		{"value": "203.0.113.5", "type": "ban", "scenario": "crowdsecurity/http-probing"},
		{"value": "203.0.113.6", "type": "captcha", "scenario": "crowdsecurity/http-scan-uniques_404"},
		{"value": "203.0.113.7", "type": "throttle", "scenario": "crowdsecurity/http-crawl-non_statics"}
	]`)

	out, err := r.Parse(SourceCrowdSec, body)
	require.NoError(t, err)
	require.Len(t, out.Events, 3)

	assert.Equal(t, "ban", out.Events[0].Action)
	assert.Equal(t, "challenge", out.Events[1].Action)
	assert.Equal(t, "rate_limit", out.Events[2].Action)
}

func TestParseCrowdSecEnvelope(t *testing.T) {
	r := NewRegistry().WithClock(testClock)
	body := []byte(`{
		"server_name": "edge-01",
		"decisions": [{"value": "198.51.100.9", "type": "ban", "scenario": "crowdsecurity/CVE-2021-41773"}]
	}`)

	out, err := r.Parse(SourceCrowdSec, body)
	require.NoError(t, err)
	require.Len(t, out.Events, 1)

	assert.Equal(t, "edge-01", out.Events[0].SourceHost)
	assert.Equal(t, "critical", out.Events[0].Severity)
}

func TestCrowdSecSeverity(t *testing.T) {
	tests := []struct {
		scenario string
		want     string
	}{
		{"crowdsecurity/CVE-2021-41773", "critical"},
		{"crowdsecurity/apache-exploit", "critical"},
		{"crowdsecurity/http-scan-uniques_404", "high"},
		{"custom/sql-attack", "high"},
		{"crowdsecurity/ssh-bf", "medium"},
		{"", "medium"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, crowdsecSeverity(tt.scenario), "scenario %q", tt.scenario)
	}
}

func TestParseCrowdSecUnknownTypeFallsBackToDeny(t *testing.T) {
	r := NewRegistry().WithClock(testClock)
	out, err := r.Parse(SourceCrowdSec, []byte(`{"value": "203.0.113.5", "type": "custom-action"}`))
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "deny", out.Events[0].Action)
}

func TestParseCrowdSecDropsIncompleteDecisions(t *testing.T) {
	r := NewRegistry().WithClock(testClock)
	out, err := r.Parse(SourceCrowdSec, []byte(`[
		{"value": "203.0.113.5"},
		{"type": "ban"},
		{"value": "203.0.113.6", "type": "ban"}
	]`))
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "203.0.113.6", out.Events[0].SrcIP)
}

func TestParseCrowdSecMalformed(t *testing.T) {
	r := NewRegistry()
	for _, body := range []string{`not json`, `"a string"`, `123`} {
		_, err := r.Parse(SourceCrowdSec, []byte(body))
		assert.ErrorIs(t, err, ErrMalformed, "body %q", body)
	}
}
