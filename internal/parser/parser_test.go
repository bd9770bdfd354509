package parser

import (
	"fmt"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnknownFormat(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parse("syslog", []byte(`{"log": "x"}`))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestKnown(t *testing.T) {
	r := NewRegistry()
	for _, f := range []string{SourceHAProxy, SourceNginx, SourceCrowdSec, SourceFail2ban, SourceInventory} {
		assert.True(t, r.Known(f), f)
	}
	assert.False(t, r.Known(SourceGeneric))
	assert.False(t, r.Known("syslog"))
}

func TestParseBatchCountsSkippedLines(t *testing.T) {
	r := NewRegistry().WithClock(testClock)

	logs := make([]string, 0, 10)
	for i := 0; i < 9; i++ {
		logs = append(logs, fmt.Sprintf(
			`192.168.1.%d - - [01/Jan/2024:12:00:00 +0000] "GET /page-%d HTTP/1.1" 200 512 "-" "curl/8.0"`, i+1, i))
	}
	logs = append(logs, "### corrupted line ###")

	body, err := json.Marshal(map[string]interface{}{
		"logs":        logs,
		"server_name": "web-01",
	})
	require.NoError(t, err)

	out, err := r.Parse(SourceNginx, body)
	require.NoError(t, err)
	assert.Len(t, out.Events, 9)
	assert.Equal(t, 1, out.Skipped)

	for _, ev := range out.Events {
		assert.Equal(t, "web-01", ev.SourceHost)
	}
}

func TestParseFail2banNoiseDroppedSilently(t *testing.T) {
	r := NewRegistry().WithClock(testClock)
	body := []byte(`{"logs": [
		"2024-01-01 12:00:00 fail2ban.actions: [sshd] Ban 192.168.1.100",
		"2024-01-01 12:00:01 fail2ban.filter: INFO Found 192.168.1.100",
		"2024-01-01 12:00:02 fail2ban.server: INFO rollover performed"
	], "server_name": "bastion"}`)

	out, err := r.Parse(SourceFail2ban, body)
	require.NoError(t, err)
	assert.Len(t, out.Events, 1)
	// Non-action chatter is expected traffic, not skipped input.
	assert.Equal(t, 0, out.Skipped)
}

func TestParseSingleLogField(t *testing.T) {
	r := NewRegistry().WithClock(testClock)
	body := []byte(`{"log": "192.168.1.1 - - [01/Jan/2024:12:00:00 +0000] \"GET / HTTP/1.1\" 200 0 \"-\" \"-\"", "server_name": "web-02"}`)

	out, err := r.Parse(SourceNginx, body)
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "web-02", out.Events[0].SourceHost)
}

func TestParseEmptyBatchRejected(t *testing.T) {
	r := NewRegistry()
	for _, body := range []string{`{}`, `{"logs": []}`, `{"server_name": "web-01"}`} {
		_, err := r.Parse(SourceNginx, []byte(body))
		assert.ErrorIs(t, err, ErrMalformed, "body %q", body)
	}
}

func TestParseLineWithoutHostFallsBackToUnknown(t *testing.T) {
	r := NewRegistry().WithClock(testClock)
	body := []byte(`{"log": "192.168.1.1 - - [01/Jan/2024:12:00:00 +0000] \"GET / HTTP/1.1\" 200 0 \"-\" \"-\""}`)

	out, err := r.Parse(SourceNginx, body)
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "unknown", out.Events[0].SourceHost)
}

func TestParseHAProxyKeepsParsedServerWithoutEnvelopeHost(t *testing.T) {
	r := NewRegistry().WithClock(testClock)
	body := []byte(`{"log": "192.168.1.100:54321 [01/Jan/2024:12:00:00.000] fe be/srv1 0/0/0/12/12 200 1234 - - ---- 1/1/0/0/0 0/0 \"GET / HTTP/1.1\""}`)

	out, err := r.Parse(SourceHAProxy, body)
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "srv1", out.Events[0].SourceHost)
}

func TestParseGenericDispatch(t *testing.T) {
	r := NewRegistry().WithClock(testClock)

	t.Run("nginx", func(t *testing.T) {
		body := []byte(`{"source_type": "nginx", "server_name": "web-01", "message": "192.168.1.1 - - [01/Jan/2024:12:00:00 +0000] \"GET / HTTP/1.1\" 404 0 \"-\" \"-\""}`)
		out, err := r.Parse(SourceGeneric, body)
		require.NoError(t, err)
		require.Len(t, out.Events, 1)
		assert.Equal(t, SourceNginx, out.Source)
		assert.Equal(t, "web-01", out.Events[0].SourceHost)
		assert.Equal(t, 404, out.Events[0].StatusCode)
	})

	t.Run("crowdsec message", func(t *testing.T) {
		body := []byte(`{"source_type": "crowdsec", "server_name": "edge-01", "message": "{\"value\": \"203.0.113.5\", \"type\": \"ban\"}"}`)
		out, err := r.Parse(SourceGeneric, body)
		require.NoError(t, err)
		require.Len(t, out.Events, 1)
		assert.Equal(t, "edge-01", out.Events[0].SourceHost)
	})

	t.Run("unknown source_type", func(t *testing.T) {
		_, err := r.Parse(SourceGeneric, []byte(`{"source_type": "syslog", "message": "x"}`))
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("generic cannot nest itself", func(t *testing.T) {
		_, err := r.Parse(SourceGeneric, []byte(`{"source_type": "generic", "message": "x"}`))
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("unparsable message counts as skipped", func(t *testing.T) {
		out, err := r.Parse(SourceGeneric, []byte(`{"source_type": "nginx", "message": "garbage"}`))
		require.NoError(t, err)
		assert.Empty(t, out.Events)
		assert.Equal(t, 1, out.Skipped)
	})
}
