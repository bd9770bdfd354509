package parser

import (
	"errors"
	"time"

	json "github.com/goccy/go-json"
)

// Parse failures. Per-line problems inside a batch are never errors;
// these cover payloads that are unusable as a whole.
var (
	ErrUnknownFormat = errors.New("unknown source format")
	ErrMalformed     = errors.New("malformed payload")
)

// Source format tags. The set is closed; unknown tags are rejected, not
// silently ignored.
const (
	SourceHAProxy   = "haproxy"
	SourceNginx     = "nginx"
	SourceCrowdSec  = "crowdsec"
	SourceFail2ban  = "fail2ban"
	SourceInventory = "inventory"

	// SourceGeneric is the self-describing meta-format: the envelope
	// names the concrete format its message carries.
	SourceGeneric = "generic"
)

// Event is the normalized, format-independent record a parser emits for
// one ingested item. The coordinator stamps tenancy and persists it.
type Event struct {
	SourceType string
	SourceHost string
	Timestamp  time.Time

	SrcIP   string
	SrcPort int

	Method     string
	Path       string
	StatusCode int
	BytesSent  int64
	UserAgent  string

	Action   string
	Severity string
	Reason   string

	RawLog   string
	Metadata map[string]interface{}
}

// Snapshot is the inventory parser's output: a redacted point-in-time
// service list for one server.
type Snapshot struct {
	ServerName  string
	CollectedAt time.Time
	Payload     map[string]interface{}
	RawBytes    int

	// BodyHash is the hex sha256 of the submitted body, before
	// redaction. Persistence keys retried submissions off it.
	BodyHash string
}

// Output is the result of parsing one request body. Exactly one of
// Events or Snapshot is populated, by format. Skipped counts lines that
// failed to parse inside an otherwise valid batch.
type Output struct {
	Source   string
	Events   []Event
	Snapshot *Snapshot
	Skipped  int
}

// lineEnvelope is the JSON wrapper the haproxy/nginx/fail2ban endpoints
// accept: a single line or a batch, plus the submitting host.
type lineEnvelope struct {
	Log        string   `json:"log"`
	Logs       []string `json:"logs"`
	ServerName string   `json:"server_name"`
}

func (e *lineEnvelope) lines() []string {
	if e.Log != "" {
		return []string{e.Log}
	}
	return e.Logs
}

// genericEnvelope is the generic endpoint's wrapper, dispatching on an
// explicit source_type.
type genericEnvelope struct {
	SourceType string `json:"source_type"`
	ServerName string `json:"server_name"`
	Message    string `json:"message"`
}

type lineParser func(line string, now time.Time) (*Event, bool)

// Registry routes a format tag to its parser. Parsing is pure; the only
// ambient input is the clock, injectable for tests.
type Registry struct {
	now   func() time.Time
	lines map[string]lineParser
	// dropSilently marks formats whose non-matching lines are discarded
	// without being reported: only actionable security events persist.
	dropSilently map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		now: time.Now,
		lines: map[string]lineParser{
			SourceHAProxy:  parseHAProxyLine,
			SourceNginx:    parseNginxLine,
			SourceFail2ban: parseFail2banLine,
		},
		dropSilently: map[string]bool{
			SourceFail2ban: true,
		},
	}
}

// WithClock returns a copy using the given clock.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	c := *r
	c.now = now
	return &c
}

// Known reports whether the tag is a supported concrete format
// (the generic meta-format excluded).
func (r *Registry) Known(format string) bool {
	switch format {
	case SourceHAProxy, SourceNginx, SourceCrowdSec, SourceFail2ban, SourceInventory:
		return true
	}
	return false
}

// Parse converts one raw request body in the given format into canonical
// output. The body has already passed size, signature and credential
// checks; parse failures here are client input errors.
func (r *Registry) Parse(format string, body []byte) (*Output, error) {
	switch format {
	case SourceHAProxy, SourceNginx, SourceFail2ban:
		return r.parseLines(format, body)
	case SourceCrowdSec:
		return r.parseCrowdSec(body)
	case SourceInventory:
		return r.parseInventory(body)
	case SourceGeneric:
		return r.parseGeneric(body)
	}
	return nil, ErrUnknownFormat
}

func (r *Registry) parseLines(format string, body []byte) (*Output, error) {
	var env lineEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformed
	}
	lines := env.lines()
	if len(lines) == 0 {
		return nil, ErrMalformed
	}

	out := &Output{Source: format}
	now := r.now()
	parse := r.lines[format]
	for _, line := range lines {
		ev, ok := parse(line, now)
		if !ok {
			if !r.dropSilently[format] {
				out.Skipped++
			}
			continue
		}
		// The submitting host from the envelope wins over anything the
		// line itself claims.
		if env.ServerName != "" {
			ev.SourceHost = env.ServerName
		} else if ev.SourceHost == "" {
			ev.SourceHost = "unknown"
		}
		out.Events = append(out.Events, *ev)
	}
	return out, nil
}

func (r *Registry) parseGeneric(body []byte) (*Output, error) {
	var env genericEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformed
	}
	if !r.Known(env.SourceType) {
		return nil, ErrUnknownFormat
	}
	if env.SourceType == SourceCrowdSec {
		// CrowdSec sends one JSON decision as the message.
		out := &Output{Source: SourceCrowdSec}
		var decision map[string]interface{}
		if err := json.Unmarshal([]byte(env.Message), &decision); err != nil {
			return nil, ErrMalformed
		}
		if ev, ok := parseCrowdSecDecision(decision, r.now()); ok {
			if env.ServerName != "" {
				ev.SourceHost = env.ServerName
			}
			out.Events = append(out.Events, *ev)
		}
		return out, nil
	}

	parse, ok := r.lines[env.SourceType]
	if !ok {
		return nil, ErrUnknownFormat
	}

	out := &Output{Source: env.SourceType}
	ev, matched := parse(env.Message, r.now())
	if !matched {
		if r.dropSilently[env.SourceType] {
			return out, nil
		}
		out.Skipped = 1
		return out, nil
	}

	if env.ServerName != "" {
		ev.SourceHost = env.ServerName
	}
	out.Events = append(out.Events, *ev)
	return out, nil
}
