package db

import (
	"time"

	"gorm.io/datatypes"
)

// Organization is the tenant boundary. Every agent, API key, event and
// snapshot belongs to exactly one organization; nothing is ever visible
// across tenants.
type Organization struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// PublicID is the externally visible identifier (UUID string).
	PublicID string `gorm:"uniqueIndex;size:36;not null"`

	Name string `gorm:"size:255;not null"`
	Slug string `gorm:"uniqueIndex;size:100;not null"`

	Active bool `gorm:"default:true"`

	// RetentionDays is how long this organization's security events are
	// kept. 0 means "use the global default" from config; the effective
	// value is clamped to the global maximum.
	RetentionDays int `gorm:"not null;default:0"`
}

// APIKey is a tenant-scoped ingest credential. The raw key is shown once
// at creation; only a bcrypt verifier is stored, and the first ten
// characters act as a lookup hint.
type APIKey struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	OrganizationID uint         `gorm:"index;not null"`
	Organization   Organization `gorm:"foreignKey:OrganizationID"`

	// Name is a user-friendly identifier for this key (e.g. "edge-agents").
	Name string `gorm:"size:128;not null"`

	// KeyPrefix is the first ten characters of the raw key, used to find
	// the candidate row before the bcrypt verifier is checked.
	KeyPrefix string `gorm:"uniqueIndex;size:10;not null"`

	// KeyHash is the bcrypt hash of the full raw key.
	KeyHash string `gorm:"size:255;not null"`

	// AllowedSources restricts which source formats this key may submit
	// through the generic endpoint. Empty means all formats.
	AllowedSources datatypes.JSONSlice[string] `gorm:"type:json"`

	// RateLimit is the number of ingest requests allowed per window for
	// this key. 0 means "use the global default" from config.
	RateLimit int `gorm:"not null;default:0"`

	Active    bool       `gorm:"default:true"`
	ExpiresAt *time.Time // nil = never expires

	// Usage tracking. LastUsedAt writes are throttled so hot keys don't
	// turn every ingest request into an UPDATE.
	LastUsedAt    *time.Time
	TotalRequests int64 `gorm:"not null;default:0"`
}

// Agent is a remote process authorized to submit events for one
// organization. Its requests are HMAC-signed; the signing secret is
// either derived from a master secret and the agent id, or generated at
// registration and stored here.
type Agent struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	OrganizationID uint         `gorm:"index;not null"`
	Organization   Organization `gorm:"foreignKey:OrganizationID"`

	AgentID string `gorm:"uniqueIndex;size:64;not null"`

	Active bool `gorm:"default:true"`

	// Secret is the per-agent signing secret, set only in stored-secret
	// deployments. Empty when secrets are derived from the master secret.
	Secret string `gorm:"size:128"`

	// LastSeenAt is touched (at most every five minutes) when the agent
	// submits a validly signed request.
	LastSeenAt *time.Time
}

// SecurityEvent is the canonical, format-independent record persisted
// per ingested item. Rows are immutable once written and owned by the
// organization.
type SecurityEvent struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time

	// ExpiresAt is the timestamp after which this event is eligible for
	// deletion by the retention sweeper.
	ExpiresAt *time.Time `gorm:"index"`

	OrganizationID uint   `gorm:"index;not null"`
	AgentID        string `gorm:"size:64;index"`

	// SourceType is the format tag: haproxy, nginx, crowdsec, fail2ban.
	SourceType string `gorm:"size:32;index;not null"`
	SourceHost string `gorm:"size:255"`

	// Timestamp is the event time as claimed by the log line, not the
	// ingest time.
	Timestamp time.Time `gorm:"index"`

	SrcIP   string `gorm:"size:45;index"`
	SrcPort int

	Method     string `gorm:"size:10"`
	Path       string `gorm:"size:2048"`
	StatusCode int
	BytesSent  int64
	UserAgent  string `gorm:"size:512"`

	// Action: allow, deny, ban, rate_limit, challenge.
	Action string `gorm:"size:20;index"`
	// Severity: low, medium, high, critical.
	Severity string `gorm:"size:20;index"`
	Reason   string `gorm:"size:255"`

	// RawLog keeps the untouched input line for audit.
	RawLog   string            `gorm:"type:text"`
	Metadata datatypes.JSONMap `gorm:"type:json"`

	// DedupeHash makes persistence idempotent: SHA-256 over
	// (org, agent, source timestamp, raw line). Duplicate submissions
	// resolve to a no-op insert via the unique index.
	DedupeHash string `gorm:"uniqueIndex;size:64;not null"`
}

// InventorySnapshot is a point-in-time record of services detected on a
// host, pruned by the retention sweeper after a configurable age.
type InventorySnapshot struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time

	// ExpiresAt drives retention; always set from the configured
	// inventory retention at write time.
	ExpiresAt *time.Time `gorm:"index"`

	OrganizationID uint   `gorm:"index;not null"`
	AgentID        string `gorm:"size:64"`
	ServerName     string `gorm:"size:255;index;not null"`

	// CollectedAt is the agent-claimed collection time.
	CollectedAt time.Time

	// Payload is the sanitized service list. Secret-looking fields are
	// redacted before the row is written; the raw payload is never stored.
	Payload datatypes.JSONMap `gorm:"type:json"`

	// RawBytes is the size of the submitted payload before redaction.
	RawBytes int

	// DedupeHash makes retried submissions idempotent: SHA-256 over
	// (org, agent, collected-at, body hash), unique-indexed like the
	// event hash.
	DedupeHash string `gorm:"uniqueIndex;size:64;not null"`
}
