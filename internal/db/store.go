package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by lookups when no matching row exists.
var ErrNotFound = errors.New("record not found")

// lastSeenTouchInterval throttles last-used/last-seen writes so hot
// credentials do not turn every request into an UPDATE.
const lastSeenTouchInterval = 5 * time.Minute

// Store wraps the GORM handle with the queries the ingest pipeline and
// the admin API need.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for workers that operate on whole tables.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// FindAPIKeyByPrefix loads the candidate key row for a presented raw
// key's prefix, with its organization. The caller still verifies the
// full key against the stored hash.
func (s *Store) FindAPIKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	var key APIKey
	err := s.db.WithContext(ctx).Where("key_prefix = ?", prefix).Preload("Organization").First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// FindAgent loads an agent by its stable agent id, with its organization.
func (s *Store) FindAgent(ctx context.Context, agentID string) (*Agent, error) {
	var agent Agent
	err := s.db.WithContext(ctx).Where("agent_id = ?", agentID).Preload("Organization").First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// AgentSecret returns the stored signing secret for an agent, for
// deployments that provision per-agent secrets.
func (s *Store) AgentSecret(ctx context.Context, agentID string) ([]byte, error) {
	var agent Agent
	err := s.db.WithContext(ctx).Select("secret").Where("agent_id = ?", agentID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && agent.Secret == "") {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(agent.Secret), nil
}

// TouchAPIKey records usage on a key: the request counter always moves,
// the last-used timestamp only when stale.
func (s *Store) TouchAPIKey(ctx context.Context, key *APIKey) error {
	now := time.Now()
	updates := map[string]interface{}{
		"total_requests": gorm.Expr("total_requests + 1"),
	}
	if key.LastUsedAt == nil || now.Sub(*key.LastUsedAt) > lastSeenTouchInterval {
		updates["last_used_at"] = now
	}
	return s.db.WithContext(ctx).Model(&APIKey{}).Where("id = ?", key.ID).Updates(updates).Error
}

// TouchAgent updates the agent's last-seen timestamp if it is stale.
func (s *Store) TouchAgent(ctx context.Context, agent *Agent) error {
	now := time.Now()
	if agent.LastSeenAt != nil && now.Sub(*agent.LastSeenAt) <= lastSeenTouchInterval {
		return nil
	}
	return s.db.WithContext(ctx).Model(&Agent{}).Where("id = ?", agent.ID).Update("last_seen_at", now).Error
}

// DedupeHash computes the idempotency key for an event: identical
// resubmissions from the same principal hash to the same value and
// collapse into one stored row.
func DedupeHash(orgID uint, agentID string, ts time.Time, rawLog string) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(uint64(orgID), 10)))
	h.Write([]byte{0})
	h.Write([]byte(agentID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(rawLog))
	return hex.EncodeToString(h.Sum(nil))
}

// CreateEvents persists a batch of canonical events. Duplicates (by
// dedupe hash) are skipped by the database, not by application locking,
// so concurrent identical submissions stay correct. Returns the number
// of rows actually inserted.
func (s *Store) CreateEvents(ctx context.Context, events []SecurityEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_hash"}},
		DoNothing: true,
	}).Create(&events)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// CreateSnapshot persists one inventory snapshot. Like events, retried
// identical submissions collapse on the dedupe hash at the database.
// Returns the number of rows actually inserted (0 or 1).
func (s *Store) CreateSnapshot(ctx context.Context, snap *InventorySnapshot) (int, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_hash"}},
		DoNothing: true,
	}).Create(snap)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// ListActiveAgents returns the active agents for one organization. This
// is the read surface the org-settings layer consumes.
func (s *Store) ListActiveAgents(ctx context.Context, orgID uint) ([]Agent, error) {
	var agents []Agent
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND active = ?", orgID, true).
		Order("agent_id").
		Find(&agents).Error
	return agents, err
}

// FindOrganizationBySlug loads one organization by its slug.
func (s *Store) FindOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	var org Organization
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}
