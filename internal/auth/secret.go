package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// SecretProvider resolves the signing secret for an agent id. The two
// provisioning schemes (stored per-agent secret, master-derived secret)
// are interchangeable implementations; the pipeline is agnostic to which
// is configured.
//
// ok=false means no secret exists for the agent. Callers must still run
// a signature comparison against a dummy secret in that case, so the
// failure shape does not reveal whether the agent id is known.
type SecretProvider interface {
	SecretFor(ctx context.Context, agentID string) (secret []byte, ok bool)
}

// DerivedSecretProvider computes HMAC-SHA256(master, agent_id) as the
// agent's secret. Nothing is persisted; any agent id has a well-defined
// secret, which an agent only knows if it was handed one derived from
// the real master.
type DerivedSecretProvider struct {
	Master []byte
}

func (p DerivedSecretProvider) SecretFor(_ context.Context, agentID string) ([]byte, bool) {
	mac := hmac.New(sha256.New, p.Master)
	mac.Write([]byte(agentID))
	return []byte(hex.EncodeToString(mac.Sum(nil))), true
}

// DeriveAgentSecret returns the hex secret to hand to an agent under the
// derived scheme. Exposed for the admin API's registration response.
func DeriveAgentSecret(master []byte, agentID string) string {
	mac := hmac.New(sha256.New, master)
	mac.Write([]byte(agentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// AgentSecretStore is the storage read the stored-secret scheme needs.
type AgentSecretStore interface {
	AgentSecret(ctx context.Context, agentID string) ([]byte, error)
}

// StoredSecretProvider looks up per-agent secrets generated at
// registration or rotation.
type StoredSecretProvider struct {
	Store AgentSecretStore
}

func (p StoredSecretProvider) SecretFor(ctx context.Context, agentID string) ([]byte, bool) {
	secret, err := p.Store.AgentSecret(ctx, agentID)
	if err != nil || len(secret) == 0 {
		return nil, false
	}
	return secret, true
}

// GenerateAgentSecret returns a new random per-agent secret for the
// stored scheme. Shown once at creation or rotation.
func GenerateAgentSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
