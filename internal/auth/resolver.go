package auth

import (
	"context"
	"errors"
	"time"

	"logfort/internal/db"
)

// Resolution errors. These map to distinguishable server-side outcomes;
// the client-visible response is uniform.
var (
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrPrincipalInactive = errors.New("principal inactive")
	ErrCrossTenantDenied = errors.New("credential belongs to a different organization")
)

// Principal is the fully resolved identity behind one ingest request:
// the tenant, the API key that scoped it, and the agent (when the
// endpoint is agent-bearing).
type Principal struct {
	Org   *db.Organization
	Key   *db.APIKey
	Agent *db.Agent
}

// Resolver maps presented credentials to exactly one tenant. It is the
// only component allowed to answer "which organization does this belong
// to"; nothing downstream infers tenant scope on its own.
type Resolver struct {
	Store *db.Store

	// Now is the expiry reference clock; nil means time.Now.
	Now func() time.Time
}

// Resolve validates the presented API key and, when agentID is
// non-empty, the agent, enforcing active flags and cross-tenant
// isolation. A mismatched key/agent organization fails closed.
func (r *Resolver) Resolve(ctx context.Context, rawKey, agentID string) (*Principal, error) {
	prefix, err := db.Prefix(rawKey)
	if err != nil {
		return nil, ErrPrincipalNotFound
	}

	key, err := r.Store.FindAPIKeyByPrefix(ctx, prefix)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, err
	}
	if !key.Verify(rawKey) {
		return nil, ErrPrincipalNotFound
	}

	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	if !key.Active || (key.ExpiresAt != nil && key.ExpiresAt.Before(now)) {
		return nil, ErrPrincipalInactive
	}
	if !key.Organization.Active {
		return nil, ErrPrincipalInactive
	}

	p := &Principal{Org: &key.Organization, Key: key}
	if agentID == "" {
		return p, nil
	}

	agent, err := r.Store.FindAgent(ctx, agentID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, err
	}
	if agent.OrganizationID != key.OrganizationID {
		return nil, ErrCrossTenantDenied
	}
	if !agent.Active {
		return nil, ErrPrincipalInactive
	}

	p.Agent = agent
	return p, nil
}
