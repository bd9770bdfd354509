package handlers

import (
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	json "github.com/goccy/go-json"

	"logfort/internal/auth"
	"logfort/internal/config"
	"logfort/internal/db"
)

// The admin API is the management surface org-settings tooling consumes:
// create organizations, issue and revoke API keys, register and rotate
// agents, list active agents. Raw keys and agent secrets appear exactly
// once, in the creation response.

type createOrgRequest struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	RetentionDays int    `json:"retention_days"`
}

func CreateOrganization(store *db.Store, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req createOrgRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Name == "" || req.Slug == "" {
			badRequest(ctx, "name and slug required")
			return
		}

		org := &db.Organization{
			PublicID:      uuid.NewString(),
			Name:          req.Name,
			Slug:          req.Slug,
			Active:        true,
			RetentionDays: req.RetentionDays,
		}
		if err := store.DB().Create(org).Error; err != nil {
			badRequest(ctx, "organization slug already exists")
			return
		}

		log.Info("organization created", zap.String("slug", org.Slug))
		writeJSON(ctx, fasthttp.StatusCreated, map[string]interface{}{
			"id":   org.PublicID,
			"name": org.Name,
			"slug": org.Slug,
		})
	}
}

type createKeyRequest struct {
	Name           string   `json:"name"`
	AllowedSources []string `json:"allowed_sources"`
	RateLimit      int      `json:"rate_limit"`
}

func CreateAPIKey(store *db.Store, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		org, ok := orgFromPath(ctx, store)
		if !ok {
			return
		}

		var req createKeyRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Name == "" {
			badRequest(ctx, "name required")
			return
		}

		raw, err := db.GenerateAPIKey()
		if err != nil {
			internalError(ctx)
			return
		}
		hash, err := db.HashAPIKey(raw)
		if err != nil {
			internalError(ctx)
			return
		}

		key := &db.APIKey{
			OrganizationID: org.ID,
			Name:           req.Name,
			KeyPrefix:      raw[:db.KeyPrefixLen],
			KeyHash:        hash,
			AllowedSources: req.AllowedSources,
			RateLimit:      req.RateLimit,
			Active:         true,
		}
		if err := store.DB().Create(key).Error; err != nil {
			internalError(ctx)
			return
		}

		log.Info("api key created", zap.String("org", org.Slug), zap.String("prefix", key.KeyPrefix))
		// The raw key is returned here and never again.
		writeJSON(ctx, fasthttp.StatusCreated, map[string]interface{}{
			"name":   key.Name,
			"prefix": key.KeyPrefix,
			"key":    raw,
		})
	}
}

type revokeKeyRequest struct {
	Prefix string `json:"prefix"`
}

func RevokeAPIKey(store *db.Store, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		org, ok := orgFromPath(ctx, store)
		if !ok {
			return
		}

		var req revokeKeyRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Prefix == "" {
			badRequest(ctx, "prefix required")
			return
		}

		res := store.DB().Model(&db.APIKey{}).
			Where("organization_id = ? AND key_prefix = ?", org.ID, req.Prefix).
			Update("active", false)
		if res.Error != nil {
			internalError(ctx)
			return
		}
		if res.RowsAffected == 0 {
			notFound(ctx, "api key not found")
			return
		}

		log.Info("api key revoked", zap.String("org", org.Slug), zap.String("prefix", req.Prefix))
		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"revoked": req.Prefix})
	}
}

type agentRequest struct {
	AgentID string `json:"agent_id"`
}

// CreateAgent registers an agent and returns its signing secret once.
// Under the derived scheme the secret is computed from the master; under
// the stored scheme it is generated and persisted.
func CreateAgent(store *db.Store, cfg *config.Config, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		org, ok := orgFromPath(ctx, store)
		if !ok {
			return
		}

		var req agentRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.AgentID == "" {
			badRequest(ctx, "agent_id required")
			return
		}

		secret, stored, err := agentSecret(cfg, req.AgentID)
		if err != nil {
			internalError(ctx)
			return
		}

		agent := &db.Agent{
			OrganizationID: org.ID,
			AgentID:        req.AgentID,
			Active:         true,
			Secret:         stored,
		}
		if err := store.DB().Create(agent).Error; err != nil {
			badRequest(ctx, "agent_id already exists")
			return
		}

		log.Info("agent registered", zap.String("org", org.Slug), zap.String("agent_id", agent.AgentID))
		writeJSON(ctx, fasthttp.StatusCreated, map[string]interface{}{
			"agent_id": agent.AgentID,
			"secret":   secret,
		})
	}
}

// RotateAgentSecret reissues an agent's signing secret. In derived mode
// rotation requires rotating the master, so the stored scheme is the one
// that rotates per-agent.
func RotateAgentSecret(store *db.Store, cfg *config.Config, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		org, ok := orgFromPath(ctx, store)
		if !ok {
			return
		}

		var req agentRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.AgentID == "" {
			badRequest(ctx, "agent_id required")
			return
		}
		if cfg.AgentMasterSecret != "" {
			badRequest(ctx, "derived secrets rotate with the master secret")
			return
		}

		secret, err := auth.GenerateAgentSecret()
		if err != nil {
			internalError(ctx)
			return
		}

		res := store.DB().Model(&db.Agent{}).
			Where("organization_id = ? AND agent_id = ?", org.ID, req.AgentID).
			Update("secret", secret)
		if res.Error != nil {
			internalError(ctx)
			return
		}
		if res.RowsAffected == 0 {
			notFound(ctx, "agent not found")
			return
		}

		log.Info("agent secret rotated", zap.String("org", org.Slug), zap.String("agent_id", req.AgentID))
		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
			"agent_id": req.AgentID,
			"secret":   secret,
		})
	}
}

func DeactivateAgent(store *db.Store, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		org, ok := orgFromPath(ctx, store)
		if !ok {
			return
		}

		var req agentRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.AgentID == "" {
			badRequest(ctx, "agent_id required")
			return
		}

		res := store.DB().Model(&db.Agent{}).
			Where("organization_id = ? AND agent_id = ?", org.ID, req.AgentID).
			Update("active", false)
		if res.Error != nil {
			internalError(ctx)
			return
		}
		if res.RowsAffected == 0 {
			notFound(ctx, "agent not found")
			return
		}

		log.Info("agent deactivated", zap.String("org", org.Slug), zap.String("agent_id", req.AgentID))
		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"deactivated": req.AgentID})
	}
}

// ListAgents returns the organization's active agents, the read surface
// the org-settings layer consumes.
func ListAgents(store *db.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		org, ok := orgFromPath(ctx, store)
		if !ok {
			return
		}

		agents, err := store.ListActiveAgents(ctx, org.ID)
		if err != nil {
			internalError(ctx)
			return
		}

		list := make([]map[string]interface{}, 0, len(agents))
		for _, a := range agents {
			entry := map[string]interface{}{
				"agent_id": a.AgentID,
				"active":   a.Active,
			}
			if a.LastSeenAt != nil {
				entry["last_seen_at"] = a.LastSeenAt
			}
			list = append(list, entry)
		}
		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"agents": list})
	}
}

func agentSecret(cfg *config.Config, agentID string) (handedOut, stored string, err error) {
	if cfg.AgentMasterSecret != "" {
		return auth.DeriveAgentSecret([]byte(cfg.AgentMasterSecret), agentID), "", nil
	}
	secret, err := auth.GenerateAgentSecret()
	if err != nil {
		return "", "", err
	}
	return secret, secret, nil
}

func orgFromPath(ctx *fasthttp.RequestCtx, store *db.Store) (*db.Organization, bool) {
	slug, _ := ctx.UserValue("slug").(string)
	if slug == "" {
		badRequest(ctx, "organization slug required")
		return nil, false
	}
	org, err := store.FindOrganizationBySlug(ctx, slug)
	if err != nil {
		notFound(ctx, "organization not found")
		return nil, false
	}
	return org, true
}
