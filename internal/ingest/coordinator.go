package ingest

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"go.uber.org/zap"

	"logfort/internal/auth"
	"logfort/internal/config"
	"logfort/internal/db"
	"logfort/internal/metrics"
	"logfort/internal/parser"
	"logfort/internal/ratelimit"
)

// CredentialResolver maps a presented credential pair to a tenant.
// Satisfied by *auth.Resolver.
type CredentialResolver interface {
	Resolve(ctx context.Context, rawKey, agentID string) (*auth.Principal, error)
}

// EventStore is the persistence surface the coordinator writes through.
// Satisfied by *db.Store.
type EventStore interface {
	CreateEvents(ctx context.Context, events []db.SecurityEvent) (int, error)
	CreateSnapshot(ctx context.Context, snap *db.InventorySnapshot) (int, error)
	TouchAPIKey(ctx context.Context, key *db.APIKey) error
	TouchAgent(ctx context.Context, agent *db.Agent) error
}

// Request is one raw ingest submission: the untouched body bytes plus
// the credential material from the headers. It lives only for the
// duration of the request.
type Request struct {
	Format    string
	Body      []byte
	APIKey    string
	AgentID   string
	Timestamp string
	Signature string
}

// Result is a successful outcome: the request was accepted for
// processing. Created counts rows actually written (duplicates collapse
// at the storage layer); Skipped counts unparseable lines within an
// otherwise valid batch.
type Result struct {
	Created int
	Skipped int
}

// dummySecret is compared against when no secret exists for the claimed
// agent id, so the failure path has the same shape for known and unknown
// agents. It is drawn from crypto/rand per process: a predictable value
// here would let callers mint signatures that verify for any unknown id
// and probe which ids exist.
var dummySecret = func() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("ingest: seeding dummy secret: " + err.Error())
	}
	return b
}()

// Coordinator runs the ingest pipeline per request, strictly ordered and
// short-circuiting on the first failure:
//
//	CheckSize -> VerifySkew -> VerifySignature -> ResolveCredential ->
//	CheckRate -> Parse -> Persist -> Ack
//
// The size check precedes signature verification to bound HMAC cost, and
// skew/signature precede credential resolution so unauthenticated
// callers learn nothing about which principals exist. No stage before
// Persist has side effects.
type Coordinator struct {
	cfg      *config.Config
	log      *zap.Logger
	skew     auth.SkewGuard
	secrets  auth.SecretProvider
	resolver CredentialResolver
	limiter  ratelimit.Limiter
	parsers  *parser.Registry
	store    EventStore
}

func NewCoordinator(
	cfg *config.Config,
	log *zap.Logger,
	secrets auth.SecretProvider,
	resolver CredentialResolver,
	limiter ratelimit.Limiter,
	parsers *parser.Registry,
	store EventStore,
) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		log:      log,
		skew:     auth.SkewGuard{Window: cfg.TimestampSkew},
		secrets:  secrets,
		resolver: resolver,
		limiter:  limiter,
		parsers:  parsers,
		store:    store,
	}
}

// Ingest runs the pipeline for one request.
func (c *Coordinator) Ingest(ctx context.Context, req Request) (*Result, *Error) {
	start := time.Now()

	// CheckSize.
	if len(req.Body) == 0 {
		return nil, c.reject(fail(KindEmptyPayload, nil), req)
	}
	if len(req.Body) > c.cfg.MaxBodyBytes {
		return nil, c.reject(fail(KindPayloadTooLarge, nil), req)
	}
	if req.APIKey == "" || req.AgentID == "" || req.Timestamp == "" || req.Signature == "" {
		return nil, c.reject(fail(KindMalformedPayload, errors.New("missing authentication headers")), req)
	}

	// VerifySkew.
	if err := c.skew.Check(req.Timestamp); err != nil {
		if errors.Is(err, auth.ErrInvalidTimestamp) {
			return nil, c.reject(fail(KindMalformedPayload, err), req)
		}
		return nil, c.reject(fail(KindTimestampOutOfWindow, err), req)
	}

	// VerifySignature, over the exact raw bytes. When the agent id is
	// unknown the comparison still runs, against a dummy secret, so the
	// response does not reveal whether the id exists.
	secret, known := c.secrets.SecretFor(ctx, req.AgentID)
	if !known {
		secret = dummySecret
	}
	if err := auth.VerifySignature(secret, req.Body, req.Signature); err != nil || !known {
		kind := KindInvalidSignature
		if !known {
			// An unknown id never proceeds past this stage, even in the
			// astronomically unlikely case the dummy comparison passed.
			kind = KindPrincipalNotFound
		}
		c.reject(fail(kind, err), req)
		// Uniform failure shape before identity is confirmed.
		return nil, fail(KindInvalidSignature, err)
	}

	// ResolveCredential.
	principal, err := c.resolver.Resolve(ctx, req.APIKey, req.AgentID)
	if err != nil {
		return nil, c.reject(fail(resolutionKind(err), err), req)
	}

	// CheckRate. Runs before any parse work so a limited principal
	// costs O(1) per rejected request.
	allowed, err := c.limiter.Allow(ctx, "key:"+principal.Key.KeyPrefix, principal.Key.RateLimit)
	if err != nil {
		return nil, c.reject(fail(KindInternal, err), req)
	}
	if !allowed {
		return nil, c.reject(fail(KindRateLimited, nil), req)
	}

	// Parse.
	out, err := c.parsers.Parse(req.Format, req.Body)
	if err != nil {
		return nil, c.reject(fail(KindMalformedPayload, err), req)
	}
	if !sourceAllowed(principal.Key, out.Source) {
		return nil, c.reject(fail(KindSourceNotAllowed, nil), req)
	}

	// Persist, retrying once on failure.
	result, perr := c.persist(ctx, principal, out)
	if perr != nil {
		result, perr = c.persist(ctx, principal, out)
	}
	if perr != nil {
		return nil, c.reject(fail(KindPersistenceFailure, perr), req)
	}
	result.Skipped = out.Skipped

	c.touch(ctx, principal)
	c.record(principal, out, result)
	metrics.IngestDuration.WithLabelValues(out.Source).Observe(time.Since(start).Seconds())

	return result, nil
}

func (c *Coordinator) persist(ctx context.Context, p *auth.Principal, out *parser.Output) (*Result, error) {
	if out.Snapshot != nil {
		snap := c.buildSnapshot(p, out.Snapshot)
		created, err := c.store.CreateSnapshot(ctx, snap)
		if err != nil {
			return nil, err
		}
		return &Result{Created: created}, nil
	}

	events := make([]db.SecurityEvent, 0, len(out.Events))
	for _, ev := range out.Events {
		events = append(events, c.buildEvent(p, ev))
	}
	created, err := c.store.CreateEvents(ctx, events)
	if err != nil {
		return nil, err
	}
	return &Result{Created: created}, nil
}

// buildEvent stamps tenancy, retention and the idempotency hash onto a
// parsed event. The resolver is the only source of the organization id.
func (c *Coordinator) buildEvent(p *auth.Principal, ev parser.Event) db.SecurityEvent {
	expires := ev.Timestamp.Add(time.Duration(c.eventRetentionDays(p)) * 24 * time.Hour)

	return db.SecurityEvent{
		ExpiresAt:      &expires,
		OrganizationID: p.Org.ID,
		AgentID:        p.Agent.AgentID,
		SourceType:     ev.SourceType,
		SourceHost:     ev.SourceHost,
		Timestamp:      ev.Timestamp,
		SrcIP:          ev.SrcIP,
		SrcPort:        ev.SrcPort,
		Method:         ev.Method,
		Path:           ev.Path,
		StatusCode:     ev.StatusCode,
		BytesSent:      ev.BytesSent,
		UserAgent:      ev.UserAgent,
		Action:         ev.Action,
		Severity:       ev.Severity,
		Reason:         ev.Reason,
		RawLog:         ev.RawLog,
		Metadata:       ev.Metadata,
		DedupeHash:     db.DedupeHash(p.Org.ID, p.Agent.AgentID, ev.Timestamp, ev.RawLog),
	}
}

func (c *Coordinator) buildSnapshot(p *auth.Principal, snap *parser.Snapshot) *db.InventorySnapshot {
	expires := db.SnapshotCutoff(time.Now(), c.cfg.InventoryRetentionDays)

	return &db.InventorySnapshot{
		ExpiresAt:      &expires,
		OrganizationID: p.Org.ID,
		AgentID:        p.Agent.AgentID,
		ServerName:     snap.ServerName,
		CollectedAt:    snap.CollectedAt,
		Payload:        snap.Payload,
		RawBytes:       snap.RawBytes,
		DedupeHash:     db.DedupeHash(p.Org.ID, p.Agent.AgentID, snap.CollectedAt, snap.BodyHash),
	}
}

func (c *Coordinator) eventRetentionDays(p *auth.Principal) int {
	days := p.Org.RetentionDays
	if days <= 0 || days > c.cfg.EventRetentionDays {
		days = c.cfg.EventRetentionDays
	}
	return days
}

// touch records credential usage. Failures here never fail the request;
// the event is already durable.
func (c *Coordinator) touch(ctx context.Context, p *auth.Principal) {
	if err := c.store.TouchAPIKey(ctx, p.Key); err != nil {
		c.log.Debug("api key touch failed", zap.Error(err))
	}
	if p.Agent != nil {
		if err := c.store.TouchAgent(ctx, p.Agent); err != nil {
			c.log.Debug("agent touch failed", zap.Error(err))
		}
	}
}

func (c *Coordinator) record(p *auth.Principal, out *parser.Output, res *Result) {
	metrics.EventsIngested.WithLabelValues(p.Org.Slug, out.Source).Add(float64(res.Created))
	if out.Skipped > 0 {
		metrics.LinesSkipped.WithLabelValues(p.Org.Slug, out.Source).Add(float64(out.Skipped))
	}
}

// reject counts and logs the failure with its precise kind. What reaches
// the client is decided by Error.Status/ClientMessage, not here.
func (c *Coordinator) reject(e *Error, req Request) *Error {
	metrics.RequestsRejected.WithLabelValues(string(e.Kind)).Inc()

	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("format", req.Format),
		zap.String("agent_id", req.AgentID),
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	switch e.Kind {
	case KindPrincipalNotFound, KindPrincipalInactive, KindCrossTenantDenied, KindSourceNotAllowed:
		c.log.Warn("ingest request denied", fields...)
	case KindPersistenceFailure, KindInternal:
		c.log.Error("ingest request failed", fields...)
	default:
		c.log.Debug("ingest request rejected", fields...)
	}
	return e
}

func resolutionKind(err error) Kind {
	switch {
	case errors.Is(err, auth.ErrPrincipalNotFound):
		return KindPrincipalNotFound
	case errors.Is(err, auth.ErrPrincipalInactive):
		return KindPrincipalInactive
	case errors.Is(err, auth.ErrCrossTenantDenied):
		return KindCrossTenantDenied
	default:
		return KindInternal
	}
}

func sourceAllowed(key *db.APIKey, source string) bool {
	if source == parser.SourceInventory || len(key.AllowedSources) == 0 {
		return true
	}
	for _, allowed := range key.AllowedSources {
		if allowed == source {
			return true
		}
	}
	return false
}
