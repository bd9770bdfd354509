package main

import (
	"log"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"logfort/internal/auth"
	"logfort/internal/config"
	"logfort/internal/db"
	"logfort/internal/http/handlers"
	appmw "logfort/internal/http/middleware"
	"logfort/internal/ingest"
	"logfort/internal/logging"
	"logfort/internal/parser"
	"logfort/internal/ratelimit"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	store := db.NewStore(gormDB)

	db.StartRetentionWorker(gormDB, logger)

	var secrets auth.SecretProvider
	if cfg.AgentMasterSecret != "" {
		secrets = auth.DerivedSecretProvider{Master: []byte(cfg.AgentMasterSecret)}
		logger.Info("agent secrets: derived from master secret")
	} else {
		secrets = auth.StoredSecretProvider{Store: store}
		logger.Info("agent secrets: stored per agent")
	}

	resolver := &auth.Resolver{Store: store}

	limiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL, cfg.RateLimit, cfg.RateLimitWindow)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer limiter.Close()

	registry := parser.NewRegistry()
	coordinator := ingest.NewCoordinator(cfg, logger, secrets, resolver, limiter, registry, store)

	r := router.New()

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	r.POST("/v1/ingest/haproxy", handlers.IngestHandler(coordinator, cfg, parser.SourceHAProxy))
	r.POST("/v1/ingest/nginx", handlers.IngestHandler(coordinator, cfg, parser.SourceNginx))
	r.POST("/v1/ingest/crowdsec", handlers.IngestHandler(coordinator, cfg, parser.SourceCrowdSec))
	r.POST("/v1/ingest/fail2ban", handlers.IngestHandler(coordinator, cfg, parser.SourceFail2ban))
	r.POST("/v1/ingest/inventory", handlers.IngestHandler(coordinator, cfg, parser.SourceInventory))
	r.POST("/v1/ingest/generic", handlers.IngestHandler(coordinator, cfg, parser.SourceGeneric))

	r.GET("/v1/metrics", handlers.OrgMetricsHandler(resolver))

	admin := appmw.AdminAuth(cfg)
	r.POST("/admin/orgs", admin(handlers.CreateOrganization(store, logger)))
	r.POST("/admin/orgs/{slug}/apikeys", admin(handlers.CreateAPIKey(store, logger)))
	r.POST("/admin/orgs/{slug}/apikeys/revoke", admin(handlers.RevokeAPIKey(store, logger)))
	r.POST("/admin/orgs/{slug}/agents", admin(handlers.CreateAgent(store, cfg, logger)))
	r.POST("/admin/orgs/{slug}/agents/rotate", admin(handlers.RotateAgentSecret(store, cfg, logger)))
	r.POST("/admin/orgs/{slug}/agents/deactivate", admin(handlers.DeactivateAgent(store, logger)))
	r.GET("/admin/orgs/{slug}/agents", admin(handlers.ListAgents(store)))

	logger.Info("logfort listening", zap.String("addr", cfg.ListenAddr))
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, r.Handler); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
