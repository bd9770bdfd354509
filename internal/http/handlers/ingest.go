package handlers

import (
	"strconv"

	"github.com/valyala/fasthttp"

	"logfort/internal/config"
	"logfort/internal/ingest"
)

// IngestHandler returns the handler for one format-specific ingest
// endpoint. All it does is lift the raw request into the pipeline; the
// coordinator decides the outcome.
func IngestHandler(co *ingest.Coordinator, cfg *config.Config, format string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		req := ingest.Request{
			Format:    format,
			Body:      ctx.PostBody(),
			APIKey:    apiKeyFromRequest(ctx),
			AgentID:   string(ctx.Request.Header.Peek("X-Agent-Id")),
			Timestamp: string(ctx.Request.Header.Peek("X-Timestamp")),
			Signature: string(ctx.Request.Header.Peek("X-Signature")),
		}

		result, ierr := co.Ingest(ctx, req)
		if ierr != nil {
			writeIngestError(ctx, cfg, ierr)
			return
		}

		// Accepted for processing: the write is durable but dashboard
		// visibility may lag.
		ctx.SetStatusCode(fasthttp.StatusAccepted)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"status":"accepted","created":` + strconv.Itoa(result.Created) +
			`,"skipped":` + strconv.Itoa(result.Skipped) + `}`)
	}
}

// apiKeyFromRequest accepts X-API-Key (forwarder scripts) with
// Authorization: Bearer as the fallback.
func apiKeyFromRequest(ctx *fasthttp.RequestCtx) string {
	if v := ctx.Request.Header.Peek("X-API-Key"); len(v) > 0 {
		return string(v)
	}
	auth := ctx.Request.Header.Peek("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && string(auth[:len(prefix)]) == prefix {
		return string(auth[len(prefix):])
	}
	return ""
}

func writeIngestError(ctx *fasthttp.RequestCtx, cfg *config.Config, ierr *ingest.Error) {
	status := ierr.Status()
	if status == fasthttp.StatusTooManyRequests {
		retry := int(cfg.RateLimitWindow.Seconds())
		ctx.Response.Header.Set("Retry-After", strconv.Itoa(retry))
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"` + ierr.ClientMessage() + `"}`)
}
