package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	"logfort/internal/config"
	"logfort/internal/ingest"
)

func TestAPIKeyFromRequest(t *testing.T) {
	t.Run("x-api-key header", func(t *testing.T) {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.Set("X-API-Key", "frc_abc")
		assert.Equal(t, "frc_abc", apiKeyFromRequest(ctx))
	})

	t.Run("bearer fallback", func(t *testing.T) {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.Set("Authorization", "Bearer frc_def")
		assert.Equal(t, "frc_def", apiKeyFromRequest(ctx))
	})

	t.Run("x-api-key wins over bearer", func(t *testing.T) {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.Set("X-API-Key", "frc_abc")
		ctx.Request.Header.Set("Authorization", "Bearer frc_def")
		assert.Equal(t, "frc_abc", apiKeyFromRequest(ctx))
	})

	t.Run("missing", func(t *testing.T) {
		ctx := &fasthttp.RequestCtx{}
		assert.Equal(t, "", apiKeyFromRequest(ctx))
	})

	t.Run("malformed authorization", func(t *testing.T) {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.Set("Authorization", "Basic dXNlcg==")
		assert.Equal(t, "", apiKeyFromRequest(ctx))
	})
}

func TestWriteIngestError(t *testing.T) {
	cfg := &config.Config{RateLimitWindow: time.Hour}

	t.Run("rate limited carries retry-after", func(t *testing.T) {
		ctx := &fasthttp.RequestCtx{}
		writeIngestError(ctx, cfg, &ingest.Error{Kind: ingest.KindRateLimited})

		assert.Equal(t, fasthttp.StatusTooManyRequests, ctx.Response.StatusCode())
		assert.Equal(t, "3600", string(ctx.Response.Header.Peek("Retry-After")))
		assert.JSONEq(t, `{"error":"rate limited"}`, string(ctx.Response.Body()))
	})

	t.Run("auth failures are uniform", func(t *testing.T) {
		for _, kind := range []ingest.Kind{ingest.KindInvalidSignature, ingest.KindTimestampOutOfWindow} {
			ctx := &fasthttp.RequestCtx{}
			writeIngestError(ctx, cfg, &ingest.Error{Kind: kind})

			assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
			assert.JSONEq(t, `{"error":"authentication failed"}`, string(ctx.Response.Body()))
			assert.Empty(t, ctx.Response.Header.Peek("Retry-After"))
		}
	})
}
