package middleware

import (
	"crypto/subtle"

	"github.com/valyala/fasthttp"

	"logfort/internal/config"
)

// AdminAuth returns middleware that gates the management API behind the
// configured admin token. When no token is configured the surface is
// hidden entirely rather than left open.
func AdminAuth(cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if cfg.AdminToken == "" {
				ctx.SetStatusCode(fasthttp.StatusNotFound)
				return
			}

			presented := ctx.Request.Header.Peek("X-Admin-Token")
			if subtle.ConstantTimeCompare(presented, []byte(cfg.AdminToken)) != 1 {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetContentType("application/json")
				ctx.SetBodyString(`{"error":"authentication failed"}`)
				return
			}

			next(ctx)
		}
	}
}
