package handlers

import (
	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
)

func writeJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		internalError(ctx)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(payload)
}

func badRequest(ctx *fasthttp.RequestCtx, msg string) {
	writeJSON(ctx, fasthttp.StatusBadRequest, map[string]interface{}{"error": msg})
}

func notFound(ctx *fasthttp.RequestCtx, msg string) {
	writeJSON(ctx, fasthttp.StatusNotFound, map[string]interface{}{"error": msg})
}

func internalError(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"internal error"}`)
}
