package xhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestShouldSkip(t *testing.T) {
	skipped := []string{
		"/health",
		"/metrics",
		"/api/v1/health",
		"/api/v1/metrics",
	}
	for _, p := range skipped {
		assert.True(t, shouldSkip(p), "expected %s to be skipped", p)
	}

	logged := []string{
		"/",
		"/api/v1/cash",
		"/api/v1/purchases",
		"/api/v1/healthcheck",
	}
	for _, p := range logged {
		assert.False(t, shouldSkip(p), "expected %s to be logged", p)
	}
}

func TestRequestLoggerMiddleware_CallsNext(t *testing.T) {
	for _, path := range []string{"/api/v1/health", "/api/v1/cash"} {
		called := false
		handler := RequestLoggerMiddleware(func(ctx *fasthttp.RequestCtx) {
			called = true
			ctx.SetStatusCode(fasthttp.StatusOK)
		})

		ctx := &fasthttp.RequestCtx{}
		ctx.Request.SetRequestURI(path)
		handler(ctx)

		assert.True(t, called, "handler must run for %s", path)
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	}
}
