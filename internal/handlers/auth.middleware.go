package handlers

import (
	"context"
	"strings"

	"github.com/openhims/finance-gateway/internal/model"
	xhttp "github.com/openhims/finance-gateway/pkg/http"
)

const sessionKey = "session"

// UserFinder resolves an API key to the user it belongs to.
type UserFinder interface {
	FindByAPIKey(ctx context.Context, key string) (*model.User, error)
}

// AuthMiddleware authenticates requests by the X-API-Key header and
// attaches the resulting session to the request. Health and metrics
// endpoints stay open for probes.
func AuthMiddleware(users UserFinder) xhttp.MiddlewareFunc {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		return func(ctx *xhttp.RequestCtx) {
			path := string(ctx.Path())
			if strings.HasSuffix(path, "/health") || strings.HasSuffix(path, "/metrics") {
				next(ctx)
				return
			}

			key := string(ctx.Request.Header.Peek("X-API-Key"))
			if key == "" {
				writeError(ctx, 401, "missing API key")
				return
			}

			user, err := users.FindByAPIKey(ctx, key)
			if err != nil {
				writeError(ctx, 401, "invalid API key")
				return
			}

			ctx.SetUserValue(sessionKey, user.Session())
			next(ctx)
		}
	}
}

func sessionFrom(ctx *xhttp.RequestCtx) *model.Session {
	if s, ok := ctx.UserValue(sessionKey).(*model.Session); ok {
		return s
	}
	return nil
}
