package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/rest"
)

type userIdCtxKey struct{}

func (c *controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxlogger.AppendCtx(r.Context(), slog.String("request_id", uuid.NewString()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
		)
		next.ServeHTTP(w, r)
	})
}

// identityMw resolves the caller's identity. Session handling lives outside
// this service; the resolved user id arrives in the X-User-Id header set by
// the auth edge.
func (c *controller) identityMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId := r.Header.Get("X-User-Id")
		if userId == "" {
			rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "unauthenticated"})
			return
		}

		ctx := context.WithValue(r.Context(), userIdCtxKey{}, userId)
		ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", userId))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIdFromCtx(ctx context.Context) string {
	userId, _ := ctx.Value(userIdCtxKey{}).(string)
	return userId
}
