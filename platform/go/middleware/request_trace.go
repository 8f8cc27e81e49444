// Package middleware provides the HTTP middleware shared by the API server.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformlogging "github.com/hostgrid-io/tenant-provisioner/platform/go/logging"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/requesttrace"
)

// RequestTrace populates the context with request-scoped AuditInfo so the
// service and repositories can stamp audit fields. Every request on this
// surface is an operator action; there is no end-user authentication.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)
		audit := requesttrace.Operator(requestID)

		ctx := requesttrace.IntoContext(r.Context(), audit)
		if logger := platformlogging.FromRequest(r, nil); logger != nil {
			logger = logger.With(zap.String("actor_kind", string(audit.ActorKind)))
			ctx = platformlogging.WithLogger(ctx, logger)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
