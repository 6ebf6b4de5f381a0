package middleware

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/dockerplatform/registry-gate/pkg"
)

// WithLogger installs a request-scoped logger carrying the request id (when
// present) into the request context. Handlers and services retrieve it via
// pkg.LoggerFromContext.
func WithLogger(next http.Handler, logger log.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		scoped := logger
		if requestId, ok := ctx.Value(pkg.ContextRequestIdKey).(string); ok {
			scoped = logger.WithField("request_id", requestId)
		}

		ctx = context.WithValue(ctx, pkg.ContextLoggerKey, scoped)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
