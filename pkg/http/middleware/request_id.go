package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/dockerplatform/registry-gate/pkg"
)

// WithRequestId propagates the inbound X-Request-Id header, or generates a
// fresh id, into the request context and the response.
func WithRequestId(next http.Handler, nextRequestId func() string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get("X-Request-Id")
		if requestId == "" {
			requestId = nextRequestId()
		}

		ctx := r.Context()
		if requestId != "" {
			ctx = context.WithValue(ctx, pkg.ContextRequestIdKey, requestId)
		}

		w.Header().Set("X-Request-Id", requestId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func DefaultRequestIdProvider() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.WithError(err).Error("Unable to generate request id")
		return ""
	}
	return hex.EncodeToString(buf)
}
