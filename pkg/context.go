package pkg

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type contextKey int

const (
	ContextRequestIdKey contextKey = iota
	ContextLoggerKey
)

// LoggerFromContext returns the request-scoped logger installed by the
// logging middleware, falling back to the standard logger when none is set
// (direct service calls, tests).
func LoggerFromContext(ctx context.Context) log.FieldLogger {
	if logger, ok := ctx.Value(ContextLoggerKey).(log.FieldLogger); ok {
		return logger
	}
	return log.StandardLogger()
}
