package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestID returns the correlation id assigned by RequestLogger, or "".
// The id only appears in log lines; it is never added to forwarded headers.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestLogger assigns each request a correlation id and logs its outcome
// at debug level.
func RequestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := newStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, r)

		logger.LogAttrs(r.Context(), slog.LevelDebug, "Request served",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
