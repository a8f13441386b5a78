// Package middleware carries a per-request correlation id from the HTTP
// boundary into handler contexts, responses and log records.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type key int

// CorrelationKey is the context key the request correlation id is stored
// under.
const CorrelationKey key = 0

const correlationHeader = "X-Correlation-ID"

// CorrelationID tags every request with an id, reusing the caller's
// X-Correlation-ID header when present and minting a uuid otherwise. The id
// is echoed on the response and attached to the request/response log lines.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = uuid.New().String()
		}

		ctx := WithCorrelationID(r.Context(), id)
		w.Header().Set(correlationHeader, id)

		slog.Info("request received", "method", r.Method, "path", r.URL.Path, "correlation_id", id) // #nosec G706 -- r.URL.Path is parsed by Go's net/http
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		slog.Info("request completed", "method", r.Method, "path", r.URL.Path, "correlation_id", id, "duration", time.Since(start)) // #nosec G706
	})
}

// GetCorrelationID reads the id back out of ctx. Contexts that never passed
// through CorrelationID or WithCorrelationID report "unknown".
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationKey).(string); ok {
		return id
	}
	return "unknown"
}

// WithCorrelationID stores an id directly on ctx; the worker pool and tests
// use this where no HTTP request exists.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationKey, id)
}
