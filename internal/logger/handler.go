// Package logger enriches slog records with request-scoped attributes.
package logger

import (
	"context"
	"log/slog"

	"vidsage/internal/middleware"
)

// ContextHandler decorates another slog.Handler so every record emitted
// through a *Context logging call carries the correlation id stored on its
// context. Records logged without one pass through untouched.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}
