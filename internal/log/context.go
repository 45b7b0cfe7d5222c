package log

import (
	"context"
	"log/slog"
)

// ContextHandler decorates another handler, stamping every record with a
// request-scoped attribute pulled out of the context. Log lines emitted
// through the *Context logging methods pick up the request id without
// each call site carrying it.
type ContextHandler struct {
	inner   slog.Handler
	extract func(context.Context) string
}

// NewContextHandler wraps inner. extract returns the request id for a
// context, or "" when there is none.
func NewContextHandler(inner slog.Handler, extract func(context.Context) string) *ContextHandler {
	return &ContextHandler{inner: inner, extract: extract}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if h.extract != nil {
		// Call sites that already attach the id keep theirs.
		if id := h.extract(ctx); id != "" && !hasAttr(rec, FieldRequestID) {
			rec.AddAttrs(slog.String(FieldRequestID, id))
		}
	}
	return h.inner.Handle(ctx, rec)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), extract: h.extract}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name), extract: h.extract}
}

func hasAttr(rec slog.Record, key string) bool {
	found := false
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			found = true
			return false
		}
		return true
	})
	return found
}
