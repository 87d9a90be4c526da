package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// spanHandler decorates records with the ids of whatever span rides on the
// context, so a slow /expenses request can be joined between logs and traces.
// Records without an active span pass through untouched.
type spanHandler struct {
	next slog.Handler
}

func newSpanHandler(next slog.Handler) *spanHandler {
	return &spanHandler{next: next}
}

func (h *spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *spanHandler) Handle(ctx context.Context, rec slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		rec.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	return h.next.Handle(ctx, rec)
}

func (h *spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newSpanHandler(h.next.WithAttrs(attrs))
}

func (h *spanHandler) WithGroup(name string) slog.Handler {
	return newSpanHandler(h.next.WithGroup(name))
}
