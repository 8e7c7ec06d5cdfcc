package observability

import (
	"context"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit emits an audit.event record. Callers must never pass passwords or
// token strings as attrs.
func Audit(ctx context.Context, event, outcome, reason string, attrs ...any) {
	base := []any{
		"event_name", event,
		"outcome", outcome,
		"reason", reason,
	}
	if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
		base = append(base, "request_id", reqID)
	}
	base = append(base, attrs...)
	slog.InfoContext(ctx, "audit.event", base...)
}

func AuditRequest(r *http.Request, event, outcome, reason string, attrs ...any) {
	attrs = append([]any{"method", r.Method, "path", r.URL.Path}, attrs...)
	Audit(r.Context(), event, outcome, reason, attrs...)
}
