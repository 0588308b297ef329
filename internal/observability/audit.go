package observability

import (
	"context"
	"log/slog"
)

// Audit emits a structured security-lifecycle event (login, logout,
// biometric enable, purchase). These land in the normal log stream but carry
// a stable "event" attribute so they can be filtered out downstream.
func Audit(ctx context.Context, event string, attrs ...any) {
	base := []any{"event", event}
	base = append(base, attrs...)
	slog.InfoContext(ctx, "audit", base...)
}
