package security

import (
	"context"
	"log/slog"
	"strings"
)

// sensitiveKeys are attribute keys whose values are dropped outright,
// whatever they contain.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"bearer_token":  {},
	"authorization": {},
}

// RedactingHandler is a slog.Handler that scrubs secrets from records before
// they reach the wrapped handler. Store errors often embed connection URLs,
// so error values are scrubbed like strings.
type RedactingHandler struct {
	next slog.Handler
	r    *Redactor
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps next with r.
func NewRedactingHandler(next slog.Handler, r *Redactor) *RedactingHandler {
	return &RedactingHandler{next: next, r: r}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, h.r.Redact(rec.Message), rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.scrub(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		scrubbed = append(scrubbed, h.scrub(a))
	}
	return &RedactingHandler{next: h.next.WithAttrs(scrubbed), r: h.r}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), r: h.r}
}

func (h *RedactingHandler) scrub(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok && v.Kind() != slog.KindGroup {
		return slog.String(a.Key, RedactPlaceholder)
	}

	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.r.Redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		scrubbed := make([]slog.Attr, 0, len(group))
		for _, ga := range group {
			scrubbed = append(scrubbed, h.scrub(ga))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(scrubbed...)}
	case slog.KindAny:
		s := v.String()
		if red := h.r.Redact(s); red != s {
			return slog.String(a.Key, red)
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
