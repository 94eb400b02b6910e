package logging

import (
	"context"
	"log/slog"
)

type contextKey string

// Context keys for common log fields. The key text is the attribute name.
const (
	RequestIDKey      contextKey = "request_id"
	OrganizationIDKey contextKey = "organization_id"
	PolicyIDKey       contextKey = "policy_id"
	TemplateCodeKey   contextKey = "template_code"
	JobIDKey          contextKey = "job_id"
	ActorKey          contextKey = "actor"
)

// fieldKeys is the order fields are emitted in.
var fieldKeys = []contextKey{
	RequestIDKey,
	OrganizationIDKey,
	PolicyIDKey,
	TemplateCodeKey,
	JobIDKey,
	ActorKey,
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithOrganizationID adds the tenant to the context.
func WithOrganizationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, OrganizationIDKey, id)
}

// WithPolicyID adds a policy ID to the context.
func WithPolicyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, PolicyIDKey, id)
}

// WithTemplateCode adds a template code to the context.
func WithTemplateCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, TemplateCodeKey, code)
}

// WithJobID adds an enhancement job ID to the context.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, JobIDKey, id)
}

// WithActor adds the acting user to the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// Get returns the string stored under key, or "".
func Get(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// Fields returns the context fields as attributes, in a fixed order.
func Fields(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range fieldKeys {
		if v := Get(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}

// FromContext returns logger with the context fields attached. A nil logger
// means slog.Default().
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := Fields(ctx)
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return logger.With(args...)
}

// contextHandler adds context fields to records logged with a context, so
// logger.InfoContext(ctx, ...) carries them without an explicit With.
type contextHandler struct {
	slog.Handler
}

func newContextHandler(h slog.Handler) *contextHandler {
	return &contextHandler{Handler: h}
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := Fields(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
