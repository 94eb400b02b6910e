package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"ledgerline/policyforge/pkg/config"
)

// Redactor masks personal data and secrets in log values, matching both
// value patterns and attribute key names.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternBearerToken = "bearer_token"
	PatternAPIKey      = "api_key"
	PatternEmail       = "email"
	PatternIBAN        = "iban"
	PatternSSN         = "ssn"
	PatternPhone       = "phone"
	PatternPassword    = "password"
)

// Order matters: bearer tokens before generic keys, IBANs before phone
// numbers.
var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternAPIKey, `\b(sk|pk|key)[-_][a-zA-Z0-9]{8,}\b`, "$1-***"},
	{PatternEmail, `\b([a-zA-Z0-9])[a-zA-Z0-9._%+-]*@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})\b`, "$1***@$2"},
	{PatternIBAN, `\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){3,7}(?:\s?[A-Z0-9]{1,3})?\b`, "IBAN ***"},
	{PatternSSN, `\b\d{3}-\d{2}-\d{4}\b`, "***-**-****"},
	{PatternPhone, `(?:\+\d{1,3}[-.\s])?\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`, "***-***-****"},
	{PatternPassword, `(?i)(password|passwd|pwd)\s*[:=]\s*\S+`, "$1=***"},
}

// sensitiveKeys are attribute key fragments whose values are masked whole.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "private_key", "passphrase", "dsn",
}

// NewRedactor creates a Redactor with the built-in patterns followed by the
// custom ones. Custom patterns that do not compile are skipped; config
// validation reports them.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
	for _, p := range custom {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, redactPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}
	return r
}

// Patterns returns the pattern names in application order.
func (r *Redactor) Patterns() []string {
	names := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		names[i] = p.name
	}
	return names
}

// RedactString applies every pattern to s.
func (r *Redactor) RedactString(s string) string {
	if s == "" {
		return s
	}
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// RedactAttr masks a as a whole when its key is sensitive, otherwise
// redacts string values and recurses into groups.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, maskValue(a.Value))
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = r.RedactAttr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func maskValue(v slog.Value) string {
	s := v.Resolve().String()
	if len(s) <= 4 {
		return "***"
	}
	return s[:4] + "***"
}

// RedactingHandler applies a Redactor to the message and every attribute
// before passing records on.
type RedactingHandler struct {
	next     slog.Handler
	redactor *Redactor
}

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler, r *Redactor) *RedactingHandler {
	return &RedactingHandler{next: next, redactor: r}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.redactor.RedactString(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactor.RedactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactor.RedactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted), redactor: h.redactor}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}
