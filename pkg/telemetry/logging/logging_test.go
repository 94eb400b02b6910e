package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"ledgerline/policyforge/pkg/config"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"json debug", Config{Level: "debug", Format: "json"}, false},
		{"text", Config{Level: "WARN", Format: "text"}, false},
		{"console", Config{Format: "console"}, false},
		{"bad level", Config{Level: "loud"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Writer = &bytes.Buffer{}
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info written at warn level: %s", buf.String())
	}
	logger.Warn("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("warn not written: %q", buf.String())
	}
}

func TestNew_ConsoleDropsTime(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Format: "console", Writer: &buf})
	logger.Info("hello")
	if strings.Contains(buf.String(), "time=") {
		t.Errorf("console output has a timestamp: %q", buf.String())
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithOrganizationID(context.Background(), "org-7")
	ctx = WithPolicyID(ctx, "pol-1")
	ctx = WithJobID(ctx, "job-9")
	logger.InfoContext(ctx, "policy assembled", "clauses", 4)

	line := decode(t, &buf)
	for key, want := range map[string]any{
		"organization_id": "org-7",
		"policy_id":       "pol-1",
		"job_id":          "job-9",
		"clauses":         float64(4),
	} {
		if line[key] != want {
			t.Errorf("%s = %v, want %v", key, line[key], want)
		}
	}
	if _, ok := line["request_id"]; ok {
		t.Error("unset request_id was logged")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	if got := FromContext(context.Background(), base); got != base {
		t.Error("FromContext without fields should return the logger unchanged")
	}

	ctx := WithRequestID(WithActor(context.Background(), "alice"), "req-1")
	FromContext(ctx, base).Info("published")
	line := decode(t, &buf)
	if line["request_id"] != "req-1" || line["actor"] != "alice" {
		t.Errorf("line = %v", line)
	}
}

func TestFields_Order(t *testing.T) {
	ctx := WithActor(context.Background(), "alice")
	ctx = WithTemplateCode(ctx, "aml")
	ctx = WithRequestID(ctx, "req-1")
	attrs := Fields(ctx)
	var keys []string
	for _, a := range attrs {
		keys = append(keys, a.Key)
	}
	if got := strings.Join(keys, ","); got != "request_id,template_code,actor" {
		t.Errorf("Fields() keys = %s", got)
	}
	if Get(nil, PolicyIDKey) != "" {
		t.Error("Get(nil) should be empty")
	}
}

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor(nil)
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"email", "contact mlro@acme-bank.co.uk today", "contact m***@acme-bank.co.uk today"},
		{"bearer", "Authorization: Bearer abc.def-123", "Authorization: Bearer ***"},
		{"api key", "using sk-abcdef123456", "using sk-***"},
		{"ssn", "ssn 123-45-6789", "ssn ***-**-****"},
		{"phone", "call 555-123-4567", "call ***-***-****"},
		{"iban", "pay GB82 WEST 1234 5698 7654 32", "pay IBAN ***"},
		{"password", "password=hunter2 rest", "password=*** rest"},
		{"plain", "12 clauses included", "12 clauses included"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.input); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactor_CustomPatterns(t *testing.T) {
	r := NewRedactor([]config.RedactPattern{
		{Name: "firm_ref", Pattern: `FRN-\d{6}`, Replacement: "FRN-******"},
		{Name: "broken", Pattern: "(", Replacement: "x"},
	})
	names := r.Patterns()
	if names[len(names)-1] != "firm_ref" {
		t.Errorf("Patterns() = %v, want custom pattern last and broken one skipped", names)
	}
	if got := r.RedactString("firm FRN-123456"); got != "firm FRN-******" {
		t.Errorf("RedactString() = %q", got)
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := NewRedactor(nil)
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"sensitive key", slog.String("api_key", "abcdefgh"), "abcd***"},
		{"short secret", slog.String("token", "abc"), "***"},
		{"dsn", slog.String("postgres_dsn", "postgres://u:p@h/db"), "post***"},
		{"string value", slog.String("owner", "jo@example.com"), "j***@example.com"},
		{"error value", slog.Any("error", errors.New("bad reply from x@y.io")), "bad reply from x***@y.io"},
		{"int untouched", slog.Int("clauses", 3), "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactAttr(tt.attr).Value.String(); got != tt.want {
				t.Errorf("RedactAttr() = %q, want %q", got, tt.want)
			}
		})
	}

	group := r.RedactAttr(slog.Group("generator", slog.String("api_key", "secret-value"), slog.String("model", "m1")))
	attrs := group.Value.Group()
	if attrs[0].Value.String() != "secr***" || attrs[1].Value.String() != "m1" {
		t.Errorf("group = %v", attrs)
	}
}

func TestNew_RedactsWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{RedactPII: true, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.With("api_key", "sk-live-abcdef").Info("answer from dpo@firm.com", "phone", "555-123-4567")

	out := buf.String()
	for _, leaked := range []string{"sk-live-abcdef", "dpo@firm.com", "555-123-4567"} {
		if strings.Contains(out, leaked) {
			t.Errorf("log leaked %q: %s", leaked, out)
		}
	}

	buf.Reset()
	plain, _ := New(Config{Writer: &buf})
	plain.Info("answer from dpo@firm.com")
	if !strings.Contains(buf.String(), "dpo@firm.com") {
		t.Error("redaction applied without RedactPII")
	}
}

func TestFromConfig(t *testing.T) {
	c := FromConfig(config.LoggingConfig{Level: "debug", Format: "text", AddSource: true, RedactPII: true})
	if c.Level != "debug" || c.Format != "text" || !c.AddSource || !c.RedactPII {
		t.Errorf("FromConfig() = %+v", c)
	}
}
