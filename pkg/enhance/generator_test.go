package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestDecodeReply(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"flat text", `{"text": "Rewritten clause."}`, "Rewritten clause.", false},
		{"content blocks", `{"content": [{"type": "text", "text": "Part one. "}, {"type": "text", "text": "Part two."}]}`, "Part one. Part two.", false},
		{"trailing comma repaired", `{"text": "Repaired.",}`, "Repaired.", false},
		{"single quotes repaired", `{'text': 'Quoted.'}`, "Quoted.", false},
		{"empty text", `{"text": "   "}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeReply([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeReply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("decodeReply() = %q, want %q", got, tt.want)
			}
			var pe *ParseError
			if err != nil && !errors.As(err, &pe) {
				t.Errorf("error %T is not a *ParseError", err)
			}
		})
	}
}

func newTestGenerator(url string, retries int) *HTTPGenerator {
	g := NewHTTPGenerator(GeneratorConfig{Endpoint: url, APIKey: "secret", Model: "m1", Retries: retries, Timeout: 5 * time.Second}, nil)
	g.backoff = func(int) time.Duration { return time.Millisecond }
	return g
}

func TestHTTPGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "m1" || len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "Clause title: EDD") {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"text": "Enhanced due diligence applies."}`))
	}))
	defer srv.Close()

	got, err := newTestGenerator(srv.URL, 0).Generate(context.Background(), Request{Code: "edd", Title: "EDD", Body: "Do EDD."})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Enhanced due diligence applies." {
		t.Errorf("Generate() = %q", got)
	}
}

func TestHTTPGenerator_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("traceparent")
		w.Write([]byte(`{"text": "ok"}`))
	}))
	defer srv.Close()

	if _, err := newTestGenerator(srv.URL, 0).Generate(ctx, Request{Code: "edd", Title: "EDD", Body: "Do EDD."}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if want := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"; got != want {
		t.Errorf("traceparent = %q, want %q", got, want)
	}
}

func TestHTTPGenerator_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"text": "ok"}`))
	}))
	defer srv.Close()

	got, err := newTestGenerator(srv.URL, 2).Generate(context.Background(), Request{Code: "c"})
	if err != nil || got != "ok" {
		t.Fatalf("Generate() = %q, %v", got, err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestHTTPGenerator_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestGenerator(srv.URL, 3).Generate(context.Background(), Request{Code: "c"})
	var ge *GeneratorError
	if !errors.As(err, &ge) || ge.StatusCode != http.StatusBadRequest {
		t.Fatalf("Generate() error = %v, want 400 GeneratorError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestHTTPGenerator_RetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestGenerator(srv.URL, 1).Generate(context.Background(), Request{Code: "c"})
	var ge *GeneratorError
	if !errors.As(err, &ge) || ge.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Generate() error = %v, want wrapped 429", err)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Customers are screened monthly.", "Customers are screened monthly."},
		{"markup stripped", "<p>Screen <b>all</b> customers.</p>", "Screen all customers."},
		{"script removed", "Text<script>alert(1)</script> here", "Text here"},
		{"entities decoded then escaped", "Risk &amp; compliance", "Risk &amp; compliance"},
		{"braces neutralised", "Use {{ firm_name }}", "Use &#123;&#123; firm\\_name &#125;&#125;"},
		{"blank lines collapsed", "  One  \n\n\n  Two  \n\n", "One\n\nTwo"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
