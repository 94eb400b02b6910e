package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Request is one clause to rewrite.
type Request struct {
	PolicyID string
	Code     string
	Title    string
	Body     string
}

// Generator rewrites clause prose. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// GeneratorError is a non-success reply from the text generation service.
type GeneratorError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *GeneratorError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("generator error (status %d, retry after %s): %s", e.StatusCode, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("generator error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if repeated.
func (e *GeneratorError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ParseError is a reply that could not be decoded even after repair.
type ParseError struct {
	Raw   string
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("generator reply parse error: %v", e.Cause)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// HTTPGenerator posts a messages-style request to an HTTP endpoint and reads
// the rewritten text from the reply.
type HTTPGenerator struct {
	config  GeneratorConfig
	client  *http.Client
	logger  *slog.Logger
	backoff func(attempt int) time.Duration
}

// NewHTTPGenerator creates an HTTPGenerator.
func NewHTTPGenerator(cfg GeneratorConfig, logger *slog.Logger) *HTTPGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &HTTPGenerator{
		config: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "enhance.generator"),
		backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
		},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateRequest struct {
	Model     string    `json:"model,omitempty"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

// generateReply accepts both a flat {"text": ...} reply and a messages-style
// content block list.
type generateReply struct {
	Text    string `json:"text"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (r generateReply) text() string {
	if r.Text != "" {
		return r.Text
	}
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

const systemPrompt = "You rewrite clauses of compliance policies in clear, formal prose. " +
	"Keep every obligation, role and figure. Reply with the rewritten clause text only."

func prompt(req Request) string {
	return fmt.Sprintf("Clause title: %s\n\nClause text:\n%s", req.Title, req.Body)
}

// Generate implements Generator. 429 and 5xx replies are retried with
// exponential backoff.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:     g.config.Model,
		MaxTokens: g.config.MaxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: prompt(req)}},
	})
	if err != nil {
		return "", fmt.Errorf("encode generator request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= g.config.Retries; attempt++ {
		if attempt > 0 {
			wait := g.backoff(attempt)
			var ge *GeneratorError
			if errors.As(lastErr, &ge) && ge.RetryAfter > wait {
				wait = ge.RetryAfter
			}
			g.logger.Debug("retrying generator request",
				"clause", req.Code,
				"attempt", attempt,
				"backoff", wait,
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		text, err := g.do(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var ge *GeneratorError
		if !errors.As(err, &ge) || !ge.Retryable() {
			return "", err
		}
	}
	return "", fmt.Errorf("generator request failed after %d retries: %w", g.config.Retries, lastErr)
}

func (g *HTTPGenerator) do(ctx context.Context, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create generator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generator request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read generator reply: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		ge := &GeneratorError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			ge.RetryAfter = time.Duration(secs) * time.Second
		}
		return "", ge
	}

	return decodeReply(body)
}

// decodeReply parses the reply, repairing malformed JSON first when needed.
func decodeReply(body []byte) (string, error) {
	var reply generateReply
	if err := json.Unmarshal(body, &reply); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(string(body))
		if rerr != nil {
			return "", &ParseError{Raw: string(body), Cause: err}
		}
		if err := json.Unmarshal([]byte(repaired), &reply); err != nil {
			return "", &ParseError{Raw: string(body), Cause: err}
		}
	}
	text := reply.text()
	if strings.TrimSpace(text) == "" {
		return "", &ParseError{Raw: string(body), Cause: errors.New("reply has no text")}
	}
	return text, nil
}
