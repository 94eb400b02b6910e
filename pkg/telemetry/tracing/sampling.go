package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Sampling strategies accepted in telemetry.tracing.sampler.
const (
	// SamplerAlways samples every trace.
	SamplerAlways = "always"

	// SamplerNever samples nothing.
	SamplerNever = "never"

	// SamplerRatio samples sample_ratio of new traces by trace ID hash.
	SamplerRatio = "ratio"

	// SamplerParentBased follows the caller's decision and applies the
	// ratio to root spans.
	SamplerParentBased = "parent_based"
)

// createSampler builds the sampler for strategy. Only parent_based honours
// an incoming sampled flag; the others decide on their own.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	if strategy == SamplerRatio || strategy == SamplerParentBased || strategy == "" {
		if ratio < 0.0 || ratio > 1.0 {
			return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
		}
	}

	switch strategy {
	case SamplerAlways:
		return sdktrace.AlwaysSample(), nil
	case SamplerNever:
		return sdktrace.NeverSample(), nil
	case SamplerRatio:
		return sdktrace.TraceIDRatioBased(ratio), nil
	case SamplerParentBased, "":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
	default:
		return nil, fmt.Errorf("unknown sampler strategy: %s (valid: always, never, ratio, parent_based)", strategy)
	}
}
