// Package tracing sets up OpenTelemetry tracing for policyforge.
//
// New builds a tracer provider from the telemetry.tracing section, installs
// it as the global provider together with the W3C trace context propagator,
// and returns a Tracer. The policy manager and the enhancement worker obtain
// their tracers from the global provider, so their catalog.load,
// policy.assemble, policy.publish and enhance.process spans are exported
// once New has run. The generator client injects the trace context into its
// outgoing requests.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.Options{Version: version})
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	mux.Handle("/ready", tracer.Middleware("/ready", readyHandler))
//
// # Exporters
//
//   - otlp: OTLP over gRPC to telemetry.tracing.endpoint
//   - stdout: pretty-printed spans, for local debugging
//
// # Samplers
//
//   - always, never
//   - ratio: sample_ratio of traces by trace ID
//   - parent_based (default): follow the caller, ratio for root spans
package tracing
