// Package telemetry wires policyforge's observability stack: structured
// logging with PII redaction (logging), Prometheus metrics (metrics),
// OpenTelemetry tracing (tracing) and health probes (health).
//
//	tel, err := telemetry.New(&cfg.Telemetry, telemetry.BuildInfo{Version: version}, telemetry.Options{})
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	eng := engine.New(&cfg.Engine, tel.Logger()).WithMetrics(tel.Metrics())
//	tel.Health().RegisterCheck("store", health.StoreCheck(store))
//	tel.Mount(mux, func() string { return mgr.Status().Version })
//
// Logs redact e-mail addresses, phone numbers, IBANs, social security
// numbers, API keys and bearer tokens when telemetry.logging.redact_pii is
// set (the default). Fields stored with logging.WithPolicyID,
// logging.WithJobID and friends are attached to every record logged with
// that context.
package telemetry
