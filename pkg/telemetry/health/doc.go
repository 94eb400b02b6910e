// Package health serves liveness, readiness and version probes.
//
// Readiness aggregates named checks. Critical checks (the store ping and the
// catalog check) make the service unready when they fail and the readiness
// probe answers 503. Optional checks only mark the result degraded.
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("store", health.StoreCheck(store))
//	checker.RegisterCheck("catalog", health.CatalogCheck(mgr))
//	checker.RegisterOptional("scheduler", health.SchedulerCheck(sched))
//	checker.Mount(mux, cfg.Telemetry.Health, health.VersionInfo{Version: version}, nil)
//
// Checks run concurrently, each bounded by the check timeout.
package health
