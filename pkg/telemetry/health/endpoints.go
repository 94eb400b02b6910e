package health

import (
	"encoding/json"
	"net/http"
	"runtime"

	"ledgerline/policyforge/pkg/config"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`

	// CatalogVersion is the version of the active template catalog, read
	// per request.
	CatalogVersion string `json:"catalog_version,omitempty"`
}

// LivenessHandler returns the liveness probe handler. It always answers
// 200 while the process is serving.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns the readiness probe handler. It answers 200 when
// ready or degraded and 503 when a critical check fails.
//
// Example response (unhealthy):
//
//	{
//	    "status": "unhealthy",
//	    "checks": {
//	        "catalog": {"status": "ok", "critical": true, "duration_ms": 0.01},
//	        "store": {"status": "unhealthy", "critical": true, "message": "store unreachable: ...", "duration_ms": 4.2}
//	    },
//	    "timestamp": "2026-03-01T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r) {
			return
		}
		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler returns the version endpoint handler. catalogVersion may be
// nil.
func VersionHandler(info VersionInfo, catalogVersion func() string) http.HandlerFunc {
	info.GoVersion = runtime.Version()
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r) {
			return
		}
		out := info
		if catalogVersion != nil {
			out.CatalogVersion = catalogVersion()
		}
		writeJSON(w, r, http.StatusOK, out)
	}
}

// Mount registers the liveness, readiness and version handlers on mux at the
// paths from cfg. Nothing is mounted when cfg.Enabled is false.
func (c *Checker) Mount(mux *http.ServeMux, cfg config.HealthConfig, info VersionInfo, catalogVersion func() string) {
	if !cfg.Enabled {
		return
	}
	mux.HandleFunc(cfg.LivenessPath, c.LivenessHandler())
	mux.HandleFunc(cfg.ReadinessPath, c.ReadinessHandler())
	mux.HandleFunc(cfg.VersionPath, VersionHandler(info, catalogVersion))
}

func allowMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
