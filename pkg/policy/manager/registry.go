package manager

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledgerline/policyforge/pkg/rulebook/ast"
)

// Registry is a thread-safe set of templates keyed by code. Replace swaps the
// whole set at once; readers never see a partial catalog.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*ast.Template
	version   string
	loadTime  time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]*ast.Template)}
	r.updateVersion()
	return r
}

// Replace atomically replaces the catalog. Codes must be unique and non-empty.
func (r *Registry) Replace(templates []*ast.Template) error {
	next := make(map[string]*ast.Template, len(templates))
	for _, t := range templates {
		if t == nil {
			return fmt.Errorf("registry: template cannot be nil")
		}
		if t.Code == "" {
			return fmt.Errorf("registry: template code cannot be empty")
		}
		if _, dup := next[t.Code]; dup {
			return fmt.Errorf("registry: duplicate template code %q", t.Code)
		}
		next[t.Code] = t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates = next
	r.loadTime = time.Now()
	r.updateVersion()
	return nil
}

// Get returns the template with the given code.
func (r *Registry) Get(code string) (*ast.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[code]
	return t, ok
}

// All returns every template sorted by code.
func (r *Registry) All() []*ast.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ast.Template, 0, len(r.templates))
	for _, code := range r.codesLocked() {
		out = append(out, r.templates[code])
	}
	return out
}

// Codes returns the sorted template codes.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codesLocked()
}

func (r *Registry) codesLocked() []string {
	codes := make([]string, 0, len(r.templates))
	for code := range r.templates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Count returns the number of templates.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// Version identifies the current catalog contents. It changes whenever a
// template is added, removed or changes version or source file.
func (r *Registry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// LoadTime returns when the catalog was last replaced.
func (r *Registry) LoadTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadTime
}

// Stats summarises the catalog.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		TemplateCount: len(r.templates),
		LoadTime:      r.loadTime,
		Version:       r.version,
	}
	for _, t := range r.templates {
		stats.ClauseCount += len(t.Clauses)
		stats.RuleCount += len(t.Rules)
		stats.EnabledRules += len(t.EnabledRules())
	}
	return stats
}

// updateVersion must be called with the write lock held.
func (r *Registry) updateVersion() {
	h := sha256.New()
	for _, code := range r.codesLocked() {
		t := r.templates[code]
		h.Write([]byte(t.Code))
		h.Write([]byte(t.Version))
		h.Write([]byte(t.SourceFile))
		fmt.Fprintf(h, "%d/%d", len(t.Clauses), len(t.Rules))
	}
	r.version = fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// RegistryStats contains catalog statistics.
type RegistryStats struct {
	TemplateCount int       `json:"template_count"`
	ClauseCount   int       `json:"clause_count"`
	RuleCount     int       `json:"rule_count"`
	EnabledRules  int       `json:"enabled_rules"`
	LoadTime      time.Time `json:"load_time"`
	Version       string    `json:"version"`
}
