package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"ledgerline/policyforge/pkg/assembly"
	"ledgerline/policyforge/pkg/enhance"
	"ledgerline/policyforge/pkg/policy/engine"
	"ledgerline/policyforge/pkg/policy/source"
	"ledgerline/policyforge/pkg/rulebook/ast"
	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
	"ledgerline/policyforge/pkg/rulebook/validator"
	"ledgerline/policyforge/pkg/storage"
	"ledgerline/policyforge/pkg/template"
	"ledgerline/policyforge/pkg/versioning"
)

// Metrics receives manager measurements. The telemetry/metrics collector
// implements it.
type Metrics interface {
	RecordCatalogLoad(ok bool, templates int)
	RecordAssembly(templateCode string, clauses int, duration time.Duration)
	RecordPublish(ok bool)
}

// ReloadEvent reports the outcome of one catalog load.
type ReloadEvent struct {
	Time      time.Time
	Version   string
	Templates int
	Trigger   string
	Error     error
}

// LoadStatus describes the last catalog load.
type LoadStatus struct {
	LastLoad  time.Time `json:"last_load"`
	LastError string    `json:"last_error,omitempty"`
	Version   string    `json:"version"`
	Templates int       `json:"templates"`
}

// Manager coordinates the catalog and the policy lifecycle.
type Manager struct {
	config    *Config
	source    source.Source
	registry  *Registry
	validator *validator.Validator
	engine    *engine.Engine
	assembler *assembly.Assembler
	store     storage.Store
	versions  *versioning.Manager
	queue     *enhance.Queue
	metrics   Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time

	loadMu   sync.Mutex
	stateMu  sync.RWMutex
	lastLoad time.Time
	lastErr  error
	reloads  chan ReloadEvent
}

// New creates a manager. A nil config uses DefaultConfig. The engine,
// assembler and version manager get defaults and can be replaced with the
// With methods before the manager is used.
func New(src source.Source, store storage.Store, cfg *Config, logger *slog.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		config:   cfg,
		source:   src,
		registry: NewRegistry(),
		validator: validator.NewValidator().
			WithMaxDepth(cfg.MaxConditionDepth).
			WithStrict(cfg.Strict),
		engine:    engine.New(nil, logger),
		assembler: assembly.New(template.NewCache(256), logger),
		store:     store,
		versions:  versioning.New(store, nil, logger),
		tracer:    otel.Tracer("policyforge/manager"),
		logger:    logger.With("component", "policy.manager"),
		now:       time.Now,
		reloads:   make(chan ReloadEvent, 100),
	}
}

// WithEngine replaces the rules engine.
func (m *Manager) WithEngine(e *engine.Engine) *Manager {
	m.engine = e
	return m
}

// WithAssembler replaces the clause assembler.
func (m *Manager) WithAssembler(a *assembly.Assembler) *Manager {
	m.assembler = a
	return m
}

// WithVersioning replaces the version manager.
func (m *Manager) WithVersioning(v *versioning.Manager) *Manager {
	m.versions = v
	return m
}

// WithEnhancement attaches an enhancement queue. Without one no policy is
// ever queued.
func (m *Manager) WithEnhancement(q *enhance.Queue) *Manager {
	m.queue = q
	return m
}

// WithMetrics attaches a metrics sink.
func (m *Manager) WithMetrics(metrics Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Registry returns the template registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Reloads delivers one event per catalog load. Events are dropped when
// nobody reads.
func (m *Manager) Reloads() <-chan ReloadEvent {
	return m.reloads
}

// Load reads, validates and registers the catalog. If any template has a
// blocking problem the load is rejected and the previous catalog stays
// active.
func (m *Manager) Load(ctx context.Context) error {
	return m.load(ctx, "load")
}

func (m *Manager) load(ctx context.Context, trigger string) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "catalog.load")
	defer span.End()

	templates, err := m.source.LoadTemplates(ctx)
	if err != nil {
		return m.finishLoad(trigger, 0, &CatalogError{Cause: err}, start)
	}

	if err := m.check(templates); err != nil {
		return m.finishLoad(trigger, len(templates), err, start)
	}

	if err := m.registry.Replace(templates); err != nil {
		return m.finishLoad(trigger, len(templates), &CatalogError{Cause: err}, start)
	}
	return m.finishLoad(trigger, len(templates), nil, start)
}

func (m *Manager) finishLoad(trigger string, count int, err error, start time.Time) error {
	now := m.now()
	m.stateMu.Lock()
	m.lastErr = err
	if err == nil {
		m.lastLoad = now
	}
	m.stateMu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordCatalogLoad(err == nil, count)
	}

	if err != nil {
		m.logger.Error("catalog load failed, keeping previous templates",
			"trigger", trigger,
			"error", err,
			"active_templates", m.registry.Count(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		if count == 0 {
			m.logger.Warn("catalog is empty", "trigger", trigger)
		}
		m.logger.Info("catalog loaded",
			"trigger", trigger,
			"templates", count,
			"version", m.registry.Version(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	select {
	case m.reloads <- ReloadEvent{
		Time:      now,
		Version:   m.registry.Version(),
		Templates: count,
		Trigger:   trigger,
		Error:     err,
	}:
	default:
	}
	return err
}

// check lints every template and looks for duplicate codes.
func (m *Manager) check(templates []*ast.Template) error {
	cerr := &CatalogError{Problems: map[string]*rbErrors.ErrorList{}}
	seen := make(map[string]string, len(templates))

	for _, t := range templates {
		name := t.Code
		if t.SourceFile != "" {
			name = t.SourceFile
		}
		if prev, dup := seen[t.Code]; dup {
			m.logger.Error("duplicate template code", "code", t.Code, "first", prev, "second", name)
			cerr.Duplicates = append(cerr.Duplicates, t.Code)
			continue
		}
		seen[t.Code] = name

		list := m.validator.Lint(t)
		for _, w := range list.Warnings() {
			m.logger.Warn("catalog lint warning",
				"template", t.Code,
				"type", w.Type,
				"message", w.Message,
				"location", w.Location.String(),
			)
		}
		if list.HasErrors() {
			cerr.Problems[name] = list
		}
	}

	if len(cerr.Problems) == 0 && len(cerr.Duplicates) == 0 {
		return nil
	}
	sort.Strings(cerr.Duplicates)
	return cerr
}

// Watch reloads the catalog on every source change until ctx is cancelled.
// A failed reload is logged and the previous catalog stays active.
func (m *Manager) Watch(ctx context.Context) error {
	events, err := m.source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch catalog: %w", err)
	}
	m.logger.Info("watching catalog for changes")

	for ev := range events {
		if ev.Error != nil {
			m.logger.Warn("catalog watch error", "error", ev.Error)
			continue
		}
		m.logger.Info("catalog change detected", "path", ev.Path, "op", ev.Op)
		_ = m.load(ctx, "watch")
	}
	return nil
}

// Status reports the outcome of the most recent load.
func (m *Manager) Status() LoadStatus {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	st := LoadStatus{
		LastLoad:  m.lastLoad,
		Version:   m.registry.Version(),
		Templates: m.registry.Count(),
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// Template returns a registered template.
func (m *Manager) Template(code string) (*ast.Template, error) {
	t, ok := m.registry.Get(code)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, code)
	}
	return t, nil
}

// Templates returns every registered template sorted by code.
func (m *Manager) Templates() []*ast.Template {
	return m.registry.All()
}
