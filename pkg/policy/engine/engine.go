package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/policy/condition"
	"ledgerline/policyforge/pkg/rulebook/ast"
)

// Metrics receives engine measurements. The telemetry/metrics collector
// implements it.
type Metrics interface {
	RecordRuleOutcome(outcome Outcome)
	RecordEvaluation(duration time.Duration)
}

// Engine evaluates rule sets. It holds no per-evaluation state and is safe for
// concurrent use.
type Engine struct {
	config    *Config
	evaluator *condition.Evaluator
	metrics   Metrics
	logger    *slog.Logger
}

// New creates a rules engine. A nil config selects DefaultConfig.
func New(cfg *Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:    cfg,
		evaluator: condition.NewEvaluator(logger, cfg.MaxConditionDepth),
		logger:    logger.With("component", "engine"),
	}
}

// WithMetrics attaches a metrics sink and returns the engine.
func (e *Engine) WithMetrics(m Metrics) *Engine {
	e.metrics = m
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// EvaluateTemplate evaluates a template's rules against its clause library.
func (e *Engine) EvaluateTemplate(ctx context.Context, tmpl *ast.Template, set answers.Set) (*DecisionSet, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("template cannot be nil")
	}
	return e.Evaluate(ctx, tmpl.Rules, tmpl.Clauses, set)
}

// Evaluate runs rules against set and reconciles the result with the mandatory
// clauses in library. The only error is context cancellation.
func (e *Engine) Evaluate(ctx context.Context, rules []*ast.Rule, library []*ast.Clause, set answers.Set) (*DecisionSet, error) {
	start := time.Now()

	st := newState()
	var trace *Trace
	if e.config.EnableTrace {
		trace = &Trace{}
	}

	evaluated := 0
	for _, rule := range SortRulesByPriority(rules) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ruleStart := time.Now()
		step := &TraceStep{RuleID: rule.ID, Priority: rule.Priority}

		switch {
		case !rule.IsEnabled():
			step.Outcome = OutcomeDisabled

		case evaluated >= e.config.MaxRules:
			msg := fmt.Sprintf("rule limit of %d exceeded", e.config.MaxRules)
			st.fire(Firing{RuleID: rule.ID, Priority: rule.Priority, Outcome: OutcomeError, Error: msg})
			step.Outcome = OutcomeError
			step.Details = msg

		default:
			evaluated++
			res := e.evaluator.Evaluate(rule.Condition, set)
			switch {
			case res.Malformed():
				msg := condition.Summarize(res.Diagnostics)
				e.logger.WarnContext(ctx, "malformed rule condition",
					"rule_id", rule.ID,
					"location", rule.Location.String(),
					"diagnostics", msg,
				)
				st.fire(Firing{
					RuleID:      rule.ID,
					Priority:    rule.Priority,
					Outcome:     OutcomeError,
					Error:       msg,
					Diagnostics: res.Diagnostics,
				})
				step.Outcome = OutcomeError
				step.Details = msg

			case res.Matched:
				for _, action := range rule.Actions {
					st.apply(rule, action, set)
				}
				st.fire(Firing{RuleID: rule.ID, Priority: rule.Priority, Outcome: OutcomeFired})
				step.Outcome = OutcomeFired
				step.Details = fmt.Sprintf("%d action(s) applied", len(rule.Actions))

			default:
				step.Outcome = OutcomeNotMatched
			}
		}

		if e.metrics != nil && step.Outcome != OutcomeDisabled {
			e.metrics.RecordRuleOutcome(step.Outcome)
		}
		if trace != nil {
			step.Duration = time.Since(ruleStart)
			trace.Steps = append(trace.Steps, step)
		}
	}

	decision := e.reconcile(st, library)
	elapsed := time.Since(start)
	if trace != nil {
		trace.TotalTime = elapsed
		decision.Trace = trace
	}
	if e.metrics != nil {
		e.metrics.RecordEvaluation(elapsed)
	}

	e.logger.DebugContext(ctx, "rules evaluated",
		"rules", len(rules),
		"included", len(decision.Included),
		"excluded", len(decision.Excluded),
		"suggested", len(decision.Suggested),
		"duration", elapsed,
	)
	return decision, nil
}
