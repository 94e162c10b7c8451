// Package alerting evaluates CEL rules against history summaries.
package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"msgmon/internal/config"
	"msgmon/internal/history"
	"msgmon/pkg/errors"
	"msgmon/pkg/metrics"
)

const (
	snapshotVar     = "snapshot"
	DefaultSeverity = "warning"
	DefaultPeriod   = history.InLastHour
)

type Rule struct {
	Name       string         `json:"name"`
	Expression string         `json:"expression"`
	Severity   string         `json:"severity"`
	Period     history.Period `json:"period"`

	program cel.Program
}

type Alert struct {
	Rule      string          `json:"rule"`
	Severity  string          `json:"severity"`
	Period    history.Period  `json:"period"`
	Triggered bool            `json:"triggered"`
	Summary   history.Summary `json:"summary"`
}

type Evaluator struct {
	env   *cel.Env
	rules []*Rule
}

func NewEvaluator(rules []config.AlertConfig) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable(snapshotVar, cel.MapType(cel.StringType, cel.DoubleType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Evaluator{env: env}
	for _, cfg := range rules {
		rule, err := e.compile(cfg)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, rule)
	}
	return e, nil
}

// Validate compiles expression without registering it.
func (e *Evaluator) Validate(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *Evaluator) Rules() []*Rule {
	return e.rules
}

func (e *Evaluator) compile(cfg config.AlertConfig) (*Rule, error) {
	if cfg.Name == "" {
		return nil, errors.ErrValidation.WithMessage("alert rule requires a name")
	}
	program, err := e.program(cfg.Expression)
	if err != nil {
		return nil, errors.ErrValidation.WithMessage("alert %q: %v", cfg.Name, err)
	}

	severity := cfg.Severity
	if severity == "" {
		severity = DefaultSeverity
	}
	return &Rule{
		Name:       cfg.Name,
		Expression: cfg.Expression,
		Severity:   severity,
		Period:     history.ParsePeriod(cfg.Period, DefaultPeriod),
		program:    program,
	}, nil
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("alert expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return program, nil
}

// Evaluate runs every rule against summary, regardless of the rule period.
func (e *Evaluator) Evaluate(ctx context.Context, summary history.Summary) ([]Alert, error) {
	alerts := make([]Alert, 0, len(e.rules))
	for _, rule := range e.rules {
		alert, err := e.evaluate(ctx, rule, summary)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// Check evaluates each rule against the summary of its own period. Rules
// sharing a period share one summary.
func (e *Evaluator) Check(ctx context.Context, storage history.Storage, base history.Specification, now time.Time) ([]Alert, error) {
	summaries := make(map[history.Period]history.Summary)
	alerts := make([]Alert, 0, len(e.rules))

	for _, rule := range e.rules {
		summary, ok := summaries[rule.Period]
		if !ok {
			from, to := rule.Period.Timestamps(now)
			var err error
			summary, err = base.From(from).To(to).Snapshot(storage).Summary(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to summarize %s: %w", rule.Period, err)
			}
			summaries[rule.Period] = summary
		}

		alert, err := e.evaluate(ctx, rule, summary)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (e *Evaluator) evaluate(ctx context.Context, rule *Rule, summary history.Summary) (Alert, error) {
	result, _, err := rule.program.ContextEval(ctx, map[string]any{snapshotVar: Variables(summary)})
	if err != nil {
		return Alert{}, fmt.Errorf("failed to evaluate alert %q: %w", rule.Name, err)
	}
	triggered, ok := result.Value().(bool)
	if !ok {
		return Alert{}, fmt.Errorf("alert %q did not return bool", rule.Name)
	}

	metrics.SetAlertTriggered(rule.Name, rule.Severity, triggered)
	return Alert{
		Rule:      rule.Name,
		Severity:  rule.Severity,
		Period:    rule.Period,
		Triggered: triggered,
		Summary:   summary,
	}, nil
}

// Variables is the snapshot map exposed to rule expressions.
func Variables(s history.Summary) map[string]float64 {
	return map[string]float64{
		"total":              float64(s.Total),
		"successes":          float64(s.Successes),
		"failures":           float64(s.Failures),
		"fail_rate":          s.FailRate,
		"avg_wait":           s.AverageWaitTime,
		"avg_handling":       s.AverageHandlingTime,
		"handled_per_minute": s.HandledPerMinute,
		"handled_per_hour":   s.HandledPerHour,
	}
}

// Triggered keeps the alerts that fired.
func Triggered(alerts []Alert) []Alert {
	var out []Alert
	for _, a := range alerts {
		if a.Triggered {
			out = append(out, a)
		}
	}
	return out
}
