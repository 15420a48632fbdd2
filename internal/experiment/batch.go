package experiment

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/optim"
)

// Variant selects how a batch picks the law coefficients.
type Variant string

const (
	// VariantManual simulates every scenario with the configured coefficients.
	VariantManual Variant = "manual"
	// VariantOptimizeIndividual tunes each scenario on its own.
	VariantOptimizeIndividual Variant = "optimize-individual"
	// VariantOptimizeAll tunes one coefficient set across all scenarios.
	VariantOptimizeAll Variant = "optimize-all"
)

func Variants() []Variant {
	return []Variant{VariantManual, VariantOptimizeIndividual, VariantOptimizeAll}
}

func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.ReplaceAll(s, "_", "-")))
	for _, known := range Variants() {
		if v == known {
			return v, nil
		}
	}
	return "", errors.Errorf("experiment: unknown variant %q", s)
}

// Outcome is the simulated scenario of a batch, or the error it failed with.
type Outcome struct {
	Spec     Spec
	Scenario *Scenario
	Cost     float64
	Metrics  map[string]float64
	Params   map[string]float64
	Err      error
}

type Report struct {
	Variant  Variant
	Law      control.Kind
	Outcomes []Outcome
	// Optimization holds the shared result of an optimize-all batch.
	Optimization *optim.Result[control.Law]
}

// Succeeded returns the outcomes that simulated without error.
func (r *Report) Succeeded() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

// TotalCost sums the cost of the successful outcomes.
func (r *Report) TotalCost() float64 {
	sum := 0.0
	for _, o := range r.Succeeded() {
		sum += o.Cost
	}
	return sum
}

type Batch struct {
	Registry *Registry
	Law      control.Kind
	Variant  Variant
	Specs    []Spec
	Options  Options
	Optim    optim.Options
	Logger   *log.Logger
}

func (b *Batch) logger() *log.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return log.Default()
}

func (b *Batch) Run(ctx context.Context) (*Report, error) {
	if len(b.Specs) == 0 {
		return nil, errors.New("experiment: batch has no scenarios")
	}
	if b.Registry == nil {
		b.Registry = NewRegistry()
	}
	report := &Report{Variant: b.Variant, Law: b.Law}

	switch b.Variant {
	case VariantManual, "":
		report.Variant = VariantManual
		for i, spec := range b.Specs {
			o := b.simulate(ctx, spec, nil)
			if i == 0 && o.Scenario != nil {
				b.logger().Info("parameters", "law", b.Law, "info", o.Scenario.Law.ParameterInfo())
			}
			report.Outcomes = append(report.Outcomes, o)
		}

	case VariantOptimizeIndividual:
		for _, spec := range b.Specs {
			res, err := b.optimize(ctx, []Spec{spec})
			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				b.logger().Error("optimization failed", "scenario", spec, "err", err)
				report.Outcomes = append(report.Outcomes, Outcome{Spec: spec, Err: err})
				continue
			}
			report.Outcomes = append(report.Outcomes, b.simulate(ctx, spec, res))
		}

	case VariantOptimizeAll:
		res, err := b.optimize(ctx, b.Specs)
		if err != nil {
			return report, err
		}
		report.Optimization = res
		b.logger().Info("optimized", "law", b.Law, "cost", res.Cost, "evaluations", res.Evaluations, "params", res.String())
		for _, spec := range b.Specs {
			report.Outcomes = append(report.Outcomes, b.simulate(ctx, spec, res))
		}

	default:
		return nil, errors.Errorf("experiment: unknown variant %q", b.Variant)
	}

	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

func (b *Batch) optimize(ctx context.Context, specs []Spec) (*optim.Result[control.Law], error) {
	factories := make([]optim.Factory[control.Law], len(specs))
	for i, spec := range specs {
		factories[i] = Factory(b.Registry, b.Law, spec, b.Options)
	}
	probe, err := Build(b.Registry, b.Law, specs[0], b.Options)
	if err != nil {
		return nil, err
	}

	opts := b.Optim
	userProgress := opts.Progress
	lg := b.logger()
	opts.Progress = func(p optim.Progress) {
		if p.Evaluations%25 == 0 {
			lg.Debug("optimizing", "evaluations", p.Evaluations, "cost", p.Cost, "best", p.Best)
		}
		if userProgress != nil {
			userProgress(p)
		}
	}
	return control.Optimize(ctx, probe.Law, factories, opts)
}

// simulate builds and runs one scenario, applying res when given. Failures
// are logged and reported in the outcome.
func (b *Batch) simulate(ctx context.Context, spec Spec, res *optim.Result[control.Law]) Outcome {
	o := Outcome{Spec: spec}
	sc, err := Build(b.Registry, b.Law, spec, b.Options)
	if err != nil {
		b.logger().Error("error in simulation", "scenario", spec, "err", err)
		o.Err = err
		return o
	}
	if res != nil {
		res.Apply(sc.Law)
	}
	o.Params = sc.Law.GetParams()
	if _, err := sc.Run(ctx); err != nil {
		b.logger().Error("error in simulation", "scenario", spec, "err", err)
		o.Err = err
		return o
	}
	o.Scenario = sc
	o.Cost = sc.Cost.TotalCost
	o.Metrics = sc.Cost.Summary()
	b.logger().Debug("simulated", "scenario", spec, "cost", o.Cost)
	return o
}
