// Package automation runs repeated scenarios to check how a control law
// copes with ADC noise and input voltage spread.
package automation

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/experiment"
)

// MonteCarloConfig defines Monte Carlo simulation parameters
type MonteCarloConfig struct {
	Law     control.Kind
	Spec    experiment.Spec
	Options experiment.Options
	Trials  int
	// Spread is the relative input voltage perturbation, uniform in
	// [-Spread, Spread].
	Spread float64
	// Tolerance is the largest final output error of a stable trial.
	Tolerance float64
	Seed      uint64
	Workers   int
}

func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		Options:   experiment.DefaultOptions(),
		Trials:    20,
		Spread:    0.05,
		Tolerance: 0.5,
		Workers:   4,
	}
}

// MonteCarloResult holds the outcome of one trial
type MonteCarloResult struct {
	Trial        int
	Seed         uint64
	InputVoltage float64
	Cost         float64
	FinalVoltage float64
	Stable       bool
	Err          error
}

// Summary aggregates the successful trials.
type Summary struct {
	Trials    int
	Failed    int
	Unstable  int
	MeanCost  float64
	StdCost   float64
	WorstCost float64
}

// RunMonteCarlo simulates cfg.Trials copies of the scenario, each with its
// own noise seed and perturbed input voltage. The draws depend only on
// cfg.Seed, not on scheduling.
func RunMonteCarlo(ctx context.Context, reg *experiment.Registry, cfg MonteCarloConfig, logger *log.Logger) ([]MonteCarloResult, error) {
	if cfg.Trials < 1 {
		return nil, errors.Errorf("montecarlo: need at least one trial, got %d", cfg.Trials)
	}
	if logger == nil {
		logger = log.Default()
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	results := make([]MonteCarloResult, cfg.Trials)
	for i := range results {
		results[i] = MonteCarloResult{
			Trial:        i,
			Seed:         rng.Uint64(),
			InputVoltage: cfg.Spec.InputVoltage * (1 + (2*rng.Float64()-1)*cfg.Spread),
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))

	var mu sync.Mutex
	done := 0
	for i := range results {
		g.Go(func() error {
			r := &results[i]
			runTrial(ctx, reg, cfg, r)
			if ctx.Err() != nil {
				return ctx.Err()
			}

			mu.Lock()
			done++
			if done%10 == 0 || done == cfg.Trials {
				logger.Info("monte carlo", "done", done, "trials", cfg.Trials)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func runTrial(ctx context.Context, reg *experiment.Registry, cfg MonteCarloConfig, r *MonteCarloResult) {
	spec := cfg.Spec
	spec.InputVoltage = r.InputVoltage
	opts := cfg.Options
	opts.Seed = r.Seed

	sc, err := experiment.Build(reg, cfg.Law, spec, opts)
	if err != nil {
		r.Err = err
		return
	}
	if _, err := sc.Run(ctx); err != nil {
		r.Err = err
		return
	}
	r.Cost = sc.Cost.TotalCost
	r.FinalVoltage = sc.Conv.OutputVoltage.Get()
	target := sc.Law.TargetValue(sc.Duration())
	r.Stable = math.Abs(r.FinalVoltage-target) <= cfg.Tolerance
}

// Summarize computes cost statistics over the trials that ran.
func Summarize(results []MonteCarloResult) Summary {
	s := Summary{Trials: len(results)}
	var costs []float64
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
			continue
		}
		if !r.Stable {
			s.Unstable++
		}
		costs = append(costs, r.Cost)
	}
	if len(costs) == 0 {
		return s
	}
	s.MeanCost, s.StdCost = stat.MeanStdDev(costs, nil)
	if len(costs) == 1 {
		s.StdCost = 0
	}
	s.WorstCost = floats.Max(costs)
	return s
}
