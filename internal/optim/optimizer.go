// Package optim tunes coefficients by minimizing the summed cost of a set
// of scenarios. Scenario evaluations for one candidate point run on a
// fixed worker pool.
package optim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

var ErrNoScenarios = errors.New("optim: no scenarios to evaluate")

type Method int

const (
	CMAES Method = iota
	NelderMead
	Grid
)

func (m Method) String() string {
	switch m {
	case CMAES:
		return "cmaes"
	case NelderMead:
		return "neldermead"
	case Grid:
		return "grid"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "cmaes", "cma-es", "":
		return CMAES, nil
	case "neldermead", "nelder-mead", "simplex":
		return NelderMead, nil
	case "grid":
		return Grid, nil
	}
	return 0, errors.Errorf("optim: unknown method %q", s)
}

// Candidate is one freshly built scenario whose target receives the
// parameter values before it is evaluated.
type Candidate[T any] interface {
	Target() T
	Evaluate(ctx context.Context) (float64, error)
}

// Factory builds a fresh candidate. It is called once per scenario and
// objective evaluation, possibly from several goroutines.
type Factory[T any] func() (Candidate[T], error)

type Progress struct {
	Evaluations int
	Cost        float64
	Best        float64
	X           []float64
}

type Options struct {
	Method         Method
	Workers        int
	MaxEvaluations int
	Tolerance      float64
	Population     int
	Seed           uint64
	// GridPoints is the number of steps on either side of the initial
	// value scanned by the Grid method.
	GridPoints int
	Progress   func(Progress)
}

func DefaultOptions() Options {
	return Options{
		Method:         CMAES,
		Workers:        8,
		MaxEvaluations: 1000,
		Tolerance:      1e-9,
		Population:     15,
		GridPoints:     2,
	}
}

// Result holds the best point found, in search space.
type Result[T any] struct {
	Params      []Parameter[T]
	X           []float64
	Cost        float64
	Evaluations int
	Status      string
}

// Apply binds the best point to target.
func (r *Result[T]) Apply(target T) {
	applyPoint(r.Params, target, r.X)
}

// Value returns the natural value of the named parameter.
func (r *Result[T]) Value(name string) (float64, bool) {
	for i, p := range r.Params {
		if p.Name == name {
			return p.Natural(p.clamp(r.X[i])), true
		}
	}
	return 0, false
}

func (r *Result[T]) String() string {
	parts := make([]string, len(r.Params))
	for i, p := range r.Params {
		parts[i] = fmt.Sprintf("%s: %.3e", p.Name, p.Natural(p.clamp(r.X[i])))
	}
	return strings.Join(parts, "   ")
}

type objective[T any] struct {
	params    []Parameter[T]
	factories []Factory[T]
	pool      *pool
	progress  func(Progress)

	mu     sync.Mutex
	failed error
	evals  int
	best   float64
	bestX  []float64
}

func (o *objective[T]) tasks(x []float64) []Task {
	point := append([]float64(nil), x...)
	tasks := make([]Task, len(o.factories))
	for i, f := range o.factories {
		tasks[i] = func(ctx context.Context) (float64, error) {
			c, err := f()
			if err != nil {
				return 0, errors.Wrap(err, "build scenario")
			}
			applyPoint(o.params, c.Target(), point)
			return c.Evaluate(ctx)
		}
	}
	return tasks
}

func (o *objective[T]) eval(x []float64) float64 {
	o.mu.Lock()
	failed := o.failed
	o.mu.Unlock()
	if failed != nil {
		return math.Inf(1)
	}

	costs, err := o.pool.evaluate(o.tasks(x))

	o.mu.Lock()
	defer o.mu.Unlock()
	o.evals++
	if err != nil {
		o.failed = err
		return math.Inf(1)
	}

	total := 0.0
	for _, c := range costs {
		total += c
	}
	penalty := 0.0
	for i, p := range o.params {
		penalty += p.penalty(x[i])
	}
	total = total*(1+penalty) + penalty

	if total < o.best || o.bestX == nil {
		o.best = total
		o.bestX = append(o.bestX[:0], x...)
	}
	if o.progress != nil {
		o.progress(Progress{Evaluations: o.evals, Cost: total, Best: o.best, X: append([]float64(nil), x...)})
	}
	return total
}

func (o *objective[T]) status() (optimize.Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failed != nil {
		return optimize.Failure, o.failed
	}
	return optimize.NotTerminated, nil
}

// Evaluate returns the summed cost of all scenarios at the search-space
// point x.
func Evaluate[T any](ctx context.Context, params []Parameter[T], factories []Factory[T], x []float64, workers int) (float64, error) {
	if len(factories) == 0 {
		return 0, ErrNoScenarios
	}
	p := newPool(ctx, workers)
	defer p.close()

	obj := &objective[T]{params: params, factories: factories, pool: p}
	cost := obj.eval(x)
	if obj.failed != nil {
		return 0, obj.failed
	}
	return cost, nil
}

// Optimize searches for the point minimizing the summed scenario cost.
func Optimize[T any](ctx context.Context, params []Parameter[T], factories []Factory[T], opts Options) (*Result[T], error) {
	if len(factories) == 0 {
		return nil, ErrNoScenarios
	}
	if len(params) == 0 {
		return nil, errors.New("optim: no parameters")
	}
	for _, p := range params {
		if err := p.validate(); err != nil {
			return nil, err
		}
	}

	p := newPool(ctx, opts.Workers)
	defer p.close()

	obj := &objective[T]{params: params, factories: factories, pool: p, progress: opts.Progress}
	x0 := make([]float64, len(params))
	for i, prm := range params {
		x0[i] = prm.Initial
	}

	var (
		status string
		err    error
	)
	if opts.Method == Grid {
		status, err = gridSearch(ctx, obj, opts.GridPoints)
	} else {
		status, err = minimize(ctx, obj, x0, opts)
	}

	if obj.failed != nil {
		return nil, errors.Wrap(obj.failed, "optimize")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, errors.Wrap(err, "optimize")
	}
	if obj.bestX == nil {
		return nil, errors.New("optim: no point evaluated")
	}

	x := make([]float64, len(params))
	for i, prm := range params {
		x[i] = prm.clamp(obj.bestX[i])
	}
	return &Result[T]{
		Params:      params,
		X:           x,
		Cost:        obj.best,
		Evaluations: obj.evals,
		Status:      status,
	}, nil
}

func minimize[T any](ctx context.Context, obj *objective[T], x0 []float64, opts Options) (string, error) {
	problem := optimize.Problem{
		Func: obj.eval,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return obj.status()
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Iterations: 20,
		},
	}

	var method optimize.Method
	switch opts.Method {
	case NelderMead:
		method = &optimize.NelderMead{SimplexSize: meanStep(obj.params)}
	default:
		chol, err := initialCholesky(obj.params)
		if err != nil {
			return "", err
		}
		method = &optimize.CmaEsChol{
			InitStepSize: 1,
			Population:   opts.Population,
			InitCholesky: chol,
			Src:          rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15),
		}
	}

	res, err := optimize.Minimize(problem, x0, settings, method)
	if res == nil {
		return "", err
	}
	return res.Status.String(), err
}

// initialCholesky spreads the first generation by each parameter's step.
func initialCholesky[T any](params []Parameter[T]) (*mat.Cholesky, error) {
	n := len(params)
	cov := mat.NewSymDense(n, nil)
	for i, p := range params {
		cov.SetSym(i, i, p.Step*p.Step)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, errors.New("optim: initial covariance is not positive definite")
	}
	return &chol, nil
}

func meanStep[T any](params []Parameter[T]) float64 {
	sum := 0.0
	for _, p := range params {
		sum += p.Step
	}
	return sum / float64(len(params))
}
