package optim

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Task evaluates one scenario and returns its cost.
type Task func(ctx context.Context) (float64, error)

type job struct {
	run  Task
	cost *float64
	err  *error
	wg   *sync.WaitGroup
}

// pool is a fixed set of workers owned by one optimization. Workers live
// until close is called.
type pool struct {
	jobs chan job
	g    *errgroup.Group
}

func newPool(ctx context.Context, workers int) *pool {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	p := &pool{jobs: make(chan job), g: g}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for j := range p.jobs {
				*j.cost, *j.err = runTask(gctx, j.run)
				j.wg.Done()
			}
			return nil
		})
	}
	return p
}

func runTask(ctx context.Context, t Task) (cost float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task panicked: %v", r)
		}
	}()
	return t(ctx)
}

// evaluate runs all tasks on the workers and blocks until every one has
// finished. Costs are returned in task order; the first failing task in
// that order determines the error.
func (p *pool) evaluate(tasks []Task) ([]float64, error) {
	costs := make([]float64, len(tasks))
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, t := range tasks {
		p.jobs <- job{run: t, cost: &costs[i], err: &errs[i], wg: &wg}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return costs, errors.Wrapf(err, "scenario %d", i)
		}
	}
	return costs, nil
}

func (p *pool) close() error {
	close(p.jobs)
	return p.g.Wait()
}
