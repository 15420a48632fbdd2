package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Simulator drives one circuit from t=0 to the configured final time.
// A single run is strictly sequential and deterministic.
type Simulator struct{}

func New() *Simulator {
	return &Simulator{}
}

func (s *Simulator) Simulate(ctx context.Context, c *Circuit, cfg Config, sinks ...Sink) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	for _, e := range c.elements {
		if err := e.Initialize(); err != nil {
			return nil, s.fail(c, 0, 0, errors.Wrapf(err, "initialize %s", e.Name()))
		}
	}
	for _, e := range c.elements {
		if err := e.PostInitialize(); err != nil {
			return nil, s.fail(c, 0, 0, errors.Wrapf(err, "post-initialize %s", e.Name()))
		}
	}
	c.Commit()

	samplers := make([]*sampler, len(sinks))
	for i, sk := range sinks {
		samplers[i] = newSampler(sk)
		samplers[i].emit(0)
	}

	result := &Result{MinStep: math.Inf(1)}
	samplePeriod := cfg.FinalTime / float64(cfg.SamplePoints)
	nextSample := samplePeriod
	t := 0.0

	for step := 0; t < cfg.FinalTime; step++ {
		if step%cfg.CheckEvery == 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			default:
			}
		}

		end, err := s.stepEnd(c, t)
		if err != nil {
			return result, s.fail(c, step, t, err)
		}
		if step == 0 {
			end = t + cfg.FirstStep
		}

		from, dt := t, end-t
		for _, e := range c.elements {
			e.Run(t, end, dt)
		}

		n, err := c.dispatch()
		result.Events += n
		if err != nil {
			return result, s.fail(c, step, end, err)
		}
		c.Commit()

		if step > 0 && dt < result.MinStep {
			result.MinStep = dt
		}
		t = end
		result.Steps++

		for _, sp := range samplers {
			sp.accumulate(from, t)
		}
		if t > nextSample {
			for _, sp := range samplers {
				sp.emit(t)
			}
			for nextSample < t {
				nextSample += samplePeriod
			}
		}
	}

	for _, sp := range samplers {
		if sp.weight > 0 {
			sp.emit(t)
		}
	}
	for _, e := range c.elements {
		e.Finish()
	}
	for _, sk := range sinks {
		sk.Finish()
	}

	result.FinalTime = t
	if math.IsInf(result.MinStep, 1) {
		result.MinStep = 0
	}
	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if !(cfg.FinalTime > 0) || !isFinite(cfg.FinalTime) {
		return errors.Wrapf(ErrInvalidConfig, "final time must be positive, got %g", cfg.FinalTime)
	}
	if cfg.FirstStep <= 0 || cfg.FirstStep >= cfg.FinalTime {
		return errors.Wrapf(ErrInvalidConfig, "first step must be in (0, %g), got %g", cfg.FinalTime, cfg.FirstStep)
	}
	if cfg.SamplePoints < 1 {
		return errors.Wrapf(ErrInvalidConfig, "sample points must be positive, got %d", cfg.SamplePoints)
	}
	return nil
}

// stepEnd returns the minimum proposed instant strictly after t. On equal
// proposals the first element in registration order wins.
func (s *Simulator) stepEnd(c *Circuit, t float64) (float64, error) {
	found := false
	best := 0.0
	for _, e := range c.elements {
		end, ok := e.StepEndTime(t)
		if !ok {
			continue
		}
		if !isFinite(end) {
			return 0, errors.Wrapf(ErrInvalidStepEnd, "%s proposed %g", e.Name(), end)
		}
		if end > t && (!found || end < best) {
			best = end
			found = true
		}
	}
	if !found {
		return 0, ErrNoStepEnd
	}
	return best, nil
}

func (s *Simulator) fail(c *Circuit, step int, t float64, err error) error {
	diag := make([]string, 0, len(c.elements))
	for _, e := range c.elements {
		if end, ok := e.StepEndTime(t); ok {
			diag = append(diag, fmt.Sprintf("%s:%.6g", e.Name(), end))
		} else {
			diag = append(diag, e.Name()+":none")
		}
	}
	return &SimulationError{
		Circuit:     c.name,
		Step:        step,
		Time:        t,
		Diagnostics: diag,
		Wrapped:     err,
	}
}

// sampler averages the probes of one sink over the steps between two
// output points, weighting every step by its duration inside the sink's
// window.
type sampler struct {
	sink       Sink
	probes     []Probe
	sum        []float64
	weight     float64
	start, end float64
}

func newSampler(sk Sink) *sampler {
	probes := sk.Probes()
	s := &sampler{
		sink:   sk,
		probes: probes,
		sum:    make([]float64, len(probes)),
		start:  math.Inf(-1),
		end:    math.Inf(1),
	}
	if w, ok := sk.(WindowedSink); ok {
		s.start, s.end = w.SampleWindow()
	}
	return s
}

// accumulate adds the step [from, to] clipped to the window.
func (s *sampler) accumulate(from, to float64) {
	dt := math.Min(to, s.end) - math.Max(from, s.start)
	if dt <= 0 {
		return
	}
	for i, p := range s.probes {
		s.sum[i] += p.Read() * dt
	}
	s.weight += dt
}

// emit writes the average since the last output point. Points before the
// window are skipped and a point past its end is stamped at the end.
func (s *sampler) emit(t float64) {
	if t < s.start {
		return
	}
	if t > s.end {
		if s.weight == 0 {
			return
		}
		t = s.end
	}
	values := make([]float64, len(s.probes))
	for i, p := range s.probes {
		if s.weight > 0 {
			values[i] = s.sum[i] / s.weight
		} else {
			values[i] = p.Read()
		}
		s.sum[i] = 0
	}
	s.weight = 0
	s.sink.Write(Sample{Time: t, Values: values})
}
