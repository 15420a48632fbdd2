package optim

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Transform maps a search-space coordinate to the natural parameter value.
type Transform int

const (
	Linear Transform = iota
	// Log searches the logarithm, which keeps the natural value positive.
	Log
)

func (t Transform) String() string {
	switch t {
	case Linear:
		return "linear"
	case Log:
		return "log"
	default:
		return fmt.Sprintf("transform(%d)", int(t))
	}
}

// Parameter describes one tunable coefficient of a T. Initial, Step,
// Lower and Upper are in search space.
type Parameter[T any] struct {
	Name      string
	Initial   float64
	Step      float64
	Lower     float64
	Upper     float64
	Transform Transform
	Apply     func(target T, value float64)
}

// Natural converts a search-space coordinate to the value passed to Apply.
func (p Parameter[T]) Natural(x float64) float64 {
	if p.Transform == Log {
		return math.Exp(x)
	}
	return x
}

// Search converts a natural value to search space.
func (p Parameter[T]) Search(v float64) float64 {
	if p.Transform == Log {
		return math.Log(v)
	}
	return v
}

func (p Parameter[T]) clamp(x float64) float64 {
	return math.Max(p.Lower, math.Min(p.Upper, x))
}

// penalty grows quadratically with the distance outside the bounds.
func (p Parameter[T]) penalty(x float64) float64 {
	d := 0.0
	if x < p.Lower {
		d = p.Lower - x
	} else if x > p.Upper {
		d = x - p.Upper
	}
	return d * d
}

func (p Parameter[T]) validate() error {
	if p.Apply == nil {
		return errors.Errorf("parameter %q has no apply function", p.Name)
	}
	if !(p.Lower < p.Upper) {
		return errors.Errorf("parameter %q: lower %g must be below upper %g", p.Name, p.Lower, p.Upper)
	}
	if !(p.Step > 0) {
		return errors.Errorf("parameter %q: step must be positive, got %g", p.Name, p.Step)
	}
	return nil
}

// applyPoint binds the clamped search-space point x to target.
func applyPoint[T any](params []Parameter[T], target T, x []float64) {
	for i, p := range params {
		p.Apply(target, p.Natural(p.clamp(x[i])))
	}
}
