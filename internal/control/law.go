package control

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/optim"
	"github.com/san-kum/smpsim/internal/power"
	"github.com/san-kum/smpsim/internal/sim"
)

var (
	ErrInvalidDuty      = errors.New("control: duty is NaN")
	ErrInvalidFrequency = errors.New("control: invalid PWM frequency")
	ErrUnknownParam     = errors.New("control: unknown parameter")
	ErrUnknownKind      = errors.New("control: unknown law")
)

type Kind string

const (
	KindPID        Kind = "pid"
	KindCOT        Kind = "cot"
	KindStepUpDown Kind = "stepupdown"
)

// Law is a control law attached to one converter. It takes part in the
// simulation as an element and receives the events of its timers.
type Law interface {
	sim.Element
	sim.EventHandler

	Kind() Kind
	// Target is the target output voltage profile.
	Target() *power.Profile
	TargetValue(t float64) float64
	// ActualValue is the controlled quantity as the law measured it.
	ActualValue() float64
	// SetPoint is the actuator command, tracked by the cost for churn.
	SetPoint() float64
	ParameterInfo() string
	Parameters() []optim.Parameter[Law]
	SimulationDuration() float64
	EventTime() float64
	// InitializeSteadyState seeds the law and the plant near equilibrium.
	// Call it after the scenario profiles are set, before simulating.
	InitializeSteadyState() error
	Probes() []sim.Probe

	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// New attaches a law of the given kind to conv.
func New(kind Kind, conv *power.Converter) (Law, error) {
	switch kind {
	case KindPID:
		return NewPID(conv), nil
	case KindCOT:
		return NewCOT(conv), nil
	case KindStepUpDown:
		return NewStepUpDown(conv), nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	switch k {
	case KindPID, KindCOT, KindStepUpDown:
		return k, nil
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

func Kinds() []Kind {
	return []Kind{KindPID, KindCOT, KindStepUpDown}
}

// Optimize tunes the parameters law declares across the scenarios built
// by factories. Apply the result to fresh laws to re-simulate.
func Optimize(ctx context.Context, law Law, factories []optim.Factory[Law], opts optim.Options) (*optim.Result[Law], error) {
	return optim.Optimize(ctx, law.Parameters(), factories, opts)
}

// logParameter declares a positive coefficient searched in log space
// within [e^-15, e^10].
func logParameter[L Law](name string, initial, step float64, apply func(L, float64)) optim.Parameter[Law] {
	x0 := -15.0
	if initial > 0 {
		x0 = math.Log(initial)
	}
	return optim.Parameter[Law]{
		Name:      name,
		Initial:   x0,
		Step:      step,
		Lower:     -15,
		Upper:     10,
		Transform: optim.Log,
		Apply:     func(l Law, v float64) { apply(l.(L), v) },
	}
}

// fields maps parameter names to the law's coefficient fields.
type fields map[string]*float64

func (f fields) get() map[string]float64 {
	out := make(map[string]float64, len(f))
	for k, v := range f {
		out[k] = *v
	}
	return out
}

func (f fields) set(name string, value float64) error {
	p, ok := f[name]
	if !ok {
		names := make([]string, 0, len(f))
		for k := range f {
			names = append(names, k)
		}
		sort.Strings(names)
		return errors.Wrapf(ErrUnknownParam, "%q (have %s)", name, strings.Join(names, ", "))
	}
	*p = value
	return nil
}
