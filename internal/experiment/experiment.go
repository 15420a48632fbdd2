// Package experiment builds scenario circuits, boost converter plus control
// law plus cost, and runs batches of them manually or through the
// optimizer.
package experiment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/metrics"
	"github.com/san-kum/smpsim/internal/optim"
	"github.com/san-kum/smpsim/internal/power"
	"github.com/san-kum/smpsim/internal/sim"
)

var ErrUnknownEvent = errors.New("experiment: unknown event")

// Event is the disturbance applied at the law's event time.
type Event string

const (
	EventNone           Event = "NONE"
	EventInputDrop      Event = "INPUT_DROP"
	EventLoadChange     Event = "LOAD_CHANGE"
	EventSetpointChange Event = "SETPOINT_CHANGE"
)

func Events() []Event {
	return []Event{EventNone, EventInputDrop, EventLoadChange, EventSetpointChange}
}

func ParseEvent(s string) (Event, error) {
	e := Event(strings.ToUpper(strings.ReplaceAll(s, "-", "_")))
	for _, known := range Events() {
		if e == known {
			return e, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownEvent, "%q", s)
}

// Label axes of a scenario circuit.
const (
	AxisEvent      = "EVENT"
	AxisVout       = "V_OUT"
	AxisIout       = "I_OUT"
	AxisLoadChange = "LOAD_CHANGE"
)

// Spec describes one operating point and its disturbance.
type Spec struct {
	Event         Event   `yaml:"event" json:"event"`
	InputVoltage  float64 `yaml:"vin" json:"vin"`
	OutputVoltage float64 `yaml:"vout" json:"vout"`
	OutputCurrent float64 `yaml:"iout" json:"iout"`
	// LoadChange divides the load resistance at the event time.
	LoadChange float64 `yaml:"load_change,omitempty" json:"load_change,omitempty"`
}

func (s Spec) String() string {
	parts := []string{string(s.Event), formatSI(s.OutputVoltage, "V"), formatSI(s.OutputCurrent, "A")}
	if s.Event == EventLoadChange {
		parts = append(parts, fmt.Sprintf("x%g", s.LoadChange))
	}
	return strings.Join(parts, " ")
}

func (s Spec) validate() error {
	if !(s.InputVoltage > 0) || !(s.OutputVoltage > 0) || !(s.OutputCurrent > 0) {
		return errors.Errorf("scenario %s: voltages and current must be positive", s)
	}
	if s.Event == EventLoadChange && !(s.LoadChange > 0) {
		return errors.Errorf("scenario %s: load change must be positive", s)
	}
	return nil
}

// Options tune how scenarios are built, independent of the operating point.
type Options struct {
	// Params override law coefficients by name before steady-state seeding.
	Params map[string]float64
	Seed   uint64
	// SamplePoints is the number of trace samples per run.
	SamplePoints int
	// SettlingBand is the tolerance of the settling time metric in volts.
	SettlingBand float64
	// Duration overrides the law's simulation duration when positive.
	Duration float64
	// PlotStart and PlotEnd window the trace; a zero end leaves it open.
	PlotStart float64
	PlotEnd   float64
}

func DefaultOptions() Options {
	return Options{
		SamplePoints: 200,
		SettlingBand: 0.1,
	}
}

// Scenario is one fully wired circuit. It is simulated at most once.
type Scenario struct {
	Spec  Spec
	Conv  *power.Converter
	Law   control.Law
	Cost  *metrics.CostCalculator
	Trace *sim.Trace

	opts   Options
	result *sim.Result
}

// Build wires a converter, a law of the given kind and a cost calculator
// for spec.
func Build(reg *Registry, kind control.Kind, spec Spec, opts Options) (*Scenario, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	conv := power.NewConverter(spec.String())
	law, err := reg.GetLaw(kind, conv)
	if err != nil {
		return nil, err
	}
	for _, name := range sortedKeys(opts.Params) {
		if err := law.SetParam(name, opts.Params[name]); err != nil {
			return nil, errors.Wrapf(err, "scenario %s", spec)
		}
	}
	if s, ok := law.(interface{ Seed(uint64) }); ok && opts.Seed != 0 {
		s.Seed(opts.Seed)
	}

	c := conv.Circuit
	c.AddLabel(AxisEvent, 0, string(spec.Event))
	c.AddLabel(AxisVout, spec.OutputVoltage, formatSI(spec.OutputVoltage, "V"))
	c.AddLabel(AxisIout, spec.OutputCurrent, formatSI(spec.OutputCurrent, "A"))
	if spec.Event == EventLoadChange {
		c.AddLabel(AxisLoadChange, spec.LoadChange, fmt.Sprintf("%g", spec.LoadChange))
	}

	conv.Source.Voltage = power.Constant(spec.InputVoltage)
	conv.Load.Resistance = power.Constant(spec.OutputVoltage / spec.OutputCurrent)
	conv.OutputVoltage.Init(spec.OutputVoltage)
	law.Target().Set(0, spec.OutputVoltage)

	eventTime := law.EventTime()
	switch spec.Event {
	case EventInputDrop:
		conv.Source.Voltage.Set(eventTime, spec.InputVoltage-1)
	case EventLoadChange:
		conv.Load.Resistance.Set(eventTime, conv.Load.Resistance.At(0)/spec.LoadChange)
	case EventSetpointChange:
		law.Target().Set(eventTime, spec.OutputVoltage*1.2)
	case EventNone:
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", spec.Event)
	}

	cost := metrics.NewCostCalculator(c, law)
	cost.Metrics = metrics.DefaultMetrics(opts.SettlingBand)

	trace := sim.NewTrace(spec.String()).
		AddValue("Vout", "V", conv.OutputVoltage).
		AddValue("IL", "A", conv.InductorCurrent).
		AddValue("Vin", "V", conv.InputVoltage)
	for _, p := range law.Probes() {
		trace.Add(p.Name, p.Unit, p.Read)
	}
	trace.Add("Cost", "", func() float64 { return cost.CurrentCost })
	if opts.PlotStart > 0 || opts.PlotEnd > 0 {
		trace.Window(opts.PlotStart, opts.PlotEnd)
	}

	return &Scenario{
		Spec:  spec,
		Conv:  conv,
		Law:   law,
		Cost:  cost,
		Trace: trace,
		opts:  opts,
	}, nil
}

// Target implements optim.Candidate.
func (s *Scenario) Target() control.Law { return s.Law }

// Duration is the simulated time of the scenario.
func (s *Scenario) Duration() float64 {
	if s.opts.Duration > 0 {
		return s.opts.Duration
	}
	return s.Law.SimulationDuration()
}

// Run seeds the steady state from the current law coefficients and
// simulates the scenario.
func (s *Scenario) Run(ctx context.Context) (*sim.Result, error) {
	if s.result != nil {
		return nil, errors.Errorf("scenario %s already simulated", s.Spec)
	}
	if err := s.Law.InitializeSteadyState(); err != nil {
		return nil, errors.Wrapf(err, "scenario %s", s.Spec)
	}
	res, err := sim.New().Simulate(ctx, s.Conv.Circuit, sim.Config{
		FinalTime:    s.Duration(),
		SamplePoints: s.opts.SamplePoints,
	}, s.Trace)
	if err != nil {
		return res, err
	}
	s.result = res
	return res, nil
}

// Evaluate implements optim.Candidate: it runs the scenario and returns
// the total cost.
func (s *Scenario) Evaluate(ctx context.Context) (float64, error) {
	if _, err := s.Run(ctx); err != nil {
		return math.Inf(1), err
	}
	if math.IsNaN(s.Cost.TotalCost) {
		return math.Inf(1), errors.Errorf("scenario %s: cost is NaN", s.Spec)
	}
	return s.Cost.TotalCost, nil
}

func (s *Scenario) Result() *sim.Result { return s.result }

// Factory returns an optimizer factory building fresh scenarios for spec.
func Factory(reg *Registry, kind control.Kind, spec Spec, opts Options) optim.Factory[control.Law] {
	return func() (optim.Candidate[control.Law], error) {
		return Build(reg, kind, spec, opts)
	}
}

func formatSI(v float64, unit string) string {
	prefixes := []struct {
		scale  float64
		prefix string
	}{
		{1e9, "G"}, {1e6, "M"}, {1e3, "k"}, {1, ""}, {1e-3, "m"}, {1e-6, "u"}, {1e-9, "n"},
	}
	a := math.Abs(v)
	for _, p := range prefixes {
		if a >= p.scale {
			return fmt.Sprintf("%.4g%s%s", v/p.scale, p.prefix, unit)
		}
	}
	return fmt.Sprintf("%.4g%s", v, unit)
}
