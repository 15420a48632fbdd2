// Package power models the boost converter plant: input source, resistive
// load and the switching stage with inductor, diode and output capacitor.
package power

import (
	"math"

	"github.com/san-kum/smpsim/internal/sim"
)

const (
	DefaultInductance  = 3.76e-4
	DefaultCapacitance = 100e-6
	DefaultDiodeDrop   = 0.2
	DefaultESR         = 0.1
)

// Converter is the shared plant of one scenario. The control law drives
// SwitchOn; everything else is produced by the plant elements.
type Converter struct {
	Circuit *sim.Circuit

	SwitchOn        *sim.Value[bool]
	InputVoltage    *sim.Value[float64]
	LoadCurrent     *sim.Value[float64]
	OutputVoltage   *sim.Value[float64]
	InductorCurrent *sim.Value[float64]
	Duty            *sim.Value[float64]

	Source *Source
	Load   *Load
	Stage  *Stage
}

// NewConverter builds a circuit with source, load and stage registered in
// that order.
func NewConverter(name string) *Converter {
	c := sim.NewCircuit(name)
	conv := &Converter{
		Circuit:         c,
		SwitchOn:        sim.NewValue(c, false),
		InputVoltage:    sim.NewValue(c, 0.0),
		LoadCurrent:     sim.NewValue(c, 0.0),
		OutputVoltage:   sim.NewValue(c, 0.0),
		InductorCurrent: sim.NewValue(c, 0.0),
		Duty:            sim.NewValue(c, 0.0),
	}
	conv.Source = &Source{conv: conv, Voltage: Constant(0)}
	conv.Load = &Load{conv: conv, Resistance: Constant(math.Inf(1))}
	conv.Stage = &Stage{
		conv:        conv,
		Inductance:  DefaultInductance,
		Capacitance: DefaultCapacitance,
		DiodeDrop:   DefaultDiodeDrop,
		ESR:         DefaultESR,
	}
	c.Register(conv.Source)
	c.Register(conv.Load)
	c.Register(conv.Stage)
	return conv
}

// Source drives the input voltage from its profile.
type Source struct {
	sim.BaseElement
	conv    *Converter
	Voltage *Profile
}

func (s *Source) Name() string { return "source" }

func (s *Source) Initialize() error {
	s.conv.InputVoltage.Init(s.Voltage.At(0))
	return nil
}

func (s *Source) StepEndTime(t float64) (float64, bool) {
	return s.Voltage.Next(t)
}

func (s *Source) Run(stepStart, stepEnd, dt float64) {
	s.conv.InputVoltage.Set(s.Voltage.At(stepEnd))
}

// Load is a resistive load following its resistance profile.
type Load struct {
	sim.BaseElement
	conv       *Converter
	Resistance *Profile
}

func (l *Load) Name() string { return "load" }

// Current returns the load current at output voltage v and instant t.
func (l *Load) Current(v, t float64) float64 {
	return v / l.Resistance.At(t)
}

func (l *Load) Initialize() error {
	l.conv.LoadCurrent.Init(l.Current(l.conv.OutputVoltage.Get(), 0))
	return nil
}

func (l *Load) StepEndTime(t float64) (float64, bool) {
	return l.Resistance.Next(t)
}

func (l *Load) Run(stepStart, stepEnd, dt float64) {
	l.conv.LoadCurrent.Set(l.Current(l.conv.OutputVoltage.Get(), stepEnd))
}

// Stage integrates inductor current and capacitor voltage across a step.
// The diode blocks reverse inductor current.
type Stage struct {
	sim.BaseElement
	conv *Converter

	Inductance  float64
	Capacitance float64
	DiodeDrop   float64
	ESR         float64

	// IL is the inductor current state, seeded by steady-state initialization.
	IL               float64
	CapacitorVoltage float64
}

func (s *Stage) Name() string { return "stage" }

func (s *Stage) Initialize() error {
	s.CapacitorVoltage = s.conv.OutputVoltage.Get()
	s.conv.InductorCurrent.Init(s.IL)
	return nil
}

func (s *Stage) inductorVoltage() float64 {
	vIn := s.conv.InputVoltage.Get()
	if s.conv.SwitchOn.Get() {
		return vIn
	}
	return vIn - (s.conv.OutputVoltage.Get() + s.DiodeDrop + s.ESR*(s.IL-s.conv.LoadCurrent.Get()))
}

func (s *Stage) Run(stepStart, stepEnd, dt float64) {
	vL := s.inductorVoltage()
	prev := s.IL
	s.IL = math.Max(s.IL+vL*dt/s.Inductance, 0)

	iC := 0.0
	if !s.conv.SwitchOn.Get() {
		iC = (s.IL + prev) / 2
	}
	iC -= s.conv.LoadCurrent.Get()

	s.CapacitorVoltage += iC * dt / s.Capacitance
	s.conv.OutputVoltage.Set(s.CapacitorVoltage + s.ESR*iC)
	s.conv.InductorCurrent.Set(s.IL)
}

// StepEndTime predicts when a freewheeling inductor current reaches zero,
// so the step into discontinuous conduction ends exactly there.
func (s *Stage) StepEndTime(t float64) (float64, bool) {
	vL := s.inductorVoltage()
	if vL < -1e-8 && s.IL > 1e-8 {
		return t - s.Inductance*s.IL/vL, true
	}
	return 0, false
}
