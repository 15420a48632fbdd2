package control

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/optim"
	"github.com/san-kum/smpsim/internal/power"
	"github.com/san-kum/smpsim/internal/sim"
)

// StepUpDown raises the duty by Step when the output is below target and
// lowers it otherwise, once per control cycle.
type StepUpDown struct {
	Base

	Step               float64
	MaxDuty            float64
	SwitchingFrequency float64
	ControlFrequency   float64

	Duty float64
}

func NewStepUpDown(conv *power.Converter) *StepUpDown {
	s := &StepUpDown{
		Step:               0.01,
		MaxDuty:            0.6,
		SwitchingFrequency: 100e3,
		ControlFrequency:   10e3,
	}
	s.setup(conv, string(KindStepUpDown), s, s.control)
	conv.Circuit.Register(s)
	return s
}

func (s *StepUpDown) Kind() Kind { return KindStepUpDown }

func (s *StepUpDown) Initialize() error {
	if err := s.Base.Initialize(); err != nil {
		return err
	}
	if err := s.setPWM(s.SwitchingFrequency, s.Duty); err != nil {
		return err
	}
	s.ADCChannel.Compare = 0
	s.Conv.Duty.Init(s.Duty)
	return s.configureControlTimer(s.ControlFrequency)
}

func (s *StepUpDown) control(instant float64) error {
	if s.readADC(ChannelVout, 1, nil) < s.TargetVoltage.At(instant) {
		s.Duty += s.Step
	} else {
		s.Duty -= s.Step
	}
	s.Duty = max(0, min(s.Duty, s.MaxDuty))

	s.PWMChannel.Compare = int64(s.Duty * float64(s.PWMTimer.Reload))
	s.Conv.Duty.Set(s.Duty)
	return nil
}

func (s *StepUpDown) InitializeSteadyState() error {
	res, err := s.dutyCalculator(s.SwitchingFrequency).Calculate()
	if err != nil {
		return errors.Wrap(err, "stepupdown steady state")
	}
	s.Duty = min(res.Duty, s.MaxDuty)
	s.fillADC(ChannelVout, s.TargetVoltage.At(0))
	return nil
}

func (s *StepUpDown) SetPoint() float64 { return s.Duty }

func (s *StepUpDown) ParameterInfo() string {
	return fmt.Sprintf("step: %.3e", s.Step)
}

func (s *StepUpDown) SimulationDuration() float64 { return 200 / s.SwitchingFrequency }

func (s *StepUpDown) EventTime() float64 { return 5 / s.SwitchingFrequency }

func (s *StepUpDown) Parameters() []optim.Parameter[Law] {
	p := logParameter("step", s.Step, 5, func(t *StepUpDown, v float64) { t.Step = v })
	p.Lower, p.Upper = -10, 10
	return []optim.Parameter[Law]{p}
}

func (s *StepUpDown) Probes() []sim.Probe {
	return append(s.baseProbes(),
		sim.Probe{Name: "Duty", Unit: "", Read: func() float64 { return s.Duty }},
	)
}

func (s *StepUpDown) fields() fields {
	return fields{
		"step":    &s.Step,
		"maxduty": &s.MaxDuty,
		"fsw":     &s.SwitchingFrequency,
		"fc":      &s.ControlFrequency,
	}
}

func (s *StepUpDown) GetParams() map[string]float64 { return s.fields().get() }

func (s *StepUpDown) SetParam(name string, value float64) error { return s.fields().set(name, value) }
