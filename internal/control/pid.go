package control

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/optim"
	"github.com/san-kum/smpsim/internal/power"
	"github.com/san-kum/smpsim/internal/sim"
)

const (
	DefaultPIDKp = 3.778e-3
	DefaultPIDKi = 1.431e-4
	DefaultPIDKd = 1.031e-5
)

// PID regulates the duty cycle from the output voltage error in ADC
// counts. The integral is clamped to ±1/Ki so its contribution stays
// within a duty of one.
type PID struct {
	Base

	Kp float64
	Ki float64
	Kd float64

	SwitchingFrequency float64
	ControlFrequency   float64
	MinDuty            float64
	MaxDuty            float64

	Duty     float64
	Integral int64

	lastError int64
}

func NewPID(conv *power.Converter) *PID {
	p := &PID{
		Kp:                 DefaultPIDKp,
		Ki:                 DefaultPIDKi,
		Kd:                 DefaultPIDKd,
		SwitchingFrequency: 7e3,
		ControlFrequency:   7e3,
		MinDuty:            0.001,
		MaxDuty:            0.99,
		Duty:               0.5,
	}
	p.setup(conv, string(KindPID), p, p.control)
	conv.Circuit.Register(p)
	return p
}

func (p *PID) Kind() Kind { return KindPID }

func (p *PID) Initialize() error {
	if err := p.Base.Initialize(); err != nil {
		return err
	}
	v, err := p.Calc.CalculateChecked(p.SwitchingFrequency, p.Duty)
	if err != nil {
		return errors.Wrapf(ErrInvalidFrequency, "switching: %v", err)
	}
	if err := p.PWMTimer.Apply(v); err != nil {
		return err
	}
	p.PWMChannel.Compare = v.Compare
	p.ADCChannel.Compare = int64(float64(v.Reload) * 0.05)
	p.Conv.Duty.Init(p.Duty)
	return p.configureControlTimer(p.ControlFrequency)
}

func (p *PID) control(instant float64) error {
	adc := int64(p.readADC(ChannelVout, 1, p.noisyADC))
	e := VoltageToADC(p.TargetVoltage.At(instant)) - adc

	if p.Ki != 0 {
		p.Integral += e
		limit := int64(1 / p.Ki)
		p.Integral = max(-limit, min(limit, p.Integral))
	}
	diff := float64(e - p.lastError)

	duty := float64(e)*p.Kp + float64(p.Integral)*p.Ki + diff*p.Kd
	if math.IsNaN(duty) {
		return errors.Wrapf(ErrInvalidDuty, "kP=%g kI=%g kD=%g", p.Kp, p.Ki, p.Kd)
	}
	p.Duty = math.Max(p.MinDuty, math.Min(duty, p.MaxDuty))
	p.lastError = e

	p.PWMChannel.Compare = int64(p.Duty * float64(p.PWMTimer.Reload))
	p.Conv.Duty.Set(p.Duty)
	return nil
}

// InitializeSteadyState seeds duty, integral and inductor current from the
// analytic steady state and primes the output voltage history with the
// target.
func (p *PID) InitializeSteadyState() error {
	res, err := p.dutyCalculator(p.SwitchingFrequency).Calculate()
	if err != nil {
		return errors.Wrap(err, "pid steady state")
	}
	p.Duty = res.Duty
	if p.Ki != 0 {
		p.Integral = int64(p.Duty / p.Ki)
	}
	p.Conv.Stage.IL = res.InitialInductorCurrent
	p.fillADC(ChannelVout, p.TargetVoltage.At(0))
	return nil
}

func (p *PID) SetPoint() float64 { return p.Duty }

func (p *PID) ParameterInfo() string {
	return fmt.Sprintf("kP: %.3e   kI: %.3e   kD: %.3e", p.Kp, p.Ki, p.Kd)
}

func (p *PID) SimulationDuration() float64 { return 400 / p.ControlFrequency }

func (p *PID) EventTime() float64 { return 200 / p.ControlFrequency }

func (p *PID) Parameters() []optim.Parameter[Law] {
	return []optim.Parameter[Law]{
		logParameter("kP", p.Kp, 2, func(t *PID, v float64) { t.Kp = v }),
		logParameter("kI", p.Ki, 2, func(t *PID, v float64) { t.Ki = v }),
		logParameter("kD", p.Kd, 2, func(t *PID, v float64) { t.Kd = v }),
	}
}

func (p *PID) Probes() []sim.Probe {
	return append(p.baseProbes(),
		sim.Probe{Name: "Duty", Unit: "", Read: func() float64 { return p.Duty }},
		sim.Probe{Name: "Integral", Unit: "", Read: func() float64 { return float64(p.Integral) }},
	)
}

func (p *PID) fields() fields {
	return fields{
		"kP":  &p.Kp,
		"kI":  &p.Ki,
		"kD":  &p.Kd,
		"fsw": &p.SwitchingFrequency,
		"fc":  &p.ControlFrequency,
	}
}

func (p *PID) GetParams() map[string]float64 { return p.fields().get() }

func (p *PID) SetParam(name string, value float64) error { return p.fields().set(name, value) }
