package control

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/power"
	"github.com/san-kum/smpsim/internal/sim"
	"github.com/san-kum/smpsim/internal/timer"
)

// ADC model: 12 bit over 20 V, Gaussian conversion noise in counts.
const (
	AdcFullScale = 20.0
	AdcCounts    = 4096
	AdcNoise     = 4.48
	AdcDepth     = 4
)

// ADC channels, sampled alternately on every trigger.
const (
	ChannelVout = iota
	ChannelVin
)

func VoltageToADC(v float64) int64 {
	return int64(v / AdcFullScale * AdcCounts)
}

func ADCToVoltage(adc int64) float64 {
	return float64(adc) / AdcCounts * AdcFullScale
}

// Base couples the PWM and control timers and the ADC queues to the
// converter. PWM channel 0 turns the switch off, channel 1 triggers the
// ADC; the PWM reload turns the switch on unless channel 0 is disabled.
type Base struct {
	sim.BaseElement

	Conv          *power.Converter
	TargetVoltage *power.Profile
	Calc          timer.Calculator

	PWMTimer     *timer.Timer
	PWMChannel   *timer.Channel
	ADCChannel   *timer.Channel
	ControlTimer *timer.Timer

	// MeasuredVoltage is the latest output voltage conversion.
	MeasuredVoltage float64

	name     string
	queues   [2][]float64
	adcCount int64
	rng      *rand.Rand
	control  func(instant float64) error
}

// setup creates the timers, registered with the converter circuit, and
// routes their events to h.
func (b *Base) setup(conv *power.Converter, name string, h sim.EventHandler, control func(float64) error) {
	b.Conv = conv
	b.name = name
	b.TargetVoltage = power.Constant(0)
	b.Calc = timer.NewCalculator()
	b.PWMTimer = timer.New(conv.Circuit, name+".pwm", h)
	b.PWMChannel = b.PWMTimer.AddChannel()
	b.ADCChannel = b.PWMTimer.AddChannel()
	b.ControlTimer = timer.New(conv.Circuit, name+".control", h)
	for i := range b.queues {
		b.queues[i] = make([]float64, AdcDepth)
	}
	b.rng = rand.New(rand.NewPCG(0, 0))
	b.control = control
}

// Seed reseeds the ADC noise source.
func (b *Base) Seed(seed uint64) {
	b.rng = rand.New(rand.NewPCG(seed, 0))
}

func (b *Base) Name() string { return b.name }

func (b *Base) Initialize() error {
	b.Conv.SwitchOn.Init(true)
	b.MeasuredVoltage = b.Conv.OutputVoltage.Get()
	return nil
}

func (b *Base) Target() *power.Profile { return b.TargetVoltage }

func (b *Base) TargetValue(t float64) float64 { return b.TargetVoltage.At(t) }

func (b *Base) ActualValue() float64 { return b.MeasuredVoltage }

func (b *Base) HandleEvent(ev sim.Event) error {
	switch ev.Source {
	case b.PWMTimer:
		switch {
		case ev.Kind == sim.EventReload:
			if !b.PWMChannel.DisableApplied() {
				b.Conv.SwitchOn.Set(true)
			}
		case ev.Channel == b.PWMChannel.Index():
			b.Conv.SwitchOn.Set(false)
		case ev.Channel == b.ADCChannel.Index():
			b.Conv.Circuit.AfterCommit(b.sampleADC)
		}
	case b.ControlTimer:
		if ev.Kind == sim.EventReload && b.control != nil {
			return b.control(ev.Instant)
		}
	}
	return nil
}

// sampleADC runs after commit so the conversion sees the values at the
// trigger instant.
func (b *Base) sampleADC() {
	switch b.adcCount % int64(len(b.queues)) {
	case ChannelVout:
		v := b.Conv.OutputVoltage.Get()
		b.push(ChannelVout, v)
		b.MeasuredVoltage = v
	case ChannelVin:
		b.push(ChannelVin, b.Conv.InputVoltage.Get())
	}
	b.adcCount++
}

func (b *Base) push(channel int, v float64) {
	q := b.queues[channel]
	copy(q, q[1:])
	q[len(q)-1] = v
}

// fillADC overwrites the whole history of a channel.
func (b *Base) fillADC(channel int, v float64) {
	for i := range b.queues[channel] {
		b.queues[channel][i] = v
	}
}

// readADC averages the latest samples of a channel after mapping each one
// through fn. A nil fn averages the raw voltages.
func (b *Base) readADC(channel, samples int, fn func(float64) float64) float64 {
	q := b.queues[channel]
	if samples > len(q) {
		samples = len(q)
	}
	if samples < 1 {
		samples = 1
	}
	sum := 0.0
	for i := 1; i <= samples; i++ {
		v := q[len(q)-i]
		if fn != nil {
			v = fn(v)
		}
		sum += v
	}
	return sum / float64(samples)
}

// noisyADC converts v to counts with conversion noise.
func (b *Base) noisyADC(v float64) float64 {
	return float64(VoltageToADC(v)) + b.rng.NormFloat64()*AdcNoise
}

func (b *Base) configureControlTimer(frequency float64) error {
	v, err := b.Calc.CalculateChecked(frequency, 0.1)
	if err != nil {
		return errors.Wrapf(ErrInvalidFrequency, "control timer: %v", err)
	}
	return b.ControlTimer.Apply(v)
}

// setPWM loads period and turn-off compare for frequency and duty. The
// values take effect at the next PWM period.
func (b *Base) setPWM(frequency, duty float64) error {
	v, err := b.Calc.CalculateChecked(frequency, duty)
	if err != nil {
		return errors.Wrapf(ErrInvalidFrequency, "%.6g Hz: %v", frequency, err)
	}
	if err := b.PWMTimer.Apply(v); err != nil {
		return err
	}
	b.PWMChannel.Compare = v.Compare
	return nil
}

func (b *Base) baseProbes() []sim.Probe {
	return []sim.Probe{
		{Name: "Vm", Unit: "V", Read: func() float64 { return b.MeasuredVoltage }},
		{Name: "PWM Enabled", Unit: "", Read: func() float64 {
			if b.PWMChannel.DisableApplied() {
				return 0
			}
			return 1
		}},
	}
}

// dutyCalculator is the steady-state design for the scenario at t=0.
func (b *Base) dutyCalculator(switchingFrequency float64) power.DutyCalculator {
	vOut := b.TargetVoltage.At(0)
	return power.DutyCalculator{
		SwitchingFrequency: switchingFrequency,
		InputVoltage:       b.Conv.Source.Voltage.At(0),
		OutputVoltage:      vOut,
		OutputCurrent:      b.Conv.Load.Current(vOut, 0),
		Inductance:         b.Conv.Stage.Inductance,
		DiodeDrop:          b.Conv.Stage.DiodeDrop,
	}
}
