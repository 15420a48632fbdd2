package control

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/optim"
	"github.com/san-kum/smpsim/internal/power"
	"github.com/san-kum/smpsim/internal/sim"
)

type Mode int

const (
	ModeCOT Mode = iota
	ModeCycleSkipping
)

func (m Mode) String() string {
	switch m {
	case ModeCOT:
		return "COT"
	case ModeCycleSkipping:
		return "CYCLE_SKIPPING"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type Transition struct {
	Time float64
	From Mode
	To   Mode
}

// COT switches with a constant on-time that reaches PeakCurrent and
// regulates the output current through the switching frequency. When the
// required current is below what the lowest allowed frequency delivers,
// it falls back to cycle skipping: fixed-period pulses only while the
// output is below target.
type COT struct {
	Base

	Kp          float64
	Ki          float64
	Kd          float64
	AlphaLast   float64
	AlphaFactor float64

	ControlFrequency     float64
	PeakCurrent          float64
	IdleFraction         float64
	StartupVoltageFactor float64

	// UnderFrequencyLimit is the number of consecutive control cycles below
	// the COT current limit tolerated before switching to cycle skipping.
	UnderFrequencyLimit int
	// EnableHysteresis is the number of PWM periods the output must be
	// continuously enabled in cycle skipping before returning to COT.
	EnableHysteresis float64
	// VarianceFactor scales the measurement variance the squared error
	// must stay below for a return to COT.
	VarianceFactor float64

	Mode        Mode
	Frequency   float64
	Integral    float64
	Transitions []Transition

	errorS               float64
	lastError            float64
	diff                 float64
	adcError             int64
	underFrequencyCycles int
	pwmEnabledTime       float64
	minTime              float64
	stats                *MovingStatistic
}

func NewCOT(conv *power.Converter) *COT {
	c := &COT{
		Kp:                   7.5e-5,
		Ki:                   7.8e-5,
		Kd:                   1.4e-5,
		AlphaLast:            1,
		AlphaFactor:          1,
		ControlFrequency:     10e3,
		PeakCurrent:          60e-3,
		IdleFraction:         0.1,
		StartupVoltageFactor: 1.1,
		UnderFrequencyLimit:  5,
		EnableHysteresis:     6,
		VarianceFactor:       2,
	}
	c.stats = NewMovingStatistic(5/c.ControlFrequency, 1/c.ControlFrequency)
	c.setup(conv, string(KindCOT), c, c.control)
	conv.Circuit.Register(c)
	return c
}

func (c *COT) Kind() Kind { return KindCOT }

func (c *COT) Initialize() error {
	if err := c.Base.Initialize(); err != nil {
		return err
	}
	if err := c.configureControlTimer(c.ControlFrequency); err != nil {
		return err
	}
	// run once so the PWM timer starts with valid values
	return c.control(0)
}

// cotLimitTime is the longest COT period, two control periods.
func (c *COT) cotLimitTime() float64 { return 2 / c.ControlFrequency }

// current is the average output current of a triangular pulse with the
// given fall time repeating every period.
func (c *COT) current(fallTime, period float64) float64 {
	return c.PeakCurrent * fallTime / (2 * period)
}

func (c *COT) switchMode(instant float64, to Mode) {
	if c.Mode != to {
		c.Transitions = append(c.Transitions, Transition{Time: instant, From: c.Mode, To: to})
	}
	c.Mode = to
}

func (c *COT) control(instant float64) error {
	vOutAdc := int64(c.readADC(ChannelVout, 1, c.noisyADC))
	c.stats.Add(float64(vOutAdc))
	vOut := ADCToVoltage(vOutAdc)
	vIn := ADCToVoltage(int64(c.readADC(ChannelVin, 1, c.noisyADC)))
	if vIn <= 0 {
		return errors.Wrapf(ErrInvalidFrequency, "input voltage reads %.3g V", vIn)
	}

	ind := c.Conv.Stage.Inductance
	limitTime := c.cotLimitTime()
	onTime := ind * c.PeakCurrent / vIn
	fallTime := ind * c.PeakCurrent / (math.Max(vOut, vIn*c.StartupVoltageFactor) - vIn)
	c.minTime = (onTime + fallTime) / (1 - c.IdleFraction)
	iOutMax := c.current(fallTime, c.minTime)
	iCotLimit := c.current(fallTime, limitTime)

	targetAdc := VoltageToADC(c.TargetVoltage.At(instant))
	c.adcError = targetAdc - vOutAdc
	e := float64(c.adcError)

	if limitTime < c.minTime {
		c.switchMode(instant, ModeCycleSkipping)
		c.pwmEnabledTime = 0
	}

	switch c.Mode {
	case ModeCOT:
		c.Integral = math.Max(math.Min(c.Integral, iOutMax), iCotLimit)

		a := c.AlphaLast * c.AlphaFactor
		c.errorS = a*e + (1-a)*c.errorS
		c.Integral += c.Ki * c.errorS
		c.diff = c.errorS - c.lastError

		out := c.errorS*c.Kp + c.Integral + c.diff*c.Kd
		if math.IsNaN(out) {
			return errors.Wrapf(ErrInvalidDuty, "output current is NaN (kP=%g kI=%g kD=%g)", c.Kp, c.Ki, c.Kd)
		}
		out = math.Min(out, iOutMax)
		if out < iCotLimit {
			c.underFrequencyCycles++
			out = iCotLimit
			c.PWMChannel.Disable = true
		} else {
			c.underFrequencyCycles = 0
			c.PWMChannel.Disable = false
		}

		cycleTime := c.PeakCurrent * fallTime / (2 * out)
		c.Frequency = 1 / cycleTime
		if c.underFrequencyCycles > c.UnderFrequencyLimit {
			c.switchMode(instant, ModeCycleSkipping)
			c.PWMChannel.Disable = false
			c.pwmEnabledTime = 0
		} else if err := c.setPWM(c.Frequency, onTime/cycleTime); err != nil {
			return err
		}

		c.lastError = c.AlphaLast*e + (1-c.AlphaLast)*c.lastError

	case ModeCycleSkipping:
		period := math.Max(c.minTime, limitTime/2)
		c.Frequency = 1 / period
		if err := c.setPWM(c.Frequency, onTime/period); err != nil {
			return err
		}

		if vOutAdc > targetAdc {
			c.PWMChannel.Disable = true
			c.pwmEnabledTime = 0
			break
		}
		c.PWMChannel.Disable = false
		c.pwmEnabledTime += (1 / c.ControlFrequency) / period
		if c.pwmEnabledTime > c.EnableHysteresis && e*e < c.VarianceFactor*c.stats.Variance {
			c.switchMode(instant, ModeCOT)
			c.Integral = c.current(fallTime, period)
			c.errorS = e
			c.lastError = e
			c.underFrequencyCycles = 0
		}
	}
	return nil
}

// InitializeSteadyState picks the starting mode from the current the load
// draws at the target voltage.
func (c *COT) InitializeSteadyState() error {
	vIn := c.Conv.Source.Voltage.At(0)
	if !(vIn > 0) {
		return errors.Errorf("cot steady state: input voltage %g", vIn)
	}
	vOut := math.Max(c.TargetVoltage.At(0), vIn*c.StartupVoltageFactor)
	ind := c.Conv.Stage.Inductance
	chargeTime := ind * c.PeakCurrent / vIn
	dischargeTime := ind * c.PeakCurrent / (vOut - vIn)
	minCycle := (chargeTime + dischargeTime) / (1 - c.IdleFraction)

	iOut := math.Min(c.Conv.Load.Current(vOut, 0), c.current(dischargeTime, minCycle))
	c.stats.Average = float64(VoltageToADC(vOut))

	if iOut <= 0 || c.PeakCurrent*dischargeTime/(2*iOut) > c.cotLimitTime() {
		c.Mode = ModeCycleSkipping
		c.PWMChannel.Disable = true
	} else {
		c.Mode = ModeCOT
		c.Integral = iOut
	}

	c.fillADC(ChannelVout, c.TargetVoltage.At(0))
	c.fillADC(ChannelVin, vIn)
	return nil
}

// SetPoint is the switching frequency in units of the control frequency.
func (c *COT) SetPoint() float64 { return c.Frequency / c.ControlFrequency }

func (c *COT) ParameterInfo() string {
	return fmt.Sprintf("kP: %.3e   kI: %.3e   kD: %.3e   aL: %.3e   aF: %.3e",
		c.Kp, c.Ki, c.Kd, c.AlphaLast, c.AlphaFactor)
}

func (c *COT) SimulationDuration() float64 { return 400 / c.ControlFrequency }

func (c *COT) EventTime() float64 { return 100 / c.ControlFrequency }

func (c *COT) Parameters() []optim.Parameter[Law] {
	return []optim.Parameter[Law]{
		logParameter("kP", c.Kp, 2, func(t *COT, v float64) { t.Kp = v }),
		logParameter("kI", c.Ki, 2, func(t *COT, v float64) { t.Ki = v }),
		logParameter("kD", c.Kd, 2, func(t *COT, v float64) { t.Kd = v }),
	}
}

func (c *COT) Probes() []sim.Probe {
	return append(c.baseProbes(),
		sim.Probe{Name: "Mode", Unit: "", Read: func() float64 {
			if c.Mode == ModeCycleSkipping {
				return 0
			}
			return 1
		}},
		sim.Probe{Name: "Frequency", Unit: "Hz", Read: func() float64 { return c.Frequency }},
		sim.Probe{Name: "Integral", Unit: "A", Read: func() float64 { return c.Integral }},
		sim.Probe{Name: "Error", Unit: "", Read: func() float64 { return float64(c.adcError) }},
	)
}

func (c *COT) fields() fields {
	return fields{
		"kP":     &c.Kp,
		"kI":     &c.Ki,
		"kD":     &c.Kd,
		"aL":     &c.AlphaLast,
		"aF":     &c.AlphaFactor,
		"fc":     &c.ControlFrequency,
		"ipeak":  &c.PeakCurrent,
		"idle":   &c.IdleFraction,
		"vstart": &c.StartupVoltageFactor,
	}
}

func (c *COT) GetParams() map[string]float64 { return c.fields().get() }

func (c *COT) SetParam(name string, value float64) error {
	if err := c.fields().set(name, value); err != nil {
		return err
	}
	if name == "fc" {
		c.stats = NewMovingStatistic(5/c.ControlFrequency, 1/c.ControlFrequency)
	}
	return nil
}
