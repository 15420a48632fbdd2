package timer

import (
	"math"

	"github.com/pkg/errors"
)

// Values are the register settings for one PWM configuration.
type Values struct {
	Prescale int64
	Reload   int64
	Compare  int64
}

// Calculator derives register values for a target frequency and duty on a
// timer with the given clock and counter width.
type Calculator struct {
	Clock float64
	Bits  uint
}

func NewCalculator() Calculator {
	return Calculator{Clock: DefaultClock, Bits: 16}
}

// Calculate picks the smallest prescale that fits the period into the
// counter, then rounds reload and compare to the nearest tick.
func (c Calculator) Calculate(frequency, duty float64) Values {
	prescale := int64(math.Ceil(c.Clock/(float64(uint64(1)<<c.Bits)*frequency))) - 1
	if prescale < 0 {
		prescale = 0
	}
	reload := int64(math.Round(c.Clock / (float64(prescale+1) * frequency)))
	return Values{
		Prescale: prescale,
		Reload:   reload,
		Compare:  int64(math.Round(float64(reload) * duty)),
	}
}

// CalculateChecked is Calculate with input validation.
func (c Calculator) CalculateChecked(frequency, duty float64) (Values, error) {
	if !(frequency > 0) || math.IsInf(frequency, 0) {
		return Values{}, errors.Errorf("pwm: invalid frequency %g", frequency)
	}
	if math.IsNaN(duty) {
		return Values{}, errors.New("pwm: duty is NaN")
	}
	v := c.Calculate(frequency, duty)
	if v.Reload <= 0 {
		return v, errors.Wrapf(ErrInvalidReload, "pwm: %g Hz exceeds clock %g Hz", frequency, c.Clock)
	}
	return v, nil
}

// Frequency is the PWM frequency the values produce.
func (c Calculator) Frequency(v Values) float64 {
	return c.Clock / (float64(v.Prescale+1) * float64(v.Reload))
}
