package power

import (
	"math"

	"github.com/pkg/errors"
)

// DutyCalculator computes the steady-state duty cycle of a boost converter
// and the inductor current at the start of a switching period.
type DutyCalculator struct {
	SwitchingFrequency float64
	InputVoltage       float64
	OutputVoltage      float64
	OutputCurrent      float64
	Inductance         float64
	DiodeDrop          float64
}

type DutyResult struct {
	Duty                   float64
	InitialInductorCurrent float64
	Continuous             bool
}

func (d DutyCalculator) Period() float64 { return 1 / d.SwitchingFrequency }

// InputCurrent assumes a lossless converter.
func (d DutyCalculator) InputCurrent() float64 {
	return d.OutputCurrent * d.OutputVoltage / d.InputVoltage
}

func (d DutyCalculator) Calculate() (DutyResult, error) {
	if !(d.SwitchingFrequency > 0) || !(d.Inductance > 0) || !(d.InputVoltage > 0) {
		return DutyResult{}, errors.Errorf("duty: invalid design f=%g L=%g vin=%g",
			d.SwitchingFrequency, d.Inductance, d.InputVoltage)
	}
	if d.OutputVoltage <= d.InputVoltage {
		return DutyResult{}, errors.Errorf("duty: boost needs vout > vin, got %g <= %g", d.OutputVoltage, d.InputVoltage)
	}

	// the diode drop adds to the output voltage the inductor discharges into
	vOut := d.OutputVoltage + d.DiodeDrop
	ccmDuty := 1 - d.InputVoltage/vOut
	ripple := d.InputVoltage * ccmDuty * d.Period() / d.Inductance
	iIn := d.InputCurrent()

	if iIn > ripple/2 {
		return DutyResult{
			Duty:                   ccmDuty,
			InitialInductorCurrent: iIn - ripple/2,
			Continuous:             true,
		}, nil
	}

	// discontinuous: the current falls to zero within the period, with a
	// fall time of k times the on time
	k := d.InputVoltage / (vOut - d.InputVoltage)
	duty := math.Sqrt(2 * d.Inductance * iIn / ((k + 1) * d.InputVoltage * d.Period()))
	return DutyResult{Duty: duty}, nil
}
