package power

import (
	"context"
	"math"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/san-kum/smpsim/internal/sim"
)

func TestProfile(t *testing.T) {
	g := NewWithT(t)

	p := Constant(5).Set(0.02, 4).Set(0.01, 4.5)
	g.Expect(p.At(-1)).To(Equal(5.0))
	g.Expect(p.At(0)).To(Equal(5.0))
	g.Expect(p.At(0.01)).To(Equal(4.5))
	g.Expect(p.At(0.015)).To(Equal(4.5))
	g.Expect(p.At(1)).To(Equal(4.0))
	g.Expect(p.Breakpoints()).To(Equal([]float64{0, 0.01, 0.02}))

	next, ok := p.Next(0)
	g.Expect(ok).To(BeTrue())
	g.Expect(next).To(Equal(0.01))
	_, ok = p.Next(0.02)
	g.Expect(ok).To(BeFalse())

	p.Set(0.01, 3)
	g.Expect(p.At(0.01)).To(Equal(3.0))
	g.Expect(p.Breakpoints()).To(HaveLen(3))

	g.Expect(new(Profile).At(1)).To(Equal(0.0))
}

func TestDutyCalculator(t *testing.T) {
	tests := []struct {
		name       string
		freq       float64
		duty       float64
		continuous bool
		iL         float64
	}{
		{"discontinuous", 10.343e3, 0.4667, false, 0},
		{"continuous", 103.43e3, 0.5833, true, 0.0203},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := DutyCalculator{
				SwitchingFrequency: tt.freq,
				InputVoltage:       5,
				OutputVoltage:      12,
				OutputCurrent:      0.01,
				Inductance:         3.76e-3,
			}
			res, err := calc.Calculate()
			if err != nil {
				t.Fatalf("calculate failed: %v", err)
			}
			if math.Abs(res.Duty-tt.duty) > 1e-4 {
				t.Errorf("expected duty %.4f, got %.4f", tt.duty, res.Duty)
			}
			if res.Continuous != tt.continuous {
				t.Errorf("expected continuous=%v", tt.continuous)
			}
			if math.Abs(res.InitialInductorCurrent-tt.iL) > 1e-4 {
				t.Errorf("expected iL %.4f, got %.4f", tt.iL, res.InitialInductorCurrent)
			}
		})
	}
}

func TestDutyCalculatorContinuousAtBoundary(t *testing.T) {
	calc := DutyCalculator{
		SwitchingFrequency: 100e3,
		InputVoltage:       5,
		OutputVoltage:      12,
		Inductance:         DefaultInductance,
		DiodeDrop:          DefaultDiodeDrop,
	}
	ccmDuty := 1 - calc.InputVoltage/(calc.OutputVoltage+calc.DiodeDrop)
	ripple := calc.InputVoltage * ccmDuty * calc.Period() / calc.Inductance
	boundary := ripple / 2 * calc.InputVoltage / calc.OutputVoltage

	for _, scale := range []float64{1 - 1e-9, 1 + 1e-9} {
		calc.OutputCurrent = boundary * scale
		res, err := calc.Calculate()
		if err != nil {
			t.Fatalf("calculate failed: %v", err)
		}
		if res.Continuous != (scale > 1) {
			t.Errorf("scale %v: unexpected conduction mode continuous=%v", scale, res.Continuous)
		}
		if math.Abs(res.Duty-ccmDuty) > 1e-6 {
			t.Errorf("scale %v: duty %.8f differs from the continuous duty %.8f", scale, res.Duty, ccmDuty)
		}
	}
}

func TestDutyCalculatorRejectsBuck(t *testing.T) {
	calc := DutyCalculator{SwitchingFrequency: 1e3, InputVoltage: 12, OutputVoltage: 5, Inductance: 1e-3}
	if _, err := calc.Calculate(); err == nil {
		t.Error("expected error for vout < vin")
	}
}

func freewheeling() *Converter {
	conv := NewConverter("freewheel")
	conv.Source.Voltage = Constant(5)
	conv.OutputVoltage.Init(12)
	conv.Stage.IL = 0.05
	return conv
}

func TestStageZeroCrossing(t *testing.T) {
	g := NewWithT(t)

	conv := freewheeling()
	for _, e := range conv.Circuit.Elements() {
		g.Expect(e.Initialize()).To(Succeed())
	}
	conv.Circuit.Commit()

	end, ok := conv.Stage.StepEndTime(0)
	g.Expect(ok).To(BeTrue())
	vL := 5 - (12 + DefaultDiodeDrop + DefaultESR*0.05)
	g.Expect(end).To(BeNumerically("~", -DefaultInductance*0.05/vL, 1e-15))

	conv.Stage.Run(0, end, end)
	g.Expect(conv.Stage.IL).To(BeNumerically("~", 0, 1e-12))

	// past the crossing the diode blocks
	_, ok = conv.Stage.StepEndTime(end)
	g.Expect(ok).To(BeFalse())
	conv.Stage.Run(end, end+1e-3, 1e-3)
	g.Expect(conv.Stage.IL).To(Equal(0.0))
}

// switcher toggles the switch every half period starting with on.
type switcher struct {
	sim.BaseElement
	conv *Converter
	half float64
}

func (s *switcher) Name() string { return "switcher" }

func (s *switcher) StepEndTime(t float64) (float64, bool) {
	return (math.Floor(t/s.half+1e-9) + 1) * s.half, true
}

func (s *switcher) Run(stepStart, stepEnd, dt float64) {
	n := int64(math.Floor(stepEnd/s.half + 1e-9))
	s.conv.SwitchOn.Set(n%2 == 0)
}

func TestConverterBoostsWithoutReverseCurrent(t *testing.T) {
	g := NewWithT(t)

	conv := NewConverter("open-loop")
	conv.Source.Voltage = Constant(5)
	conv.Load.Resistance = Constant(1000)
	conv.OutputVoltage.Init(5)
	conv.Circuit.Register(&switcher{conv: conv, half: 5e-6})

	trace := sim.NewTrace("open-loop").
		AddValue("Vout", "V", conv.OutputVoltage).
		AddValue("IL", "A", conv.InductorCurrent)

	minIL := math.Inf(1)
	conv.Circuit.Register(&watcher{fn: func() {
		minIL = math.Min(minIL, conv.InductorCurrent.Get())
	}})

	_, err := sim.New().Simulate(context.Background(), conv.Circuit, sim.Config{FinalTime: 5e-3}, trace)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(minIL).To(BeNumerically(">=", 0))
	vout, ok := trace.Last("Vout")
	g.Expect(ok).To(BeTrue())
	g.Expect(vout).To(BeNumerically(">", 5))
}

type watcher struct {
	sim.BaseElement
	fn func()
}

func (w *watcher) Name() string                      { return "watcher" }
func (w *watcher) Run(stepStart, stepEnd, dt float64) { w.fn() }
