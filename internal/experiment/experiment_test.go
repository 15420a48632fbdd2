package experiment

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/charmbracelet/log"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/optim"
)

func TestDefaultMatrix(t *testing.T) {
	g := NewWithT(t)
	specs := DefaultMatrix().Specs()
	g.Expect(specs).To(HaveLen(2 + 2 + 6*2 + 2))

	g.Expect(specs[0]).To(Equal(Spec{Event: EventNone, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.001}))
	g.Expect(specs[4].Event).To(Equal(EventLoadChange))
	g.Expect(specs[4].LoadChange).To(Equal(10.0))
	g.Expect(specs[5].LoadChange).To(Equal(10.0))
	g.Expect(specs[6].LoadChange).To(Equal(1.2))
	g.Expect(specs[len(specs)-1].Event).To(Equal(EventSetpointChange))
	g.Expect(specs[len(specs)-1].LoadChange).To(BeZero())
}

func TestParseNames(t *testing.T) {
	g := NewWithT(t)
	ev, err := ParseEvent("input-drop")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ev).To(Equal(EventInputDrop))
	_, err = ParseEvent("brownout")
	g.Expect(errors.Is(err, ErrUnknownEvent)).To(BeTrue())

	v, err := ParseVariant("OPTIMIZE_ALL")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal(VariantOptimizeAll))
}

func TestBuildAppliesEvents(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		spec  Spec
		check func(g Gomega, s *Scenario, at float64)
	}{
		{
			spec: Spec{Event: EventInputDrop, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01},
			check: func(g Gomega, s *Scenario, at float64) {
				g.Expect(s.Conv.Source.Voltage.At(at)).To(Equal(4.0))
			},
		},
		{
			spec: Spec{Event: EventLoadChange, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01, LoadChange: 10},
			check: func(g Gomega, s *Scenario, at float64) {
				g.Expect(s.Conv.Load.Resistance.At(0)).To(Equal(1200.0))
				g.Expect(s.Conv.Load.Resistance.At(at)).To(Equal(120.0))
			},
		},
		{
			spec: Spec{Event: EventSetpointChange, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01},
			check: func(g Gomega, s *Scenario, at float64) {
				g.Expect(s.Law.TargetValue(at)).To(BeNumerically("~", 14.4, 1e-12))
			},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.spec.Event), func(t *testing.T) {
			g := NewWithT(t)
			s, err := Build(reg, control.KindPID, tt.spec, DefaultOptions())
			g.Expect(err).NotTo(HaveOccurred())
			at := s.Law.EventTime()
			g.Expect(s.Law.TargetValue(0)).To(Equal(12.0))
			tt.check(g, s, at)
		})
	}
}

func TestBuildLabelsAndTrace(t *testing.T) {
	g := NewWithT(t)
	spec := Spec{Event: EventLoadChange, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.001, LoadChange: 0.5}
	s, err := Build(NewRegistry(), control.KindCOT, spec, DefaultOptions())
	g.Expect(err).NotTo(HaveOccurred())

	labels := s.Conv.Circuit.Labels()
	g.Expect(labels).To(HaveLen(4))
	g.Expect(labels[0].Text).To(Equal("LOAD_CHANGE"))
	g.Expect(labels[1].Text).To(Equal("12V"))
	g.Expect(labels[2].Text).To(Equal("1mA"))
	g.Expect(labels[3].Value).To(Equal(0.5))

	g.Expect(s.Trace.Names()).To(ContainElements("Vout", "IL", "Mode", "Frequency", "PWM Enabled", "Cost"))
}

func TestBuildWindowsTrace(t *testing.T) {
	g := NewWithT(t)
	spec := Spec{Event: EventInputDrop, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01}
	opts := DefaultOptions()
	opts.Duration = 2e-3

	full, err := Build(NewRegistry(), control.KindPID, spec, opts)
	g.Expect(err).NotTo(HaveOccurred())
	fullCost, err := full.Evaluate(context.Background())
	g.Expect(err).NotTo(HaveOccurred())

	opts.PlotStart, opts.PlotEnd = 1e-3, 1.5e-3
	windowed, err := Build(NewRegistry(), control.KindPID, spec, opts)
	g.Expect(err).NotTo(HaveOccurred())
	cost, err := windowed.Evaluate(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cost).To(Equal(fullCost))

	times, _, ok := windowed.Trace.Series("Vout")
	g.Expect(ok).To(BeTrue())
	g.Expect(times).NotTo(BeEmpty())
	g.Expect(len(times)).To(BeNumerically("<", len(full.Trace.Samples)))
	g.Expect(times[0]).To(BeNumerically(">=", 1e-3))
	g.Expect(times[len(times)-1]).To(BeNumerically("<=", 1.5e-3))
}

func TestBuildRejectsUnknownParam(t *testing.T) {
	g := NewWithT(t)
	opts := DefaultOptions()
	opts.Params = map[string]float64{"kX": 1}
	_, err := Build(NewRegistry(), control.KindPID, Spec{Event: EventNone, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01}, opts)
	g.Expect(errors.Is(err, control.ErrUnknownParam)).To(BeTrue())
}

func TestPIDRecoversFromInputDrop(t *testing.T) {
	g := NewWithT(t)
	spec := Spec{Event: EventInputDrop, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01}
	s, err := Build(NewRegistry(), control.KindPID, spec, DefaultOptions())
	g.Expect(err).NotTo(HaveOccurred())

	cost, err := s.Evaluate(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(s.Result().FinalTime).To(BeNumerically(">=", s.Law.SimulationDuration()))

	g.Expect(s.Conv.OutputVoltage.Get()).To(BeNumerically("~", 12, 0.5))
	g.Expect(s.Conv.InputVoltage.Get()).To(Equal(4.0))
	g.Expect(math.IsInf(cost, 0) || math.IsNaN(cost)).To(BeFalse())
	g.Expect(cost).To(BeNumerically(">=", 0))

	vout, ok := s.Trace.Last("Vout")
	g.Expect(ok).To(BeTrue())
	g.Expect(vout).To(BeNumerically("~", 12, 0.5))

	_, err = s.Run(context.Background())
	g.Expect(err).To(HaveOccurred())
}

func TestManualBatchSkipsFailures(t *testing.T) {
	g := NewWithT(t)
	var buf bytes.Buffer
	b := &Batch{
		Law:     control.KindStepUpDown,
		Variant: VariantManual,
		Specs: []Spec{
			{Event: EventNone, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01},
			// a boost cannot regulate below its input
			{Event: EventNone, InputVoltage: 5, OutputVoltage: 3, OutputCurrent: 0.01},
			{Event: EventInputDrop, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01},
		},
		Options: DefaultOptions(),
		Logger:  log.New(&buf),
	}
	report, err := b.Run(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(report.Outcomes).To(HaveLen(3))
	g.Expect(report.Outcomes[1].Err).To(HaveOccurred())
	g.Expect(report.Succeeded()).To(HaveLen(2))
	g.Expect(report.TotalCost()).To(BeNumerically(">", 0))
	g.Expect(buf.String()).To(ContainSubstring("error in simulation"))
	g.Expect(report.Outcomes[0].Metrics).To(HaveKey("settling_time"))
}

func TestOptimizeAllAppliesSharedPoint(t *testing.T) {
	g := NewWithT(t)
	opts := optim.DefaultOptions()
	opts.Method = optim.Grid
	opts.GridPoints = 1
	opts.Workers = 2

	b := &Batch{
		Law:     control.KindStepUpDown,
		Variant: VariantOptimizeAll,
		Specs: []Spec{
			{Event: EventNone, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01},
			{Event: EventLoadChange, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01, LoadChange: 2},
		},
		Options: DefaultOptions(),
		Optim:   opts,
		Logger:  log.New(&bytes.Buffer{}),
	}
	report, err := b.Run(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(report.Optimization).NotTo(BeNil())
	g.Expect(report.Optimization.Evaluations).To(Equal(3))
	g.Expect(report.Succeeded()).To(HaveLen(2))

	step, ok := report.Optimization.Value("step")
	g.Expect(ok).To(BeTrue())
	for _, o := range report.Outcomes {
		g.Expect(o.Params["step"]).To(BeNumerically("~", step, 1e-12))
	}
	g.Expect(report.TotalCost()).To(BeNumerically("~", report.Optimization.Cost, 1e-9*report.Optimization.Cost+1e-12))
}

func TestParallelCostMatchesSequential(t *testing.T) {
	g := NewWithT(t)
	reg := NewRegistry()
	opts := DefaultOptions()
	opts.Duration = 3e-3
	specs := []Spec{
		{Event: EventNone, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01},
		{Event: EventInputDrop, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01},
		{Event: EventLoadChange, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01, LoadChange: 10},
		{Event: EventSetpointChange, InputVoltage: 5, OutputVoltage: 10, OutputCurrent: 0.001},
	}

	for _, kind := range []control.Kind{control.KindPID, control.KindCOT} {
		first, err := Build(reg, kind, specs[0], opts)
		g.Expect(err).NotTo(HaveOccurred())
		params := first.Law.Parameters()
		x := make([]float64, len(params))
		for i, p := range params {
			x[i] = math.Max(p.Lower, math.Min(p.Upper, p.Initial))
		}

		sequential := 0.0
		factories := make([]optim.Factory[control.Law], len(specs))
		for i, spec := range specs {
			factories[i] = Factory(reg, kind, spec, opts)
			s, err := Build(reg, kind, spec, opts)
			g.Expect(err).NotTo(HaveOccurred())
			for j, p := range params {
				p.Apply(s.Law, p.Natural(x[j]))
			}
			cost, err := s.Evaluate(context.Background())
			g.Expect(err).NotTo(HaveOccurred())
			sequential += cost
		}

		for _, workers := range []int{1, 2, 4} {
			parallel, err := optim.Evaluate(context.Background(), params, factories, x, workers)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(parallel).To(Equal(sequential), "%s with %d workers", kind, workers)
		}
	}
}
