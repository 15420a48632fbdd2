package viz

import (
	"errors"
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/gomega"

	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/experiment"
	"github.com/san-kum/smpsim/internal/optim"
)

func TestSetTheme(t *testing.T) {
	g := NewWithT(t)
	defer SetTheme(ThemeDefault.Name)

	g.Expect(ThemeNames()).To(Equal([]string{"default", "retro", "minimal"}))
	g.Expect(SetTheme("retro")).To(BeTrue())
	g.Expect(CurrentTheme.Name).To(Equal("retro"))
	g.Expect(SetTheme("neon")).To(BeFalse())
	g.Expect(CurrentTheme.Name).To(Equal("retro"))

	NextTheme()
	g.Expect(CurrentTheme.Name).To(Equal("minimal"))
	NextTheme()
	g.Expect(CurrentTheme.Name).To(Equal("default"))
}

func TestSparklineKeepsLatest(t *testing.T) {
	g := NewWithT(t)
	line := Sparkline([]float64{5, 4, 3, 2, 1, 0}, 4)
	g.Expect(strings.Count(line, "▁")).To(Equal(1))
	g.Expect(strings.Count(line, "█")).To(Equal(1))
	g.Expect(Sparkline(nil, 3)).To(Equal("───"))
}

func TestProgressModelRecords(t *testing.T) {
	g := NewWithT(t)
	var m tea.Model = NewProgressModel("pid optimize-all", 100)

	m, _ = m.Update(ProgressMsg{Evaluations: 1, Cost: 8, Best: 8})
	m, _ = m.Update(ProgressMsg{Evaluations: 2, Cost: 12, Best: 8})
	m, cmd := m.Update(ProgressMsg{Evaluations: 3, Cost: 2.5, Best: 2.5})
	g.Expect(cmd).To(BeNil())

	pm := m.(ProgressModel)
	g.Expect(pm.best).To(Equal([]float64{8, 8, 2.5}))
	g.Expect(pm.costs).To(HaveLen(3))
	g.Expect(pm.fraction()).To(BeNumerically("~", 0.03, 1e-12))

	view := pm.View()
	g.Expect(view).To(ContainSubstring("PID OPTIMIZE-ALL"))
	g.Expect(view).To(ContainSubstring("3/100"))
	g.Expect(view).To(ContainSubstring("2.5"))
	g.Expect(view).To(ContainSubstring("OPTIMIZING"))

	m, cmd = m.Update(DoneMsg{Err: errors.New("scenario diverged")})
	g.Expect(cmd).NotTo(BeNil())
	g.Expect(m.View()).To(ContainSubstring("FAILED: scenario diverged"))
}

func TestProgressModelSkipsInfiniteCosts(t *testing.T) {
	g := NewWithT(t)
	m := NewProgressModel("cot", 10)
	m.record(optim.Progress{Evaluations: 1, Cost: math.Inf(1), Best: math.Inf(1)})
	g.Expect(m.best).To(BeEmpty())
	g.Expect(m.costs).To(BeEmpty())
}

func TestProgressModelCancel(t *testing.T) {
	g := NewWithT(t)
	canceled := false
	m := NewProgressModel("pid", 10)
	m.cancel = func() { canceled = true }

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	g.Expect(cmd).NotTo(BeNil())
	g.Expect(canceled).To(BeTrue())
	g.Expect(next.View()).To(ContainSubstring("CANCELED"))
}

func TestRenderReport(t *testing.T) {
	g := NewWithT(t)
	spec := experiment.Spec{Event: experiment.EventInputDrop, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01}
	bad := spec
	bad.OutputVoltage = 3

	report := &experiment.Report{
		Variant: experiment.VariantManual,
		Law:     control.KindPID,
		Outcomes: []experiment.Outcome{
			{
				Spec:    spec,
				Cost:    1.25,
				Metrics: map[string]float64{"settling_time": 2.5e-3, "overshoot": 0.12, "setpoint_effort": 0.01},
				Params:  map[string]float64{"kP": 0.5, "kI": 0.02},
			},
			{Spec: bad, Err: errors.New("boost needs vout > vin")},
		},
	}

	out := RenderReport(report)
	g.Expect(out).To(ContainSubstring("PID  manual"))
	g.Expect(out).To(ContainSubstring("INPUT_DROP 12V 10mA"))
	g.Expect(out).To(ContainSubstring("2.50 ms"))
	g.Expect(out).To(ContainSubstring("kI=0.02 kP=0.5"))
	g.Expect(out).To(ContainSubstring("boost needs vout > vin"))
	g.Expect(out).To(ContainSubstring("1/2"))
	g.Expect(out).To(ContainSubstring("1.25"))
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{5e-5, "50.0 µs"},
		{2.5e-3, "2.50 ms"},
		{1.5, "1.500 s"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.in); got != tt.want {
			t.Errorf("formatSeconds(%g) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
