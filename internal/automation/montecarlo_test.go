package automation

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	. "github.com/onsi/gomega"

	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/experiment"
)

func shortConfig(seed uint64) MonteCarloConfig {
	cfg := DefaultMonteCarloConfig()
	cfg.Law = control.KindStepUpDown
	cfg.Spec = experiment.Spec{Event: experiment.EventNone, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01}
	cfg.Options.Duration = 1e-3
	cfg.Trials = 4
	cfg.Seed = seed
	return cfg
}

func TestRunMonteCarloIsReproducible(t *testing.T) {
	g := NewWithT(t)
	quiet := log.New(io.Discard)

	a, err := RunMonteCarlo(context.Background(), experiment.NewRegistry(), shortConfig(7), quiet)
	g.Expect(err).NotTo(HaveOccurred())
	b, err := RunMonteCarlo(context.Background(), experiment.NewRegistry(), shortConfig(7), quiet)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(a).To(HaveLen(4))
	seeds := make(map[uint64]bool)
	for i := range a {
		g.Expect(a[i].Err).NotTo(HaveOccurred())
		g.Expect(a[i].Seed).To(Equal(b[i].Seed))
		g.Expect(a[i].InputVoltage).To(BeNumerically("~", 5, 0.25+1e-12))
		g.Expect(a[i].Cost).To(Equal(b[i].Cost))
		seeds[a[i].Seed] = true
	}
	g.Expect(seeds).To(HaveLen(4))
}

func TestRunMonteCarloRejectsNoTrials(t *testing.T) {
	cfg := shortConfig(1)
	cfg.Trials = 0
	_, err := RunMonteCarlo(context.Background(), experiment.NewRegistry(), cfg, nil)
	NewWithT(t).Expect(err).To(HaveOccurred())
}

func TestSummarize(t *testing.T) {
	g := NewWithT(t)
	s := Summarize([]MonteCarloResult{
		{Cost: 1, Stable: true},
		{Cost: 3, Stable: false},
		{Err: errors.New("diverged")},
	})
	g.Expect(s.Trials).To(Equal(3))
	g.Expect(s.Failed).To(Equal(1))
	g.Expect(s.Unstable).To(Equal(1))
	g.Expect(s.MeanCost).To(BeNumerically("~", 2, 1e-12))
	g.Expect(s.WorstCost).To(Equal(3.0))
	g.Expect(s.StdCost).To(BeNumerically(">", 0))

	g.Expect(Summarize(nil).MeanCost).To(Equal(0.0))
}
