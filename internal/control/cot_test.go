package control

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/smpsim/internal/power"
	"github.com/san-kum/smpsim/internal/sim"
)

var _ = Describe("COT", func() {
	newCOT := func(iOut float64) *COT {
		c := NewCOT(newPlant(iOut))
		c.TargetVoltage = power.Constant(12)
		Expect(c.InitializeSteadyState()).To(Succeed())
		return c
	}

	Context("steady state", func() {
		It("starts in COT when the load current needs a short period", func() {
			c := newCOT(0.01)
			Expect(c.Mode).To(Equal(ModeCOT))
			Expect(c.Integral).To(BeNumerically("~", 0.01, 1e-12))
			Expect(c.PWMChannel.Disable).To(BeFalse())
		})

		It("starts in cycle skipping with a light load", func() {
			c := newCOT(1e-4)
			Expect(c.Mode).To(Equal(ModeCycleSkipping))
			Expect(c.PWMChannel.Disable).To(BeTrue())
			Expect(c.readADC(ChannelVin, AdcDepth, nil)).To(Equal(5.0))
		})
	})

	Context("cycle skipping", func() {
		It("returns to COT only after the enable hysteresis", func() {
			c := newCOT(1e-4)
			c.fillADC(ChannelVout, 11.8)
			c.stats.Variance = 1e9

			for i := 0; i < 6; i++ {
				Expect(c.control(float64(i) * 1e-4)).To(Succeed())
				Expect(c.Mode).To(Equal(ModeCycleSkipping))
				Expect(c.PWMChannel.Disable).To(BeFalse())
			}
			Expect(c.control(6e-4)).To(Succeed())
			Expect(c.Mode).To(Equal(ModeCOT))
			Expect(c.Transitions).To(HaveLen(1))
			Expect(c.Transitions[0]).To(Equal(Transition{Time: 6e-4, From: ModeCycleSkipping, To: ModeCOT}))
			Expect(c.Integral).To(BeNumerically(">", 0))
		})

		It("stays in cycle skipping while the error is within the noise", func() {
			c := newCOT(1e-4)
			c.fillADC(ChannelVout, 11.8)
			c.stats.Average = float64(VoltageToADC(11.8))
			c.stats.Variance = 0

			for i := 0; i < 20; i++ {
				Expect(c.control(float64(i) * 1e-4)).To(Succeed())
			}
			Expect(c.Mode).To(Equal(ModeCycleSkipping))
			Expect(c.Transitions).To(BeEmpty())
		})

		It("disables the output above target", func() {
			c := newCOT(1e-4)
			c.PWMChannel.Disable = false
			c.fillADC(ChannelVout, 12.5)
			Expect(c.control(0)).To(Succeed())
			Expect(c.PWMChannel.Disable).To(BeTrue())
			Expect(c.Frequency).To(BeNumerically("~", c.ControlFrequency, 1e-6))
		})
	})

	Context("constant on-time", func() {
		It("falls back to cycle skipping after repeated under-current cycles", func() {
			c := newCOT(0.01)
			c.fillADC(ChannelVout, 12.5)

			for i := 0; i < 5; i++ {
				Expect(c.control(float64(i) * 1e-4)).To(Succeed())
				Expect(c.Mode).To(Equal(ModeCOT))
				Expect(c.PWMChannel.Disable).To(BeTrue())
			}
			Expect(c.control(5e-4)).To(Succeed())
			Expect(c.Mode).To(Equal(ModeCycleSkipping))
			Expect(c.PWMChannel.Disable).To(BeFalse())
			Expect(c.Transitions).To(ConsistOf(Transition{Time: 5e-4, From: ModeCOT, To: ModeCycleSkipping}))
		})

		It("raises the frequency when the output sags", func() {
			c := newCOT(0.01)
			Expect(c.control(0)).To(Succeed())
			nominal := c.Frequency

			c.fillADC(ChannelVout, 11.5)
			Expect(c.control(1e-4)).To(Succeed())
			Expect(c.Frequency).To(BeNumerically(">", nominal))
			Expect(c.SetPoint()).To(BeNumerically("~", c.Frequency/c.ControlFrequency, 1e-12))
		})
	})

	It("never toggles modes faster than the hysteresis in closed loop", func() {
		c := newCOT(1e-3)

		res, err := sim.New().Simulate(context.Background(), c.Conv.Circuit, sim.Config{FinalTime: c.SimulationDuration()})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Steps).To(BeNumerically(">", 0))

		minGap := 6/c.ControlFrequency - 1e-9
		for i := 1; i < len(c.Transitions); i++ {
			Expect(c.Transitions[i].Time - c.Transitions[i-1].Time).To(BeNumerically(">=", minGap))
		}
		Expect(c.Conv.OutputVoltage.Get()).To(BeNumerically("~", 12, 1))
	})
})
