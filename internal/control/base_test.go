package control

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/smpsim/internal/sim"
)

var _ = Describe("ADC", func() {
	It("converts with 12 bit over 20 V", func() {
		Expect(VoltageToADC(12)).To(Equal(int64(2457)))
		Expect(VoltageToADC(0)).To(Equal(int64(0)))
		Expect(ADCToVoltage(2048)).To(Equal(10.0))
	})

	It("averages the latest samples of a channel", func() {
		law := NewStepUpDown(newPlant(0.01))
		for _, v := range []float64{1, 2, 3, 4, 5} {
			law.push(ChannelVout, v)
		}
		Expect(law.readADC(ChannelVout, 1, nil)).To(Equal(5.0))
		Expect(law.readADC(ChannelVout, 2, nil)).To(Equal(4.5))
		Expect(law.readADC(ChannelVout, 10, nil)).To(Equal(3.5))
		Expect(law.readADC(ChannelVout, 2, func(v float64) float64 { return 2 * v })).To(Equal(9.0))

		law.fillADC(ChannelVout, 7)
		Expect(law.readADC(ChannelVout, AdcDepth, nil)).To(Equal(7.0))
		Expect(law.readADC(ChannelVin, AdcDepth, nil)).To(Equal(0.0))
	})

	It("samples output and input voltage alternately after commit", func() {
		conv := newPlant(0.01)
		law := NewStepUpDown(conv)
		conv.InputVoltage.Init(5)

		law.HandleEvent(sim.Event{Source: law.PWMTimer, Channel: law.ADCChannel.Index(), Kind: sim.EventCompare})
		Expect(law.readADC(ChannelVout, 1, nil)).To(Equal(0.0))
		conv.Circuit.Commit()
		Expect(law.readADC(ChannelVout, 1, nil)).To(Equal(12.0))
		Expect(law.MeasuredVoltage).To(Equal(12.0))

		law.HandleEvent(sim.Event{Source: law.PWMTimer, Channel: law.ADCChannel.Index(), Kind: sim.EventCompare})
		conv.Circuit.Commit()
		Expect(law.readADC(ChannelVin, 1, nil)).To(Equal(5.0))
	})

	It("adds deterministic noise for a given seed", func() {
		a := NewPID(newPlant(0.01))
		b := NewPID(newPlant(0.01))
		a.Seed(42)
		b.Seed(42)
		sum := 0.0
		for i := 0; i < 2000; i++ {
			va := a.noisyADC(12)
			Expect(va).To(Equal(b.noisyADC(12)))
			sum += va - 2457
		}
		Expect(math.Abs(sum / 2000)).To(BeNumerically("<", 0.5))
	})
})

var _ = Describe("PWM events", func() {
	It("switches on at reload unless the channel is disabled", func() {
		conv := newPlant(0.01)
		law := NewPID(conv)

		Expect(law.HandleEvent(sim.Event{Source: law.PWMTimer, Channel: -1, Kind: sim.EventReload})).To(Succeed())
		conv.Circuit.Commit()
		Expect(conv.SwitchOn.Get()).To(BeTrue())

		Expect(law.HandleEvent(sim.Event{Source: law.PWMTimer, Channel: law.PWMChannel.Index(), Kind: sim.EventCompare})).To(Succeed())
		conv.Circuit.Commit()
		Expect(conv.SwitchOn.Get()).To(BeFalse())
	})

	It("traces the disable flag latched at period start", func() {
		conv := newPlant(0.01)
		law := NewPID(conv)
		Expect(law.Initialize()).To(Succeed())
		Expect(law.PWMTimer.PostInitialize()).To(Succeed())

		var enabled func() float64
		for _, p := range law.Probes() {
			if p.Name == "PWM Enabled" {
				enabled = p.Read
			}
		}
		Expect(enabled).NotTo(BeNil())

		law.PWMChannel.Disable = true
		Expect(enabled()).To(Equal(1.0))

		period := law.PWMTimer.Period()
		law.PWMTimer.Run(0, period, period)
		Expect(enabled()).To(Equal(0.0))
	})
})

var _ = Describe("MovingStatistic", func() {
	It("derives alpha from the average age", func() {
		s := NewMovingStatistic(5e-4, 1e-4)
		Expect(s.Alpha()).To(BeNumerically("~", 1.0/6, 1e-12))
	})

	It("settles on a constant input", func() {
		s := NewMovingStatistic(5, 1)
		for i := 0; i < 500; i++ {
			s.Add(3)
		}
		Expect(s.Average).To(BeNumerically("~", 3, 1e-9))
		Expect(s.Variance).To(BeNumerically("<", 1e-9))
	})
})
