package control

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/smpsim/internal/power"
)

var _ = Describe("StepUpDown", func() {
	var s *StepUpDown

	BeforeEach(func() {
		s = NewStepUpDown(newPlant(0.01))
		s.TargetVoltage = power.Constant(12)
		Expect(s.Initialize()).To(Succeed())
		Expect(s.PWMTimer.Reload).To(Equal(int64(840)))
	})

	DescribeTable("steps the duty towards the target",
		func(start, vOut, want float64) {
			s.Duty = start
			s.fillADC(ChannelVout, vOut)
			Expect(s.control(0)).To(Succeed())
			Expect(s.Duty).To(BeNumerically("~", want, 1e-12))
			Expect(s.PWMChannel.Compare).To(Equal(int64(s.Duty * 840)))
		},
		Entry("below target", 0.5, 11.0, 0.51),
		Entry("above target", 0.5, 13.0, 0.49),
		Entry("at target", 0.5, 12.0, 0.49),
		Entry("clamped to max duty", 0.6, 11.0, 0.6),
		Entry("clamped to zero", 0.005, 13.0, 0.0),
	)

	It("seeds the duty from the steady state, capped at max duty", func() {
		Expect(s.InitializeSteadyState()).To(Succeed())
		Expect(s.Duty).To(BeNumerically(">", 0))
		Expect(s.Duty).To(BeNumerically("<=", s.MaxDuty))

		// 5 V to 20 V needs a duty of about 0.75
		s.TargetVoltage = power.Constant(20)
		s.Conv.Load.Resistance = power.Constant(10)
		Expect(s.InitializeSteadyState()).To(Succeed())
		Expect(s.Duty).To(Equal(s.MaxDuty))
	})

	It("searches the step in log space with wide bounds", func() {
		params := s.Parameters()
		Expect(params).To(HaveLen(1))
		Expect(params[0].Lower).To(Equal(-10.0))
		Expect(params[0].Upper).To(Equal(10.0))
		params[0].Apply(s, 0.02)
		Expect(s.Step).To(Equal(0.02))
	})
})
