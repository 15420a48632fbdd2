package control

import (
	"math"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/smpsim/internal/power"
)

var _ = Describe("PID", func() {
	var (
		conv *power.Converter
		pid  *PID
	)

	BeforeEach(func() {
		conv = newPlant(0.01)
		pid = NewPID(conv)
		pid.TargetVoltage = power.Constant(12)
		Expect(pid.Initialize()).To(Succeed())
	})

	It("seeds duty, integral and inductor current from the steady state", func() {
		Expect(pid.InitializeSteadyState()).To(Succeed())
		Expect(pid.Duty).To(BeNumerically("~", 0.1221, 1e-3))
		Expect(pid.Integral).To(Equal(int64(pid.Duty / pid.Ki)))
		Expect(conv.Stage.IL).To(BeZero())
		Expect(pid.readADC(ChannelVout, AdcDepth, nil)).To(Equal(12.0))
	})

	It("holds the steady-state duty when the output sits at target", func() {
		Expect(pid.InitializeSteadyState()).To(Succeed())
		seeded := pid.Duty
		Expect(pid.control(0)).To(Succeed())
		Expect(pid.Duty).To(BeNumerically("~", seeded, 0.1))
	})

	It("clamps the integral to the inverse of kI", func() {
		pid.fillADC(ChannelVout, 0)
		for i := 0; i < 10; i++ {
			Expect(pid.control(0)).To(Succeed())
		}
		Expect(pid.Integral).To(Equal(int64(1 / pid.Ki)))
		Expect(pid.Duty).To(Equal(pid.MaxDuty))
		Expect(pid.PWMChannel.Compare).To(Equal(int64(pid.MaxDuty * float64(pid.PWMTimer.Reload))))
		Expect(conv.Duty.Get()).To(Equal(0.5))
	})

	It("clamps the duty to the minimum on overvoltage", func() {
		pid.fillADC(ChannelVout, 20)
		Expect(pid.control(0)).To(Succeed())
		Expect(pid.Duty).To(Equal(pid.MinDuty))
		Expect(pid.Integral).To(BeNumerically("<", 0))
	})

	It("rejects a NaN duty", func() {
		pid.Kp = math.NaN()
		err := pid.control(0)
		Expect(errors.Is(err, ErrInvalidDuty)).To(BeTrue())
	})

	It("declares log-space coefficients", func() {
		params := pid.Parameters()
		Expect(params).To(HaveLen(3))
		Expect(params[0].Name).To(Equal("kP"))
		Expect(params[0].Natural(params[0].Initial)).To(BeNumerically("~", DefaultPIDKp, 1e-12))

		params[1].Apply(pid, 2e-3)
		Expect(pid.Ki).To(Equal(2e-3))
	})

	It("sets parameters by name", func() {
		Expect(pid.SetParam("kD", 1)).To(Succeed())
		Expect(pid.GetParams()).To(HaveKeyWithValue("kD", 1.0))

		err := pid.SetParam("gain", 1)
		Expect(errors.Is(err, ErrUnknownParam)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("fsw"))
	})
})

var _ = Describe("Law kinds", func() {
	It("parses names case-insensitively", func() {
		k, err := ParseKind("COT")
		Expect(err).NotTo(HaveOccurred())
		Expect(k).To(Equal(KindCOT))

		_, err = ParseKind("lqr")
		Expect(errors.Is(err, ErrUnknownKind)).To(BeTrue())
	})

	It("builds every kind", func() {
		for _, k := range Kinds() {
			law, err := New(k, newPlant(0.01))
			Expect(err).NotTo(HaveOccurred())
			Expect(law.Kind()).To(Equal(k))
			Expect(law.Parameters()).NotTo(BeEmpty())
			Expect(law.SimulationDuration()).To(BeNumerically(">", law.EventTime()))
		}
	})
})
