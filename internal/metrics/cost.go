package metrics

import (
	"math"

	"github.com/san-kum/smpsim/internal/sim"
)

// Tracker is the view of a control law the cost observes.
type Tracker interface {
	TargetValue(t float64) float64
	ActualValue() float64
	SetPoint() float64
}

// Metric observes the tracked values at every cost evaluation.
type Metric interface {
	Name() string
	Observe(t, target, actual, setPoint float64)
	Value() float64
	Reset()
}

// CostCalculator accumulates the trajectory cost at a fixed cadence. Every
// evaluation adds
//
//	KError·e² [+ KSettle·e² after SettleStart] + KDiff·(actual-avg)² + KSetPointDiff·Δsp²
//
// weighted by EvaluationPeriod, where avg is an exponential average of the
// actual value. Finish adds KMaxError times the largest squared error.
type CostCalculator struct {
	sim.BaseElement

	EvaluationPeriod float64
	KError           float64
	KSettle          float64
	SettleStart      float64
	KDiff            float64
	KSetPointDiff    float64
	KMaxError        float64
	// Alpha is the smoothing factor of the average actual value.
	Alpha float64

	TotalCost   float64
	CurrentCost float64
	MaxError    float64

	Metrics []Metric

	tracker        Tracker
	nextEvaluation float64
	avgActual      float64
	lastSetPoint   float64
	finished       bool
}

func NewCostCalculator(c *sim.Circuit, tracker Tracker) *CostCalculator {
	cc := &CostCalculator{
		EvaluationPeriod: 1e-4,
		KError:           100,
		SettleStart:      math.Inf(1),
		KDiff:            1,
		KSetPointDiff:    1,
		Alpha:            0.1,
		tracker:          tracker,
	}
	c.Register(cc)
	return cc
}

func (c *CostCalculator) Name() string { return "cost" }

func (c *CostCalculator) PostInitialize() error {
	c.avgActual = c.tracker.TargetValue(0)
	c.lastSetPoint = c.tracker.SetPoint()
	c.nextEvaluation = 0
	c.TotalCost = 0
	c.CurrentCost = 0
	c.MaxError = 0
	c.finished = false
	for _, m := range c.Metrics {
		m.Reset()
	}
	return nil
}

func (c *CostCalculator) Run(stepStart, stepEnd, dt float64) {
	if !(c.EvaluationPeriod > 0) {
		return
	}
	for stepStart > c.nextEvaluation {
		c.evaluate(stepEnd)
		c.nextEvaluation += c.EvaluationPeriod
	}
}

func (c *CostCalculator) evaluate(t float64) {
	actual := c.tracker.ActualValue()
	target := c.tracker.TargetValue(t)
	setPoint := c.tracker.SetPoint()

	e := actual - target
	e2 := e * e
	cost := c.KError * e2
	if t >= c.SettleStart {
		cost += c.KSettle * e2
	}
	d := actual - c.avgActual
	cost += c.KDiff * d * d
	ds := setPoint - c.lastSetPoint
	cost += c.KSetPointDiff * ds * ds

	c.CurrentCost = cost
	c.TotalCost += cost * c.EvaluationPeriod
	c.MaxError = math.Max(c.MaxError, e2)

	c.avgActual = c.Alpha*actual + (1-c.Alpha)*c.avgActual
	c.lastSetPoint = setPoint

	for _, m := range c.Metrics {
		m.Observe(t, target, actual, setPoint)
	}
}

// Finish adds the terminal penalty on the largest squared error.
func (c *CostCalculator) Finish() {
	if c.finished {
		return
	}
	c.finished = true
	c.TotalCost += c.KMaxError * c.MaxError
}

// Summary returns the value of every attached metric by name.
func (c *CostCalculator) Summary() map[string]float64 {
	out := make(map[string]float64, len(c.Metrics))
	for _, m := range c.Metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

// DefaultMetrics returns the report metrics for a settling band around
// the target.
func DefaultMetrics(band float64) []Metric {
	return []Metric{
		NewSettling(band),
		NewOvershoot(),
		NewSetPointEffort(),
	}
}
