package metrics

import (
	"math"
)

// SetPointEffort is the mean absolute change of the set point between
// observations.
type SetPointEffort struct {
	name    string
	sum     float64
	last    float64
	samples int
}

func NewSetPointEffort() *SetPointEffort {
	return &SetPointEffort{
		name: "setpoint_effort",
	}
}

func (c *SetPointEffort) Name() string {
	return c.name
}

func (c *SetPointEffort) Observe(t, target, actual, setPoint float64) {
	if c.samples > 0 {
		c.sum += math.Abs(setPoint - c.last)
	}
	c.last = setPoint
	c.samples++
}

func (c *SetPointEffort) Value() float64 {
	if c.samples < 2 {
		return 0
	}
	return c.sum / float64(c.samples-1)
}

func (c *SetPointEffort) Reset() {
	c.sum = 0
	c.last = 0
	c.samples = 0
}
