package metrics

import "math"

// Settling reports the last instant the actual value was outside the band
// around the target. Zero means it never left the band.
type Settling struct {
	name      string
	band      float64
	lastOut   float64
	violation int
	samples   int
}

func NewSettling(band float64) *Settling {
	return &Settling{
		name: "settling_time",
		band: band,
	}
}

func (s *Settling) Name() string {
	return s.name
}

func (s *Settling) Observe(t, target, actual, setPoint float64) {
	s.samples++
	if math.Abs(actual-target) > s.band {
		s.lastOut = t
		s.violation++
	}
}

func (s *Settling) Value() float64 {
	return s.lastOut
}

// InBand is the fraction of observations within the band.
func (s *Settling) InBand() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violation)/float64(s.samples)
}

func (s *Settling) Reset() {
	s.lastOut = 0
	s.violation = 0
	s.samples = 0
}

// Overshoot reports the largest excess of the actual value over the target.
type Overshoot struct {
	name string
	max  float64
}

func NewOvershoot() *Overshoot {
	return &Overshoot{name: "overshoot"}
}

func (o *Overshoot) Name() string { return o.name }

func (o *Overshoot) Observe(t, target, actual, setPoint float64) {
	o.max = math.Max(o.max, actual-target)
}

func (o *Overshoot) Value() float64 { return o.max }

func (o *Overshoot) Reset() { o.max = 0 }
