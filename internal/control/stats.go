package control

// MovingStatistic is an exponential moving average and variance.
type MovingStatistic struct {
	alpha    float64
	Average  float64
	Variance float64
}

// NewMovingStatistic weights samples taken every samplePeriod so the
// average has an age of averageAge, both in the same time unit.
func NewMovingStatistic(averageAge, samplePeriod float64) *MovingStatistic {
	return &MovingStatistic{alpha: 1 / (averageAge/samplePeriod + 1)}
}

func (s *MovingStatistic) Alpha() float64 { return s.alpha }

func (s *MovingStatistic) Add(v float64) {
	s.Average = s.alpha*v + (1-s.alpha)*s.Average
	e := v - s.Average
	s.Variance = s.alpha*e*e + (1-s.alpha)*s.Variance
}
