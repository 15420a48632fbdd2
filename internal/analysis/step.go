package analysis

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type StepResponse struct {
	EventTime float64
	Target    float64
	// Overshoot is the largest excursion above the target after the event.
	Overshoot float64
	// Undershoot is the largest excursion below the target after the event.
	Undershoot float64
	// SettlingTime is measured from the event to the last sample outside
	// the band. Inf means it never settled.
	SettlingTime float64
	FinalError   float64
	// Ripple is the standard deviation of the last tenth of the samples.
	Ripple float64
}

// AnalyzeStep evaluates the samples from eventTime on against target.
func AnalyzeStep(times, values []float64, target, eventTime, band float64) (*StepResponse, error) {
	if len(times) != len(values) || len(values) == 0 {
		return nil, errors.Errorf("step: %d times for %d values", len(times), len(values))
	}
	start := 0
	for start < len(times) && times[start] < eventTime {
		start++
	}
	if start == len(times) {
		return nil, errors.Errorf("step: no samples after t=%g", eventTime)
	}
	after := values[start:]

	r := &StepResponse{
		EventTime:  eventTime,
		Target:     target,
		Overshoot:  math.Max(0, floats.Max(after)-target),
		Undershoot: math.Max(0, target-floats.Min(after)),
		FinalError: after[len(after)-1] - target,
	}

	lastOut := -1
	for i, v := range after {
		if math.Abs(v-target) > band {
			lastOut = i
		}
	}
	switch {
	case lastOut < 0:
		r.SettlingTime = 0
	case lastOut == len(after)-1:
		r.SettlingTime = math.Inf(1)
	default:
		r.SettlingTime = times[start+lastOut+1] - eventTime
	}

	tail := after[len(after)-max(1, len(after)/10):]
	if len(tail) > 1 {
		r.Ripple = stat.StdDev(tail, nil)
	}
	return r, nil
}

// Settled reports whether the response ended within band of the target.
func (r *StepResponse) Settled() bool {
	return !math.IsInf(r.SettlingTime, 1)
}
