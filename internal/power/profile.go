package power

import "sort"

// Profile is a piecewise-constant function of time. The value set at a
// breakpoint holds until the next breakpoint.
type Profile struct {
	times  []float64
	values []float64
}

func Constant(v float64) *Profile {
	return new(Profile).Set(0, v)
}

// Set defines the value from t onwards, replacing an existing breakpoint at t.
func (p *Profile) Set(t, v float64) *Profile {
	i := sort.SearchFloat64s(p.times, t)
	if i < len(p.times) && p.times[i] == t {
		p.values[i] = v
		return p
	}
	p.times = append(p.times, 0)
	p.values = append(p.values, 0)
	copy(p.times[i+1:], p.times[i:])
	copy(p.values[i+1:], p.values[i:])
	p.times[i], p.values[i] = t, v
	return p
}

// At returns the value in effect at t. Before the first breakpoint the
// first value applies; an empty profile is zero.
func (p *Profile) At(t float64) float64 {
	if len(p.times) == 0 {
		return 0
	}
	i := sort.Search(len(p.times), func(i int) bool { return p.times[i] > t })
	if i == 0 {
		return p.values[0]
	}
	return p.values[i-1]
}

// Next returns the first breakpoint strictly after t.
func (p *Profile) Next(t float64) (float64, bool) {
	i := sort.Search(len(p.times), func(i int) bool { return p.times[i] > t })
	if i == len(p.times) {
		return 0, false
	}
	return p.times[i], true
}

func (p *Profile) Breakpoints() []float64 {
	out := make([]float64, len(p.times))
	copy(out, p.times)
	return out
}
