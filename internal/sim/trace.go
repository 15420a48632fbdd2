package sim

import "math"

// Trace is an in-memory Sink. With a window set, only the part of the run
// inside [Start, End] is averaged into samples.
type Trace struct {
	Title   string
	Start   *float64
	End     *float64
	probes  []Probe
	Samples []Sample
}

func NewTrace(title string) *Trace {
	return &Trace{Title: title}
}

// Add registers a probe reading fn under name.
func (t *Trace) Add(name, unit string, fn func() float64) *Trace {
	t.probes = append(t.probes, Probe{Name: name, Unit: unit, Read: fn})
	return t
}

// AddValue registers a probe reading the committed value of v.
func (t *Trace) AddValue(name, unit string, v *Value[float64]) *Trace {
	return t.Add(name, unit, v.Get)
}

// Window limits the trace to [start, end]. A non-positive end leaves the
// window open to the end of the run.
func (t *Trace) Window(start, end float64) *Trace {
	t.Start = &start
	if end > 0 {
		t.End = &end
	}
	return t
}

// SampleWindow implements WindowedSink.
func (t *Trace) SampleWindow() (start, end float64) {
	start, end = math.Inf(-1), math.Inf(1)
	if t.Start != nil {
		start = *t.Start
	}
	if t.End != nil {
		end = *t.End
	}
	return start, end
}

func (t *Trace) Probes() []Probe { return t.probes }

func (t *Trace) Write(s Sample) {
	if t.Start != nil && s.Time < *t.Start {
		return
	}
	if t.End != nil && s.Time > *t.End {
		return
	}
	t.Samples = append(t.Samples, s)
}

func (t *Trace) Finish() {}

// Names returns the probe names in column order.
func (t *Trace) Names() []string {
	names := make([]string, len(t.probes))
	for i, p := range t.probes {
		names[i] = p.Name
	}
	return names
}

// Units returns the probe units in column order.
func (t *Trace) Units() []string {
	units := make([]string, len(t.probes))
	for i, p := range t.probes {
		units[i] = p.Unit
	}
	return units
}

// Series returns the time axis and the samples of the named probe.
func (t *Trace) Series(name string) (times, values []float64, ok bool) {
	idx := -1
	for i, p := range t.probes {
		if p.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, false
	}
	times = make([]float64, len(t.Samples))
	values = make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		times[i] = s.Time
		values[i] = s.Values[idx]
	}
	return times, values, true
}

// Last returns the most recent sample of the named probe.
func (t *Trace) Last(name string) (float64, bool) {
	_, values, ok := t.Series(name)
	if !ok || len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}
