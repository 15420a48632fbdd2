package sim

import "math"

// Element takes part in every simulation step of the circuit it is
// registered with.
type Element interface {
	Name() string
	// Initialize seeds internal and steady-state values before the first step.
	Initialize() error
	// PostInitialize runs once all elements are initialized.
	PostInitialize() error
	// StepEndTime reports the earliest future instant at which the element
	// needs to be re-evaluated. ok=false means no constraint.
	StepEndTime(t float64) (end float64, ok bool)
	Run(stepStart, stepEnd, dt float64)
	// Finish runs once after the last step.
	Finish()
}

// BaseElement implements Element with no-op behaviour. Embed it and
// override what is needed.
type BaseElement struct{}

func (BaseElement) Initialize() error                      { return nil }
func (BaseElement) PostInitialize() error                  { return nil }
func (BaseElement) StepEndTime(t float64) (float64, bool) { return 0, false }
func (BaseElement) Run(stepStart, stepEnd, dt float64)     {}
func (BaseElement) Finish()                                {}

type EventKind int

const (
	// EventCompare is emitted when a timer channel matches its compare value.
	EventCompare EventKind = iota
	// EventReload is emitted at every timer period rollover.
	EventReload
)

func (k EventKind) String() string {
	switch k {
	case EventCompare:
		return "compare"
	case EventReload:
		return "reload"
	default:
		return "unknown"
	}
}

// EventSource identifies the peripheral an event originates from.
type EventSource interface {
	Name() string
}

// Event describes a timer peripheral event. Channel is -1 for reload events.
type Event struct {
	Source  EventSource
	Channel int
	Kind    EventKind
	Instant float64
}

// EventHandler resolves events emitted during a step. Handlers run after
// every element has run and before values are committed.
type EventHandler interface {
	HandleEvent(ev Event) error
}

type Probe struct {
	Name string
	Unit string
	Read func() float64
}

type Sample struct {
	Time   float64
	Values []float64
}

// Sink receives averaged samples at the simulator's output cadence.
type Sink interface {
	Probes() []Probe
	Write(s Sample)
	Finish()
}

// WindowedSink is a Sink that only records [start, end]. Steps are clipped
// to the window before they are averaged.
type WindowedSink interface {
	Sink
	SampleWindow() (start, end float64)
}

type Config struct {
	FinalTime    float64
	FirstStep    float64
	SamplePoints int
	// CheckEvery is the number of steps between context checks.
	CheckEvery int
}

func DefaultConfig() Config {
	return Config{
		FirstStep:    1e-10,
		SamplePoints: 200,
		CheckEvery:   1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FirstStep == 0 {
		c.FirstStep = d.FirstStep
	}
	if c.SamplePoints == 0 {
		c.SamplePoints = d.SamplePoints
	}
	if c.CheckEvery == 0 {
		c.CheckEvery = d.CheckEvery
	}
	return c
}

type Result struct {
	Steps     int
	Events    int
	FinalTime float64
	// MinStep is the shortest step taken after the initial one.
	MinStep float64
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
