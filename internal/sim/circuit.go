package sim

// Label annotates a circuit with one of the parameters it was built from,
// e.g. the scenario event or the output voltage.
type Label struct {
	Axis  string
	Value float64
	Text  string
}

type pendingEvent struct {
	handler EventHandler
	ev      Event
}

// Circuit owns the elements and values of one independently simulatable
// scenario. Registration order fixes evaluation order within a step.
type Circuit struct {
	name        string
	elements    []Element
	values      []committer
	afterCommit []func()
	events      []pendingEvent
	labels      []Label
}

func NewCircuit(name string) *Circuit {
	return &Circuit{name: name}
}

func (c *Circuit) Name() string { return c.name }

func (c *Circuit) Register(e Element) {
	c.elements = append(c.elements, e)
}

func (c *Circuit) Elements() []Element { return c.elements }

func (c *Circuit) AddLabel(axis string, value float64, text string) {
	c.labels = append(c.labels, Label{Axis: axis, Value: value, Text: text})
}

func (c *Circuit) Labels() []Label { return c.labels }

// AfterCommit defers fn until right after the next commit, so it observes
// the values produced by the current step.
func (c *Circuit) AfterCommit(fn func()) {
	c.afterCommit = append(c.afterCommit, fn)
}

// Emit queues ev for h. Queued events are dispatched by the simulator in
// emission order once every element has run.
func (c *Circuit) Emit(h EventHandler, ev Event) {
	if h == nil {
		return
	}
	c.events = append(c.events, pendingEvent{handler: h, ev: ev})
}

// Commit publishes all staged values, then runs and clears the deferred
// after-commit callbacks.
func (c *Circuit) Commit() {
	for _, v := range c.values {
		v.commit()
	}
	// callbacks may defer further work; those run at the next commit
	fns := c.afterCommit
	c.afterCommit = nil
	for _, fn := range fns {
		fn()
	}
}

func (c *Circuit) dispatch() (int, error) {
	n := 0
	// handlers may emit follow-up events; drain until empty
	for len(c.events) > 0 {
		batch := c.events
		c.events = nil
		for _, p := range batch {
			n++
			if err := p.handler.HandleEvent(p.ev); err != nil {
				c.events = nil
				return n, eventError(p.ev, err)
			}
		}
	}
	return n, nil
}
