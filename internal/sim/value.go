package sim

type committer interface {
	commit()
}

// Value is a double-buffered cell shared between elements. Reads return
// the value committed at the end of the previous step; writes are staged
// and become visible to all readers at the same commit point.
type Value[T any] struct {
	current T
	pending T
}

// NewValue creates a value registered with c.
func NewValue[T any](c *Circuit, initial T) *Value[T] {
	v := &Value[T]{current: initial, pending: initial}
	c.values = append(c.values, v)
	return v
}

func (v *Value[T]) Get() T { return v.current }

// Set stages next for the next commit.
func (v *Value[T]) Set(next T) { v.pending = next }

// Init sets both the committed and the pending value. Only meant for
// scenario construction, before the simulation starts.
func (v *Value[T]) Init(x T) {
	v.current = x
	v.pending = x
}

func (v *Value[T]) commit() { v.current = v.pending }
