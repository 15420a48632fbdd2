package sim

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Domain errors for simulation runs.
var (
	// ErrNoStepEnd indicates no element proposed a future step end: nothing
	// in the circuit can change any more.
	ErrNoStepEnd = errors.New("sim: no step end found")

	// ErrInvalidConfig indicates an unusable simulator configuration.
	ErrInvalidConfig = errors.New("sim: invalid configuration")

	// ErrInvalidStepEnd indicates an element proposed a NaN or infinite instant.
	ErrInvalidStepEnd = errors.New("sim: invalid step end")
)

// SimulationError wraps a fatal error with the simulation context it
// happened in.
type SimulationError struct {
	Circuit     string
	Step        int
	Time        float64
	Diagnostics []string
	Wrapped     error
}

func (e *SimulationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: step %d (t=%.6gs): %v", e.Circuit, e.Step, e.Time, e.Wrapped)
	if len(e.Diagnostics) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(e.Diagnostics, ", "))
		sb.WriteString("]")
	}
	return sb.String()
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

func eventError(ev Event, err error) error {
	name := "<nil>"
	if ev.Source != nil {
		name = ev.Source.Name()
	}
	return errors.Wrapf(err, "%s %s event ch%d at t=%.6gs", name, ev.Kind, ev.Channel, ev.Instant)
}
