package experiment

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/power"
)

// Registry maps law kinds to constructors.
type Registry struct {
	laws map[control.Kind]func(*power.Converter) control.Law
}

func NewRegistry() *Registry {
	r := &Registry{
		laws: make(map[control.Kind]func(*power.Converter) control.Law),
	}

	r.laws[control.KindPID] = func(c *power.Converter) control.Law { return control.NewPID(c) }
	r.laws[control.KindCOT] = func(c *power.Converter) control.Law { return control.NewCOT(c) }
	r.laws[control.KindStepUpDown] = func(c *power.Converter) control.Law { return control.NewStepUpDown(c) }

	return r
}

// Register adds or replaces the constructor of a law kind.
func (r *Registry) Register(kind control.Kind, fn func(*power.Converter) control.Law) {
	r.laws[kind] = fn
}

func (r *Registry) GetLaw(kind control.Kind, conv *power.Converter) (control.Law, error) {
	fn, ok := r.laws[kind]
	if !ok {
		return nil, errors.Wrapf(control.ErrUnknownKind, "%q", kind)
	}
	return fn(conv), nil
}

func (r *Registry) ListLaws() []string {
	names := make([]string, 0, len(r.laws))
	for name := range r.laws {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// DefaultParams returns the coefficients of a freshly built law.
func (r *Registry) DefaultParams(kind control.Kind) (map[string]float64, error) {
	law, err := r.GetLaw(kind, power.NewConverter("defaults"))
	if err != nil {
		return nil, err
	}
	return law.GetParams(), nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
