package storage

import (
	"github.com/san-kum/smpsim/internal/sim"
)

// Series is a sampled trace detached from its circuit, as stored on disk.
type Series struct {
	Title string
	Names []string
	Units []string
	Times []float64
	Rows  [][]float64
}

func FromTrace(tr *sim.Trace) *Series {
	s := &Series{
		Title: tr.Title,
		Names: tr.Names(),
		Units: tr.Units(),
	}
	for _, smp := range tr.Samples {
		s.Times = append(s.Times, smp.Time)
		s.Rows = append(s.Rows, append([]float64(nil), smp.Values...))
	}
	return s
}

// Column returns the samples of the named probe.
func (s *Series) Column(name string) ([]float64, bool) {
	idx := -1
	for i, n := range s.Names {
		if n == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(s.Rows))
	for i, row := range s.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

// Unit returns the unit of the named probe, if known.
func (s *Series) Unit(name string) string {
	for i, n := range s.Names {
		if n == name && i < len(s.Units) {
			return s.Units[i]
		}
	}
	return ""
}
