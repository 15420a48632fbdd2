package config

import (
	"sort"

	"github.com/san-kum/smpsim/internal/experiment"
)

func matrix(events []experiment.Event, iOuts []float64, loadChanges []float64) experiment.Matrix {
	return experiment.Matrix{
		Events:         events,
		InputVoltage:   5,
		OutputVoltages: []float64{12},
		OutputCurrents: iOuts,
		LoadChanges:    loadChanges,
	}
}

var (
	none       = []experiment.Event{experiment.EventNone}
	inputDrop  = []experiment.Event{experiment.EventInputDrop}
	loadChange = []experiment.Event{experiment.EventLoadChange}
	setpoint   = []experiment.Event{experiment.EventSetpointChange}
)

var Presets = map[string]map[string]*Config{
	"pid": {
		"steady": {
			Law: "pid", Variant: "manual",
			Scenarios: matrix(none, []float64{0.01}, nil),
		},
		"input-drop": {
			Law: "pid", Variant: "manual",
			Scenarios: matrix(inputDrop, []float64{0.001, 0.01}, nil),
		},
		"tune": {
			Law: "pid", Variant: "optimize-all",
			Scenarios: matrix(append(none, inputDrop...), []float64{0.001, 0.01}, nil),
		},
	},
	"cot": {
		"light-load": {
			Law: "cot", Variant: "manual",
			Scenarios: matrix(none, []float64{1e-4, 0.001}, nil),
		},
		"load-steps": {
			Law: "cot", Variant: "manual",
			Scenarios: matrix(loadChange, []float64{0.001, 0.01}, []float64{10, 0.1}),
		},
		"tune": {
			Law: "cot", Variant: "optimize-all",
			Scenarios: experiment.DefaultMatrix(),
		},
	},
	"stepupdown": {
		"setpoint": {
			Law: "stepupdown", Variant: "manual",
			Scenarios: matrix(setpoint, []float64{0.01}, nil),
		},
		"tune-each": {
			Law: "stepupdown", Variant: "optimize-individual",
			Scenarios: matrix(append(none, setpoint...), []float64{0.01}, nil),
		},
	},
}

// GetPreset returns a complete config: the preset's fields over the
// defaults.
func GetPreset(law, preset string) *Config {
	lawPresets, ok := Presets[law]
	if !ok {
		return nil
	}
	p, ok := lawPresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Law = p.Law
	cfg.Variant = p.Variant
	cfg.Scenarios = p.Scenarios
	if p.Params != nil {
		cfg.Params = p.Params
	}
	return cfg
}

func ListPresets(law string) []string {
	lawPresets, ok := Presets[law]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(lawPresets))
	for name := range lawPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
