package experiment

// Matrix spans scenarios over events and operating points.
type Matrix struct {
	Events         []Event   `yaml:"events" json:"events"`
	InputVoltage   float64   `yaml:"vin" json:"vin"`
	OutputVoltages []float64 `yaml:"vouts" json:"vouts"`
	OutputCurrents []float64 `yaml:"iouts" json:"iouts"`
	// LoadChanges only multiply LOAD_CHANGE scenarios.
	LoadChanges []float64 `yaml:"load_changes" json:"load_changes"`
}

func DefaultMatrix() Matrix {
	return Matrix{
		Events:         Events(),
		InputVoltage:   5,
		OutputVoltages: []float64{12},
		OutputCurrents: []float64{0.001, 0.010},
		LoadChanges:    []float64{10, 1.2, 0.5, 0.2, 0.1, 0.01},
	}
}

// Specs lists the scenarios ordered by event, output voltage, load change
// and output current.
func (m Matrix) Specs() []Spec {
	var specs []Spec
	for _, ev := range m.Events {
		for _, vOut := range m.OutputVoltages {
			changes := []float64{1}
			if ev == EventLoadChange && len(m.LoadChanges) > 0 {
				changes = m.LoadChanges
			}
			for _, lc := range changes {
				for _, iOut := range m.OutputCurrents {
					s := Spec{
						Event:         ev,
						InputVoltage:  m.InputVoltage,
						OutputVoltage: vOut,
						OutputCurrent: iOut,
					}
					if ev == EventLoadChange {
						s.LoadChange = lc
					}
					specs = append(specs, s)
				}
			}
		}
	}
	return specs
}
