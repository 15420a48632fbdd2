package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/experiment"
	"github.com/san-kum/smpsim/internal/optim"
)

const (
	DefaultLaw          = "pid"
	DefaultVariant      = "manual"
	DefaultSamplePoints = 200
	DefaultSettlingBand = 0.1
	DefaultDataDir      = ".smpsim"
)

type Config struct {
	Law          string             `yaml:"law"`
	Variant      string             `yaml:"variant"`
	Params       map[string]float64 `yaml:"params,omitempty"`
	Seed         uint64             `yaml:"seed"`
	SamplePoints int                `yaml:"sample_points"`
	SettlingBand float64            `yaml:"settling_band"`
	// Duration overrides the law's simulation duration when positive.
	Duration float64 `yaml:"duration,omitempty"`
	// PlotStart and PlotEnd limit the stored traces; a zero end means the
	// end of the run.
	PlotStart float64           `yaml:"plot_start,omitempty"`
	PlotEnd   float64           `yaml:"plot_end,omitempty"`
	DataDir   string            `yaml:"data_dir"`
	Scenarios experiment.Matrix `yaml:"scenarios"`
	Optimizer OptimizerConfig   `yaml:"optimizer"`
}

type OptimizerConfig struct {
	Method         string  `yaml:"method"`
	Workers        int     `yaml:"workers"`
	MaxEvaluations int     `yaml:"max_evaluations"`
	Tolerance      float64 `yaml:"tolerance"`
	Population     int     `yaml:"population"`
	GridPoints     int     `yaml:"grid_points"`
	Seed           uint64  `yaml:"seed"`
}

func DefaultConfig() *Config {
	o := optim.DefaultOptions()
	return &Config{
		Law:          DefaultLaw,
		Variant:      DefaultVariant,
		SamplePoints: DefaultSamplePoints,
		SettlingBand: DefaultSettlingBand,
		DataDir:      DefaultDataDir,
		Scenarios:    experiment.DefaultMatrix(),
		Optimizer: OptimizerConfig{
			Method:         o.Method.String(),
			Workers:        o.Workers,
			MaxEvaluations: o.MaxEvaluations,
			Tolerance:      o.Tolerance,
			Population:     o.Population,
			GridPoints:     o.GridPoints,
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads the file at path over base, keeping the fields the file
// leaves out.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return base, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the names and ranges that yaml cannot.
func (c *Config) Validate() error {
	if _, err := c.LawKind(); err != nil {
		return err
	}
	if _, err := experiment.ParseVariant(c.Variant); err != nil {
		return err
	}
	if _, err := optim.ParseMethod(c.Optimizer.Method); err != nil {
		return err
	}
	for _, ev := range c.Scenarios.Events {
		if _, err := experiment.ParseEvent(string(ev)); err != nil {
			return err
		}
	}
	if len(c.Specs()) == 0 {
		return errors.New("config: scenario matrix is empty")
	}
	if c.SamplePoints < 1 {
		return errors.Errorf("config: sample_points must be positive, got %d", c.SamplePoints)
	}
	if c.PlotStart < 0 || c.PlotEnd < 0 || (c.PlotEnd > 0 && c.PlotEnd <= c.PlotStart) {
		return errors.Errorf("config: invalid plot window [%g, %g]", c.PlotStart, c.PlotEnd)
	}
	return nil
}

func (c *Config) LawKind() (control.Kind, error) {
	return control.ParseKind(c.Law)
}

func (c *Config) BatchVariant() (experiment.Variant, error) {
	return experiment.ParseVariant(c.Variant)
}

// Specs normalizes event names and expands the scenario matrix.
func (c *Config) Specs() []experiment.Spec {
	m := c.Scenarios
	events := make([]experiment.Event, 0, len(m.Events))
	for _, ev := range m.Events {
		if parsed, err := experiment.ParseEvent(string(ev)); err == nil {
			events = append(events, parsed)
		}
	}
	m.Events = events
	return m.Specs()
}

func (c *Config) ExperimentOptions() experiment.Options {
	return experiment.Options{
		Params:       c.Params,
		Seed:         c.Seed,
		SamplePoints: c.SamplePoints,
		SettlingBand: c.SettlingBand,
		Duration:     c.Duration,
		PlotStart:    c.PlotStart,
		PlotEnd:      c.PlotEnd,
	}
}

func (c *Config) OptimOptions() (optim.Options, error) {
	method, err := optim.ParseMethod(c.Optimizer.Method)
	if err != nil {
		return optim.Options{}, err
	}
	o := optim.DefaultOptions()
	o.Method = method
	if c.Optimizer.Workers > 0 {
		o.Workers = c.Optimizer.Workers
	}
	if c.Optimizer.MaxEvaluations > 0 {
		o.MaxEvaluations = c.Optimizer.MaxEvaluations
	}
	if c.Optimizer.Tolerance > 0 {
		o.Tolerance = c.Optimizer.Tolerance
	}
	if c.Optimizer.Population > 0 {
		o.Population = c.Optimizer.Population
	}
	if c.Optimizer.GridPoints > 0 {
		o.GridPoints = c.Optimizer.GridPoints
	}
	o.Seed = c.Optimizer.Seed
	return o, nil
}
