package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/experiment"
	"github.com/san-kum/smpsim/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type ScenarioRecord struct {
	Index   int                `json:"index"`
	Label   string             `json:"label"`
	Spec    experiment.Spec    `json:"spec"`
	Cost    float64            `json:"cost"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Params  map[string]float64 `json:"params,omitempty"`
	Error   string             `json:"error,omitempty"`
	File    string             `json:"file,omitempty"`
	Units   []string           `json:"units,omitempty"`
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Law       string    `json:"law"`
	Variant   string    `json:"variant"`
	Timestamp time.Time `json:"timestamp"`
	Seed      uint64    `json:"seed"`
	// Params is the optimized point of an optimize-all run.
	Params      map[string]float64 `json:"params,omitempty"`
	Cost        float64            `json:"cost"`
	Evaluations int                `json:"evaluations,omitempty"`
	Scenarios   []ScenarioRecord   `json:"scenarios"`
}

// Save writes the report under a fresh run id: metadata.json plus one CSV
// per simulated scenario.
func (s *Store) Save(report *experiment.Report, seed uint64) (string, error) {
	runID := fmt.Sprintf("%s_%s", report.Law, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Law:       string(report.Law),
		Variant:   string(report.Variant),
		Timestamp: time.Now(),
		Seed:      seed,
		Cost:      report.TotalCost(),
	}
	if opt := report.Optimization; opt != nil {
		meta.Params = make(map[string]float64, len(opt.Params))
		for _, p := range opt.Params {
			meta.Params[p.Name], _ = opt.Value(p.Name)
		}
		meta.Evaluations = opt.Evaluations
	}

	for i, o := range report.Outcomes {
		rec := ScenarioRecord{
			Index:   i,
			Label:   o.Spec.String(),
			Spec:    o.Spec,
			Cost:    o.Cost,
			Metrics: o.Metrics,
			Params:  o.Params,
		}
		if o.Err != nil {
			rec.Error = o.Err.Error()
			rec.Cost = 0
		}
		if o.Scenario != nil {
			rec.File = fmt.Sprintf("scenario_%02d.csv", i)
			rec.Units = o.Scenario.Trace.Units()
			if err := writeTrace(filepath.Join(runDir, rec.File), o.Scenario.Trace); err != nil {
				return "", errors.Wrapf(err, "scenario %d", i)
			}
		}
		meta.Scenarios = append(meta.Scenarios, rec)
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	return runID, nil
}

func writeTrace(path string, tr *sim.Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"time"}, tr.Names()...)); err != nil {
		return err
	}
	for _, smp := range tr.Samples {
		row := make([]string, 0, len(smp.Values)+1)
		row = append(row, strconv.FormatFloat(smp.Time, 'g', 9, 64))
		for _, v := range smp.Values {
			row = append(row, strconv.FormatFloat(v, 'g', 9, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns all stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}

	return &meta, nil
}

// LoadTrace reads the trace of the scenario with the given index.
func (s *Store) LoadTrace(runID string, index int) (*Series, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(meta.Scenarios) {
		return nil, errors.Errorf("run %s has %d scenarios, no index %d", runID, len(meta.Scenarios), index)
	}
	rec := meta.Scenarios[index]
	if rec.File == "" {
		return nil, errors.Errorf("scenario %d of run %s failed: %s", index, runID, rec.Error)
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, rec.File))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Errorf("%s: missing header", rec.File)
	}

	series := &Series{Title: rec.Label, Names: records[0][1:], Units: rec.Units}
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}

		row := make([]float64, len(series.Names))
		for j := 1; j < len(record) && j <= len(row); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			row[j-1] = val
		}
		series.Times = append(series.Times, t)
		series.Rows = append(series.Rows, row)
	}

	return series, nil
}
