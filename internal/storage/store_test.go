package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/experiment"
)

func testReport(t *testing.T) *experiment.Report {
	t.Helper()
	b := &experiment.Batch{
		Law:     control.KindStepUpDown,
		Variant: experiment.VariantManual,
		Specs: []experiment.Spec{
			{Event: experiment.EventNone, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01},
			{Event: experiment.EventNone, InputVoltage: 5, OutputVoltage: 3, OutputCurrent: 0.01},
		},
		Options: experiment.DefaultOptions(),
		Logger:  log.New(&bytes.Buffer{}),
	}
	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	return report
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	report := testReport(t)
	runID, err := st.Save(report, 42)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if meta.Law != "stepupdown" {
		t.Errorf("expected law 'stepupdown', got '%s'", meta.Law)
	}
	if meta.Seed != 42 {
		t.Errorf("expected seed 42, got %d", meta.Seed)
	}
	if len(meta.Scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(meta.Scenarios))
	}
	if meta.Scenarios[1].Error == "" || meta.Scenarios[1].File != "" {
		t.Errorf("expected failed scenario without trace, got %+v", meta.Scenarios[1])
	}
	if meta.Cost != report.TotalCost() {
		t.Errorf("expected cost %g, got %g", report.TotalCost(), meta.Cost)
	}

	series, err := st.LoadTrace(runID, 0)
	if err != nil {
		t.Fatalf("load trace failed: %v", err)
	}
	want := report.Outcomes[0].Scenario.Trace
	if len(series.Times) != len(want.Samples) {
		t.Errorf("expected %d samples, got %d", len(want.Samples), len(series.Times))
	}
	vout, ok := series.Column("Vout")
	if !ok || len(vout) == 0 {
		t.Fatal("expected Vout column")
	}
	last, _ := want.Last("Vout")
	if d := vout[len(vout)-1] - last; d > 1e-6 || d < -1e-6 {
		t.Errorf("expected last Vout %g, got %g", last, vout[len(vout)-1])
	}
	if series.Unit("Vout") != "V" {
		t.Errorf("expected unit V, got %q", series.Unit("Vout"))
	}

	if _, err := st.LoadTrace(runID, 1); err == nil {
		t.Error("expected error for failed scenario")
	}
	if _, err := st.LoadTrace(runID, 5); err == nil {
		t.Error("expected error for missing scenario")
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	report := testReport(t)
	id1, err := st.Save(report, 1)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	id2, err := st.Save(report, 2)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if id1 == id2 {
		t.Error("expected distinct run ids")
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID, err := st.Save(testReport(t), 0)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	for _, name := range []string{"metadata.json", "scenario_00.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, "scenario_01.csv")); !os.IsNotExist(err) {
		t.Error("failed scenario should not have a trace")
	}
}
