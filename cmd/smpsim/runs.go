package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/smpsim/internal/analysis"
	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/experiment"
	"github.com/san-kum/smpsim/internal/export"
	"github.com/san-kum/smpsim/internal/storage"
)

const maxPlots = 6

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLAW\tVARIANT\tTIME\tSCENARIOS\tCOST")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4g\n",
			run.ID,
			run.Law,
			run.Variant,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			len(run.Scenarios),
			run.Cost,
		)
	}

	return w.Flush()
}

// loadScenario returns the stored record and trace of the selected scenario.
func loadScenario(runID string) (*storage.ScenarioRecord, *storage.Series, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	s, err := st.LoadTrace(runID, scenario)
	if err != nil {
		return nil, nil, err
	}
	if len(s.Rows) == 0 {
		return nil, nil, fmt.Errorf("no data in scenario %d of %s", scenario, runID)
	}
	return &meta.Scenarios[scenario], s, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	rec, s, err := loadScenario(args[0])
	if err != nil {
		return err
	}

	names := series
	if len(names) == 0 {
		names = s.Names
		if len(names) > maxPlots {
			names = names[:maxPlots]
		}
	}

	fmt.Printf("run: %s\n", args[0])
	fmt.Printf("scenario: %d %s\n", rec.Index, rec.Label)
	fmt.Printf("samples: %d\n\n", len(s.Rows))

	for _, name := range names {
		data, ok := s.Column(name)
		if !ok {
			return fmt.Errorf("no series %q (available: %v)", name, s.Names)
		}
		caption := name
		if u := s.Unit(name); u != "" {
			caption = fmt.Sprintf("%s [%s]", name, u)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

// rebuild wires the scenario of rec again to recover its target profile and
// event time.
func rebuild(runID string, rec *storage.ScenarioRecord) (*experiment.Scenario, error) {
	meta, err := storage.New(dataDir).Load(runID)
	if err != nil {
		return nil, err
	}
	kind, err := control.ParseKind(meta.Law)
	if err != nil {
		return nil, err
	}
	opts := experiment.DefaultOptions()
	opts.Params = rec.Params
	return experiment.Build(experiment.NewRegistry(), kind, rec.Spec, opts)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	rec, s, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	sc, err := rebuild(args[0], rec)
	if err != nil {
		return err
	}

	names := series
	if len(names) == 0 {
		names = []string{"Vout"}
	}
	fmt.Printf("scenario: %d %s\n", rec.Index, rec.Label)

	for _, name := range names {
		values, ok := s.Column(name)
		if !ok {
			return fmt.Errorf("no series %q (available: %v)", name, s.Names)
		}
		fmt.Printf("\n%s\n", name)

		spec, err := analysis.Spectrum(s.Times, values)
		if err != nil {
			return err
		}
		d := spec.Dominant()
		fmt.Printf("  sample rate:      %.4g Hz\n", spec.SampleRate)
		fmt.Printf("  dominant:         %.4g Hz (amplitude %.4g)\n", d.Frequency, d.Magnitude)

		if name != "Vout" {
			continue
		}
		eventTime := sc.Law.EventTime()
		target := sc.Law.TargetValue(s.Times[len(s.Times)-1])
		step, err := analysis.AnalyzeStep(s.Times, values, target, eventTime, band)
		if err != nil {
			return err
		}
		fmt.Printf("  event time:       %.4g s\n", step.EventTime)
		fmt.Printf("  target:           %.4g V\n", step.Target)
		fmt.Printf("  overshoot:        %.4g V\n", step.Overshoot)
		fmt.Printf("  undershoot:       %.4g V\n", step.Undershoot)
		if step.Settled() {
			fmt.Printf("  settling time:    %.4g s\n", step.SettlingTime)
		} else {
			fmt.Printf("  settling time:    not settled within %.3g V\n", band)
		}
		fmt.Printf("  final error:      %.4g V\n", step.FinalError)
		fmt.Printf("  ripple (std):     %.4g V\n", step.Ripple)
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	rec, s, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	portrait, err := analysis.NewPhasePortrait(s, xSeries, ySeries)
	if err != nil {
		return err
	}
	fmt.Printf("scenario: %d %s\n", rec.Index, rec.Label)
	fmt.Printf("%s (y) over %s (x)\n\n", ySeries, xSeries)
	fmt.Print(analysis.PhasePortraitToASCII(portrait, 70, 24))
	return nil
}

func output() (io.Writer, func() error, error) {
	if outPath == "" || outPath == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, s, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	names := series
	if len(names) == 0 {
		names = s.Names
	}
	columns := make([][]float64, len(names))
	for i, name := range names {
		col, ok := s.Column(name)
		if !ok {
			return fmt.Errorf("no series %q (available: %v)", name, s.Names)
		}
		columns[i] = col
	}

	out, closeOut, err := output()
	if err != nil {
		return err
	}
	w := csv.NewWriter(out)
	if err := w.Write(append([]string{"time"}, names...)); err != nil {
		return err
	}
	for j, t := range s.Times {
		row := make([]string, len(names)+1)
		row[0] = strconv.FormatFloat(t, 'g', -1, 64)
		for i := range names {
			row[i+1] = strconv.FormatFloat(columns[i][j], 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}
	if outPath != "" && outPath != "-" {
		logger.Info("exported", "file", outPath)
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	rec, s, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	data := export.NewExportData(args[0], rec, s)
	if outPath == "" || outPath == "-" {
		return export.ExportJSONStdout(data)
	}
	if err := export.ExportJSON(outPath, data); err != nil {
		return err
	}
	logger.Info("exported", "file", outPath)
	return nil
}

func exportPNG(cmd *cobra.Command, args []string) error {
	_, s, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = fmt.Sprintf("%s_%02d.png", args[0], scenario)
	}
	if err := export.WritePNG(path, s, series...); err != nil {
		return err
	}
	logger.Info("exported", "file", path)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	_, s, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	name := "Vout"
	if len(series) > 0 {
		name = series[0]
	}
	path := outPath
	if path == "" {
		path = fmt.Sprintf("%s_%02d_%s.svg", args[0], scenario, name)
	}
	if err := export.WriteSVG(path, s, name); err != nil {
		return err
	}
	logger.Info("exported", "file", path)
	return nil
}
