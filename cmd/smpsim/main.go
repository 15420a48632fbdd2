package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/smpsim/internal/config"
	"github.com/san-kum/smpsim/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	theme      string
	overrides  []string

	law        string
	variant    string
	seed       uint64
	method     string
	workers    int
	maxEvals   int
	duration   float64
	plotStart  float64
	plotEnd    float64
	live       bool
	scenario   int
	series     []string
	outPath    string
	band       float64
	xSeries    string
	ySeries    string
	individual bool
)

var logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "smpsim"})

// main registers the commands and flags and executes the root command.
// It exits with status 1 if the command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "smpsim",
		Short:         "boost converter simulation and controller tuning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(lvl)
			if theme != "" && !viz.SetTheme(theme) {
				return fmt.Errorf("unknown theme: %s (available: %v)", theme, viz.ThemeNames())
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "", "color theme")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate the scenario matrix with a control law",
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}
	addBatchFlags(runCmd)
	runCmd.Flags().StringVar(&variant, "variant", config.DefaultVariant, "manual, optimize-individual or optimize-all")

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "tune the law coefficients over the scenario matrix",
		Args:  cobra.NoArgs,
		RunE:  runOptimize,
	}
	addBatchFlags(optimizeCmd)
	optimizeCmd.Flags().BoolVar(&individual, "individual", false, "tune each scenario on its own")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a scenario trace",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	addTraceFlags(plotCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step response and spectrum of a scenario trace",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	addTraceFlags(analyzeCmd)
	analyzeCmd.Flags().Float64Var(&band, "band", config.DefaultSettlingBand, "settling band in volts")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "state plane plot of a scenario trace",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVarP(&scenario, "scenario", "s", 0, "scenario index")
	phaseCmd.Flags().StringVar(&xSeries, "x", "Vout", "series on the x axis")
	phaseCmd.Flags().StringVar(&ySeries, "y", "IL", "series on the y axis")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a scenario trace to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a scenario trace to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportPNGCmd := &cobra.Command{
		Use:   "export-png [run_id]",
		Short: "chart a scenario trace to PNG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportPNG,
	}
	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw one series of a scenario trace as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	for _, c := range []*cobra.Command{exportCSVCmd, exportJSONCmd, exportPNGCmd, exportSVGCmd} {
		addTraceFlags(c)
		c.Flags().StringVarP(&outPath, "out", "o", "", "output file")
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [law]",
		Short: "list available presets for a law",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for law: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, optimizeCmd, listCmd, plotCmd, analyzeCmd, phaseCmd,
		exportCSVCmd, exportJSONCmd, exportPNGCmd, exportSVGCmd, presetsCmd,
		lawsCommand(), dutyCommand(), pwmCommand(), sweepCommand(), monteCarloCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&law, "law", config.DefaultLaw, "control law (pid, cot, stepupdown)")
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "override a law coefficient, name=value")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "ADC noise seed")
	cmd.Flags().StringVar(&method, "method", "cmaes", "optimizer (cmaes, neldermead, grid)")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel scenario evaluations")
	cmd.Flags().IntVar(&maxEvals, "max-evals", 0, "optimizer evaluation budget")
	cmd.Flags().Float64Var(&duration, "time", 0, "simulated time per scenario, 0 for the law default")
	cmd.Flags().BoolVar(&live, "live", false, "show optimizer progress in a live view")
	cmd.Flags().Float64Var(&plotStart, "plot-start", 0, "first simulated instant stored in the traces")
	cmd.Flags().Float64Var(&plotEnd, "plot-end", 0, "last simulated instant stored in the traces, 0 for the end of the run")
}

func addTraceFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&scenario, "scenario", "s", 0, "scenario index")
	cmd.Flags().StringSliceVar(&series, "series", nil, "series names (default depends on the command)")
}

// loadConfig builds the batch config: defaults, then the preset, then the
// config file, then the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(law, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(law))
		}
	}

	if configFile != "" {
		var err error
		cfg, err = config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("law") {
		cfg.Law = law
	}
	if flags.Changed("variant") {
		cfg.Variant = variant
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("plot-start") {
		cfg.PlotStart = plotStart
	}
	if flags.Changed("plot-end") {
		cfg.PlotEnd = plotEnd
	}
	if flags.Changed("method") {
		cfg.Optimizer.Method = method
	}
	if flags.Changed("workers") {
		cfg.Optimizer.Workers = workers
	}
	if flags.Changed("max-evals") {
		cfg.Optimizer.MaxEvaluations = maxEvals
	}
	if flags.Changed("data") || cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}

	if len(overrides) > 0 {
		params := make(map[string]float64, len(cfg.Params)+len(overrides))
		for k, v := range cfg.Params {
			params[k] = v
		}
		cfg.Params = params
	}
	for _, kv := range overrides {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q, want name=value", kv)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", kv, err)
		}
		cfg.Params[strings.TrimSpace(name)] = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
