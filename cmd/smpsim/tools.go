package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/smpsim/internal/analysis"
	"github.com/san-kum/smpsim/internal/automation"
	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/experiment"
	"github.com/san-kum/smpsim/internal/power"
	"github.com/san-kum/smpsim/internal/timer"
)

func lawsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "laws",
		Short: "list control laws and their default coefficients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			for _, name := range reg.ListLaws() {
				params, err := reg.DefaultParams(control.Kind(name))
				if err != nil {
					return err
				}
				fmt.Printf("%s\n", name)
				keys := make([]string, 0, len(params))
				for k := range params {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Printf("  %-20s %.6g\n", k, params[k])
				}
			}
			return nil
		},
	}
}

func dutyCommand() *cobra.Command {
	d := power.DutyCalculator{
		SwitchingFrequency: 100e3,
		InputVoltage:       5,
		OutputVoltage:      12,
		OutputCurrent:      0.01,
		Inductance:         power.DefaultInductance,
		DiodeDrop:          power.DefaultDiodeDrop,
	}
	cmd := &cobra.Command{
		Use:   "duty",
		Short: "steady-state duty cycle of the boost stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := d.Calculate()
			if err != nil {
				return err
			}
			mode := "discontinuous"
			if res.Continuous {
				mode = "continuous"
			}
			regs := timer.NewCalculator().Calculate(d.SwitchingFrequency, res.Duty)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "duty\t%.5f\n", res.Duty)
			fmt.Fprintf(w, "conduction\t%s\n", mode)
			fmt.Fprintf(w, "input current\t%.5g A\n", d.InputCurrent())
			fmt.Fprintf(w, "initial inductor current\t%.5g A\n", res.InitialInductorCurrent)
			fmt.Fprintf(w, "pwm\tprescale %d  reload %d  compare %d\n", regs.Prescale, regs.Reload, regs.Compare)
			return w.Flush()
		},
	}
	cmd.Flags().Float64Var(&d.InputVoltage, "vin", d.InputVoltage, "input voltage")
	cmd.Flags().Float64Var(&d.OutputVoltage, "vout", d.OutputVoltage, "output voltage")
	cmd.Flags().Float64Var(&d.OutputCurrent, "iout", d.OutputCurrent, "output current")
	cmd.Flags().Float64Var(&d.SwitchingFrequency, "freq", d.SwitchingFrequency, "switching frequency")
	cmd.Flags().Float64Var(&d.Inductance, "inductance", d.Inductance, "inductance")
	cmd.Flags().Float64Var(&d.DiodeDrop, "diode", d.DiodeDrop, "diode forward drop")
	return cmd
}

func pwmCommand() *cobra.Command {
	calc := timer.NewCalculator()
	var frequency, duty float64
	cmd := &cobra.Command{
		Use:   "pwm",
		Short: "timer register values for a PWM frequency and duty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := calc.CalculateChecked(frequency, duty)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "prescale\t%d\n", v.Prescale)
			fmt.Fprintf(w, "reload\t%d\n", v.Reload)
			fmt.Fprintf(w, "compare\t%d\n", v.Compare)
			fmt.Fprintf(w, "frequency\t%.6g Hz\n", calc.Frequency(v))
			if v.Reload > 0 {
				fmt.Fprintf(w, "duty\t%.6g\n", float64(v.Compare)/float64(v.Reload))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Float64Var(&frequency, "freq", 100e3, "PWM frequency")
	cmd.Flags().Float64Var(&duty, "duty", 0.5, "duty cycle")
	cmd.Flags().Float64Var(&calc.Clock, "clock", timer.DefaultClock, "timer clock")
	cmd.Flags().UintVar(&calc.Bits, "bits", calc.Bits, "counter width")
	return cmd
}

func sweepCommand() *cobra.Command {
	spec := experiment.Spec{Event: experiment.EventNone, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01, LoadChange: 1}
	var (
		lawName   string
		event     string
		param     string
		paramMin  float64
		paramMax  float64
		steps     int
		transient float64
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "settled output over a range of one law coefficient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := control.ParseKind(lawName)
			if err != nil {
				return err
			}
			if spec.Event, err = experiment.ParseEvent(event); err != nil {
				return err
			}
			points, err := analysis.Sweep(cmd.Context(), experiment.NewRegistry(), kind, spec,
				experiment.DefaultOptions(), param, paramMin, paramMax, steps, transient)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\tCOST\tLEVELS\n", param)
			for _, p := range points {
				if p.Err != nil {
					fmt.Fprintf(w, "%.4g\t-\t%v\n", p.Param, p.Err)
					continue
				}
				fmt.Fprintf(w, "%.4g\t%.4g\t%d\n", p.Param, p.Cost, len(p.Values))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Println()
			fmt.Print(analysis.SweepToASCII(points, 70, 20))
			return nil
		},
	}
	cmd.Flags().StringVar(&lawName, "law", "pid", "control law")
	cmd.Flags().StringVar(&event, "event", string(experiment.EventNone), "scenario event")
	cmd.Flags().Float64Var(&spec.InputVoltage, "vin", spec.InputVoltage, "input voltage")
	cmd.Flags().Float64Var(&spec.OutputVoltage, "vout", spec.OutputVoltage, "output voltage")
	cmd.Flags().Float64Var(&spec.OutputCurrent, "iout", spec.OutputCurrent, "output current")
	cmd.Flags().Float64Var(&spec.LoadChange, "load-change", spec.LoadChange, "load change factor")
	cmd.Flags().StringVar(&param, "param", "kP", "coefficient to sweep")
	cmd.Flags().Float64Var(&paramMin, "min", 0.01, "first value")
	cmd.Flags().Float64Var(&paramMax, "max", 1, "last value")
	cmd.Flags().IntVar(&steps, "steps", 20, "number of values")
	cmd.Flags().Float64Var(&transient, "transient", 1e-3, "simulated time ignored before sampling")
	return cmd
}

func monteCarloCommand() *cobra.Command {
	cfg := automation.DefaultMonteCarloConfig()
	cfg.Spec = experiment.Spec{Event: experiment.EventInputDrop, InputVoltage: 5, OutputVoltage: 12, OutputCurrent: 0.01, LoadChange: 1}
	var lawName, event string
	cmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "repeat one scenario with random noise seeds and input spread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg.Law, err = control.ParseKind(lawName); err != nil {
				return err
			}
			if cfg.Spec.Event, err = experiment.ParseEvent(event); err != nil {
				return err
			}
			results, err := automation.RunMonteCarlo(cmd.Context(), experiment.NewRegistry(), cfg, logger)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TRIAL\tVIN\tCOST\tVOUT\tSTABLE")
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(w, "%d\t%.3f\t-\t-\t%v\n", r.Trial, r.InputVoltage, r.Err)
					continue
				}
				fmt.Fprintf(w, "%d\t%.3f\t%.4g\t%.3f\t%t\n", r.Trial, r.InputVoltage, r.Cost, r.FinalVoltage, r.Stable)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			sum := automation.Summarize(results)
			fmt.Printf("\ntrials: %d  failed: %d  unstable: %d\n", sum.Trials, sum.Failed, sum.Unstable)
			fmt.Printf("cost: mean %.4g  std %.4g  worst %.4g\n", sum.MeanCost, sum.StdCost, sum.WorstCost)
			return nil
		},
	}
	cmd.Flags().StringVar(&lawName, "law", "pid", "control law")
	cmd.Flags().StringVar(&event, "event", string(cfg.Spec.Event), "scenario event")
	cmd.Flags().Float64Var(&cfg.Spec.InputVoltage, "vin", cfg.Spec.InputVoltage, "nominal input voltage")
	cmd.Flags().Float64Var(&cfg.Spec.OutputVoltage, "vout", cfg.Spec.OutputVoltage, "output voltage")
	cmd.Flags().Float64Var(&cfg.Spec.OutputCurrent, "iout", cfg.Spec.OutputCurrent, "output current")
	cmd.Flags().Float64Var(&cfg.Spec.LoadChange, "load-change", cfg.Spec.LoadChange, "load change factor")
	cmd.Flags().IntVar(&cfg.Trials, "trials", cfg.Trials, "number of trials")
	cmd.Flags().Float64Var(&cfg.Spread, "spread", cfg.Spread, "relative input voltage spread")
	cmd.Flags().Float64Var(&cfg.Tolerance, "tolerance", cfg.Tolerance, "final output error of a stable trial")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	cmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel trials")
	return cmd
}
