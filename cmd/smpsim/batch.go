package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/smpsim/internal/config"
	"github.com/san-kum/smpsim/internal/experiment"
	"github.com/san-kum/smpsim/internal/optim"
	"github.com/san-kum/smpsim/internal/storage"
	"github.com/san-kum/smpsim/internal/viz"
)

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return executeBatch(cmd.Context(), cfg)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Variant = string(experiment.VariantOptimizeAll)
	if individual {
		cfg.Variant = string(experiment.VariantOptimizeIndividual)
	}
	return executeBatch(cmd.Context(), cfg)
}

func executeBatch(ctx context.Context, cfg *config.Config) error {
	kind, err := cfg.LawKind()
	if err != nil {
		return err
	}
	v, err := cfg.BatchVariant()
	if err != nil {
		return err
	}
	opts, err := cfg.OptimOptions()
	if err != nil {
		return err
	}

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}

	b := &experiment.Batch{
		Registry: experiment.NewRegistry(),
		Law:      kind,
		Variant:  v,
		Specs:    cfg.Specs(),
		Options:  cfg.ExperimentOptions(),
		Optim:    opts,
		Logger:   logger,
	}

	logger.Info("running batch", "law", kind, "variant", v, "scenarios", len(b.Specs))
	start := time.Now()

	var report *experiment.Report
	if live && v != experiment.VariantManual {
		// the live view owns the terminal
		b.Logger = log.New(io.Discard)
		title := fmt.Sprintf("%s %s", kind, v)
		err = viz.RunOptimization(ctx, title, opts.MaxEvaluations, func(ctx context.Context, progress func(optim.Progress)) error {
			b.Optim.Progress = progress
			var runErr error
			report, runErr = b.Run(ctx)
			return runErr
		})
	} else {
		report, err = b.Run(ctx)
	}
	if report == nil {
		return err
	}
	if err != nil {
		logger.Error("batch interrupted", "err", err)
	}

	runID, saveErr := st.Save(report, cfg.Seed)
	if saveErr != nil {
		return saveErr
	}

	fmt.Println(viz.RenderReport(report))
	fmt.Printf("completed in %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	return err
}
