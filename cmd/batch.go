package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/batch"
	"github.com/sells-group/nip-resolver/internal/model"
)

var (
	batchInput      string
	batchOutput     string
	batchColumn     int
	batchSheet      string
	batchHeaderRows int
	batchLimit      int
	batchSave       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Resolve every lead in an XLSX column and write the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		sheet, err := batch.ReadXLSX(batchInput, batch.ReadOptions{
			SheetName:  batchSheet,
			Column:     batchColumn,
			HeaderRows: batchHeaderRows,
		})
		if err != nil {
			return err
		}

		env, err := initResolver(ctx, cfg, batchSave)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := batch.Options{Concurrency: cfg.Batch.Concurrency, Limit: batchLimit}
		if batchSave {
			opts.Saver = env.Store
		}

		start := time.Now()
		resolve := func(ctx context.Context, raw string) *model.Trace {
			return env.Router.Resolve(ctx, raw)
		}
		results, sum, err := batch.Process(ctx, sheet.Rows, resolve, opts)
		if err != nil {
			return eris.Wrap(err, "batch: process")
		}

		if err := batch.WriteXLSX(batchOutput, sheet, results); err != nil {
			return err
		}

		zap.L().Info("batch: complete",
			zap.Int("rows", len(sheet.Rows)),
			zap.Int64("resolved", sum.Resolved),
			zap.Int64("suspect", sum.Suspect),
			zap.Int64("not_found", sum.NotFound),
			zap.Int64("skipped", sum.Skipped),
			zap.Float64("cost_usd", sum.CostUSD),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("output", batchOutput),
		)
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchInput, "input", "", "input XLSX file (required)")
	f.StringVar(&batchOutput, "output", "results.xlsx", "output XLSX file")
	f.IntVar(&batchColumn, "column", 0, "zero-based column holding the raw lead text")
	f.StringVar(&batchSheet, "sheet", "", "sheet name (default first sheet)")
	f.IntVar(&batchHeaderRows, "header-rows", 1, "header rows copied unchanged")
	f.IntVar(&batchLimit, "limit", 0, "max rows to resolve, 0 for all")
	f.BoolVar(&batchSave, "save", false, "persist every trace to the configured store")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}
