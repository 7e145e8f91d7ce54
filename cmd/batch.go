package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/batch"
	"github.com/sells-group/choropleth/internal/dataset"
	"github.com/sells-group/choropleth/internal/store"
)

var batchCmd = &cobra.Command{
	Use:     "batch",
	Short:   "Classify several columns of one input concurrently",
	Example: `  choropleth batch --input acs.csv --columns median_income,poverty_rate,unemployment --key GEOID --save`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		columns, _ := cmd.Flags().GetStringSlice("columns")
		format, _ := cmd.Flags().GetString("format")
		save, _ := cmd.Flags().GetBool("save")
		concurrency := cfg.Batch.Concurrency
		if cmd.Flags().Changed("concurrency") {
			concurrency, _ = cmd.Flags().GetInt("concurrency")
		}

		opts, err := classifyOptions(cmd)
		if err != nil {
			return err
		}
		readOpts, err := datasetOptions(cmd, columns)
		if err != nil {
			return err
		}
		cols, err := readColumns(ctx, input, readOpts)
		if err != nil {
			return err
		}

		outcomes, summary, err := batch.ClassifyColumns(ctx, cols, opts, concurrency)
		if err != nil {
			return err
		}

		var st store.Store
		if save {
			if err := cfg.Validate("store"); err != nil {
				return err
			}
			if st, err = initStore(ctx); err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		byName := make(map[string]dataset.Column, len(cols))
		for _, c := range cols {
			byName[c.Name] = c
		}

		reports := make([]report, 0, len(outcomes))
		for _, o := range outcomes {
			if o.Err != nil {
				reports = append(reports, report{Column: o.Column, Source: input, Error: o.Err.Error()})
				continue
			}
			pal, err := loadPalette(cmd, o.Result.KEffective)
			if err != nil {
				return err
			}
			r := newReport(o.Column, input, o.Result, pal)
			if st != nil {
				if r.RunID, err = saveRun(ctx, st, byName[o.Column], input, o.Result); err != nil {
					return err
				}
			}
			reports = append(reports, r)
		}

		zap.L().Info("batch complete",
			zap.Int64("succeeded", summary.Succeeded),
			zap.Int64("failed", summary.Failed),
		)
		if err := writeReports(os.Stdout, format, reports); err != nil {
			return err
		}
		if summary.Succeeded == 0 && summary.Failed > 0 {
			return errAllFailed
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().String("input", "", "input file path or http(s)/ftp URL")
	batchCmd.Flags().StringSlice("columns", nil, "numeric columns to classify")
	_ = batchCmd.MarkFlagRequired("input")
	_ = batchCmd.MarkFlagRequired("columns")
	batchCmd.Flags().Int("concurrency", 0, "columns classified in parallel (default from config)")
	addClassifyFlags(batchCmd)
	addDatasetFlags(batchCmd)
	batchCmd.Flags().String("format", "table", "output format: table, json, yaml")
	batchCmd.Flags().Bool("save", false, "persist each successful run to the configured store")
	rootCmd.AddCommand(batchCmd)
}
