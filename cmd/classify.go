package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/dataset"
	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/store"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify one numeric column",
	Long:  "Reads a column from a local or remote CSV, TSV, XLSX or shapefile (optionally zipped) and prints its class breaks and legend.",
	Example: `  choropleth classify --input tracts.csv --column median_income --scheme fisher_jenks -k 5
  choropleth classify --input https://example.com/imd.xlsx --column score --sheet IMD --format json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("classify"); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		column, _ := cmd.Flags().GetString("column")
		format, _ := cmd.Flags().GetString("format")
		save, _ := cmd.Flags().GetBool("save")
		withClasses, _ := cmd.Flags().GetBool("with-classes")

		opts, err := classifyOptions(cmd)
		if err != nil {
			return err
		}
		readOpts, err := datasetOptions(cmd, []string{column})
		if err != nil {
			return err
		}

		cols, err := readColumns(ctx, input, readOpts)
		if err != nil {
			return err
		}
		col := cols[0]

		res, err := classify.Classify(col.Values, opts)
		if err != nil {
			return eris.Wrapf(err, "classify %s", col.Name)
		}
		if res.Degenerate {
			zap.L().Warn("degenerate input", zap.String("column", col.Name), zap.Error(res.Err()))
		}

		pal, err := loadPalette(cmd, res.KEffective)
		if err != nil {
			return err
		}
		r := newReport(col.Name, input, res, pal)
		if withClasses && len(col.Keys) > 0 {
			r.Assignments = model.Assignments(col.Keys, res)
		}

		if save {
			if err := cfg.Validate("store"); err != nil {
				return err
			}
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if r.RunID, err = saveRun(ctx, st, col, input, res); err != nil {
				return err
			}
		}

		return writeReports(os.Stdout, format, []report{r})
	},
}

func init() {
	classifyCmd.Flags().String("input", "", "input file path or http(s)/ftp URL")
	classifyCmd.Flags().String("column", "", "numeric column to classify")
	_ = classifyCmd.MarkFlagRequired("input")
	_ = classifyCmd.MarkFlagRequired("column")
	addClassifyFlags(classifyCmd)
	addDatasetFlags(classifyCmd)
	classifyCmd.Flags().String("format", "table", "output format: table, json, yaml")
	classifyCmd.Flags().Bool("save", false, "persist the run to the configured store")
	classifyCmd.Flags().Bool("with-classes", false, "include per-row classes keyed by --key in the output")
	rootCmd.AddCommand(classifyCmd)
}

func addDatasetFlags(cmd *cobra.Command) {
	cmd.Flags().String("key", "", "row identifier column; enables saved per-row classes")
	cmd.Flags().String("sheet", "", "XLSX sheet name (first sheet when empty)")
	cmd.Flags().String("delimiter", "", "CSV delimiter (default comma, tab for .tsv)")
	cmd.Flags().String("charset", "", "CSV text encoding, e.g. latin1 (default UTF-8)")
}

func datasetOptions(cmd *cobra.Command, columns []string) (dataset.Options, error) {
	key, _ := cmd.Flags().GetString("key")
	sheet, _ := cmd.Flags().GetString("sheet")
	delim, _ := cmd.Flags().GetString("delimiter")
	charset, _ := cmd.Flags().GetString("charset")

	opts := dataset.Options{Columns: columns, KeyColumn: key, Sheet: sheet, Charset: charset}
	switch r := []rune(delim); len(r) {
	case 0:
	case 1:
		opts.Delimiter = r[0]
	default:
		if delim != `\t` {
			return dataset.Options{}, eris.Errorf("delimiter must be a single character, got %q", delim)
		}
		opts.Delimiter = '\t'
	}
	return opts, nil
}

func readColumns(ctx context.Context, input string, opts dataset.Options) ([]dataset.Column, error) {
	path, err := resolveInput(ctx, newFetchClient(), input, tableExts...)
	if err != nil {
		return nil, err
	}
	return dataset.Open(ctx, path, opts)
}

// saveRun stores res and, when the column has row keys, its per-row classes.
func saveRun(ctx context.Context, st store.Store, col dataset.Column, source string, res *classify.Result) (string, error) {
	run := model.NewRun(col.Name, source, res)
	if err := st.SaveRun(ctx, run); err != nil {
		return "", err
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("column", col.Name))
	if len(col.Keys) > 0 {
		n, err := st.SaveAssignments(ctx, run.ID, model.Assignments(col.Keys, res))
		if err != nil {
			return "", err
		}
		log.Info("saved run", zap.Int64("assignments", n))
		return run.ID, nil
	}
	log.Info("saved run")
	return run.ID, nil
}
