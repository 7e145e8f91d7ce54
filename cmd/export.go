package main

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/dataset"
	"github.com/sells-group/choropleth/internal/fetch"
	"github.com/sells-group/choropleth/internal/geo"
	"github.com/sells-group/choropleth/internal/palette"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Classify a shapefile attribute and write a styled GeoJSON map",
	Long:    "Reads polygons from a shapefile (optionally zipped or remote), classifies one attribute and writes a GeoJSON FeatureCollection with class, color and label properties.",
	Example: `  choropleth export --input tl_2023_06_tract.zip --value-field POVRATE --id-field GEOID --palette Reds -o tracts.geojson`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("classify"); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		valueField, _ := cmd.Flags().GetString("value-field")
		idField, _ := cmd.Flags().GetString("id-field")
		output, _ := cmd.Flags().GetString("output")
		save, _ := cmd.Flags().GetBool("save")

		opts, err := classifyOptions(cmd)
		if err != nil {
			return err
		}

		path, err := newFetchClient().Download(ctx, input, cfg.Fetch.TempDir)
		if err != nil {
			return err
		}
		if path, err = fetch.Unpack(path, ".shp"); err != nil {
			return err
		}

		features, err := geo.ReadFeatures(path, geo.ReadOptions{IDField: idField, ValueField: valueField})
		if err != nil {
			return err
		}
		if len(features) == 0 {
			return eris.Errorf("no features with geometry in %s", input)
		}

		res, err := classify.Classify(geo.Values(features), opts)
		if err != nil {
			return eris.Wrapf(err, "classify %s", valueField)
		}
		if res.Degenerate {
			zap.L().Warn("degenerate input", zap.String("field", valueField), zap.Error(res.Err()))
		}

		pal, err := loadPalette(cmd, res.KEffective)
		if err != nil {
			return err
		}

		if err := writeGeoJSONFile(output, features, res, pal); err != nil {
			return err
		}
		zap.L().Info("wrote geojson",
			zap.String("output", output),
			zap.Int("features", len(features)),
			zap.Int("classes", res.KEffective),
		)

		if save {
			if idField == "" {
				return eris.New("--save requires --id-field")
			}
			if err := cfg.Validate("store"); err != nil {
				return err
			}
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			col := dataset.Column{Name: valueField, Values: geo.Values(features), Keys: featureIDs(features)}
			if _, err := saveRun(ctx, st, col, input, res); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("input", "", "shapefile (.shp or .zip) path or URL")
	exportCmd.Flags().String("value-field", "", "numeric attribute to classify")
	exportCmd.Flags().String("id-field", "", "attribute used as the feature id")
	exportCmd.Flags().StringP("output", "o", "-", "GeoJSON output path, - for stdout")
	exportCmd.Flags().Bool("save", false, "persist the run and per-feature classes")
	_ = exportCmd.MarkFlagRequired("input")
	_ = exportCmd.MarkFlagRequired("value-field")
	addClassifyFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}

func writeGeoJSONFile(output string, features []geo.Feature, res *classify.Result, pal palette.Palette) error {
	var w io.Writer = os.Stdout
	if output != "-" && output != "" {
		f, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "create %s", output)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	bw := bufio.NewWriter(w)
	if err := geo.WriteGeoJSON(bw, features, res, pal); err != nil {
		return err
	}
	return eris.Wrap(bw.Flush(), "flush geojson")
}

func featureIDs(features []geo.Feature) []string {
	ids := make([]string, len(features))
	for i, f := range features {
		ids[i] = f.ID
	}
	return ids
}
