package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/fetch"
	"github.com/sells-group/choropleth/internal/palette"
	"github.com/sells-group/choropleth/internal/store"
)

// tableExts are the archive members tried, in order, when an input is a .zip.
var tableExts = []string{".shp", ".csv", ".tsv", ".txt", ".xlsx"}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newFetchClient() *fetch.Client {
	return fetch.New(fetch.Options{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		RateLimit:  cfg.Fetch.RateLimit,
	})
}

// resolveInput downloads a remote input and unpacks zip archives. exts lists the file
// extensions acceptable inside an archive, in order of preference.
func resolveInput(ctx context.Context, client *fetch.Client, src string, exts ...string) (string, error) {
	if fetch.IsRemote(src) {
		zap.L().Info("fetching remote input", zap.String("src", src), zap.String("temp_dir", cfg.Fetch.TempDir))
	}
	path, err := client.Download(ctx, src, cfg.Fetch.TempDir)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return path, nil
	}

	dir := strings.TrimSuffix(path, filepath.Ext(path))
	files, err := fetch.ExtractZIP(path, dir)
	if err != nil {
		return "", err
	}
	zap.L().Debug("extracted archive", zap.String("path", path), zap.Int("files", len(files)))

	for _, ext := range exts {
		if found, err := fetch.FindFileByExt(dir, ext); err == nil {
			return found, nil
		}
	}
	return "", eris.Errorf("no %s file in %s", strings.Join(exts, ", "), src)
}

// classifyOptions starts from the configured defaults and applies any classification
// flags set on cmd.
func classifyOptions(cmd *cobra.Command) (classify.Options, error) {
	opts, err := cfg.ClassifyOptions()
	if err != nil {
		return classify.Options{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("scheme") {
		name, _ := flags.GetString("scheme")
		if opts.Scheme, err = classify.ParseScheme(name); err != nil {
			return classify.Options{}, err
		}
	}
	if flags.Changed("k") {
		opts.K, _ = flags.GetInt("k")
	}
	if flags.Changed("drop-invalid") {
		opts.DropInvalid, _ = flags.GetBool("drop-invalid")
	}
	return opts, nil
}

func addClassifyFlags(cmd *cobra.Command) {
	cmd.Flags().String("scheme", "", "classification scheme: equal_interval, quantiles, fisher_jenks, unique_values")
	cmd.Flags().IntP("k", "k", 0, "number of classes")
	cmd.Flags().Bool("drop-invalid", true, "drop missing and non-finite values; --drop-invalid=false makes them an error")
	cmd.Flags().String("palette", "", "color palette name")
}

// loadPalette resolves the palette named by --palette or the config, for k classes.
func loadPalette(cmd *cobra.Command, k int) (palette.Palette, error) {
	reg, err := paletteRegistry()
	if err != nil {
		return palette.Palette{}, err
	}
	name, _ := cmd.Flags().GetString("palette")
	if name == "" {
		name = cfg.Classify.Palette
	}
	return reg.Get(name, k)
}

func paletteRegistry() (*palette.Registry, error) {
	reg := palette.NewRegistry()
	if cfg.Classify.PaletteFile != "" {
		if err := reg.LoadFile(cfg.Classify.PaletteFile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

var errAllFailed = eris.New("every column failed to classify")
