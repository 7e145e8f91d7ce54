package main

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/dataset"
)

func setTestConfig(t *testing.T) *config.Config {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Classify: config.ClassifyConfig{Scheme: "quantiles", K: 5, DropInvalid: true, Palette: "YlOrRd"},
		Store:    config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "runs.db")},
		Batch:    config.BatchConfig{Concurrency: 2},
		Fetch:    config.FetchConfig{TempDir: t.TempDir(), TimeoutSecs: 5, UserAgent: "test", RateLimit: 100, MaxRetries: 1},
	}
	t.Cleanup(func() { cfg = prev })
	return cfg
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addClassifyFlags(cmd)
	addDatasetFlags(cmd)
	return cmd
}

func TestClassifyOptions_Defaults(t *testing.T) {
	setTestConfig(t)

	opts, err := classifyOptions(newFlagCommand())
	require.NoError(t, err)
	assert.Equal(t, classify.Quantiles, opts.Scheme)
	assert.Equal(t, 5, opts.K)
	assert.True(t, opts.DropInvalid)
}

func TestClassifyOptions_FlagsOverride(t *testing.T) {
	setTestConfig(t)
	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Set("scheme", "jenks"))
	require.NoError(t, cmd.Flags().Set("k", "3"))
	require.NoError(t, cmd.Flags().Set("drop-invalid", "false"))

	opts, err := classifyOptions(cmd)
	require.NoError(t, err)
	assert.Equal(t, classify.FisherJenks, opts.Scheme)
	assert.Equal(t, 3, opts.K)
	assert.False(t, opts.DropInvalid)

	require.NoError(t, cmd.Flags().Set("scheme", "head_tail"))
	_, err = classifyOptions(cmd)
	assert.ErrorIs(t, err, classify.ErrInvalidArgument)
}

func TestDatasetOptions_Delimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{in: "", want: 0},
		{in: ";", want: ';'},
		{in: `\t`, want: '\t'},
		{in: "||", wantErr: true},
	}
	for _, tt := range tests {
		cmd := newFlagCommand()
		require.NoError(t, cmd.Flags().Set("delimiter", tt.in))
		opts, err := datasetOptions(cmd, []string{"a"})
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, opts.Delimiter, tt.in)
		assert.Equal(t, []string{"a"}, opts.Columns)
	}
}

func TestResolveInput_LocalFile(t *testing.T) {
	setTestConfig(t)
	path := filepath.Join(t.TempDir(), "tracts.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,v\na,1\n"), 0o644))

	got, err := resolveInput(context.Background(), newFetchClient(), path, tableExts...)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = resolveInput(context.Background(), newFetchClient(), filepath.Join(t.TempDir(), "missing.csv"), tableExts...)
	assert.Error(t, err)
}

func TestResolveInput_ZipArchive(t *testing.T) {
	setTestConfig(t)
	zipPath := filepath.Join(t.TempDir(), "acs.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{"README.txt": "notes", "data/acs.csv": "id,v\na,1\n"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	got, err := resolveInput(context.Background(), newFetchClient(), zipPath, ".shp", ".csv")
	require.NoError(t, err)
	assert.Equal(t, "acs.csv", filepath.Base(got))

	cols, err := readColumns(context.Background(), zipPath, mustDatasetOptions(t, "v"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, cols[0].Values)

	_, err = resolveInput(context.Background(), newFetchClient(), zipPath, ".xlsx")
	assert.Error(t, err)
}

func mustDatasetOptions(t *testing.T, columns ...string) dataset.Options {
	t.Helper()
	opts, err := datasetOptions(newFlagCommand(), columns)
	require.NoError(t, err)
	return opts
}
