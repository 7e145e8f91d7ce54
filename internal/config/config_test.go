package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/classify"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "quantiles", cfg.Classify.Scheme)
	assert.Equal(t, 5, cfg.Classify.K)
	assert.True(t, cfg.Classify.DropInvalid)
	assert.Equal(t, classify.DefaultJenksMaxExact, cfg.Classify.JenksMaxExact)
	assert.Equal(t, classify.DefaultJenksSampleSize, cfg.Classify.JenksSampleSize)
	assert.Equal(t, "YlOrRd", cfg.Classify.Palette)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "choropleth.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 20.0, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, 40, cfg.Server.RateBurst)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, 120, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 256, cfg.Server.MaxK)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
classify:
  scheme: fisher_jenks
  k: 7
  palette: Blues
store:
  driver: postgres
  database_url: postgres://localhost/maps
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fisher_jenks", cfg.Classify.Scheme)
	assert.Equal(t, 7, cfg.Classify.K)
	assert.Equal(t, "Blues", cfg.Classify.Palette)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Batch.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
classify:
  k: 4
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CHOROPLETH_CLASSIFY_K", "9")
	t.Setenv("CHOROPLETH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, 9, cfg.Classify.K)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHOROPLETH_SERVER_PORT=3000\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("CHOROPLETH_SERVER_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestClassifyOptions(t *testing.T) {
	cfg := validDefaults()
	cfg.Classify.Scheme = "natural-breaks"
	cfg.Classify.K = 6

	opts, err := cfg.ClassifyOptions()
	require.NoError(t, err)
	assert.Equal(t, classify.FisherJenks, opts.Scheme)
	assert.Equal(t, 6, opts.K)
	assert.True(t, opts.DropInvalid)

	cfg.Classify.Scheme = "head_tail"
	_, err = cfg.ClassifyOptions()
	assert.ErrorIs(t, err, classify.ErrInvalidArgument)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Classify.Scheme = "quantiles"
	cfg.Classify.K = 5
	cfg.Classify.DropInvalid = true
	cfg.Classify.Palette = "YlOrRd"
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "choropleth.db"
	cfg.Batch.Concurrency = 4
	cfg.Server.Port = 8080
	cfg.Server.RateLimit = 20
	cfg.Server.MaxK = 256
	cfg.Fetch.MaxRetries = 3
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"classify", "batch", "store", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_BadClassify(t *testing.T) {
	cfg := validDefaults()
	cfg.Classify.Scheme = "box_plot"
	cfg.Classify.K = 0
	cfg.Classify.Palette = "Rainbow"

	err := cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify.scheme must be one of")
	assert.Contains(t, err.Error(), "classify.k must be >= 1")
	assert.Contains(t, err.Error(), "classify.palette is not a known palette")
}

func TestValidate_PaletteFileSkipsBuiltinCheck(t *testing.T) {
	cfg := validDefaults()
	cfg.Classify.Palette = "Corporate"
	cfg.Classify.PaletteFile = "palettes.yaml"
	assert.NoError(t, cfg.Validate("classify"))
}

func TestValidate_BatchConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 64")

	cfg.Batch.Concurrency = 65
	assert.Error(t, cfg.Validate("batch"))

	cfg.Batch.Concurrency = 64
	assert.NoError(t, cfg.Validate("batch"))

	// Concurrency only matters in batch mode.
	cfg.Batch.Concurrency = 0
	assert.NoError(t, cfg.Validate("classify"))
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 9090
	cfg.Server.RateLimit = 0
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.rate_limit must be > 0")
}

func TestValidate_ServeMaxK(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.MaxK = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.max_k must be >= 1")

	cfg.Server.MaxK = 8
	cfg.Classify.K = 9
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify.k must not exceed server.max_k")

	// The API limit does not apply to the CLI.
	assert.NoError(t, cfg.Validate("classify"))

	cfg.Classify.K = 8
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_NegativeMaxRetries(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.MaxRetries = -1
	for _, mode := range []string{"classify", "batch", "store", "serve"} {
		err := cfg.Validate(mode)
		require.Error(t, err, mode)
		assert.Contains(t, err.Error(), "fetch.max_retries must be >= 0", mode)
	}

	cfg.Fetch.MaxRetries = 0
	assert.NoError(t, cfg.Validate("classify"))
}

func TestValidate_StorePoolSizes(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.MaxConns = -1
	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.max_conns and store.min_conns must be >= 0")

	cfg.Store.MaxConns = 4
	cfg.Store.MinConns = 6
	err = cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.min_conns must not exceed store.max_conns")

	cfg.Store.MinConns = 2
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
