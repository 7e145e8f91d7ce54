package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/palette"
)

// Config holds the full application configuration.
type Config struct {
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ClassifyConfig holds classification defaults used when a command or request omits them.
type ClassifyConfig struct {
	Scheme           string `yaml:"scheme" mapstructure:"scheme"`
	K                int    `yaml:"k" mapstructure:"k"`
	DropInvalid      bool   `yaml:"drop_invalid" mapstructure:"drop_invalid"`
	JenksMaxExact    int    `yaml:"jenks_max_exact" mapstructure:"jenks_max_exact"`
	JenksSampleSize  int    `yaml:"jenks_sample_size" mapstructure:"jenks_sample_size"`
	MaxUniqueClasses int    `yaml:"max_unique_classes" mapstructure:"max_unique_classes"`
	Palette          string `yaml:"palette" mapstructure:"palette"`
	PaletteFile      string `yaml:"palette_file" mapstructure:"palette_file"`
}

// StoreConfig configures the database backend for saved runs.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	MaxValues      int      `yaml:"max_values" mapstructure:"max_values"`
	MaxK           int      `yaml:"max_k" mapstructure:"max_k"`
}

// BatchConfig configures multi-column classification.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// FetchConfig configures remote input downloads.
type FetchConfig struct {
	TempDir     string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the settings a command mode depends on. Modes are "classify", "batch",
// "store" and "serve"; every problem found is reported in one error.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "classify", "batch", "store", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if _, err := classify.ParseScheme(c.Classify.Scheme); err != nil {
		problems = append(problems, "classify.scheme must be one of equal_interval, quantiles, fisher_jenks, unique_values")
	}
	if c.Classify.K < 1 {
		problems = append(problems, "classify.k must be >= 1")
	}
	if c.Classify.PaletteFile == "" && !palette.Exists(c.Classify.Palette) {
		problems = append(problems, "classify.palette is not a known palette")
	}

	if c.Fetch.MaxRetries < 0 {
		problems = append(problems, "fetch.max_retries must be >= 0")
	}

	if mode == "batch" && (c.Batch.Concurrency < 1 || c.Batch.Concurrency > 64) {
		problems = append(problems, "batch.concurrency must be between 1 and 64")
	}

	if mode == "store" || mode == "serve" {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Store.MaxConns < 0 || c.Store.MinConns < 0 {
			problems = append(problems, "store.max_conns and store.min_conns must be >= 0")
		} else if c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns {
			problems = append(problems, "store.min_conns must not exceed store.max_conns")
		}
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimit <= 0 {
			problems = append(problems, "server.rate_limit must be > 0")
		}
		if c.Server.MaxK < 1 {
			problems = append(problems, "server.max_k must be >= 1")
		} else if c.Classify.K > c.Server.MaxK {
			problems = append(problems, "classify.k must not exceed server.max_k")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ClassifyOptions converts the classify section into classifier options.
func (c *Config) ClassifyOptions() (classify.Options, error) {
	scheme, err := classify.ParseScheme(c.Classify.Scheme)
	if err != nil {
		return classify.Options{}, eris.Wrap(err, "config: classify.scheme")
	}
	return classify.Options{
		Scheme:           scheme,
		K:                c.Classify.K,
		DropInvalid:      c.Classify.DropInvalid,
		JenksMaxExact:    c.Classify.JenksMaxExact,
		JenksSampleSize:  c.Classify.JenksSampleSize,
		MaxUniqueClasses: c.Classify.MaxUniqueClasses,
	}, nil
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// Best-effort: a missing .env is not an error.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHOROPLETH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("classify.scheme", string(classify.Quantiles))
	v.SetDefault("classify.k", 5)
	v.SetDefault("classify.drop_invalid", true)
	v.SetDefault("classify.jenks_max_exact", classify.DefaultJenksMaxExact)
	v.SetDefault("classify.jenks_sample_size", classify.DefaultJenksSampleSize)
	v.SetDefault("classify.max_unique_classes", classify.DefaultMaxUniqueClasses)
	v.SetDefault("classify.palette", "YlOrRd")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "choropleth.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.max_values", 1000000)
	v.SetDefault("server.max_k", 256)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("fetch.temp_dir", "/tmp/choropleth")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.user_agent", "choropleth/1.0")
	v.SetDefault("fetch.rate_limit", 5.0)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
