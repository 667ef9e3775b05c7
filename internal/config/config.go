package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/resolve"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Check     CheckConfig     `yaml:"check" mapstructure:"check"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Scoring   resolve.Weights `yaml:"scoring" mapstructure:"scoring"`
	Bounds    BoundsConfig    `yaml:"bounds" mapstructure:"bounds"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures the HTTP page fetcher.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// CheckConfig configures price check cycles.
type CheckConfig struct {
	Concurrency     int `yaml:"concurrency" mapstructure:"concurrency"`
	ItemTimeoutSecs int `yaml:"item_timeout_secs" mapstructure:"item_timeout_secs"`
}

// DiscoveryConfig configures listing-page discovery.
type DiscoveryConfig struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxPerVariant int `yaml:"max_per_variant" mapstructure:"max_per_variant"`
}

// BoundsConfig locates the per-category plausibility bounds file.
type BoundsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pricewatch.db")
	v.SetDefault("fetch.user_agent", "pricewatch/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("check.concurrency", 4)
	v.SetDefault("check.item_timeout_secs", 45)
	v.SetDefault("discovery.concurrency", 4)
	v.SetDefault("discovery.max_per_variant", 3)
	v.SetDefault("bounds.file", "categories.yaml")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	w := resolve.DefaultWeights()
	v.SetDefault("scoring.base", w.Base)
	v.SetDefault("scoring.tier1", w.Tier1)
	v.SetDefault("scoring.tier2", w.Tier2)
	v.SetDefault("scoring.tier3", w.Tier3)
	v.SetDefault("scoring.tier4", w.Tier4)
	v.SetDefault("scoring.tier5", w.Tier5)
	v.SetDefault("scoring.tier6", w.Tier6)
	v.SetDefault("scoring.exact_cents", w.ExactCents)
	v.SetDefault("scoring.consensus", w.Consensus)
	v.SetDefault("scoring.top_position", w.TopPosition)
	v.SetDefault("scoring.top_position_cutoff", w.TopPositionCutoff)
	v.SetDefault("scoring.positive_context", w.PositiveContext)
	v.SetDefault("scoring.list_context", w.ListContext)
	v.SetDefault("scoring.borderline_term", w.BorderlineTerm)
	v.SetDefault("scoring.tie_break_delta", w.TieBreakDelta)
	v.SetDefault("scoring.anomaly_rel_diff", w.AnomalyRelDiff)

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

// boundsFile is the categories.yaml shape.
type boundsFile struct {
	Categories map[string]model.Bounds `yaml:"categories"`
}

// LoadBounds reads the per-category price plausibility bounds.
func LoadBounds(path string) (map[model.Category]model.Bounds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read bounds file %s", path)
	}

	var bf boundsFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, eris.Wrapf(err, "config: parse bounds file %s", path)
	}

	bounds := make(map[model.Category]model.Bounds, len(bf.Categories))
	for name, b := range bf.Categories {
		if b.Min < 0 || b.Max <= b.Min {
			return nil, eris.Errorf("config: invalid bounds for %s: [%.2f, %.2f]", name, b.Min, b.Max)
		}
		bounds[model.Category(name)] = b
	}
	return bounds, nil
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
