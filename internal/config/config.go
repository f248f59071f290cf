package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Join   JoinConfig   `yaml:"join" mapstructure:"join"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`             // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"` // file path for sqlite, DSN for postgres
}

// IngestConfig configures the raw-store ingestion pass.
type IngestConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`         // root of the scraped-data hierarchy
	Workers int    `yaml:"workers" mapstructure:"workers"` // parallel file parsers
}

// JoinConfig configures the re-identification join engine.
//
// ToleranceSecs and MinEvidence directly control false-positive risk:
// widening the window or lowering the evidence floor trades precision
// for coverage. They are deliberately configuration, not constants.
type JoinConfig struct {
	// ToleranceSecs is the maximum clock skew, in seconds, between a
	// portal audit timestamp and a network audit timestamp for the two
	// rows to count as the same search.
	ToleranceSecs int `yaml:"tolerance_secs" mapstructure:"tolerance_secs"`
	// MinEvidence is the minimum number of corroborating
	// (plate, timestamp) pairs required before a mapping is emitted.
	MinEvidence int `yaml:"min_evidence" mapstructure:"min_evidence"`
	// MinorityThreshold is the fraction of the best candidate's score at
	// which a runner-up starts penalizing confidence. Near-ties below
	// the tie-break equality point still reduce confidence.
	MinorityThreshold float64 `yaml:"minority_threshold" mapstructure:"minority_threshold"`
	// Workers bounds per-surrogate parallel resolution.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// Tolerance returns the configured time window as a duration.
func (j JoinConfig) Tolerance() time.Duration {
	return time.Duration(j.ToleranceSecs) * time.Second
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
	v.SetEnvPrefix("ALPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "agency_data.db")
	v.SetDefault("ingest.dir", "scraped_data")
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("join.tolerance_secs", 300)
	v.SetDefault("join.min_evidence", 2)
	v.SetDefault("join.minority_threshold", 0.5)
	v.SetDefault("join.workers", 4)
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Join.ToleranceSecs <= 0 {
		errs = append(errs, "join.tolerance_secs must be > 0")
	}
	if c.Join.MinEvidence < 1 {
		errs = append(errs, "join.min_evidence must be >= 1")
	}
	if c.Join.MinorityThreshold < 0 || c.Join.MinorityThreshold > 1 {
		errs = append(errs, "join.minority_threshold must be between 0 and 1")
	}
	if c.Ingest.Workers < 1 {
		errs = append(errs, "ingest.workers must be >= 1")
	}
	if c.Join.Workers < 1 {
		errs = append(errs, "join.workers must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
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
