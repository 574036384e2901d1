package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Model     ModelConfig     `yaml:"model" mapstructure:"model"`
	Preview   PreviewConfig   `yaml:"preview" mapstructure:"preview"`
	LinkCheck LinkCheckConfig `yaml:"linkcheck" mapstructure:"linkcheck"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// ModelConfig holds the content-validation model settings. Mode "mock"
// forces locally generated verdicts; "auto" uses the API when a key is set
// and falls back to mock otherwise.
type ModelConfig struct {
	Mode         string `yaml:"mode" mapstructure:"mode"`
	AnthropicKey string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	Name         string `yaml:"name" mapstructure:"name"`
}

// MockEnabled reports whether runs should use the mock model client.
func (m ModelConfig) MockEnabled() bool {
	return m.Mode == "mock" || m.AnthropicKey == ""
}

// PreviewConfig configures Braze preview fetching.
type PreviewConfig struct {
	AllowedHosts []string `yaml:"allowed_hosts" mapstructure:"allowed_hosts"`
}

// LinkCheckConfig configures link verification.
type LinkCheckConfig struct {
	ApprovedDomains []string `yaml:"approved_domains" mapstructure:"approved_domains"`
	Concurrency     int      `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec      float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst       int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// PipelineConfig configures the async run worker pool.
type PipelineConfig struct {
	Workers   int `yaml:"workers" mapstructure:"workers"`
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`
}

// RateLimitConfig configures per-client submission limiting.
type RateLimitConfig struct {
	WindowSecs int `yaml:"window_secs" mapstructure:"window_secs"`
	Limit      int `yaml:"limit" mapstructure:"limit"`
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
	v.SetEnvPrefix("EMAILQC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "emailqc.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("model.mode", "auto")
	v.SetDefault("model.name", "claude-sonnet-4-5-20250929")
	v.SetDefault("preview.allowed_hosts", []string{"dashboard.braze.eu", "dashboard.braze.com"})
	v.SetDefault("linkcheck.concurrency", 6)
	v.SetDefault("linkcheck.timeout_secs", 10)
	v.SetDefault("linkcheck.rate_burst", 6)
	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.queue_size", 64)
	v.SetDefault("ratelimit.window_secs", 300)
	v.SetDefault("ratelimit.limit", 5)
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
