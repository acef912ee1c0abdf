// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	FMCSA       FMCSAConfig       `yaml:"fmcsa" mapstructure:"fmcsa"`
	Hunter      HunterConfig      `yaml:"hunter" mapstructure:"hunter"`
	Resend      ResendConfig      `yaml:"resend" mapstructure:"resend"`
	SMTP        SMTPConfig        `yaml:"smtp" mapstructure:"smtp"`
	Report      ReportConfig      `yaml:"report" mapstructure:"report"`
	Fulfillment FulfillmentConfig `yaml:"fulfillment" mapstructure:"fulfillment"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the lead-capture HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AdminToken     string   `yaml:"admin_token" mapstructure:"admin_token"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RatePerMinute  int      `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
}

// FMCSAConfig holds the safety registry credential and endpoint.
type FMCSAConfig struct {
	WebKey  string `yaml:"web_key" mapstructure:"web_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// HunterConfig holds the email verification service settings.
type HunterConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	CachePath string `yaml:"cache_path" mapstructure:"cache_path"`
}

// ResendConfig holds the notification and audience settings.
type ResendConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	From       string `yaml:"from" mapstructure:"from"`
	AudienceID string `yaml:"audience_id" mapstructure:"audience_id"`
}

// SMTPConfig holds the fallback SMTP relay used when Resend is not
// configured.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
}

// ReportConfig configures the rendered audit brief.
type ReportConfig struct {
	BrandName string `yaml:"brand_name" mapstructure:"brand_name"`
}

// FulfillmentConfig configures the background fulfillment dispatcher.
type FulfillmentConfig struct {
	Workers     int           `yaml:"workers" mapstructure:"workers"`
	QueueSize   int           `yaml:"queue_size" mapstructure:"queue_size"`
	StepTimeout time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`
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
	v.SetEnvPrefix("FLEETAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys without a SetDefault are invisible to AutomaticEnv, so
	// credentials get explicit empty defaults.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "fleetaudit.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_minute", 5)
	v.SetDefault("server.admin_token", "")
	v.SetDefault("fmcsa.web_key", "")
	v.SetDefault("fmcsa.base_url", "https://mobile.fmcsa.dot.gov/qc/services")
	v.SetDefault("hunter.api_key", "")
	v.SetDefault("hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("hunter.cache_path", "hunter_cache.json")
	v.SetDefault("resend.api_key", "")
	v.SetDefault("resend.base_url", "https://api.resend.com")
	v.SetDefault("resend.from", "")
	v.SetDefault("resend.audience_id", "")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("report.brand_name", "Fleet AI Agency")
	v.SetDefault("fulfillment.workers", 2)
	v.SetDefault("fulfillment.queue_size", 64)
	v.SetDefault("fulfillment.step_timeout", 2*time.Minute)
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
