package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "PURCHASING"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv             = "PURCHASING_APP_ENV"
	EnvPort               = "PURCHASING_APP_PORT"
	EnvLogLevel           = "PURCHASING_LOG_LEVEL"
	EnvBackendBaseURL     = "PURCHASING_BACKEND_BASE_URL"
	EnvBackendTimeout     = "PURCHASING_BACKEND_TIMEOUT"
	EnvRedisURL           = "PURCHASING_REDIS_URL"
	EnvRedisAddr          = "PURCHASING_REDIS_ADDR"
	EnvVariantSearchLimit = "PURCHASING_VARIANT_SEARCH_LIMIT"
	EnvDraftSessionTTL    = "PURCHASING_DRAFT_SESSION_TTL"
	EnvSubmitIdemTTL      = "PURCHASING_SUBMIT_IDEMPOTENCY_TTL"
	EnvCORSOrigins        = "PURCHASING_CORS_ORIGINS"
	EnvDraftSweepInterval = "PURCHASING_DRAFT_SWEEP_INTERVAL"
)

type Config struct {
	App        AppConfig
	Backend    BackendConfig
	Redis      RedisConfig
	Purchasing PurchasingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Redis.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string        `envconfig:"PURCHASING_APP_ENV" required:"true"`
	Port         string        `envconfig:"PURCHASING_APP_PORT" default:"8080"`
	ShutdownWait time.Duration `envconfig:"PURCHASING_SHUTDOWN_TIMEOUT" default:"15s"`
	LogLevel     string        `envconfig:"PURCHASING_LOG_LEVEL" default:"info"`
	LogFormat    string        `envconfig:"PURCHASING_LOG_FORMAT" default:"json"`
	LogWarnStack bool          `envconfig:"PURCHASING_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string      `envconfig:"PURCHASING_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the platform REST service that owns suppliers, catalogs and orders.
type BackendConfig struct {
	BaseURL string        `envconfig:"PURCHASING_BACKEND_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"PURCHASING_BACKEND_TIMEOUT" default:"10s"`
}

func (b BackendConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(b.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvBackendBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvBackendBaseURL)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvBackendTimeout)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"PURCHASING_REDIS_URL"`
	Address      string        `envconfig:"PURCHASING_REDIS_ADDR"`
	Password     string        `envconfig:"PURCHASING_REDIS_PASSWORD"`
	DB           int           `envconfig:"PURCHASING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PURCHASING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PURCHASING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PURCHASING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PURCHASING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PURCHASING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) validate() error {
	if r.URL == "" && r.Address == "" {
		return fmt.Errorf("either %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}
	return nil
}

// PurchasingConfig tunes the draft engine.
type PurchasingConfig struct {
	VariantSearchLimit    int           `envconfig:"PURCHASING_VARIANT_SEARCH_LIMIT" default:"20"`
	DraftSessionTTL       time.Duration `envconfig:"PURCHASING_DRAFT_SESSION_TTL" default:"2h"`
	DraftSweepInterval    time.Duration `envconfig:"PURCHASING_DRAFT_SWEEP_INTERVAL" default:"1m"`
	SubmitIdempotencyTTL  time.Duration `envconfig:"PURCHASING_SUBMIT_IDEMPOTENCY_TTL" default:"168h"`
	DefaultIdempotencyTTL time.Duration `envconfig:"PURCHASING_DEFAULT_IDEMPOTENCY_TTL" default:"24h"`
}
