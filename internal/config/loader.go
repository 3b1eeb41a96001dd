package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "careflow.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CAREFLOW_PORT")
	setString(&cfg.Server.CORSOrigin, "CAREFLOW_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CAREFLOW_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CAREFLOW_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CAREFLOW_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CAREFLOW_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CAREFLOW_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.Adapters.OrderStoreURL, "CAREFLOW_ORDER_STORE_URL")
	setString(&cfg.Adapters.ClassifierURL, "CAREFLOW_CLASSIFIER_URL")
	setString(&cfg.Adapters.VisionURL, "CAREFLOW_VISION_URL")
	setString(&cfg.Adapters.WalletURL, "CAREFLOW_WALLET_URL")
	setDuration(&cfg.Adapters.CallTimeout, "CAREFLOW_ADAPTER_TIMEOUT")
	setInt(&cfg.Adapters.MaxRetries, "CAREFLOW_ADAPTER_MAX_RETRIES")
	setDuration(&cfg.Adapters.BackoffBase, "CAREFLOW_ADAPTER_BACKOFF_BASE")
	setInt(&cfg.Adapters.BackoffFactor, "CAREFLOW_ADAPTER_BACKOFF_FACTOR")

	setFloat64(&cfg.Workflow.IntentRoutingThreshold, "CAREFLOW_INTENT_THRESHOLD")
	setFloat64(&cfg.Workflow.RefundAutoApproveThreshold, "CAREFLOW_REFUND_THRESHOLD")
	setDuration(&cfg.Workflow.ImageWaitTimeout, "CAREFLOW_IMAGE_WAIT_TIMEOUT")
	setDuration(&cfg.Workflow.SweepInterval, "CAREFLOW_SWEEP_INTERVAL")

	setFloat64(&cfg.Escalation.PriorityOrderValue, "CAREFLOW_PRIORITY_ORDER_VALUE")

	setInt64(&cfg.Cache.MaxSizeMB, "CAREFLOW_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.OrderTTL, "CAREFLOW_CACHE_ORDER_TTL")

	setString(&cfg.Logging.Level, "CAREFLOW_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CAREFLOW_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "CAREFLOW_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CAREFLOW_BREAKER_TIMEOUT")
}

// validate checks that required fields are set and thresholds are sane.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if t := cfg.Workflow.IntentRoutingThreshold; t < 0 || t > 1 {
		return errors.New("workflow.intent_routing_threshold must be in [0,1]")
	}
	if t := cfg.Workflow.RefundAutoApproveThreshold; t < 0 || t > 1 {
		return errors.New("workflow.refund_auto_approve_threshold must be in [0,1]")
	}
	if cfg.Adapters.MaxRetries < 0 {
		return errors.New("adapters.max_retries must be >= 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
