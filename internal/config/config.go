// Package config loads process configuration from an optional file and the
// environment (STOCKLEDGER_ prefix, "." replaced by "_").
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration shared by every binary.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Otel        OtelConfig        `mapstructure:"otel"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Numbering   NumberingConfig   `mapstructure:"numbering"`
	Approval    ApprovalConfig    `mapstructure:"approval"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	// Version is reported by the health endpoint and the tracing resource.
	Version string `mapstructure:"version"`
}

// Development reports whether logs should use the console encoder.
func (c AppConfig) Development() bool {
	return c.Env == "development"
}

type HTTPConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// Migrate applies the embedded schema on startup.
	Migrate bool `mapstructure:"migrate"`
}

type JWTConfig struct {
	Secret    string        `mapstructure:"secret"`
	Issuer    string        `mapstructure:"issuer"`
	AccessTTL time.Duration `mapstructure:"access_ttl"`
}

// RedisConfig enables the balance cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	LocalTTL time.Duration `mapstructure:"local_ttl"`
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// KafkaConfig enables publishing and ERP ingestion when Brokers is set.
type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	MovementsTopic string   `mapstructure:"movements_topic"`
	LevelsTopic    string   `mapstructure:"levels_topic"`
	GroupID        string   `mapstructure:"group_id"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type OtelConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	URLPath     string  `mapstructure:"url_path"`
	Insecure    bool    `mapstructure:"insecure"`
	AuthHeader  string  `mapstructure:"auth_header"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type WorkerConfig struct {
	ExpiryInterval   time.Duration `mapstructure:"expiry_interval"`
	ExpiryBatch      int           `mapstructure:"expiry_batch"`
	OutboxInterval   time.Duration `mapstructure:"outbox_interval"`
	OutboxBatch      int           `mapstructure:"outbox_batch"`
	OutboxMaxRetries int           `mapstructure:"outbox_max_retries"`
	OutboxRetention  time.Duration `mapstructure:"outbox_retention"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type NumberingConfig struct {
	// Strategy is "strict" (gapless, in the caller's transaction) or "cached".
	Strategy  string `mapstructure:"strategy"`
	RangeSize int64  `mapstructure:"range_size"`
}

type ApprovalConfig struct {
	// Expression is a CEL rule over `doc`; empty allows everything.
	Expression string `mapstructure:"expression"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stockledger")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.version", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.migrate", false)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "stockledger")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("redis.local_ttl", 2*time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.movements_topic", "stock.movements")
	v.SetDefault("kafka.levels_topic", "erp.stock-levels")
	v.SetDefault("kafka.group_id", "stockledger-ingest")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4318")
	v.SetDefault("otel.url_path", "/v1/traces")
	v.SetDefault("otel.insecure", true)
	v.SetDefault("otel.auth_header", "")
	v.SetDefault("otel.sample_ratio", 1.0)

	v.SetDefault("worker.expiry_interval", time.Minute)
	v.SetDefault("worker.expiry_batch", 500)
	v.SetDefault("worker.outbox_interval", 2*time.Second)
	v.SetDefault("worker.outbox_batch", 100)
	v.SetDefault("worker.outbox_max_retries", 5)
	v.SetDefault("worker.outbox_retention", 7*24*time.Hour)
	v.SetDefault("worker.cleanup_interval", time.Hour)

	v.SetDefault("idempotency.ttl", 24*time.Hour)

	v.SetDefault("numbering.strategy", "strict")
	v.SetDefault("numbering.range_size", 50)

	v.SetDefault("approval.expression", "")
}

// Load reads configuration. path may name a config file; when empty,
// config.yaml is looked up in the working directory and ./config.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("STOCKLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every missing or invalid value the API server needs.
func (c *Config) Validate() error {
	errs := c.storageProblems()
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d is out of range", c.HTTP.Port))
	}
	return errors.Join(errs...)
}

// ValidateStorage checks only what binaries without an HTTP surface need.
func (c *Config) ValidateStorage() error {
	return errors.Join(c.storageProblems()...)
}

func (c *Config) storageProblems() []error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	switch c.Numbering.Strategy {
	case "strict", "cached":
	default:
		errs = append(errs, fmt.Errorf("numbering.strategy %q must be strict or cached", c.Numbering.Strategy))
	}
	return errs
}
