// Package config loads process configuration.
//
// Values are resolved in order: built-in defaults, an optional YAML file, then
// FIELDCOMPLY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "FIELDCOMPLY_"

// Queue backends.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
	QueueKafka  = "kafka"
)

type Config struct {
	Environment string         `yaml:"environment"`
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	Kafka       KafkaConfig    `yaml:"kafka"`
	Queue       QueueConfig    `yaml:"queue"`
	Cache       CacheConfig    `yaml:"cache"`
	Alerts      AlertsConfig   `yaml:"alerts"`
	Logging     LoggingConfig  `yaml:"logging"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the PostgreSQL store. An empty URL keeps records in memory.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds connection settings for the redis queue backend.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"client_id"`
	Topic    string   `yaml:"topic"`
	Group    string   `yaml:"group"`
}

// QueueConfig configures the recompute queue and its worker pool.
type QueueConfig struct {
	Backend     string `yaml:"backend"`
	Capacity    int    `yaml:"capacity"`
	RedisKey    string `yaml:"redis_key"`
	Concurrency int    `yaml:"concurrency"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// CacheConfig holds the TTL of each freshness class.
type CacheConfig struct {
	Realtime        time.Duration `yaml:"realtime"`
	Short           time.Duration `yaml:"short"`
	Standard        time.Duration `yaml:"standard"`
	Long            time.Duration `yaml:"long"`
	RefreshFraction float64       `yaml:"refresh_fraction"`
}

type AlertsConfig struct {
	WarningDays                 int `yaml:"warning_days"`
	NoticeDays                  int `yaml:"notice_days"`
	LowComplianceMinTechnicians int `yaml:"low_compliance_min_technicians"`
	LowCompliancePercent        int `yaml:"low_compliance_percent"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			RequestTimeout:    30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			ClientID: "fieldcomply",
			Topic:    "fieldcomply.recompute",
			Group:    "fieldcomply-recompute",
		},
		Queue: QueueConfig{
			Backend:     QueueMemory,
			Capacity:    1024,
			RedisKey:    "fieldcomply:recompute",
			Concurrency: 4,
			MaxAttempts: 3,
		},
		Cache: CacheConfig{
			Realtime:        time.Minute,
			Short:           5 * time.Minute,
			Standard:        15 * time.Minute,
			Long:            30 * time.Minute,
			RefreshFraction: 0.2,
		},
		Alerts: AlertsConfig{
			WarningDays:                 7,
			NoticeDays:                  30,
			LowComplianceMinTechnicians: 3,
			LowCompliancePercent:        30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load resolves the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the process runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects configurations the process cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Queue.Backend {
	case QueueMemory:
	case QueueRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis queue"))
		}
	case QueueKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.brokers and kafka.topic are required for the kafka queue"))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.backend %q must be memory, redis or kafka", c.Queue.Backend))
	}
	if c.Queue.Concurrency < 1 {
		errs = append(errs, errors.New("queue.concurrency must be at least 1"))
	}
	if c.Queue.MaxAttempts < 1 {
		errs = append(errs, errors.New("queue.max_attempts must be at least 1"))
	}
	ttls := []time.Duration{c.Cache.Realtime, c.Cache.Short, c.Cache.Standard, c.Cache.Long}
	for i, ttl := range ttls {
		if ttl <= 0 {
			errs = append(errs, errors.New("cache TTLs must be positive"))
			break
		}
		if i > 0 && ttl < ttls[i-1] {
			errs = append(errs, errors.New("cache TTLs must not decrease from realtime to long"))
			break
		}
	}
	if c.Cache.RefreshFraction < 0 || c.Cache.RefreshFraction >= 1 {
		errs = append(errs, errors.New("cache.refresh_fraction must be in [0, 1)"))
	}
	if c.Alerts.WarningDays < 0 || c.Alerts.NoticeDays < c.Alerts.WarningDays {
		errs = append(errs, errors.New("alerts.notice_days must be at least alerts.warning_days"))
	}
	if c.Alerts.LowCompliancePercent < 0 || c.Alerts.LowCompliancePercent > 100 {
		errs = append(errs, errors.New("alerts.low_compliance_percent must be in [0, 100]"))
	}
	return errors.Join(errs...)
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}
	e.str("ENVIRONMENT", &cfg.Environment)
	e.str("ADDR", &cfg.Server.Addr)
	e.duration("REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	e.duration("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	e.str("DATABASE_URL", &cfg.Database.URL)
	e.integer("DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)

	e.str("REDIS_URL", &cfg.Redis.URL)
	e.integer("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)

	e.list("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	e.str("KAFKA_TOPIC", &cfg.Kafka.Topic)
	e.str("KAFKA_GROUP", &cfg.Kafka.Group)

	e.str("QUEUE_BACKEND", &cfg.Queue.Backend)
	e.integer("QUEUE_CONCURRENCY", &cfg.Queue.Concurrency)
	e.integer("QUEUE_MAX_ATTEMPTS", &cfg.Queue.MaxAttempts)

	e.duration("CACHE_REALTIME_TTL", &cfg.Cache.Realtime)
	e.duration("CACHE_SHORT_TTL", &cfg.Cache.Short)
	e.duration("CACHE_STANDARD_TTL", &cfg.Cache.Standard)
	e.duration("CACHE_LONG_TTL", &cfg.Cache.Long)
	e.float("CACHE_REFRESH_FRACTION", &cfg.Cache.RefreshFraction)

	e.integer("ALERT_WARNING_DAYS", &cfg.Alerts.WarningDays)
	e.integer("ALERT_NOTICE_DAYS", &cfg.Alerts.NoticeDays)

	e.str("LOG_LEVEL", &cfg.Logging.Level)
	e.str("LOG_FORMAT", &cfg.Logging.Format)
	return errors.Join(e.errs...)
}

// envReader collects parse failures so every bad variable is reported at once.
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(envPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) list(name string, dst *[]string) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		return
	}
	*dst = n
}

func (e *envReader) float(name string, dst *float64) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		return
	}
	*dst = f
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		return
	}
	*dst = d
}
