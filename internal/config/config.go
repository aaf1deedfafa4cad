package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
)

// Config holds environment-based settings
type Config struct {
	Environment    string
	DatabaseURL    string
	MigrationsPath string
	JWTSecret      string
	ServerAddress  string
	LogLevel       string

	SweepEnabled       bool
	SweepInterval      time.Duration
	SweepConcurrency   int
	SweepBatchLimit    int
	SweepRetryAttempts int
	SweepRetryBackoff  time.Duration
	ExpireAfter        time.Duration // 0 disables expiry
	StaleClaimAfter    time.Duration
	PublishTimeout     time.Duration

	NotifyQueueSize int
	NotifyRate      float64

	RedisAddress  string
	RedisUsername string
	RedisPassword string
	RedisChannel  string

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real env vars win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "read .env")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Environment:    getenv("APP_ENV"),
		DatabaseURL:    getenv("DATABASE_URL"),
		JWTSecret:      getenv("JWT_SECRET"),
		ServerAddress:  p.str("SERVER_ADDRESS", ":8080"),
		MigrationsPath: p.str("MIGRATIONS_PATH", "./migrations"),
		LogLevel:       p.str("LOG_LEVEL", "info"),

		SweepEnabled:       p.boolean("SWEEP_ENABLED", true),
		SweepInterval:      p.duration("SWEEP_INTERVAL", time.Minute),
		SweepConcurrency:   p.integer("SWEEP_CONCURRENCY", 1),
		SweepBatchLimit:    p.integer("SWEEP_BATCH_LIMIT", 500),
		SweepRetryAttempts: p.integer("SWEEP_RETRY_ATTEMPTS", 3),
		SweepRetryBackoff:  p.duration("SWEEP_RETRY_BACKOFF", 2*time.Second),
		ExpireAfter:        p.duration("EXPIRE_AFTER", 24*time.Hour),
		StaleClaimAfter:    p.duration("STALE_CLAIM_AFTER", 30*time.Minute),
		PublishTimeout:     p.duration("PUBLISH_TIMEOUT", 30*time.Second),

		NotifyQueueSize: p.integer("NOTIFY_QUEUE_SIZE", 256),
		NotifyRate:      p.float("NOTIFY_RATE", 10),

		RedisAddress:  getenv("REDIS_ADDRESS"),
		RedisUsername: getenv("REDIS_USERNAME"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisChannel:  p.str("REDIS_CHANNEL", "premiere:notifications"),

		MQTTBrokerURL:   getenv("MQTT_BROKER_URL"),
		MQTTClientID:    p.str("MQTT_CLIENT_ID", "premiere"),
		MQTTTopicPrefix: p.str("MQTT_TOPIC_PREFIX", "premiere"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.Validationf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.Validationf("JWT_SECRET is required")
	}
	if cfg.SweepInterval <= 0 {
		return nil, errors.Validationf("SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.SweepConcurrency < 1 {
		return nil, errors.Validationf("SWEEP_CONCURRENCY must be at least 1, got %d", cfg.SweepConcurrency)
	}
	if cfg.SweepRetryAttempts < 1 {
		return nil, errors.Validationf("SWEEP_RETRY_ATTEMPTS must be at least 1, got %d", cfg.SweepRetryAttempts)
	}
	if cfg.StaleClaimAfter > 0 && cfg.StaleClaimAfter <= cfg.PublishTimeout {
		// a claim still inside its publish timeout must never be reaped
		return nil, errors.Validationf("STALE_CLAIM_AFTER (%s) must be longer than PUBLISH_TIMEOUT (%s)",
			cfg.StaleClaimAfter, cfg.PublishTimeout)
	}
	if cfg.ExpireAfter < 0 {
		return nil, errors.Validationf("EXPIRE_AFTER must not be negative, got %s", cfg.ExpireAfter)
	}
	return cfg, nil
}

// SetupLogging configures the global zerolog logger: console output in
// development, JSON otherwise.
func SetupLogging(cfg *Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// parser keeps the first conversion error.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, def string) string {
	if v := p.getenv(key); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(errors.Validationf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(errors.Validationf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(errors.Validationf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(errors.Validationf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
