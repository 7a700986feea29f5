package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server configuration
	Port        string `envconfig:"PORT" default:"8090"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Redis configuration. Empty keeps locks and seat projections in process.
	RedisURL string `envconfig:"REDIS_URL"`

	// PubNub configuration
	PubNubPublishKey   string `envconfig:"PUBNUB_PUBLISH_KEY"`
	PubNubSubscribeKey string `envconfig:"PUBNUB_SUBSCRIBE_KEY"`
	PubNubSecretKey    string `envconfig:"PUBNUB_SECRET_KEY"`
	PubNubUserID       string `envconfig:"PUBNUB_USER_ID" default:"exhibition-server"`

	// RabbitMQ configuration
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"exhibition.events"`

	// Session rules
	CheckInGracePeriod     time.Duration `envconfig:"CHECK_IN_GRACE_PERIOD" default:"30m"`
	DefaultSessionDuration time.Duration `envconfig:"DEFAULT_SESSION_DURATION" default:"2h"`

	// Concurrency
	SessionLockTTL    time.Duration `envconfig:"SESSION_LOCK_TTL" default:"10s"`
	LockWaitTimeout   time.Duration `envconfig:"LOCK_WAIT_TIMEOUT" default:"3s"`
	LockRetryInterval time.Duration `envconfig:"LOCK_RETRY_INTERVAL" default:"25ms"`

	// Booking rate limit per user, enforced only with Redis
	BookingRateLimit  int           `envconfig:"BOOKING_RATE_LIMIT" default:"20"`
	BookingRateWindow time.Duration `envconfig:"BOOKING_RATE_WINDOW" default:"1m"`

	// Monitoring
	EnableMetrics bool   `envconfig:"ENABLE_METRICS" default:"true"`
	OTelEndpoint  string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName   string `envconfig:"SERVICE_NAME" default:"exhibition-system"`
}

// LoadConfig reads the environment, after merging a local .env file when one
// exists.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.CheckInGracePeriod < 0 {
		return fmt.Errorf("CHECK_IN_GRACE_PERIOD must not be negative")
	}
	if c.DefaultSessionDuration <= 0 {
		return fmt.Errorf("DEFAULT_SESSION_DURATION must be positive")
	}
	if c.SessionLockTTL <= c.LockWaitTimeout {
		return fmt.Errorf("SESSION_LOCK_TTL (%s) must exceed LOCK_WAIT_TIMEOUT (%s)", c.SessionLockTTL, c.LockWaitTimeout)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) PubNubEnabled() bool {
	return c.PubNubPublishKey != "" && c.PubNubSubscribeKey != ""
}
