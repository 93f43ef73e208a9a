package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP     `yaml:"http"`
	Postgres PG       `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Stripe   Stripe   `yaml:"stripe"`
	Checkout Checkout `yaml:"checkout"`
	Tracing  Tracing  `yaml:"tracing"`
	Admin    Admin    `yaml:"admin"`
}

type HTTP struct {
	Port         string        `yaml:"port" env:"HTTP_PORT" env-default:":8082"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	// PublicBaseURL overrides the Host header when building redirect urls.
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
}

// PG.URL empty selects the in-memory store.
type PG struct {
	URL           string `yaml:"url" env:"DB_URL"`
	MaxTxAttempts int    `yaml:"max_tx_attempts" env:"DB_MAX_TX_ATTEMPTS" env-default:"3"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	EventTTL time.Duration `yaml:"event_ttl" env:"REDIS_EVENT_TTL" env-default:"72h"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_ORDER_TOPIC" env-default:"order_events"`
}

type Stripe struct {
	SecretKey        string        `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret    string        `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `yaml:"webhook_tolerance" env:"STRIPE_WEBHOOK_TOLERANCE" env-default:"5m"`
}

type Checkout struct {
	SessionTTL       time.Duration `yaml:"session_ttl" env:"CHECKOUT_SESSION_TTL" env-default:"45m"`
	AllowedCountries []string      `yaml:"allowed_countries" env:"CHECKOUT_ALLOWED_COUNTRIES" env-separator:"," env-default:"US"`
	ShippingRate     string        `yaml:"shipping_rate" env:"CHECKOUT_SHIPPING_RATE"`
}

type Tracing struct {
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

type Admin struct {
	Token string `yaml:"token" env:"ADMIN_TOKEN"`
}

// Load reads the yaml file at path when it exists and then applies
// environment variables and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
			return validated(&cfg)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error reading env: %w", err)
	}
	return validated(&cfg)
}

func validated(cfg *Config) (*Config, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("stripe secret key is required")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe webhook secret is required")
	}
	if c.Checkout.SessionTTL < 30*time.Minute || c.Checkout.SessionTTL > 24*time.Hour {
		return fmt.Errorf("checkout session ttl must be between 30m and 24h, got %s", c.Checkout.SessionTTL)
	}
	return nil
}
