package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/market/internal/domain/order"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (MARKET_ prefix), a .env file, flags, or YAML config
// files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (MARKET_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `default:"redis://localhost:6379/0" usage:"Redis URL for sessions and shared rate limits (MARKET_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	JWTSecret   string `usage:"HMAC secret verifying customer bearer tokens" flag:"jwt-secret"`
	Timezone    string `default:"UTC" usage:"Location whose calendar date decides which discounts run"`
	OfferPolicy string `default:"random" usage:"Offer picked when no shop is given: random or cheapest" flag:"offer-policy"`
	Shipping    ShippingConfig
	Session     SessionConfig
	Kafka       KafkaConfig
	Payments    PaymentsConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// ShippingConfig holds the delivery rates used while no site settings row
// exists.
type ShippingConfig struct {
	FreeThreshold string `default:"2000.00" usage:"Subtotal from which regular single-shop delivery is free" flag:"free-shipping-threshold"`
	StandardFee   string `default:"200.00" usage:"Regular delivery fee" flag:"standard-fee"`
	ExpressFee    string `default:"500.00" usage:"Express delivery fee" flag:"express-fee"`
}

// SessionConfig controls the visitor session.
type SessionConfig struct {
	TTL    time.Duration `default:"336h" usage:"Session lifetime, refreshed on every write"`
	Secure bool          `default:"false" usage:"Mark the session cookie Secure" flag:"session-secure"`
}

// KafkaConfig selects the payment queue. Without brokers payments are
// settled by an in-process worker pool.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers; empty runs payments in process"`
	Topic   string   `default:"payments" usage:"Payment jobs topic"`
	GroupID string   `default:"payment-worker" usage:"Consumer group of payment workers" flag:"kafka-group-id"`
}

// PaymentsConfig sizes the in-process payment queue.
type PaymentsConfig struct {
	Workers   int `default:"4" usage:"In-process payment workers"`
	QueueSize int `default:"256" usage:"In-process payment queue capacity" flag:"payments-queue-size"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	Shared bool          `default:"false" usage:"Count requests in Redis so all instances share the limit" flag:"rate-limit-shared"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from a .env file, environment variables,
// YAML config files and flags, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		EnvPrefix: "MARKET",
		Files:     []string{"config.yaml", "/etc/market/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set MARKET_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.ShippingRates(); err != nil {
		return nil, err
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, errors.Wrapf(err, "timezone %q", cfg.Timezone)
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL, REDIS_URL and PORT to the
// application's MARKET_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("REDIS_URL"); v != "" && os.Getenv("MARKET_REDIS_URL") == "" {
		c.RedisURL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// ShippingRates parses the fallback delivery rates.
func (c *Config) ShippingRates() (order.ShippingRates, error) {
	var (
		rates order.ShippingRates
		err   error
	)
	if rates.FreeThreshold, err = decimal.NewFromString(c.Shipping.FreeThreshold); err != nil {
		return rates, errors.Wrap(err, "free shipping threshold")
	}
	if rates.Standard, err = decimal.NewFromString(c.Shipping.StandardFee); err != nil {
		return rates, errors.Wrap(err, "standard fee")
	}
	if rates.Express, err = decimal.NewFromString(c.Shipping.ExpressFee); err != nil {
		return rates, errors.Wrap(err, "express fee")
	}
	return rates, nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
