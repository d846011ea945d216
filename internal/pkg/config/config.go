package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments and security settings
// - default: Values common across all environments (lease bounds, pricing, timeouts)
// -----------------------------------------------------------------------------

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	CORS      CORSConfig
	Log       LogConfig
	JWT       JWTConfig
	Store     StoreConfig
	Redis     RedisConfig
	Broker    BrokerConfig
	Lease     LeaseConfig
	Pricing   PricingConfig
	Payment   PaymentConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"pixelgrid"`
	Password string `envconfig:"DB_PASSWORD" default:""`
	DBName   string `envconfig:"DB_NAME" default:"pixelgrid"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	TimeZone string `envconfig:"DB_TIMEZONE" default:"UTC"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"20"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length,Retry-After"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level          string `envconfig:"LOG_LEVEL" default:"info"`
	TimeZone       string `envconfig:"LOG_TIMEZONE" default:"UTC"`
	TimeFormat     string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
	TimeZoneOffset int    `envconfig:"LOG_TIMEZONE_OFFSET" default:"0"`
}

type JWTConfig struct {
	Secret   string `envconfig:"JWT_SECRET" required:"true"`
	Duration string `envconfig:"JWT_DURATION" default:"24h"`
}

// StoreConfig selects the backend holding the shared grid document.
// "memory" also keeps orders in process and is only meant for local runs.
type StoreConfig struct {
	Driver         string        `envconfig:"STORE_DRIVER" default:"postgres"`
	DocumentID     string        `envconfig:"GRID_DOCUMENT_ID" default:"main"`
	CASMaxAttempts int           `envconfig:"CAS_MAX_ATTEMPTS" default:"4"`
	CASBaseBackoff time.Duration `envconfig:"CAS_BASE_BACKOFF" default:"50ms"`
	CASMaxBackoff  time.Duration `envconfig:"CAS_MAX_BACKOFF" default:"800ms"`
	RequestTimeout time.Duration `envconfig:"STORE_REQUEST_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	Addr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password  string `envconfig:"REDIS_PASSWORD" default:""`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"pixelgrid"`
}

// BrokerConfig leaves event publishing disabled when URL is empty.
type BrokerConfig struct {
	URL      string `envconfig:"AMQP_URL" default:""`
	Exchange string `envconfig:"AMQP_EXCHANGE" default:"pixelgrid.events"`
}

type LeaseConfig struct {
	Default       time.Duration `envconfig:"LEASE_DEFAULT" default:"3m"`
	Min           time.Duration `envconfig:"LEASE_MIN" default:"15s"`
	MaxDuration   time.Duration `envconfig:"LEASE_MAX_DURATION" default:"10m"`
	HeldGrace     time.Duration `envconfig:"LEASE_HELD_GRACE" default:"5s"`
	FinalizeGrace time.Duration `envconfig:"LEASE_FINALIZE_GRACE" default:"1s"`
}

type PricingConfig struct {
	Base          string `envconfig:"PRICING_BASE" default:"1.00"`
	TierIncrement string `envconfig:"PRICING_TIER_INCREMENT" default:"0.01"`
	TierSizeCells int    `envconfig:"PRICING_TIER_SIZE_CELLS" default:"10"`
	Currency      string `envconfig:"PRICING_CURRENCY" default:"USD"`
}

type PaymentConfig struct {
	BaseURL      string        `envconfig:"PAYMENT_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
	ClientID     string        `envconfig:"PAYMENT_CLIENT_ID" default:""`
	ClientSecret string        `envconfig:"PAYMENT_CLIENT_SECRET" default:""`
	WebhookID    string        `envconfig:"PAYMENT_WEBHOOK_ID" default:""`
	Timeout      time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`
	BrandName    string        `envconfig:"PAYMENT_BRAND_NAME" default:"Pixel Grid"`
	// SweepInterval drives the background reconcile of stuck orders; zero disables it.
	SweepInterval time.Duration `envconfig:"PAYMENT_SWEEP_INTERVAL" default:"1m"`
}

func (c PaymentConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type RateLimitConfig struct {
	Enabled         bool    `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Capacity        int     `envconfig:"RATE_LIMIT_CAPACITY" default:"20"`
	RefillPerSecond float64 `envconfig:"RATE_LIMIT_REFILL_PER_SEC" default:"5"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&timezone=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.TimeZone,
	)
}

func (c StoreConfig) UsesPostgres() bool {
	return c.Driver != StoreDriverMemory
}

func (c BrokerConfig) Enabled() bool {
	return c.URL != ""
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverRedis, StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.CASMaxAttempts < 1 {
		return fmt.Errorf("CAS_MAX_ATTEMPTS must be positive, got %d", c.Store.CASMaxAttempts)
	}
	if c.Lease.Min > c.Lease.Default || c.Lease.Default > c.Lease.MaxDuration {
		return fmt.Errorf("lease bounds must satisfy LEASE_MIN <= LEASE_DEFAULT <= LEASE_MAX_DURATION")
	}
	if c.Pricing.TierSizeCells < 1 {
		return fmt.Errorf("PRICING_TIER_SIZE_CELLS must be positive, got %d", c.Pricing.TierSizeCells)
	}
	return nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889", // Test port
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433", // Test DB port
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
			TimeZone: "UTC",
			MaxConns: 5,
		},
		Log: LogConfig{
			Level:      "error", // Error level only for tests
			TimeZone:   "UTC",
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		JWT: JWTConfig{
			Secret:   "test-secret",
			Duration: "1h",
		},
		Store: StoreConfig{
			Driver:         StoreDriverMemory,
			DocumentID:     "test",
			CASMaxAttempts: 4,
			CASBaseBackoff: time.Millisecond,
			CASMaxBackoff:  5 * time.Millisecond,
			RequestTimeout: 2 * time.Second,
		},
		Redis: RedisConfig{
			Addr:      "localhost:16379",
			KeyPrefix: "pixelgrid-test",
		},
		Broker: BrokerConfig{
			Exchange: "pixelgrid.events",
		},
		Lease: LeaseConfig{
			Default:       3 * time.Minute,
			Min:           15 * time.Second,
			MaxDuration:   10 * time.Minute,
			HeldGrace:     5 * time.Second,
			FinalizeGrace: time.Second,
		},
		Pricing: PricingConfig{
			Base:          "1.00",
			TierIncrement: "0.01",
			TierSizeCells: 10,
			Currency:      "USD",
		},
		Payment: PaymentConfig{
			BaseURL:   "http://localhost:18080",
			ClientID:  "test-client",
			Timeout:   2 * time.Second,
			WebhookID: "WH-TEST",
			BrandName: "Pixel Grid",
		},
		RateLimit: RateLimitConfig{
			Enabled:         false,
			Capacity:        20,
			RefillPerSecond: 5,
		},
	}
}
