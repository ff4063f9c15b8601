package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection, etc.), security settings
// - default: Values common across all environments (timezone, timeout, etc.), standard settings
// -----------------------------------------------------------------------------

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Auth     AuthConfig
	Jobs     JobsConfig
	Shipping ShippingConfig
	Gateway  GatewayConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	TimeZone string `envconfig:"DB_TIMEZONE" default:"Asia/Tokyo"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level          string `envconfig:"LOG_LEVEL" default:"info"`
	TimeZone       string `envconfig:"LOG_TIMEZONE" default:"Asia/Tokyo"`
	TimeFormat     string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
	TimeZoneOffset int    `envconfig:"LOG_TIMEZONE_OFFSET" default:"32400"` // 9*60*60
}

type AuthConfig struct {
	// Buyer tokens are issued by the external auth service; this engine only verifies them.
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// Shared secret presented by the external scheduler on job endpoints.
	JobSecret string `envconfig:"JOB_SECRET" required:"true"`
}

type JobsConfig struct {
	// Lots stay closed for this long before the batch closer picks them up.
	CloseGrace time.Duration `envconfig:"JOBS_CLOSE_GRACE" default:"1m"`
	// Lots stuck in processing longer than this are reverted to closed
	// (recovery for a run that died mid-flight).
	StaleAfter time.Duration `envconfig:"JOBS_STALE_AFTER" default:"30m"`
	// Reservations with no lot older than this are picked up by the reconciler.
	ReconcileGrace time.Duration `envconfig:"JOBS_RECONCILE_GRACE" default:"2m"`
	// Max lots processed concurrently within one closer invocation.
	LotConcurrency int `envconfig:"JOBS_LOT_CONCURRENCY" default:"4"`
	// Optional in-process trigger interval; 0 disables it (production uses the
	// external scheduler hitting the job endpoints).
	TickInterval time.Duration `envconfig:"JOBS_TICK_INTERVAL" default:"0"`
}

type ShippingConfig struct {
	// Distance-based pricing constants, injected rather than hard-coded.
	BaseFeeCents          int64         `envconfig:"SHIPPING_BASE_FEE_CENTS" default:"150000"`
	PerKmCents            int64         `envconfig:"SHIPPING_PER_KM_CENTS" default:"12000"`
	DefaultCommissionRate string        `envconfig:"DEFAULT_COMMISSION_RATE" default:"0.05"`
	CommissionRateTTL     time.Duration `envconfig:"COMMISSION_RATE_TTL" default:"10m"`
}

type GatewayConfig struct {
	PaymentURL      string        `envconfig:"PAYMENT_GATEWAY_URL" required:"true"`
	PaymentAPIKey   string        `envconfig:"PAYMENT_GATEWAY_API_KEY" required:"true"`
	EmailURL        string        `envconfig:"EMAIL_PROVIDER_URL" required:"true"`
	EmailAPIKey     string        `envconfig:"EMAIL_PROVIDER_API_KEY" required:"true"`
	EmailBatchSize  int           `envconfig:"EMAIL_BATCH_SIZE" default:"100"`
	DistanceURL     string        `envconfig:"DISTANCE_SERVICE_URL" required:"true"`
	ScoringURL      string        `envconfig:"SCORING_SERVICE_URL" required:"true"`
	ProductPageBase string        `envconfig:"PRODUCT_PAGE_BASE_URL" default:"https://lotpool.example.com/products"`
	Timeout         time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&timezone=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.TimeZone,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
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
			TimeZone: "Asia/Tokyo",
		},
		Log: LogConfig{
			Level:          "error", // Error level only for tests
			TimeZone:       "Asia/Tokyo",
			TimeFormat:     "2006-01-02 15:04:05.000",
			TimeZoneOffset: 32400,
		},
		Auth: AuthConfig{
			JWTSecret: "test-jwt-secret",
			JobSecret: "test-job-secret",
		},
		Jobs: JobsConfig{
			CloseGrace:     0,
			StaleAfter:     30 * time.Minute,
			ReconcileGrace: 0,
			LotConcurrency: 2,
		},
		Shipping: ShippingConfig{
			BaseFeeCents:          150000,
			PerKmCents:            12000,
			DefaultCommissionRate: "0.05",
			CommissionRateTTL:     10 * time.Minute,
		},
		Gateway: GatewayConfig{
			EmailBatchSize:  100,
			ProductPageBase: "https://lotpool.example.com/products",
			Timeout:         2 * time.Second,
		},
	}
}
