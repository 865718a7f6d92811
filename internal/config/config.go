package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	defaultJWTSecret = "change-me-jwt-secret"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Booking   BookingConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
	CORS      CORSConfig
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env       string `envconfig:"APP_ENV" default:"dev"`
	Port      string `envconfig:"APP_PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// IsProdLike covers every spelling used by deploy tooling for production.
func (a AppConfig) IsProdLike() bool {
	env := strings.ToLower(strings.TrimSpace(a.Env))
	return env == "prod" || env == "production" || env == "release"
}

type DBConfig struct {
	DSN             string        `envconfig:"DATABASE_URL" default:"equiplend.db"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type JWTConfig struct {
	Secret string        `envconfig:"JWT_SECRET" default:"change-me-jwt-secret"`
	TTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type KafkaConfig struct {
	Brokers string `envconfig:"KAFKA_BROKERS"`
	Topic   string `envconfig:"KAFKA_BOOKING_TOPIC" default:"booking-events"`
}

type BookingConfig struct {
	MinDurationHours int           `envconfig:"BOOKING_MIN_DURATION_HOURS" default:"1"`
	MaxDurationHours int           `envconfig:"BOOKING_MAX_DURATION_HOURS" default:"8"`
	MaxAdvance       time.Duration `envconfig:"BOOKING_MAX_ADVANCE" default:"336h"`
	DayUTCOffset     time.Duration `envconfig:"BOOKING_DAY_UTC_OFFSET" default:"8h"`
	LockTTL          time.Duration `envconfig:"BOOKING_LOCK_TTL" default:"10s"`
	PublishTimeout   time.Duration `envconfig:"BOOKING_PUBLISH_TIMEOUT" default:"2s"`
}

// DayLocation is the fixed zone in which booking days are counted.
func (b BookingConfig) DayLocation() *time.Location {
	if b.DayUTCOffset == 0 {
		return time.UTC
	}
	hours := b.DayUTCOffset.Hours()
	name := fmt.Sprintf("UTC%+g", hours)
	return time.FixedZone(name, int(b.DayUTCOffset.Seconds()))
}

type RateLimitConfig struct {
	Bookings int64         `envconfig:"RATE_LIMIT_BOOKINGS" default:"10"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

type TelemetryConfig struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	SampleRatio  float64 `envconfig:"OTEL_SAMPLING_RATIO" default:"1"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
}

func (c *Config) Validate() error {
	b := c.Booking
	if b.MinDurationHours <= 0 {
		return fmt.Errorf("BOOKING_MIN_DURATION_HOURS must be > 0")
	}
	if b.MaxDurationHours < b.MinDurationHours {
		return fmt.Errorf("BOOKING_MAX_DURATION_HOURS must be >= BOOKING_MIN_DURATION_HOURS")
	}
	if b.MaxAdvance <= 0 {
		return fmt.Errorf("BOOKING_MAX_ADVANCE must be > 0")
	}
	if b.DayUTCOffset < -12*time.Hour || b.DayUTCOffset > 14*time.Hour {
		return fmt.Errorf("BOOKING_DAY_UTC_OFFSET must be within [-12h, 14h]")
	}
	if b.LockTTL <= 0 {
		return fmt.Errorf("BOOKING_LOCK_TTL must be > 0")
	}
	if b.PublishTimeout <= 0 {
		return fmt.Errorf("BOOKING_PUBLISH_TIMEOUT must be > 0")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if c.RateLimit.Bookings <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_BOOKINGS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be within [0, 1]")
	}

	if c.App.IsProdLike() {
		if isEmptyOrDefault(c.JWT.Secret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if !strings.HasPrefix(c.DB.DSN, "postgres") {
			return fmt.Errorf("in prod/release DATABASE_URL must point to PostgreSQL")
		}
	}
	return nil
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
