package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix scopes every environment variable consumed by the backend.
	EnvPrefix = "CAVEBOX"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Carrier       CarrierConfig
	Mailer        MailerConfig
	Maps          MapsConfig
	Replenishment ReplenishmentConfig
	Cron          CronConfig
	Webhooks      WebhooksConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAVEBOX_APP_ENV" required:"true"`
	Port         string `envconfig:"CAVEBOX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAVEBOX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAVEBOX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CAVEBOX_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CAVEBOX_DB_DSN"`
	Driver string `envconfig:"CAVEBOX_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CAVEBOX_DB_HOST"`
	Port     int    `envconfig:"CAVEBOX_DB_PORT" default:"5432"`
	User     string `envconfig:"CAVEBOX_DB_USER"`
	Password string `envconfig:"CAVEBOX_DB_PASSWORD"`
	Name     string `envconfig:"CAVEBOX_DB_NAME"`
	SSLMode  string `envconfig:"CAVEBOX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAVEBOX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAVEBOX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAVEBOX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAVEBOX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if strings.TrimSpace(d.DSN) != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either CAVEBOX_DB_DSN or host/user/name parts are required")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"CAVEBOX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAVEBOX_REDIS_ADDR"`
	Password     string        `envconfig:"CAVEBOX_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAVEBOX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAVEBOX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAVEBOX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAVEBOX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAVEBOX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAVEBOX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CAVEBOX_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CAVEBOX_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CAVEBOX_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type CarrierConfig struct {
	BaseURL string        `envconfig:"CAVEBOX_CARRIER_BASE_URL"`
	APIKey  string        `envconfig:"CAVEBOX_CARRIER_API_KEY"`
	Timeout time.Duration `envconfig:"CAVEBOX_CARRIER_TIMEOUT" default:"10s"`
}

type MailerConfig struct {
	BaseURL string        `envconfig:"CAVEBOX_MAILER_BASE_URL"`
	APIKey  string        `envconfig:"CAVEBOX_MAILER_API_KEY"`
	From    string        `envconfig:"CAVEBOX_MAILER_FROM" default:"no-reply@cavebox.fr"`
	Timeout time.Duration `envconfig:"CAVEBOX_MAILER_TIMEOUT" default:"10s"`
}

type MapsConfig struct {
	APIKey  string `envconfig:"CAVEBOX_GOOGLE_MAPS_API_KEY"`
	BaseURL string `envconfig:"CAVEBOX_GOOGLE_MAPS_BASE_URL" default:"https://addressvalidation.googleapis.com"`
}

type ReplenishmentConfig struct {
	AutoSend             bool `envconfig:"CAVEBOX_REPLENISHMENT_AUTO_SEND" default:"true"`
	NotificationTTLHours int  `envconfig:"CAVEBOX_NOTIFICATION_TTL_HOURS" default:"720"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CAVEBOX_CRON_INTERVAL" default:"1h"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"CAVEBOX_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CAVEBOX_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CAVEBOX_AUTO_MIGRATE" default:"false"`
}
