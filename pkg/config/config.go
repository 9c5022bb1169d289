package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
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
	Env          string `envconfig:"MERCHANT_ADMIN_APP_ENV" required:"true"`
	Port         string `envconfig:"MERCHANT_ADMIN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MERCHANT_ADMIN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MERCHANT_ADMIN_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"MERCHANT_ADMIN_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MERCHANT_ADMIN_DB_DSN"`
	Driver string `envconfig:"MERCHANT_ADMIN_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MERCHANT_ADMIN_DB_HOST"`
	Port     int    `envconfig:"MERCHANT_ADMIN_DB_PORT" default:"5432"`
	User     string `envconfig:"MERCHANT_ADMIN_DB_USER"`
	Password string `envconfig:"MERCHANT_ADMIN_DB_PASSWORD"`
	Name     string `envconfig:"MERCHANT_ADMIN_DB_NAME"`
	SSLMode  string `envconfig:"MERCHANT_ADMIN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERCHANT_ADMIN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERCHANT_ADMIN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERCHANT_ADMIN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERCHANT_ADMIN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either MERCHANT_ADMIN_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"MERCHANT_ADMIN_REDIS_URL"`
	Address      string        `envconfig:"MERCHANT_ADMIN_REDIS_ADDR"`
	Password     string        `envconfig:"MERCHANT_ADMIN_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERCHANT_ADMIN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERCHANT_ADMIN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERCHANT_ADMIN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERCHANT_ADMIN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERCHANT_ADMIN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERCHANT_ADMIN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret               string `envconfig:"MERCHANT_ADMIN_JWT_SECRET" required:"true"`
	Issuer               string `envconfig:"MERCHANT_ADMIN_JWT_ISSUER" required:"true"`
	ExpirationMinutes    int    `envconfig:"MERCHANT_ADMIN_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLDays  int    `envconfig:"MERCHANT_ADMIN_REFRESH_TOKEN_TTL_DAYS" default:"30"`
	ResetTokenTTLMinutes int    `envconfig:"MERCHANT_ADMIN_RESET_TOKEN_TTL_MINUTES" default:"60"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime configured in days.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLDays <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLDays) * 24 * time.Hour
}

// ResetTokenTTL returns the password reset token lifetime.
func (j JWTConfig) ResetTokenTTL() time.Duration {
	if j.ResetTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ResetTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MERCHANT_ADMIN_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MERCHANT_ADMIN_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MERCHANT_ADMIN_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MERCHANT_ADMIN_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MERCHANT_ADMIN_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RefreshWindow      time.Duration `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_REFRESH_WINDOW" default:"1m"`
	RefreshIPLimit     int           `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_REFRESH_IP_LIMIT" default:"10"`
	ForgotWindow       time.Duration `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_FORGOT_WINDOW" default:"1m"`
	ForgotEmailLimit   int           `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_FORGOT_EMAIL_LIMIT" default:"3"`
	ForgotIPLimit      int           `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_FORGOT_IP_LIMIT" default:"10"`
	ResetWindow        time.Duration `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_RESET_WINDOW" default:"1m"`
	ResetEmailLimit    int           `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_RESET_EMAIL_LIMIT" default:"5"`
	ResetIPLimit       int           `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_RESET_IP_LIMIT" default:"10"`
	RegisterWindow     time.Duration `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MERCHANT_ADMIN_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MERCHANT_ADMIN_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MERCHANT_ADMIN_AUTO_MIGRATE" default:"false"`
}
