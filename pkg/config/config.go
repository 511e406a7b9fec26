package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable read by the service.
const EnvPrefix = "AUTHCORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "AUTHCORE_DB_DSN"
	EnvDBHost = "AUTHCORE_DB_HOST"
	EnvDBUser = "AUTHCORE_DB_USER"
	EnvDBName = "AUTHCORE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	SMTP          SMTPConfig
	CORS          CORSConfig
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
	Env          string `envconfig:"AUTHCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"AUTHCORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AUTHCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AUTHCORE_LOG_WARN_STACK" default:"false"`
	FrontendURL  string `envconfig:"AUTHCORE_FRONTEND_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AUTHCORE_DB_DSN"`
	Driver string `envconfig:"AUTHCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AUTHCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"AUTHCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AUTHCORE_DB_USER"`
	LegacyPassword string `envconfig:"AUTHCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"AUTHCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"AUTHCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AUTHCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AUTHCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AUTHCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AUTHCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AUTHCORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AUTHCORE_REDIS_ADDR"`
	Password     string        `envconfig:"AUTHCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"AUTHCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AUTHCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AUTHCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AUTHCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AUTHCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AUTHCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AUTHCORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AUTHCORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AUTHCORE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the configured token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AUTHCORE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AUTHCORE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AUTHCORE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AUTHCORE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AUTHCORE_ARGON_KEY_LEN" default:"32"`
}

type SMTPConfig struct {
	Host     string        `envconfig:"AUTHCORE_SMTP_HOST"`
	Port     int           `envconfig:"AUTHCORE_SMTP_PORT" default:"587"`
	User     string        `envconfig:"AUTHCORE_SMTP_USER"`
	Password string        `envconfig:"AUTHCORE_SMTP_PASSWORD"`
	From     string        `envconfig:"AUTHCORE_SMTP_FROM"`
	Timeout  time.Duration `envconfig:"AUTHCORE_SMTP_TIMEOUT" default:"10s"`
}

// Addr returns the host:port dial target for the SMTP server.
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"AUTHCORE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	Credentials    bool     `envconfig:"AUTHCORE_CORS_CREDENTIALS" default:"true"`
}

type AuthRateLimitConfig struct {
	LoginWindow      time.Duration `envconfig:"AUTHCORE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"AUTHCORE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"AUTHCORE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow     time.Duration `envconfig:"AUTHCORE_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit int           `envconfig:"AUTHCORE_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit    int           `envconfig:"AUTHCORE_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
	ResetWindow      time.Duration `envconfig:"AUTHCORE_AUTH_RATE_LIMIT_RESET_WINDOW" default:"5m"`
	ResetEmailLimit  int           `envconfig:"AUTHCORE_AUTH_RATE_LIMIT_RESET_EMAIL_LIMIT" default:"3"`
	ResetIPLimit     int           `envconfig:"AUTHCORE_AUTH_RATE_LIMIT_RESET_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AUTHCORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AUTHCORE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
