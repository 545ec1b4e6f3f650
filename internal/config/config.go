// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSessionSecret is the development-only signing secret. Production refuses to start with it.
const DefaultSessionSecret = "dev-session-secret-change-me"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env   string `mapstructure:"APP_ENV"`
	Host  string `mapstructure:"HOST"`
	Port  string `mapstructure:"PORT"`
	Debug bool   `mapstructure:"DEBUG"`

	LogLevel string `mapstructure:"LOG_LEVEL"`

	SessionSecret       string        `mapstructure:"SESSION_SECRET"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	SessionCookieSecure bool          `mapstructure:"SESSION_COOKIE_SECURE"`
	CSRFEnabled         bool          `mapstructure:"CSRF_ENABLED"`

	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBSchemaMode      string        `mapstructure:"DB_SCHEMA_MODE"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`

	RedisURL string        `mapstructure:"REDIS_URL"`
	CacheTTL time.Duration `mapstructure:"CACHE_TTL"`

	FeatureFlags string `mapstructure:"FEATURE_FLAGS"`

	PasswordMinLength         int  `mapstructure:"PASSWORD_MIN_LENGTH"`
	PasswordRequireComplexity bool `mapstructure:"PASSWORD_REQUIRE_COMPLEXITY"`
	BcryptCost                int  `mapstructure:"BCRYPT_COST"`

	LoginRateLimit    int `mapstructure:"LOGIN_RATE_LIMIT"`
	RegisterRateLimit int `mapstructure:"REGISTER_RATE_LIMIT"`
	GlobalRateLimit   int `mapstructure:"GLOBAL_RATE_LIMIT"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

var defaults = map[string]any{
	"APP_ENV":                     "development",
	"HOST":                        "127.0.0.1",
	"PORT":                        "5000",
	"DEBUG":                       false,
	"LOG_LEVEL":                   "info",
	"SESSION_SECRET":              DefaultSessionSecret,
	"SESSION_TTL":                 "168h",
	"SESSION_COOKIE_SECURE":       false,
	"CSRF_ENABLED":                true,
	"DB_DRIVER":                   "sqlite",
	"DATABASE_URL":                "blog.db",
	"DB_SCHEMA_MODE":              "sql",
	"DB_MAX_OPEN_CONNS":           25,
	"DB_MAX_IDLE_CONNS":           5,
	"DB_CONN_MAX_LIFETIME":        "5m",
	"REDIS_URL":                   "localhost:6379",
	"CACHE_TTL":                   "5m",
	"FEATURE_FLAGS":               "",
	"PASSWORD_MIN_LENGTH":         5,
	"PASSWORD_REQUIRE_COMPLEXITY": false,
	"BCRYPT_COST":                 10,
	"LOGIN_RATE_LIMIT":            10,
	"REGISTER_RATE_LIMIT":         3,
	"GLOBAL_RATE_LIMIT":           120,
	"TRACING_ENABLED":             false,
	"TRACING_EXPORTER":            "stdout",
	"OTLP_ENDPOINT":               "localhost:4318",
	"TRACING_SAMPLE_RATIO":        1.0,
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// The base file is optional.
	_ = v.ReadInConfig()

	env := v.GetString("APP_ENV")
	if env != "development" && env != "test" && env != "" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config.%s.yml: %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "production" || env == "prod"
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or postgres)", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	switch c.DBSchemaMode {
	case "", "sql", "auto":
	default:
		return fmt.Errorf("unsupported DB_SCHEMA_MODE %q", c.DBSchemaMode)
	}

	if c.TracingEnabled {
		switch strings.ToLower(strings.TrimSpace(c.TracingExporter)) {
		case "", "stdout", "otlp":
		default:
			return fmt.Errorf("unsupported TRACING_EXPORTER %q (want stdout or otlp)", c.TracingExporter)
		}
	}

	if c.PasswordMinLength < 1 {
		return errors.New("PASSWORD_MIN_LENGTH must be at least 1")
	}

	if c.IsProduction() {
		if c.SessionSecret == DefaultSessionSecret {
			return errors.New("SESSION_SECRET must be changed from the default value in production")
		}
		if len(c.SessionSecret) < 32 {
			return errors.New("SESSION_SECRET must be at least 32 characters in production")
		}
		if c.Debug {
			return errors.New("DEBUG must be disabled in production")
		}
		if !c.SessionCookieSecure {
			log.Println("WARNING: SESSION_COOKIE_SECURE is false in production. Session cookies will be sent over plain HTTP.")
		}
		if !c.PasswordRequireComplexity {
			log.Println("WARNING: PASSWORD_REQUIRE_COMPLEXITY is false in production. Only the minimum length is enforced.")
		}
		if c.DBDriver == "postgres" && strings.Contains(c.DatabaseURL, "sslmode=disable") {
			log.Println("WARNING: sslmode=disable in production. It is highly recommended to use SSL for database connections.")
		}
	} else if len(c.SessionSecret) < 32 {
		log.Println("WARNING: SESSION_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
