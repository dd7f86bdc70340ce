// Package config loads and validates app config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// AppName is shown in the startup banner.
	AppName string `mapstructure:"APP_NAME"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis address for the login limiter; empty disables it.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	// AccessTokenSecret signs access tokens. Independent of the refresh
	// secret: the key separation is the security boundary.
	AccessTokenSecret string `mapstructure:"ACCESS_TOKEN_SECRET"`
	// RefreshTokenSecret signs refresh tokens.
	RefreshTokenSecret string `mapstructure:"REFRESH_TOKEN_SECRET"`
	// CSRFTokenSecret signs the double-submit csrf tokens.
	CSRFTokenSecret string `mapstructure:"CSRF_TOKEN_SECRET"`
	// JWTIssuer is the iss claim on all minted tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	// JWTAccessTTL is the access token lifetime (e.g. "24h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// JWTCSRFTTL is the csrf token lifetime (e.g. "1h").
	JWTCSRFTTL string `mapstructure:"JWT_CSRF_TTL"`

	// MaxLoginAttempts is the failed-login budget per cooldown window.
	MaxLoginAttempts int `mapstructure:"MAX_LOGIN_ATTEMPTS"`
	// LoginCooldown is the limiter window (e.g. "15m").
	LoginCooldown string `mapstructure:"LOGIN_COOLDOWN"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_NAME", "Marketloop Auth")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	// Registering empty defaults makes the keys visible to Unmarshal; Viper
	// only consults the environment for keys it already knows about.
	v.SetDefault("ACCESS_TOKEN_SECRET", "")
	v.SetDefault("REFRESH_TOKEN_SECRET", "")
	v.SetDefault("CSRF_TOKEN_SECRET", "")
	v.SetDefault("JWT_ISSUER", "marketloop-auth")
	v.SetDefault("JWT_ACCESS_TTL", "24h")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("JWT_CSRF_TTL", "1h")
	v.SetDefault("MAX_LOGIN_ATTEMPTS", 5)
	v.SetDefault("LOGIN_COOLDOWN", "15m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" || cfg.CSRFTokenSecret == "" {
		return nil, errors.New("config: ACCESS_TOKEN_SECRET, REFRESH_TOKEN_SECRET and CSRF_TOKEN_SECRET must be set")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, errors.New("config: access and refresh secrets must differ")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 24*time.Hour)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 168*time.Hour)
}

// CSRFTTL parses JWTCSRFTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) CSRFTTL() time.Duration {
	return parseDuration(c.JWTCSRFTTL, time.Hour)
}

// Cooldown parses LoginCooldown as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) Cooldown() time.Duration {
	return parseDuration(c.LoginCooldown, 15*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
