package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string   `mapstructure:"PORT"`
	Env                   string   `mapstructure:"ENV"`
	DatabaseURL           string   `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32    `mapstructure:"DB_MIN_CONNS"`
	DBLockTimeoutMS       int      `mapstructure:"DB_LOCK_TIMEOUT_MS"`
	AuthSigningKey        string   `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer            string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL           string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience          string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins           []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS          float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int      `mapstructure:"RATE_LIMIT_BURST"`
	ReferralExpiryHours   int      `mapstructure:"REFERRAL_EXPIRY_HOURS"`
	CancelReasonMinLength int      `mapstructure:"CANCEL_REASON_MIN_LENGTH"`
	BcryptCost            int      `mapstructure:"BCRYPT_COST"`
	MetricsEnabled        bool     `mapstructure:"METRICS_ENABLED"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_LOCK_TIMEOUT_MS",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REFERRAL_EXPIRY_HOURS", "CANCEL_REASON_MIN_LENGTH", "BCRYPT_COST", "METRICS_ENABLED",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_LOCK_TIMEOUT_MS", 5000)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REFERRAL_EXPIRY_HOURS", 48)
	v.SetDefault("CANCEL_REASON_MIN_LENGTH", 10)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ENV=development: requests without a bearer token may identify themselves with X-Employee-ID.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ReferralExpiry is the age after which an unresolved referral is expired.
func (c *Config) ReferralExpiry() time.Duration {
	return time.Duration(c.ReferralExpiryHours) * time.Hour
}

// DBLockTimeout is how long a statement may wait on a row lock.
func (c *Config) DBLockTimeout() time.Duration {
	return time.Duration(c.DBLockTimeoutMS) * time.Millisecond
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" && c.AuthIssuer == "" {
		return fmt.Errorf("one of AUTH_SIGNING_KEY, AUTH_JWKS_URL or AUTH_ISSUER is required when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}
	if c.DBLockTimeoutMS < 0 {
		return fmt.Errorf("DB_LOCK_TIMEOUT_MS must not be negative, got %d", c.DBLockTimeoutMS)
	}
	if c.ReferralExpiryHours <= 0 {
		return fmt.Errorf("REFERRAL_EXPIRY_HOURS must be positive, got %d", c.ReferralExpiryHours)
	}
	if c.CancelReasonMinLength < 1 {
		return fmt.Errorf("CANCEL_REASON_MIN_LENGTH must be at least 1, got %d", c.CancelReasonMinLength)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	return nil
}
