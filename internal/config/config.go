package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	sslModeDisable = "disable"
	sslModeRequire = "require"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type (
	Config struct {
		Host     string `mapstructure:"HOST"`
		Port     string `mapstructure:"PORT"`
		GRPCPort string `mapstructure:"GRPC_PORT"`
		Env      string `mapstructure:"APP_ENV"`

		DBDriver       string `mapstructure:"DB_DRIVER"`
		DBHost         string `mapstructure:"DB_HOST"`
		DBPort         string `mapstructure:"DB_PORT"`
		DBUser         string `mapstructure:"DB_USER"`
		DBPassword     string `mapstructure:"DB_PASSWORD"`
		DBName         string `mapstructure:"DB_NAME"`
		DBSSLMode      string `mapstructure:"DB_SSL_MODE"`
		DBPath         string `mapstructure:"DB_PATH"`
		DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`

		OAuthClientID     string `mapstructure:"OAUTH_CLIENT_ID"`
		OAuthClientSecret string `mapstructure:"OAUTH_CLIENT_SECRET"`
		OAuthAuthURL      string `mapstructure:"OAUTH_AUTH_URL"`
		OAuthTokenURL     string `mapstructure:"OAUTH_TOKEN_URL"`
		OAuthUserInfoURL  string `mapstructure:"OAUTH_USERINFO_URL"`
		OAuthRedirectURL  string `mapstructure:"OAUTH_REDIRECT_URL"`

		FrontendURL    string        `mapstructure:"FRONTEND_URL"`
		SessionTTL     time.Duration `mapstructure:"SESSION_TTL"`
		CookieSecure   bool          `mapstructure:"COOKIE_SECURE"`
		MetricsEnabled bool          `mapstructure:"METRICS_ENABLED"`
		SeedTaxonomy   bool          `mapstructure:"SEED_TAXONOMY"`
	}
)

var defaults = map[string]interface{}{
	"HOST":                "0.0.0.0",
	"PORT":                "1323",
	"GRPC_PORT":           "9000",
	"APP_ENV":             EnvDevelopment,
	"DB_DRIVER":           DriverPostgres,
	"DB_HOST":             "0.0.0.0",
	"DB_PORT":             "5432",
	"DB_USER":             "user",
	"DB_PASSWORD":         "password",
	"DB_NAME":             "db",
	"DB_SSL_MODE":         sslModeDisable,
	"DB_PATH":             "animal-share.db",
	"DB_MAX_OPEN_CONNS":   10,
	"OAUTH_CLIENT_ID":     "",
	"OAUTH_CLIENT_SECRET": "",
	"OAUTH_AUTH_URL":      "https://accounts.google.com/o/oauth2/v2/auth",
	"OAUTH_TOKEN_URL":     "https://oauth2.googleapis.com/token",
	"OAUTH_USERINFO_URL":  "https://openidconnect.googleapis.com/v1/userinfo",
	"OAUTH_REDIRECT_URL":  "http://localhost:1323/api/auth/callback",
	"FRONTEND_URL":        "http://localhost:3000",
	"SESSION_TTL":         "720h",
	"COOKIE_SECURE":       false,
	"METRICS_ENABLED":     true,
	"SEED_TAXONOMY":       true,
}

func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ANIMALSHARE")

	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return c.DBPath + "?_foreign_keys=on"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

func validate(cfg *Config) error {
	if !oneOf(cfg.DBSSLMode, sslModeDisable, sslModeRequire) {
		return errors.New(fmt.Sprintf("DB SSL mode is invalid: %s", cfg.DBSSLMode))
	}
	if !oneOf(cfg.DBDriver, DriverPostgres, DriverSQLite) {
		return errors.New(fmt.Sprintf("DB driver is invalid: %s", cfg.DBDriver))
	}
	if !oneOf(cfg.Env, EnvDevelopment, EnvProduction, EnvTest) {
		return errors.New(fmt.Sprintf("APP_ENV is invalid: %s", cfg.Env))
	}
	if cfg.Port == "" || cfg.GRPCPort == "" {
		return errors.New("HTTP and gRPC ports are required")
	}
	if cfg.SessionTTL <= 0 {
		return errors.New(fmt.Sprintf("session TTL must be positive: %s", cfg.SessionTTL))
	}
	if cfg.DBMaxOpenConns <= 0 {
		return errors.New(fmt.Sprintf("DB max open conns must be positive: %d", cfg.DBMaxOpenConns))
	}
	for name, raw := range map[string]string{
		"OAUTH_AUTH_URL":     cfg.OAuthAuthURL,
		"OAUTH_TOKEN_URL":    cfg.OAuthTokenURL,
		"OAUTH_USERINFO_URL": cfg.OAuthUserInfoURL,
		"OAUTH_REDIRECT_URL": cfg.OAuthRedirectURL,
		"FRONTEND_URL":       cfg.FrontendURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New(fmt.Sprintf("%s is not an absolute URL: %q", name, raw))
		}
	}
	return nil
}

func oneOf(value string, valid ...string) bool {
	for _, v := range valid {
		if value == v {
			return true
		}
	}
	return false
}
