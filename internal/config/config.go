package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr         string        `mapstructure:"addr"`
		Mode         string        `mapstructure:"mode"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	Search struct {
		Endpoint   string        `mapstructure:"endpoint"`
		Index      string        `mapstructure:"index"`
		AdminKey   string        `mapstructure:"admin_key"`
		Suggester  string        `mapstructure:"suggester"`
		APIVersion string        `mapstructure:"api_version"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"search"`

	Auth struct {
		TenantID     string   `mapstructure:"tenant_id"`
		ClientID     string   `mapstructure:"client_id"`
		ClientSecret string   `mapstructure:"client_secret"`
		Issuer       string   `mapstructure:"issuer"`
		Audience     string   `mapstructure:"audience"`
		JWKSEndpoint string   `mapstructure:"jwks_endpoint"`
		Scopes       []string `mapstructure:"scopes"`

		KeyCacheTTL time.Duration `mapstructure:"key_cache_ttl"`
	} `mapstructure:"auth"`

	TokenCache struct {
		ExpiryMargin  time.Duration `mapstructure:"expiry_margin"`
		EvictionGrace time.Duration `mapstructure:"eviction_grace"`
		Redis         struct {
			URL      string `mapstructure:"url"`
			PoolSize int    `mapstructure:"pool_size"`
		} `mapstructure:"redis"`
	} `mapstructure:"token_cache"`

	Observability struct {
		TraceEnabled       bool   `mapstructure:"trace_enabled"`
		TracingEndpointURL string `mapstructure:"tracing_endpoint_url"`
		LogLevel           string `mapstructure:"log_level"`
		Format             string `mapstructure:"log_format"`
		LogSource          bool   `mapstructure:"log_source"`
	} `mapstructure:"observability"`
}

func MustLoad() *Config {
	v := viper.New()

	logger := slog.Default()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvPrefix("OBO_RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		logger.Error("Failed to read config", slog.Any("error", err))
		os.Exit(1)
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		if err := v.MergeInConfig(); err != nil {
			logger.Info("No environment-specific config (optional)", slog.String("env", env))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Error("Failed to unmarshal config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("search.index", "documents")
	v.SetDefault("search.suggester", "sg")
	v.SetDefault("search.api_version", "2025-05-01-preview")
	v.SetDefault("search.timeout", "15s")

	v.SetDefault("auth.key_cache_ttl", "15m")

	v.SetDefault("token_cache.expiry_margin", "60s")
	v.SetDefault("token_cache.eviction_grace", "5m")
	v.SetDefault("token_cache.redis.pool_size", 10)

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
}

// Validate checks settings that must be present before the process can
// serve requests. A missing value here is a startup failure, never a
// per-request error.
func (c *Config) Validate() error {
	var missing []string

	required := []struct {
		key   string
		value string
	}{
		{"search.endpoint", c.Search.Endpoint},
		{"search.index", c.Search.Index},
		{"search.admin_key", c.Search.AdminKey},
		{"auth.tenant_id", c.Auth.TenantID},
		{"auth.client_id", c.Auth.ClientID},
		{"auth.client_secret", c.Auth.ClientSecret},
		{"auth.issuer", c.Auth.Issuer},
		{"auth.audience", c.Auth.Audience},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}

	// The downstream scope set is deliberately explicit configuration,
	// never derived from the client id.
	if len(c.Auth.Scopes) == 0 {
		missing = append(missing, "auth.scopes")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// JWKSEndpointOrDefault returns the configured JWKS endpoint, or the
// identity provider's discovery keys endpoint derived from the tenant.
func (c *Config) JWKSEndpointOrDefault() string {
	if c.Auth.JWKSEndpoint != "" {
		return c.Auth.JWKSEndpoint
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/discovery/v2.0/keys", c.Auth.TenantID)
}

// TokenEndpoint returns the identity provider token endpoint used for
// the on-behalf-of grant.
func (c *Config) TokenEndpoint() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.Auth.TenantID)
}
