package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	app struct {
		Name     string `json:"name" mapstructure:"name"`
		Env      string `json:"env" mapstructure:"env"`
		Port     int    `json:"port" mapstructure:"port"`
		Timezone string `json:"timezone" mapstructure:"timezone"`
		Version  string `json:"version" mapstructure:"version"`
		LogLevel string `json:"log_level" mapstructure:"log_level"`
	}

	token struct {
		Secret string `json:"secret" mapstructure:"secret"`
		Issuer string `json:"issuer" mapstructure:"issuer"`
		TTL    string `json:"ttl" mapstructure:"ttl"` // 8760h = 365 days
	}

	paystack struct {
		SecretKey string `json:"secret_key" mapstructure:"secret_key"`
		BaseURL   string `json:"base_url" mapstructure:"base_url"`
	}

	quota struct {
		FreePremiumTrials int `json:"free_premium_trials" mapstructure:"free_premium_trials"`
		FreeTotalSearches int `json:"free_total_searches" mapstructure:"free_total_searches"`
		PremiumTrials     int `json:"premium_trials" mapstructure:"premium_trials"`
		PremiumSearches   int `json:"premium_searches" mapstructure:"premium_searches"`
	}

	providers struct {
		Timeout   string  `json:"timeout" mapstructure:"timeout"`
		UserAgent string  `json:"user_agent" mapstructure:"user_agent"`
		RateLimit float64 `json:"rate_limit" mapstructure:"rate_limit"` // requests per second per host
		Burst     int     `json:"burst" mapstructure:"burst"`
	}

	ipinfo struct {
		Token   string `json:"token" mapstructure:"token"`
		BaseURL string `json:"base_url" mapstructure:"base_url"`
	}

	geocode struct {
		BaseURL  string `json:"base_url" mapstructure:"base_url"`
		CacheTTL string `json:"cache_ttl" mapstructure:"cache_ttl"`
	}

	timeProviders struct {
		TimeAPIBaseURL   string `json:"timeapi_base_url" mapstructure:"timeapi_base_url"`
		WorldTimeBaseURL string `json:"worldtime_base_url" mapstructure:"worldtime_base_url"`
	}

	cache struct {
		Driver   string `json:"driver" mapstructure:"driver"` // "", "memory" or "redis"
		RedisURL string `json:"redis_url" mapstructure:"redis_url"`
		Prefix   string `json:"prefix" mapstructure:"prefix"`
	}

	cors struct {
		AllowOrigins []string `json:"allow_origins" mapstructure:"allow_origins"`
	}

	maxmind struct {
		Enabled       bool   `json:"enabled" mapstructure:"enabled"`
		StoragePath   string `json:"storage_path" mapstructure:"storage_path"`
		CheckInterval string `json:"check_interval" mapstructure:"check_interval"` // how often .mmdb files are checked for replacement
		Databases     struct {
			City string `json:"city" mapstructure:"city"`
			ASN  string `json:"asn" mapstructure:"asn"`
		} `json:"databases" mapstructure:"databases"`
		Cache struct {
			Enabled    bool   `json:"enabled" mapstructure:"enabled"`
			MaxEntries int    `json:"max_entries" mapstructure:"max_entries"`
			TTL        string `json:"ttl" mapstructure:"ttl"`
		} `json:"cache" mapstructure:"cache"`
	}

	Config struct {
		App       app           `json:"app" mapstructure:"app"`
		Token     token         `json:"token" mapstructure:"token"`
		Paystack  paystack      `json:"paystack" mapstructure:"paystack"`
		Quota     quota         `json:"quota" mapstructure:"quota"`
		Providers providers     `json:"providers" mapstructure:"providers"`
		IPInfo    ipinfo        `json:"ipinfo" mapstructure:"ipinfo"`
		Geocode   geocode       `json:"geocode" mapstructure:"geocode"`
		Time      timeProviders `json:"time" mapstructure:"time"`
		Cache     cache         `json:"cache" mapstructure:"cache"`
		CORS      cors          `json:"cors" mapstructure:"cors"`
		MaxMind   maxmind       `json:"maxmind" mapstructure:"maxmind"`
	}

	// MaxMindConfig is an alias for the internal maxmind struct for external access
	MaxMindConfig = maxmind
)

// envBindings maps config keys to the environment variables operators already use
var envBindings = map[string]string{
	"app.port":            "PORT",
	"app.env":             "APP_ENV",
	"app.log_level":       "LOG_LEVEL",
	"paystack.secret_key": "PAYSTACK_SECRET_KEY",
	"token.secret":        "JWT_SECRET",
	"ipinfo.token":        "IPINFO_TOKEN",
	"cache.redis_url":     "REDIS_URL",
}

// Load reads configuration from an optional JSON file, .env and the environment.
// An empty path looks for .config.json in the working directory.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".config")
		v.AddConfigPath("./")
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path == "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every default so env-only deployments work without a file
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "geo-gateway")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.port", 4000)
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("token.issuer", "geo-gateway")
	v.SetDefault("token.ttl", "8760h")

	v.SetDefault("paystack.base_url", "https://api.paystack.co")

	v.SetDefault("quota.free_premium_trials", 1)
	v.SetDefault("quota.free_total_searches", 20)
	v.SetDefault("quota.premium_trials", 999999)
	v.SetDefault("quota.premium_searches", 999999)

	v.SetDefault("providers.timeout", "10s")
	v.SetDefault("providers.user_agent", "geo-gateway/1.0")
	v.SetDefault("providers.rate_limit", 1.0)
	v.SetDefault("providers.burst", 5)

	v.SetDefault("ipinfo.base_url", "https://ipinfo.io")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.cache_ttl", "24h")
	v.SetDefault("time.timeapi_base_url", "https://timeapi.io")
	v.SetDefault("time.worldtime_base_url", "https://worldtimeapi.org")

	v.SetDefault("cache.driver", "")
	v.SetDefault("cache.prefix", "geo-gateway:")
	v.SetDefault("cors.allow_origins", []string{"*"})

	v.SetDefault("maxmind.enabled", false)
	v.SetDefault("maxmind.storage_path", "storage/maxmind")
	v.SetDefault("maxmind.check_interval", "5m")
	v.SetDefault("maxmind.databases.city", "GeoLite2-City")
	v.SetDefault("maxmind.databases.asn", "GeoLite2-ASN")
	v.SetDefault("maxmind.cache.enabled", true)
	v.SetDefault("maxmind.cache.max_entries", 10000)
	v.SetDefault("maxmind.cache.ttl", "1h")
}

// Validate checks values that would otherwise fail deep inside a request.
// A missing Paystack secret is not an error here: the payment route reports it per request.
func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return fmt.Errorf("token.secret (JWT_SECRET) is required")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid app.port: %d", c.App.Port)
	}
	for key, value := range map[string]string{
		"token.ttl":         c.Token.TTL,
		"providers.timeout": c.Providers.Timeout,
		"geocode.cache_ttl": c.Geocode.CacheTTL,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
	}
	switch c.Cache.Driver {
	case "", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis cache driver")
		}
	default:
		return fmt.Errorf("unknown cache.driver %q", c.Cache.Driver)
	}
	return nil
}

// TokenTTL returns the parsed entitlement token lifetime
func (c *Config) TokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Token.TTL)
	return d
}

// ProviderTimeout returns the parsed per-call timeout for third-party APIs
func (c *Config) ProviderTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Providers.Timeout)
	return d
}

// GeocodeCacheTTL returns how long geocode answers may be served from cache
func (c *Config) GeocodeCacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Geocode.CacheTTL)
	return d
}
