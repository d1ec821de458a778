package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/goliatone/go-freightsync/cache"
	"github.com/goliatone/go-freightsync/session"
	"github.com/goliatone/go-freightsync/transport"
)

const (
	configName = "freightsync"
	configType = "yaml"
	configDir  = "freightsync"

	// BaseURLEnv is the only setting read from the environment.
	BaseURLEnv = "FREIGHT_BASE_URL"
)

// Config is the client configuration.
type Config struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	Token             string        `mapstructure:"token" yaml:"token"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	Session           SessionConfig `mapstructure:"session" yaml:"session"`
	Cache             cache.Config  `mapstructure:"cache" yaml:"cache"`
}

// SessionConfig configures the session resolution gate.
type SessionConfig struct {
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout" yaml:"resolve_timeout"`
	// EagerResolve settles the gate as soon as the profile fetch does,
	// instead of holding it until the resolve timeout.
	EagerResolve bool `mapstructure:"eager_resolve" yaml:"eager_resolve"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Timeout: transport.DefaultTimeout,
		Session: SessionConfig{
			ResolveTimeout: session.DefaultResolveTimeout,
		},
		Cache: cache.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.Timeout, validation.Required),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst,
			validation.Min(0),
			validation.When(c.RequestsPerSecond > 0, validation.Required),
		),
		validation.Field(&c.Session),
		validation.Field(&c.Cache),
	)
}

// Validate checks the session settings.
func (s SessionConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ResolveTimeout, validation.Required),
	)
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// Load reads the configuration. With an empty path the file is searched in
// the working directory and in the user config directory; a missing file is
// not an error there. FREIGHT_BASE_URL overrides base_url.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith reads the configuration through v, so callers can bind flags
// first.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v, Default())

	if err := v.BindEnv("base_url", BaseURLEnv); err != nil {
		return Config{}, fmt.Errorf("bind %s: %w", BaseURLEnv, err)
	}

	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configDir))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("requests_per_second", d.RequestsPerSecond)
	v.SetDefault("burst", d.Burst)
	v.SetDefault("session.resolve_timeout", d.Session.ResolveTimeout)
	v.SetDefault("session.eager_resolve", d.Session.EagerResolve)
	v.SetDefault("cache.capacity", d.Cache.Capacity)
	v.SetDefault("cache.num_shards", d.Cache.NumShards)
	v.SetDefault("cache.payload_ttl", d.Cache.PayloadTTL)
	v.SetDefault("cache.eviction_percentage", d.Cache.EvictionPercentage)
	v.SetDefault("cache.eviction_interval", d.Cache.EvictionInterval)
}
