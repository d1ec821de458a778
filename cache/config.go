package cache

import (
	"time"

	"github.com/goliatone/go-freightsync/internal/cacheinfra"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	// Capacity bounds the number of payloads kept in memory.
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
	// NumShards is used both for the entry shards and the payload shards.
	NumShards int `mapstructure:"num_shards" yaml:"num_shards"`
	// PayloadTTL is a hard upper bound on payload age. Zero keeps payloads
	// until they are invalidated, which is the expected setting.
	PayloadTTL         time.Duration `mapstructure:"payload_ttl" yaml:"payload_ttl"`
	EvictionPercentage int           `mapstructure:"eviction_percentage" yaml:"eviction_percentage"`
	EvictionInterval   time.Duration `mapstructure:"eviction_interval" yaml:"eviction_interval"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.PayloadTTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		PayloadTTL:         cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
