package cacheinfra

import (
	"time"

	"github.com/viccon/sturdyc"
)

// RetainForever is the sturdyc TTL used when payloads should only leave the
// store through explicit deletion or capacity eviction.
const RetainForever = 100 * 365 * 24 * time.Hour

// Config holds the configuration for the sturdyc payload adapter.
type Config struct {
	// Capacity defines the maximum number of payloads that the store can hold.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of sturdyc shards.
	// Must be greater than 0. Default: 32
	NumShards int

	// TTL is the time-to-live sturdyc applies to every payload.
	// Zero means payloads are kept until deleted or evicted for capacity.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of payloads to evict
	// when the store reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often sturdyc scans for expired payloads.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for a client process.
func DefaultConfig() Config {
	return Config{
		Capacity:           5000,
		NumShards:          32,
		TTL:                0,
		EvictionPercentage: 10,
		EvictionInterval:   0,
	}
}

// ToSturdycOptions converts the optional parts of Config to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

func (c Config) effectiveTTL() time.Duration {
	if c.TTL <= 0 {
		return RetainForever
	}
	return c.TTL
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.NumShards > c.Capacity {
		return &ConfigError{Field: "NumShards", Message: "must not exceed Capacity"}
	}

	if c.TTL < 0 {
		return &ConfigError{Field: "TTL", Message: "must be non-negative"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// SturdycPayloads keeps query payloads in a sturdyc client. It only stores
// data; statuses, subscribers and tags are tracked by the cache store.
type SturdycPayloads struct {
	client *sturdyc.Client[any]
}

// NewSturdycPayloads validates cfg and creates the sturdyc backed payload store.
func NewSturdycPayloads(cfg Config) (*SturdycPayloads, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.effectiveTTL(),
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycPayloads{client: client}, nil
}

// Get returns the payload stored under key.
func (s *SturdycPayloads) Get(key string) (any, bool) {
	return s.client.Get(key)
}

// Set stores the payload under key, replacing any previous value.
func (s *SturdycPayloads) Set(key string, value any) {
	s.client.Set(key, value)
}

// Delete removes the payload stored under key.
func (s *SturdycPayloads) Delete(key string) {
	s.client.Delete(key)
}

// Keys lists the keys that currently hold a payload.
func (s *SturdycPayloads) Keys() []string {
	return s.client.ScanKeys()
}

// Size returns the number of payloads held.
func (s *SturdycPayloads) Size() int {
	return s.client.Size()
}
