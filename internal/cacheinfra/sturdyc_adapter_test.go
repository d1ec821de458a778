package cacheinfra

import (
	"sort"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 5000 {
		t.Errorf("expected Capacity to be 5000, got %d", cfg.Capacity)
	}

	if cfg.NumShards != 32 {
		t.Errorf("expected NumShards to be 32, got %d", cfg.NumShards)
	}

	if cfg.TTL != 0 {
		t.Errorf("expected TTL to be zero (retain until deleted), got %v", cfg.TTL)
	}

	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{
			name: "valid default config",
			cfg:  DefaultConfig(),
		},
		{
			name:      "invalid capacity - zero",
			cfg:       Config{Capacity: 0, NumShards: 1, EvictionPercentage: 10},
			wantField: "Capacity",
		},
		{
			name:      "invalid num shards - zero",
			cfg:       Config{Capacity: 100, NumShards: 0, EvictionPercentage: 10},
			wantField: "NumShards",
		},
		{
			name:      "num shards above capacity",
			cfg:       Config{Capacity: 10, NumShards: 20, EvictionPercentage: 10},
			wantField: "NumShards",
		},
		{
			name:      "negative ttl",
			cfg:       Config{Capacity: 100, NumShards: 4, TTL: -time.Second, EvictionPercentage: 10},
			wantField: "TTL",
		},
		{
			name:      "invalid eviction percentage - too high",
			cfg:       Config{Capacity: 100, NumShards: 4, EvictionPercentage: 101},
			wantField: "EvictionPercentage",
		},
		{
			name:      "negative eviction interval",
			cfg:       Config{Capacity: 100, NumShards: 4, EvictionPercentage: 10, EvictionInterval: -time.Second},
			wantField: "EvictionInterval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("expected no validation error but got: %v", err)
				}
				return
			}
			cfgErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("expected error on field %s, got %s", tt.wantField, cfgErr.Field)
			}
		})
	}
}

func TestConfig_ToSturdycOptions(t *testing.T) {
	if got := len(DefaultConfig().ToSturdycOptions()); got != 0 {
		t.Errorf("expected no options for default config, got %d", got)
	}

	cfg := DefaultConfig()
	cfg.EvictionInterval = time.Minute
	if got := len(cfg.ToSturdycOptions()); got != 1 {
		t.Errorf("expected eviction interval option, got %d options", got)
	}
}

func TestNewSturdycPayloads_InvalidConfig(t *testing.T) {
	if _, err := NewSturdycPayloads(Config{}); err == nil {
		t.Fatal("expected error for zero config")
	}
}

func TestSturdycPayloads_SetGetDelete(t *testing.T) {
	payloads, err := NewSturdycPayloads(Config{Capacity: 100, NumShards: 2, EvictionPercentage: 10})
	if err != nil {
		t.Fatalf("NewSturdycPayloads() failed: %v", err)
	}

	if _, ok := payloads.Get("Order::list"); ok {
		t.Fatal("expected miss on empty store")
	}

	payloads.Set("Order::list", []string{"o-1", "o-2"})
	payloads.Set("Truck::list", nil)

	got, ok := payloads.Get("Order::list")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if ids, _ := got.([]string); len(ids) != 2 {
		t.Errorf("unexpected payload %v", got)
	}

	if _, ok := payloads.Get("Truck::list"); !ok {
		t.Error("nil payloads should still be stored")
	}

	keys := payloads.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "Order::list" {
		t.Errorf("unexpected keys %v", keys)
	}

	payloads.Delete("Order::list")
	if _, ok := payloads.Get("Order::list"); ok {
		t.Error("expected miss after Delete")
	}
	if payloads.Size() != 1 {
		t.Errorf("expected size 1, got %d", payloads.Size())
	}
}
