// Package config loads YAML configuration for the cache worker and router
// binaries, with an optional overlay file merged on top of built-in
// defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can accept either a duration string
// ("30s", "5m") or a bare integer number of seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	if value.Value == "" {
		return nil
	}
	if value.Tag == "!!int" {
		seconds, err := strconv.Atoi(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration integer %q: %w", value.Value, err)
		}
		d.Duration = time.Duration(seconds) * time.Second
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Config is the root configuration shared by the worker and router
// binaries. Each binary only reads the sections relevant to it.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Cache  CacheConfig  `yaml:"cache"`
	Ring   RingConfig   `yaml:"ring"`
	Store  StoreConfig  `yaml:"store"`
	Chaos  ChaosConfig  `yaml:"chaos"`
	Router RouterConfig `yaml:"router"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// ServerConfig is the HTTP bind address for whichever binary loads it.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CacheConfig controls each worker's LRU cache.
type CacheConfig struct {
	Capacity      int      `yaml:"capacity"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// RingConfig controls the consistent-hash ring shared by the router.
type RingConfig struct {
	VirtualNodesPerPhysical int `yaml:"virtual_nodes_per_physical"`
}

// StoreConfig selects the router's durable-store backing.
type StoreConfig struct {
	Kind    string `yaml:"kind"` // "memory" or "redis"
	Address string `yaml:"address"`
}

// ChaosConfig bounds the chaos controller's strike interval and floor.
type ChaosConfig struct {
	MinNodes    int      `yaml:"min_nodes"`
	IntervalMin Duration `yaml:"interval_min"`
	IntervalMax Duration `yaml:"interval_max"`
}

// RouterConfig holds router-specific tuning that isn't cache/ring/store/chaos.
type RouterConfig struct {
	SelfPort             string   `yaml:"self_port"`
	ReplicationFactor    int      `yaml:"replication_factor"`
	RefillTTL            Duration `yaml:"refill_ttl"`
	BypassLatency        Duration `yaml:"bypass_latency"`
	WorkerRPCTimeout     Duration `yaml:"worker_rpc_timeout"`
	SpawnTimeout         Duration `yaml:"spawn_timeout"`
}

// WebhookConfig configures the optional best-effort chaos/partition notifier.
type WebhookConfig struct {
	URL                string `yaml:"url"`
	Target             string `yaml:"target"` // "default" or "discord"
	Timeout            Duration `yaml:"timeout"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

// Load reads defaultPath, optionally merges overridePath on top (if it
// exists), applies defaults, and validates the result.
func Load(defaultPath, overridePath string) (Config, error) {
	base := map[string]interface{}{}
	if defaultPath != "" {
		data, err := os.ReadFile(defaultPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		} else {
			parsed, err := parseYAMLMap(data)
			if err != nil {
				return Config{}, fmt.Errorf("parse default config: %w", err)
			}
			base = parsed
		}
	}

	overridePath = strings.TrimSpace(overridePath)
	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		} else {
			override, err := parseYAMLMap(data)
			if err != nil {
				return Config{}, fmt.Errorf("parse override config: %w", err)
			}
			base = mergeMaps(base, override)
		}
	}

	merged, err := yaml.Marshal(base)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(merged, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse merged config: %w", err)
	}
	applyDefaults(&cfg)
	normalize(&cfg)
	if err := validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Cache.Capacity <= 0 {
		cfg.Cache.Capacity = 100
	}
	if cfg.Cache.SweepInterval.Duration <= 0 {
		cfg.Cache.SweepInterval.Duration = 5 * time.Second
	}
	if cfg.Ring.VirtualNodesPerPhysical <= 0 {
		cfg.Ring.VirtualNodesPerPhysical = 10
	}
	if cfg.Store.Kind == "" {
		cfg.Store.Kind = "memory"
	}
	if cfg.Chaos.MinNodes <= 0 {
		cfg.Chaos.MinNodes = 3
	}
	if cfg.Chaos.IntervalMin.Duration <= 0 {
		cfg.Chaos.IntervalMin.Duration = 5 * time.Second
	}
	if cfg.Chaos.IntervalMax.Duration <= 0 {
		cfg.Chaos.IntervalMax.Duration = 8 * time.Second
	}
	if cfg.Router.SelfPort == "" {
		cfg.Router.SelfPort = "8000"
	}
	if cfg.Router.ReplicationFactor <= 0 {
		cfg.Router.ReplicationFactor = 2
	}
	if cfg.Router.RefillTTL.Duration <= 0 {
		cfg.Router.RefillTTL.Duration = 30 * time.Second
	}
	if cfg.Router.BypassLatency.Duration <= 0 {
		cfg.Router.BypassLatency.Duration = 300 * time.Millisecond
	}
	if cfg.Router.WorkerRPCTimeout.Duration <= 0 {
		cfg.Router.WorkerRPCTimeout.Duration = 10 * time.Second
	}
	if cfg.Router.SpawnTimeout.Duration <= 0 {
		cfg.Router.SpawnTimeout.Duration = 10 * time.Second
	}
	if cfg.Webhook.Target == "" {
		cfg.Webhook.Target = "default"
	}
	if cfg.Webhook.Timeout.Duration <= 0 {
		cfg.Webhook.Timeout.Duration = 5 * time.Second
	}
	if cfg.Webhook.RateLimitPerMinute <= 0 {
		cfg.Webhook.RateLimitPerMinute = 60
	}
}

func normalize(cfg *Config) {
	cfg.Server.Host = strings.TrimSpace(cfg.Server.Host)
	cfg.Store.Kind = strings.ToLower(strings.TrimSpace(cfg.Store.Kind))
	cfg.Store.Address = strings.TrimSpace(cfg.Store.Address)
	cfg.Router.SelfPort = strings.TrimSpace(cfg.Router.SelfPort)
	cfg.Webhook.URL = strings.TrimSpace(cfg.Webhook.URL)
	cfg.Webhook.Target = strings.ToLower(strings.TrimSpace(cfg.Webhook.Target))
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got %d)", cfg.Server.Port)
	}
	if cfg.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be greater than zero")
	}
	if cfg.Ring.VirtualNodesPerPhysical <= 0 {
		return fmt.Errorf("ring.virtual_nodes_per_physical must be greater than zero")
	}
	if cfg.Store.Kind != "memory" && cfg.Store.Kind != "redis" {
		return fmt.Errorf("store.kind must be memory or redis (got %q)", cfg.Store.Kind)
	}
	if cfg.Store.Kind == "redis" && cfg.Store.Address == "" {
		return fmt.Errorf("store.address is required when store.kind is redis")
	}
	if cfg.Chaos.MinNodes <= 0 {
		return fmt.Errorf("chaos.min_nodes must be greater than zero")
	}
	if cfg.Chaos.IntervalMin.Duration <= 0 || cfg.Chaos.IntervalMax.Duration <= 0 {
		return fmt.Errorf("chaos.interval_min and chaos.interval_max must be greater than zero")
	}
	if cfg.Chaos.IntervalMin.Duration > cfg.Chaos.IntervalMax.Duration {
		return fmt.Errorf("chaos.interval_min must not exceed chaos.interval_max")
	}
	if cfg.Router.ReplicationFactor <= 0 {
		return fmt.Errorf("router.replication_factor must be greater than zero")
	}
	if cfg.Webhook.Target != "" && cfg.Webhook.Target != "default" && cfg.Webhook.Target != "discord" {
		return fmt.Errorf("webhook.target must be default or discord (got %q)", cfg.Webhook.Target)
	}
	return nil
}

func parseYAMLMap(data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	normalized, ok := normalizeMap(raw).(map[string]interface{})
	if !ok {
		return map[string]interface{}{}, nil
	}
	return normalized, nil
}

func normalizeMap(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, val := range typed {
			out[key] = normalizeMap(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, val := range typed {
			keyStr, ok := key.(string)
			if !ok {
				continue
			}
			out[keyStr] = normalizeMap(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(typed))
		for _, val := range typed {
			out = append(out, normalizeMap(val))
		}
		return out
	default:
		return typed
	}
}

func mergeMaps(base, override map[string]interface{}) map[string]interface{} {
	if base == nil {
		base = map[string]interface{}{}
	}
	for key, overrideVal := range override {
		if baseVal, ok := base[key]; ok {
			baseMap, baseOK := baseVal.(map[string]interface{})
			overrideMap, overrideOK := overrideVal.(map[string]interface{})
			if baseOK && overrideOK {
				base[key] = mergeMaps(baseMap, overrideMap)
				continue
			}
		}
		base[key] = overrideVal
	}
	return base
}
