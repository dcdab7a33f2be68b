package cache

import (
	"time"

	"github.com/goliatone/go-record-query/internal/cacheinfra"
)

// Config configures the backend that holds result cache entries.
//
// Result caches answer populated keys from their own scope, so TTL and
// Capacity only bound the copies the backend keeps. An evicted or expired
// backend entry never re-runs a query.
type Config struct {
	Capacity            int           `yaml:"capacity"`
	NumShards           int           `yaml:"num_shards"`
	TTL                 time.Duration `yaml:"ttl"`
	EvictionPercentage  int           `yaml:"eviction_percentage"`
	EvictionInterval    time.Duration `yaml:"eviction_interval"`
	ContinuousEvictions bool          `yaml:"continuous_evictions"`
}

// DefaultConfig returns the configuration used for a shared, process wide
// backend.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// ScopeConfig returns the configuration used when a result cache owns its
// backend. Continuous evictions are disabled so no background goroutine
// outlives the scope.
func ScopeConfig() Config {
	return convertFromInternal(cacheinfra.ScopeConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService constructs the sturdyc backed CacheService.
func NewCacheService(cfg Config) (CacheService, error) {
	return cacheinfra.NewSturdycService(cfg.toInternal())
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:            c.Capacity,
		NumShards:           c.NumShards,
		TTL:                 c.TTL,
		EvictionPercentage:  c.EvictionPercentage,
		EvictionInterval:    c.EvictionInterval,
		ContinuousEvictions: c.ContinuousEvictions,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:            cfg.Capacity,
		NumShards:           cfg.NumShards,
		TTL:                 cfg.TTL,
		EvictionPercentage:  cfg.EvictionPercentage,
		EvictionInterval:    cfg.EvictionInterval,
		ContinuousEvictions: cfg.ContinuousEvictions,
	}
}
