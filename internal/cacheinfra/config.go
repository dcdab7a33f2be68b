package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Config holds the sturdyc client settings.
//
// Early refreshes and missing record storage are never enabled: a refresh
// would re-run a query behind the caller's back, and empty results are
// ordinary cached values rather than missing records.
type Config struct {
	// Capacity is the maximum number of entries. Must be greater than 0.
	Capacity int

	// NumShards is the number of cache shards. Must be greater than 0.
	NumShards int

	// TTL is how long an entry may live. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage is the share of entries evicted when a shard is
	// full. Must be between 1 and 100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are swept. Zero uses
	// the sturdyc default.
	EvictionInterval time.Duration

	// ContinuousEvictions runs the background sweeper. When false, expired
	// entries are only dropped as shards fill up.
	ContinuousEvictions bool
}

// DefaultConfig suits one backend shared by every scope of a process.
func DefaultConfig() Config {
	return Config{
		Capacity:            10000,
		NumShards:           64,
		TTL:                 30 * time.Minute,
		EvictionPercentage:  10,
		ContinuousEvictions: true,
	}
}

// ScopeConfig suits a backend owned by a single scope.
func ScopeConfig() Config {
	return Config{
		Capacity:            1024,
		NumShards:           4,
		TTL:                 24 * time.Hour,
		EvictionPercentage:  10,
		ContinuousEvictions: false,
	}
}

// Validate checks the configuration. Failures are goerrors validation errors
// listing each offending field.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache configuration")
	}
	return nil
}

func (c Config) sturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	if !c.ContinuousEvictions {
		options = append(options, sturdyc.WithNoContinuousEvictions())
	}

	return options
}
