package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidResultType is returned by GetOrFetch when the cached value does not
// have the requested type, typically because two callers used the same key
// for different result types.
var ErrInvalidResultType = errors.New("cached value has unexpected type")

// KeySerializer builds a cache key from a namespace and arbitrary parts.
// Equal inputs must produce equal keys across calls.
type KeySerializer interface {
	SerializeKey(namespace string, parts ...any) string
}

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is the read-through backend used by result caches. A failed
// fetch must not populate the key.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
}

// GetOrFetch is the typed form of CacheService.GetOrFetch.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T

	result, err := service.GetOrFetch(ctx, key, fetchFn)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T, want %T", ErrInvalidResultType, key, result, zero)
	}
	return typed, nil
}
