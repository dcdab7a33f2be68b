// Package cache provides the backing store and key serialization used by
// scoped result caches.
//
// # Overview
//
// The package exports two interfaces and their default implementations:
//
//   - CacheService: a read-through cache with prefix invalidation
//   - KeySerializer: builds stable strings from a namespace and parts
//
// A single CacheService is usually shared by every scope in a process. Each
// scope namespaces its keys with its own id, so closing a scope is a single
// DeleteByPrefix call.
//
// # Basic Usage
//
//	service, err := cache.NewCacheService(cache.ScopeConfig())
//	if err != nil {
//		return err
//	}
//
//	records, err := cache.GetOrFetch(ctx, service, key, func(ctx context.Context) ([]query.Record, error) {
//		return builder.Execute(ctx)
//	})
//
// Concurrent callers asking for the same missing key share one fetch.
//
// # Key Serialization
//
// The default serializer walks values with reflection:
//
//   - Basic types use their string form
//   - Slices and arrays serialize each element in order
//   - Maps are written with sorted keys so iteration order never leaks in
//   - Structs contribute exported fields as name:value pairs
//   - Anything else falls back to JSON, then to its type name
//
// Bound query parameters are serialized this way before they are hashed
// into a result cache key, so two builders with equal bindings map to the
// same entry.
//
// # Custom Key Serializers
//
// Implement KeySerializer when keys must follow another scheme, for example
// to share a distributed backend across processes:
//
//	type prefixed struct{ prefix string }
//
//	func (s prefixed) SerializeKey(namespace string, parts ...any) string {
//		return s.prefix + cache.KeySeparator + namespace
//	}
package cache
