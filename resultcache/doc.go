// Package resultcache memoizes query results for one execution scope.
//
// # Overview
//
// A ResultCache belongs to one unit of work, such as a request, a transaction
// or a bulk operation processed in batches. Within that scope a query runs at
// most once per key:
//
//	rc, err := resultcache.New(resultcache.WithBackend(shared))
//	defer rc.Close(ctx)
//
//	accounts, err := rc.GetOrExecute(ctx, "Account", builder, false)
//
// The second call for "Account" returns the stored records without touching
// the store. Passing forceRefresh=true is the only way to re-run a populated
// key inside the scope; there is no expiry and no write invalidation. A
// failed execution leaves the key unpopulated so the next call tries again.
//
// # Keys
//
// Callers pick keys. Key(entityType, discriminator) builds namespaced keys
// for several cached queries on one entity, and FingerprintKey derives a key
// from a builder's rendered text and bound parameters.
//
// # Backends
//
// Each scope keeps its populated entries itself, so they never expire and
// no other scope can evict them. Misses run through a cache.CacheService,
// which collapses concurrent executions of the same key. Without WithBackend
// each scope owns a small sturdyc client. A backend shared by many scopes is
// safe because every scope prefixes its keys with its own ID, and Close
// removes them.
//
// # Scopes and Context
//
// WithScope and FromContext carry the cache of the current scope through a
// context, and Run wraps the create, attach and close sequence.
//
// A ResultCache must not be shared by concurrent units of work: its at most
// once guarantee is only meaningful inside one scope.
package resultcache
