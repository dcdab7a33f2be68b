package resultcache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-record-query/cache"
	"github.com/goliatone/go-record-query/query"
)

const scopeNamespace = "scope"

const (
	logMsgHit           = "result cache hit"
	logMsgMiss          = "result cache miss, query executed"
	logMsgRefresh       = "result cache refresh requested"
	logMsgExecuteFailed = "result cache execution failed, key left unpopulated"
	logMsgClosed        = "result cache scope closed"
	logMsgDeleteFailed  = "result cache backend delete failed"

	logAttrScope = "scope"
	logAttrKey   = "key"
	logAttrRows  = "rows"
	logAttrKeys  = "keys"
	logAttrError = "error"
)

// ErrScopeClosed is returned by operations on a ResultCache after Close.
var ErrScopeClosed = errors.New("result cache scope is closed")

// Executor runs a query. *query.Builder satisfies it.
type Executor interface {
	Execute(ctx context.Context) ([]query.Record, error)
}

// Stats counts cache outcomes for one scope.
type Stats struct {
	Hits      int64
	Misses    int64
	Refreshes int64
	Failures  int64
}

// Option configures a ResultCache.
type Option func(*ResultCache) error

// WithBackend runs executions through backend instead of a scope owned
// sturdyc client. One backend may serve many scopes; keys never collide
// because each scope namespaces its keys by scope ID. The backend only sees
// misses: a populated key is answered from the scope itself, so backend
// eviction or expiry never causes a second execution.
func WithBackend(backend cache.CacheService) Option {
	return func(c *ResultCache) error {
		if backend == nil {
			return goerrors.New("result cache backend cannot be nil", goerrors.CategoryBadInput)
		}
		c.backend = backend
		return nil
	}
}

// WithKeySerializer replaces the default key serializer.
func WithKeySerializer(serializer cache.KeySerializer) Option {
	return func(c *ResultCache) error {
		if serializer == nil {
			return goerrors.New("key serializer cannot be nil", goerrors.CategoryBadInput)
		}
		c.serializer = serializer
		return nil
	}
}

// WithLogger sets the logger. Hits, misses and refreshes log at debug level.
func WithLogger(logger query.Logger) Option {
	return func(c *ResultCache) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector MetricsCollector) Option {
	return func(c *ResultCache) error {
		c.metrics = collector
		return nil
	}
}

// WithScopeID overrides the generated scope ID, for example to reuse a
// request or transaction ID in logs.
func WithScopeID(id string) Option {
	return func(c *ResultCache) error {
		if strings.TrimSpace(id) == "" {
			return goerrors.New("scope id cannot be empty", goerrors.CategoryBadInput)
		}
		c.id = id
		return nil
	}
}

// ResultCache memoizes query results for one execution scope. Each key is
// executed at most once until it is refreshed, reset, or the scope closes. A
// failed execution leaves its key unpopulated.
//
// The scope owns its entries. The backend deduplicates concurrent misses and
// holds a copy that Close removes.
type ResultCache struct {
	id         string
	prefix     string
	backend    cache.CacheService
	serializer cache.KeySerializer
	entries    *xsync.MapOf[string, []query.Record]
	logger     query.Logger
	metrics    MetricsCollector
	closed     atomic.Bool

	hits      *xsync.Counter
	misses    *xsync.Counter
	refreshes *xsync.Counter
	failures  *xsync.Counter
}

// New creates a ResultCache with a fresh scope. Without WithBackend the cache
// owns a sturdyc client built from cache.ScopeConfig.
func New(opts ...Option) (*ResultCache, error) {
	c := &ResultCache{
		serializer: cache.NewDefaultKeySerializer(),
		entries:    xsync.NewMapOf[string, []query.Record](),
		hits:       xsync.NewCounter(),
		misses:     xsync.NewCounter(),
		refreshes:  xsync.NewCounter(),
		failures:   xsync.NewCounter(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.id == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "generating scope id")
		}
		c.id = id.String()
	}

	if c.backend == nil {
		backend, err := cache.NewCacheService(cache.ScopeConfig())
		if err != nil {
			return nil, err
		}
		c.backend = backend
	}

	c.prefix = c.serializer.SerializeKey(scopeNamespace, c.id) + cache.KeySeparator
	return c, nil
}

// ID returns the scope ID.
func (c *ResultCache) ID() string {
	return c.id
}

// GetOrExecute returns the records stored under key. When key is not
// populated, or forceRefresh is true, exec runs and its result replaces the
// stored one. Errors from exec are returned unchanged.
func (c *ResultCache) GetOrExecute(ctx context.Context, key string, exec Executor, forceRefresh bool) ([]query.Record, error) {
	if c.closed.Load() {
		return nil, ErrScopeClosed
	}
	if exec == nil {
		return nil, goerrors.New("executor cannot be nil", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"key": key})
	}

	backendKey := c.backendKey(key)

	if forceRefresh {
		c.debug(logMsgRefresh, logAttrKey, key)
		c.refreshes.Inc()
		c.count(metricRefreshes)
		c.entries.Delete(key)
		if err := c.backend.Delete(ctx, backendKey); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "clearing cached result for "+key)
		}
	} else if records, ok := c.entries.Load(key); ok {
		c.hit(key, records)
		return records, nil
	}

	executed := false
	var elapsed time.Duration
	records, err := cache.GetOrFetch(ctx, c.backend, backendKey, func(ctx context.Context) ([]query.Record, error) {
		executed = true
		start := time.Now()
		defer func() { elapsed = time.Since(start) }()
		return exec.Execute(ctx)
	})
	if err != nil {
		c.failures.Inc()
		c.count(metricFailures)
		if c.logger != nil {
			c.logger.Warn(logMsgExecuteFailed, logAttrScope, c.id, logAttrKey, key, logAttrError, err)
		}
		return nil, err
	}

	c.entries.Store(key, records)

	if !executed {
		// another caller in this scope ran the same key concurrently
		c.hit(key, records)
		return records, nil
	}

	c.misses.Inc()
	c.count(metricMisses)
	if c.metrics != nil {
		c.metrics.RecordDuration(metricExecuteDuration, elapsed, c.labels())
	}
	c.debug(logMsgMiss, logAttrKey, key, logAttrRows, len(records))
	return records, nil
}

func (c *ResultCache) hit(key string, records []query.Record) {
	c.hits.Inc()
	c.count(metricHits)
	c.debug(logMsgHit, logAttrKey, key, logAttrRows, len(records))
}

// GetOrExecuteFor caches b under Key(b.EntityType(), discriminator).
func (c *ResultCache) GetOrExecuteFor(ctx context.Context, b *query.Builder, discriminator string, forceRefresh bool) ([]query.Record, error) {
	return c.GetOrExecute(ctx, Key(b.EntityType(), discriminator), b, forceRefresh)
}

// GetOrExecuteQuery caches b under a key derived from its rendered text and
// bound parameters, so identical queries share an entry.
func (c *ResultCache) GetOrExecuteQuery(ctx context.Context, b *query.Builder, forceRefresh bool) ([]query.Record, error) {
	key, err := FingerprintKey(b, c.serializer)
	if err != nil {
		return nil, err
	}
	return c.GetOrExecute(ctx, key, b, forceRefresh)
}

// Populated reports whether key holds a result in this scope.
func (c *ResultCache) Populated(key string) bool {
	_, ok := c.entries.Load(key)
	return ok
}

// Keys lists the populated keys in sorted order.
func (c *ResultCache) Keys() []string {
	keys := make([]string, 0, c.entries.Size())
	c.entries.Range(func(key string, _ []query.Record) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys
}

// Reset drops key so the next GetOrExecute runs the query again.
func (c *ResultCache) Reset(ctx context.Context, key string) error {
	c.entries.Delete(key)
	return c.backend.Delete(ctx, c.backendKey(key))
}

// ResetEntity drops every key whose namespace is entityType, including keys
// built by Key and a bare entity type key. Entity types compare exactly.
func (c *ResultCache) ResetEntity(ctx context.Context, entityType string) error {
	var matched []string
	c.entries.Range(func(key string, _ []query.Record) bool {
		head, _, _ := strings.Cut(key, cache.KeySeparator)
		if head == entityType {
			matched = append(matched, key)
		}
		return true
	})

	return c.invalidate(ctx, matched)
}

// Stats returns the outcome counters of this scope.
func (c *ResultCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Value(),
		Misses:    c.misses.Value(),
		Refreshes: c.refreshes.Value(),
		Failures:  c.failures.Value(),
	}
}

// Close ends the scope and removes all of its entries from the backend.
// Calling Close more than once is a no-op.
func (c *ResultCache) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	keys := c.Keys()
	err := c.invalidate(ctx, keys)
	if prefixErr := c.backend.DeleteByPrefix(ctx, c.prefix); prefixErr != nil {
		err = errors.Join(err, prefixErr)
	}
	c.entries.Clear()

	c.debug(logMsgClosed, logAttrKeys, len(keys))
	return err
}

func (c *ResultCache) invalidate(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	backendKeys := make([]string, len(keys))
	for i, key := range keys {
		c.entries.Delete(key)
		backendKeys[i] = c.backendKey(key)
	}
	if err := c.backend.InvalidateKeys(ctx, backendKeys); err != nil {
		if c.logger != nil {
			c.logger.Error(logMsgDeleteFailed, logAttrScope, c.id, logAttrKeys, len(keys), logAttrError, err)
		}
		return err
	}
	return nil
}

func (c *ResultCache) backendKey(key string) string {
	return c.prefix + key
}

func (c *ResultCache) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, append([]any{logAttrScope, c.id}, args...)...)
	}
}
