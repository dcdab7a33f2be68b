package resultcache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-record-query/cache"
	"github.com/goliatone/go-record-query/pkg/testsupport"
	"github.com/goliatone/go-record-query/query"
	"github.com/goliatone/go-record-query/resultcache"
)

func newCache(t *testing.T, opts ...resultcache.Option) *resultcache.ResultCache {
	t.Helper()
	rc, err := resultcache.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close(context.Background()) })
	return rc
}

func accountQuery(store query.Store) *query.Builder {
	return query.New("Account", store).SelectFields("Id", "Name")
}

func TestGetOrExecute_RunsOncePerKey(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewCountingStore(query.Record{"Id": "001", "Name": "Acme"})
	rc := newCache(t)

	first, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)
	second, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)

	assert.Equal(t, 1, store.CallCount())
	require.Len(t, second, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, "001", second[0].ID())
	assert.True(t, rc.Populated("Account"))
	assert.Equal(t, resultcache.Stats{Hits: 1, Misses: 1}, rc.Stats())
}

func TestGetOrExecute_ForceRefreshExecutesAgain(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	rc := newCache(t)

	_, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)

	store.SetRecords(query.Record{"Id": "001"}, query.Record{"Id": "002"})
	refreshed, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), true)
	require.NoError(t, err)
	assert.Len(t, refreshed, 2)
	assert.Equal(t, 2, store.CallCount())

	cached, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)
	assert.Len(t, cached, 2)
	assert.Equal(t, 2, store.CallCount())
	assert.Equal(t, int64(1), rc.Stats().Refreshes)
}

func TestGetOrExecute_FailureLeavesKeyUnpopulated(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("governor limit exceeded")
	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	store.SetError(storeErr)
	rc := newCache(t)

	_, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.True(t, query.IsExecutionError(err))
	assert.False(t, rc.Populated("Account"))

	store.SetError(nil)
	records, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, store.CallCount())
	assert.Equal(t, int64(1), rc.Stats().Failures)
}

func TestGetOrExecute_EmptyResultIsCached(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewCountingStore()
	rc := newCache(t)

	for i := 0; i < 3; i++ {
		records, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
		require.NoError(t, err)
		assert.Empty(t, records)
	}
	assert.Equal(t, 1, store.CallCount())
}

func TestGetOrExecute_BuilderErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewCountingStore()
	rc := newCache(t)

	_, err := rc.GetOrExecute(ctx, "Account", query.New("Account", store).WithLimit(-1), false)
	require.Error(t, err)
	assert.True(t, query.IsValidationError(err))
	assert.False(t, rc.Populated("Account"))
	assert.Equal(t, 0, store.CallCount())
}

func TestGetOrExecute_NilExecutor(t *testing.T) {
	rc := newCache(t)
	_, err := rc.GetOrExecute(context.Background(), "Account", nil, false)
	assert.Error(t, err)
}

func TestGetOrExecuteFor_Discriminators(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	store.SetResult("SELECT Id, Name FROM Account WHERE Industry = 'Energy'", query.Record{"Id": "002"}, query.Record{"Id": "003"})
	rc := newCache(t)

	recent, err := rc.GetOrExecuteFor(ctx, accountQuery(store), "recent", false)
	require.NoError(t, err)
	energy, err := rc.GetOrExecuteFor(ctx, accountQuery(store).Where("Industry = 'Energy'"), "energy", false)
	require.NoError(t, err)
	_, err = rc.GetOrExecuteFor(ctx, accountQuery(store), "recent", false)
	require.NoError(t, err)

	assert.Len(t, recent, 1)
	assert.Len(t, energy, 2)
	assert.Equal(t, 2, store.CallCount())
	assert.Equal(t, []string{"Account::energy", "Account::recent"}, rc.Keys())
}

func TestGetOrExecuteQuery_Fingerprint(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	rc := newCache(t)

	byIDs := func(ids ...string) *query.Builder {
		return accountQuery(store).Where("Id IN :ids").BindParameters(map[string]any{"ids": ids})
	}

	_, err := rc.GetOrExecuteQuery(ctx, byIDs("001", "002"), false)
	require.NoError(t, err)
	_, err = rc.GetOrExecuteQuery(ctx, byIDs("001", "002"), false)
	require.NoError(t, err)
	_, err = rc.GetOrExecuteQuery(ctx, byIDs("003"), false)
	require.NoError(t, err)

	assert.Equal(t, 2, store.CallCount())
	assert.Len(t, rc.Keys(), 2)
}

func TestFingerprintKey(t *testing.T) {
	a := query.New("Account", nil).SelectFields("Id").Where("Id = :id").BindParameters(map[string]any{"id": 1})
	b := query.New("Account", nil).SelectFields("Id").Where("Id = :id").BindParameters(map[string]any{"id": 1})
	c := query.New("Account", nil).SelectFields("Id").Where("Id = :id").BindParameters(map[string]any{"id": 2})

	ka, err := resultcache.FingerprintKey(a, nil)
	require.NoError(t, err)
	kb, err := resultcache.FingerprintKey(b, nil)
	require.NoError(t, err)
	kc, err := resultcache.FingerprintKey(c, nil)
	require.NoError(t, err)

	assert.Equal(t, ka, kb)
	assert.NotEqual(t, ka, kc)
	assert.Contains(t, ka, "Account::q")

	_, err = resultcache.FingerprintKey(query.New("Account", nil), nil)
	assert.True(t, query.IsValidationError(err))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "Account", resultcache.Key("Account", ""))
	assert.Equal(t, "OpportunityLineItem::open", resultcache.Key("OpportunityLineItem", "open"))
}

func TestKey_EntityTypesAreNotFolded(t *testing.T) {
	keys := map[string]bool{}
	for _, entity := range []string{"OrderItem", "Order_Item", "ORDER_ITEM", "orderitem"} {
		keys[resultcache.Key(entity, "")] = true
		keys[resultcache.Key(entity, "open")] = true
	}
	assert.Len(t, keys, 8)

	ctx := context.Background()
	rc := newCache(t)
	first := testsupport.NewCountingStore(query.Record{"Id": "1"})
	second := testsupport.NewCountingStore(query.Record{"Id": "2"}, query.Record{"Id": "3"})

	_, err := rc.GetOrExecuteFor(ctx, query.New("OrderItem", first).SelectFields("Id"), "", false)
	require.NoError(t, err)
	records, err := rc.GetOrExecuteFor(ctx, query.New("Order_Item", second).SelectFields("Id"), "", false)
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, 1, second.CallCount())

	require.NoError(t, rc.ResetEntity(ctx, "OrderItem"))
	assert.Equal(t, []string{"Order_Item"}, rc.Keys())
}

func TestResetAndResetEntity(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	rc := newCache(t)

	for _, key := range []string{"Account", resultcache.Key("Account", "recent"), resultcache.Key("Contact", "")} {
		_, err := rc.GetOrExecute(ctx, key, accountQuery(store), false)
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.CallCount())

	require.NoError(t, rc.ResetEntity(ctx, "Account"))
	assert.Equal(t, []string{"Contact"}, rc.Keys())

	require.NoError(t, rc.Reset(ctx, "Contact"))
	assert.Empty(t, rc.Keys())

	_, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)
	assert.Equal(t, 4, store.CallCount())
}

func TestSharedBackend_ScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	backend, err := cache.NewCacheService(cache.DefaultConfig())
	require.NoError(t, err)

	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	first := newCache(t, resultcache.WithBackend(backend))
	second := newCache(t, resultcache.WithBackend(backend))
	require.NotEqual(t, first.ID(), second.ID())

	_, err = first.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)
	_, err = second.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)

	assert.Equal(t, 2, store.CallCount())
}

func TestGetOrExecute_PopulatedKeysOutliveBackendCapacity(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	rc := newCache(t)

	const numKeys = 1500
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < numKeys; i++ {
			_, err := rc.GetOrExecute(ctx, fmt.Sprintf("k%d", i), accountQuery(store), false)
			require.NoError(t, err)
		}
	}

	assert.Equal(t, numKeys, store.CallCount())
	assert.True(t, rc.Populated("k0"))
	assert.Equal(t, int64(numKeys), rc.Stats().Hits)
}

func TestSharedBackend_OtherScopesCannotEvict(t *testing.T) {
	ctx := context.Background()
	backend, err := cache.NewCacheService(cache.Config{
		Capacity:           16,
		NumShards:          1,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	})
	require.NoError(t, err)

	accounts := testsupport.NewCountingStore(query.Record{"Id": "001"})
	other := testsupport.NewCountingStore(query.Record{"Id": "002"})
	first := newCache(t, resultcache.WithBackend(backend))
	second := newCache(t, resultcache.WithBackend(backend))

	_, err = first.GetOrExecute(ctx, "Account", accountQuery(accounts), false)
	require.NoError(t, err)
	for i := 0; i < 500; i++ {
		_, err := second.GetOrExecute(ctx, fmt.Sprintf("k%d", i), accountQuery(other), false)
		require.NoError(t, err)
	}
	records, err := first.GetOrExecute(ctx, "Account", accountQuery(accounts), false)
	require.NoError(t, err)

	assert.Equal(t, 1, accounts.CallCount())
	assert.Equal(t, "001", records[0].ID())
}

func TestGetOrExecute_BackendExpiryDoesNotReexecute(t *testing.T) {
	ctx := context.Background()
	backend, err := cache.NewCacheService(cache.Config{
		Capacity:           64,
		NumShards:          1,
		TTL:                time.Millisecond,
		EvictionPercentage: 10,
	})
	require.NoError(t, err)

	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	rc := newCache(t, resultcache.WithBackend(backend))

	_, err = rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)

	assert.Equal(t, 1, store.CallCount())
}

// forgetfulBackend stores nothing, so every fetch reaches the executor.
type forgetfulBackend struct{}

func (forgetfulBackend) GetOrFetch(ctx context.Context, _ string, fetchFn any) (any, error) {
	return fetchFn.(cache.FetchFn[[]query.Record])(ctx)
}

func (forgetfulBackend) Delete(context.Context, string) error { return nil }

func (forgetfulBackend) DeleteByPrefix(context.Context, string) error { return nil }

func (forgetfulBackend) InvalidateKeys(context.Context, []string) error { return nil }

func TestGetOrExecute_HitsNeverReachBackend(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	rc := newCache(t, resultcache.WithBackend(forgetfulBackend{}))

	for i := 0; i < 3; i++ {
		_, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.CallCount())

	_, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), true)
	require.NoError(t, err)
	assert.Equal(t, 2, store.CallCount())
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	backend, err := cache.NewCacheService(cache.DefaultConfig())
	require.NoError(t, err)
	store := testsupport.NewCountingStore(query.Record{"Id": "001"})

	rc, err := resultcache.New(resultcache.WithBackend(backend), resultcache.WithScopeID("batch-42"))
	require.NoError(t, err)
	assert.Equal(t, "batch-42", rc.ID())

	_, err = rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)

	require.NoError(t, rc.Close(ctx))
	require.NoError(t, rc.Close(ctx))
	assert.Empty(t, rc.Keys())

	_, err = rc.GetOrExecute(ctx, "Account", accountQuery(store), false)
	assert.ErrorIs(t, err, resultcache.ErrScopeClosed)

	reopened, err := resultcache.New(resultcache.WithBackend(backend), resultcache.WithScopeID("batch-42"))
	require.NoError(t, err)
	_, err = reopened.GetOrExecute(ctx, "Account", accountQuery(store), false)
	require.NoError(t, err)
	assert.Equal(t, 2, store.CallCount())
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := resultcache.New(resultcache.WithBackend(nil))
	assert.Error(t, err)

	_, err = resultcache.New(resultcache.WithScopeID(" "))
	assert.Error(t, err)

	_, err = resultcache.New(resultcache.WithKeySerializer(nil))
	assert.Error(t, err)
}

type metricsSpy struct {
	mu        sync.Mutex
	counters  map[string]int
	durations int
}

func (m *metricsSpy) IncrementCounter(metric string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int)
	}
	m.counters[metric]++
}

func (m *metricsSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	spy := &metricsSpy{}
	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	rc := newCache(t, resultcache.WithMetrics(spy))

	for _, refresh := range []bool{false, false, true} {
		_, err := rc.GetOrExecute(ctx, "Account", accountQuery(store), refresh)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, spy.counters["resultcache_hits_total"])
	assert.Equal(t, 2, spy.counters["resultcache_misses_total"])
	assert.Equal(t, 1, spy.counters["resultcache_refreshes_total"])
	assert.Equal(t, 2, spy.durations)
}
