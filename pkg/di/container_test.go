package di

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-record-query/cache"
	"github.com/goliatone/go-record-query/lifecycle"
	"github.com/goliatone/go-record-query/metadata"
	"github.com/goliatone/go-record-query/pkg/testsupport"
	"github.com/goliatone/go-record-query/query"
	"github.com/goliatone/go-record-query/resultcache"
	"github.com/goliatone/go-record-query/store/bunstore"
)

func TestNewContainer(t *testing.T) {
	config := DefaultConfig()
	config.Cache = cache.Config{
		Capacity:           1000,
		NumShards:          16,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}

	container, err := NewContainer(config)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}

	if container.CacheService() == nil {
		t.Error("Container should have a non-nil cache service")
	}
	if container.KeySerializer() == nil {
		t.Error("Container should have a non-nil key serializer")
	}
	if container.Logger() == nil {
		t.Error("Container should have a default logger")
	}
	if container.Store() != nil {
		t.Error("Container without a driver should have no store")
	}

	stored := container.Config()
	if stored.Cache.Capacity != config.Cache.Capacity {
		t.Errorf("Expected capacity %d, got %d", config.Cache.Capacity, stored.Cache.Capacity)
	}
	if stored.Cache.TTL != config.Cache.TTL {
		t.Errorf("Expected TTL %v, got %v", config.Cache.TTL, stored.Cache.TTL)
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	config := container.Config()
	defaults := cache.DefaultConfig()
	if config.Cache.Capacity != defaults.Capacity {
		t.Errorf("Expected default capacity %d, got %d", defaults.Capacity, config.Cache.Capacity)
	}
	if config.Log.Level != "info" {
		t.Errorf("Expected default log level info, got %q", config.Log.Level)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Cache.Capacity = 0 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle"; c.Store.DSN = "x" }},
		{"driver without dsn", func(c *Config) { c.Store.Driver = bunstore.DriverSQLite }},
		{"unknown log level", func(c *Config) { c.Log.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			if _, err := NewContainer(config); err == nil {
				t.Error("NewContainer() should fail with invalid config")
			}
		})
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	if container.CacheService() != container.CacheService() {
		t.Error("CacheService() should return the same instance")
	}
	if container.KeySerializer() != container.KeySerializer() {
		t.Error("KeySerializer() should return the same instance")
	}
}

func TestParseConfig(t *testing.T) {
	yamlDoc := `
cache:
  capacity: 500
  num_shards: 8
  ttl: 10m
  eviction_percentage: 5
store:
  driver: sqlite3
  dsn: ":memory:"
log:
  level: debug
`
	config, err := ParseConfig(strings.NewReader(yamlDoc))
	if err != nil {
		t.Fatalf("ParseConfig() failed: %v", err)
	}

	if config.Cache.Capacity != 500 || config.Cache.TTL != 10*time.Minute {
		t.Errorf("Unexpected cache config: %+v", config.Cache)
	}
	if config.Store.Driver != bunstore.DriverSQLite {
		t.Errorf("Expected sqlite3 driver, got %q", config.Store.Driver)
	}
	if config.Log.slogLevel() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", config.Log.slogLevel())
	}

	empty, err := ParseConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseConfig() of empty input failed: %v", err)
	}
	if empty.Cache.Capacity != cache.DefaultConfig().Capacity {
		t.Error("Empty input should keep the defaults")
	}

	if _, err := ParseConfig(strings.NewReader("cache: [")); err == nil {
		t.Error("ParseConfig() should fail on malformed YAML")
	}
}

func TestLoadConfig(t *testing.T) {
	metaPath := testsupport.TempFile(t, "metadata.yaml", []byte(`
entities:
  Account:
    fields: [Id, Name]
    field_sets:
      summary: [Id]
`))
	configPath := testsupport.TempFile(t, "config.yaml", []byte("metadata:\n  file: "+metaPath+"\n"))

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	container, err := NewContainer(config)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}

	text, err := container.Query("Account").SelectFieldSet("summary").Render()
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if text != "SELECT Id FROM Account" {
		t.Errorf("Unexpected query text %q", text)
	}

	if _, err := LoadConfig(configPath + ".missing"); err == nil {
		t.Error("LoadConfig() should fail for a missing file")
	}
}

func TestContainerWithStore(t *testing.T) {
	store := testsupport.NewCountingStore(query.Record{"Id": "001"})
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	container, err := NewContainerWithDefaults(
		WithStore(store),
		WithMetadata(metadata.NewStatic().Register("Account", "Id", "Name")),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	ctx := context.Background()
	err = container.RunScoped(ctx, func(ctx context.Context) error {
		rc, ok := resultcache.FromContext(ctx)
		if !ok {
			t.Fatal("RunScoped() should attach a result cache")
		}
		for i := 0; i < 3; i++ {
			if _, err := rc.GetOrExecute(ctx, "Account", container.Query("Account").SelectAllFields(), false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunScoped() failed: %v", err)
	}

	if store.CallCount() != 1 {
		t.Errorf("Expected 1 store call, got %d", store.CallCount())
	}
	call, _ := store.LastCall()
	if call.Text != "SELECT Id, Name FROM Account" {
		t.Errorf("Unexpected query text %q", call.Text)
	}
	if !strings.Contains(logs.String(), "result cache hit") {
		t.Error("Expected cache hits to be logged")
	}
}

func TestNewEventRepository_RequiresBunStore(t *testing.T) {
	container, err := NewContainerWithDefaults(WithStore(testsupport.NewCountingStore()))
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	base := testsupport.NewMemoryRepository(func(c *Contact) string { return c.ID })
	_, err = NewEventRepository[*Contact](container, base, lifecycle.NopHandler{})
	if !goerrors.IsCategory(err, goerrors.CategoryBadInput) {
		t.Errorf("Expected a bad input error, got %v", err)
	}
}
