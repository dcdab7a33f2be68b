package di

import (
	"context"
	"log/slog"
	"os"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-record-query/cache"
	"github.com/goliatone/go-record-query/lifecycle"
	"github.com/goliatone/go-record-query/metadata"
	"github.com/goliatone/go-record-query/query"
	"github.com/goliatone/go-record-query/repositoryevents"
	"github.com/goliatone/go-record-query/resultcache"
	"github.com/goliatone/go-record-query/store"
	"github.com/goliatone/go-record-query/store/bunstore"
	"github.com/goliatone/go-record-query/store/pgstore"
)

// Option overrides a component the Container would otherwise build from
// Config.
type Option func(*Container)

// WithStore uses s instead of opening the configured driver.
func WithStore(s query.Store) Option {
	return func(c *Container) {
		c.store = s
	}
}

// WithMetadata uses provider instead of the configured metadata file.
func WithMetadata(provider query.MetadataProvider) Option {
	return func(c *Container) {
		c.metadata = provider
	}
}

// WithModels derives metadata from bun models when the store is bun backed.
func WithModels(models ...any) Option {
	return func(c *Container) {
		c.models = append(c.models, models...)
	}
}

// WithPolicy sets the field policy of the configured store.
func WithPolicy(policy store.FieldPolicy) Option {
	return func(c *Container) {
		c.policy = policy
	}
}

// WithLogger replaces the default text logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// Container wires the query builder, result cache backend, store, metadata
// and lifecycle dispatch for an application. One Container is shared by the
// process; result caches are created per unit of work with NewScope or
// RunScoped.
type Container struct {
	config        Config
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	store         query.Store
	metadata      query.MetadataProvider
	policy        store.FieldPolicy
	logger        *slog.Logger
	models        []any

	db   *bun.DB
	pool *pgxpool.Pool
}

// NewContainer validates config and builds every component.
func NewContainer(config Config, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: config, keySerializer: cache.NewDefaultKeySerializer()}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.Log.slogLevel()}))
	}

	cacheService, err := cache.NewCacheService(config.Cache)
	if err != nil {
		return nil, err
	}
	c.cacheService = cacheService

	if err := c.openStore(); err != nil {
		return nil, err
	}
	if err := c.loadMetadata(); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// NewContainerWithDefaults builds a Container from DefaultConfig.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(DefaultConfig(), opts...)
}

func (c *Container) openStore() error {
	if c.store != nil {
		return nil
	}

	switch c.config.Store.Driver {
	case "":
		return nil
	case DriverPgx:
		pool, err := pgstore.Connect(context.Background(), c.config.Store.DSN)
		if err != nil {
			return err
		}
		c.pool = pool
		c.store = pgstore.New(pool, pgstore.WithPolicy(c.policy), pgstore.WithLogger(c.logger))
	default:
		db, err := bunstore.Open(c.config.Store.Driver, c.config.Store.DSN)
		if err != nil {
			return err
		}
		c.db = db
		c.store = bunstore.New(db, bunstore.WithPolicy(c.policy), bunstore.WithLogger(c.logger))
	}
	return nil
}

func (c *Container) loadMetadata() error {
	if c.metadata != nil {
		return nil
	}

	if len(c.models) > 0 && c.db != nil {
		provider, err := metadata.NewBunProvider(c.db, c.models...)
		if err != nil {
			return err
		}
		c.metadata = provider
		return nil
	}

	if c.config.Metadata.File != "" {
		provider, err := metadata.LoadFile(c.config.Metadata.File)
		if err != nil {
			return err
		}
		c.metadata = provider
	}
	return nil
}

// CacheService returns the shared result cache backend.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the shared key serializer.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Config returns the configuration the Container was built with.
func (c *Container) Config() Config {
	return c.config
}

// Store returns the configured store, or nil when none is set.
func (c *Container) Store() query.Store {
	return c.store
}

// Metadata returns the metadata provider, or nil when none is set.
func (c *Container) Metadata() query.MetadataProvider {
	return c.metadata
}

// Logger returns the logger handed to every component.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// DB returns the bun database when the store is bun backed.
func (c *Container) DB() *bun.DB {
	return c.db
}

// Query starts a builder for entityType wired to the store, metadata and
// logger.
func (c *Container) Query(entityType string) *query.Builder {
	opts := []query.Option{query.WithLogger(c.logger)}
	if c.metadata != nil {
		opts = append(opts, query.WithMetadata(c.metadata))
	}
	return query.New(entityType, c.store, opts...)
}

// NewScope creates a result cache on the shared backend. The caller closes it
// when the unit of work ends.
func (c *Container) NewScope(opts ...resultcache.Option) (*resultcache.ResultCache, error) {
	return resultcache.New(c.scopeOptions(opts)...)
}

// RunScoped runs fn with a fresh result cache attached to its context and
// closes the cache afterwards.
func (c *Container) RunScoped(ctx context.Context, fn func(ctx context.Context) error, opts ...resultcache.Option) error {
	return resultcache.Run(ctx, fn, c.scopeOptions(opts)...)
}

// Dispatcher returns a lifecycle dispatcher for handler that logs through the
// container logger.
func (c *Container) Dispatcher(handler lifecycle.Handler) *lifecycle.Dispatcher {
	return lifecycle.NewDispatcher(handler, lifecycle.WithLogger(c.logger))
}

// Router returns an empty lifecycle router that logs through the container
// logger.
func (c *Container) Router() *lifecycle.Router {
	return lifecycle.NewRouter(lifecycle.WithLogger(c.logger))
}

// NewEventRepository decorates base so its writes raise lifecycle events on
// handler. Models are mapped to records through the container's bun
// database, so the store must be bun backed.
func NewEventRepository[T any](c *Container, base repository.Repository[T], handler lifecycle.Handler) (*repositoryevents.Repository[T], error) {
	if c.db == nil {
		return nil, goerrors.New("event repositories need a bun backed store", goerrors.CategoryBadInput).
			WithTextCode("NO_BUN_DB")
	}
	return repositoryevents.New(
		base,
		c.Dispatcher(handler),
		repositoryevents.BunMapper[T](c.db),
		repositoryevents.WithLogger(c.logger),
	), nil
}

// Close releases the database connections opened by the Container.
func (c *Container) Close() error {
	var err error
	if c.db != nil {
		err = c.db.Close()
	}
	if c.pool != nil {
		c.pool.Close()
	}
	return err
}

func (c *Container) scopeOptions(extra []resultcache.Option) []resultcache.Option {
	opts := []resultcache.Option{
		resultcache.WithBackend(c.cacheService),
		resultcache.WithKeySerializer(c.keySerializer),
		resultcache.WithLogger(c.logger),
	}
	return append(opts, extra...)
}
