package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-record-query/query"
)

const (
	logMsgDispatch      = "dispatching lifecycle event"
	logMsgHandlerFailed = "lifecycle handler failed"
	logAttrKind         = "kind"
	logAttrEntity       = "entity_type"
	logAttrNewRecords   = "new_records"
	logAttrOldRecords   = "old_records"
	logAttrError        = "error"
)

// ErrNoHandler is returned by Router.Dispatch for an entity type without a
// registered handler.
var ErrNoHandler = errors.New("no lifecycle handler registered")

// Option configures a Dispatcher or Router.
type Option func(*options)

type options struct {
	logger query.Logger
}

// WithLogger sets the logger. Dispatches log at debug level, handler
// failures at error level.
func WithLogger(logger query.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Dispatcher routes events to the matching method of one Handler.
type Dispatcher struct {
	handler Handler
	logger  query.Logger
}

// NewDispatcher returns a Dispatcher for handler.
func NewDispatcher(handler Handler, opts ...Option) *Dispatcher {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher{handler: handler, logger: o.logger}
}

// Dispatch invokes exactly one handler method chosen by event.Kind and
// returns its error unchanged. An invalid kind is a programming error and
// panics.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if d.logger != nil {
		d.logger.Debug(logMsgDispatch,
			logAttrKind, event.Kind.String(),
			logAttrNewRecords, len(event.New),
			logAttrOldRecords, len(event.Old))
	}

	err := route(ctx, d.handler, event)
	if err != nil && d.logger != nil {
		d.logger.Error(logMsgHandlerFailed, logAttrKind, event.Kind.String(), logAttrError, err)
	}
	return err
}

func route(ctx context.Context, h Handler, e Event) error {
	switch e.Kind {
	case BeforeInsert:
		return h.BeforeInsert(ctx, e.New)
	case AfterInsert:
		return h.AfterInsert(ctx, e.New, e.NewByID)
	case BeforeUpdate:
		return h.BeforeUpdate(ctx, e.New, e.NewByID, e.Old, e.OldByID)
	case AfterUpdate:
		return h.AfterUpdate(ctx, e.New, e.NewByID, e.Old, e.OldByID)
	case BeforeDelete:
		return h.BeforeDelete(ctx, e.Old, e.OldByID)
	case AfterDelete:
		return h.AfterDelete(ctx, e.Old, e.OldByID)
	case AfterUndelete:
		return h.AfterUndelete(ctx, e.New, e.NewByID)
	default:
		panic(fmt.Sprintf("lifecycle: unhandled event kind %d", int(e.Kind)))
	}
}

// Router keeps one Handler per entity type.
type Router struct {
	handlers *xsync.MapOf[string, Handler]
	logger   query.Logger
}

// NewRouter returns an empty Router.
func NewRouter(opts ...Option) *Router {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Router{handlers: xsync.NewMapOf[string, Handler](), logger: o.logger}
}

// Register sets the handler for entityType, replacing any earlier one.
func (r *Router) Register(entityType string, handler Handler) *Router {
	r.handlers.Store(entityType, handler)
	return r
}

// EntityTypes lists the entity types with a handler, sorted.
func (r *Router) EntityTypes() []string {
	var names []string
	r.handlers.Range(func(name string, _ Handler) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Dispatch routes event to the handler registered for entityType.
func (r *Router) Dispatch(ctx context.Context, entityType string, event Event) error {
	handler, ok := r.handlers.Load(entityType)
	if !ok {
		return fmt.Errorf("%w for %s", ErrNoHandler, entityType)
	}
	if r.logger != nil {
		r.logger.Debug(logMsgDispatch, logAttrEntity, entityType, logAttrKind, event.Kind.String())
	}

	err := route(ctx, handler, event)
	if err != nil && r.logger != nil {
		r.logger.Error(logMsgHandlerFailed, logAttrEntity, entityType, logAttrKind, event.Kind.String(), logAttrError, err)
	}
	return err
}

// For binds the router to entityType. The result satisfies the same
// Dispatch(ctx, Event) shape as Dispatcher.
func (r *Router) For(entityType string) EntityRoute {
	return EntityRoute{router: r, entityType: entityType}
}

// EntityRoute dispatches every event to one entity type of a Router.
type EntityRoute struct {
	router     *Router
	entityType string
}

// Dispatch routes event to the handler registered for the bound entity type.
func (e EntityRoute) Dispatch(ctx context.Context, event Event) error {
	return e.router.Dispatch(ctx, e.entityType, event)
}
