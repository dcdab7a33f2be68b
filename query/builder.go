package query

import (
	"context"
	"maps"
	"strconv"
	"strings"

	"github.com/goliatone/go-record-query/internal/soql"
)

const (
	logMsgRendered       = "query rendered"
	logMsgExecuteBound   = "executing query with bindings"
	logMsgExecuteUnbound = "executing query"
	logMsgExecuteFailed  = "query execution failed"
	logMsgExecuted       = "query executed"

	logAttrEntity   = "entity_type"
	logAttrQuery    = "query"
	logAttrMode     = "access_mode"
	logAttrBindings = "bindings"
	logAttrRows     = "rows"
	logAttrError    = "error"
)

// Option configures a Builder.
type Option func(*Builder)

// WithMetadata sets the provider used by SelectFieldSet and SelectAllFields.
func WithMetadata(provider MetadataProvider) Option {
	return func(b *Builder) {
		b.metadata = provider
	}
}

// WithLogger sets the logger. Rendered text and the execution route are logged
// at debug level, store failures at error level.
func WithLogger(logger Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// Builder accumulates the clauses of one record query. Configuration methods
// return the same Builder so calls can be chained. The first configuration
// error is kept and returned by Err, Render, Execute and First.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	entityType string
	store      Store
	metadata   MetadataProvider
	logger     Logger

	fields           []string
	where            string
	groupBy          string
	orderBy          string
	limit            int
	hasLimit         bool
	securityEnforced bool
	userMode         bool
	bindings         map[string]any

	err error
}

// New creates a Builder targeting entityType.
func New(entityType string, store Store, opts ...Option) *Builder {
	b := &Builder{
		entityType: entityType,
		store:      store,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setErr(validateEntityType(entityType))
	return b
}

// EntityType returns the target entity type.
func (b *Builder) EntityType() string {
	return b.entityType
}

// Fields returns a copy of the selected fields in selection order.
func (b *Builder) Fields() []string {
	return append([]string(nil), b.fields...)
}

// Bindings returns a copy of the bound parameters.
func (b *Builder) Bindings() map[string]any {
	return maps.Clone(b.bindings)
}

// Err returns the first error recorded by a configuration call.
func (b *Builder) Err() error {
	return b.err
}

// SelectFields appends fields to the selection. Duplicates are kept.
func (b *Builder) SelectFields(fields ...string) *Builder {
	b.fields = append(b.fields, fields...)
	return b
}

// SelectFieldSet appends the fields of the named field set.
func (b *Builder) SelectFieldSet(name string) *Builder {
	if b.metadata == nil {
		b.setErr(noMetadataError(b.entityType))
		return b
	}
	fields, err := b.metadata.FieldSet(b.entityType, name)
	if err != nil {
		b.setErr(metadataError(b.entityType, err))
		return b
	}
	return b.SelectFields(fields...)
}

// SelectAllFields appends every field of the entity.
func (b *Builder) SelectAllFields() *Builder {
	if b.metadata == nil {
		b.setErr(noMetadataError(b.entityType))
		return b
	}
	fields, err := b.metadata.AllFields(b.entityType)
	if err != nil {
		b.setErr(metadataError(b.entityType, err))
		return b
	}
	return b.SelectFields(fields...)
}

// Where sets the filter predicate. It may reference :name placeholders.
func (b *Builder) Where(expr string) *Builder {
	b.where = strings.TrimSpace(expr)
	return b
}

// GroupBy sets the grouping expression.
func (b *Builder) GroupBy(expr string) *Builder {
	b.groupBy = strings.TrimSpace(expr)
	return b
}

// OrderBy sets the ordering expression.
func (b *Builder) OrderBy(expr string) *Builder {
	b.orderBy = strings.TrimSpace(expr)
	return b
}

// WithLimit sets the row limit. A negative n records a validation error and
// leaves the previous limit in place.
func (b *Builder) WithLimit(n int) *Builder {
	if err := validateLimit(n); err != nil {
		b.setErr(err)
		return b
	}
	b.limit = n
	b.hasLimit = true
	return b
}

// WithSecurityEnforced requests field level security enforcement.
func (b *Builder) WithSecurityEnforced() *Builder {
	b.securityEnforced = true
	return b
}

// WithUserMode requests user mode access.
func (b *Builder) WithUserMode() *Builder {
	b.userMode = true
	return b
}

// BindParameters replaces the bound parameters with a copy of params.
func (b *Builder) BindParameters(params map[string]any) *Builder {
	b.bindings = maps.Clone(params)
	return b
}

// ResolvedAccessMode returns the mode Render and Execute will use. User mode
// wins when it was requested and either parameters are bound or the filter
// has no placeholders; security enforcement applies otherwise when requested.
func (b *Builder) ResolvedAccessMode() AccessMode {
	switch {
	case b.userMode && (len(b.bindings) > 0 || !soql.HasPlaceholder(b.where)):
		return AccessUserMode
	case b.securityEnforced:
		return AccessEnforcedFieldSecurity
	default:
		return AccessSystem
	}
}

// Render produces the query text from the current state. Clauses always come
// out as FROM, WHERE, access clause, GROUP BY, ORDER BY, LIMIT.
func (b *Builder) Render() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if len(b.fields) == 0 {
		return "", noFieldsError(b.entityType)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.fields, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.entityType)

	if b.where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(b.where)
	}
	if clause := b.ResolvedAccessMode().Clause(); clause != "" {
		sb.WriteString(" WITH ")
		sb.WriteString(clause)
	}
	if b.groupBy != "" {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(b.groupBy)
	}
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
	}
	if b.hasLimit {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}

	return sb.String(), nil
}

// Execute renders the query and runs it. The bound path is taken when
// parameters are bound or the text contains a placeholder. Store failures are
// returned as execution errors wrapping the store error.
func (b *Builder) Execute(ctx context.Context) ([]Record, error) {
	text, err := b.Render()
	if err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, noStoreError(b.entityType)
	}

	mode := b.ResolvedAccessMode()
	b.debug(logMsgRendered, logAttrEntity, b.entityType, logAttrQuery, text, logAttrMode, mode.String())

	var records []Record
	if len(b.bindings) > 0 || soql.HasPlaceholder(text) {
		b.debug(logMsgExecuteBound, logAttrEntity, b.entityType, logAttrBindings, len(b.bindings))
		records, err = b.store.QueryWithBindings(ctx, text, b.Bindings(), mode)
	} else {
		b.debug(logMsgExecuteUnbound, logAttrEntity, b.entityType)
		records, err = b.store.Query(ctx, text)
	}
	if err != nil {
		if b.logger != nil {
			b.logger.Error(logMsgExecuteFailed, logAttrEntity, b.entityType, logAttrQuery, text, logAttrError, err)
		}
		return nil, executionError(text, mode, err)
	}

	b.debug(logMsgExecuted, logAttrEntity, b.entityType, logAttrRows, len(records))
	return records, nil
}

// First limits the query to one row and executes it. It returns false with a
// nil error when nothing matched.
func (b *Builder) First(ctx context.Context) (Record, bool, error) {
	records, err := b.WithLimit(1).Execute(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}

// Clone returns an independent copy sharing the store, metadata provider and
// logger.
func (b *Builder) Clone() *Builder {
	c := *b
	c.fields = b.Fields()
	c.bindings = b.Bindings()
	return &c
}

func (b *Builder) setErr(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}

func (b *Builder) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}
