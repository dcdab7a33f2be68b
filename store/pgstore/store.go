package pgstore

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goliatone/go-record-query/internal/soql"
	"github.com/goliatone/go-record-query/query"
	"github.com/goliatone/go-record-query/store"
)

const dialectPostgres = "postgres"

const (
	logMsgBuildFailed  = "failed to build select query"
	logMsgQueryFailed  = "database query execution failed"
	logMsgQuery        = "executing query"
	logMsgAccessDenied = "query rejected by field policy"

	logAttrEntity = "entity_type"
	logAttrMode   = "access_mode"
	logAttrQuery  = "query"
	logAttrArgs   = "args"
	logAttrError  = "error"
)

// Querier is the part of *pgxpool.Pool the store uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ Querier = (*pgxpool.Pool)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPolicy sets the field policy. The default allows everything.
func WithPolicy(policy store.FieldPolicy) Option {
	return func(s *Store) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger query.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store runs rendered queries on PostgreSQL through pgx. Statements are
// rebuilt with goqu as prepared SQL.
type Store struct {
	db     Querier
	policy store.FieldPolicy
	logger query.Logger
}

var _ query.Store = (*Store)(nil)

// New returns a Store over db.
func New(db Querier, opts ...Option) *Store {
	s := &Store{db: db, policy: store.AllowAll{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a pgx pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "connecting to postgres")
	}
	return pool, nil
}

// Query runs text under the access mode named by its WITH clause.
func (s *Store) Query(ctx context.Context, text string) ([]query.Record, error) {
	st, err := soql.Parse(text)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, st, nil, query.AccessModeFromClause(st.Access))
}

// QueryWithBindings runs text under mode, binding :name placeholders from
// bindings.
func (s *Store) QueryWithBindings(ctx context.Context, text string, bindings map[string]any, mode query.AccessMode) ([]query.Record, error) {
	st, err := soql.Parse(text)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, st, bindings, mode)
}

func (s *Store) run(ctx context.Context, st soql.Statement, bindings map[string]any, mode query.AccessMode) ([]query.Record, error) {
	if err := store.CheckAccess(s.policy, st, mode); err != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgAccessDenied, logAttrEntity, st.Entity, logAttrMode, mode.String(), logAttrError, err)
		}
		return nil, err
	}
	if st.HasLimit && st.Limit == 0 {
		return []query.Record{}, nil
	}

	sqlText, args, err := BuildSelect(st, bindings)
	if err != nil {
		if s.logger != nil {
			s.logger.Error(logMsgBuildFailed, logAttrEntity, st.Entity, logAttrError, err)
		}
		return nil, err
	}

	if s.logger != nil {
		s.logger.Debug(logMsgQuery, logAttrQuery, sqlText, logAttrArgs, len(args), logAttrMode, mode.String())
	}

	rows, err := s.db.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, s.queryFailed(st, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, s.queryFailed(st, err)
	}
	return store.Rows(maps), nil
}

func (s *Store) queryFailed(st soql.Statement, err error) error {
	if s.logger != nil {
		s.logger.Error(logMsgQueryFailed, logAttrEntity, st.Entity, logAttrError, err)
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, "select from "+st.Entity)
}

// BuildSelect turns st into prepared PostgreSQL with $n placeholders.
// A LIMIT of zero is not representable and is left out.
func BuildSelect(st soql.Statement, bindings map[string]any) (string, []any, error) {
	selects := make([]any, len(st.Fields))
	for i, field := range st.Fields {
		selects[i] = column(field)
	}

	ds := goqu.Dialect(dialectPostgres).
		From(goqu.T(st.Entity)).
		Select(selects...).
		Prepared(true)

	if st.Where != "" {
		where, args, err := soql.Bind(st.Where, bindings)
		if err != nil {
			return "", nil, err
		}
		ds = ds.Where(goqu.L(where, args...))
	}

	if groups := soql.SplitList(st.GroupBy); len(groups) > 0 {
		exprs := make([]any, len(groups))
		for i, g := range groups {
			exprs[i] = column(g)
		}
		ds = ds.GroupBy(exprs...)
	}

	if terms := soql.ParseOrderBy(st.OrderBy); len(terms) > 0 {
		orders := make([]exp.OrderedExpression, len(terms))
		for i, term := range terms {
			orders[i] = order(term)
		}
		ds = ds.Order(orders...)
	}

	if st.HasLimit {
		ds = ds.Limit(uint(st.Limit))
	}

	sqlText, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "building select for "+st.Entity)
	}
	return sqlText, args, nil
}

type orderable interface {
	Asc() exp.OrderedExpression
	Desc() exp.OrderedExpression
}

func column(expr string) orderable {
	if store.IsIdent(expr) {
		return goqu.I(expr)
	}
	return goqu.L(expr)
}

func order(term soql.OrderTerm) exp.OrderedExpression {
	c := column(term.Expr)
	o := c.Asc()
	if term.Descending {
		o = c.Desc()
	}
	switch {
	case term.NullsFirst:
		o = o.NullsFirst()
	case term.NullsLast:
		o = o.NullsLast()
	}
	return o
}
