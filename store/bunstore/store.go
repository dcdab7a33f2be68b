package bunstore

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-record-query/internal/soql"
	"github.com/goliatone/go-record-query/query"
	"github.com/goliatone/go-record-query/store"
)

const (
	logMsgQuery        = "executing query"
	logMsgQueryFailed  = "query failed"
	logMsgAccessDenied = "query rejected by field policy"

	logAttrEntity = "entity_type"
	logAttrMode   = "access_mode"
	logAttrQuery  = "query"
	logAttrError  = "error"
)

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

// Store runs rendered queries against a bun database. Entity types map to
// table names and field names to column names.
type Store struct {
	db     *bun.DB
	policy store.FieldPolicy
	logger query.Logger
}

var _ query.Store = (*Store)(nil)

// New returns a Store over db.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{db: db, policy: store.AllowAll{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Query runs text under the access mode named by its WITH clause. Any
// placeholder in text fails because nothing is bound.
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

	q, err := s.selectQuery(st, bindings)
	if err != nil {
		return nil, err
	}
	// bun drops LIMIT 0 from the statement.
	if st.HasLimit && st.Limit == 0 {
		return []query.Record{}, nil
	}

	if s.logger != nil {
		s.logger.Debug(logMsgQuery, logAttrEntity, st.Entity, logAttrMode, mode.String(), logAttrQuery, q.String())
	}

	var rows []map[string]interface{}
	if err := q.Scan(ctx, &rows); err != nil {
		if s.logger != nil {
			s.logger.Error(logMsgQueryFailed, logAttrEntity, st.Entity, logAttrError, err)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "select from "+st.Entity)
	}

	return store.Rows(rows), nil
}

func (s *Store) selectQuery(st soql.Statement, bindings map[string]any) (*bun.SelectQuery, error) {
	q := s.db.NewSelect().TableExpr("?", bun.Ident(st.Entity))

	for _, field := range st.Fields {
		if store.IsIdent(field) {
			q = q.ColumnExpr("?", bun.Ident(field))
		} else {
			q = q.ColumnExpr(field)
		}
	}

	if st.Where != "" {
		where, args, err := soql.Bind(st.Where, bindings)
		if err != nil {
			return nil, err
		}
		q = q.Where(where, args...)
	}

	for _, g := range soql.SplitList(st.GroupBy) {
		q = q.GroupExpr(g)
	}

	for _, term := range soql.ParseOrderBy(st.OrderBy) {
		q = q.OrderExpr(orderExpr(term))
	}

	if st.HasLimit {
		q = q.Limit(st.Limit)
	}
	return q, nil
}

func orderExpr(term soql.OrderTerm) string {
	var b strings.Builder
	if store.IsIdent(term.Expr) {
		b.WriteString(`"` + term.Expr + `"`)
	} else {
		b.WriteString(term.Expr)
	}
	if term.Descending {
		b.WriteString(" DESC")
	} else {
		b.WriteString(" ASC")
	}
	switch {
	case term.NullsFirst:
		b.WriteString(" NULLS FIRST")
	case term.NullsLast:
		b.WriteString(" NULLS LAST")
	}
	return b.String()
}
