package pgstore_test

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-record-query/internal/soql"
	"github.com/goliatone/go-record-query/query"
	"github.com/goliatone/go-record-query/store"
	"github.com/goliatone/go-record-query/store/pgstore"
)

type recordingQuerier struct {
	sql  string
	args []any
	err  error
}

func (q *recordingQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.sql = sql
	q.args = args
	return nil, q.err
}

func build(t *testing.T, text string, bindings map[string]any) (string, []any) {
	t.Helper()
	st, err := soql.Parse(text)
	require.NoError(t, err)
	sqlText, args, err := pgstore.BuildSelect(st, bindings)
	require.NoError(t, err)
	return sqlText, args
}

func TestBuildSelect_Columns(t *testing.T) {
	sqlText, args := build(t, "SELECT Id, Name, SUM(Amount) FROM Opportunity", nil)

	assert.Equal(t, `SELECT "Id", "Name", SUM(Amount) FROM "Opportunity"`, sqlText)
	assert.Empty(t, args)
}

func TestBuildSelect_AllClauses(t *testing.T) {
	sqlText, args := build(t,
		"SELECT StageName, SUM(Amount) FROM Opportunity WHERE Amount > :min WITH SECURITY_ENFORCED GROUP BY StageName ORDER BY StageName DESC NULLS LAST LIMIT 10",
		map[string]any{"min": 1000})

	assert.Contains(t, sqlText, `FROM "Opportunity"`)
	assert.Contains(t, sqlText, "Amount > $1")
	assert.Contains(t, sqlText, `GROUP BY "StageName"`)
	assert.Contains(t, sqlText, `ORDER BY "StageName" DESC NULLS LAST`)
	assert.Contains(t, sqlText, "LIMIT")
	assert.NotContains(t, sqlText, "WITH")
	assert.Equal(t, 1000, args[0])
}

func TestBuildSelect_ListBinding(t *testing.T) {
	sqlText, args := build(t, "SELECT Id FROM Account WHERE Id IN :ids AND Industry = :industry",
		map[string]any{"ids": []string{"001", "002"}, "industry": "Energy"})

	assert.Contains(t, sqlText, "Id IN ($1, $2) AND Industry = $3")
	assert.Equal(t, []any{"001", "002", "Energy"}, args)
}

func TestBuildSelect_UnboundPlaceholder(t *testing.T) {
	st, err := soql.Parse("SELECT Id FROM Account WHERE Name = :name")
	require.NoError(t, err)

	_, _, err = pgstore.BuildSelect(st, nil)
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryBadInput))
}

func TestStore_QueryFailureIsWrapped(t *testing.T) {
	dbErr := errors.New("connection reset")
	db := &recordingQuerier{err: dbErr}
	s := pgstore.New(db)

	_, err := query.New("Account", s).
		SelectFields("Id").
		Where("Id = :id").
		BindParameters(map[string]any{"id": "001"}).
		Execute(context.Background())

	require.Error(t, err)
	assert.True(t, query.IsExecutionError(err))
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, db.sql, `FROM "Account"`)
	assert.Equal(t, []any{"001"}, db.args)
}

func TestStore_PolicyAndLimitZeroSkipDatabase(t *testing.T) {
	db := &recordingQuerier{err: errors.New("must not be called")}
	s := pgstore.New(db, pgstore.WithPolicy(store.NewStaticPolicy().DenyFields("Account", "Revenue")))
	ctx := context.Background()

	_, err := s.Query(ctx, "SELECT Revenue FROM Account WITH SECURITY_ENFORCED")
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryAuthz))

	records, err := s.Query(ctx, "SELECT Id FROM Account LIMIT 0")
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.Empty(t, db.sql)
}
