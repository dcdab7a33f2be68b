package bunstore

import (
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open connects to dsn with driver and wraps the pool in a bun.DB using the
// matching dialect.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, goerrors.New("unsupported driver "+driver, goerrors.CategoryBadInput).
			WithTextCode("UNSUPPORTED_DRIVER").
			WithMetadata(map[string]any{"driver": driver})
	}
}

// OpenSQLite opens a SQLite database. In-memory databases are pinned to one
// connection so every query sees the same data.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "opening sqlite database")
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqldb.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// OpenPostgres opens a PostgreSQL database through lib/pq.
func OpenPostgres(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "opening postgres database")
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}
