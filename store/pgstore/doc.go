// Package pgstore implements query.Store for PostgreSQL using pgx.
//
// Rendered queries are parsed and rebuilt with goqu as prepared statements,
// so bound values travel as $n arguments rather than inline text. Any
// Querier works; *pgxpool.Pool is the usual one:
//
//	pool, err := pgstore.Connect(ctx, dsn)
//	s := pgstore.New(pool, pgstore.WithLogger(slog.Default()))
package pgstore
