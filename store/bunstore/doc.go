// Package bunstore implements query.Store on top of bun.
//
// Rendered queries are parsed back into their clauses and rebuilt as a bun
// select, so the same text runs on SQLite and PostgreSQL. Entity types name
// tables and plain field names are quoted as columns:
//
//	db, _ := bunstore.OpenSQLite(":memory:")
//	store := bunstore.New(db, bunstore.WithPolicy(policy))
//	records, err := query.New("Account", store).SelectFields("Id", "Name").Execute(ctx)
//
// The WITH clause, or the mode passed to QueryWithBindings, selects how the
// FieldPolicy applies. SYSTEM skips it. SECURITY_ENFORCED rejects queries
// that select an unreadable field, and USER_MODE additionally rejects
// unreadable entities.
package bunstore
