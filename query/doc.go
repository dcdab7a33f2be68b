// Package query builds and executes record queries against a Store.
//
// # Overview
//
// A Builder accumulates the clauses of one query and renders them in the
// supported subset:
//
//	SELECT <fields> FROM <entity>
//	  [ WHERE <predicate> ]
//	  [ WITH (USER_MODE | SECURITY_ENFORCED) ]
//	  [ GROUP BY <expr> ]
//	  [ ORDER BY <expr> ]
//	  [ LIMIT <n> ]
//
// Clauses are always rendered in that order, whatever order they were
// configured in. The text is rendered again on every Execute.
//
// # Basic Usage
//
//	records, err := query.New("Account", store, query.WithMetadata(provider)).
//		SelectFieldSet("summary").
//		Where("Id IN :ids").
//		BindParameters(map[string]any{"ids": ids}).
//		WithUserMode().
//		Execute(ctx)
//
// # Access Modes
//
// WithUserMode and WithSecurityEnforced may both be called. User mode is
// rendered when it was requested and either parameters are bound or the
// filter has no :name placeholders. Otherwise security enforcement is
// rendered when requested, and no access clause at all when neither applies.
//
// # Errors
//
// Configuration errors are kept on the builder. Err reports the first one,
// and Render, Execute and First return it without touching the store. Use
// IsMetadataError, IsValidationError and IsExecutionError to classify them.
// Execution errors wrap the store error, so errors.Is reaches it.
package query
