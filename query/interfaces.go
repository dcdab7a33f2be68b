package query

import "context"

// Store executes rendered query text.
//
// Query runs text without parameter binding; the access clause, if any, is
// part of the text. QueryWithBindings resolves :name placeholders from
// bindings and runs under mode.
type Store interface {
	Query(ctx context.Context, text string) ([]Record, error)
	QueryWithBindings(ctx context.Context, text string, bindings map[string]any, mode AccessMode) ([]Record, error)
}

// MetadataProvider resolves field names for an entity type. Implementations
// return errors built with UnknownEntityError and UnknownFieldSetError.
type MetadataProvider interface {
	AllFields(entityType string) ([]string, error)
	FieldSet(entityType, name string) ([]string, error)
}

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
