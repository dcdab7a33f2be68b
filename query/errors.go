package query

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// Error categories raised by the builder. Validation failures use
// goerrors.CategoryValidation.
const (
	CategoryMetadata  goerrors.Category = "metadata"
	CategoryExecution goerrors.Category = "execution"
)

// Text codes attached to builder errors.
const (
	TextCodeUnknownEntity   = "UNKNOWN_ENTITY"
	TextCodeUnknownFieldSet = "UNKNOWN_FIELD_SET"
	TextCodeNoMetadata      = "NO_METADATA_PROVIDER"
	TextCodeMetadataFailed  = "METADATA_FAILED"
	TextCodeEmptyEntity     = "EMPTY_ENTITY_TYPE"
	TextCodeNegativeLimit   = "NEGATIVE_LIMIT"
	TextCodeNoFields        = "NO_FIELDS"
	TextCodeNoStore         = "NO_STORE"
	TextCodeQueryFailed     = "QUERY_FAILED"
)

// UnknownEntityError reports an entity type the metadata provider does not know.
func UnknownEntityError(entityType string) *goerrors.Error {
	return goerrors.New("unknown entity type "+entityType, CategoryMetadata).
		WithTextCode(TextCodeUnknownEntity).
		WithMetadata(map[string]any{"entity_type": entityType})
}

// UnknownFieldSetError reports a field set missing from an entity.
func UnknownFieldSetError(entityType, fieldSet string) *goerrors.Error {
	return goerrors.New("unknown field set "+fieldSet+" on "+entityType, CategoryMetadata).
		WithTextCode(TextCodeUnknownFieldSet).
		WithMetadata(map[string]any{"entity_type": entityType, "field_set": fieldSet})
}

// IsMetadataError reports whether err is an unknown entity or field set failure.
func IsMetadataError(err error) bool {
	return goerrors.IsCategory(err, CategoryMetadata)
}

// IsValidationError reports whether err was caused by invalid builder arguments.
func IsValidationError(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryValidation)
}

// IsExecutionError reports whether err came back from the store.
func IsExecutionError(err error) bool {
	return goerrors.IsCategory(err, CategoryExecution)
}

func metadataError(entityType string, cause error) error {
	if IsMetadataError(cause) {
		return cause
	}
	e := goerrors.New("metadata lookup failed for "+entityType, CategoryMetadata).
		WithTextCode(TextCodeMetadataFailed).
		WithMetadata(map[string]any{"entity_type": entityType})
	e.Source = cause
	return e
}

func noMetadataError(entityType string) error {
	return goerrors.New("no metadata provider configured for "+entityType, CategoryMetadata).
		WithTextCode(TextCodeNoMetadata)
}

func validateLimit(n int) error {
	err := validation.Validate(n, validation.Min(0))
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, "limit must not be negative").
		WithTextCode(TextCodeNegativeLimit).
		WithMetadata(map[string]any{"limit": n})
}

func validateEntityType(entityType string) error {
	err := validation.Validate(entityType, validation.Required)
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, "entity type is required").
		WithTextCode(TextCodeEmptyEntity)
}

func noFieldsError(entityType string) error {
	return goerrors.New("no fields selected for "+entityType, goerrors.CategoryValidation).
		WithTextCode(TextCodeNoFields).
		WithMetadata(map[string]any{"entity_type": entityType})
}

func noStoreError(entityType string) error {
	return goerrors.New("no store configured for "+entityType, goerrors.CategoryValidation).
		WithTextCode(TextCodeNoStore)
}

func executionError(text string, mode AccessMode, cause error) error {
	e := goerrors.New("query execution failed", CategoryExecution).
		WithTextCode(TextCodeQueryFailed).
		WithMetadata(map[string]any{"query": text, "access_mode": mode.String()})
	e.Source = cause
	return e
}
