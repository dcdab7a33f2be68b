package query

import "github.com/goliatone/go-record-query/internal/soql"

// AccessMode is the permission enforcement level applied by the store.
type AccessMode int

const (
	// AccessSystem runs without field or row level checks.
	AccessSystem AccessMode = iota
	// AccessEnforcedFieldSecurity fails when a selected field is not readable.
	AccessEnforcedFieldSecurity
	// AccessUserMode applies the running user's entity, field and row permissions.
	AccessUserMode
)

func (m AccessMode) String() string {
	switch m {
	case AccessSystem:
		return "SYSTEM"
	case AccessEnforcedFieldSecurity:
		return "ENFORCED_FIELD_SECURITY"
	case AccessUserMode:
		return "USER_MODE"
	default:
		return "UNKNOWN"
	}
}

// Clause returns the keyword rendered after WITH, or "" for AccessSystem.
func (m AccessMode) Clause() string {
	switch m {
	case AccessEnforcedFieldSecurity:
		return soql.AccessSecurityEnforced
	case AccessUserMode:
		return soql.AccessUserMode
	default:
		return ""
	}
}

// AccessModeFromClause maps a WITH keyword back to its mode. Unknown or empty
// keywords map to AccessSystem.
func AccessModeFromClause(clause string) AccessMode {
	switch clause {
	case soql.AccessSecurityEnforced:
		return AccessEnforcedFieldSecurity
	case soql.AccessUserMode:
		return AccessUserMode
	default:
		return AccessSystem
	}
}
