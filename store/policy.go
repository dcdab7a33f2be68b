// Package store holds what the query.Store implementations share: the field
// access policy and helpers for turning parsed queries into SQL.
package store

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-record-query/internal/soql"
	"github.com/goliatone/go-record-query/query"
)

// TextCodeInsufficientAccess marks queries rejected by a FieldPolicy.
const TextCodeInsufficientAccess = "INSUFFICIENT_ACCESS"

// FieldPolicy decides what the running user may read. It is consulted for
// SECURITY_ENFORCED and USER_MODE queries only.
type FieldPolicy interface {
	CanReadEntity(entityType string) bool
	CanReadField(entityType, field string) bool
}

// AllowAll grants every entity and field.
type AllowAll struct{}

func (AllowAll) CanReadEntity(string) bool { return true }

func (AllowAll) CanReadField(string, string) bool { return true }

// StaticPolicy denies the listed entities and fields and allows the rest.
type StaticPolicy struct {
	DeniedEntities map[string]bool
	DeniedFields   map[string]map[string]bool
}

// NewStaticPolicy returns an empty StaticPolicy.
func NewStaticPolicy() *StaticPolicy {
	return &StaticPolicy{
		DeniedEntities: make(map[string]bool),
		DeniedFields:   make(map[string]map[string]bool),
	}
}

// DenyEntity hides a whole entity type.
func (p *StaticPolicy) DenyEntity(entityType string) *StaticPolicy {
	p.DeniedEntities[entityType] = true
	return p
}

// DenyFields hides fields of entityType.
func (p *StaticPolicy) DenyFields(entityType string, fields ...string) *StaticPolicy {
	set, ok := p.DeniedFields[entityType]
	if !ok {
		set = make(map[string]bool)
		p.DeniedFields[entityType] = set
	}
	for _, f := range fields {
		set[f] = true
	}
	return p
}

func (p *StaticPolicy) CanReadEntity(entityType string) bool {
	return !p.DeniedEntities[entityType]
}

func (p *StaticPolicy) CanReadField(entityType, field string) bool {
	return !p.DeniedFields[entityType][field]
}

// CheckAccess applies policy to st under mode. AccessSystem always passes.
// Every identifier a select item reads must be readable; USER_MODE also
// requires the entity to be readable.
func CheckAccess(policy FieldPolicy, st soql.Statement, mode query.AccessMode) error {
	if mode == query.AccessSystem || policy == nil {
		return nil
	}
	if mode == query.AccessUserMode && !policy.CanReadEntity(st.Entity) {
		return insufficientAccess("entity "+st.Entity+" is not readable", st.Entity, "")
	}
	for _, field := range st.Fields {
		for _, ref := range FieldRefs(field) {
			if !policy.CanReadField(st.Entity, ref) {
				return insufficientAccess("field "+ref+" on "+st.Entity+" is not readable", st.Entity, ref)
			}
		}
	}
	return nil
}

// FieldRefs returns the identifiers a select item reads, skipping function
// names and quoted literals. "SUM(Amount)" reads Amount.
func FieldRefs(expr string) []string {
	var refs []string
	for i := 0; i < len(expr); {
		c := expr[i]
		if c == '\'' || c == '"' {
			j := strings.IndexByte(expr[i+1:], c)
			if j < 0 {
				break
			}
			i += j + 2
			continue
		}
		if !isIdentStart(c) {
			i++
			continue
		}
		j := i + 1
		for j < len(expr) && (isIdentStart(expr[j]) || isDigit(expr[j]) || expr[j] == '.') {
			j++
		}
		k := j
		for k < len(expr) && expr[k] == ' ' {
			k++
		}
		if k >= len(expr) || expr[k] != '(' {
			refs = append(refs, expr[i:j])
		}
		i = j
	}
	return refs
}

// IsIdent reports whether s is a bare identifier that can be quoted as a
// column or table name.
func IsIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentStart(s[i]) && !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// Rows converts scanned rows into records. Byte slices become strings.
func Rows(rows []map[string]any) []query.Record {
	out := make([]query.Record, len(rows))
	for i, row := range rows {
		r := make(query.Record, len(row))
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			r[k] = v
		}
		out[i] = r
	}
	return out
}

func insufficientAccess(msg, entityType, field string) error {
	meta := map[string]any{"entity_type": entityType}
	if field != "" {
		meta["field"] = field
	}
	return goerrors.New(msg, goerrors.CategoryAuthz).
		WithTextCode(TextCodeInsufficientAccess).
		WithMetadata(meta)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
