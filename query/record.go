package query

import (
	"fmt"
	"strings"
)

// Record is one row returned by a Store, keyed by field name.
type Record map[string]any

// RecordsByID indexes records by their identifier.
type RecordsByID map[string]Record

var idFields = []string{"Id", "ID", "id"}

// ID returns the record identifier, or "" when the record has none.
func (r Record) ID() string {
	for _, name := range idFields {
		if v, ok := r[name]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

// Get looks a field up by exact name first, then case-insensitively.
func (r Record) Get(field string) (any, bool) {
	if v, ok := r[field]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, field) {
			return v, true
		}
	}
	return nil, false
}

// String returns the field formatted as text, or "" when absent or nil.
func (r Record) String(field string) string {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return ""
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

// IndexByID builds a RecordsByID from records. Records without an identifier
// are skipped; a later duplicate wins.
func IndexByID(records []Record) RecordsByID {
	out := make(RecordsByID, len(records))
	for _, r := range records {
		if id := r.ID(); id != "" {
			out[id] = r
		}
	}
	return out
}
