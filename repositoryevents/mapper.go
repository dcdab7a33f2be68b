package repositoryevents

import (
	"reflect"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-record-query/query"
)

// Mapper converts a model into the record carried by lifecycle events.
// Returning nil drops the model from the event.
type Mapper[T any] func(T) query.Record

// BunMapper maps bun models to records keyed by column name, using the
// table metadata registered with db. Nil models map to nil.
func BunMapper[T any](db *bun.DB) Mapper[T] {
	return func(model T) query.Record {
		v := reflect.ValueOf(model)
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return nil
		}

		table := db.Table(v.Type())
		out := make(query.Record, len(table.Fields))
		for _, f := range table.Fields {
			fv, err := v.FieldByIndexErr(f.Index)
			if err != nil {
				continue
			}
			out[f.Name] = fv.Interface()
		}
		return out
	}
}
