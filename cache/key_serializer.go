package cache

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

var keyJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// defaultKeySerializer renders key parts deterministically. Maps are written
// with sorted keys, so bound parameter maps produce the same key regardless
// of insertion order.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer returns the reflection based KeySerializer.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

// SerializeKey joins namespace and the serialized parts with KeySeparator.
func (s defaultKeySerializer) SerializeKey(namespace string, parts ...any) string {
	if len(parts) == 0 {
		return namespace
	}

	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, namespace)
	for _, part := range parts {
		segments = append(segments, s.serialize(part))
	}
	return strings.Join(segments, KeySeparator)
}

func (s defaultKeySerializer) serialize(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case string:
		return t
	case fmt.Stringer:
		if _, isTime := v.(time.Time); !isTime {
			return t.String()
		}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.serialize(rv.Elem().Interface())
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return "bytes:" + strconv.Quote(string(rv.Bytes()))
		}
		return fmt.Sprintf("slice[%d]:{%s}", rv.Len(), s.serializeElems(rv))
	case reflect.Array:
		return fmt.Sprintf("array[%d]:{%s}", rv.Len(), s.serializeElems(rv))
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.serializeMap(rv)
	case reflect.Struct:
		if _, isTime := v.(time.Time); isTime {
			return s.jsonFallback(v)
		}
		return s.serializeStruct(rv)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return fmt.Sprintf("%v", v)
	}

	return s.jsonFallback(v)
}

func (s defaultKeySerializer) serializeElems(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = s.serialize(rv.Index(i).Interface())
	}
	return strings.Join(parts, ",")
}

func (s defaultKeySerializer) serializeMap(rv reflect.Value) string {
	type pair struct{ key, value string }

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{
			key:   s.serialize(iter.Key().Interface()),
			value: s.serialize(iter.Value().Interface()),
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + p.value
	}
	return fmt.Sprintf("map[%d]:{%s}", len(parts), strings.Join(parts, ","))
}

func (s defaultKeySerializer) serializeStruct(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+s.serialize(rv.Field(i).Interface()))
	}
	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

func (s defaultKeySerializer) jsonFallback(v any) string {
	data, err := keyJSON.Marshal(v)
	if err != nil {
		return "fallback:" + reflect.TypeOf(v).String()
	}
	return "json:" + string(data)
}
