package soql

import (
	"reflect"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// PlaceholderPrefix marks a named bind parameter inside a predicate.
const PlaceholderPrefix = ':'

// placeholder is a single :name occurrence, with byte offsets into the scanned text.
type placeholder struct {
	name  string
	start int // offset of the colon
	end   int // offset just past the name
}

// Placeholders returns the names of every :name marker in text, in order of
// appearance. Markers inside quoted literals are ignored.
func Placeholders(text string) []string {
	found := scanPlaceholders(text)
	if len(found) == 0 {
		return nil
	}
	names := make([]string, len(found))
	for i, p := range found {
		names[i] = p.name
	}
	return names
}

// HasPlaceholder reports whether text contains at least one :name marker.
func HasPlaceholder(text string) bool {
	return len(scanPlaceholders(text)) > 0
}

func scanPlaceholders(text string) []placeholder {
	var out []placeholder
	var quote byte

	for i := 0; i < len(text); i++ {
		c := text[i]

		if quote != 0 {
			switch {
			case c == '\\' && i+1 < len(text):
				i++
			case c == quote && i+1 < len(text) && text[i+1] == quote:
				i++
			case c == quote:
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			quote = c
		case c == PlaceholderPrefix:
			if i > 0 && (isIdentPart(text[i-1]) || text[i-1] == PlaceholderPrefix) {
				continue
			}
			if i+1 >= len(text) || !isIdentStart(text[i+1]) {
				continue
			}
			j := i + 1
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			out = append(out, placeholder{name: text[i+1 : j], start: i, end: j})
			i = j - 1
		}
	}
	return out
}

// Bind rewrites every :name marker in expr into positional ? markers and
// returns the arguments in marker order. Slice and array values expand to a
// parenthesised list of markers, an empty list to (NULL). A list marker that
// is already wrapped in parentheses is not wrapped again.
func Bind(expr string, bindings map[string]any) (string, []any, error) {
	found := scanPlaceholders(expr)
	if len(found) == 0 {
		return expr, nil, nil
	}

	var b strings.Builder
	b.Grow(len(expr) + 8*len(found))
	args := make([]any, 0, len(found))
	last := 0

	for _, p := range found {
		value, ok := bindings[p.name]
		if !ok {
			return "", nil, goerrors.New("no value bound for placeholder :"+p.name, goerrors.CategoryBadInput).
				WithTextCode("UNBOUND_PLACEHOLDER").
				WithMetadata(map[string]any{"placeholder": p.name})
		}

		b.WriteString(expr[last:p.start])
		last = p.end

		items, isList := listItems(value)
		if !isList {
			b.WriteByte('?')
			args = append(args, value)
			continue
		}

		wrapped := prevNonSpace(expr, p.start) == '(' && nextNonSpace(expr, p.end) == ')'
		if !wrapped {
			b.WriteByte('(')
		}
		if len(items) == 0 {
			b.WriteString("NULL")
		} else {
			b.WriteString(strings.Repeat("?, ", len(items)-1))
			b.WriteByte('?')
			args = append(args, items...)
		}
		if !wrapped {
			b.WriteByte(')')
		}
	}
	b.WriteString(expr[last:])

	return b.String(), args, nil
}

func listItems(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
	case reflect.Array:
	default:
		return nil, false
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func prevNonSpace(s string, i int) byte {
	for i--; i >= 0; i-- {
		if s[i] != ' ' && s[i] != '\t' && s[i] != '\n' {
			return s[i]
		}
	}
	return 0
}

func nextNonSpace(s string, i int) byte {
	for ; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' && s[i] != '\n' {
			return s[i]
		}
	}
	return 0
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
