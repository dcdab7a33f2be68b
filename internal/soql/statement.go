package soql

import (
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Access clause keywords.
const (
	AccessUserMode         = "USER_MODE"
	AccessSecurityEnforced = "SECURITY_ENFORCED"
)

const textCodeMalformed = "MALFORMED_QUERY"

// Statement is the parsed form of a rendered query in the supported subset:
//
//	SELECT f1, f2 FROM Entity [WHERE p] [WITH USER_MODE|SECURITY_ENFORCED]
//	  [GROUP BY g] [ORDER BY o] [LIMIT n]
type Statement struct {
	Fields   []string
	Entity   string
	Where    string
	Access   string
	GroupBy  string
	OrderBy  string
	Limit    int
	HasLimit bool
}

// OrderTerm is one comma separated item of an ORDER BY clause.
type OrderTerm struct {
	Expr       string
	Descending bool
	NullsFirst bool
	NullsLast  bool
}

type clause struct {
	keyword string
	pos     int
}

var clauseOrder = []string{"WHERE", "WITH", "GROUP BY", "ORDER BY", "LIMIT"}

// Parse splits a rendered query into its clauses. Clauses must appear in the
// canonical order; anything else is rejected.
func Parse(text string) (Statement, error) {
	var st Statement

	text = strings.TrimSpace(text)
	if !hasPrefixFold(text, "SELECT ") {
		return st, malformed("query must start with SELECT", text)
	}

	from := indexKeyword(text, "FROM", len("SELECT "))
	if from < 0 {
		return st, malformed("missing FROM clause", text)
	}

	st.Fields = SplitList(text[len("SELECT "):from])
	if len(st.Fields) == 0 {
		return st, malformed("no fields selected", text)
	}

	var found []clause
	cursor := from + len("FROM")
	for _, kw := range clauseOrder {
		pos := indexClause(text, kw, cursor)
		if pos < 0 {
			continue
		}
		for _, earlier := range found {
			if earlier.pos > pos {
				return st, malformed(kw+" clause out of order", text)
			}
		}
		found = append(found, clause{keyword: kw, pos: pos})
	}

	entityEnd := len(text)
	if len(found) > 0 {
		entityEnd = found[0].pos
	}
	st.Entity = strings.TrimSpace(text[from+len("FROM") : entityEnd])
	if st.Entity == "" || strings.ContainsAny(st.Entity, " \t\n,") {
		return st, malformed("invalid entity name", text)
	}

	for i, c := range found {
		end := len(text)
		if i+1 < len(found) {
			end = found[i+1].pos
		}
		body := strings.TrimSpace(text[c.pos+len(c.keyword) : end])
		if body == "" {
			return st, malformed("empty "+c.keyword+" clause", text)
		}

		switch c.keyword {
		case "WHERE":
			st.Where = body
		case "WITH":
			mode := strings.ToUpper(body)
			if mode != AccessUserMode && mode != AccessSecurityEnforced {
				return st, malformed("unsupported access clause WITH "+body, text)
			}
			st.Access = mode
		case "GROUP BY":
			st.GroupBy = body
		case "ORDER BY":
			st.OrderBy = body
		case "LIMIT":
			n, err := strconv.Atoi(body)
			if err != nil || n < 0 {
				return st, malformed("LIMIT must be a non-negative integer", text)
			}
			st.Limit = n
			st.HasLimit = true
		}
	}

	return st, nil
}

// SplitList splits a comma separated list at the top level, ignoring commas
// nested in parentheses or quoted literals. Empty items are dropped.
func SplitList(s string) []string {
	var out []string
	depth := 0
	var quote byte
	start := 0

	flush := func(end int) {
		if item := strings.TrimSpace(s[start:end]); item != "" {
			out = append(out, item)
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return out
}

// ParseOrderBy splits an ORDER BY body into terms.
func ParseOrderBy(s string) []OrderTerm {
	items := SplitList(s)
	terms := make([]OrderTerm, 0, len(items))
	for _, item := range items {
		term := OrderTerm{}
		upper := strings.ToUpper(item)
		switch {
		case strings.HasSuffix(upper, " NULLS FIRST"):
			term.NullsFirst = true
			item = strings.TrimSpace(item[:len(item)-len(" NULLS FIRST")])
		case strings.HasSuffix(upper, " NULLS LAST"):
			term.NullsLast = true
			item = strings.TrimSpace(item[:len(item)-len(" NULLS LAST")])
		}
		upper = strings.ToUpper(item)
		switch {
		case strings.HasSuffix(upper, " DESC"):
			term.Descending = true
			item = strings.TrimSpace(item[:len(item)-len(" DESC")])
		case strings.HasSuffix(upper, " ASC"):
			item = strings.TrimSpace(item[:len(item)-len(" ASC")])
		}
		term.Expr = item
		terms = append(terms, term)
	}
	return terms
}

// indexClause finds the first occurrence of kw that can start a clause. WITH
// must be followed by a single access word and LIMIT by a single token that
// ends the text, so predicates such as "Limit > 5" or "With = 1" stay in the
// clause that contains them.
func indexClause(text, kw string, from int) int {
	for pos := indexKeyword(text, kw, from); pos >= 0; pos = indexKeyword(text, kw, pos+len(kw)) {
		if opensClause(kw, text[pos+len(kw):]) {
			return pos
		}
	}
	return -1
}

func opensClause(kw, rest string) bool {
	words := strings.Fields(rest)
	switch kw {
	case "LIMIT":
		return len(words) == 1
	case "WITH":
		if len(words) == 0 || !isIdentWord(words[0]) {
			return false
		}
		if len(words) == 1 {
			return true
		}
		switch strings.ToUpper(words[1]) {
		case "GROUP", "ORDER", "LIMIT":
			return true
		}
		return false
	}
	return true
}

func isIdentWord(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

// indexKeyword finds kw at parenthesis depth zero, outside quoted literals and
// on word boundaries, starting at from. Matching ignores case.
func indexKeyword(text, kw string, from int) int {
	depth := 0
	var quote byte

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			continue
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if i < from || depth != 0 {
			continue
		}
		if i+len(kw) > len(text) || !strings.EqualFold(text[i:i+len(kw)], kw) {
			continue
		}
		if i > 0 && !isSpace(text[i-1]) {
			continue
		}
		if end := i + len(kw); end < len(text) && !isSpace(text[end]) {
			continue
		}
		return i
	}
	return -1
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func malformed(msg, text string) error {
	return goerrors.New(msg, goerrors.CategoryBadInput).
		WithTextCode(textCodeMalformed).
		WithMetadata(map[string]any{"query": text})
}
