package sqlfmt

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\?+`)

// Format substitutes placeholders in query with escaped values, left to right.
//
// "??" consumes one value and escapes it as an identifier, "?" consumes one
// value and escapes it as a literal. Runs of three or more marks are left
// untouched. Substitution stops once values are exhausted; the remaining text
// is kept verbatim. When nothing is replaced the original query is returned.
func Format(query string, values []any, stringifyObjects bool, timeZone string) string {
	if len(values) == 0 {
		return query
	}

	var (
		b     strings.Builder
		chunk int
		next  int
	)
	for _, m := range placeholderRe.FindAllStringIndex(query, -1) {
		if next >= len(values) {
			break
		}
		n := m[1] - m[0]
		if n > 2 {
			continue
		}

		var lit string
		if n == 2 {
			lit = EscapeID(values[next], false)
		} else {
			lit = Escape(values[next], stringifyObjects, timeZone)
		}
		b.WriteString(query[chunk:m[0]])
		b.WriteString(lit)
		chunk = m[1]
		next++
	}

	if chunk == 0 {
		return query
	}
	b.WriteString(query[chunk:])
	return b.String()
}
