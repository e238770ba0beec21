package builder

import (
	"regexp"
	"sort"
	"strings"

	"github.com/atlekbai/querykit/internal/column"
	"github.com/atlekbai/querykit/internal/sqlfmt"
)

// aliasRe matches the AS keyword of a select-list entry.
var aliasRe = regexp.MustCompile(`(?i)(?:^|\s+)as(?:\s+|$)`)

// splitList splits s on commas outside parentheses and quotes.
func splitList(s string) []string {
	var (
		out     []string
		depth   int
		quote   rune
		escaped bool
		start   int
	)
	for i, ch := range s {
		if quote != 0 {
			switch {
			case ch == '\\':
				escaped = !escaped
			case ch == quote && !escaped:
				quote = 0
			default:
				escaped = false
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
			escaped = false
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// columnList is an ordered, deduplicated select list.
type columnList struct {
	entries []string
	seen    map[string]struct{}
}

func (l *columnList) add(op string, columns []string) error {
	if len(columns) == 0 {
		return validationf(op, "columns are required")
	}
	if l.seen == nil {
		l.seen = make(map[string]struct{})
	}
	for _, raw := range columns {
		for _, entry := range splitList(raw) {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if len(aliasRe.Split(entry, -1)) > 2 {
				return validationf(op, "bad column expression %q", entry)
			}
			if _, ok := l.seen[entry]; ok {
				continue
			}
			l.seen[entry] = struct{}{}
			l.entries = append(l.entries, entry)
		}
	}
	return nil
}

// resultAliases returns the AS names declared by the list.
func (l *columnList) resultAliases() []string {
	var out []string
	for _, entry := range l.entries {
		if _, as := splitAlias(entry); as != "" {
			out = append(out, as)
		}
	}
	return out
}

func (l *columnList) render(scope *column.Scope, fields []string) ([]string, error) {
	for _, entry := range l.entries {
		field, err := renderField(entry, scope)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func splitAlias(entry string) (expr, as string) {
	parts := aliasRe.Split(strings.TrimSpace(entry), -1)
	expr = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		as = strings.TrimSpace(parts[1])
	}
	return expr, as
}

func renderField(entry string, scope *column.Scope) (string, error) {
	expr, as := splitAlias(entry)
	if expr == "*" {
		if scope != nil && scope.Alias != "" {
			return sqlfmt.EscapeID(scope.Alias, false) + ".*", nil
		}
		return "*", nil
	}
	field, err := column.Render(expr, scope)
	if err != nil {
		return "", err
	}
	if as != "" {
		field += " AS " + sqlfmt.EscapeID(as, false)
	}
	return field, nil
}

// orderItem is one GROUP BY or ORDER BY expression.
type orderItem struct {
	expr string
	desc bool
}

func appendOrder(op string, items []orderItem, desc bool, exprs []string) ([]orderItem, error) {
	if len(exprs) == 0 {
		return items, validationf(op, "at least one expression is required")
	}
	for _, expr := range exprs {
		if strings.TrimSpace(expr) == "" {
			return items, validationf(op, "expression is required")
		}
		items = append(items, orderItem{expr: expr, desc: desc})
	}
	return items, nil
}

func renderOrder(items []orderItem, scope *column.Scope, out []string) ([]string, error) {
	for _, item := range items {
		expr, err := column.Render(item.expr, scope)
		if err != nil {
			return nil, err
		}
		if item.desc {
			expr += " DESC"
		} else {
			expr += " ASC"
		}
		out = append(out, expr)
	}
	return out, nil
}

// limitState holds LIMIT and OFFSET; zero means unset.
type limitState struct {
	limit  int
	offset int
}

// limits adds Take and Skip to a builder type T. When takeFirst is set,
// Skip is rejected until Take has been called.
type limits[T any] struct {
	self      T
	st        *state
	lim       *limitState
	takeFirst bool
}

func newLimits[T any](self T, st *state, lim *limitState, takeFirst bool) limits[T] {
	return limits[T]{self: self, st: st, lim: lim, takeFirst: takeFirst}
}

// Take sets LIMIT n. n must be positive.
func (m limits[T]) Take(n int) T {
	if m.st.failed() {
		return m.self
	}
	if n <= 0 {
		m.st.record(validationf("Take", "limit must be positive, got %d", n))
		return m.self
	}
	m.lim.limit = n
	return m.self
}

// Skip sets OFFSET n. n must be positive.
func (m limits[T]) Skip(n int) T {
	if m.st.failed() {
		return m.self
	}
	if n <= 0 {
		m.st.record(validationf("Skip", "offset must be positive, got %d", n))
		return m.self
	}
	if m.takeFirst && m.lim.limit == 0 {
		m.st.record(statef("Skip", "OFFSET works together with LIMIT, call Take first"))
		return m.self
	}
	m.lim.offset = n
	return m.self
}

// assignment is one column of an INSERT or UPDATE.
type assignment struct {
	column string
	value  Value
}

// values adds Set, SetSome and SetMap to a builder type T.
type values[T any] struct {
	self T
	st   *state
	set  *[]assignment
}

func newValues[T any](self T, st *state, set *[]assignment) values[T] {
	return values[T]{self: self, st: st, set: set}
}

// Set assigns value to col. Without a value the column renders a ?
// placeholder. A func() any value is invoked each time the statement is
// rendered.
func (m values[T]) Set(col string, value ...any) T {
	if m.st.failed() {
		return m.self
	}
	if strings.TrimSpace(col) == "" {
		m.st.record(validationf("Set", "column is required"))
		return m.self
	}
	v, err := valueOf("Set", value)
	if err != nil {
		m.st.record(err)
		return m.self
	}
	*m.set = append(*m.set, assignment{column: col, value: v})
	return m.self
}

// SetSome assigns placeholders to every column of the given lists. Each
// argument may be a comma-separated list.
func (m values[T]) SetSome(columns ...string) T {
	if m.st.failed() {
		return m.self
	}
	if len(columns) == 0 {
		m.st.record(validationf("SetSome", "columns are required"))
		return m.self
	}
	for _, raw := range columns {
		for _, col := range strings.Split(raw, ",") {
			if col = strings.TrimSpace(col); col != "" {
				*m.set = append(*m.set, assignment{column: col, value: Unbound})
			}
		}
	}
	return m.self
}

// SetMap assigns every value of vals to its column, in key order.
func (m values[T]) SetMap(vals map[string]any) T {
	if m.st.failed() {
		return m.self
	}
	if len(vals) == 0 {
		m.st.record(validationf("SetMap", "values are required"))
		return m.self
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		*m.set = append(*m.set, assignment{column: k, value: Bound(vals[k])})
	}
	return m.self
}

func renderAssignedColumn(a assignment) (string, error) {
	return column.Render(a.column, nil)
}

func renderAssignedValue(a assignment) string {
	if !a.value.IsBound() {
		return "?"
	}
	return escapeValue(a.value.Get())
}
