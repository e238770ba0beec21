package builder

import (
	"strings"

	"github.com/atlekbai/querykit/internal/sqlfmt"
)

type insertState struct {
	table string
	set   []assignment
}

// Insert builds INSERT INTO table (columns) VALUES (values). Repeated
// columns are kept as given.
type Insert struct {
	values[*Insert]

	st *state
	s  *insertState
}

// NewInsert returns an empty INSERT builder.
func NewInsert() *Insert {
	return newInsert(newState())
}

func newInsert(st *state) *Insert {
	i := &Insert{st: st, s: &insertState{}}
	i.values = newValues(i, st, &i.s.set)
	return i
}

// Into sets the target table.
func (i *Insert) Into(table string) *Insert {
	if i.st.failed() {
		return i
	}
	if strings.TrimSpace(table) == "" {
		i.st.record(validationf("Into", "table is required"))
		return i
	}
	i.s.table = table
	return i
}

// Table returns the table set by Into.
func (i *Insert) Table() string { return i.s.table }

// Err returns the first error recorded by the builder.
func (i *Insert) Err() error { return i.st.err }

// Build renders the statement.
func (i *Insert) Build() (string, error) {
	return i.build(i.s.table)
}

// ToSql implements squirrel.Sqlizer.
func (i *Insert) ToSql() (string, []any, error) {
	sql, err := i.Build()
	return sql, nil, err
}

func (i *Insert) build(table string) (string, error) {
	if i.st.err != nil {
		return "", i.st.err
	}
	if table == "" {
		return "", statef("Build", "no table, call Into first")
	}
	if len(i.s.set) == 0 {
		return "", statef("Build", "no columns to insert")
	}

	fields := make([]string, 0, len(i.s.set))
	vals := make([]string, 0, len(i.s.set))
	for _, a := range i.s.set {
		field, err := renderAssignedColumn(a)
		if err != nil {
			return "", err
		}
		fields = append(fields, field)
		vals = append(vals, renderAssignedValue(a))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlfmt.EscapeID(table, false))
	b.WriteString(" (")
	b.WriteString(strings.Join(fields, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(vals, ", "))
	b.WriteByte(')')
	return b.String(), nil
}
