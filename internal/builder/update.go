package builder

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/querykit/internal/sqlfmt"
)

type updateState struct {
	table  string
	set    []assignment
	where  *clauseTree
	limits limitState
}

// Update builds UPDATE table SET col = value, ... [WHERE ...].
//
// Take and Skip are accepted and recorded but not rendered.
type Update struct {
	predicates[*Update]
	values[*Update]
	limits[*Update]

	st *state
	s  *updateState
}

// NewUpdate returns an empty UPDATE builder.
func NewUpdate() *Update {
	return newUpdate(newState())
}

func newUpdate(st *state) *Update {
	u := &Update{st: st, s: &updateState{where: &clauseTree{}}}
	u.predicates = newPredicates(u, st, u.s.where)
	u.values = newValues(u, st, &u.s.set)
	u.limits = newLimits(u, st, &u.s.limits, false)
	return u
}

// Table sets the table to update.
func (u *Update) Table(table string) *Update {
	if u.st.failed() {
		return u
	}
	if strings.TrimSpace(table) == "" {
		u.st.record(validationf("Table", "table is required"))
		return u
	}
	u.s.table = table
	return u
}

// TableName returns the table set by Table.
func (u *Update) TableName() string { return u.s.table }

// Err returns the first error recorded by the builder.
func (u *Update) Err() error { return u.st.err }

// Build renders the statement.
func (u *Update) Build() (string, error) {
	return u.build(u.s.table)
}

// ToSql implements squirrel.Sqlizer.
func (u *Update) ToSql() (string, []any, error) {
	sql, err := u.Build()
	return sql, nil, err
}

func (u *Update) build(table string) (string, error) {
	if u.st.err != nil {
		return "", u.st.err
	}
	if table == "" {
		return "", statef("Build", "no table, call Table first")
	}
	if len(u.s.set) == 0 {
		return "", statef("Build", "no columns to update")
	}

	qb := sq.Update(sqlfmt.EscapeID(table, false)).PlaceholderFormat(sq.Question)
	for _, a := range u.s.set {
		field, err := renderAssignedColumn(a)
		if err != nil {
			return "", err
		}
		qb = qb.Set(field, sq.Expr(renderAssignedValue(a)))
	}
	if !u.s.where.empty() {
		where, err := u.s.where.render(nil)
		if err != nil {
			return "", err
		}
		qb = qb.Where(where)
	}
	sql, _, err := qb.ToSql()
	return sql, err
}
