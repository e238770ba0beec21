package builder

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/querykit/internal/sqlfmt"
)

type deleteState struct {
	table  string
	where  *clauseTree
	limits limitState
}

// Delete builds DELETE FROM table [WHERE ...] [LIMIT n] [OFFSET n].
type Delete struct {
	predicates[*Delete]
	limits[*Delete]

	st *state
	s  *deleteState
}

// NewDelete returns an empty DELETE builder.
func NewDelete() *Delete {
	return newDelete(newState())
}

func newDelete(st *state) *Delete {
	d := &Delete{st: st, s: &deleteState{where: &clauseTree{}}}
	d.predicates = newPredicates(d, st, d.s.where)
	d.limits = newLimits(d, st, &d.s.limits, true)
	return d
}

// From sets the table to delete from.
func (d *Delete) From(table string) *Delete {
	if d.st.failed() {
		return d
	}
	if strings.TrimSpace(table) == "" {
		d.st.record(validationf("From", "table is required"))
		return d
	}
	d.s.table = table
	return d
}

// Table returns the table set by From.
func (d *Delete) Table() string { return d.s.table }

// Err returns the first error recorded by the builder.
func (d *Delete) Err() error { return d.st.err }

// Build renders the statement.
func (d *Delete) Build() (string, error) {
	return d.build(d.s.table)
}

// ToSql implements squirrel.Sqlizer.
func (d *Delete) ToSql() (string, []any, error) {
	sql, err := d.Build()
	return sql, nil, err
}

func (d *Delete) build(table string) (string, error) {
	if d.st.err != nil {
		return "", d.st.err
	}
	if table == "" {
		return "", statef("Build", "no table, call From first")
	}

	qb := sq.Delete(sqlfmt.EscapeID(table, false)).PlaceholderFormat(sq.Question)
	if !d.s.where.empty() {
		where, err := d.s.where.render(nil)
		if err != nil {
			return "", err
		}
		qb = qb.Where(where)
	}
	if d.s.limits.limit > 0 {
		qb = qb.Limit(uint64(d.s.limits.limit))
	}
	if d.s.limits.offset > 0 {
		qb = qb.Offset(uint64(d.s.limits.offset))
	}
	sql, _, err := qb.ToSql()
	return sql, err
}
