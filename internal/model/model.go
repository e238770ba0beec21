// Package model produces statements preconfigured for one table and bound
// to an executor.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atlekbai/querykit/internal/builder"
	"github.com/atlekbai/querykit/internal/executor"
)

// DefaultPrimaryKey is the primary key column used when none is given.
const DefaultPrimaryKey = "id"

// Model is a table with a primary key and the executor its statements run
// on.
type Model struct {
	table      string
	primaryKey string
	exec       executor.Executor
}

// Option configures a Model.
type Option func(*Model)

// WithPrimaryKey sets the primary key column.
func WithPrimaryKey(pk string) Option {
	return func(m *Model) {
		if pk != "" {
			m.primaryKey = pk
		}
	}
}

// New returns a model for table. A nil exec fails every Call with
// executor.ErrUnavailable.
func New(table string, exec executor.Executor, opts ...Option) (*Model, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("model: table is required")
	}
	m := &Model{table: table, primaryKey: DefaultPrimaryKey, exec: exec}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Table returns the model table.
func (m *Model) Table() string { return m.table }

// PrimaryKey returns the primary key column.
func (m *Model) PrimaryKey() string { return m.primaryKey }

// Create inserts values, in column order.
func (m *Model) Create(values map[string]any) *builder.BoundInsert {
	return builder.BindInsert(builder.NewInsert().Into(m.table), m.exec).SetMap(values)
}

// Get selects columns, or every column when none are given.
func (m *Model) Get(columns ...string) *builder.BoundSelect {
	s := builder.BindSelect(builder.NewSelect().From(m.table), m.exec)
	if len(columns) > 0 {
		s.Select(columns...)
	}
	return s
}

// GetOne is Get limited to one row.
func (m *Model) GetOne(columns ...string) *builder.BoundSelect {
	return m.Get(columns...).Take(1)
}

// GetLast is GetOne ordered by the primary key descending.
func (m *Model) GetLast(columns ...string) *builder.BoundSelect {
	return m.GetOne(columns...).OrderByDesc(m.primaryKey)
}

// GetByID selects the row whose primary key equals id.
func (m *Model) GetByID(id any, columns ...string) *builder.BoundSelect {
	return m.Get(columns...).Where(m.primaryKey, builder.OpEq, id)
}

// WhereSpec maps an operator to the columns it applies to. A value is
// either a comma-separated column list or a []string, each column getting a
// placeholder, or a map[string]any of column to bound value.
type WhereSpec map[string]any

// Delete deletes the rows matched by where. Operators and columns are
// applied in sorted order.
func (m *Model) Delete(where WhereSpec) *builder.BoundDelete {
	d := builder.BindDelete(builder.NewDelete().From(m.table), m.exec)
	applyWhere[*builder.BoundDelete](d, where)
	return d
}

// DeleteByID deletes the row whose primary key equals id.
func (m *Model) DeleteByID(id any) *builder.BoundDelete {
	return builder.BindDelete(builder.NewDelete().From(m.table), m.exec).Where(m.primaryKey, builder.OpEq, id)
}

// Update sets values on every row; add predicates to narrow it.
func (m *Model) Update(values map[string]any) *builder.BoundUpdate {
	return builder.BindUpdate(builder.NewUpdate().Table(m.table), m.exec).SetMap(values)
}

// UpdateByID sets values on the row whose primary key equals id.
func (m *Model) UpdateByID(id any, values map[string]any) *builder.BoundUpdate {
	return m.Update(values).Where(m.primaryKey, builder.OpEq, id)
}

type wherer[T any] interface {
	Where(col, op string, value ...any) T
	Invalid(op, format string, args ...any) T
}

func applyWhere[T any](w wherer[T], spec WhereSpec) {
	ops := make([]string, 0, len(spec))
	for op := range spec {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		switch v := spec[op].(type) {
		case string:
			for _, col := range strings.Split(v, ",") {
				if col = strings.TrimSpace(col); col != "" {
					w.Where(col, op)
				}
			}
		case []string:
			for _, col := range v {
				w.Where(col, op)
			}
		case map[string]any:
			cols := make([]string, 0, len(v))
			for col := range v {
				cols = append(cols, col)
			}
			sort.Strings(cols)
			for _, col := range cols {
				w.Where(col, op, v[col])
			}
		default:
			w.Invalid("Delete", "operator %q: unsupported column spec of type %T", op, v)
		}
	}
}
