package builder

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/querykit/internal/executor"
)

var (
	_ sq.Sqlizer = (*Select)(nil)
	_ sq.Sqlizer = (*Insert)(nil)
	_ sq.Sqlizer = (*Update)(nil)
	_ sq.Sqlizer = (*Delete)(nil)
	_ sq.Sqlizer = (*BoundSelect)(nil)
	_ sq.Sqlizer = (*BoundInsert)(nil)
	_ sq.Sqlizer = (*BoundUpdate)(nil)
	_ sq.Sqlizer = (*BoundDelete)(nil)
)

// Bound statements pin a builder to a table and an executor. The table is
// fixed when the statement is bound and there is no setter for it;
// predicates, columns, values, ordering and limits can still be added.
// Binding takes ownership of the builder.

func orUnavailable(exec executor.Executor) executor.Executor {
	if exec == nil {
		return executor.Unavailable{}
	}
	return exec
}

// BoundSelect is a Select pinned to a table and an executor.
type BoundSelect struct {
	predicates[*BoundSelect]
	limits[*BoundSelect]
	selectCore[*BoundSelect]

	stmt  *Select
	table string
	exec  executor.Executor
}

// BindSelect pins stmt to its current table and to exec. A nil exec fails
// every Call with executor.ErrUnavailable.
func BindSelect(stmt *Select, exec executor.Executor) *BoundSelect {
	b := &BoundSelect{stmt: stmt, table: stmt.s.table, exec: orUnavailable(exec)}
	b.predicates = newPredicates(b, stmt.st, stmt.s.where)
	b.limits = newLimits(b, stmt.st, &stmt.s.limits, true)
	b.selectCore = selectCore[*BoundSelect]{self: b, st: stmt.st, s: stmt.s}
	return b
}

// Table returns the pinned table.
func (b *BoundSelect) Table() string { return b.table }

// Err returns the first error recorded by the statement.
func (b *BoundSelect) Err() error { return b.stmt.st.err }

// Build renders the statement.
func (b *BoundSelect) Build() (string, error) { return b.stmt.build(b.table) }

// ToSql implements squirrel.Sqlizer.
func (b *BoundSelect) ToSql() (string, []any, error) {
	sql, err := b.Build()
	return sql, nil, err
}

// Call renders the statement and runs it with params filling its
// placeholders.
func (b *BoundSelect) Call(ctx context.Context, params ...any) (*executor.Result, error) {
	return call(ctx, b.exec, b, params)
}

// BoundInsert is an Insert pinned to a table and an executor.
type BoundInsert struct {
	values[*BoundInsert]

	stmt  *Insert
	table string
	exec  executor.Executor
}

// BindInsert pins stmt to its current table and to exec.
func BindInsert(stmt *Insert, exec executor.Executor) *BoundInsert {
	b := &BoundInsert{stmt: stmt, table: stmt.s.table, exec: orUnavailable(exec)}
	b.values = newValues(b, stmt.st, &stmt.s.set)
	return b
}

// Table returns the pinned table.
func (b *BoundInsert) Table() string { return b.table }

// Err returns the first error recorded by the statement.
func (b *BoundInsert) Err() error { return b.stmt.st.err }

// Build renders the statement.
func (b *BoundInsert) Build() (string, error) { return b.stmt.build(b.table) }

// ToSql implements squirrel.Sqlizer.
func (b *BoundInsert) ToSql() (string, []any, error) {
	sql, err := b.Build()
	return sql, nil, err
}

// Call renders the statement and runs it with params.
func (b *BoundInsert) Call(ctx context.Context, params ...any) (*executor.Result, error) {
	return call(ctx, b.exec, b, params)
}

// BoundUpdate is an Update pinned to a table and an executor.
type BoundUpdate struct {
	predicates[*BoundUpdate]
	values[*BoundUpdate]
	limits[*BoundUpdate]

	stmt  *Update
	table string
	exec  executor.Executor
}

// BindUpdate pins stmt to its current table and to exec.
func BindUpdate(stmt *Update, exec executor.Executor) *BoundUpdate {
	b := &BoundUpdate{stmt: stmt, table: stmt.s.table, exec: orUnavailable(exec)}
	b.predicates = newPredicates(b, stmt.st, stmt.s.where)
	b.values = newValues(b, stmt.st, &stmt.s.set)
	b.limits = newLimits(b, stmt.st, &stmt.s.limits, false)
	return b
}

// Table returns the pinned table.
func (b *BoundUpdate) Table() string { return b.table }

// Err returns the first error recorded by the statement.
func (b *BoundUpdate) Err() error { return b.stmt.st.err }

// Build renders the statement.
func (b *BoundUpdate) Build() (string, error) { return b.stmt.build(b.table) }

// ToSql implements squirrel.Sqlizer.
func (b *BoundUpdate) ToSql() (string, []any, error) {
	sql, err := b.Build()
	return sql, nil, err
}

// Call renders the statement and runs it with params.
func (b *BoundUpdate) Call(ctx context.Context, params ...any) (*executor.Result, error) {
	return call(ctx, b.exec, b, params)
}

// BoundDelete is a Delete pinned to a table and an executor.
type BoundDelete struct {
	predicates[*BoundDelete]
	limits[*BoundDelete]

	stmt  *Delete
	table string
	exec  executor.Executor
}

// BindDelete pins stmt to its current table and to exec.
func BindDelete(stmt *Delete, exec executor.Executor) *BoundDelete {
	b := &BoundDelete{stmt: stmt, table: stmt.s.table, exec: orUnavailable(exec)}
	b.predicates = newPredicates(b, stmt.st, stmt.s.where)
	b.limits = newLimits(b, stmt.st, &stmt.s.limits, true)
	return b
}

// Table returns the pinned table.
func (b *BoundDelete) Table() string { return b.table }

// Err returns the first error recorded by the statement.
func (b *BoundDelete) Err() error { return b.stmt.st.err }

// Build renders the statement.
func (b *BoundDelete) Build() (string, error) { return b.stmt.build(b.table) }

// ToSql implements squirrel.Sqlizer.
func (b *BoundDelete) ToSql() (string, []any, error) {
	sql, err := b.Build()
	return sql, nil, err
}

// Call renders the statement and runs it with params.
func (b *BoundDelete) Call(ctx context.Context, params ...any) (*executor.Result, error) {
	return call(ctx, b.exec, b, params)
}

type renderer interface {
	Build() (string, error)
}

func call(ctx context.Context, exec executor.Executor, stmt renderer, params []any) (*executor.Result, error) {
	sql, err := stmt.Build()
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = []any{}
	}
	return exec.Execute(ctx, sql, params)
}
