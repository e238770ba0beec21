// Package executor runs rendered statements against a database.
package executor

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Unavailable for every statement.
var ErrUnavailable = errors.New("querykit: no database configured")

// Row is one result row keyed by column name.
type Row map[string]any

// Field describes one result column.
type Field struct {
	Name string
	Type string // database type name, e.g. VARCHAR
}

// Result is the outcome of one statement. Rows and Fields are set for
// statements that return rows; RowsAffected and LastInsertID for the rest.
type Result struct {
	Rows         []Row
	Fields       []Field
	RowsAffected int64
	LastInsertID int64
}

// Executor sends SQL text and its placeholder values to a database.
// Errors raised by the driver are returned as they are.
type Executor interface {
	Execute(ctx context.Context, query string, params []any) (*Result, error)
}

// Func adapts a function to the Executor interface.
type Func func(ctx context.Context, query string, params []any) (*Result, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, query string, params []any) (*Result, error) {
	return f(ctx, query, params)
}

// Unavailable is the executor used when no database is configured.
type Unavailable struct{}

// Execute fails with ErrUnavailable.
func (Unavailable) Execute(context.Context, string, []any) (*Result, error) {
	return nil, ErrUnavailable
}
