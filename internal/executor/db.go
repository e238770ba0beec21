package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// rowVerbs are the leading keywords of statements that return rows.
var rowVerbs = map[string]struct{}{
	"SELECT":   {},
	"SHOW":     {},
	"DESCRIBE": {},
	"EXPLAIN":  {},
	"WITH":     {},
}

// DB executes statements on a database/sql connection pool.
type DB struct {
	db *sql.DB
}

// New wraps an open pool.
func New(db *sql.DB) *DB {
	return &DB{db: db}
}

// Open validates a MySQL DSN and opens a pool for it. The pool connects
// lazily; use Ping to check the server.
func Open(dsn string) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	return New(sql.OpenDB(connector)), nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Execute runs query with params. Statements starting with SELECT, SHOW,
// DESCRIBE, EXPLAIN or WITH are read as rows; the rest report affected rows
// and the last insert id.
func (d *DB) Execute(ctx context.Context, query string, params []any) (*Result, error) {
	start := time.Now()
	stmt := sq.Expr(query, params...)

	var (
		res *Result
		err error
	)
	if returnsRows(query) {
		res, err = d.query(ctx, stmt)
	} else {
		res, err = d.exec(ctx, stmt)
	}

	zerolog.Ctx(ctx).Debug().
		Str("sql", query).
		Int("params", len(params)).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("statement executed")
	return res, err
}

func returnsRows(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	verb := strings.ToUpper(strings.TrimLeft(fields[0], "("))
	_, ok := rowVerbs[verb]
	return ok
}

func (d *DB) exec(ctx context.Context, stmt sq.Sqlizer) (*Result, error) {
	res, err := sq.ExecContextWith(ctx, d.db, stmt)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	out := &Result{}
	// Drivers that cannot report these leave them zero.
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

func (d *DB) query(ctx context.Context, stmt sq.Sqlizer) (*Result, error) {
	rows, err := sq.QueryContextWith(ctx, d.db, stmt)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	out := &Result{Fields: make([]Field, len(types)), Rows: []Row{}}
	for i, ct := range types {
		out.Fields[i] = Field{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		vals := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(Row, len(types))
		for i, f := range out.Fields {
			row[f.Name] = normalize(vals[i])
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// normalize turns text columns delivered as bytes into strings.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
