package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/atlekbai/querykit/internal/builder"
	"github.com/atlekbai/querykit/internal/executor"
	"github.com/atlekbai/querykit/internal/model"
	"github.com/atlekbai/querykit/internal/schema"
)

// ErrInvalidRequest is matched by errors in the shape of a request message.
var ErrInvalidRequest = errors.New("invalid request")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// statement is a decoded request, ready to render or run.
type statement interface {
	Build() (string, error)
	Call(ctx context.Context, params ...any) (*executor.Result, error)
}

type decoder struct {
	registry *schema.Registry
	exec     executor.Executor
}

// decode turns a request object into a bound statement. Shape errors are
// returned directly; builder errors stay on the statement and surface when
// it is built.
func (d *decoder) decode(req map[string]any) (statement, error) {
	if _, ok := req["model"]; ok {
		return d.decodeModel(req)
	}
	kind, err := getString(req, "statement")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(kind) {
	case "select":
		return d.decodeSelect(req)
	case "insert":
		return d.decodeInsert(req)
	case "update":
		return d.decodeUpdate(req)
	case "delete":
		return d.decodeDelete(req)
	case "":
		return nil, invalidf("statement or model is required")
	}
	return nil, invalidf("unknown statement %q", kind)
}

func (d *decoder) decodeSelect(req map[string]any) (statement, error) {
	table, err := getString(req, "table")
	if err != nil {
		return nil, err
	}
	alias, err := getString(req, "alias")
	if err != nil {
		return nil, err
	}
	stmt := builder.NewSelect().From(table)
	if alias != "" {
		stmt.As(alias)
	}
	s := builder.BindSelect(stmt, d.exec)
	if err := applySelect[*builder.BoundSelect](s, req); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *decoder) decodeInsert(req map[string]any) (statement, error) {
	table, err := getString(req, "table")
	if err != nil {
		return nil, err
	}
	i := builder.BindInsert(builder.NewInsert().Into(table), d.exec)
	if err := applyValues[*builder.BoundInsert](i, req); err != nil {
		return nil, err
	}
	if err := rejectKeys(req, "insert", "where", "joins", "limit", "offset"); err != nil {
		return nil, err
	}
	return i, nil
}

func (d *decoder) decodeUpdate(req map[string]any) (statement, error) {
	table, err := getString(req, "table")
	if err != nil {
		return nil, err
	}
	u := builder.BindUpdate(builder.NewUpdate().Table(table), d.exec)
	if err := applyValues[*builder.BoundUpdate](u, req); err != nil {
		return nil, err
	}
	if err := applyWhere[*builder.BoundUpdate](u, req, "where"); err != nil {
		return nil, err
	}
	if err := applyLimits[*builder.BoundUpdate](u, req); err != nil {
		return nil, err
	}
	return u, nil
}

func (d *decoder) decodeDelete(req map[string]any) (statement, error) {
	table, err := getString(req, "table")
	if err != nil {
		return nil, err
	}
	del := builder.BindDelete(builder.NewDelete().From(table), d.exec)
	if err := applyWhere[*builder.BoundDelete](del, req, "where"); err != nil {
		return nil, err
	}
	if err := applyLimits[*builder.BoundDelete](del, req); err != nil {
		return nil, err
	}
	return del, nil
}

func (d *decoder) decodeModel(req map[string]any) (statement, error) {
	name, err := getString(req, "model")
	if err != nil {
		return nil, err
	}
	m, err := d.registry.Model(name, d.exec)
	if err != nil {
		return nil, err
	}
	op, err := getString(req, "op")
	if err != nil {
		return nil, err
	}
	columns, err := getStrings(req, "columns")
	if err != nil {
		return nil, err
	}
	id, hasID := req["id"]
	needID := func() error {
		if !hasID {
			return invalidf("op %q requires id", op)
		}
		return nil
	}

	switch op {
	case "create":
		values, err := getObject(req, "values")
		if err != nil {
			return nil, err
		}
		return m.Create(values), nil

	case "get", "getOne", "getLast":
		var s *builder.BoundSelect
		switch op {
		case "get":
			s = m.Get(columns...)
		case "getOne":
			s = m.GetOne(columns...)
		default:
			s = m.GetLast(columns...)
		}
		if err := applyWhere[*builder.BoundSelect](s, req, "where"); err != nil {
			return nil, err
		}
		if err := applyOrdering[*builder.BoundSelect](s, req); err != nil {
			return nil, err
		}
		if op == "get" {
			if err := applyLimits[*builder.BoundSelect](s, req); err != nil {
				return nil, err
			}
		}
		return s, nil

	case "getById":
		if err := needID(); err != nil {
			return nil, err
		}
		return m.GetByID(id, columns...), nil

	case "update":
		values, err := getObject(req, "values")
		if err != nil {
			return nil, err
		}
		u := m.Update(values)
		if err := applyWhere[*builder.BoundUpdate](u, req, "where"); err != nil {
			return nil, err
		}
		return u, nil

	case "updateById":
		if err := needID(); err != nil {
			return nil, err
		}
		values, err := getObject(req, "values")
		if err != nil {
			return nil, err
		}
		return m.UpdateByID(id, values), nil

	case "delete":
		spec, err := getWhereSpec(req, "where")
		if err != nil {
			return nil, err
		}
		return m.Delete(spec), nil

	case "deleteById":
		if err := needID(); err != nil {
			return nil, err
		}
		return m.DeleteByID(id), nil
	}
	return nil, invalidf("unknown model op %q", op)
}

type predicator[T any] interface {
	Where(col, op string, value ...any) T
	OrWhere(col, op string, value ...any) T
	OnColumn(first, second string, op ...string) T
	OrColumn(first, second string, op ...string) T
	Clause(fn func(*builder.Clause)) T
	OrClause(fn func(*builder.Clause)) T
}

type orderer[T any] interface {
	GroupBy(exprs ...string) T
	GroupByDesc(exprs ...string) T
	OrderBy(exprs ...string) T
	OrderByDesc(exprs ...string) T
}

type limiter[T any] interface {
	Take(n int) T
	Skip(n int) T
}

type valuer[T any] interface {
	SetMap(vals map[string]any) T
	SetSome(columns ...string) T
}

type selector[T any] interface {
	predicator[T]
	orderer[T]
	limiter[T]
	Select(columns ...string) T
	JoinType(typ, table string, fn func(*builder.Join)) T
	JoinSelect(sub func(*builder.SubSelect), on func(*builder.Join)) T
	Having(fn func(*builder.Clause)) T
}

func applySelect[T any](s selector[T], req map[string]any) error {
	columns, err := getStrings(req, "columns")
	if err != nil {
		return err
	}
	if len(columns) > 0 {
		s.Select(columns...)
	}
	if err := applyJoins[T](s, req); err != nil {
		return err
	}
	if err := applyWhere[T](s, req, "where"); err != nil {
		return err
	}
	having, err := getList(req, "having")
	if err != nil {
		return err
	}
	if having != nil {
		var derr error
		s.Having(func(c *builder.Clause) {
			derr = applyPredicates[*builder.Clause](c, having)
		})
		if derr != nil {
			return derr
		}
	}
	if err := applyOrdering[T](s, req); err != nil {
		return err
	}
	return applyLimits[T](s, req)
}

func applyJoins[T any](s selector[T], req map[string]any) error {
	joins, err := getList(req, "joins")
	if err != nil {
		return err
	}
	for i, item := range joins {
		spec, ok := item.(map[string]any)
		if !ok {
			return invalidf("joins[%d] must be an object", i)
		}
		typ, err := getString(spec, "type")
		if err != nil {
			return err
		}
		var derr error
		on := func(j *builder.Join) { derr = applyJoin(j, spec) }

		sub, err := getObject(spec, "select")
		if err != nil {
			return err
		}
		if sub != nil {
			if typ != "" {
				return invalidf("joins[%d]: a joined select takes no type", i)
			}
			var serr error
			s.JoinSelect(func(ss *builder.SubSelect) { serr = applySubSelect(ss, sub) }, on)
			if serr != nil {
				return fmt.Errorf("joins[%d].select: %w", i, serr)
			}
		} else {
			table, err := getString(spec, "table")
			if err != nil {
				return err
			}
			s.JoinType(typ, table, on)
		}
		if derr != nil {
			return fmt.Errorf("joins[%d]: %w", i, derr)
		}
	}
	return nil
}

func applyJoin(j *builder.Join, spec map[string]any) error {
	alias, err := getString(spec, "alias")
	if err != nil {
		return err
	}
	if alias != "" {
		j.As(alias)
	}
	columns, err := getStrings(spec, "columns")
	if err != nil {
		return err
	}
	if len(columns) > 0 {
		j.Select(columns...)
	}
	if err := applyWhere[*builder.Join](j, spec, "on"); err != nil {
		return err
	}
	return applyOrdering[*builder.Join](j, spec)
}

// applySubSelect configures a joined select. Its result alias is read from
// "as".
func applySubSelect(ss *builder.SubSelect, spec map[string]any) error {
	table, err := getString(spec, "table")
	if err != nil {
		return err
	}
	ss.From(table)
	alias, err := getString(spec, "alias")
	if err != nil {
		return err
	}
	if alias != "" {
		ss.As(alias)
	}
	result, err := getString(spec, "as")
	if err != nil {
		return err
	}
	ss.SetAlias(result)
	return applySelect[*builder.Select](ss.Select, spec)
}

func applyWhere[T any](p predicator[T], req map[string]any, key string) error {
	list, err := getList(req, key)
	if err != nil {
		return err
	}
	return applyPredicates[T](p, list)
}

// applyPredicates adds each predicate object of list to p. A missing value
// key leaves the predicate unbound; a null value binds NULL.
func applyPredicates[T any](p predicator[T], list []any) error {
	for i, item := range list {
		pred, ok := item.(map[string]any)
		if !ok {
			return invalidf("predicate %d must be an object", i)
		}
		or, err := getBool(pred, "or")
		if err != nil {
			return err
		}

		if _, ok := pred["group"]; ok {
			group, err := getList(pred, "group")
			if err != nil {
				return err
			}
			var derr error
			fn := func(c *builder.Clause) { derr = applyPredicates[*builder.Clause](c, group) }
			if or {
				p.OrClause(fn)
			} else {
				p.Clause(fn)
			}
			if derr != nil {
				return derr
			}
			continue
		}

		col, err := getString(pred, "column")
		if err != nil {
			return err
		}
		op, err := getString(pred, "op")
		if err != nil {
			return err
		}

		if _, ok := pred["ref"]; ok {
			ref, err := getString(pred, "ref")
			if err != nil {
				return err
			}
			var ops []string
			if op != "" {
				ops = []string{op}
			}
			if or {
				p.OrColumn(col, ref, ops...)
			} else {
				p.OnColumn(col, ref, ops...)
			}
			continue
		}

		var args []any
		if v, ok := pred["value"]; ok {
			args = []any{v}
		}
		if or {
			p.OrWhere(col, op, args...)
		} else {
			p.Where(col, op, args...)
		}
	}
	return nil
}

// applyOrdering applies groupBy and orderBy lists. An entry is an
// expression string, ascending, or an {expr, desc} object.
func applyOrdering[T any](o orderer[T], req map[string]any) error {
	for _, key := range []string{"groupBy", "orderBy"} {
		list, err := getList(req, key)
		if err != nil {
			return err
		}
		for i, item := range list {
			expr, desc, err := orderEntry(item)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			switch {
			case key == "groupBy" && desc:
				o.GroupByDesc(expr)
			case key == "groupBy":
				o.GroupBy(expr)
			case desc:
				o.OrderByDesc(expr)
			default:
				o.OrderBy(expr)
			}
		}
	}
	return nil
}

func orderEntry(item any) (string, bool, error) {
	switch v := item.(type) {
	case string:
		return v, false, nil
	case map[string]any:
		expr, err := getString(v, "expr")
		if err != nil {
			return "", false, err
		}
		desc, err := getBool(v, "desc")
		return expr, desc, err
	}
	return "", false, invalidf("order entry must be a string or an object")
}

func applyLimits[T any](l limiter[T], req map[string]any) error {
	if n, ok, err := getInt(req, "limit"); err != nil {
		return err
	} else if ok {
		l.Take(n)
	}
	if n, ok, err := getInt(req, "offset"); err != nil {
		return err
	} else if ok {
		l.Skip(n)
	}
	return nil
}

// applyValues applies "values", an object of bound assignments, and "set",
// columns assigned placeholders.
func applyValues[T any](v valuer[T], req map[string]any) error {
	values, err := getObject(req, "values")
	if err != nil {
		return err
	}
	if values != nil {
		v.SetMap(values)
	}
	set, err := getStrings(req, "set")
	if err != nil {
		return err
	}
	if len(set) > 0 {
		v.SetSome(set...)
	}
	return nil
}

func rejectKeys(req map[string]any, kind string, keys ...string) error {
	for _, key := range keys {
		if _, ok := req[key]; ok {
			return invalidf("%s does not accept %q", kind, key)
		}
	}
	return nil
}

// getWhereSpec reads an operator to columns object. Column lists arrive as
// JSON arrays of strings.
func getWhereSpec(req map[string]any, key string) (model.WhereSpec, error) {
	obj, err := getObject(req, key)
	if err != nil || obj == nil {
		return nil, err
	}
	spec := make(model.WhereSpec, len(obj))
	for op, v := range obj {
		switch val := v.(type) {
		case string, map[string]any:
			spec[op] = val
		case []any:
			cols, err := stringList(key+"."+op, val)
			if err != nil {
				return nil, err
			}
			spec[op] = cols
		default:
			return nil, invalidf("%s.%s must be a column list or an object", key, op)
		}
	}
	return spec, nil
}

func getString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidf("%s must be a string", key)
	}
	return s, nil
}

func getBool(m map[string]any, key string) (bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalidf("%s must be a boolean", key)
	}
	return b, nil
}

func getInt(m map[string]any, key string) (int, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case float64:
		if n == math.Trunc(n) && math.Abs(n) <= math.MaxInt32 {
			return int(n), true, nil
		}
	}
	return 0, false, invalidf("%s must be an integer", key)
}

func getList(m map[string]any, key string) ([]any, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, invalidf("%s must be a list", key)
	}
	return list, nil
}

func getObject(m map[string]any, key string) (map[string]any, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, invalidf("%s must be an object", key)
	}
	return obj, nil
}

// getStrings reads a string or a list of strings.
func getStrings(m map[string]any, key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case []any:
		return stringList(key, val)
	}
	return nil, invalidf("%s must be a string or a list of strings", key)
}

func stringList(key string, list []any) ([]string, error) {
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, invalidf("%s[%d] must be a string", key, i)
		}
		out[i] = s
	}
	return out, nil
}
