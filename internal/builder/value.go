package builder

import (
	"reflect"
	"strings"
)

// Value is either a bound value, rendered inline as an escaped literal, or
// Unbound, rendered as a ? placeholder whose value the caller passes to the
// executor. A bound nil renders NULL and is distinct from Unbound.
type Value struct {
	v     any
	bound bool
}

// Unbound renders as a placeholder.
var Unbound = Value{}

// Bound wraps v as a value rendered inline.
func Bound(v any) Value {
	return Value{v: v, bound: true}
}

// IsBound reports whether the value is rendered inline.
func (v Value) IsBound() bool { return v.bound }

// Get returns the wrapped value, or nil when unbound.
func (v Value) Get() any { return v.v }

// valueOf maps the presence of an optional trailing argument onto the Value
// variant: none is Unbound, one is Bound.
func valueOf(op string, args []any) (Value, error) {
	switch len(args) {
	case 0:
		return Unbound, nil
	case 1:
		return Bound(args[0]), nil
	}
	return Unbound, validationf(op, "expected at most one value, got %d", len(args))
}

// Comparison operators accepted by Where and OnColumn.
const (
	OpEq         = "="
	OpNe         = "!="
	OpNeAlt      = "<>"
	OpLt         = "<"
	OpLe         = "<="
	OpGt         = ">"
	OpGe         = ">="
	OpNullSafeEq = "<=>"
	OpLike       = "LIKE"
	OpNotLike    = "NOT LIKE"
	OpIn         = "IN"
	OpNotIn      = "NOT IN"
	OpRegexp     = "REGEXP"
	OpIsNull     = "IS NULL"
	OpIsNotNull  = "IS NOT NULL"
	OpBetween    = "BETWEEN"
	OpNotBetween = "NOT BETWEEN"
)

var operators = map[string]struct{}{
	OpEq: {}, OpNe: {}, OpNeAlt: {}, OpLt: {}, OpLe: {}, OpGt: {}, OpGe: {},
	OpNullSafeEq: {}, OpLike: {}, OpNotLike: {}, OpIn: {}, OpNotIn: {},
	OpRegexp: {}, OpIsNull: {}, OpIsNotNull: {}, OpBetween: {}, OpNotBetween: {},
}

// normalizeOperator upper-cases op and collapses inner whitespace.
// An empty operator means equality.
func normalizeOperator(op string) (string, bool) {
	op = strings.ToUpper(strings.Join(strings.Fields(op), " "))
	if op == "" {
		return OpEq, true
	}
	_, ok := operators[op]
	return op, ok
}

func isNullOp(op string) bool    { return op == OpIsNull || op == OpIsNotNull }
func isBetweenOp(op string) bool { return op == OpBetween || op == OpNotBetween }
func isInOp(op string) bool      { return op == OpIn || op == OpNotIn }

// pairOf returns the two elements of a slice or array value of length two.
func pairOf(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Len() != 2 {
		return nil, false
	}
	return []any{rv.Index(0).Interface(), rv.Index(1).Interface()}, true
}
