package builder

import (
	"strings"

	"github.com/atlekbai/querykit/internal/column"
	"github.com/atlekbai/querykit/internal/sqlfmt"
)

// predicate is one entry of a WHERE, ON or HAVING tree: a comparison, a
// column-to-column comparison or a parenthesized group.
type predicate struct {
	or     bool // combinator relative to the previous entry
	column string
	op     string
	value  Value
	ref    string // right-hand column of OnColumn
	group  *clauseTree
}

// clauseTree is an ordered predicate list. Entries render left to right
// joined by their own combinator.
type clauseTree struct {
	preds []predicate
}

func (c *clauseTree) empty() bool { return c == nil || len(c.preds) == 0 }

func (c *clauseTree) render(scope *column.Scope) (string, error) {
	var (
		b strings.Builder
		n int
	)
	for _, p := range c.preds {
		var (
			part string
			err  error
		)
		if p.group != nil {
			if p.group.empty() {
				continue
			}
			part, err = p.group.render(scope)
			part = "(" + part + ")"
		} else {
			part, err = p.render(scope)
		}
		if err != nil {
			return "", err
		}
		if n > 0 {
			if p.or {
				b.WriteString(" OR ")
			} else {
				b.WriteString(" AND ")
			}
		}
		b.WriteString(part)
		n++
	}
	return b.String(), nil
}

func (p predicate) render(scope *column.Scope) (string, error) {
	left, err := column.Render(p.column, scope)
	if err != nil {
		return "", err
	}

	switch {
	case isNullOp(p.op):
		return left + " " + p.op, nil

	case isBetweenOp(p.op):
		if !p.value.IsBound() {
			return left + " " + p.op + " ? AND ?", nil
		}
		pair, _ := pairOf(p.value.Get())
		return left + " " + p.op + sqlfmt.Format(" ? AND ?", pair, false, sqlfmt.LocalTimeZone), nil

	case p.ref != "":
		right, err := column.Render(p.ref, scope)
		if err != nil {
			return "", err
		}
		return left + " " + p.op + " " + right, nil

	case isInOp(p.op):
		if !p.value.IsBound() {
			return left + " " + p.op + " (?)", nil
		}
		return left + " " + p.op + " (" + escapeValue(p.value.Get()) + ")", nil

	case !p.value.IsBound():
		return left + " " + p.op + " ?", nil
	}
	return left + " " + p.op + " " + escapeValue(p.value.Get()), nil
}

// escapeValue renders a bound value inline. Maps are quoted as text rather
// than expanded into an assignment list.
func escapeValue(v any) string {
	return sqlfmt.Escape(v, true, sqlfmt.LocalTimeZone)
}

// predicates adds the WHERE/ON/HAVING methods to a builder type T. Every
// method appends to tree and returns self so calls chain on T.
type predicates[T any] struct {
	self T
	st   *state
	tree *clauseTree
}

func newPredicates[T any](self T, st *state, tree *clauseTree) predicates[T] {
	return predicates[T]{self: self, st: st, tree: tree}
}

// Where appends column op value joined with AND. Without a value the
// predicate renders a ? placeholder; with one the value is escaped inline.
// An empty op means "=".
func (p predicates[T]) Where(col, op string, value ...any) T {
	p.where("Where", false, col, op, value)
	return p.self
}

// AndWhere is Where.
func (p predicates[T]) AndWhere(col, op string, value ...any) T {
	p.where("AndWhere", false, col, op, value)
	return p.self
}

// Invalid records a validation error attributed to op, failing the
// statement the same way a rejected argument would.
func (p predicates[T]) Invalid(op, format string, args ...any) T {
	p.st.record(validationf(op, format, args...))
	return p.self
}

// OrWhere is Where joined with OR.
func (p predicates[T]) OrWhere(col, op string, value ...any) T {
	p.where("OrWhere", true, col, op, value)
	return p.self
}

// OnColumn appends first op second joined with AND, both sides rendered as
// columns. The operator defaults to "=".
func (p predicates[T]) OnColumn(first, second string, op ...string) T {
	p.onColumn("OnColumn", false, first, second, op)
	return p.self
}

// OrColumn is OnColumn joined with OR.
func (p predicates[T]) OrColumn(first, second string, op ...string) T {
	p.onColumn("OrColumn", true, first, second, op)
	return p.self
}

// Clause appends the predicates fn adds to a fresh child as one
// parenthesized group joined with AND.
func (p predicates[T]) Clause(fn func(*Clause)) T {
	p.group("Clause", false, fn)
	return p.self
}

// AndClause is Clause.
func (p predicates[T]) AndClause(fn func(*Clause)) T {
	p.group("AndClause", false, fn)
	return p.self
}

// OrClause is Clause joined with OR.
func (p predicates[T]) OrClause(fn func(*Clause)) T {
	p.group("OrClause", true, fn)
	return p.self
}

func (p predicates[T]) where(op string, or bool, col, operator string, args []any) {
	if p.st.failed() {
		return
	}
	pred, err := newPredicate(op, col, operator, args)
	if err != nil {
		p.st.record(err)
		return
	}
	pred.or = or
	p.tree.preds = append(p.tree.preds, pred)
}

func newPredicate(op, col, operator string, args []any) (predicate, error) {
	if strings.TrimSpace(col) == "" {
		return predicate{}, validationf(op, "column is required")
	}
	norm, ok := normalizeOperator(operator)
	if !ok {
		return predicate{}, validationf(op, "unknown operator %q", operator)
	}
	value, err := valueOf(op, args)
	if err != nil {
		return predicate{}, err
	}
	if isNullOp(norm) && value.IsBound() {
		return predicate{}, validationf(op, "%s takes no value", norm)
	}
	if isBetweenOp(norm) && value.IsBound() {
		if _, ok := pairOf(value.Get()); !ok {
			return predicate{}, validationf(op, "%s expects a two-element sequence", norm)
		}
	}
	return predicate{column: col, op: norm, value: value}, nil
}

func (p predicates[T]) onColumn(op string, or bool, first, second string, operator []string) {
	if p.st.failed() {
		return
	}
	if strings.TrimSpace(first) == "" {
		p.st.record(validationf(op, "first column is required"))
		return
	}
	if strings.TrimSpace(second) == "" {
		p.st.record(validationf(op, "second column is required"))
		return
	}
	if len(operator) > 1 {
		p.st.record(validationf(op, "expected at most one operator, got %d", len(operator)))
		return
	}
	norm := OpEq
	if len(operator) == 1 {
		var ok bool
		if norm, ok = normalizeOperator(operator[0]); !ok || isNullOp(norm) || isBetweenOp(norm) || isInOp(norm) {
			p.st.record(validationf(op, "operator %q cannot compare two columns", operator[0]))
			return
		}
	}
	p.tree.preds = append(p.tree.preds, predicate{or: or, column: first, op: norm, ref: second})
}

func (p predicates[T]) group(op string, or bool, fn func(*Clause)) {
	if p.st.failed() {
		return
	}
	if fn == nil {
		p.st.record(validationf(op, "clause function is required"))
		return
	}
	child := newClause(p.st)
	fn(child)
	p.tree.preds = append(p.tree.preds, predicate{or: or, group: child.tree})
}

// Clause is a standalone predicate tree, handed to the functions passed to
// Clause, Having and their variants.
type Clause struct {
	predicates[*Clause]
	st   *state
	tree *clauseTree
}

// NewClause returns an empty predicate tree.
func NewClause() *Clause {
	return newClause(newState())
}

func newClause(st *state) *Clause {
	c := &Clause{st: st, tree: &clauseTree{}}
	c.predicates = newPredicates(c, st, c.tree)
	return c
}

// Err returns the first error recorded by the tree or the statement it
// belongs to.
func (c *Clause) Err() error { return c.st.err }

// Build renders the tree. A nil scope leaves bare names unqualified.
func (c *Clause) Build(scope *column.Scope) (string, error) {
	if c.st.err != nil {
		return "", c.st.err
	}
	return c.tree.render(scope)
}
