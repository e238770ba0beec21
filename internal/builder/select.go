package builder

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/querykit/internal/column"
	"github.com/atlekbai/querykit/internal/sqlfmt"
)

// Join types accepted by JoinType.
const (
	JoinDefault      = ""
	JoinInner        = "INNER"
	JoinCross        = "CROSS"
	JoinLeft         = "LEFT"
	JoinRight        = "RIGHT"
	JoinLeftOuter    = "LEFT OUTER"
	JoinRightOuter   = "RIGHT OUTER"
	JoinNatural      = "NATURAL"
	JoinNaturalLeft  = "NATURAL LEFT"
	JoinNaturalRight = "NATURAL RIGHT"
)

var joinTypes = map[string]struct{}{
	JoinDefault: {}, JoinInner: {}, JoinCross: {}, JoinLeft: {}, JoinRight: {},
	JoinLeftOuter: {}, JoinRightOuter: {}, JoinNatural: {}, JoinNaturalLeft: {}, JoinNaturalRight: {},
}

type havingGroup struct {
	tree *clauseTree
	or   bool
}

type selectState struct {
	table   string
	alias   string
	columns columnList
	joins   []*Join
	where   *clauseTree
	groupBy []orderItem
	having  []havingGroup
	orderBy []orderItem
	limits  limitState
}

// selectCore adds the select list, join, grouping, HAVING and ordering
// methods to a builder type T.
type selectCore[T any] struct {
	self T
	st   *state
	s    *selectState
}

// Select appends entries to the select list. Each argument may be a
// comma-separated list; empty entries are skipped and repeated entries are
// kept once. An entry may carry one "AS name" suffix.
func (c selectCore[T]) Select(columns ...string) T {
	if c.st.failed() {
		return c.self
	}
	if err := c.s.columns.add("Select", columns); err != nil {
		c.st.record(err)
	}
	return c.self
}

// Join appends a JOIN of table configured by fn. fn may be nil.
func (c selectCore[T]) Join(table string, fn func(*Join)) T {
	return c.join("Join", JoinDefault, table, fn)
}

// LeftJoin appends a LEFT JOIN.
func (c selectCore[T]) LeftJoin(table string, fn func(*Join)) T {
	return c.join("LeftJoin", JoinLeft, table, fn)
}

// RightJoin appends a RIGHT JOIN.
func (c selectCore[T]) RightJoin(table string, fn func(*Join)) T {
	return c.join("RightJoin", JoinRight, table, fn)
}

// InnerJoin appends an INNER JOIN.
func (c selectCore[T]) InnerJoin(table string, fn func(*Join)) T {
	return c.join("InnerJoin", JoinInner, table, fn)
}

// JoinType appends a join of the given type, such as "LEFT OUTER".
func (c selectCore[T]) JoinType(typ, table string, fn func(*Join)) T {
	return c.join("JoinType", typ, table, fn)
}

func (c selectCore[T]) join(op, typ, table string, fn func(*Join)) T {
	if c.st.failed() {
		return c.self
	}
	typ = strings.ToUpper(strings.Join(strings.Fields(typ), " "))
	if _, ok := joinTypes[typ]; !ok {
		c.st.record(validationf(op, "unknown join type %q", typ))
		return c.self
	}
	if strings.TrimSpace(table) == "" {
		c.st.record(validationf(op, "table is required"))
		return c.self
	}
	j := newJoin(c.st, typ)
	j.table = table
	if fn != nil {
		fn(j)
	}
	c.s.joins = append(c.s.joins, j)
	return c.self
}

// JoinSelect appends a JOIN whose source is the select sub builds. The
// subselect must be given a result alias with SetAlias. on configures the
// join itself and may be nil.
func (c selectCore[T]) JoinSelect(sub func(*SubSelect), on func(*Join)) T {
	if c.st.failed() {
		return c.self
	}
	if sub == nil {
		c.st.record(validationf("JoinSelect", "subselect function is required"))
		return c.self
	}
	ss := &SubSelect{Select: newSelect(c.st)}
	sub(ss)
	j := newJoin(c.st, JoinDefault)
	j.sub = ss
	if on != nil {
		on(j)
	}
	c.s.joins = append(c.s.joins, j)
	return c.self
}

// GroupBy appends ascending GROUP BY expressions.
func (c selectCore[T]) GroupBy(exprs ...string) T {
	return c.group("GroupBy", false, exprs)
}

// GroupByDesc appends descending GROUP BY expressions.
func (c selectCore[T]) GroupByDesc(exprs ...string) T {
	return c.group("GroupByDesc", true, exprs)
}

func (c selectCore[T]) group(op string, desc bool, exprs []string) T {
	if c.st.failed() {
		return c.self
	}
	items, err := appendOrder(op, c.s.groupBy, desc, exprs)
	if err != nil {
		c.st.record(err)
		return c.self
	}
	c.s.groupBy = items
	return c.self
}

// OrderBy appends ascending ORDER BY expressions.
func (c selectCore[T]) OrderBy(exprs ...string) T {
	return c.order("OrderBy", false, exprs)
}

// OrderByDesc appends descending ORDER BY expressions.
func (c selectCore[T]) OrderByDesc(exprs ...string) T {
	return c.order("OrderByDesc", true, exprs)
}

func (c selectCore[T]) order(op string, desc bool, exprs []string) T {
	if c.st.failed() {
		return c.self
	}
	items, err := appendOrder(op, c.s.orderBy, desc, exprs)
	if err != nil {
		c.st.record(err)
		return c.self
	}
	c.s.orderBy = items
	return c.self
}

// Having appends the predicates fn adds to HAVING, joined with AND.
func (c selectCore[T]) Having(fn func(*Clause)) T {
	return c.having("Having", false, fn)
}

// OrHaving appends the predicates fn adds to HAVING, joined with OR.
func (c selectCore[T]) OrHaving(fn func(*Clause)) T {
	return c.having("OrHaving", true, fn)
}

func (c selectCore[T]) having(op string, or bool, fn func(*Clause)) T {
	if c.st.failed() {
		return c.self
	}
	if fn == nil {
		c.st.record(validationf(op, "having function is required"))
		return c.self
	}
	child := newClause(c.st)
	fn(child)
	c.s.having = append(c.s.having, havingGroup{tree: child.tree, or: or})
	return c.self
}

// Select builds a SELECT statement:
//
//	SELECT fields FROM table [AS alias] [joins] [WHERE ...] [GROUP BY ...]
//	[HAVING ...] [ORDER BY ...] [LIMIT n] [OFFSET n]
type Select struct {
	predicates[*Select]
	limits[*Select]
	selectCore[*Select]

	st *state
	s  *selectState
}

// NewSelect returns an empty SELECT builder.
func NewSelect() *Select {
	return newSelect(newState())
}

func newSelect(st *state) *Select {
	s := &Select{st: st, s: &selectState{where: &clauseTree{}}}
	s.predicates = newPredicates(s, st, s.s.where)
	s.limits = newLimits(s, st, &s.s.limits, true)
	s.selectCore = selectCore[*Select]{self: s, st: st, s: s.s}
	return s
}

// From sets the table to select from.
func (s *Select) From(table string) *Select {
	if s.st.failed() {
		return s
	}
	if strings.TrimSpace(table) == "" {
		s.st.record(validationf("From", "table is required"))
		return s
	}
	s.s.table = table
	return s
}

// As sets the table alias. Bare column names are qualified with it.
func (s *Select) As(alias string) *Select {
	if s.st.failed() {
		return s
	}
	s.s.alias = strings.TrimSpace(alias)
	return s
}

// Table returns the table set by From.
func (s *Select) Table() string { return s.s.table }

// Err returns the first error recorded by the builder.
func (s *Select) Err() error { return s.st.err }

// Build renders the statement.
func (s *Select) Build() (string, error) {
	return s.build(s.s.table)
}

// ToSql implements squirrel.Sqlizer. Values are rendered inline, so the
// argument list is always nil.
func (s *Select) ToSql() (string, []any, error) {
	sql, err := s.Build()
	return sql, nil, err
}

func (s *Select) build(table string) (string, error) {
	if s.st.err != nil {
		return "", s.st.err
	}
	return s.render(nil, table)
}

// render renders the statement. parent is the scope of the enclosing
// statement when s is a join source; the ignored set is shared with it.
func (s *Select) render(parent *column.Scope, table string) (string, error) {
	if table == "" {
		return "", statef("Build", "no table, call From first")
	}
	st := s.s

	// With joins every bare name needs a qualifier.
	alias := st.alias
	if alias == "" && len(st.joins) > 0 {
		alias = table
	}
	var scope *column.Scope
	if parent != nil {
		scope = parent.WithAlias(alias)
	} else {
		scope = column.NewScope(alias)
	}
	if alias != "" {
		scope.Ignore(alias)
	}
	scope.Ignore(st.columns.resultAliases()...)
	for _, j := range st.joins {
		if j.alias != "" {
			scope.Ignore(j.alias)
		}
		scope.Ignore(j.columns.resultAliases()...)
	}

	fields, err := st.columns.render(scope, nil)
	if err != nil {
		return "", err
	}
	for _, j := range st.joins {
		if fields, err = j.columns.render(scope.WithAlias(j.resolveAlias()), fields); err != nil {
			return "", err
		}
	}
	if len(fields) == 0 {
		fields = []string{"*"}
	}

	from := sqlfmt.EscapeID(table, false)
	if st.alias != "" {
		from += " AS " + sqlfmt.EscapeID(st.alias, false)
	}
	qb := sq.Select(fields...).From(from).PlaceholderFormat(sq.Question)

	for _, j := range st.joins {
		sql, err := j.render(scope)
		if err != nil {
			return "", err
		}
		qb = qb.JoinClause(sql)
	}

	if !st.where.empty() {
		where, err := st.where.render(scope)
		if err != nil {
			return "", err
		}
		qb = qb.Where(where)
	}

	groupBy, err := renderOrder(st.groupBy, scope, nil)
	if err != nil {
		return "", err
	}
	for _, j := range st.joins {
		if groupBy, err = renderOrder(j.groupBy, scope.WithAlias(j.resolveAlias()), groupBy); err != nil {
			return "", err
		}
	}
	if len(groupBy) > 0 {
		qb = qb.GroupBy(groupBy...)
	}

	having, err := renderHaving(st.having, scope)
	if err != nil {
		return "", err
	}
	if having != "" {
		qb = qb.Having(having)
	}

	orderBy, err := renderOrder(st.orderBy, scope, nil)
	if err != nil {
		return "", err
	}
	for _, j := range st.joins {
		if orderBy, err = renderOrder(j.orderBy, scope.WithAlias(j.resolveAlias()), orderBy); err != nil {
			return "", err
		}
	}
	if len(orderBy) > 0 {
		qb = qb.OrderBy(orderBy...)
	}

	if st.limits.limit > 0 {
		qb = qb.Limit(uint64(st.limits.limit))
	}
	if st.limits.offset > 0 {
		qb = qb.Offset(uint64(st.limits.offset))
	}
	sql, _, err := qb.ToSql()
	return sql, err
}

// renderHaving joins the HAVING groups, each with the connective it was
// added with.
func renderHaving(groups []havingGroup, scope *column.Scope) (string, error) {
	var b strings.Builder
	for _, h := range groups {
		if h.tree.empty() {
			continue
		}
		sql, err := h.tree.render(scope)
		if err != nil {
			return "", err
		}
		switch {
		case b.Len() == 0:
		case h.or:
			b.WriteString(" OR ")
		default:
			b.WriteString(" AND ")
		}
		b.WriteString(sql)
	}
	return b.String(), nil
}

// SubSelect is a SELECT used as a join source. It renders as
// (SELECT ...) AS `alias` and must be given its result alias.
type SubSelect struct {
	*Select
	result string
}

// SetAlias sets the name the subselect result is joined as.
func (s *SubSelect) SetAlias(alias string) *SubSelect {
	if s.st.failed() {
		return s
	}
	if strings.TrimSpace(alias) == "" {
		s.st.record(validationf("SetAlias", "alias is required"))
		return s
	}
	s.result = strings.TrimSpace(alias)
	return s
}

// Build renders the parenthesized subselect with its result alias.
func (s *SubSelect) Build() (string, error) {
	if s.st.err != nil {
		return "", s.st.err
	}
	return s.render(nil)
}

// ToSql implements squirrel.Sqlizer.
func (s *SubSelect) ToSql() (string, []any, error) {
	sql, err := s.Build()
	return sql, nil, err
}

func (s *SubSelect) render(parent *column.Scope) (string, error) {
	if s.result == "" {
		return "", statef("JoinSelect", "a joined select needs a result alias, call SetAlias")
	}
	sql, err := s.Select.render(parent, s.s.table)
	if err != nil {
		return "", err
	}
	return "(" + sql + ") AS " + sqlfmt.EscapeID(s.result, true), nil
}

// Join configures one JOIN of a Select. Predicates added to it form the ON
// clause; columns, GROUP BY and ORDER BY items added to it are merged into
// the enclosing statement after its own and qualified with the join alias.
type Join struct {
	predicates[*Join]

	st      *state
	typ     string
	table   string
	sub     *SubSelect
	alias   string
	columns columnList
	groupBy []orderItem
	orderBy []orderItem
	on      *clauseTree
}

func newJoin(st *state, typ string) *Join {
	j := &Join{st: st, typ: typ, on: &clauseTree{}}
	j.predicates = newPredicates(j, st, j.on)
	return j
}

// As sets the join alias.
func (j *Join) As(alias string) *Join {
	if j.st.failed() {
		return j
	}
	j.alias = strings.TrimSpace(alias)
	return j
}

// Select appends entries qualified with the join alias to the select list.
func (j *Join) Select(columns ...string) *Join {
	if j.st.failed() {
		return j
	}
	if err := j.columns.add("Join.Select", columns); err != nil {
		j.st.record(err)
	}
	return j
}

// GroupBy appends ascending GROUP BY expressions.
func (j *Join) GroupBy(exprs ...string) *Join { return j.group("Join.GroupBy", false, exprs) }

// GroupByDesc appends descending GROUP BY expressions.
func (j *Join) GroupByDesc(exprs ...string) *Join { return j.group("Join.GroupByDesc", true, exprs) }

// OrderBy appends ascending ORDER BY expressions.
func (j *Join) OrderBy(exprs ...string) *Join { return j.order("Join.OrderBy", false, exprs) }

// OrderByDesc appends descending ORDER BY expressions.
func (j *Join) OrderByDesc(exprs ...string) *Join { return j.order("Join.OrderByDesc", true, exprs) }

func (j *Join) group(op string, desc bool, exprs []string) *Join {
	if j.st.failed() {
		return j
	}
	items, err := appendOrder(op, j.groupBy, desc, exprs)
	if err != nil {
		j.st.record(err)
		return j
	}
	j.groupBy = items
	return j
}

func (j *Join) order(op string, desc bool, exprs []string) *Join {
	if j.st.failed() {
		return j
	}
	items, err := appendOrder(op, j.orderBy, desc, exprs)
	if err != nil {
		j.st.record(err)
		return j
	}
	j.orderBy = items
	return j
}

// Err returns the first error recorded by the enclosing statement.
func (j *Join) Err() error { return j.st.err }

// resolveAlias is the qualifier for names declared on the join: its alias,
// else the subselect result alias, else the table name.
func (j *Join) resolveAlias() string {
	switch {
	case j.alias != "":
		return j.alias
	case j.sub != nil:
		return j.sub.result
	}
	return j.table
}

func (j *Join) render(scope *column.Scope) (string, error) {
	var b strings.Builder
	if j.typ != "" {
		b.WriteString(j.typ)
		b.WriteByte(' ')
	}
	b.WriteString("JOIN ")

	if j.sub != nil {
		sql, err := j.sub.render(scope)
		if err != nil {
			return "", err
		}
		b.WriteString(sql)
	} else {
		b.WriteString(sqlfmt.EscapeID(j.table, false))
		if j.alias != "" {
			b.WriteString(" AS ")
			b.WriteString(sqlfmt.EscapeID(j.alias, false))
		}
	}

	if !j.on.empty() {
		on, err := j.on.render(scope)
		if err != nil {
			return "", err
		}
		b.WriteString(" ON ")
		b.WriteString(on)
	}
	return b.String(), nil
}
