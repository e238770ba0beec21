package column

import (
	"regexp"
	"strings"

	"github.com/atlekbai/querykit/internal/sqlfmt"
)

var (
	verbatimRe = regexp.MustCompile(`^[\d"']`)
	keywordRe  = regexp.MustCompile(`^(null|false|true)$`)
)

// Stringify renders n back to SQL text. Numbers, quoted text and the
// keywords null, false and true are emitted verbatim; every other leaf is
// passed through resolve.
func Stringify(n Node, resolve func(string) string) string {
	var b strings.Builder
	writeNode(&b, n, resolve)
	return b.String()
}

func writeNode(b *strings.Builder, n Node, resolve func(string) string) {
	switch n := n.(type) {
	case *Literal:
		b.WriteString(n.Value)
	case *Ident:
		if verbatimRe.MatchString(n.Name) || keywordRe.MatchString(n.Name) {
			b.WriteString(n.Name)
			return
		}
		b.WriteString(resolve(n.Name))
	case *Call:
		b.WriteString(n.Name)
		b.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeNode(b, arg, resolve)
		}
		b.WriteByte(')')
	case *BinaryOp:
		writeNode(b, n.Left, resolve)
		b.WriteByte(' ')
		b.WriteString(n.Op)
		b.WriteByte(' ')
		writeNode(b, n.Right, resolve)
	}
}

// Scope is the resolution context of a statement: the alias bare names are
// qualified with, and the names that must never be qualified (result aliases
// and join aliases declared earlier in the statement).
//
// Scopes derived with WithAlias share the ignored set of their parent, so a
// name ignored anywhere in a statement is ignored everywhere in it.
type Scope struct {
	Alias   string
	ignored map[string]struct{}
}

// NewScope returns a scope qualifying bare names with alias. An empty alias
// leaves bare names unqualified.
func NewScope(alias string) *Scope {
	return &Scope{Alias: alias, ignored: make(map[string]struct{})}
}

// Ignore exempts names from qualification.
func (s *Scope) Ignore(names ...string) {
	if s.ignored == nil {
		s.ignored = make(map[string]struct{})
	}
	for _, name := range names {
		s.ignored[name] = struct{}{}
	}
}

// Ignored reports whether name is exempt from qualification.
func (s *Scope) Ignored(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ignored[name]
	return ok
}

// WithAlias returns a scope with a different alias sharing s's ignored set.
func (s *Scope) WithAlias(alias string) *Scope {
	if s == nil {
		return NewScope(alias)
	}
	if s.ignored == nil {
		s.ignored = make(map[string]struct{})
	}
	return &Scope{Alias: alias, ignored: s.ignored}
}

// Resolve quotes a bare identifier. Ignored names are quoted as a single
// identifier. Otherwise the name is split on dots, a single segment is
// prefixed with the segments of the alias, and each segment is quoted,
// except a trailing star.
func (s *Scope) Resolve(name string) string {
	if s.Ignored(name) {
		return sqlfmt.EscapeID(name, true)
	}
	if name == "*" {
		return name
	}

	segments := strings.Split(name, ".")
	if len(segments) == 1 && s != nil && s.Alias != "" {
		segments = append(strings.Split(s.Alias, "."), segments...)
	}
	for i, seg := range segments {
		if seg == "*" && i == len(segments)-1 {
			continue
		}
		segments[i] = sqlfmt.EscapeID(seg, true)
	}
	return strings.Join(segments, ".")
}

// Render parses expr and renders it with identifiers resolved in scope.
// A nil scope qualifies nothing.
func Render(expr string, scope *Scope) (string, error) {
	node, err := Parse(expr)
	if err != nil {
		return "", err
	}
	return Stringify(node, scope.Resolve), nil
}
