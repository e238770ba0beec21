package column

// Kind discriminates the concrete type of a Node.
type Kind int

const (
	KindIdent   Kind = iota // bare text: dotted path, number, keyword
	KindLiteral             // quoted string
	KindCall                // name(arg, ...)
	KindBinary              // left op right
)

var kindNames = map[Kind]string{
	KindIdent:   "ident",
	KindLiteral: "literal",
	KindCall:    "call",
	KindBinary:  "binary",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Node is the interface all column expression nodes implement.
type Node interface {
	Kind() Kind
	node() // marker method
}

// Ident is unquoted source text. Whether it names a column or is a numeric
// or keyword literal is decided when the node is rendered.
type Ident struct {
	Name string
}

// Literal is a quoted string, kept verbatim including its quotes.
type Literal struct {
	Value string
}

// Call represents name(arg1, arg2, ...).
type Call struct {
	Name string
	Args []Node
}

// BinaryOp represents left op right, op being one of + - * / %.
// Chains lean right: a+b+c is {+, a, {+, b, c}}.
type BinaryOp struct {
	Op    string
	Left  Node
	Right Node
}

func (*Ident) Kind() Kind    { return KindIdent }
func (*Literal) Kind() Kind  { return KindLiteral }
func (*Call) Kind() Kind     { return KindCall }
func (*BinaryOp) Kind() Kind { return KindBinary }

func (*Ident) node()    {}
func (*Literal) node()  {}
func (*Call) node()     {}
func (*BinaryOp) node() {}
