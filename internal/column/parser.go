// Package column parses column expressions such as `SUM(a.price)` or
// `a.qty * b.rate` and renders them back with qualified, backtick-quoted
// identifiers.
package column

import "fmt"

// SyntaxError reports a malformed column expression. Pos is the rune offset
// of the offending character within the original expression.
type SyntaxError struct {
	Msg string
	Pos int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

// Parse parses a column expression into a Node.
//
// The scan is a single left-to-right pass. Arithmetic operators end the left
// operand and recurse for the right one, so chains are right-associative and
// there is no precedence. Parentheses are only understood as call syntax; a
// bare "(a + b)" group is rejected.
func Parse(expr string) (Node, error) {
	p := &parser{src: []rune(expr)}
	node, err := p.parseExpr(0, len(p.src))
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, p.errorf(0, "empty expression")
	}
	return node, nil
}

type parser struct {
	src []rune
}

func isOperator(ch rune) bool {
	switch ch {
	case '+', '-', '*', '/', '%':
		return true
	}
	return false
}

// parseExpr parses src[lo:hi]. A blank range yields a nil node.
func (p *parser) parseExpr(lo, hi int) (Node, error) {
	var (
		node    Node
		text    []rune
		stopped bool // whitespace followed the pending text
	)

	for at := lo; at < hi; {
		ch := p.src[at]

		switch {
		case ch == '*' && node == nil && p.starOperand(text, stopped, at, hi):
			text = append(text, ch)
			stopped = true
			at++

		case isOperator(ch):
			left := node
			if left == nil && len(text) > 0 {
				left = &Ident{Name: string(text)}
			}
			if left == nil {
				return nil, p.errorf(at, "missing left operand")
			}
			right, err := p.parseExpr(at+1, hi)
			if err != nil {
				return nil, err
			}
			if right == nil {
				return nil, p.errorf(at, "missing right operand")
			}
			return &BinaryOp{Op: string(ch), Left: left, Right: right}, nil

		case ch == '(':
			if node != nil {
				return nil, p.errorf(at, "invalid char")
			}
			if len(text) == 0 {
				return nil, p.errorf(at, "missing function name")
			}
			call, end, err := p.parseCall(string(text), at, hi)
			if err != nil {
				return nil, err
			}
			node, text, stopped = call, nil, false
			at = end

		case ch == ')' || ch == ',':
			return nil, p.errorf(at, "unexpected %q", ch)

		case ch == '"' || ch == '\'':
			if node != nil || len(text) > 0 {
				return nil, p.errorf(at, "invalid char")
			}
			end := p.quoteEnd(at, hi)
			if end == -1 {
				return nil, p.errorf(at, "bad string")
			}
			node = &Literal{Value: string(p.src[at : end+1])}
			at = end + 1

		case ch <= ' ':
			if len(text) > 0 {
				stopped = true
			}
			at++

		default:
			if node != nil || stopped {
				return nil, p.errorf(at, "invalid char")
			}
			text = append(text, ch)
			at++
		}
	}

	if node != nil {
		return node, nil
	}
	if len(text) > 0 {
		return &Ident{Name: string(text)}, nil
	}
	return nil, nil
}

// starOperand reports whether the '*' at position at is a star leaf rather
// than multiplication: either the whole operand ("COUNT(*)") or the last
// segment of a qualified path ("u.*").
func (p *parser) starOperand(text []rune, stopped bool, at, hi int) bool {
	if len(text) == 0 {
		return p.blank(at+1, hi)
	}
	return !stopped && text[len(text)-1] == '.'
}

// parseCall parses the argument list of name( starting at the open paren.
// It returns the call and the position right after the closing paren.
func (p *parser) parseCall(name string, open, hi int) (Node, int, error) {
	var (
		args  []Node
		depth = 1
		start = open + 1
	)

	for at := open + 1; at < hi; at++ {
		switch p.src[at] {
		case '(':
			depth++
		case ')':
			depth--
			if depth > 0 {
				continue
			}
			arg, err := p.parseExpr(start, at)
			if err != nil {
				return nil, 0, err
			}
			if arg == nil && len(args) > 0 {
				return nil, 0, p.errorf(at, "missing argument")
			}
			if arg != nil {
				args = append(args, arg)
			}
			return &Call{Name: name, Args: args}, at + 1, nil
		case ',':
			if depth > 1 {
				continue
			}
			arg, err := p.parseExpr(start, at)
			if err != nil {
				return nil, 0, err
			}
			if arg == nil {
				return nil, 0, p.errorf(at, "missing argument")
			}
			args = append(args, arg)
			start = at + 1
		case '"', '\'':
			end := p.quoteEnd(at, hi)
			if end == -1 {
				return nil, 0, p.errorf(at, "bad string")
			}
			at = end
		}
	}

	return nil, 0, p.errorf(open, "unclosed call %q", name)
}

// quoteEnd returns the position of the quote closing the string that opens
// at start, or -1 if it is unterminated. A backslash toggles escaping, so
// `\'` does not close the string while `\\'` does.
func (p *parser) quoteEnd(start, hi int) int {
	quote := p.src[start]
	escaped := false
	for at := start + 1; at < hi; at++ {
		ch := p.src[at]
		if ch == '\\' {
			escaped = !escaped
			continue
		}
		if ch == quote && !escaped {
			return at
		}
		escaped = false
	}
	return -1
}

func (p *parser) blank(lo, hi int) bool {
	for at := lo; at < hi; at++ {
		if p.src[at] > ' ' {
			return false
		}
	}
	return true
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Pos: pos}
}
