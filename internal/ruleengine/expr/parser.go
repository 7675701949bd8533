// Package expr parses and evaluates the boolean targeting language of complex
// pricing rules:
//
//	category:15 AND (price >= 100000 OR tag:4) AND NOT on_sale
//
// Predicates: product:ID (matches the product or its parent), category:ID,
// tag:ID, type:NAME, on_sale, and price OP NUMBER with OP one of
// = == != < <= > >=. Operators: NOT binds tighter than AND, AND tighter than OR.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

// SyntaxError reports where parsing stopped.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

// Expression is a parsed, reusable expression.
type Expression struct {
	source string
	root   *Node
}

// Parse compiles src. An empty expression is an error.
func Parse(src string) (*Expression, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Pos: 0, Msg: "empty expression"}
	}
	root, err := p.parseOr(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s %q", t.kind, t.text)}
	}
	return &Expression{source: src, root: root}, nil
}

// MustParse is Parse for expressions known to be valid, such as test fixtures.
func MustParse(src string) *Expression {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Source returns the text the expression was parsed from.
func (e *Expression) Source() string { return e.source }

// Root returns the syntax tree.
func (e *Expression) Root() *Node { return e.root }

// String renders the expression in canonical form.
func (e *Expression) String() string { return Accept[string](e.root, printer{}) }

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind) (token, error) {
	t := p.next()
	if t.kind != k {
		return t, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected %s, found %s %q", k, t.kind, t.text)}
	}
	return t, nil
}

func (p *parser) parseOr(depth int) (*Node, error) {
	return p.parseBinary(depth, tokOr, KindOr, p.parseAnd)
}

func (p *parser) parseAnd(depth int) (*Node, error) {
	return p.parseBinary(depth, tokAnd, KindAnd, p.parseUnary)
}

// parseBinary folds a run of same-precedence operands into one n-ary node.
func (p *parser) parseBinary(depth int, op tokenKind, kind Kind, operand func(int) (*Node, error)) (*Node, error) {
	first, err := operand(depth)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != op {
		return first, nil
	}
	n := &Node{Kind: kind, Children: []*Node{first}, Pos: first.Pos}
	for p.peek().kind == op {
		p.next()
		c, err := operand(depth)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	return n, nil
}

func (p *parser) parseUnary(depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, &SyntaxError{Pos: p.peek().pos, Msg: "expression nested too deeply"}
	}
	t := p.peek()
	switch t.kind {
	case tokNot:
		p.next()
		c, err := p.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindNot, Children: []*Node{c}, Pos: t.pos}, nil
	case tokLParen:
		p.next()
		n, err := p.parseOr(depth + 1)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return n, nil
	default:
		return p.parsePredicate()
	}
}

func (p *parser) parsePredicate() (*Node, error) {
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	field := Field(strings.ToLower(name.text))
	n := &Node{Kind: KindPredicate, Field: field, Pos: name.pos}

	switch field {
	case FieldOnSale:
		return n, nil

	case FieldPrice:
		op, err := p.expect(tokCompare)
		if err != nil {
			return nil, err
		}
		num, err := p.expect(tokNumber)
		if err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(num.text)
		if err != nil {
			return nil, &SyntaxError{Pos: num.pos, Msg: fmt.Sprintf("invalid number %q", num.text)}
		}
		n.Op = normalizeOp(op.text)
		n.Number = v
		return n, nil

	case FieldProduct, FieldCategory, FieldTag:
		if _, err := p.expect(tokColon); err != nil {
			return nil, err
		}
		num, err := p.expect(tokNumber)
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseInt(num.text, 10, 64)
		if err != nil || id <= 0 {
			return nil, &SyntaxError{Pos: num.pos, Msg: fmt.Sprintf("invalid %s id %q", field, num.text)}
		}
		n.ID = id
		return n, nil

	case FieldType:
		if _, err := p.expect(tokColon); err != nil {
			return nil, err
		}
		v, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		n.Text = strings.ToLower(v.text)
		return n, nil
	}

	return nil, &SyntaxError{Pos: name.pos, Msg: fmt.Sprintf("unknown field %q", name.text)}
}

func normalizeOp(op string) string {
	if op == "==" {
		return "="
	}
	return op
}
