// Package cond evaluates small boolean guard expressions against a state
// snapshot. Evaluation is total over well-formed expressions: a key missing
// from the snapshot resolves to a distinguished unset value rather than
// causing an error, so guards can be written against facts that may not
// exist yet.
//
// Grammar, lowest to highest precedence:
//
//	expr       := orExpr
//	orExpr     := andExpr ("||" andExpr)*
//	andExpr    := unary ("&&" unary)*
//	unary      := "!" unary | primary
//	primary    := "(" expr ")" | comparison
//	comparison := operand (("==" | "!=" | ">=" | "<=" | ">" | "<") operand)?
//	operand    := STRING | NUMBER | "true" | "false" | IDENT
//
// Note that "&&" binds tighter than "||", the conventional precedence. The
// legacy string-splitting evaluator this replaces resolved mixed operators
// left-to-right instead; expressions mixing both without parentheses may
// read differently under it.
package cond

import (
	"fmt"
	"strings"
)

// Lookup resolves identifiers during evaluation. The second return reports
// whether the key is present at all; absence is meaningful, not an error.
type Lookup interface {
	Var(name string) (any, bool)
}

// MapLookup adapts a plain map for evaluation.
type MapLookup map[string]any

func (m MapLookup) Var(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Evaluate parses and evaluates an expression against vars. It returns an
// error only for malformed syntax; a well-formed expression evaluates to a
// boolean over any snapshot, including one with every key missing. The
// literals "always" and "never" short-circuit without parsing.
func Evaluate(expr string, vars Lookup) (bool, error) {
	trimmed := strings.TrimSpace(expr)
	if strings.EqualFold(trimmed, "always") {
		return true, nil
	}
	if strings.EqualFold(trimmed, "never") {
		return false, nil
	}
	root, err := Parse(trimmed)
	if err != nil {
		return false, err
	}
	return root.eval(vars).truthy(), nil
}

// Parse compiles an expression without evaluating it, for authoring-time
// validation of guards.
func Parse(expr string) (Expr, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if strings.EqualFold(trimmed, "always") {
		return literalNode{val: boolValue(true)}, nil
	}
	if strings.EqualFold(trimmed, "never") {
		return literalNode{val: boolValue(false)}, nil
	}
	tokens, err := lex(trimmed)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.typ != tokenEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", tok.text, tok.pos)
	}
	return root, nil
}

// Expr is a compiled expression.
type Expr interface {
	eval(vars Lookup) value
}

// Eval evaluates a previously parsed expression.
func Eval(e Expr, vars Lookup) bool {
	return e.eval(vars).truthy()
}

type literalNode struct {
	val value
}

func (n literalNode) eval(Lookup) value { return n.val }

type identNode struct {
	name string
}

func (n identNode) eval(vars Lookup) value {
	raw, ok := vars.Var(n.name)
	if !ok {
		return unsetValue
	}
	return fromState(raw)
}

type notNode struct {
	child Expr
}

func (n notNode) eval(vars Lookup) value {
	return boolValue(!n.child.eval(vars).truthy())
}

type logicalNode struct {
	op       tokenType // tokenAnd or tokenOr
	lhs, rhs Expr
}

func (n logicalNode) eval(vars Lookup) value {
	left := n.lhs.eval(vars).truthy()
	if n.op == tokenAnd {
		if !left {
			return boolValue(false)
		}
		return boolValue(n.rhs.eval(vars).truthy())
	}
	if left {
		return boolValue(true)
	}
	return boolValue(n.rhs.eval(vars).truthy())
}

type compareNode struct {
	op       tokenType
	lhs, rhs Expr
}

func (n compareNode) eval(vars Lookup) value {
	a := n.lhs.eval(vars)
	b := n.rhs.eval(vars)
	switch n.op {
	case tokenEQ:
		return boolValue(a.equals(b))
	case tokenNEQ:
		return boolValue(!a.equals(b))
	default:
		return boolValue(ordering(n.op, a, b))
	}
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.typ != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (Expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokenOr {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = logicalNode{op: tokenOr, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokenAnd {
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = logicalNode{op: tokenAnd, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek().typ == tokenNot {
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.peek().typ == tokenLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.next(); tok.typ != tokenRParen {
			return nil, fmt.Errorf("expected ')' at position %d", tok.pos)
		}
		return inner, nil
	}
	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	switch p.peek().typ {
	case tokenEQ, tokenNEQ, tokenGT, tokenGTE, tokenLT, tokenLTE:
		op := p.next().typ
		rhs, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return compareNode{op: op, lhs: lhs, rhs: rhs}, nil
	}
	return lhs, nil
}

func (p *parser) parseOperand() (Expr, error) {
	tok := p.next()
	switch tok.typ {
	case tokenString:
		return literalNode{val: stringValue(tok.text)}, nil
	case tokenNumber:
		return literalNode{val: numberValue(tok.num)}, nil
	case tokenTrue:
		return literalNode{val: boolValue(true)}, nil
	case tokenFalse:
		return literalNode{val: boolValue(false)}, nil
	case tokenIdent:
		return identNode{name: tok.text}, nil
	case tokenEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", tok.text, tok.pos)
	}
}
