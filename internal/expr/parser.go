package expr

import (
	"strconv"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
)

type parser struct {
	toks []token
	pos  int
}

func parse(src string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, apexerr.New(apexerr.KindParseError, "parse", "unexpected trailing input: "+p.cur().text)
	}
	return n, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(s string) bool {
	return p.cur().kind == tokPunct && p.cur().text == s
}

func (p *parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		return apexerr.New(apexerr.KindParseError, "parse", "expected '"+s+"' got '"+p.cur().text+"'")
	}
	p.advance()
	return nil
}

// parseExpr is the ternary-level entry point.
func (p *parser) parseExpr() (Node, error) {
	cond, err := p.parseElvis()
	if err != nil {
		return nil, err
	}
	if p.isPunct("?") {
		p.advance()
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		els, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return TernaryNode{Cond: cond, Then: then, Else: els}, nil
	}
	return cond, nil
}

func (p *parser) parseElvis() (Node, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.isPunct("?:") {
		p.advance()
		right, err := p.parseElvis()
		if err != nil {
			return nil, err
		}
		return ElvisNode{Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isPunct("||") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.isPunct("&&") {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (Node, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.isPunct("==") || p.isPunct("!=") {
		op := p.advance().text
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseRelational() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isPunct("<") || p.isPunct("<=") || p.isPunct(">") || p.isPunct(">=") {
		op := p.advance().text
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: op, Left: left, Right: right}
	}
	if p.cur().kind == tokIdent && p.cur().text == "instanceof" {
		p.advance()
		if p.cur().kind != tokIdent {
			return nil, apexerr.New(apexerr.KindParseError, "parse", "expected type name after instanceof")
		}
		typeName := p.advance().text
		if p.isPunct("(") {
			// instanceof T(Type) form
			p.advance()
			if p.cur().kind != tokIdent {
				return nil, apexerr.New(apexerr.KindParseError, "parse", "expected type name in instanceof T(...)")
			}
			typeName = p.advance().text
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		left = InstanceOfNode{Operand: left, Type: typeName}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := p.advance().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("*") || p.isPunct("/") || p.isPunct("%") {
		op := p.advance().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.isPunct("!") || p.isPunct("-") {
		op := p.advance().text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryNode{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isPunct("."):
			p.advance()
			if p.cur().kind != tokIdent {
				return nil, apexerr.New(apexerr.KindParseError, "parse", "expected identifier after '.'")
			}
			name := p.advance().text
			if p.isPunct("(") {
				args, err := p.parseArgList()
				if err != nil {
					return nil, err
				}
				node = MethodCallNode{Target: node, Name: name, Args: args}
				continue
			}
			node = MemberNode{Target: node, Name: name}
		case p.isPunct("?."):
			p.advance()
			if p.isPunct("[") {
				p.advance()
				idx, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				if err := p.expectPunct("]"); err != nil {
					return nil, err
				}
				node = IndexNode{Target: node, Index: idx, Safe: true}
				continue
			}
			if p.cur().kind != tokIdent {
				return nil, apexerr.New(apexerr.KindParseError, "parse", "expected identifier after '?.'")
			}
			name := p.advance().text
			if p.isPunct("(") {
				args, err := p.parseArgList()
				if err != nil {
					return nil, err
				}
				node = MethodCallNode{Target: node, Name: name, Args: args, Safe: true}
				continue
			}
			node = MemberNode{Target: node, Name: name, Safe: true}
		case p.isPunct("["):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			node = IndexNode{Target: node, Index: idx}
		case p.isPunct(".!["):
			p.advance()
			body, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			node = CollectionOpNode{Target: node, Kind: CollProject, Body: body}
		case p.isPunct(".?["):
			p.advance()
			body, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			node = CollectionOpNode{Target: node, Kind: CollSelect, Body: body}
		case p.isPunct(".^["):
			p.advance()
			body, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			node = CollectionOpNode{Target: node, Kind: CollFirst, Body: body}
		case p.isPunct(".$["):
			p.advance()
			body, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			node = CollectionOpNode{Target: node, Kind: CollLast, Body: body}
		default:
			return node, nil
		}
	}
}

func (p *parser) parseArgList() ([]Node, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []Node
	if !p.isPunct(")") {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.cur()
	switch t.kind {
	case tokInt:
		p.advance()
		i, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, apexerr.New(apexerr.KindParseError, "parse", "bad integer literal "+t.text)
		}
		return LiteralNode{Value: i, Raw: t.text}, nil
	case tokFloat:
		p.advance()
		return LiteralNode{Value: t.text, Raw: t.text, IsFloat: true}, nil
	case tokString:
		p.advance()
		return LiteralNode{Value: t.text, Raw: t.text}, nil
	case tokVariable:
		p.advance()
		if t.text == "this" {
			return ThisNode{}, nil
		}
		return VarRefNode{Name: t.text}, nil
	case tokIdent:
		switch t.text {
		case "null":
			p.advance()
			return LiteralNode{Value: nil}, nil
		case "true":
			p.advance()
			return LiteralNode{Value: true}, nil
		case "false":
			p.advance()
			return LiteralNode{Value: false}, nil
		}
		p.advance()
		if p.isPunct("(") {
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			return CallNode{Name: t.text, Args: args}, nil
		}
		return RootRefNode{Name: t.text}, nil
	case tokPunct:
		if t.text == "(" {
			p.advance()
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, apexerr.New(apexerr.KindParseError, "parse", "unexpected token '"+t.text+"'")
}
