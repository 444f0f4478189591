package expr

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Program is a compiled expression, ready to be evaluated repeatedly
// against different contexts. ASTs are immutable and safe to share
// read-only across concurrent evaluations (§5).
type Program struct {
	src string
	ast Node
}

// Compile parses src into a Program. Compilation happens once per
// configuration load; FunctionError/ArityError are only detectable at
// Eval time since argument values are not known until then.
func Compile(src string) (*Program, error) {
	ast, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Program{src: src, ast: foldConstants(ast)}, nil
}

func (p *Program) Source() string { return p.src }

type env struct {
	ctx       *evalctx.Context
	thisStack []value.Value
}

// Eval evaluates the compiled program against ctx.
func (p *Program) Eval(ctx *evalctx.Context) (value.Value, error) {
	e := &env{ctx: ctx}
	return eval(p.ast, e)
}

func eval(n Node, e *env) (value.Value, error) {
	switch t := n.(type) {
	case LiteralNode:
		return evalLiteral(t)
	case VarRefNode:
		return e.ctx.Variable(t.Name)
	case ThisNode:
		if len(e.thisStack) == 0 {
			return value.Value{}, apexerr.New(apexerr.KindUnknownVariable, "eval", "#this used outside a collection operator")
		}
		return e.thisStack[len(e.thisStack)-1], nil
	case RootRefNode:
		if len(e.thisStack) > 0 {
			return lookupThisPath(e.thisStack[len(e.thisStack)-1], t.Name)
		}
		return e.ctx.Root(t.Name)
	case MemberNode:
		return evalMember(t, e)
	case IndexNode:
		return evalIndex(t, e)
	case UnaryNode:
		return evalUnary(t, e)
	case BinaryNode:
		return evalBinary(t, e)
	case TernaryNode:
		cond, err := eval(t.Cond, e)
		if err != nil {
			return value.Value{}, err
		}
		if cond.Truthy() {
			return eval(t.Then, e)
		}
		return eval(t.Else, e)
	case ElvisNode:
		left, err := eval(t.Left, e)
		if err == nil && left.Truthy() {
			return left, nil
		}
		return eval(t.Right, e)
	case InstanceOfNode:
		return evalInstanceOf(t, e)
	case CollectionOpNode:
		return evalCollectionOp(t, e)
	case CallNode:
		return evalCall(t, e)
	case MethodCallNode:
		return evalMethodCall(t, e)
	default:
		return value.Value{}, apexerr.New(apexerr.KindParseError, "eval", "unknown node type")
	}
}

func evalLiteral(l LiteralNode) (value.Value, error) {
	switch v := l.Value.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(v), nil
	case int64:
		return value.Int64(v), nil
	case string:
		if l.IsFloat {
			d, err := decimal.NewFromString(v)
			if err != nil {
				f, ferr := strconv.ParseFloat(v, 64)
				if ferr != nil {
					return value.Value{}, apexerr.New(apexerr.KindParseError, "eval", "bad numeric literal "+v)
				}
				return value.Float64(f), nil
			}
			return value.Decimal(d), nil
		}
		return value.String(v), nil
	default:
		return value.Value{}, apexerr.New(apexerr.KindParseError, "eval", "bad literal")
	}
}

func evalMember(t MemberNode, e *env) (value.Value, error) {
	target, err := eval(t.Target, e)
	if err != nil {
		if t.Safe && isPathErr(err) {
			return value.Null(), nil
		}
		return value.Value{}, err
	}
	if target.IsNull() {
		if t.Safe {
			return value.Null(), nil
		}
		return value.Value{}, apexerr.New(apexerr.KindPathNotFound, "eval", t.Name)
	}
	m, ok := target.AsMap()
	if !ok {
		return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "eval", "member access on non-map value")
	}
	v, ok := m[t.Name]
	if !ok {
		if t.Safe {
			return value.Null(), nil
		}
		return value.Value{}, apexerr.New(apexerr.KindPathNotFound, "eval", t.Name)
	}
	return v, nil
}

// lookupThisPath resolves a bare-identifier path against the current
// collection element, per §4.1: inside .![ ]/.?[ ]/.^[ ]/.$[ ], a bare
// identifier is field access on #this, not a root-record lookup.
func lookupThisPath(this value.Value, path string) (value.Value, error) {
	cur := this
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.AsMap()
		if !ok {
			return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "eval", "bare identifier "+path+" requires #this to be a map")
		}
		next, ok := m[seg]
		if !ok {
			return value.Value{}, apexerr.New(apexerr.KindPathNotFound, "eval", path)
		}
		cur = next
	}
	return cur, nil
}

func isPathErr(err error) bool {
	k, ok := apexerr.KindOf(err)
	return ok && k == apexerr.KindPathNotFound
}

func evalIndex(t IndexNode, e *env) (value.Value, error) {
	target, err := eval(t.Target, e)
	if err != nil {
		if t.Safe && isPathErr(err) {
			return value.Null(), nil
		}
		return value.Value{}, err
	}
	if target.IsNull() {
		if t.Safe {
			return value.Null(), nil
		}
		return value.Value{}, apexerr.New(apexerr.KindPathNotFound, "eval", "index on null")
	}
	idx, err := eval(t.Index, e)
	if err != nil {
		return value.Value{}, err
	}
	if list, ok := target.AsList(); ok {
		i, ok := idx.AsInt64()
		if !ok {
			return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "eval", "list index must be an integer")
		}
		if i < 0 {
			return value.Value{}, apexerr.New(apexerr.KindIndexOutOfRange, "eval", "negative indices not supported")
		}
		if int(i) >= len(list) {
			return value.Value{}, apexerr.New(apexerr.KindIndexOutOfRange, "eval", "index out of range")
		}
		return list[i], nil
	}
	if m, ok := target.AsMap(); ok {
		key, ok := idx.AsString()
		if !ok {
			key = value.Format(idx)
		}
		v, ok := m[key]
		if !ok {
			if t.Safe {
				return value.Null(), nil
			}
			return value.Value{}, apexerr.New(apexerr.KindPathNotFound, "eval", key)
		}
		return v, nil
	}
	return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "eval", "cannot index non-collection value")
}

func evalUnary(t UnaryNode, e *env) (value.Value, error) {
	v, err := eval(t.Operand, e)
	if err != nil {
		return value.Value{}, err
	}
	switch t.Op {
	case "!":
		return value.Bool(!v.Truthy()), nil
	case "-":
		switch v.Kind() {
		case value.KindInt64:
			i, _ := v.AsInt64()
			return value.Int64(-i), nil
		case value.KindFloat64:
			f, _ := v.AsFloat64()
			return value.Float64(-f), nil
		case value.KindDecimal:
			d, _ := v.AsDecimal()
			return value.Decimal(d.Neg()), nil
		default:
			return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "eval", "unary - requires numeric operand")
		}
	default:
		return value.Value{}, apexerr.New(apexerr.KindParseError, "eval", "unknown unary operator "+t.Op)
	}
}

func evalBinary(t BinaryNode, e *env) (value.Value, error) {
	switch t.Op {
	case "&&":
		l, err := eval(t.Left, e)
		if err != nil {
			return value.Value{}, err
		}
		if !l.Truthy() {
			return value.Bool(false), nil
		}
		r, err := eval(t.Right, e)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(r.Truthy()), nil
	case "||":
		l, err := eval(t.Left, e)
		if err != nil {
			return value.Value{}, err
		}
		if l.Truthy() {
			return value.Bool(true), nil
		}
		r, err := eval(t.Right, e)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(r.Truthy()), nil
	}

	l, err := eval(t.Left, e)
	if err != nil {
		return value.Value{}, err
	}
	r, err := eval(t.Right, e)
	if err != nil {
		return value.Value{}, err
	}

	switch t.Op {
	case "+":
		if l.Kind() == value.KindString || r.Kind() == value.KindString {
			return value.String(value.Format(l) + value.Format(r)), nil
		}
		return value.Add(t.Op, l, r)
	case "-":
		return value.Sub(t.Op, l, r)
	case "*":
		return value.Mul(t.Op, l, r)
	case "/":
		return value.Div(t.Op, l, r)
	case "%":
		return value.Mod(t.Op, l, r)
	case "==":
		return value.Bool(value.Equal(l, r)), nil
	case "!=":
		return value.Bool(!value.Equal(l, r)), nil
	case "<", "<=", ">", ">=":
		c, ok := value.Compare(l, r)
		if !ok {
			return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "eval", "values are not comparable")
		}
		switch t.Op {
		case "<":
			return value.Bool(c < 0), nil
		case "<=":
			return value.Bool(c <= 0), nil
		case ">":
			return value.Bool(c > 0), nil
		default:
			return value.Bool(c >= 0), nil
		}
	default:
		return value.Value{}, apexerr.New(apexerr.KindParseError, "eval", "unknown operator "+t.Op)
	}
}

func evalInstanceOf(t InstanceOfNode, e *env) (value.Value, error) {
	v, err := eval(t.Operand, e)
	if err != nil {
		return value.Value{}, err
	}
	var match bool
	switch t.Type {
	case "String":
		match = v.Kind() == value.KindString
	case "Integer", "Long", "Int64":
		match = v.Kind() == value.KindInt64
	case "Double", "Float", "Float64":
		match = v.Kind() == value.KindFloat64
	case "BigDecimal", "Decimal":
		match = v.Kind() == value.KindDecimal
	case "Boolean", "Bool":
		match = v.Kind() == value.KindBool
	case "List", "Collection":
		match = v.Kind() == value.KindList
	case "Map":
		match = v.Kind() == value.KindMap
	default:
		return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "eval", "unknown instanceof type "+t.Type)
	}
	return value.Bool(match), nil
}

func evalCollectionOp(t CollectionOpNode, e *env) (value.Value, error) {
	target, err := eval(t.Target, e)
	if err != nil {
		return value.Value{}, err
	}
	if target.IsNull() {
		return value.Null(), nil
	}
	list, ok := target.AsList()
	if !ok {
		return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "eval", "collection operator requires a list")
	}

	switch t.Kind {
	case CollProject:
		out := make([]value.Value, 0, len(list))
		for _, item := range list {
			e.thisStack = append(e.thisStack, item)
			v, err := eval(t.Body, e)
			e.thisStack = e.thisStack[:len(e.thisStack)-1]
			if err != nil {
				return value.Value{}, err
			}
			out = append(out, v)
		}
		return value.List(out), nil
	case CollSelect:
		out := make([]value.Value, 0, len(list))
		for _, item := range list {
			e.thisStack = append(e.thisStack, item)
			v, err := eval(t.Body, e)
			e.thisStack = e.thisStack[:len(e.thisStack)-1]
			if err != nil {
				return value.Value{}, err
			}
			if v.Truthy() {
				out = append(out, item)
			}
		}
		return value.List(out), nil
	case CollFirst:
		for _, item := range list {
			e.thisStack = append(e.thisStack, item)
			v, err := eval(t.Body, e)
			e.thisStack = e.thisStack[:len(e.thisStack)-1]
			if err != nil {
				return value.Value{}, err
			}
			if v.Truthy() {
				return item, nil
			}
		}
		return value.Null(), nil
	case CollLast:
		for i := len(list) - 1; i >= 0; i-- {
			item := list[i]
			e.thisStack = append(e.thisStack, item)
			v, err := eval(t.Body, e)
			e.thisStack = e.thisStack[:len(e.thisStack)-1]
			if err != nil {
				return value.Value{}, err
			}
			if v.Truthy() {
				return item, nil
			}
		}
		return value.Null(), nil
	default:
		return value.Value{}, apexerr.New(apexerr.KindParseError, "eval", "unknown collection operator")
	}
}

func evalCall(t CallNode, e *env) (value.Value, error) {
	fn, ok := lookupFunction(t.Name)
	if !ok {
		return value.Value{}, apexerr.New(apexerr.KindUnknownFunction, "eval", t.Name)
	}
	args := make([]value.Value, len(t.Args))
	for i, a := range t.Args {
		v, err := eval(a, e)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}
	return fn(args)
}

func evalMethodCall(t MethodCallNode, e *env) (value.Value, error) {
	target, err := eval(t.Target, e)
	if err != nil {
		if t.Safe && isPathErr(err) {
			return value.Null(), nil
		}
		return value.Value{}, err
	}
	if target.IsNull() && t.Safe {
		return value.Null(), nil
	}
	fn, ok := lookupFunction(t.Name)
	if !ok {
		return value.Value{}, apexerr.New(apexerr.KindUnknownFunction, "eval", t.Name)
	}
	args := make([]value.Value, 0, len(t.Args)+1)
	args = append(args, target)
	for _, a := range t.Args {
		v, err := eval(a, e)
		if err != nil {
			return value.Value{}, err
		}
		args = append(args, v)
	}
	return fn(args)
}

// foldConstants performs the "simple constant-folding pass" mentioned in
// §4.1's performance notes: literal arithmetic/comparison subtrees are
// reduced once at compile time rather than on every evaluation.
func foldConstants(n Node) Node {
	switch t := n.(type) {
	case BinaryNode:
		left := foldConstants(t.Left)
		right := foldConstants(t.Right)
		t.Left, t.Right = left, right
		if isLiteral(left) && isLiteral(right) && t.Op != "&&" && t.Op != "||" {
			if v, err := eval(t, &env{ctx: evalctx.New(nil)}); err == nil {
				switch v.Kind() {
				case value.KindNull, value.KindBool, value.KindInt64, value.KindString:
					return literalFromValue(v)
				}
			}
		}
		return t
	case UnaryNode:
		t.Operand = foldConstants(t.Operand)
		return t
	case TernaryNode:
		t.Cond = foldConstants(t.Cond)
		t.Then = foldConstants(t.Then)
		t.Else = foldConstants(t.Else)
		return t
	default:
		return n
	}
}

func isLiteral(n Node) bool {
	_, ok := n.(LiteralNode)
	return ok
}

func literalFromValue(v value.Value) Node {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.AsBool()
		return LiteralNode{Value: b}
	case value.KindInt64:
		i, _ := v.AsInt64()
		return LiteralNode{Value: i}
	case value.KindString:
		s, _ := v.AsString()
		return LiteralNode{Value: s}
	default:
		return LiteralNode{Value: nil}
	}
}
