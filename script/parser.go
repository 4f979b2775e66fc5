package script

import (
	"fmt"
	"strconv"

	"github.com/reglet-dev/scripthost/domain/entities"
)

// Prefix and postfix binding powers. Every infix tier sits below them.
const (
	precedenceUnary   = 200
	precedencePostfix = 220
)

// builtinOperators are the infix operators of the language.
var builtinOperators = map[string]entities.OperatorSpec{
	"||": {Token: "||", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceOr},
	"&&": {Token: "&&", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceAnd},
	"==": {Token: "==", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceEquality},
	"!=": {Token: "!=", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceEquality},
	"<":  {Token: "<", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceComparison},
	"<=": {Token: "<=", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceComparison},
	">":  {Token: ">", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceComparison},
	">=": {Token: ">=", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceComparison},
	"+":  {Token: "+", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceAdditive},
	"-":  {Token: "-", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceAdditive},
	"*":  {Token: "*", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceMultiplicative},
	"/":  {Token: "/", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceMultiplicative},
	"%":  {Token: "%", Assoc: entities.AssocLeft, Precedence: entities.PrecedenceMultiplicative},
	"**": {Token: "**", Assoc: entities.AssocRight, Precedence: entities.PrecedencePower},
}

var assignOps = map[string]bool{"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true}

// Parser builds a Program from tokens with precedence climbing for infix
// operators.
type Parser struct {
	custom map[string]entities.OperatorSpec
	toks   []Token
	pos    int
	depth  int
}

// Parse lexes and parses src. custom lists the operators registered on the
// runtime in addition to the built-in ones.
func Parse(src string, custom map[string]entities.OperatorSpec) (*Program, error) {
	tokens := make([]string, 0, len(custom))
	for tok := range custom {
		tokens = append(tokens, tok)
	}
	toks, err := NewLexer(src, tokens).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, custom: custom}
	return p.parseProgram()
}

func (p *Parser) cur() Token {
	return p.toks[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) next() Token {
	t := p.toks[p.pos]
	if t.Type != TokenEOF {
		p.pos++
	}
	return t
}

func (p *Parser) errorf(pos Pos, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// expect consumes the punctuation or keyword s.
func (p *Parser) expect(s string) (Token, error) {
	t := p.cur()
	if !t.is(s) {
		return t, p.errorf(t.Pos, "expected %q, found %s", s, t)
	}
	return p.next(), nil
}

func (p *Parser) expectIdent() (Token, error) {
	t := p.cur()
	if t.Type != TokenIdent {
		return t, p.errorf(t.Pos, "expected identifier, found %s", t)
	}
	return p.next(), nil
}

// accept consumes s if it is the current token.
func (p *Parser) accept(s string) bool {
	if p.cur().is(s) {
		p.next()
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseProgram() (*Program, error) {
	prog := &Program{}
	for p.cur().Type != TokenEOF {
		if p.accept(";") {
			continue
		}
		if p.cur().is("fn") {
			fn, err := p.parseFnDecl()
			if err != nil {
				return nil, err
			}
			prog.Funcs = append(prog.Funcs, fn)
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

func (p *Parser) parseFnDecl() (*FnDecl, error) {
	start, _ := p.expect("fn")
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var params []string
	seen := map[string]bool{}
	for !p.cur().is(")") {
		param, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if seen[param.Text] {
			return nil, p.errorf(param.Pos, "duplicate parameter %q", param.Text)
		}
		seen[param.Text] = true
		params = append(params, param.Text)
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FnDecl{node: node{Pos: start.Pos}, Name: name.Text, Params: params, Body: body}, nil
}

func (p *Parser) parseBlock() (*Block, error) {
	open, err := p.expect("{")
	if err != nil {
		return nil, err
	}
	p.depth++
	defer func() { p.depth-- }()

	b := &Block{node: node{Pos: open.Pos}}
	for !p.cur().is("}") {
		if p.cur().Type == TokenEOF {
			return nil, p.errorf(p.cur().Pos, "unterminated block opened at %s", open.Pos)
		}
		if p.accept(";") {
			continue
		}
		if p.cur().is("fn") {
			return nil, p.errorf(p.cur().Pos, "functions can only be declared at top level")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, stmt)
	}
	p.next()
	return b, nil
}

func (p *Parser) parseStatement() (Stmt, error) {
	t := p.cur()
	if t.Type == TokenKeyword {
		switch t.Text {
		case "let", "const":
			return p.parseLet()
		case "while":
			return p.parseWhile()
		case "loop":
			p.next()
			body, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			return &LoopStmt{node: node{Pos: t.Pos}, Body: body}, nil
		case "for":
			return p.parseFor()
		case "break":
			p.next()
			return &BreakStmt{node: node{Pos: t.Pos}}, p.endStatement()
		case "continue":
			p.next()
			return &ContinueStmt{node: node{Pos: t.Pos}}, p.endStatement()
		case "return":
			p.next()
			ret := &ReturnStmt{node: node{Pos: t.Pos}}
			if !p.atStatementEnd() {
				v, err := p.parseExpr(0)
				if err != nil {
					return nil, err
				}
				ret.Value = v
			}
			return ret, p.endStatement()
		case "throw":
			p.next()
			v, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			return &ThrowStmt{node: node{Pos: t.Pos}, Value: v}, p.endStatement()
		case "try":
			return p.parseTry()
		}
	}
	if t.is("{") {
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &BlockStmt{node: node{Pos: t.Pos}, Block: b}, nil
	}
	return p.parseExprStatement()
}

func (p *Parser) atStatementEnd() bool {
	t := p.cur()
	return t.Type == TokenEOF || t.is(";") || t.is("}")
}

// endStatement consumes the terminating semicolon. It may be omitted before
// a closing brace or the end of input.
func (p *Parser) endStatement() error {
	if p.accept(";") {
		return nil
	}
	if p.cur().Type == TokenEOF || p.cur().is("}") {
		return nil
	}
	return p.errorf(p.cur().Pos, "expected \";\", found %s", p.cur())
}

func (p *Parser) parseLet() (Stmt, error) {
	kw := p.next()
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt := &LetStmt{node: node{Pos: kw.Pos}, Name: name.Text, Const: kw.Text == "const"}
	if p.accept("=") {
		v, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		stmt.Value = v
	} else if stmt.Const {
		return nil, p.errorf(p.cur().Pos, "constant %q needs a value", name.Text)
	}
	return stmt, p.endStatement()
}

func (p *Parser) parseWhile() (Stmt, error) {
	kw := p.next()
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{node: node{Pos: kw.Pos}, Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	kw := p.next()
	v, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("in"); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForStmt{node: node{Pos: kw.Pos}, Var: v.Text, Iter: iter, Body: body}, nil
}

func (p *Parser) parseTry() (Stmt, error) {
	kw := p.next()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("catch"); err != nil {
		return nil, err
	}
	stmt := &TryStmt{node: node{Pos: kw.Pos}, Body: body}
	if p.accept("(") {
		v, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.Var = v.Text
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
	}
	if stmt.Catch, err = p.parseBlock(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseExprStatement() (Stmt, error) {
	start := p.cur()
	x, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}

	if op := p.cur(); op.Type == TokenPunct && assignOps[op.Text] {
		switch x.(type) {
		case *Ident, *Index, *Property:
		default:
			return nil, p.errorf(op.Pos, "invalid assignment target")
		}
		p.next()
		v, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		return &AssignStmt{node: node{Pos: start.Pos}, Target: x, Op: op.Text, Value: v}, p.endStatement()
	}

	stmt := &ExprStmt{node: node{Pos: start.Pos}, X: x}
	// if-expressions used as statements need no semicolon.
	if _, ok := x.(*IfExpr); ok {
		stmt.Semi = p.accept(";")
		return stmt, nil
	}
	stmt.Semi = p.cur().is(";")
	return stmt, p.endStatement()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// infix returns the operator spec for t when t is an infix operator.
func (p *Parser) infix(t Token) (entities.OperatorSpec, bool) {
	switch t.Type {
	case TokenPunct:
		spec, ok := builtinOperators[t.Text]
		return spec, ok
	case TokenCustom:
		spec, ok := p.custom[t.Text]
		return spec, ok
	}
	return entities.OperatorSpec{}, false
}

// parseExpr parses an expression whose infix operators all bind tighter than minPrec.
func (p *Parser) parseExpr(minPrec int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		spec, ok := p.infix(t)
		if !ok || spec.Precedence <= minPrec {
			return left, nil
		}
		p.next()
		next := spec.Precedence
		if spec.Assoc == entities.AssocRight {
			next--
		}
		right, err := p.parseExpr(next)
		if err != nil {
			return nil, err
		}
		left = &Binary{
			node:   node{Pos: t.Pos},
			Op:     t.Text,
			Left:   left,
			Right:  right,
			Custom: t.Type == TokenCustom,
		}
	}
}

func (p *Parser) parseUnary() (Expr, error) {
	t := p.cur()
	if t.is("-") || t.is("!") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Fold negative literals so that -9223372036854775808 style bounds stay exact.
		if lit, ok := x.(*Literal); ok && t.Text == "-" {
			if n, ok := lit.Value.AsInt(); ok {
				return &Literal{node: node{Pos: t.Pos}, Value: entities.Int(-n)}, nil
			}
			if f, ok := lit.Value.AsFloat(); ok {
				return &Literal{node: node{Pos: t.Pos}, Value: entities.Float(-f)}, nil
			}
		}
		return &Unary{node: node{Pos: t.Pos}, Op: t.Text, X: x}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		switch {
		case t.is("("):
			callee, ok := calleePath(x)
			if !ok {
				return nil, p.errorf(t.Pos, "only named functions can be called")
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			x = &Call{node: node{Pos: x.Position()}, Callee: callee, Args: args}
		case t.is("."):
			p.next()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if p.cur().is("(") {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				x = &MethodCall{node: node{Pos: name.Pos}, Recv: x, Name: name.Text, Args: args}
			} else {
				x = &Property{node: node{Pos: name.Pos}, X: x, Name: name.Text}
			}
		case t.is("["):
			p.next()
			idx, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &Index{node: node{Pos: t.Pos}, X: x, Index: idx}
		default:
			return x, nil
		}
	}
}

func calleePath(x Expr) ([]string, bool) {
	switch c := x.(type) {
	case *Ident:
		return []string{c.Name}, true
	case *Path:
		return c.Parts, true
	}
	return nil, false
}

func (p *Parser) parseArgs() ([]Expr, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var args []Expr
	for !p.cur().is(")") {
		a, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.Type {
	case TokenInt:
		p.next()
		n, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			return nil, p.errorf(t.Pos, "invalid integer %s", t.Text)
		}
		return &Literal{node: node{Pos: t.Pos}, Value: entities.Int(n)}, nil
	case TokenFloat:
		p.next()
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, p.errorf(t.Pos, "invalid float %s", t.Text)
		}
		return &Literal{node: node{Pos: t.Pos}, Value: entities.Float(f)}, nil
	case TokenString:
		p.next()
		return &Literal{node: node{Pos: t.Pos}, Value: entities.Str(t.Text)}, nil
	case TokenIdent:
		return p.parseName()
	case TokenKeyword:
		switch t.Text {
		case "true", "false":
			p.next()
			return &Literal{node: node{Pos: t.Pos}, Value: entities.Bool(t.Text == "true")}, nil
		case "null":
			p.next()
			return &Literal{node: node{Pos: t.Pos}, Value: entities.Null}, nil
		case "if":
			return p.parseIf()
		}
	case TokenPunct:
		switch t.Text {
		case "(":
			p.next()
			x, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			return p.parseArray()
		case "#{":
			return p.parseMap()
		case "{":
			return p.parseBlock()
		}
	}
	return nil, p.errorf(t.Pos, "unexpected %s", t)
}

func (p *Parser) parseName() (Expr, error) {
	first := p.next()
	if !p.cur().is("::") {
		return &Ident{node: node{Pos: first.Pos}, Name: first.Text}, nil
	}
	parts := []string{first.Text}
	for p.accept("::") {
		part, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part.Text)
	}
	return &Path{node: node{Pos: first.Pos}, Parts: parts}, nil
}

func (p *Parser) parseIf() (Expr, error) {
	kw := p.next()
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	x := &IfExpr{node: node{Pos: kw.Pos}, Cond: cond, Then: then}
	if p.accept("else") {
		if p.cur().is("if") {
			x.Else, err = p.parseIf()
		} else {
			x.Else, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return x, nil
}

func (p *Parser) parseArray() (Expr, error) {
	open := p.next()
	arr := &ArrayLit{node: node{Pos: open.Pos}}
	for !p.cur().is("]") {
		item, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, item)
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect("]"); err != nil {
		return nil, err
	}
	return arr, nil
}

func (p *Parser) parseMap() (Expr, error) {
	open := p.next()
	m := &MapLit{node: node{Pos: open.Pos}}
	seen := map[string]bool{}
	for !p.cur().is("}") {
		key := p.cur()
		switch key.Type {
		case TokenIdent, TokenString, TokenKeyword:
		default:
			return nil, p.errorf(key.Pos, "expected map key, found %s", key)
		}
		p.next()
		if seen[key.Text] {
			return nil, p.errorf(key.Pos, "duplicate map key %q", key.Text)
		}
		seen[key.Text] = true
		if _, err := p.expect(":"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, key.Text)
		m.Values = append(m.Values, v)
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}
	return m, nil
}
