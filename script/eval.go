package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
)

// variable is one binding in a scope.
type variable struct {
	val      entities.Value
	constant bool
}

// scope is a lexical block. A function body's root scope has fnRoot set:
// lookups that cross it only see constants.
type scope struct {
	vars   map[string]*variable
	parent *scope
	fnRoot bool
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]*variable), parent: parent}
}

func (s *scope) lookup(name string) (*variable, bool) {
	constOnly := false
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			if constOnly && !v.constant {
				return nil, false
			}
			return v, true
		}
		if sc.fnRoot {
			constOnly = true
		}
	}
	return nil, false
}

// Control flow travels up the evaluator as errors.
type (
	breakSignal    struct{ pos Pos }
	continueSignal struct{ pos Pos }
	returnSignal   struct{ val entities.Value }
	throwSignal    struct {
		val entities.Value
		pos Pos
	}
)

func (*breakSignal) Error() string    { return "break outside of a loop" }
func (*continueSignal) Error() string { return "continue outside of a loop" }
func (*returnSignal) Error() string   { return "return outside of a function" }
func (t *throwSignal) Error() string  { return "uncaught exception: " + t.val.String() }

// Session keeps global variables and script functions between evaluations,
// as the REPL needs.
type Session struct {
	eng    *Engine
	global *scope
	funcs  map[string]*FnDecl
	name   string
}

// NewSession creates an evaluation session. name is used in diagnostics.
func (e *Engine) NewSession(name string) *Session {
	return &Session{
		eng:    e,
		name:   name,
		global: newScope(nil),
		funcs:  make(map[string]*FnDecl),
	}
}

// Eval parses and runs src against the session state and returns the value
// of the final expression statement.
func (s *Session) Eval(ctx context.Context, src string) (entities.Value, error) {
	prog, err := Parse(src, s.eng.customOperators())
	if err != nil {
		var syn *SyntaxError
		if errors.As(err, &syn) {
			return entities.Null, &domainerrors.RuntimeError{
				Script: s.name, Line: syn.Pos.Line, Col: syn.Pos.Col,
				Code: domainerrors.CodeParse, Msg: syn.Msg,
			}
		}
		return entities.Null, &domainerrors.RuntimeError{Script: s.name, Code: domainerrors.CodeParse, Err: err}
	}

	declared := make(map[string]bool, len(prog.Funcs))
	for _, fn := range prog.Funcs {
		if declared[fn.Name] {
			return entities.Null, &domainerrors.RuntimeError{
				Script: s.name, Line: fn.Pos.Line, Col: fn.Pos.Col,
				Code: domainerrors.CodeParse, Msg: fmt.Sprintf("function %s is declared twice", fn.Name),
			}
		}
		declared[fn.Name] = true
	}
	for _, fn := range prog.Funcs {
		s.funcs[fn.Name] = fn
	}

	it := &interp{ctx: ctx, sess: s, eng: s.eng}
	v, err := it.execStmts(prog.Stmts, s.global)
	if err == nil {
		return v, nil
	}

	var (
		ret *returnSignal
		brk *breakSignal
		cnt *continueSignal
		thr *throwSignal
	)
	switch {
	case errors.As(err, &ret):
		return ret.val, nil
	case errors.As(err, &brk):
		return entities.Null, it.errorf(brk.pos, domainerrors.CodeParse, "%s", brk.Error())
	case errors.As(err, &cnt):
		return entities.Null, it.errorf(cnt.pos, domainerrors.CodeParse, "%s", cnt.Error())
	case errors.As(err, &thr):
		return entities.Null, it.errorf(thr.pos, domainerrors.CodeUncaught, "uncaught exception: %s", thr.val.Debug())
	}
	return entities.Null, err
}

// interp holds the state of one evaluation.
type interp struct {
	ctx   context.Context
	sess  *Session
	eng   *Engine
	depth int
}

func (it *interp) errorf(pos Pos, code, format string, args ...any) *domainerrors.RuntimeError {
	return &domainerrors.RuntimeError{
		Script: it.sess.name,
		Line:   pos.Line,
		Col:    pos.Col,
		Code:   code,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (it *interp) fromOpError(pos Pos, err *opError) error {
	return it.errorf(pos, err.code, "%s", err.msg)
}

func (it *interp) checkContext(pos Pos) error {
	if err := it.ctx.Err(); err != nil {
		re := it.errorf(pos, domainerrors.CodeInterrupted, "script interrupted")
		re.Err = err
		return re
	}
	return nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// execStmts runs stmts in sc and returns the value of a trailing expression
// statement without semicolon.
func (it *interp) execStmts(stmts []Stmt, sc *scope) (entities.Value, error) {
	result := entities.Null
	for i, stmt := range stmts {
		v, err := it.exec(stmt, sc)
		if err != nil {
			return entities.Null, err
		}
		if i == len(stmts)-1 {
			switch st := stmt.(type) {
			case *ExprStmt:
				if !st.Semi {
					result = v
				}
			case *BlockStmt:
				result = v
			}
		}
	}
	return result, nil
}

func (it *interp) execBlock(b *Block, parent *scope) (entities.Value, error) {
	return it.execStmts(b.Stmts, newScope(parent))
}

func (it *interp) exec(stmt Stmt, sc *scope) (entities.Value, error) {
	switch s := stmt.(type) {
	case *ExprStmt:
		return it.eval(s.X, sc)
	case *LetStmt:
		v := entities.Null
		if s.Value != nil {
			x, err := it.eval(s.Value, sc)
			if err != nil {
				return entities.Null, err
			}
			v = x.Clone()
		}
		sc.vars[s.Name] = &variable{val: v, constant: s.Const}
		return entities.Null, nil
	case *AssignStmt:
		return entities.Null, it.assign(s, sc)
	case *BlockStmt:
		return it.execBlock(s.Block, sc)
	case *WhileStmt:
		return entities.Null, it.execWhile(s, sc)
	case *LoopStmt:
		return entities.Null, it.execLoop(s, sc)
	case *ForStmt:
		return entities.Null, it.execFor(s, sc)
	case *BreakStmt:
		return entities.Null, &breakSignal{pos: s.Pos}
	case *ContinueStmt:
		return entities.Null, &continueSignal{pos: s.Pos}
	case *ReturnStmt:
		v := entities.Null
		if s.Value != nil {
			x, err := it.eval(s.Value, sc)
			if err != nil {
				return entities.Null, err
			}
			v = x
		}
		return entities.Null, &returnSignal{val: v}
	case *ThrowStmt:
		v, err := it.eval(s.Value, sc)
		if err != nil {
			return entities.Null, err
		}
		return entities.Null, &throwSignal{val: v.Clone(), pos: s.Pos}
	case *TryStmt:
		return entities.Null, it.execTry(s, sc)
	default:
		return entities.Null, it.errorf(stmt.Position(), domainerrors.CodeParse, "unsupported statement %T", stmt)
	}
}

// loopBody runs one iteration and reports whether the loop should stop.
func (it *interp) loopBody(body *Block, sc *scope) (stop bool, err error) {
	_, err = it.execBlock(body, sc)
	if err == nil {
		return false, nil
	}
	var (
		brk *breakSignal
		cnt *continueSignal
	)
	switch {
	case errors.As(err, &brk):
		return true, nil
	case errors.As(err, &cnt):
		return false, nil
	}
	return true, err
}

func (it *interp) execWhile(s *WhileStmt, sc *scope) error {
	for {
		if err := it.checkContext(s.Pos); err != nil {
			return err
		}
		ok, err := it.evalCond(s.Cond, sc)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if stop, err := it.loopBody(s.Body, sc); stop || err != nil {
			return err
		}
	}
}

func (it *interp) execLoop(s *LoopStmt, sc *scope) error {
	for {
		if err := it.checkContext(s.Pos); err != nil {
			return err
		}
		if stop, err := it.loopBody(s.Body, sc); stop || err != nil {
			return err
		}
	}
}

func (it *interp) execFor(s *ForStmt, sc *scope) error {
	iter, err := it.eval(s.Iter, sc)
	if err != nil {
		return err
	}

	var items []entities.Value
	switch iter.Kind {
	case entities.KindArray:
		arr, _ := iter.AsArray()
		items = append(items, arr.Items...)
	case entities.KindMap:
		m, _ := iter.AsMap()
		for _, k := range m.Keys() {
			items = append(items, entities.Str(k))
		}
	case entities.KindString:
		str, _ := iter.AsString()
		for _, r := range str {
			items = append(items, entities.Str(string(r)))
		}
	default:
		return it.errorf(s.Iter.Position(), domainerrors.CodeTypeMismatch, "cannot iterate over %s", it.eng.displayType(iter))
	}

	for _, item := range items {
		if err := it.checkContext(s.Pos); err != nil {
			return err
		}
		inner := newScope(sc)
		inner.vars[s.Var] = &variable{val: item.Clone()}
		if stop, err := it.loopBody(s.Body, inner); stop || err != nil {
			return err
		}
	}
	return nil
}

// catchable reports whether a try block may intercept err.
func catchable(err error) bool {
	var (
		brk *breakSignal
		cnt *continueSignal
		ret *returnSignal
		re  *domainerrors.RuntimeError
	)
	if errors.As(err, &brk) || errors.As(err, &cnt) || errors.As(err, &ret) {
		return false
	}
	if errors.As(err, &re) && re.Code == domainerrors.CodeInterrupted {
		return false
	}
	return true
}

func (it *interp) execTry(s *TryStmt, sc *scope) error {
	_, err := it.execBlock(s.Body, sc)
	if err == nil || !catchable(err) {
		return err
	}

	var caught entities.Value
	var thr *throwSignal
	if errors.As(err, &thr) {
		caught = thr.val
	} else {
		caught = domainerrors.ToErrorDetail(err).ToValue()
	}

	handler := newScope(sc)
	if s.Var != "" {
		handler.vars[s.Var] = &variable{val: caught}
	}
	_, err = it.execStmts(s.Catch.Stmts, handler)
	return err
}

func (it *interp) assign(s *AssignStmt, sc *scope) error {
	val, err := it.eval(s.Value, sc)
	if err != nil {
		return err
	}
	if s.Op != "=" {
		cur, err := it.eval(s.Target, sc)
		if err != nil {
			return err
		}
		op := strings.TrimSuffix(s.Op, "=")
		res, opErr := binaryOp(op, cur, val, it.eng.displayType)
		if opErr != nil {
			return it.fromOpError(s.Pos, opErr)
		}
		val = res
	}
	val = val.Clone()

	switch t := s.Target.(type) {
	case *Ident:
		v, ok := sc.lookup(t.Name)
		if !ok {
			return it.errorf(t.Pos, domainerrors.CodeVariableNotFound, "variable not found: %s", t.Name)
		}
		if v.constant {
			return it.errorf(t.Pos, domainerrors.CodeTypeMismatch, "cannot assign to constant %s", t.Name)
		}
		v.val = val
		return nil
	case *Index:
		container, err := it.eval(t.X, sc)
		if err != nil {
			return err
		}
		idx, err := it.eval(t.Index, sc)
		if err != nil {
			return err
		}
		return it.setIndex(t.Pos, container, idx, val)
	case *Property:
		container, err := it.eval(t.X, sc)
		if err != nil {
			return err
		}
		if m, ok := container.AsMap(); ok {
			m.Set(t.Name, val)
			return nil
		}
		if container.Kind == entities.KindObject {
			if _, ok := it.eng.props[container.TypeName()][t.Name]; !ok {
				return it.errorf(t.Pos, domainerrors.CodePropertyNotFound,
					"property not found: %s on %s", t.Name, it.eng.displayType(container))
			}
			return it.errorf(t.Pos, domainerrors.CodeTypeMismatch,
				"property %s of %s is read-only", t.Name, it.eng.displayType(container))
		}
		return it.errorf(t.Pos, domainerrors.CodeTypeMismatch,
			"cannot set property %s on %s", t.Name, it.eng.displayType(container))
	}
	return it.errorf(s.Pos, domainerrors.CodeParse, "invalid assignment target")
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (it *interp) eval(x Expr, sc *scope) (entities.Value, error) {
	switch e := x.(type) {
	case *Literal:
		return e.Value, nil
	case *Ident:
		if v, ok := sc.lookup(e.Name); ok {
			return v.val, nil
		}
		if v, ok := it.eng.consts[e.Name]; ok {
			return v, nil
		}
		return entities.Null, it.errorf(e.Pos, domainerrors.CodeVariableNotFound, "variable not found: %s", e.Name)
	case *Path:
		key := joinPath(e.Parts)
		if v, ok := it.eng.consts[key]; ok {
			return v, nil
		}
		return entities.Null, it.errorf(e.Pos, domainerrors.CodeVariableNotFound, "variable not found: %s", key)
	case *ArrayLit:
		items := make([]entities.Value, len(e.Items))
		for i, item := range e.Items {
			v, err := it.eval(item, sc)
			if err != nil {
				return entities.Null, err
			}
			items[i] = v.Clone()
		}
		return entities.Arr(items...), nil
	case *MapLit:
		m := entities.NewMap()
		for i, k := range e.Keys {
			v, err := it.eval(e.Values[i], sc)
			if err != nil {
				return entities.Null, err
			}
			m.Set(k, v.Clone())
		}
		return entities.MapOf(m), nil
	case *Unary:
		v, err := it.eval(e.X, sc)
		if err != nil {
			return entities.Null, err
		}
		res, opErr := unaryOp(e.Op, v, it.eng.displayType)
		if opErr != nil {
			return entities.Null, it.fromOpError(e.Pos, opErr)
		}
		return res, nil
	case *Binary:
		return it.evalBinary(e, sc)
	case *Call:
		args, err := it.evalArgs(e.Args, sc)
		if err != nil {
			return entities.Null, err
		}
		return it.call(e.Pos, e.Callee, args)
	case *MethodCall:
		recv, err := it.eval(e.Recv, sc)
		if err != nil {
			return entities.Null, err
		}
		rest, err := it.evalArgs(e.Args, sc)
		if err != nil {
			return entities.Null, err
		}
		args := append([]entities.Value{recv}, rest...)
		return it.call(e.Pos, []string{e.Name}, args)
	case *Property:
		v, err := it.eval(e.X, sc)
		if err != nil {
			return entities.Null, err
		}
		return it.property(e.Pos, v, e.Name)
	case *Index:
		v, err := it.eval(e.X, sc)
		if err != nil {
			return entities.Null, err
		}
		idx, err := it.eval(e.Index, sc)
		if err != nil {
			return entities.Null, err
		}
		return it.index(e.Pos, v, idx)
	case *IfExpr:
		return it.evalIf(e, sc)
	case *Block:
		return it.execBlock(e, sc)
	default:
		return entities.Null, it.errorf(x.Position(), domainerrors.CodeParse, "unsupported expression %T", x)
	}
}

func (it *interp) evalArgs(exprs []Expr, sc *scope) ([]entities.Value, error) {
	args := make([]entities.Value, len(exprs))
	for i, a := range exprs {
		v, err := it.eval(a, sc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (it *interp) evalCond(x Expr, sc *scope) (bool, error) {
	v, err := it.eval(x, sc)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, it.errorf(x.Position(), domainerrors.CodeTypeMismatch,
			"condition must be bool, got %s", it.eng.displayType(v))
	}
	return b, nil
}

func (it *interp) evalIf(e *IfExpr, sc *scope) (entities.Value, error) {
	ok, err := it.evalCond(e.Cond, sc)
	if err != nil {
		return entities.Null, err
	}
	if ok {
		return it.execBlock(e.Then, sc)
	}
	if e.Else != nil {
		return it.eval(e.Else, sc)
	}
	return entities.Null, nil
}

func (it *interp) evalBinary(e *Binary, sc *scope) (entities.Value, error) {
	if e.Op == "&&" || e.Op == "||" {
		l, err := it.evalCond(e.Left, sc)
		if err != nil {
			return entities.Null, err
		}
		if (e.Op == "&&" && !l) || (e.Op == "||" && l) {
			return entities.Bool(l), nil
		}
		r, err := it.evalCond(e.Right, sc)
		if err != nil {
			return entities.Null, err
		}
		return entities.Bool(r), nil
	}

	l, err := it.eval(e.Left, sc)
	if err != nil {
		return entities.Null, err
	}
	r, err := it.eval(e.Right, sc)
	if err != nil {
		return entities.Null, err
	}

	if e.Custom {
		op, ok := it.eng.operators[e.Op]
		if !ok {
			return entities.Null, it.errorf(e.Pos, domainerrors.CodeFunctionNotFound, "operator not found: %s", e.Op)
		}
		v, err := op.fn(it.ctx, []entities.Value{l, r})
		if err != nil {
			return entities.Null, it.wrapNative(e.Pos, "operator "+e.Op, err)
		}
		return v, nil
	}

	res, opErr := binaryOp(e.Op, l, r, it.eng.displayType)
	if opErr != nil {
		return entities.Null, it.fromOpError(e.Pos, opErr)
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Calls, properties and indexing
// ---------------------------------------------------------------------------

// call resolves callee and invokes it: script function, then bound
// function, then intrinsic. Qualified names only resolve to bound functions.
func (it *interp) call(pos Pos, callee []string, args []entities.Value) (entities.Value, error) {
	if err := it.checkContext(pos); err != nil {
		return entities.Null, err
	}
	key := joinPath(callee)
	if len(callee) == 1 {
		if fn, ok := it.sess.funcs[key]; ok {
			return it.callScript(pos, fn, args)
		}
	}
	if nf, ok := it.eng.funcs[key]; ok {
		return it.callNative(pos, nf, args)
	}
	if len(callee) == 1 {
		if in, ok := intrinsics[key]; ok {
			if in.arity != entities.Variadic && len(args) != in.arity {
				return entities.Null, it.errorf(pos, domainerrors.CodeArity,
					"function %s expects %d arguments, got %d", key, in.arity, len(args))
			}
			return in.fn(it, args), nil
		}
	}
	return entities.Null, it.errorf(pos, domainerrors.CodeFunctionNotFound, "function not found: %s", key)
}

func (it *interp) callScript(pos Pos, fn *FnDecl, args []entities.Value) (entities.Value, error) {
	if len(args) != len(fn.Params) {
		return entities.Null, it.errorf(pos, domainerrors.CodeArity,
			"function %s expects %d arguments, got %d", fn.Name, len(fn.Params), len(args))
	}
	if it.depth >= it.eng.maxDepth {
		return entities.Null, it.errorf(pos, domainerrors.CodeStackOverflow,
			"call depth exceeds %d in function %s", it.eng.maxDepth, fn.Name)
	}
	it.depth++
	defer func() { it.depth-- }()

	sc := newScope(it.sess.global)
	sc.fnRoot = true
	for i, p := range fn.Params {
		sc.vars[p] = &variable{val: args[i].Clone()}
	}

	v, err := it.execStmts(fn.Body.Stmts, sc)
	if err == nil {
		return v, nil
	}
	var (
		ret *returnSignal
		brk *breakSignal
		cnt *continueSignal
	)
	switch {
	case errors.As(err, &ret):
		return ret.val, nil
	case errors.As(err, &brk):
		return entities.Null, it.errorf(brk.pos, domainerrors.CodeParse, "%s", brk.Error())
	case errors.As(err, &cnt):
		return entities.Null, it.errorf(cnt.pos, domainerrors.CodeParse, "%s", cnt.Error())
	}
	return entities.Null, err
}

func (it *interp) callNative(pos Pos, nf *nativeFunc, args []entities.Value) (entities.Value, error) {
	if nf.arity != entities.Variadic && len(args) != nf.arity {
		return entities.Null, it.errorf(pos, domainerrors.CodeArity,
			"function %s expects %d arguments, got %d", nf.name, nf.arity, len(args))
	}
	v, err := nf.fn(it.ctx, args)
	if err != nil {
		return entities.Null, it.wrapNative(pos, nf.name, err)
	}
	return v, nil
}

// wrapNative attaches the call site to a capability failure.
func (it *interp) wrapNative(pos Pos, name string, err error) error {
	var re *domainerrors.RuntimeError
	if errors.As(err, &re) {
		if re.Line == 0 {
			clone := *re
			clone.Script, clone.Line, clone.Col = it.sess.name, pos.Line, pos.Col
			return &clone
		}
		return err
	}
	code := domainerrors.CodeCapability
	var tm *entities.TypeMismatch
	if errors.As(err, &tm) {
		code = domainerrors.CodeTypeMismatch
	}
	return &domainerrors.RuntimeError{
		Script: it.sess.name,
		Line:   pos.Line,
		Col:    pos.Col,
		Code:   code,
		Msg:    fmt.Sprintf("%s: %v", name, err),
		Err:    err,
	}
}

func (it *interp) property(pos Pos, v entities.Value, name string) (entities.Value, error) {
	switch v.Kind {
	case entities.KindObject:
		if getter, ok := it.eng.props[v.TypeName()][name]; ok {
			res, err := getter(it.ctx, []entities.Value{v})
			if err != nil {
				return entities.Null, it.wrapNative(pos, it.eng.displayType(v)+"."+name, err)
			}
			return res, nil
		}
	case entities.KindMap:
		m, _ := v.AsMap()
		if res, ok := m.Get(name); ok {
			return res, nil
		}
		return entities.Null, nil
	}
	return entities.Null, it.errorf(pos, domainerrors.CodePropertyNotFound,
		"property not found: %s on %s", name, it.eng.displayType(v))
}

// normalizeIndex resolves a possibly negative index against length n.
func normalizeIndex(i int64, n int) (int, bool) {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, false
	}
	return int(i), true
}

func (it *interp) index(pos Pos, v, idx entities.Value) (entities.Value, error) {
	switch v.Kind {
	case entities.KindArray:
		arr, _ := v.AsArray()
		n, ok := idx.AsInt()
		if !ok {
			return entities.Null, it.errorf(pos, domainerrors.CodeTypeMismatch, "array index must be int, got %s", it.eng.displayType(idx))
		}
		i, ok := normalizeIndex(n, arr.Len())
		if !ok {
			return entities.Null, it.errorf(pos, domainerrors.CodeIndex, "index %d out of range for array of length %d", n, arr.Len())
		}
		return arr.Items[i], nil
	case entities.KindMap:
		m, _ := v.AsMap()
		k, ok := idx.AsString()
		if !ok {
			return entities.Null, it.errorf(pos, domainerrors.CodeTypeMismatch, "map key must be string, got %s", it.eng.displayType(idx))
		}
		if res, ok := m.Get(k); ok {
			return res, nil
		}
		return entities.Null, nil
	case entities.KindString:
		s, _ := v.AsString()
		n, ok := idx.AsInt()
		if !ok {
			return entities.Null, it.errorf(pos, domainerrors.CodeTypeMismatch, "string index must be int, got %s", it.eng.displayType(idx))
		}
		runes := []rune(s)
		i, ok := normalizeIndex(n, len(runes))
		if !ok {
			return entities.Null, it.errorf(pos, domainerrors.CodeIndex, "index %d out of range for string of length %d", n, len(runes))
		}
		return entities.Str(string(runes[i])), nil
	}
	return entities.Null, it.errorf(pos, domainerrors.CodeTypeMismatch, "cannot index %s", it.eng.displayType(v))
}

func (it *interp) setIndex(pos Pos, container, idx, val entities.Value) error {
	switch container.Kind {
	case entities.KindArray:
		arr, _ := container.AsArray()
		n, ok := idx.AsInt()
		if !ok {
			return it.errorf(pos, domainerrors.CodeTypeMismatch, "array index must be int, got %s", it.eng.displayType(idx))
		}
		i, ok := normalizeIndex(n, arr.Len())
		if !ok {
			return it.errorf(pos, domainerrors.CodeIndex, "index %d out of range for array of length %d", n, arr.Len())
		}
		arr.Items[i] = val
		return nil
	case entities.KindMap:
		m, _ := container.AsMap()
		k, ok := idx.AsString()
		if !ok {
			return it.errorf(pos, domainerrors.CodeTypeMismatch, "map key must be string, got %s", it.eng.displayType(idx))
		}
		m.Set(k, val)
		return nil
	}
	return it.errorf(pos, domainerrors.CodeTypeMismatch, "cannot assign by index into %s", it.eng.displayType(container))
}

// Incomplete reports whether src ends inside an open bracket or block
// comment, so an interactive caller should read another line before calling
// Eval.
func (s *Session) Incomplete(src string) bool {
	custom := s.eng.customOperators()
	tokens := make([]string, 0, len(custom))
	for tok := range custom {
		tokens = append(tokens, tok)
	}
	toks, err := NewLexer(src, tokens).Tokenize()
	if err != nil {
		var syn *SyntaxError
		return errors.As(err, &syn) && syn.Msg == "unterminated block comment"
	}
	depth := 0
	for _, t := range toks {
		if t.Type != TokenPunct {
			continue
		}
		switch t.Text {
		case "(", "[", "{", "#{":
			depth++
		case ")", "]", "}":
			depth--
		}
	}
	return depth > 0
}
