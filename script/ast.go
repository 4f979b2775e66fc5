package script

import "github.com/reglet-dev/scripthost/domain/entities"

// Node is any syntax tree node.
type Node interface {
	Position() Pos
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

type node struct {
	Pos Pos
}

func (n node) Position() Pos { return n.Pos }

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Literal is a constant value written in the source.
type Literal struct {
	node
	Value entities.Value
}

// Ident is an unqualified name.
type Ident struct {
	node
	Name string
}

// Path is a qualified name such as codec::json::encode.
type Path struct {
	node
	Parts []string
}

// ArrayLit is [a, b, c].
type ArrayLit struct {
	node
	Items []Expr
}

// MapLit is #{key: value, ...}.
type MapLit struct {
	node
	Keys   []string
	Values []Expr
}

// Unary is a prefix operator application.
type Unary struct {
	node
	X  Expr
	Op string
}

// Binary is an infix operator application, built-in or custom.
type Binary struct {
	node
	Left   Expr
	Right  Expr
	Op     string
	Custom bool
}

// Call invokes a named function: f(x) or ns::f(x).
type Call struct {
	node
	Args   []Expr
	Callee []string
}

// MethodCall is x.f(args), sugar for f(x, args).
type MethodCall struct {
	node
	Recv Expr
	Args []Expr
	Name string
}

// Property is x.name.
type Property struct {
	node
	X    Expr
	Name string
}

// Index is x[i].
type Index struct {
	node
	X     Expr
	Index Expr
}

// IfExpr is if cond { } else { }. Else is nil, a *Block or another *IfExpr.
type IfExpr struct {
	node
	Cond Expr
	Then *Block
	Else Expr
}

// Block is { stmts }. Its value is that of a trailing expression statement
// without a semicolon.
type Block struct {
	node
	Stmts []Stmt
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// LetStmt declares a variable or, with Const, a constant.
type LetStmt struct {
	node
	Value Expr
	Name  string
	Const bool
}

// FnDecl declares a script function. Only allowed at top level.
type FnDecl struct {
	node
	Body   *Block
	Name   string
	Params []string
}

// ExprStmt evaluates an expression. Semi records a terminating semicolon.
type ExprStmt struct {
	node
	X    Expr
	Semi bool
}

// AssignStmt is target op= value where op is "=", "+=", ...
type AssignStmt struct {
	node
	Target Expr
	Value  Expr
	Op     string
}

// WhileStmt is while cond { }.
type WhileStmt struct {
	node
	Cond Expr
	Body *Block
}

// LoopStmt is loop { }.
type LoopStmt struct {
	node
	Body *Block
}

// ForStmt is for x in iterable { }.
type ForStmt struct {
	node
	Iter Expr
	Body *Block
	Var  string
}

// BreakStmt leaves the innermost loop.
type BreakStmt struct{ node }

// ContinueStmt starts the next iteration of the innermost loop.
type ContinueStmt struct{ node }

// ReturnStmt leaves the current function. Value may be nil.
type ReturnStmt struct {
	node
	Value Expr
}

// ThrowStmt raises a script exception.
type ThrowStmt struct {
	node
	Value Expr
}

// TryStmt is try { } catch (err) { }. Var may be empty.
type TryStmt struct {
	node
	Body  *Block
	Catch *Block
	Var   string
}

// BlockStmt is a nested block used as a statement.
type BlockStmt struct {
	node
	Block *Block
}

func (*Literal) exprNode()    {}
func (*Ident) exprNode()      {}
func (*Path) exprNode()       {}
func (*ArrayLit) exprNode()   {}
func (*MapLit) exprNode()     {}
func (*Unary) exprNode()      {}
func (*Binary) exprNode()     {}
func (*Call) exprNode()       {}
func (*MethodCall) exprNode() {}
func (*Property) exprNode()   {}
func (*Index) exprNode()      {}
func (*IfExpr) exprNode()     {}
func (*Block) exprNode()      {}

func (*LetStmt) stmtNode()      {}
func (*FnDecl) stmtNode()       {}
func (*ExprStmt) stmtNode()     {}
func (*AssignStmt) stmtNode()   {}
func (*WhileStmt) stmtNode()    {}
func (*LoopStmt) stmtNode()     {}
func (*ForStmt) stmtNode()      {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()   {}
func (*ThrowStmt) stmtNode()    {}
func (*TryStmt) stmtNode()      {}
func (*BlockStmt) stmtNode()    {}

// Program is a parsed script.
type Program struct {
	Funcs []*FnDecl
	Stmts []Stmt
}
