// statements.go contains all statement AST nodes. A statement node does
// not itself produce a value.

package ast

import "fluid/token"

// BlockStmt is a sequence of statements forming a lexical scope.
type BlockStmt struct {
	Statements []Stmt
	Span_      SourceSpan
}

func (n BlockStmt) Accept(v StmtVisitor) any { return v.VisitBlock(n) }
func (n BlockStmt) Span() SourceSpan          { return n.Span_ }

// ExpressionStmt evaluates an expression and discards the result (e.g. a
// bare call used for side effects).
type ExpressionStmt struct {
	Expression Expression
	Span_      SourceSpan
}

func (n ExpressionStmt) Accept(v StmtVisitor) any { return v.VisitExpressionStmt(n) }
func (n ExpressionStmt) Span() SourceSpan          { return n.Span_ }

// ReturnStmt returns zero or more values from the enclosing function.
type ReturnStmt struct {
	Values []Expression
	Span_  SourceSpan
}

func (n ReturnStmt) Accept(v StmtVisitor) any { return v.VisitReturn(n) }
func (n ReturnStmt) Span() SourceSpan          { return n.Span_ }

// LocalDeclStmt declares one or more local names, optionally initialised
// from a matching expression list (`local a, b = f()`).
type LocalDeclStmt struct {
	Names        []token.Token
	Initializers []Expression
	Span_        SourceSpan
}

func (n LocalDeclStmt) Accept(v StmtVisitor) any { return v.VisitLocalDecl(n) }
func (n LocalDeclStmt) Span() SourceSpan          { return n.Span_ }

// LocalFunctionStmt declares a local name before emitting its function
// body, so the body may reference itself recursively.
type LocalFunctionStmt struct {
	Name  token.Token
	Fn    FunctionExpr
	Span_ SourceSpan
}

func (n LocalFunctionStmt) Accept(v StmtVisitor) any { return v.VisitLocalFunction(n) }
func (n LocalFunctionStmt) Span() SourceSpan          { return n.Span_ }

// FunctionStmt declares `function a.b.c:m(...)`: Path is the dotted prefix
// (may be empty for a bare global function), Method is set for a colon
// method definition.
type FunctionStmt struct {
	Path   []token.Token
	Method string
	Fn     FunctionExpr
	Span_  SourceSpan
}

func (n FunctionStmt) Accept(v StmtVisitor) any { return v.VisitFunctionStmt(n) }
func (n FunctionStmt) Span() SourceSpan          { return n.Span_ }

// AssignOp enumerates the compound assignment operators, plus plain `=`
// and if-empty `??=`.
type AssignOp int

const (
	AssignPlain AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
	AssignMod
	AssignConcat
	AssignCoalesce
)

// AssignmentStmt assigns one or more values to one or more lvalue targets.
type AssignmentStmt struct {
	Targets  []Expression
	Operator AssignOp
	Values   []Expression
	Span_    SourceSpan
}

func (n AssignmentStmt) Accept(v StmtVisitor) any { return v.VisitAssignment(n) }
func (n AssignmentStmt) Span() SourceSpan          { return n.Span_ }

// IfClause is one `cond` + `block` arm of an IfStmt; Cond is nil for the
// trailing `else` clause.
type IfClause struct {
	Cond  Expression
	Block BlockStmt
}

// IfStmt is a chain of if/elif/else clauses.
type IfStmt struct {
	Clauses []IfClause
	Span_   SourceSpan
}

func (n IfStmt) Accept(v StmtVisitor) any { return v.VisitIf(n) }
func (n IfStmt) Span() SourceSpan          { return n.Span_ }

// WhileStmt is a pre-tested loop.
type WhileStmt struct {
	Cond  Expression
	Body  BlockStmt
	Span_ SourceSpan
}

func (n WhileStmt) Accept(v StmtVisitor) any { return v.VisitWhile(n) }
func (n WhileStmt) Span() SourceSpan          { return n.Span_ }

// RepeatStmt is a post-tested loop whose condition may reference locals
// declared in the body.
type RepeatStmt struct {
	Body  BlockStmt
	Cond  Expression
	Span_ SourceSpan
}

func (n RepeatStmt) Accept(v StmtVisitor) any { return v.VisitRepeat(n) }
func (n RepeatStmt) Span() SourceSpan          { return n.Span_ }

// NumericForStmt is `for name = start, stop[, step] do ... end`.
type NumericForStmt struct {
	Name  token.Token
	Start Expression
	Stop  Expression
	Step  Expression // nil means default step of 1
	Body  BlockStmt
	Span_ SourceSpan
}

func (n NumericForStmt) Accept(v StmtVisitor) any { return v.VisitNumericFor(n) }
func (n NumericForStmt) Span() SourceSpan          { return n.Span_ }

// GenericForStmt is `for names... in exprs... do ... end`.
type GenericForStmt struct {
	Names     []token.Token
	Iterators []Expression
	Body      BlockStmt
	Span_     SourceSpan
}

func (n GenericForStmt) Accept(v StmtVisitor) any { return v.VisitGenericFor(n) }
func (n GenericForStmt) Span() SourceSpan          { return n.Span_ }

// BreakStmt exits the nearest enclosing loop.
type BreakStmt struct {
	Span_ SourceSpan
}

func (n BreakStmt) Accept(v StmtVisitor) any { return v.VisitBreak(n) }
func (n BreakStmt) Span() SourceSpan          { return n.Span_ }

// ContinueStmt jumps to the nearest enclosing loop's next iteration.
type ContinueStmt struct {
	Span_ SourceSpan
}

func (n ContinueStmt) Accept(v StmtVisitor) any { return v.VisitContinue(n) }
func (n ContinueStmt) Span() SourceSpan          { return n.Span_ }

// DeferStmt schedules a call to run, LIFO with other defers, when the
// enclosing scope exits (including via break/continue/return).
type DeferStmt struct {
	Call  CallExpr
	Span_ SourceSpan
}

func (n DeferStmt) Accept(v StmtVisitor) any { return v.VisitDefer(n) }
func (n DeferStmt) Span() SourceSpan          { return n.Span_ }

// DoStmt is an explicit anonymous scope: `do ... end`.
type DoStmt struct {
	Body  BlockStmt
	Span_ SourceSpan
}

func (n DoStmt) Accept(v StmtVisitor) any { return v.VisitDo(n) }
func (n DoStmt) Span() SourceSpan          { return n.Span_ }
