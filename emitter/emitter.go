package emitter

import (
	"fluid/ast"
	"fluid/token"
)

// Emitter walks an AST and lowers it into bytecode against the current
// FuncState. It implements both ast.ExpressionVisitor and ast.StmtVisitor;
// since Accept returns `any`, every Visit* method here wraps its real
// result in exprResult/stmtResult and EmitExpr/EmitStmt unwrap it back into
// a typed (value, error) pair for callers.
type Emitter struct {
	ctx *Context
	fs  *FuncState
}

// NewEmitter returns an Emitter compiling against the top-level FuncState
// of ctx.
func NewEmitter(ctx *Context) *Emitter {
	fs := newFuncState(ctx, nil)
	fs.Vararg = true
	ctx.top = fs
	return &Emitter{ctx: ctx, fs: fs}
}

type exprResult struct {
	val ExpDesc
	err error
}

type stmtResult struct {
	err error
}

// EmitExpr lowers one expression against the Emitter's current FuncState.
func (em *Emitter) EmitExpr(e ast.Expression) (ExpDesc, error) {
	r := e.Accept(em).(exprResult)
	return r.val, r.err
}

// EmitStmt lowers one statement against the Emitter's current FuncState.
func (em *Emitter) EmitStmt(s ast.Stmt) error {
	r := s.Accept(em).(stmtResult)
	return r.err
}

func exprErr(err error) any { return exprResult{err: err} }
func exprOK(e ExpDesc) any  { return exprResult{val: e} }
func stmtErr(err error) any { return stmtResult{err: err} }
func stmtOK() any           { return stmtResult{} }

// CompileProgram compiles the top-level statement list of a source unit and
// returns the finished top-level Prototype.
func (em *Emitter) CompileProgram(body []ast.Stmt) (Prototype, error) {
	start := token.Token{}
	em.fs.emit(start, ABC(OpFuncV, 0, 0, 0))
	for _, s := range body {
		if err := em.EmitStmt(s); err != nil {
			return Prototype{}, err
		}
	}
	if !em.fs.HasReturn {
		em.fs.emit(start, ABC(OpRet0, 0, 0, 0))
	}
	return em.fs.Finish(0)
}

// spanToken adapts an ast.SourceSpan into the token.Token shape the emitter
// package's error/line-info plumbing is built around, since the AST layer
// only carries SourceSpan, not full tokens, on most nodes.
func spanToken(s ast.SourceSpan) token.Token {
	return token.Token{Line: s.Line, Column: s.Column}
}
