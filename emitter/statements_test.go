package emitter

import (
	"testing"

	"fluid/ast"
	"fluid/token"
)

func span() ast.SourceSpan { return ast.SourceSpan{Line: 1, Column: 1} }

func ident(name string) ast.IdentifierExpr {
	return ast.IdentifierExpr{Name: token.CreateLiteralToken(token.IDENTIFIER, nil, name, 1, 1), Span_: span()}
}

func numLit(n float64) ast.LiteralExpr {
	return ast.LiteralExpr{Kind: ast.LiteralNumber, Value: n, Span_: span()}
}

func nameTok(s string) token.Token {
	return token.CreateLiteralToken(token.IDENTIFIER, nil, s, 1, 1)
}

func opcodes(code []Instruction) []OpCode {
	ops := make([]OpCode, len(code))
	for i, instr := range code {
		ops[i] = instr.OpCode()
	}
	return ops
}

func compile(t *testing.T, body []ast.Stmt) Prototype {
	t.Helper()
	em := NewEmitter(NewContext())
	proto, err := em.CompileProgram(body)
	if err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}
	return proto
}

func TestLocalDeclSimple(t *testing.T) {
	body := []ast.Stmt{
		ast.LocalDeclStmt{
			Names:        []token.Token{nameTok("x")},
			Initializers: []ast.Expression{numLit(5)},
			Span_:        span(),
		},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	want := []OpCode{OpFuncV, OpKNum, OpRet0}
	assertOps(t, got, want)
}

func TestLocalDeclDeficitPadsNil(t *testing.T) {
	body := []ast.Stmt{
		ast.LocalDeclStmt{
			Names:        []token.Token{nameTok("a"), nameTok("b")},
			Initializers: []ast.Expression{numLit(1)},
			Span_:        span(),
		},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	want := []OpCode{OpFuncV, OpKNum, OpKNil, OpRet0}
	assertOps(t, got, want)
}

func TestIfElseEmitsBothBranches(t *testing.T) {
	body := []ast.Stmt{
		ast.IfStmt{
			Clauses: []ast.IfClause{
				{
					Cond: ident("x"),
					Block: ast.BlockStmt{Statements: []ast.Stmt{
						ast.LocalDeclStmt{Names: []token.Token{nameTok("y")}, Initializers: []ast.Expression{numLit(1)}, Span_: span()},
					}},
				},
				{
					Block: ast.BlockStmt{Statements: []ast.Stmt{
						ast.LocalDeclStmt{Names: []token.Token{nameTok("z")}, Initializers: []ast.Expression{numLit(2)}, Span_: span()},
					}},
				},
			},
			Span_: span(),
		},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	// GGET x (unresolved global), IST, JMP(false branch), KNUM, JMP(escape), KNUM, RET0
	want := []OpCode{OpFuncV, OpGGet, OpIST, OpJmp, OpKNum, OpJmp, OpKNum, OpRet0}
	assertOps(t, got, want)
}

func TestWhileLoopBreakAndContinue(t *testing.T) {
	body := []ast.Stmt{
		ast.WhileStmt{
			Cond: ident("running"),
			Body: ast.BlockStmt{Statements: []ast.Stmt{
				ast.IfStmt{
					Clauses: []ast.IfClause{
						{Cond: ident("done"), Block: ast.BlockStmt{Statements: []ast.Stmt{
							ast.BreakStmt{Span_: span()},
						}}},
					},
					Span_: span(),
				},
				ast.ContinueStmt{Span_: span()},
			}},
			Span_: span(),
		},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	if len(got) == 0 || got[0] != OpFuncV {
		t.Fatalf("expected function prologue, got %v", got)
	}
	if got[len(got)-1] != OpRet0 {
		t.Errorf("expected trailing RET0, got %v", got[len(got)-1])
	}
	var sawLoop, sawJmp bool
	for _, op := range got {
		if op == OpLoop {
			sawLoop = true
		}
		if op == OpJmp {
			sawJmp = true
		}
	}
	if !sawLoop {
		t.Error("expected a LOOP marker instruction")
	}
	if !sawJmp {
		t.Error("expected at least one JMP (break/continue/back-edge)")
	}
}

func TestReturnMultiValueForwardsTrailingCall(t *testing.T) {
	body := []ast.Stmt{
		ast.ReturnStmt{
			Values: []ast.Expression{
				ident("a"),
				ast.CallExpr{Callee: ident("f"), Span_: span()},
			},
			Span_: span(),
		},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	want := []OpCode{OpFuncV, OpGGet, OpGGet, OpCall, OpRetM}
	assertOps(t, got, want)
}

func TestReturnSingleValue(t *testing.T) {
	body := []ast.Stmt{
		ast.ReturnStmt{Values: []ast.Expression{numLit(1)}, Span_: span()},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	want := []OpCode{OpFuncV, OpKNum, OpRet1}
	assertOps(t, got, want)
}

func TestAssignmentPlainMultiTarget(t *testing.T) {
	body := []ast.Stmt{
		ast.LocalDeclStmt{Names: []token.Token{nameTok("a"), nameTok("b")}, Initializers: []ast.Expression{numLit(1), numLit(2)}, Span_: span()},
		ast.AssignmentStmt{
			Targets:  []ast.Expression{ident("a"), ident("b")},
			Operator: ast.AssignPlain,
			Values:   []ast.Expression{ident("b"), ident("a")},
			Span_:    span(),
		},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	// locals a,b initialised via KNUM, then swap via two MOVs into fresh regs
	// then MOV back into a/b.
	want := []OpCode{OpFuncV, OpKNum, OpKNum, OpMov, OpMov, OpMov, OpMov, OpRet0}
	assertOps(t, got, want)
}

func TestDeferReplaysLIFOWithArguments(t *testing.T) {
	body := []ast.Stmt{
		ast.DoStmt{
			Body: ast.BlockStmt{Statements: []ast.Stmt{
				ast.DeferStmt{Call: ast.CallExpr{Callee: ident("f"), Args: []ast.Expression{numLit(1)}, Span_: span()}, Span_: span()},
				ast.DeferStmt{Call: ast.CallExpr{Callee: ident("g"), Span_: span()}, Span_: span()},
			}},
			Span_: span(),
		},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	// f callee+arg, g callee, then on scope exit: CALL g (LIFO, no args), CALL f (1 arg)
	want := []OpCode{OpFuncV, OpGGet, OpKNum, OpGGet, OpCall, OpCall, OpRet0}
	assertOps(t, got, want)

	// the first CALL emitted at scope-exit is g's (LIFO), with C=1 (no args);
	// the second is f's, with C=2 (one arg).
	var calls []Instruction
	for _, instr := range proto.Code {
		if instr.OpCode() == OpCall {
			calls = append(calls, instr)
		}
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 CALL instructions, got %d", len(calls))
	}
	if calls[0].ArgC() != 1 {
		t.Errorf("g's replay CALL should have C=1 (no args), got %d", calls[0].ArgC())
	}
	if calls[1].ArgC() != 2 {
		t.Errorf("f's replay CALL should have C=2 (one arg), got %d", calls[1].ArgC())
	}
}

func TestNumericForEmitsFORIandFORL(t *testing.T) {
	body := []ast.Stmt{
		ast.NumericForStmt{
			Name:  nameTok("i"),
			Start: numLit(1),
			Stop:  numLit(10),
			Body: ast.BlockStmt{Statements: []ast.Stmt{
				ast.ExpressionStmt{Expression: ast.CallExpr{Callee: ident("f"), Args: []ast.Expression{ident("i")}, Span_: span()}, Span_: span()},
			}},
			Span_: span(),
		},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	var sawFORI, sawFORL bool
	for _, op := range got {
		if op == OpFORI {
			sawFORI = true
		}
		if op == OpFORL {
			sawFORL = true
		}
	}
	if !sawFORI || !sawFORL {
		t.Errorf("expected both FORI and FORL, got %v", got)
	}
}

func TestGenericForEmitsITERC(t *testing.T) {
	body := []ast.Stmt{
		ast.GenericForStmt{
			Names:     []token.Token{nameTok("k"), nameTok("v")},
			Iterators: []ast.Expression{ast.CallExpr{Callee: ident("iter"), Span_: span()}},
			Body: ast.BlockStmt{Statements: []ast.Stmt{
				ast.ExpressionStmt{Expression: ast.CallExpr{Callee: ident("use"), Args: []ast.Expression{ident("k"), ident("v")}, Span_: span()}, Span_: span()},
			}},
			Span_: span(),
		},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	var sawITERC, sawITERL bool
	for _, op := range got {
		if op == OpITERC {
			sawITERC = true
		}
		if op == OpITERL {
			sawITERL = true
		}
	}
	if !sawITERC || !sawITERL {
		t.Errorf("expected both ITERC and ITERL, got %v", got)
	}
}

func assertOps(t *testing.T, got, want []OpCode) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("opcode sequence length mismatch - got: %v, want: %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("opcode mismatch at %d - got: %s, want: %s (full: got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
}
