package emitter

import (
	"testing"

	"fluid/ast"
	"fluid/token"
)

func TestNestedFunctionLiteralEmitsFNew(t *testing.T) {
	body := []ast.Stmt{
		ast.LocalFunctionStmt{
			Name: nameTok("f"),
			Fn: ast.FunctionExpr{
				Params: []token.Token{nameTok("x")},
				Body: []ast.Stmt{
					ast.ReturnStmt{Values: []ast.Expression{ident("x")}, Span_: span()},
				},
				Span_: span(),
			},
			Span_: span(),
		},
	}
	proto := compile(t, body)
	got := opcodes(proto.Code)
	want := []OpCode{OpFuncV, OpFNew, OpRet0}
	assertOps(t, got, want)

	if len(proto.Numbers)+len(proto.Strings) != 0 {
		t.Fatalf("unexpected constants at top level: %+v", proto)
	}
}

func TestNestedFunctionLiteralBodyReturnsParam(t *testing.T) {
	em := NewEmitter(NewContext())
	fn := ast.FunctionExpr{
		Params: []token.Token{nameTok("x")},
		Body: []ast.Stmt{
			ast.ReturnStmt{Values: []ast.Expression{ident("x")}, Span_: span()},
		},
		Span_: span(),
	}
	v, err := em.emitFunctionLiteral(fn)
	if err != nil {
		t.Fatalf("emitFunctionLiteral: %v", err)
	}
	if v.Kind != ExpRelocable {
		t.Fatalf("expected a relocable FNEW result, got kind %v", v.Kind)
	}
	if em.fs.code[v.Info].OpCode() != OpFNew {
		t.Fatalf("expected FNEW at the ExpDesc's Info pc, got %s", em.fs.code[v.Info].OpCode())
	}

	if len(em.fs.constants.gcObjects) != 1 {
		t.Fatalf("expected one interned nested prototype, got %d", len(em.fs.constants.gcObjects))
	}
	child := em.fs.constants.gcObjects[0].value.(Prototype)
	if child.NumParams != 1 {
		t.Errorf("expected 1 param, got %d", child.NumParams)
	}
	want := []OpCode{OpFuncF, OpRet1}
	assertOps(t, opcodes(child.Code), want)
}

func TestNestedFunctionLiteralCapturesUpvalue(t *testing.T) {
	body := []ast.Stmt{
		ast.LocalDeclStmt{Names: []token.Token{nameTok("x")}, Initializers: []ast.Expression{numLit(1)}, Span_: span()},
		ast.LocalFunctionStmt{
			Name: nameTok("f"),
			Fn: ast.FunctionExpr{
				Body: []ast.Stmt{
					ast.ReturnStmt{Values: []ast.Expression{ident("x")}, Span_: span()},
				},
				Span_: span(),
			},
			Span_: span(),
		},
	}
	em := NewEmitter(NewContext())
	proto, err := em.CompileProgram(body)
	if err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}
	want := []OpCode{OpFuncV, OpKNum, OpFNew, OpRet0}
	assertOps(t, opcodes(proto.Code), want)

	if len(em.fs.constants.gcObjects) != 1 {
		t.Fatalf("expected one interned nested prototype, got %d", len(em.fs.constants.gcObjects))
	}
	child := em.fs.constants.gcObjects[0].value.(Prototype)
	if len(child.Upvalues) != 1 {
		t.Fatalf("expected one upvalue, got %d", len(child.Upvalues))
	}
	if !child.Upvalues[0].IsParentLocal {
		t.Errorf("expected the upvalue to reference the parent's local x directly")
	}
	wantChild := []OpCode{OpFuncF, OpUGet, OpRet1}
	assertOps(t, opcodes(child.Code), wantChild)
}
