package parser

import (
	"testing"

	"fluid/ast"
	"fluid/lexer"
	"fluid/token"
)

func parseAll(t *testing.T, input string) []ast.Stmt {
	t.Helper()
	toks, err := lexer.New(input).Scan()
	if err != nil {
		t.Fatalf("lexer.New(%q).Scan() raised an error: %v", input, err)
	}
	stmts, errs := New(toks).Parse()
	if len(errs) > 0 {
		t.Fatalf("Parse(%q) raised errors: %v", input, errs)
	}
	return stmts
}

func TestLocalDeclWithInitializers(t *testing.T) {
	stmts := parseAll(t, "local a, b = 1, 2")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	decl, ok := stmts[0].(ast.LocalDeclStmt)
	if !ok {
		t.Fatalf("expected LocalDeclStmt, got %T", stmts[0])
	}
	if len(decl.Names) != 2 || len(decl.Initializers) != 2 {
		t.Errorf("decl = %+v", decl)
	}
}

func TestAssignmentCompoundOperator(t *testing.T) {
	stmts := parseAll(t, "x += 1")
	assign, ok := stmts[0].(ast.AssignmentStmt)
	if !ok {
		t.Fatalf("expected AssignmentStmt, got %T", stmts[0])
	}
	if assign.Operator != ast.AssignAdd {
		t.Errorf("operator = %v, want AssignAdd", assign.Operator)
	}
}

func TestMultiTargetAssignment(t *testing.T) {
	stmts := parseAll(t, "local a, b = 1, 2\na, b = b, a")
	assign, ok := stmts[1].(ast.AssignmentStmt)
	if !ok {
		t.Fatalf("expected AssignmentStmt, got %T", stmts[1])
	}
	if len(assign.Targets) != 2 || len(assign.Values) != 2 {
		t.Errorf("assign = %+v", assign)
	}
}

func TestIfElifElse(t *testing.T) {
	stmts := parseAll(t, `
		if x do
			local a = 1
		elif y do
			local b = 2
		else
			local c = 3
		end
	`)
	ifStmt, ok := stmts[0].(ast.IfStmt)
	if !ok {
		t.Fatalf("expected IfStmt, got %T", stmts[0])
	}
	if len(ifStmt.Clauses) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(ifStmt.Clauses))
	}
	if ifStmt.Clauses[2].Cond != nil {
		t.Errorf("expected trailing else clause to have a nil Cond")
	}
}

func TestNumericForHeader(t *testing.T) {
	stmts := parseAll(t, "for i = 1, 10, 2 do\nend")
	forStmt, ok := stmts[0].(ast.NumericForStmt)
	if !ok {
		t.Fatalf("expected NumericForStmt, got %T", stmts[0])
	}
	if forStmt.Step == nil {
		t.Errorf("expected an explicit step expression")
	}
}

func TestGenericForHeader(t *testing.T) {
	stmts := parseAll(t, "for k, v in pairs(t) do\nend")
	forStmt, ok := stmts[0].(ast.GenericForStmt)
	if !ok {
		t.Fatalf("expected GenericForStmt, got %T", stmts[0])
	}
	if len(forStmt.Names) != 2 {
		t.Errorf("expected 2 loop variables, got %d", len(forStmt.Names))
	}
}

func TestMethodCallSetsMethodAndForwardsMultret(t *testing.T) {
	stmts := parseAll(t, "obj:method(f())")
	exprStmt, ok := stmts[0].(ast.ExpressionStmt)
	if !ok {
		t.Fatalf("expected ExpressionStmt, got %T", stmts[0])
	}
	call, ok := exprStmt.Expression.(ast.CallExpr)
	if !ok {
		t.Fatalf("expected CallExpr, got %T", exprStmt.Expression)
	}
	if call.Method != "method" {
		t.Errorf("method = %q, want %q", call.Method, "method")
	}
	if !call.ForwardsMultret {
		t.Errorf("expected ForwardsMultret since the last argument is itself a call")
	}
}

func TestTableConstructorFieldKinds(t *testing.T) {
	stmts := parseAll(t, `local t = {1, name: "x", [1+1]: 2}`)
	decl := stmts[0].(ast.LocalDeclStmt)
	table := decl.Initializers[0].(ast.TableExpr)
	if len(table.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(table.Fields))
	}
	if table.Fields[0].Kind != ast.TableFieldArray {
		t.Errorf("field 0 kind = %v, want TableFieldArray", table.Fields[0].Kind)
	}
	if table.Fields[1].Kind != ast.TableFieldRecord || table.Fields[1].Name != "name" {
		t.Errorf("field 1 = %+v, want record field named 'name'", table.Fields[1])
	}
	if table.Fields[2].Kind != ast.TableFieldComputed {
		t.Errorf("field 2 kind = %v, want TableFieldComputed", table.Fields[2].Kind)
	}
}

func TestTernaryVsPresenceDisambiguation(t *testing.T) {
	stmts := parseAll(t, "local a = x ? 1 : 2\nlocal b = ?y")
	ternary, ok := stmts[0].(ast.LocalDeclStmt).Initializers[0].(ast.TernaryExpr)
	if !ok {
		t.Fatalf("expected TernaryExpr, got %T", stmts[0].(ast.LocalDeclStmt).Initializers[0])
	}
	if ternary.Else == nil {
		t.Errorf("expected a non-nil else branch")
	}
	presence, ok := stmts[1].(ast.LocalDeclStmt).Initializers[0].(ast.PresenceExpr)
	if !ok {
		t.Fatalf("expected PresenceExpr, got %T", stmts[1].(ast.LocalDeclStmt).Initializers[0])
	}
	if presence.Operand == nil {
		t.Errorf("expected a non-nil presence operand")
	}
}

func TestDeferRequiresCallExpression(t *testing.T) {
	_, errs := New(tokensOf(t, "defer 1")).Parse()
	if len(errs) == 0 {
		t.Fatal("expected an error when deferring a non-call expression")
	}
}

func TestFunctionLiteralVararg(t *testing.T) {
	stmts := parseAll(t, "local f = fn(a, ...)\nreturn a\nend")
	fn, ok := stmts[0].(ast.LocalDeclStmt).Initializers[0].(ast.FunctionExpr)
	if !ok {
		t.Fatalf("expected FunctionExpr, got %T", stmts[0].(ast.LocalDeclStmt).Initializers[0])
	}
	if !fn.IsVararg {
		t.Errorf("expected IsVararg")
	}
	if len(fn.Params) != 1 {
		t.Errorf("expected 1 named parameter, got %d", len(fn.Params))
	}
}

func TestFunctionStatementWithMethod(t *testing.T) {
	stmts := parseAll(t, "fn a.b:m(self)\nend")
	fnStmt, ok := stmts[0].(ast.FunctionStmt)
	if !ok {
		t.Fatalf("expected FunctionStmt, got %T", stmts[0])
	}
	if fnStmt.Method != "m" {
		t.Errorf("method = %q, want %q", fnStmt.Method, "m")
	}
	if len(fnStmt.Path) != 2 {
		t.Errorf("expected a 2-segment path, got %d", len(fnStmt.Path))
	}
}

func TestUnresolvedSyntaxErrorReportsPosition(t *testing.T) {
	_, errs := New(tokensOf(t, "local = 1")).Parse()
	if len(errs) == 0 {
		t.Fatal("expected a syntax error")
	}
	if _, ok := errs[0].(SyntaxError); !ok {
		t.Fatalf("expected a SyntaxError, got %T", errs[0])
	}
}

func tokensOf(t *testing.T, input string) []token.Token {
	t.Helper()
	toks, err := lexer.New(input).Scan()
	if err != nil {
		t.Fatalf("lexer.New(%q).Scan() raised an error: %v", input, err)
	}
	return toks
}
