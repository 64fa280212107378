package parser

import (
	"fluid/ast"
	"fluid/token"
)

var assignOps = map[token.TokenType]ast.AssignOp{
	token.ASSIGN:          ast.AssignPlain,
	token.PLUS_ASSIGN:     ast.AssignAdd,
	token.MINUS_ASSIGN:    ast.AssignSub,
	token.STAR_ASSIGN:     ast.AssignMul,
	token.SLASH_ASSIGN:    ast.AssignDiv,
	token.PERCENT_ASSIGN:  ast.AssignMod,
	token.CONCAT_ASSIGN:   ast.AssignConcat,
	token.COALESCE_ASSIGN: ast.AssignCoalesce,
}

// declaration is the entry point for one statement, including the
// declaration forms (`local`, `fn`) that only appear at statement
// position.
func (p *Parser) declaration() (ast.Stmt, error) {
	if p.checkType(token.LOCAL) {
		return p.localDeclaration()
	}
	if p.checkType(token.FUNC) {
		return p.functionStatement()
	}
	return p.statement()
}

func (p *Parser) statement() (ast.Stmt, error) {
	switch {
	case p.isMatch(token.IF):
		return p.ifStatement()
	case p.isMatch(token.WHILE):
		return p.whileStatement()
	case p.isMatch(token.REPEAT):
		return p.repeatStatement()
	case p.isMatch(token.FOR):
		return p.forStatement()
	case p.isMatch(token.DO):
		return p.doStatement()
	case p.isMatch(token.RETURN):
		return p.returnStatement()
	case p.isMatch(token.BREAK):
		tok := p.previous()
		p.isMatch(token.SEMICOLON)
		return ast.BreakStmt{Span_: p.span(tok)}, nil
	case p.isMatch(token.CONTINUE):
		tok := p.previous()
		p.isMatch(token.SEMICOLON)
		return ast.ContinueStmt{Span_: p.span(tok)}, nil
	case p.isMatch(token.DEFER):
		return p.deferStatement()
	default:
		return p.exprOrAssignStatement()
	}
}

// block parses statements until one of the terminator token types is seen
// (without consuming it) or the stream runs out.
func (p *Parser) block(terminators ...token.TokenType) (ast.BlockStmt, error) {
	start := p.peek()
	var stmts []ast.Stmt
	for !p.isFinished() && !p.atAny(terminators...) {
		stmt, err := p.declaration()
		if err != nil {
			return ast.BlockStmt{}, err
		}
		stmts = append(stmts, stmt)
	}
	return ast.BlockStmt{Statements: stmts, Span_: p.span(start)}, nil
}

func (p *Parser) atAny(tokenTypes ...token.TokenType) bool {
	for _, tt := range tokenTypes {
		if p.checkType(tt) {
			return true
		}
	}
	return false
}

func (p *Parser) localDeclaration() (ast.Stmt, error) {
	start, _ := p.consume(token.LOCAL, "expected 'local'")
	if p.checkType(token.FUNC) {
		return p.localFunctionStatement(start)
	}

	name, err := p.consume(token.IDENTIFIER, "expected a local variable name")
	if err != nil {
		return nil, err
	}
	names := []token.Token{name}
	for p.isMatch(token.COMMA) {
		n, err := p.consume(token.IDENTIFIER, "expected a local variable name")
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}

	var inits []ast.Expression
	if p.isMatch(token.ASSIGN) {
		inits, err = p.expressionList()
		if err != nil {
			return nil, err
		}
	}
	p.isMatch(token.SEMICOLON)
	return ast.LocalDeclStmt{Names: names, Initializers: inits, Span_: p.span(start)}, nil
}

func (p *Parser) localFunctionStatement(start token.Token) (ast.Stmt, error) {
	p.advance() // consume 'fn'
	name, err := p.consume(token.IDENTIFIER, "expected a function name")
	if err != nil {
		return nil, err
	}
	fn, err := p.functionBody()
	if err != nil {
		return nil, err
	}
	return ast.LocalFunctionStmt{Name: name, Fn: fn, Span_: p.span(start)}, nil
}

// functionStatement parses `fn a.b.c:m(...) ... end`. Path carries every
// dotted segment before a method name; if there is no `:method`, Path
// carries the whole dotted chain and Method is empty.
func (p *Parser) functionStatement() (ast.Stmt, error) {
	start, _ := p.consume(token.FUNC, "expected 'fn'")
	first, err := p.consume(token.IDENTIFIER, "expected a function name")
	if err != nil {
		return nil, err
	}
	path := []token.Token{first}
	for p.isMatch(token.DOT) {
		seg, err := p.consume(token.IDENTIFIER, "expected a name after '.'")
		if err != nil {
			return nil, err
		}
		path = append(path, seg)
	}
	method := ""
	if p.isMatch(token.COLON) {
		m, err := p.consume(token.IDENTIFIER, "expected a method name after ':'")
		if err != nil {
			return nil, err
		}
		method = m.Lexeme
	}
	fn, err := p.functionBody()
	if err != nil {
		return nil, err
	}
	return ast.FunctionStmt{Path: path, Method: method, Fn: fn, Span_: p.span(start)}, nil
}

// functionBody parses the `(` params `)` block `end` shared by function
// statements, local functions and function literals. The leading `fn`
// keyword itself is already consumed by the caller.
func (p *Parser) functionBody() (ast.FunctionExpr, error) {
	start := p.previous()
	if _, err := p.consume(token.LPA, "expected '(' after function name"); err != nil {
		return ast.FunctionExpr{}, err
	}
	var params []token.Token
	vararg := false
	if !p.checkType(token.RPA) {
		for {
			if p.isMatch(token.DOTDOTDOT) {
				vararg = true
				break
			}
			name, err := p.consume(token.IDENTIFIER, "expected a parameter name")
			if err != nil {
				return ast.FunctionExpr{}, err
			}
			params = append(params, name)
			if !p.isMatch(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(token.RPA, "expected ')' after parameter list"); err != nil {
		return ast.FunctionExpr{}, err
	}
	body, err := p.block(token.END)
	if err != nil {
		return ast.FunctionExpr{}, err
	}
	if _, err := p.consume(token.END, "expected 'end' to close function body"); err != nil {
		return ast.FunctionExpr{}, err
	}
	return ast.FunctionExpr{Params: params, IsVararg: vararg, Body: body.Statements, Span_: p.span(start)}, nil
}

func (p *Parser) ifStatement() (ast.Stmt, error) {
	start := p.previous()
	var clauses []ast.IfClause
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.DO, "expected 'do' after 'if' condition"); err != nil {
		return nil, err
	}
	body, err := p.block(token.ELIF, token.ELSE, token.END)
	if err != nil {
		return nil, err
	}
	clauses = append(clauses, ast.IfClause{Cond: cond, Block: body})

	for p.isMatch(token.ELIF) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.DO, "expected 'do' after 'elif' condition"); err != nil {
			return nil, err
		}
		body, err := p.block(token.ELIF, token.ELSE, token.END)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ast.IfClause{Cond: cond, Block: body})
	}

	if p.isMatch(token.ELSE) {
		body, err := p.block(token.END)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ast.IfClause{Cond: nil, Block: body})
	}

	if _, err := p.consume(token.END, "expected 'end' to close 'if'"); err != nil {
		return nil, err
	}
	return ast.IfStmt{Clauses: clauses, Span_: p.span(start)}, nil
}

func (p *Parser) whileStatement() (ast.Stmt, error) {
	start := p.previous()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.DO, "expected 'do' after while condition"); err != nil {
		return nil, err
	}
	body, err := p.block(token.END)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.END, "expected 'end' to close 'while'"); err != nil {
		return nil, err
	}
	return ast.WhileStmt{Cond: cond, Body: body, Span_: p.span(start)}, nil
}

func (p *Parser) repeatStatement() (ast.Stmt, error) {
	start := p.previous()
	body, err := p.block(token.UNTIL)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.UNTIL, "expected 'until' to close 'repeat'"); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	return ast.RepeatStmt{Body: body, Cond: cond, Span_: p.span(start)}, nil
}

// forStatement disambiguates numeric vs. generic for after the first name,
// since both start with `for` name.
func (p *Parser) forStatement() (ast.Stmt, error) {
	start := p.previous()
	first, err := p.consume(token.IDENTIFIER, "expected a loop variable name")
	if err != nil {
		return nil, err
	}

	if p.isMatch(token.ASSIGN) {
		from, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.COMMA, "expected ',' after numeric for start value"); err != nil {
			return nil, err
		}
		to, err := p.expression()
		if err != nil {
			return nil, err
		}
		var step ast.Expression
		if p.isMatch(token.COMMA) {
			step, err = p.expression()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.consume(token.DO, "expected 'do' after numeric for header"); err != nil {
			return nil, err
		}
		body, err := p.block(token.END)
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.END, "expected 'end' to close numeric 'for'"); err != nil {
			return nil, err
		}
		return ast.NumericForStmt{Name: first, Start: from, Stop: to, Step: step, Body: body, Span_: p.span(start)}, nil
	}

	names := []token.Token{first}
	for p.isMatch(token.COMMA) {
		n, err := p.consume(token.IDENTIFIER, "expected a loop variable name")
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if _, err := p.consume(token.IN, "expected 'in' in generic for"); err != nil {
		return nil, err
	}
	iterators, err := p.expressionList()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.DO, "expected 'do' after generic for header"); err != nil {
		return nil, err
	}
	body, err := p.block(token.END)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.END, "expected 'end' to close generic 'for'"); err != nil {
		return nil, err
	}
	return ast.GenericForStmt{Names: names, Iterators: iterators, Body: body, Span_: p.span(start)}, nil
}

func (p *Parser) doStatement() (ast.Stmt, error) {
	start := p.previous()
	body, err := p.block(token.END)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.END, "expected 'end' to close 'do'"); err != nil {
		return nil, err
	}
	return ast.DoStmt{Body: body, Span_: p.span(start)}, nil
}

func (p *Parser) returnStatement() (ast.Stmt, error) {
	start := p.previous()
	var values []ast.Expression
	if !p.atAny(token.END, token.ELSE, token.ELIF, token.UNTIL, token.EOF, token.SEMICOLON) {
		var err error
		values, err = p.expressionList()
		if err != nil {
			return nil, err
		}
	}
	p.isMatch(token.SEMICOLON)
	return ast.ReturnStmt{Values: values, Span_: p.span(start)}, nil
}

func (p *Parser) deferStatement() (ast.Stmt, error) {
	start := p.previous()
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	call, ok := expr.(ast.CallExpr)
	if !ok {
		return nil, newSyntaxError(start, "'defer' requires a call expression")
	}
	p.isMatch(token.SEMICOLON)
	return ast.DeferStmt{Call: call, Span_: p.span(start)}, nil
}

// exprOrAssignStatement parses a leading expression and decides, from what
// follows, whether it is a bare expression statement (must be a call) or
// the target list of an assignment.
func (p *Parser) exprOrAssignStatement() (ast.Stmt, error) {
	start := p.peek()
	first, err := p.expression()
	if err != nil {
		return nil, err
	}

	if p.atAny(token.COMMA) || p.isAssignOp() {
		targets := []ast.Expression{first}
		for p.isMatch(token.COMMA) {
			t, err := p.expression()
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
		}
		opTok := p.peek()
		op, ok := assignOps[opTok.TokenType]
		if !ok {
			return nil, newSyntaxError(opTok, "expected an assignment operator")
		}
		p.advance()
		values, err := p.expressionList()
		if err != nil {
			return nil, err
		}
		p.isMatch(token.SEMICOLON)
		return ast.AssignmentStmt{Targets: targets, Operator: op, Values: values, Span_: p.span(start)}, nil
	}

	if _, ok := first.(ast.CallExpr); !ok {
		return nil, newSyntaxError(start, "expected a statement")
	}
	p.isMatch(token.SEMICOLON)
	return ast.ExpressionStmt{Expression: first, Span_: p.span(start)}, nil
}

func (p *Parser) isAssignOp() bool {
	_, ok := assignOps[p.peek().TokenType]
	return ok
}

func (p *Parser) expressionList() ([]ast.Expression, error) {
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	exprs := []ast.Expression{first}
	for p.isMatch(token.COMMA) {
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}
