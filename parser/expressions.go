package parser

import (
	"strconv"

	"fluid/ast"
	"fluid/token"
)

var equalityTokenTypes = []token.TokenType{token.EQUAL_EQUAL, token.NOT_EQUAL}
var comparisonTokenTypes = []token.TokenType{token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL}
var shiftTokenTypes = []token.TokenType{token.SHL, token.SHR}
var termTokenTypes = []token.TokenType{token.ADD, token.SUB}
var factorTokenTypes = []token.TokenType{token.MULT, token.DIV, token.PERCENT}
var prefixUnaryTokenTypes = []token.TokenType{token.BANG, token.SUB, token.HASH, token.TILDE}

func (p *Parser) expression() (ast.Expression, error) {
	return p.ternary()
}

// ternary resolves `cond ? then : else`. Presence (`?x`) is parsed in
// unary() as a prefix operator, so by the time control reaches here a `?`
// can only appear in infix position, leaving no ambiguity between the two
// uses of the same token.
func (p *Parser) ternary() (ast.Expression, error) {
	cond, err := p.logicalOr()
	if err != nil {
		return nil, err
	}
	if !p.isMatch(token.QUESTION) {
		return cond, nil
	}
	start := p.previous()
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.COLON, "expected ':' in ternary expression"); err != nil {
		return nil, err
	}
	elseExpr, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return ast.TernaryExpr{Cond: cond, Then: then, Else: elseExpr, Span_: p.span(start)}, nil
}

func (p *Parser) logicalOr() (ast.Expression, error) {
	left, err := p.logicalAnd()
	if err != nil {
		return nil, err
	}
	for p.isMatch(token.OR) {
		op := p.previous()
		right, err := p.logicalAnd()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Left: left, Operator: op, Right: right, Span_: p.span(op)}
	}
	return left, nil
}

func (p *Parser) logicalAnd() (ast.Expression, error) {
	left, err := p.coalesce()
	if err != nil {
		return nil, err
	}
	for p.isMatch(token.AND) {
		op := p.previous()
		right, err := p.coalesce()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Left: left, Operator: op, Right: right, Span_: p.span(op)}
	}
	return left, nil
}

// coalesce handles the if-empty binary operator `a ?? b`, lowered as an
// ordinary BinaryExpr tagged with the QUESTION_Q operator token.
func (p *Parser) coalesce() (ast.Expression, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.isMatch(token.QUESTION_Q) {
		op := p.previous()
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Left: left, Operator: op, Right: right, Span_: p.span(op)}
	}
	return left, nil
}

func (p *Parser) equality() (ast.Expression, error) {
	return p.leftAssocBinary(p.comparison, equalityTokenTypes)
}

func (p *Parser) comparison() (ast.Expression, error) {
	return p.leftAssocBinary(p.bitwiseOr, comparisonTokenTypes)
}

func (p *Parser) bitwiseOr() (ast.Expression, error) {
	return p.leftAssocBinary(p.bitwiseXor, []token.TokenType{token.PIPE})
}

func (p *Parser) bitwiseXor() (ast.Expression, error) {
	return p.leftAssocBinary(p.bitwiseAnd, []token.TokenType{token.TILDE})
}

func (p *Parser) bitwiseAnd() (ast.Expression, error) {
	return p.leftAssocBinary(p.shift, []token.TokenType{token.AMP})
}

func (p *Parser) shift() (ast.Expression, error) {
	return p.leftAssocBinary(p.concat, shiftTokenTypes)
}

// concat is right-associative, matching the teacher's chained string
// concatenation semantics.
func (p *Parser) concat() (ast.Expression, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	if !p.isMatch(token.CONCAT) {
		return left, nil
	}
	op := p.previous()
	right, err := p.concat()
	if err != nil {
		return nil, err
	}
	return ast.BinaryExpr{Left: left, Operator: op, Right: right, Span_: p.span(op)}, nil
}

func (p *Parser) term() (ast.Expression, error) {
	return p.leftAssocBinary(p.factor, termTokenTypes)
}

func (p *Parser) factor() (ast.Expression, error) {
	return p.leftAssocBinary(p.power, factorTokenTypes)
}

// power is right-associative (`2 ^ 3 ^ 2 == 2 ^ (3 ^ 2)`).
func (p *Parser) power() (ast.Expression, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	if !p.isMatch(token.CARET) {
		return left, nil
	}
	op := p.previous()
	right, err := p.power()
	if err != nil {
		return nil, err
	}
	return ast.BinaryExpr{Left: left, Operator: op, Right: right, Span_: p.span(op)}, nil
}

func (p *Parser) leftAssocBinary(next func() (ast.Expression, error), ops []token.TokenType) (ast.Expression, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.isMatch(ops...) {
		op := p.previous()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Left: left, Operator: op, Right: right, Span_: p.span(op)}
	}
	return left, nil
}

// unary handles every prefix operator: presence (`?x`), logical/bitwise
// negation, arithmetic negation, length, and prefix increment/decrement.
func (p *Parser) unary() (ast.Expression, error) {
	if p.isMatch(token.QUESTION) {
		op := p.previous()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.PresenceExpr{Operand: operand, Span_: p.span(op)}, nil
	}
	if p.isMatch(token.PLUS_PLUS, token.MINUS_MINUS) {
		op := p.previous()
		target, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.UpdateExpr{Operator: op, Target: target, Prefix: true, Span_: p.span(op)}, nil
	}
	if p.isMatch(prefixUnaryTokenTypes...) {
		op := p.previous()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.UnaryExpr{Operator: op, Operand: operand, Span_: p.span(op)}, nil
	}
	return p.postfix()
}

// postfix handles member access, indexing, calls (plain and `:method`),
// and postfix increment/decrement, all left-to-right on a primary.
func (p *Parser) postfix() (ast.Expression, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isMatch(token.DOT):
			name, err := p.consume(token.IDENTIFIER, "expected a member name after '.'")
			if err != nil {
				return nil, err
			}
			expr = ast.MemberExpr{Table: expr, Name: name, Span_: p.span(name)}
		case p.isMatch(token.LBRACKET):
			open := p.previous()
			index, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(token.RBRACKET, "expected ']' after index expression"); err != nil {
				return nil, err
			}
			expr = ast.IndexExpr{Table: expr, Index: index, Span_: p.span(open)}
		case p.isMatch(token.LPA):
			open := p.previous()
			args, err := p.argumentList()
			if err != nil {
				return nil, err
			}
			expr = ast.CallExpr{Callee: expr, Args: args, ForwardsMultret: forwardsMultret(args), Span_: p.span(open)}
		case p.checkType(token.COLON) && p.position+2 < len(p.tokens) &&
			p.tokens[p.position+1].TokenType == token.IDENTIFIER &&
			p.tokens[p.position+2].TokenType == token.LPA:
			// only `:name(` starts a method call; any other ':' belongs to
			// an enclosing ternary.
			p.advance()
			name, err := p.consume(token.IDENTIFIER, "expected a method name after ':'")
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(token.LPA, "expected '(' after method name"); err != nil {
				return nil, err
			}
			args, err := p.argumentList()
			if err != nil {
				return nil, err
			}
			expr = ast.CallExpr{Callee: expr, Method: name.Lexeme, Args: args, ForwardsMultret: forwardsMultret(args), Span_: p.span(name)}
		case p.isMatch(token.PLUS_PLUS, token.MINUS_MINUS):
			op := p.previous()
			expr = ast.UpdateExpr{Operator: op, Target: expr, Prefix: false, Span_: p.span(op)}
		default:
			return expr, nil
		}
	}
}

// forwardsMultret reports whether the call's result-count must stay open
// because its last argument is itself a call or `...` that can expand to
// more than one value.
func forwardsMultret(args []ast.Expression) bool {
	if len(args) == 0 {
		return false
	}
	switch args[len(args)-1].(type) {
	case ast.CallExpr, ast.VarArgExpr:
		return true
	default:
		return false
	}
}

func (p *Parser) argumentList() ([]ast.Expression, error) {
	var args []ast.Expression
	if !p.checkType(token.RPA) {
		var err error
		args, err = p.expressionList()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.RPA, "expected ')' after argument list"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) primary() (ast.Expression, error) {
	tok := p.peek()
	switch {
	case p.isMatch(token.TRUE):
		return ast.LiteralExpr{Kind: ast.LiteralBool, Value: true, Span_: p.span(tok)}, nil
	case p.isMatch(token.FALSE):
		return ast.LiteralExpr{Kind: ast.LiteralBool, Value: false, Span_: p.span(tok)}, nil
	case p.isMatch(token.NULL):
		return ast.LiteralExpr{Kind: ast.LiteralNil, Value: nil, Span_: p.span(tok)}, nil
	case p.isMatch(token.INT):
		n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return nil, newSyntaxError(tok, "invalid integer literal")
		}
		return ast.LiteralExpr{Kind: ast.LiteralNumber, Value: float64(n), Span_: p.span(tok)}, nil
	case p.isMatch(token.FLOAT):
		n, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, newSyntaxError(tok, "invalid float literal")
		}
		return ast.LiteralExpr{Kind: ast.LiteralNumber, Value: n, Span_: p.span(tok)}, nil
	case p.isMatch(token.STRING):
		return ast.LiteralExpr{Kind: ast.LiteralString, Value: tok.Literal, Span_: p.span(tok)}, nil
	case p.isMatch(token.DOTDOTDOT):
		return ast.VarArgExpr{Span_: p.span(tok)}, nil
	case p.isMatch(token.IDENTIFIER):
		return ast.IdentifierExpr{Name: tok, ResolvedSlot: -1, Span_: p.span(tok)}, nil
	case p.isMatch(token.LPA):
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPA, "expected ')' after expression"); err != nil {
			return nil, err
		}
		return inner, nil
	case p.isMatch(token.LCUR):
		return p.tableConstructor(tok)
	case p.isMatch(token.FUNC):
		return p.functionLiteral(tok)
	default:
		return nil, newSyntaxError(tok, "expected an expression")
	}
}

func (p *Parser) functionLiteral(start token.Token) (ast.Expression, error) {
	fn, err := p.functionBody()
	if err != nil {
		return nil, err
	}
	fn.Span_ = p.span(start)
	return fn, nil
}

// tableConstructor parses `{` field (, field)* [,] `}`, where a field is
// `name: value`, `[expr]: value`, or a bare `value` in array position.
func (p *Parser) tableConstructor(start token.Token) (ast.Expression, error) {
	var fields []ast.TableField
	for !p.checkType(token.RCUR) {
		field, err := p.tableField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
		if !p.isMatch(token.COMMA) {
			break
		}
	}
	if _, err := p.consume(token.RCUR, "expected '}' to close table constructor"); err != nil {
		return nil, err
	}
	return ast.TableExpr{Fields: fields, Span_: p.span(start)}, nil
}

func (p *Parser) tableField() (ast.TableField, error) {
	if p.isMatch(token.LBRACKET) {
		key, err := p.expression()
		if err != nil {
			return ast.TableField{}, err
		}
		if _, err := p.consume(token.RBRACKET, "expected ']' after computed table key"); err != nil {
			return ast.TableField{}, err
		}
		if _, err := p.consume(token.COLON, "expected ':' after computed table key"); err != nil {
			return ast.TableField{}, err
		}
		value, err := p.expression()
		if err != nil {
			return ast.TableField{}, err
		}
		return ast.TableField{Kind: ast.TableFieldComputed, Key: key, Value: value}, nil
	}

	if p.checkType(token.IDENTIFIER) && p.peekNextIsColon() {
		name := p.advance()
		p.advance() // consume ':'
		value, err := p.expression()
		if err != nil {
			return ast.TableField{}, err
		}
		return ast.TableField{Kind: ast.TableFieldRecord, Name: name.Lexeme, Value: value}, nil
	}

	value, err := p.expression()
	if err != nil {
		return ast.TableField{}, err
	}
	return ast.TableField{Kind: ast.TableFieldArray, Value: value}, nil
}

func (p *Parser) peekNextIsColon() bool {
	if p.position+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.position+1].TokenType == token.COLON
}
