package emitter

import (
	"fluid/ast"
	"fluid/token"
)

func (em *Emitter) VisitLiteral(n ast.LiteralExpr) any {
	span := spanToken(n.Span_)
	switch n.Kind {
	case ast.LiteralNil:
		return exprOK(newConstExpr(ExpNil, span))
	case ast.LiteralBool:
		if n.Value.(bool) {
			return exprOK(newConstExpr(ExpTrue, span))
		}
		return exprOK(newConstExpr(ExpFalse, span))
	case ast.LiteralNumber:
		return exprOK(newNumExpr(n.Value.(float64), span))
	case ast.LiteralString:
		return exprOK(newStrExpr(n.Value.(string), span))
	case ast.LiteralCData:
		e := newConstExpr(ExpCData, span)
		e.CData = n.Value
		return exprOK(e)
	}
	return exprErr(newInternalError("unhandled literal kind %d", n.Kind))
}

func (em *Emitter) VisitIdentifier(n ast.IdentifierExpr) any {
	span := spanToken(n.Span_)
	name := n.Name.Lexeme
	if slot, ok := em.fs.ResolveLocal(name); ok {
		return exprOK(ExpDesc{Kind: ExpLocal, Info: slot, T: NoJump, F: NoJump, Span: span})
	}
	if slot, ok, err := em.fs.ResolveUpvalue(span, name); err != nil {
		return exprErr(err)
	} else if ok {
		return exprOK(ExpDesc{Kind: ExpUpval, Info: slot, T: NoJump, F: NoJump, Span: span})
	}
	return exprOK(ExpDesc{Kind: ExpGlobal, Str: name, T: NoJump, F: NoJump, Span: span})
}

func (em *Emitter) VisitVarArg(n ast.VarArgExpr) any {
	span := spanToken(n.Span_)
	base, err := em.fs.regs.Reserve(span, 1)
	if err != nil {
		return exprErr(err)
	}
	pc := em.fs.emit(span, ABC(OpVarg, uint8(base.base), 2, 0))
	em.fs.regs.ReleaseSpan(&base)
	return exprOK(ExpDesc{Kind: ExpCall, Info: BCReg(pc), Aux: base.base, T: NoJump, F: NoJump, Span: span})
}

func (em *Emitter) VisitUnary(n ast.UnaryExpr) any {
	operand, err := em.EmitExpr(n.Operand)
	if err != nil {
		return exprErr(err)
	}
	span := spanToken(n.Span_)
	switch n.Operator.TokenType {
	case token.SUB:
		v, err := em.fs.EmitNegate(span, operand)
		return wrap(v, err)
	case token.BANG:
		v, err := em.fs.EmitNot(span, operand)
		return wrap(v, err)
	case token.TILDE:
		v, err := em.fs.EmitBitwiseNot(span, operand)
		return wrap(v, err)
	case token.HASH:
		v, err := em.fs.EmitLength(span, operand)
		return wrap(v, err)
	}
	return exprErr(newInternalError("unhandled unary operator %q", n.Operator.Lexeme))
}

func wrap(e ExpDesc, err error) any {
	if err != nil {
		return exprErr(err)
	}
	return exprOK(e)
}

func (em *Emitter) VisitUpdate(n ast.UpdateExpr) any {
	span := spanToken(n.Span_)
	before, err := em.EmitExpr(n.Target)
	if err != nil {
		return exprErr(err)
	}
	var op token.TokenType = token.ADD
	if n.Operator.TokenType == token.MINUS_MINUS {
		op = token.SUB
	}
	one := newNumExpr(1, span)

	var result ExpDesc
	if n.Prefix {
		updated, err := em.fs.EmitArithmetic(span, op, before, one)
		if err != nil {
			return exprErr(err)
		}
		if err := em.storeLvalue(n.Target, updated); err != nil {
			return exprErr(err)
		}
		result, err = em.EmitExpr(n.Target)
		if err != nil {
			return exprErr(err)
		}
	} else {
		r, err := em.fs.ToAnyReg(&before)
		if err != nil {
			return exprErr(err)
		}
		saved := ExpDesc{Kind: ExpNonReloc, Info: r, T: NoJump, F: NoJump, Span: span}
		fresh, err := em.EmitExpr(n.Target)
		if err != nil {
			return exprErr(err)
		}
		updated, err := em.fs.EmitArithmetic(span, op, fresh, one)
		if err != nil {
			return exprErr(err)
		}
		if err := em.storeLvalue(n.Target, updated); err != nil {
			return exprErr(err)
		}
		result = saved
	}
	return exprOK(result)
}

func (em *Emitter) VisitBinary(n ast.BinaryExpr) any {
	span := spanToken(n.Span_)
	switch n.Operator.TokenType {
	case token.AND:
		lhs, err := em.EmitExpr(n.Left)
		if err != nil {
			return exprErr(err)
		}
		prepared, err := em.fs.PrepareLogicalAnd(lhs)
		if err != nil {
			return exprErr(err)
		}
		rhs, err := em.EmitExpr(n.Right)
		if err != nil {
			return exprErr(err)
		}
		v, err := em.fs.CompleteLogicalAnd(prepared, rhs)
		return wrap(v, err)
	case token.OR:
		lhs, err := em.EmitExpr(n.Left)
		if err != nil {
			return exprErr(err)
		}
		prepared, err := em.fs.PrepareLogicalOr(lhs)
		if err != nil {
			return exprErr(err)
		}
		rhs, err := em.EmitExpr(n.Right)
		if err != nil {
			return exprErr(err)
		}
		v, err := em.fs.CompleteLogicalOr(prepared, rhs)
		return wrap(v, err)
	case token.QUESTION_Q:
		lhs, err := em.EmitExpr(n.Left)
		if err != nil {
			return exprErr(err)
		}
		v, err := em.fs.EmitIfEmpty(span, lhs, func() (ExpDesc, error) { return em.EmitExpr(n.Right) })
		return wrap(v, err)
	case token.CONCAT:
		lhs, err := em.EmitExpr(n.Left)
		if err != nil {
			return exprErr(err)
		}
		v, err := em.fs.EmitConcat(span, lhs, func() (ExpDesc, error) { return em.EmitExpr(n.Right) })
		return wrap(v, err)
	}

	lhs, err := em.EmitExpr(n.Left)
	if err != nil {
		return exprErr(err)
	}
	rhs, err := em.EmitExpr(n.Right)
	if err != nil {
		return exprErr(err)
	}

	op := n.Operator.TokenType
	switch {
	case isArithmeticOp(op):
		v, err := em.fs.EmitArithmetic(span, op, lhs, rhs)
		return wrap(v, err)
	case isComparisonOp(op):
		v, err := em.fs.EmitComparison(span, op, lhs, rhs)
		return wrap(v, err)
	case isBitwiseOp(op):
		v, err := em.fs.EmitBitwise(span, op, lhs, rhs)
		return wrap(v, err)
	}
	return exprErr(newInternalError("unhandled binary operator %q", n.Operator.Lexeme))
}

func (em *Emitter) VisitTernary(n ast.TernaryExpr) any {
	span := spanToken(n.Span_)
	cond, err := em.EmitExpr(n.Cond)
	if err != nil {
		return exprErr(err)
	}
	falseList, err := em.fs.GoIfTrue(&cond)
	if err != nil {
		return exprErr(err)
	}

	thenVal, err := em.EmitExpr(n.Then)
	if err != nil {
		return exprErr(err)
	}
	dst, err := em.fs.regs.Reserve(span, 1)
	if err != nil {
		return exprErr(err)
	}
	if err := em.fs.ToReg(&thenVal, dst.base); err != nil {
		return exprErr(err)
	}
	skip := em.fs.emitJump(span, OpJmp, 0)

	if err := em.fs.g().MakeUnconditional(falseList).PatchHere(); err != nil {
		return exprErr(err)
	}
	elseVal, err := em.EmitExpr(n.Else)
	if err != nil {
		return exprErr(err)
	}
	if err := em.fs.ToReg(&elseVal, dst.base); err != nil {
		return exprErr(err)
	}
	if err := em.fs.g().MakeUnconditional(skip).PatchHere(); err != nil {
		return exprErr(err)
	}

	return exprOK(ExpDesc{Kind: ExpNonReloc, Info: dst.base, T: NoJump, F: NoJump, Span: span})
}

func (em *Emitter) VisitPresence(n ast.PresenceExpr) any {
	span := spanToken(n.Span_)
	operand, err := em.EmitExpr(n.Operand)
	if err != nil {
		return exprErr(err)
	}
	v, err := em.fs.EmitPresence(span, operand)
	return wrap(v, err)
}

func (em *Emitter) VisitCall(n ast.CallExpr) any {
	span := spanToken(n.Span_)
	base, err := em.fs.regs.Reserve(span, 1)
	if err != nil {
		return exprErr(err)
	}

	callee, err := em.EmitExpr(n.Callee)
	if err != nil {
		return exprErr(err)
	}
	nargs := 0
	if n.Method != "" {
		if err := em.fs.Discharge(&callee); err != nil {
			return exprErr(err)
		}
		em.fs.regs.ReleaseExpression(&callee)
		selfReg, err := em.fs.regs.Reserve(span, 1)
		if err != nil {
			return exprErr(err)
		}
		if err := em.fs.ToReg(&callee, selfReg.base); err != nil {
			return exprErr(err)
		}
		midx, err := em.fs.constants.internString(span, n.Method)
		if err != nil {
			return exprErr(err)
		}
		em.fs.emit(span, ABC(OpTGetS, uint8(base.base), uint8(selfReg.base), uint8(midx)))
		nargs = 1
	} else {
		if err := em.fs.ToReg(&callee, base.base); err != nil {
			return exprErr(err)
		}
	}

	varargTail := false
	for i, a := range n.Args {
		v, err := em.EmitExpr(a)
		if err != nil {
			return exprErr(err)
		}
		last := i == len(n.Args)-1
		if last && exprForwardsMultret(a) {
			em.fs.widenMultret(&v, -1)
			if err := em.fs.ToVal(&v); err != nil {
				return exprErr(err)
			}
			varargTail = true
			nargs = -1
			break
		}
		if err := em.fs.ToNextReg(&v); err != nil {
			return exprErr(err)
		}
		nargs++
	}

	var pc BCPos
	if varargTail {
		pc = em.fs.emit(span, ABC(OpCallM, uint8(base.base), 2, 0))
	} else {
		pc = em.fs.emit(span, ABC(OpCall, uint8(base.base), 2, uint8(nargs+1)))
	}
	em.fs.regs.ReleaseSpan(&base)
	return exprOK(ExpDesc{Kind: ExpCall, Info: BCReg(pc), Aux: base.base, T: NoJump, F: NoJump, Span: span})
}

// exprForwardsMultret reports whether e, in final-argument position,
// forwards all of its results (a call or `...`) rather than just one.
func exprForwardsMultret(e ast.Expression) bool {
	switch e.(type) {
	case ast.CallExpr, ast.VarArgExpr:
		return true
	}
	return false
}

func (em *Emitter) VisitMember(n ast.MemberExpr) any {
	span := spanToken(n.Span_)
	table, err := em.EmitExpr(n.Table)
	if err != nil {
		return exprErr(err)
	}
	tr, err := em.fs.ToAnyReg(&table)
	if err != nil {
		return exprErr(err)
	}
	idx, err := em.fs.constants.internString(span, n.Name.Lexeme)
	if err != nil {
		return exprErr(err)
	}
	em.fs.regs.ReleaseExpression(&table)
	pc := em.fs.emit(span, ABC(OpTGetS, 0, uint8(tr), uint8(idx)))
	return exprOK(ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span})
}

func (em *Emitter) VisitIndex(n ast.IndexExpr) any {
	span := spanToken(n.Span_)
	table, err := em.EmitExpr(n.Table)
	if err != nil {
		return exprErr(err)
	}
	tr, err := em.fs.ToAnyReg(&table)
	if err != nil {
		return exprErr(err)
	}
	index, err := em.EmitExpr(n.Index)
	if err != nil {
		return exprErr(err)
	}
	ir, err := em.fs.ToAnyReg(&index)
	if err != nil {
		return exprErr(err)
	}
	return exprOK(ExpDesc{Kind: ExpIndexed, Info: tr, Aux: ir, T: NoJump, F: NoJump, Span: span})
}

func (em *Emitter) VisitTable(n ast.TableExpr) any {
	span := spanToken(n.Span_)
	tbase, err := em.fs.regs.Reserve(span, 1)
	if err != nil {
		return exprErr(err)
	}
	pc := em.fs.emit(span, ABC(OpTNew, uint8(tbase.base), 0, 0))

	arrayIndex := 1
	for _, f := range n.Fields {
		switch f.Kind {
		case ast.TableFieldArray:
			v, err := em.EmitExpr(f.Value)
			if err != nil {
				return exprErr(err)
			}
			if err := em.fs.ToNextReg(&v); err != nil {
				return exprErr(err)
			}
			kidx, err := em.fs.constants.internNumber(span, float64(arrayIndex))
			if err != nil {
				return exprErr(err)
			}
			em.fs.emit(span, ABC(OpTSetB, uint8(v.Info), uint8(tbase.base), uint8(kidx)))
			em.fs.regs.ReleaseExpression(&v)
			arrayIndex++
		case ast.TableFieldRecord:
			v, err := em.EmitExpr(f.Value)
			if err != nil {
				return exprErr(err)
			}
			vr, err := em.fs.ToAnyReg(&v)
			if err != nil {
				return exprErr(err)
			}
			kidx, err := em.fs.constants.internString(span, f.Name)
			if err != nil {
				return exprErr(err)
			}
			em.fs.emit(span, ABC(OpTSetS, uint8(vr), uint8(tbase.base), uint8(kidx)))
			em.fs.regs.ReleaseExpression(&v)
		case ast.TableFieldComputed:
			key, err := em.EmitExpr(f.Key)
			if err != nil {
				return exprErr(err)
			}
			kr, err := em.fs.ToAnyReg(&key)
			if err != nil {
				return exprErr(err)
			}
			v, err := em.EmitExpr(f.Value)
			if err != nil {
				return exprErr(err)
			}
			vr, err := em.fs.ToAnyReg(&v)
			if err != nil {
				return exprErr(err)
			}
			em.fs.emit(span, ABC(OpTSetV, uint8(vr), uint8(tbase.base), uint8(kr)))
			em.fs.regs.ReleaseExpression(&v)
			em.fs.regs.ReleaseExpression(&key)
		}
	}

	return exprOK(ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span})
}

func (em *Emitter) VisitFunction(n ast.FunctionExpr) any {
	v, err := em.emitFunctionLiteral(n)
	return wrap(v, err)
}
