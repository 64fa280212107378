package emitter

import (
	"fluid/ast"
	"fluid/token"
)

// --- assign_adjust (§4.5) ---

// emitExprList evaluates values into nvars consecutive registers starting
// at the current freereg: a shortfall is padded with a ranged KNIL, a
// trailing Call/Vararg covering a shortfall is widened to supply the rest,
// and a surplus is evaluated then discarded.
func (em *Emitter) emitExprList(span token.Token, values []ast.Expression, nvars int) error {
	fs := em.fs
	nexps := len(values)
	if nexps == 0 {
		if nvars > 0 {
			base, err := fs.regs.Reserve(span, nvars)
			if err != nil {
				return err
			}
			fs.emit(span, ABC(OpKNil, uint8(base.base), uint8(int(base.base)+nvars-1), 0))
		}
		return nil
	}

	for i, v := range values {
		last := i == nexps-1
		e, err := em.EmitExpr(v)
		if err != nil {
			return err
		}
		if last && nexps < nvars && exprForwardsMultret(v) {
			want := nvars - nexps + 1
			fs.widenMultret(&e, want)
			if _, err := fs.regs.Reserve(span, want); err != nil {
				return err
			}
			continue
		}
		if err := fs.ToNextReg(&e); err != nil {
			return err
		}
	}

	switch {
	case nexps < nvars && !exprForwardsMultret(values[nexps-1]):
		extra := nvars - nexps
		base, err := fs.regs.Reserve(span, extra)
		if err != nil {
			return err
		}
		fs.emit(span, ABC(OpKNil, uint8(base.base), uint8(int(base.base)+extra-1), 0))
	case nexps > nvars:
		fs.regs.freereg -= BCReg(nexps - nvars)
	}
	return nil
}

// widenMultret rewrites a Call/Vararg ExpDesc's producing instruction so it
// yields want results instead of its default single result; want<0 means
// every available result (the multret B=0 encoding CALLM/VARG/RETM share).
func (fs *FuncState) widenMultret(e *ExpDesc, want int) {
	b := uint8(want + 1)
	if want < 0 {
		b = 0
	}
	fs.code[e.Info] = fs.code[e.Info].WithArgB(b)
}

// emitBlockBody runs body's statements inside one scope, used both by plain
// blocks and directly by loop constructs (so a loop's own BeginScope call
// isn't nested a second time inside the block's).
func (em *Emitter) emitBlockBody(span token.Token, body ast.BlockStmt, isLoop bool) error {
	fs := em.fs
	fs.BeginScope(isLoop)
	for _, s := range body.Statements {
		if err := em.EmitStmt(s); err != nil {
			return err
		}
	}
	return fs.EndScope(span)
}

func (em *Emitter) VisitBlock(n ast.BlockStmt) any {
	if err := em.emitBlockBody(spanToken(n.Span_), n, false); err != nil {
		return stmtErr(err)
	}
	return stmtOK()
}

func (em *Emitter) VisitDo(n ast.DoStmt) any {
	if err := em.emitBlockBody(spanToken(n.Span_), n.Body, false); err != nil {
		return stmtErr(err)
	}
	return stmtOK()
}

func (em *Emitter) VisitExpressionStmt(n ast.ExpressionStmt) any {
	v, err := em.EmitExpr(n.Expression)
	if err != nil {
		return stmtErr(err)
	}
	if err := em.fs.ToVal(&v); err != nil {
		return stmtErr(err)
	}
	em.fs.regs.ReleaseExpression(&v)
	return stmtOK()
}

func (em *Emitter) VisitReturn(n ast.ReturnStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)
	fs.HasReturn = true

	if err := fs.runDefers(span, 0); err != nil {
		return stmtErr(err)
	}
	if fs.Child {
		fs.emit(span, ABC(OpUClo, 0, 0, 0))
	}

	switch len(n.Values) {
	case 0:
		fs.emit(span, ABC(OpRet0, 0, 0, 0))
	case 1:
		v, err := em.EmitExpr(n.Values[0])
		if err != nil {
			return stmtErr(err)
		}
		if exprForwardsMultret(n.Values[0]) {
			fs.widenMultret(&v, -1)
			fs.emit(span, ABC(OpRetM, uint8(v.Aux), 0, 0))
			return stmtOK()
		}
		r, err := fs.ToAnyReg(&v)
		if err != nil {
			return stmtErr(err)
		}
		fs.emit(span, ABC(OpRet1, uint8(r), 0, 0))
	default:
		nvals := len(n.Values)
		base := fs.regs.FreeReg()
		multret := false
		for i, val := range n.Values {
			v, err := em.EmitExpr(val)
			if err != nil {
				return stmtErr(err)
			}
			if i == nvals-1 && exprForwardsMultret(val) {
				fs.widenMultret(&v, -1)
				multret = true
				continue
			}
			if err := fs.ToNextReg(&v); err != nil {
				return stmtErr(err)
			}
		}
		if multret {
			fs.emit(span, ABC(OpRetM, uint8(base), 0, 0))
		} else {
			fs.emit(span, ABC(OpRet, uint8(base), uint8(nvals+1), 0))
		}
	}
	return stmtOK()
}

func (em *Emitter) VisitLocalDecl(n ast.LocalDeclStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)
	nvars := len(n.Names)
	base := fs.regs.FreeReg()
	if err := em.emitExprList(span, n.Initializers, nvars); err != nil {
		return stmtErr(err)
	}
	for i, name := range n.Names {
		fs.vstack = append(fs.vstack, VarInfo{Name: name.Lexeme, Blank: name.Lexeme == blankIdentifier, Slot: base + BCReg(i), StartPC: fs.pc})
	}
	fs.regs.SetNActVar(base + BCReg(nvars))
	return stmtOK()
}

func (em *Emitter) VisitLocalFunction(n ast.LocalFunctionStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)
	slot, err := fs.DeclareLocal(span, n.Name.Lexeme)
	if err != nil {
		return stmtErr(err)
	}
	v, err := em.emitFunctionLiteral(n.Fn)
	if err != nil {
		return stmtErr(err)
	}
	if err := fs.ToReg(&v, slot); err != nil {
		return stmtErr(err)
	}
	return stmtOK()
}

func (em *Emitter) VisitFunctionStmt(n ast.FunctionStmt) any {
	span := spanToken(n.Span_)
	v, err := em.emitFunctionLiteral(n.Fn)
	if err != nil {
		return stmtErr(err)
	}

	var target ast.Expression = ast.IdentifierExpr{Name: n.Path[0], Span_: n.Span_}
	for _, seg := range n.Path[1:] {
		target = ast.MemberExpr{Table: target, Name: seg, Span_: n.Span_}
	}
	if n.Method != "" {
		methodTok := token.Token{TokenType: token.IDENTIFIER, Lexeme: n.Method, Line: span.Line, Column: span.Column}
		target = ast.MemberExpr{Table: target, Name: methodTok, Span_: n.Span_}
	}
	if err := em.storeLvalue(target, v); err != nil {
		return stmtErr(err)
	}
	return stmtOK()
}

// --- assignment lvalue preparation ---

// preparedTarget fixes an assignment target's table/key operands into
// registers before any right-hand side is evaluated, so multi-target
// assignment doesn't re-fetch an aliased table/key or read one target's
// post-assignment value while preparing another's.
type preparedTarget struct {
	ident  *ast.IdentifierExpr
	member *ast.MemberExpr
	index  *ast.IndexExpr

	tableReg BCReg
	strIdx   int
	keyReg   BCReg
}

func (em *Emitter) prepareTarget(span token.Token, target ast.Expression) (preparedTarget, error) {
	switch t := target.(type) {
	case ast.IdentifierExpr:
		return preparedTarget{ident: &t}, nil
	case ast.MemberExpr:
		table, err := em.EmitExpr(t.Table)
		if err != nil {
			return preparedTarget{}, err
		}
		if err := em.fs.ToNextReg(&table); err != nil {
			return preparedTarget{}, err
		}
		idx, err := em.fs.constants.internString(span, t.Name.Lexeme)
		if err != nil {
			return preparedTarget{}, err
		}
		return preparedTarget{member: &t, tableReg: table.Info, strIdx: idx}, nil
	case ast.IndexExpr:
		table, err := em.EmitExpr(t.Table)
		if err != nil {
			return preparedTarget{}, err
		}
		if err := em.fs.ToNextReg(&table); err != nil {
			return preparedTarget{}, err
		}
		index, err := em.EmitExpr(t.Index)
		if err != nil {
			return preparedTarget{}, err
		}
		if err := em.fs.ToNextReg(&index); err != nil {
			return preparedTarget{}, err
		}
		return preparedTarget{index: &t, tableReg: table.Info, keyReg: index.Info}, nil
	}
	return preparedTarget{}, newInternalError("unsupported assignment target %T", target)
}

// readPrepared reads a prepared target's current value, for the compound
// assignment operators (`+=`, `??=`, ...).
func (em *Emitter) readPrepared(span token.Token, pt preparedTarget) (ExpDesc, error) {
	switch {
	case pt.ident != nil:
		return em.EmitExpr(*pt.ident)
	case pt.member != nil:
		pc := em.fs.emit(span, ABC(OpTGetS, 0, uint8(pt.tableReg), uint8(pt.strIdx)))
		return ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span}, nil
	case pt.index != nil:
		pc := em.fs.emit(span, ABC(OpTGetV, 0, uint8(pt.tableReg), uint8(pt.keyReg)))
		return ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span}, nil
	}
	return ExpDesc{}, newInternalError("unprepared assignment target")
}

// storePrepared writes value into a prepared target. Registers are not
// released here; callers that prepare multiple targets release the whole
// block in one shot once every target has been stored.
func (em *Emitter) storePrepared(span token.Token, pt preparedTarget, value ExpDesc) error {
	switch {
	case pt.ident != nil:
		return em.storeLvalue(*pt.ident, value)
	case pt.member != nil:
		vr, err := em.fs.ToAnyReg(&value)
		if err != nil {
			return err
		}
		em.fs.emit(span, ABC(OpTSetS, uint8(vr), uint8(pt.tableReg), uint8(pt.strIdx)))
		return nil
	case pt.index != nil:
		vr, err := em.fs.ToAnyReg(&value)
		if err != nil {
			return err
		}
		em.fs.emit(span, ABC(OpTSetV, uint8(vr), uint8(pt.tableReg), uint8(pt.keyReg)))
		return nil
	}
	return newInternalError("unprepared assignment target")
}

// storeLvalue stores value directly into target, resolving it as a local,
// upvalue, global, member or index store. Used for single-target stores
// (`++`/`--`, named function declarations) where there's no multi-target
// aliasing hazard to guard against.
func (em *Emitter) storeLvalue(target ast.Expression, value ExpDesc) error {
	span := spanToken(target.Span())
	switch t := target.(type) {
	case ast.IdentifierExpr:
		name := t.Name.Lexeme
		if slot, ok := em.fs.ResolveLocal(name); ok {
			return em.fs.ToReg(&value, slot)
		}
		if slot, ok, err := em.fs.ResolveUpvalue(span, name); err != nil {
			return err
		} else if ok {
			return em.fs.storeUpvalue(span, slot, value)
		}
		return em.fs.storeGlobal(span, name, value)
	case ast.MemberExpr:
		table, err := em.EmitExpr(t.Table)
		if err != nil {
			return err
		}
		tr, err := em.fs.ToAnyReg(&table)
		if err != nil {
			return err
		}
		idx, err := em.fs.constants.internString(span, t.Name.Lexeme)
		if err != nil {
			return err
		}
		vr, err := em.fs.ToAnyReg(&value)
		if err != nil {
			return err
		}
		em.fs.emit(span, ABC(OpTSetS, uint8(vr), uint8(tr), uint8(idx)))
		em.fs.regs.ReleaseExpression(&value)
		em.fs.regs.ReleaseExpression(&table)
		return nil
	case ast.IndexExpr:
		table, err := em.EmitExpr(t.Table)
		if err != nil {
			return err
		}
		tr, err := em.fs.ToAnyReg(&table)
		if err != nil {
			return err
		}
		index, err := em.EmitExpr(t.Index)
		if err != nil {
			return err
		}
		ir, err := em.fs.ToAnyReg(&index)
		if err != nil {
			return err
		}
		vr, err := em.fs.ToAnyReg(&value)
		if err != nil {
			return err
		}
		em.fs.emit(span, ABC(OpTSetV, uint8(vr), uint8(tr), uint8(ir)))
		em.fs.regs.ReleaseExpression(&value)
		em.fs.regs.ReleaseExpression(&index)
		em.fs.regs.ReleaseExpression(&table)
		return nil
	}
	return newInternalError("unsupported assignment target %T", target)
}

// storeUpvalue lowers a store through an upvalue slot, picking the
// specialised USETS/USETN/USETP opcode for a constant value and USETV
// otherwise.
func (fs *FuncState) storeUpvalue(span token.Token, slot BCReg, value ExpDesc) error {
	if err := fs.ToVal(&value); err != nil {
		return err
	}
	switch value.Kind {
	case ExpNil:
		fs.emit(span, ABC(OpUSetP, uint8(slot), uint8(PrimNil), 0))
	case ExpTrue:
		fs.emit(span, ABC(OpUSetP, uint8(slot), uint8(PrimTrue), 0))
	case ExpFalse:
		fs.emit(span, ABC(OpUSetP, uint8(slot), uint8(PrimFalse), 0))
	case ExpStr:
		idx, err := fs.constants.internString(span, value.Str)
		if err != nil {
			return err
		}
		fs.emit(span, AD(OpUSetS, uint8(slot), uint16(idx)))
	case ExpNum:
		idx, err := fs.constants.internNumber(span, value.Num)
		if err != nil {
			return err
		}
		fs.emit(span, AD(OpUSetN, uint8(slot), uint16(idx)))
	default:
		r, err := fs.ToAnyReg(&value)
		if err != nil {
			return err
		}
		fs.regs.ReleaseExpression(&value)
		fs.emit(span, ABC(OpUSetV, uint8(slot), uint8(r), 0))
	}
	return nil
}

func (fs *FuncState) storeGlobal(span token.Token, name string, value ExpDesc) error {
	idx, err := fs.constants.internString(span, name)
	if err != nil {
		return err
	}
	r, err := fs.ToAnyReg(&value)
	if err != nil {
		return err
	}
	fs.regs.ReleaseExpression(&value)
	fs.emit(span, AD(OpGSet, uint8(r), uint16(idx)))
	return nil
}

func (em *Emitter) VisitAssignment(n ast.AssignmentStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)

	if n.Operator != ast.AssignPlain {
		base0 := fs.regs.FreeReg()
		pt, err := em.prepareTarget(span, n.Targets[0])
		if err != nil {
			return stmtErr(err)
		}
		cur, err := em.readPrepared(span, pt)
		if err != nil {
			return stmtErr(err)
		}

		var result ExpDesc
		switch n.Operator {
		case ast.AssignCoalesce:
			result, err = fs.EmitIfEmpty(span, cur, func() (ExpDesc, error) { return em.EmitExpr(n.Values[0]) })
		case ast.AssignConcat:
			result, err = fs.EmitConcat(span, cur, func() (ExpDesc, error) { return em.EmitExpr(n.Values[0]) })
		default:
			var rhs ExpDesc
			rhs, err = em.EmitExpr(n.Values[0])
			if err == nil {
				switch n.Operator {
				case ast.AssignAdd:
					result, err = fs.EmitArithmetic(span, token.ADD, cur, rhs)
				case ast.AssignSub:
					result, err = fs.EmitArithmetic(span, token.SUB, cur, rhs)
				case ast.AssignMul:
					result, err = fs.EmitArithmetic(span, token.MULT, cur, rhs)
				case ast.AssignDiv:
					result, err = fs.EmitArithmetic(span, token.DIV, cur, rhs)
				case ast.AssignMod:
					result, err = fs.EmitArithmetic(span, token.PERCENT, cur, rhs)
				}
			}
		}
		if err != nil {
			return stmtErr(err)
		}
		if err := em.storePrepared(span, pt, result); err != nil {
			return stmtErr(err)
		}
		fs.regs.freereg = base0
		return stmtOK()
	}

	base0 := fs.regs.FreeReg()
	targets := make([]preparedTarget, len(n.Targets))
	for i, t := range n.Targets {
		pt, err := em.prepareTarget(span, t)
		if err != nil {
			return stmtErr(err)
		}
		targets[i] = pt
	}

	if err := em.emitExprList(span, n.Values, len(n.Targets)); err != nil {
		return stmtErr(err)
	}

	valBase := fs.regs.FreeReg() - BCReg(len(n.Targets))
	for i := len(n.Targets) - 1; i >= 0; i-- {
		v := ExpDesc{Kind: ExpNonReloc, Info: valBase + BCReg(i), T: NoJump, F: NoJump, Span: span}
		if err := em.storePrepared(span, targets[i], v); err != nil {
			return stmtErr(err)
		}
	}
	fs.regs.freereg = base0
	return stmtOK()
}

func (em *Emitter) VisitIf(n ast.IfStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)
	escape := BCPos(NoJump)

	for i, clause := range n.Clauses {
		isLast := i == len(n.Clauses)-1
		if clause.Cond == nil {
			if err := em.emitBlockBody(span, clause.Block, false); err != nil {
				return stmtErr(err)
			}
			break
		}

		cond, err := em.EmitExpr(clause.Cond)
		if err != nil {
			return stmtErr(err)
		}
		falseList, err := fs.GoIfTrue(&cond)
		if err != nil {
			return stmtErr(err)
		}

		if err := em.emitBlockBody(span, clause.Block, false); err != nil {
			return stmtErr(err)
		}

		if !isLast {
			skip := fs.emitJump(span, OpJmp, 0)
			escape = appendToChain(fs, escape, skip)
		}
		if err := fs.g().MakeUnconditional(falseList).PatchHere(); err != nil {
			return stmtErr(err)
		}
	}

	if err := fs.g().MakeUnconditional(escape).PatchHere(); err != nil {
		return stmtErr(err)
	}
	return stmtOK()
}

func (em *Emitter) VisitWhile(n ast.WhileStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)

	testPC := fs.pc
	cond, err := em.EmitExpr(n.Cond)
	if err != nil {
		return stmtErr(err)
	}
	falseList, err := fs.GoIfTrue(&cond)
	if err != nil {
		return stmtErr(err)
	}
	fs.emit(span, ABC(OpLoop, 0, 0, 0))

	lc := fs.PushLoop(testPC)
	if err := em.emitBlockBody(span, n.Body, true); err != nil {
		return stmtErr(err)
	}

	backPC := fs.emitJump(span, OpJmp, 0)
	patchInstruction(fs, backPC, testPC)

	if err := fs.g().MakeUnconditional(falseList).PatchHere(); err != nil {
		return stmtErr(err)
	}
	if err := lc.breakEdge.PatchHere(); err != nil {
		return stmtErr(err)
	}
	if err := lc.continueEdge.PatchTo(testPC); err != nil {
		return stmtErr(err)
	}
	fs.PopLoop()
	return stmtOK()
}

// VisitRepeat lowers repeat/until. The until-condition is evaluated inside
// the body's own scope (it may reference locals the body declared), so the
// scope closes — and any captured upvalue's UCLO is emitted — strictly
// between the condition and the back-jump.
func (em *Emitter) VisitRepeat(n ast.RepeatStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)

	loopStart := fs.pc
	lc := fs.PushLoop(NoJump)
	fs.BeginScope(true)
	for _, s := range n.Body.Statements {
		if err := em.EmitStmt(s); err != nil {
			return stmtErr(err)
		}
	}

	testPC := fs.pc
	cond, err := em.EmitExpr(n.Cond)
	if err != nil {
		return stmtErr(err)
	}
	trueList, err := fs.GoIfFalse(&cond)
	if err != nil {
		return stmtErr(err)
	}

	if err := fs.EndScope(span); err != nil {
		return stmtErr(err)
	}

	backPC := fs.emitJump(span, OpJmp, 0)
	patchInstruction(fs, backPC, loopStart)

	if err := fs.g().MakeUnconditional(trueList).PatchHere(); err != nil {
		return stmtErr(err)
	}
	lc.continueTarget = testPC
	if err := lc.breakEdge.PatchHere(); err != nil {
		return stmtErr(err)
	}
	if err := lc.continueEdge.PatchTo(testPC); err != nil {
		return stmtErr(err)
	}
	fs.PopLoop()
	return stmtOK()
}

func (em *Emitter) VisitNumericFor(n ast.NumericForStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)

	base, err := fs.regs.Reserve(span, 4)
	if err != nil {
		return stmtErr(err)
	}
	idxReg, stopReg, stepReg, extReg := base.base, base.base+1, base.base+2, base.base+3

	start, err := em.EmitExpr(n.Start)
	if err != nil {
		return stmtErr(err)
	}
	if err := fs.ToReg(&start, idxReg); err != nil {
		return stmtErr(err)
	}
	stop, err := em.EmitExpr(n.Stop)
	if err != nil {
		return stmtErr(err)
	}
	if err := fs.ToReg(&stop, stopReg); err != nil {
		return stmtErr(err)
	}
	if n.Step != nil {
		step, err := em.EmitExpr(n.Step)
		if err != nil {
			return stmtErr(err)
		}
		if err := fs.ToReg(&step, stepReg); err != nil {
			return stmtErr(err)
		}
	} else {
		one := newNumExpr(1, span)
		if err := fs.ToReg(&one, stepReg); err != nil {
			return stmtErr(err)
		}
	}

	foriPC := fs.emitJump(span, OpFORI, uint8(idxReg))

	lc := fs.PushLoop(NoJump)
	bodyStart := fs.pc
	fs.vstack = append(fs.vstack, VarInfo{Name: n.Name.Lexeme, Blank: n.Name.Lexeme == blankIdentifier, Slot: extReg, StartPC: bodyStart})
	fs.regs.SetNActVar(extReg + 1)

	if err := em.emitBlockBody(span, n.Body, true); err != nil {
		return stmtErr(err)
	}

	forlPC := fs.emitJump(span, OpFORL, uint8(idxReg))
	patchInstruction(fs, forlPC, bodyStart)
	patchInstruction(fs, foriPC, fs.pc)
	lc.continueTarget = forlPC

	if err := lc.breakEdge.PatchHere(); err != nil {
		return stmtErr(err)
	}
	if err := lc.continueEdge.PatchTo(lc.continueTarget); err != nil {
		return stmtErr(err)
	}
	fs.PopLoop()

	fs.vstack = fs.vstack[:len(fs.vstack)-1]
	fs.regs.SetNActVar(base.base)
	fs.regs.freereg = base.base
	return stmtOK()
}

// isPairsOrNextCall reports whether iterators opens with a direct call to
// the `pairs`/`next` globals, enabling the ISNEXT/ITERN fast path over the
// generic ITERC dispatch.
func isPairsOrNextCall(iterators []ast.Expression) bool {
	if len(iterators) == 0 {
		return false
	}
	call, ok := iterators[0].(ast.CallExpr)
	if !ok {
		return false
	}
	ident, ok := call.Callee.(ast.IdentifierExpr)
	if !ok {
		return false
	}
	return ident.Name.Lexeme == "pairs" || ident.Name.Lexeme == "next"
}

func (em *Emitter) VisitGenericFor(n ast.GenericForStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)

	ctrlBase, err := fs.regs.Reserve(span, 3)
	if err != nil {
		return stmtErr(err)
	}
	if err := em.emitExprList(span, n.Iterators, 3); err != nil {
		return stmtErr(err)
	}

	nvars := len(n.Names)
	varsBase, err := fs.regs.Reserve(span, nvars)
	if err != nil {
		return stmtErr(err)
	}

	fast := isPairsOrNextCall(n.Iterators)
	var entryPC BCPos
	if fast {
		entryPC = fs.emitJump(span, OpISNext, uint8(varsBase.base))
	} else {
		entryPC = fs.emitJump(span, OpJmp, 0)
	}

	lc := fs.PushLoop(NoJump)
	bodyStart := fs.pc
	for i, name := range n.Names {
		fs.vstack = append(fs.vstack, VarInfo{Name: name.Lexeme, Blank: name.Lexeme == blankIdentifier, Slot: varsBase.base + BCReg(i), StartPC: bodyStart})
	}
	fs.regs.SetNActVar(varsBase.base + BCReg(nvars))

	if err := em.emitBlockBody(span, n.Body, true); err != nil {
		return stmtErr(err)
	}

	iterOp := OpITERC
	if fast {
		iterOp = OpITERN
	}
	fs.emit(span, ABC(iterOp, uint8(varsBase.base), uint8(nvars+1), 2))
	testPC := fs.pc
	iterlPC := fs.emitJump(span, OpITERL, uint8(varsBase.base))
	patchInstruction(fs, iterlPC, bodyStart)
	patchInstruction(fs, entryPC, testPC-1)
	lc.continueTarget = testPC - 1

	if err := lc.breakEdge.PatchHere(); err != nil {
		return stmtErr(err)
	}
	if err := lc.continueEdge.PatchTo(lc.continueTarget); err != nil {
		return stmtErr(err)
	}
	fs.PopLoop()

	fs.vstack = fs.vstack[:len(fs.vstack)-nvars]
	fs.regs.SetNActVar(ctrlBase.base)
	fs.regs.freereg = ctrlBase.base
	return stmtOK()
}

func (em *Emitter) VisitBreak(n ast.BreakStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)
	lc := fs.currentLoop()
	if lc == nil {
		return stmtErr(newInternalError("break outside of a loop"))
	}
	if err := fs.runDefers(span, lc.deferBase); err != nil {
		return stmtErr(err)
	}
	jpc := fs.emitJump(span, OpJmp, 0)
	lc.breakEdge.Append(jpc)
	return stmtOK()
}

func (em *Emitter) VisitContinue(n ast.ContinueStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)
	lc := fs.currentLoop()
	if lc == nil {
		return stmtErr(newInternalError("continue outside of a loop"))
	}
	if err := fs.runDefers(span, lc.deferBase); err != nil {
		return stmtErr(err)
	}
	jpc := fs.emitJump(span, OpJmp, 0)
	lc.continueEdge.Append(jpc)
	return stmtOK()
}

// VisitDefer emits the deferred call's callee and arguments into
// consecutive registers starting at the current freereg and promotes them
// to permanent vstack entries (Defer/DeferArg) rather than releasing them,
// so runDefers can replay the call on scope exit.
func (em *Emitter) VisitDefer(n ast.DeferStmt) any {
	fs := em.fs
	span := spanToken(n.Span_)

	base, err := fs.regs.Reserve(span, 1)
	if err != nil {
		return stmtErr(err)
	}
	callee, err := em.EmitExpr(n.Call.Callee)
	if err != nil {
		return stmtErr(err)
	}

	argCount := 0
	if n.Call.Method != "" {
		if err := fs.Discharge(&callee); err != nil {
			return stmtErr(err)
		}
		fs.regs.ReleaseExpression(&callee)
		selfReg, err := fs.regs.Reserve(span, 1)
		if err != nil {
			return stmtErr(err)
		}
		if err := fs.ToReg(&callee, selfReg.base); err != nil {
			return stmtErr(err)
		}
		midx, err := fs.constants.internString(span, n.Call.Method)
		if err != nil {
			return stmtErr(err)
		}
		fs.emit(span, ABC(OpTGetS, uint8(base.base), uint8(selfReg.base), uint8(midx)))
		argCount = 1
	} else if err := fs.ToReg(&callee, base.base); err != nil {
		return stmtErr(err)
	}

	for _, a := range n.Call.Args {
		v, err := em.EmitExpr(a)
		if err != nil {
			return stmtErr(err)
		}
		if err := fs.ToNextReg(&v); err != nil {
			return stmtErr(err)
		}
		argCount++
	}

	fs.vstack = append(fs.vstack, VarInfo{Slot: base.base, StartPC: fs.pc, Defer: true})
	for i := 0; i < argCount; i++ {
		fs.vstack = append(fs.vstack, VarInfo{Slot: base.base + BCReg(i+1), StartPC: fs.pc, DeferArg: true})
	}
	fs.regs.SetNActVar(base.base + BCReg(argCount+1))
	return stmtOK()
}
