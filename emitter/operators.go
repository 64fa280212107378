package emitter

import (
	"math"

	"fluid/token"
)

// bitLibraryFunctions maps a bitwise operator token to the name of the
// runtime library function the operator lowers to when it cannot be
// constant-folded, per §4.4.6.
var bitLibraryFunctions = map[token.TokenType]string{
	token.AMP:   "band",
	token.PIPE:  "bor",
	token.TILDE: "bxor",
	token.SHL:   "lshift",
	token.SHR:   "rshift",
}

func isBitwiseOp(t token.TokenType) bool {
	_, ok := bitLibraryFunctions[t]
	return ok
}

func isArithmeticOp(t token.TokenType) bool {
	switch t {
	case token.ADD, token.SUB, token.MULT, token.DIV, token.PERCENT, token.CARET:
		return true
	}
	return false
}

func isComparisonOp(t token.TokenType) bool {
	switch t {
	case token.EQUAL_EQUAL, token.NOT_EQUAL, token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL:
		return true
	}
	return false
}

// --- 4.4.1 unary operators ---

// EmitNegate lowers unary `-`, constant-folding when the operand is a
// non-zero numeric constant (§4.4.1 rejects folding -0, to preserve
// IEEE-754 signed-zero semantics at runtime).
func (fs *FuncState) EmitNegate(span token.Token, operand ExpDesc) (ExpDesc, error) {
	if err := fs.ToVal(&operand); err != nil {
		return ExpDesc{}, err
	}
	if operand.IsNumberConstant() && operand.Num != 0 {
		operand.Num = -operand.Num
		return operand, nil
	}
	r, err := fs.ToAnyReg(&operand)
	if err != nil {
		return ExpDesc{}, err
	}
	fs.regs.ReleaseExpression(&operand)
	pc := fs.emit(span, ABC(OpUnm, 0, uint8(r), 0))
	return ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span}, nil
}

// EmitNot lowers unary `not` by swapping e's true/false jump lists — a
// negation is "free": nothing needs to materialise, the branches the
// caller threads through e simply mean the opposite thing from here on.
// A register value with no pending jumps has no branches to swap, so it
// is negated with a NOT instruction instead.
func (fs *FuncState) EmitNot(span token.Token, e ExpDesc) (ExpDesc, error) {
	if err := fs.Discharge(&e); err != nil {
		return ExpDesc{}, err
	}
	switch e.Kind {
	case ExpNil, ExpFalse:
		e.Kind = ExpTrue
	case ExpTrue:
		e.Kind = ExpFalse
	case ExpNum, ExpStr, ExpCData:
		e.Kind = ExpFalse
	case ExpNonReloc, ExpRelocable:
		if !e.HasJump() {
			r, err := fs.ToAnyReg(&e)
			if err != nil {
				return ExpDesc{}, err
			}
			fs.regs.ReleaseExpression(&e)
			pc := fs.emit(span, ABC(OpNot, 0, uint8(r), 0))
			return ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span}, nil
		}
		e.T, e.F = e.F, e.T
	default:
		e.T, e.F = e.F, e.T
	}
	e.Span = span
	return e, nil
}

// EmitLength lowers unary `#`.
func (fs *FuncState) EmitLength(span token.Token, operand ExpDesc) (ExpDesc, error) {
	r, err := fs.ToAnyReg(&operand)
	if err != nil {
		return ExpDesc{}, err
	}
	fs.regs.ReleaseExpression(&operand)
	pc := fs.emit(span, ABC(OpLen, 0, uint8(r), 0))
	return ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span}, nil
}

// EmitBitwiseNot lowers unary `~`, constant-folding via 32-bit two's
// complement, else calling bit.bnot.
func (fs *FuncState) EmitBitwiseNot(span token.Token, operand ExpDesc) (ExpDesc, error) {
	if err := fs.ToVal(&operand); err != nil {
		return ExpDesc{}, err
	}
	if operand.IsNumberConstant() {
		folded := float64(^int32(operand.Num))
		operand.Num = folded
		return operand, nil
	}
	return fs.emitBitCall(span, "bnot", operand, nil)
}

// --- 4.4.2 arithmetic ---

var arithVNOp = map[token.TokenType]OpCode{
	token.ADD: OpAddVN, token.SUB: OpSubVN, token.MULT: OpMulVN, token.DIV: OpDivVN, token.PERCENT: OpModVN,
}
var arithNVOp = map[token.TokenType]OpCode{
	token.ADD: OpAddNV, token.SUB: OpSubNV, token.MULT: OpMulNV, token.DIV: OpDivNV, token.PERCENT: OpModNV,
}
var arithVVOp = map[token.TokenType]OpCode{
	token.ADD: OpAddVV, token.SUB: OpSubVV, token.MULT: OpMulVV, token.DIV: OpDivVV, token.PERCENT: OpModVV,
}

func foldArith(op token.TokenType, a, b float64) (float64, bool) {
	var r float64
	switch op {
	case token.ADD:
		r = a + b
	case token.SUB:
		r = a - b
	case token.MULT:
		r = a * b
	case token.DIV:
		r = a / b
	case token.PERCENT:
		r = a - math.Floor(a/b)*b
	case token.CARET:
		r = math.Pow(a, b)
	default:
		return 0, false
	}
	if math.IsNaN(r) || (r == 0 && math.Signbit(r)) {
		return 0, false
	}
	return r, true
}

// EmitArithmetic lowers `+ - * / % ^` per §4.4.2: constant-fold when both
// sides are numeric constants, else prefer the VN/NV single-constant
// instruction variant over spending a constant-pool slot, else VV with
// both operands in registers. Power always takes the VV-only POW path.
func (fs *FuncState) EmitArithmetic(span token.Token, op token.TokenType, lhs, rhs ExpDesc) (ExpDesc, error) {
	if err := fs.ToVal(&lhs); err != nil {
		return ExpDesc{}, err
	}
	if err := fs.ToVal(&rhs); err != nil {
		return ExpDesc{}, err
	}

	if lhs.IsNumberConstant() && rhs.IsNumberConstant() {
		if folded, ok := foldArith(op, lhs.Num, rhs.Num); ok {
			return newNumExpr(folded, span), nil
		}
	}

	if op != token.CARET && rhs.IsNumberConstant() {
		if idx, err := fs.constants.internNumber(span, rhs.Num); err == nil && idx <= BCMaxC {
			lr, err := fs.ToAnyReg(&lhs)
			if err != nil {
				return ExpDesc{}, err
			}
			fs.regs.ReleaseExpression(&lhs)
			pc := fs.emit(span, ABC(arithVNOp[op], 0, uint8(lr), uint8(idx)))
			return ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span}, nil
		}
	}
	if op != token.CARET && lhs.IsNumberConstant() {
		if idx, err := fs.constants.internNumber(span, lhs.Num); err == nil && idx <= BCMaxC {
			rr, err := fs.ToAnyReg(&rhs)
			if err != nil {
				return ExpDesc{}, err
			}
			fs.regs.ReleaseExpression(&rhs)
			pc := fs.emit(span, ABC(arithNVOp[op], 0, uint8(rr), uint8(idx)))
			return ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span}, nil
		}
	}

	lr, err := fs.ToAnyReg(&lhs)
	if err != nil {
		return ExpDesc{}, err
	}
	rr, err := fs.ToAnyReg(&rhs)
	if err != nil {
		return ExpDesc{}, err
	}
	fs.releaseOperandRegisters(&lhs, &rhs)

	opcode := OpPow
	if op != token.CARET {
		opcode = arithVVOp[op]
	}
	pc := fs.emit(span, ABC(opcode, 0, uint8(lr), uint8(rr)))
	return ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span}, nil
}

// --- 4.4.3 comparisons ---

// EmitComparison lowers `== != < <= > >=` per §4.4.3: equality prefers a
// specialised constant-compare opcode with the constant operand on the
// right; ordered comparisons reduce GT/GE to LT/LE with swapped operands,
// then emit an unconditional JMP whose PC becomes the result's jump-list
// head (kind Jmp, resolved later by the caller via GoIfTrue/GoIfFalse).
func (fs *FuncState) EmitComparison(span token.Token, op token.TokenType, lhs, rhs ExpDesc) (ExpDesc, error) {
	if op == token.EQUAL_EQUAL || op == token.NOT_EQUAL {
		return fs.emitEquality(span, op, lhs, rhs)
	}
	return fs.emitOrdered(span, op, lhs, rhs)
}

func (fs *FuncState) emitEquality(span token.Token, op token.TokenType, lhs, rhs ExpDesc) (ExpDesc, error) {
	if err := fs.ToVal(&lhs); err != nil {
		return ExpDesc{}, err
	}
	if err := fs.ToVal(&rhs); err != nil {
		return ExpDesc{}, err
	}

	negate := op == token.NOT_EQUAL
	// the constant must be on the right; swap if the LHS is the constant.
	if rhs.Kind != ExpNum && rhs.Kind != ExpStr && rhs.Kind != ExpNil && rhs.Kind != ExpTrue && rhs.Kind != ExpFalse {
		if lhs.Kind == ExpNum || lhs.Kind == ExpStr || lhs.Kind == ExpNil || lhs.Kind == ExpTrue || lhs.Kind == ExpFalse {
			lhs, rhs = rhs, lhs
		}
	}

	lr, err := fs.ToAnyReg(&lhs)
	if err != nil {
		return ExpDesc{}, err
	}

	switch rhs.Kind {
	case ExpNil, ExpTrue, ExpFalse:
		pri := PrimNil
		switch rhs.Kind {
		case ExpTrue:
			pri = PrimTrue
		case ExpFalse:
			pri = PrimFalse
		}
		op := OpISEQP
		if negate {
			op = OpISNEP
		}
		fs.emit(span, ABC(op, uint8(lr), uint8(pri), 0))
	case ExpStr:
		idx, ierr := fs.constants.internString(span, rhs.Str)
		if ierr != nil {
			return ExpDesc{}, ierr
		}
		op := OpISEQS
		if negate {
			op = OpISNES
		}
		fs.emit(span, AD(op, uint8(lr), uint16(idx)))
	case ExpNum:
		idx, ierr := fs.constants.internNumber(span, rhs.Num)
		if ierr != nil {
			return ExpDesc{}, ierr
		}
		op := OpISEQN
		if negate {
			op = OpISNEN
		}
		fs.emit(span, AD(op, uint8(lr), uint16(idx)))
	default:
		rr, rerr := fs.ToAnyReg(&rhs)
		if rerr != nil {
			return ExpDesc{}, rerr
		}
		fs.releaseOperandRegisters(&lhs, &rhs)
		op := OpISEQV
		if negate {
			op = OpISNEV
		}
		fs.emit(span, ABC(op, uint8(lr), uint8(rr), 0))
	}
	if rhs.Kind == ExpNil || rhs.Kind == ExpTrue || rhs.Kind == ExpFalse || rhs.Kind == ExpStr || rhs.Kind == ExpNum {
		fs.regs.ReleaseExpression(&lhs)
	}
	jpc := fs.emitJump(span, OpJmp, 0)
	return ExpDesc{Kind: ExpJmp, Info: BCReg(jpc), T: jpc, F: NoJump, Span: span}, nil
}

func (fs *FuncState) emitOrdered(span token.Token, op token.TokenType, lhs, rhs ExpDesc) (ExpDesc, error) {
	swap := false
	switch op {
	case token.LARGER:
		op, swap = token.LESS, true
	case token.LARGER_EQUAL:
		op, swap = token.LESS_EQUAL, true
	}
	if swap {
		lhs, rhs = rhs, lhs
	}

	if err := fs.ToVal(&lhs); err != nil {
		return ExpDesc{}, err
	}
	if err := fs.ToVal(&rhs); err != nil {
		return ExpDesc{}, err
	}
	lr, err := fs.ToAnyReg(&lhs)
	if err != nil {
		return ExpDesc{}, err
	}
	rr, err := fs.ToAnyReg(&rhs)
	if err != nil {
		return ExpDesc{}, err
	}
	fs.releaseOperandRegisters(&lhs, &rhs)

	opcode := OpISLT
	if op == token.LESS_EQUAL {
		opcode = OpISLE
	}
	fs.emit(span, ABC(opcode, uint8(lr), uint8(rr), 0))
	jpc := fs.emitJump(span, OpJmp, 0)
	return ExpDesc{Kind: ExpJmp, Info: BCReg(jpc), T: jpc, F: NoJump, Span: span}, nil
}

// --- 4.4.4 logical and/or ---

// GoIfTrue resolves e so that falling through means "true": discharges it,
// materialising a final IST/JMP test if e is not already a Jmp, and
// returns the accumulated false-list (branches to take when e is false).
func (fs *FuncState) GoIfTrue(e *ExpDesc) (BCPos, error) {
	if err := fs.Discharge(e); err != nil {
		return NoJump, err
	}
	var falseList BCPos = e.F
	switch e.Kind {
	case ExpTrue, ExpNum, ExpStr, ExpCData:
		return falseList, nil
	case ExpFalse, ExpNil:
		jpc := fs.emitJump(e.Span, OpJmp, 0)
		return appendToChain(fs, falseList, jpc), nil
	case ExpJmp:
		falseList = appendToChain(fs, falseList, BCPos(e.Info))
	default:
		r, err := fs.ToAnyReg(e)
		if err != nil {
			return NoJump, err
		}
		fs.emit(e.Span, ABC(OpIST, 0, uint8(r), 0))
		jpc := fs.emitJump(e.Span, OpJmp, 0)
		falseList = appendToChain(fs, falseList, jpc)
	}
	return falseList, nil
}

// GoIfFalse is GoIfTrue's dual.
func (fs *FuncState) GoIfFalse(e *ExpDesc) (BCPos, error) {
	if err := fs.Discharge(e); err != nil {
		return NoJump, err
	}
	var trueList BCPos = e.T
	switch e.Kind {
	case ExpFalse, ExpNil:
		return trueList, nil
	case ExpTrue, ExpNum, ExpStr, ExpCData:
		jpc := fs.emitJump(e.Span, OpJmp, 0)
		trueList = appendToChain(fs, trueList, jpc)
	case ExpJmp:
		trueList = appendToChain(fs, trueList, BCPos(e.Info))
	default:
		r, err := fs.ToAnyReg(e)
		if err != nil {
			return NoJump, err
		}
		fs.emit(e.Span, ABC(OpISF, 0, uint8(r), 0))
		jpc := fs.emitJump(e.Span, OpJmp, 0)
		trueList = appendToChain(fs, trueList, jpc)
	}
	return trueList, nil
}

// PrepareLogicalAnd implements step 1 of §4.4.4 for `and`.
func (fs *FuncState) PrepareLogicalAnd(lhs ExpDesc) (ExpDesc, error) {
	falseList, err := fs.GoIfTrue(&lhs)
	if err != nil {
		return ExpDesc{}, err
	}
	lhs.F = falseList
	if err := fs.g().MakeTrueEdge(lhs.T).PatchHere(); err != nil {
		return ExpDesc{}, err
	}
	lhs.T = NoJump
	return lhs, nil
}

// CompleteLogicalAnd implements step 3 for `and`: merge lhs.F into rhs.F.
func (fs *FuncState) CompleteLogicalAnd(lhs, rhs ExpDesc) (ExpDesc, error) {
	if err := fs.Discharge(&rhs); err != nil {
		return ExpDesc{}, err
	}
	rhs.F = appendToChain(fs, rhs.F, lhs.F)
	return rhs, nil
}

// PrepareLogicalOr implements step 1 for `or`.
func (fs *FuncState) PrepareLogicalOr(lhs ExpDesc) (ExpDesc, error) {
	trueList, err := fs.GoIfFalse(&lhs)
	if err != nil {
		return ExpDesc{}, err
	}
	lhs.T = trueList
	if err := fs.g().MakeFalseEdge(lhs.F).PatchHere(); err != nil {
		return ExpDesc{}, err
	}
	lhs.F = NoJump
	return lhs, nil
}

// CompleteLogicalOr implements step 3 for `or`: merge lhs.T into rhs.T.
func (fs *FuncState) CompleteLogicalOr(lhs, rhs ExpDesc) (ExpDesc, error) {
	if err := fs.Discharge(&rhs); err != nil {
		return ExpDesc{}, err
	}
	rhs.T = appendToChain(fs, rhs.T, lhs.T)
	return rhs, nil
}

// --- 4.4.5 if-empty (??) ---

// EmitIfEmpty lowers `a ?? b` using the extended-falsey predicate. When
// lhs is a compile-time constant the branch is resolved statically;
// otherwise a chain of equality checks against the falsey sentinels forms
// a "skip-RHS" edge resolved, after rhs is emitted, to just past it.
func (fs *FuncState) EmitIfEmpty(span token.Token, lhs ExpDesc, emitRHS func() (ExpDesc, error)) (ExpDesc, error) {
	if err := fs.ToVal(&lhs); err != nil {
		return ExpDesc{}, err
	}
	if lhs.IsConstantNoJump() {
		if !lhs.IsExtendedFalsey() {
			return lhs, nil
		}
		return emitRHS()
	}

	lr, err := fs.ToAnyReg(&lhs)
	if err != nil {
		return ExpDesc{}, err
	}
	skip := fs.emitFalseyChecks(span, lr)

	rhs, err := emitRHS()
	if err != nil {
		return ExpDesc{}, err
	}
	if err := fs.ToReg(&rhs, lr); err != nil {
		return ExpDesc{}, err
	}
	if err := fs.g().MakeUnconditional(skip).PatchHere(); err != nil {
		return ExpDesc{}, err
	}
	return ExpDesc{Kind: ExpNonReloc, Info: lr, T: NoJump, F: NoJump, Span: span}, nil
}

// emitFalseyChecks emits the nil/false/0/""/empty-array equality chain
// against register r, each followed by its own JMP, returning the merged
// "value is present" jump list head.
func (fs *FuncState) emitFalseyChecks(span token.Token, r BCReg) BCPos {
	var list BCPos = NoJump
	emitCheck := func(instr Instruction) {
		fs.emit(span, instr)
		jpc := fs.emitJump(span, OpJmp, 0)
		list = appendToChain(fs, list, jpc)
	}
	emitCheck(ABC(OpISNEP, uint8(r), uint8(PrimNil), 0))
	emitCheck(ABC(OpISNEP, uint8(r), uint8(PrimFalse), 0))
	if idx, err := fs.constants.internNumber(span, 0); err == nil {
		emitCheck(AD(OpISNEN, uint8(r), uint16(idx)))
	}
	if idx, err := fs.constants.internString(span, ""); err == nil {
		emitCheck(AD(OpISNES, uint8(r), uint16(idx)))
	}
	emitCheck(ABC(OpISEmptyArr, uint8(r), 0, 1))
	return list
}

// --- 4.4.6 bitwise binary ---

// EmitBitwise lowers `& | ~ << >>` per §4.4.6: constant-fold with 32-bit
// wraparound when both sides are numeric constants, else call the
// matching bit.* library function.
func (fs *FuncState) EmitBitwise(span token.Token, op token.TokenType, lhs, rhs ExpDesc) (ExpDesc, error) {
	if err := fs.ToVal(&lhs); err != nil {
		return ExpDesc{}, err
	}
	if err := fs.ToVal(&rhs); err != nil {
		return ExpDesc{}, err
	}
	if lhs.IsNumberConstant() && rhs.IsNumberConstant() {
		a, b := int32(lhs.Num), int32(rhs.Num)
		var r int32
		switch op {
		case token.AMP:
			r = a & b
		case token.PIPE:
			r = a | b
		case token.TILDE:
			r = a ^ b
		case token.SHL:
			r = a << uint32(b&31)
		case token.SHR:
			r = int32(uint32(a) >> uint32(b&31))
		}
		return newNumExpr(float64(r), span), nil
	}
	return fs.emitBitCall(span, bitLibraryFunctions[op], lhs, &rhs)
}

// emitBitCall lowers to a CALL against the runtime `bit` library table,
// per the call-frame layout in §4.4.6: base holds the callee, base+1 the
// first argument, base+2 the (optional) second argument.
func (fs *FuncState) emitBitCall(span token.Token, fn string, lhs ExpDesc, rhs *ExpDesc) (ExpDesc, error) {
	base, err := fs.regs.Reserve(span, 1)
	if err != nil {
		return ExpDesc{}, err
	}

	bitGlobal := ExpDesc{Kind: ExpGlobal, Str: "bit", T: NoJump, F: NoJump, Span: span}
	fnIdx, err := fs.constants.internString(span, fn)
	if err != nil {
		return ExpDesc{}, err
	}
	if err := fs.ToReg(&bitGlobal, base.base); err != nil {
		return ExpDesc{}, err
	}
	fs.emit(span, ABC(OpTGetS, uint8(base.base), uint8(base.base), uint8(fnIdx)))

	argc := 1
	argReg, err := fs.regs.Reserve(span, 1)
	if err != nil {
		return ExpDesc{}, err
	}
	if err := fs.ToReg(&lhs, argReg.base); err != nil {
		return ExpDesc{}, err
	}

	if rhs != nil {
		argc = 2
		arg2, err := fs.regs.Reserve(span, 1)
		if err != nil {
			return ExpDesc{}, err
		}
		if err := fs.ToReg(rhs, arg2.base); err != nil {
			return ExpDesc{}, err
		}
	}

	pc := fs.emit(span, ABC(OpCall, uint8(base.base), 2, uint8(argc+1)))
	fs.regs.ReleaseSpan(&base)
	return ExpDesc{Kind: ExpCall, Info: BCReg(pc), Aux: base.base, T: NoJump, F: NoJump, Span: span}, nil
}

// --- 4.4.7 concatenation ---

// EmitConcat lowers `..`, requiring consecutive registers: it extends an
// existing CAT instruction when the RHS is itself a freshly produced CAT
// starting right after the LHS register, flattening `a..b..c` into one
// instruction; otherwise it emits a fresh CAT.
func (fs *FuncState) EmitConcat(span token.Token, lhs ExpDesc, emitRHS func() (ExpDesc, error)) (ExpDesc, error) {
	if err := fs.ToNextReg(&lhs); err != nil {
		return ExpDesc{}, err
	}
	rhs, err := emitRHS()
	if err != nil {
		return ExpDesc{}, err
	}
	if err := fs.ToVal(&rhs); err != nil {
		return ExpDesc{}, err
	}

	if rhs.Kind == ExpRelocable && fs.code[rhs.Info].OpCode() == OpCat && BCReg(fs.code[rhs.Info].ArgB()) == lhs.Info+1 {
		fs.code[rhs.Info] = ABC(OpCat, 0, uint8(lhs.Info), fs.code[rhs.Info].ArgC())
		fs.regs.ReleaseExpression(&lhs)
		return ExpDesc{Kind: ExpRelocable, Info: rhs.Info, T: NoJump, F: NoJump, Span: span}, nil
	}

	rr, err := fs.ToAnyReg(&rhs)
	if err != nil {
		return ExpDesc{}, err
	}
	fs.regs.ReleaseExpression(&rhs)
	fs.regs.ReleaseExpression(&lhs)
	pc := fs.emit(span, ABC(OpCat, 0, uint8(lhs.Info), uint8(rr)))
	return ExpDesc{Kind: ExpRelocable, Info: BCReg(pc), T: NoJump, F: NoJump, Span: span}, nil
}

// --- 4.4.8 presence (x?) ---

// EmitPresence lowers `x?`: constant-fold via the extended-falsey
// predicate, else emit the falsey-check chain and materialise true/false.
func (fs *FuncState) EmitPresence(span token.Token, operand ExpDesc) (ExpDesc, error) {
	if err := fs.ToVal(&operand); err != nil {
		return ExpDesc{}, err
	}
	if operand.IsConstantNoJump() {
		if operand.IsExtendedFalsey() {
			return newConstExpr(ExpFalse, span), nil
		}
		return newConstExpr(ExpTrue, span), nil
	}

	r, err := fs.ToAnyReg(&operand)
	if err != nil {
		return ExpDesc{}, err
	}
	present := fs.emitFalseyChecks(span, r)
	fs.regs.ReleaseExpression(&operand)

	dst, err := fs.regs.Reserve(span, 1)
	if err != nil {
		return ExpDesc{}, err
	}
	fs.emit(span, ABC(OpKPri, uint8(dst.base), uint8(PrimFalse), 0))
	skipTrue := fs.emitJump(span, OpJmp, 0)
	if err := fs.g().MakeUnconditional(present).PatchHere(); err != nil {
		return ExpDesc{}, err
	}
	fs.emit(span, ABC(OpKPri, uint8(dst.base), uint8(PrimTrue), 0))
	if err := fs.g().MakeUnconditional(skipTrue).PatchHere(); err != nil {
		return ExpDesc{}, err
	}
	return ExpDesc{Kind: ExpNonReloc, Info: dst.base, T: NoJump, F: NoJump, Span: span}, nil
}
