package emitter

// Discharge normalises e into one of NonReloc, Relocable, Jmp, or a pure
// constant, resolving the symbolic kinds (Local, Upval, Global, Indexed,
// Call) into an emitted instruction with a register or relocable
// destination. This is the central operation described in §4.3.
func (fs *FuncState) Discharge(e *ExpDesc) error {
	switch e.Kind {
	case ExpLocal:
		e.Kind = ExpNonReloc
	case ExpUpval:
		pc := fs.emit(e.Span, AD(OpUGet, 0, uint16(e.Info)))
		e.Kind = ExpRelocable
		e.Info = BCReg(pc)
	case ExpGlobal:
		idx, err := fs.constants.internString(e.Span, e.Str)
		if err != nil {
			return err
		}
		pc := fs.emit(e.Span, AD(OpGGet, 0, uint16(idx)))
		e.Kind = ExpRelocable
		e.Info = BCReg(pc)
	case ExpIndexed:
		var pc BCPos
		switch {
		case e.HasFlag(FlagBitwiseBase):
			// no TGETV is emitted for a value carrying this flag.
		default:
			pc = fs.emit(e.Span, ABC(OpTGetV, 0, uint8(e.Info), uint8(e.Aux)))
		}
		e.Kind = ExpRelocable
		e.Info = BCReg(pc)
	case ExpCall:
		e.Kind = ExpNonReloc
		e.Info = e.Aux
	case ExpJmp:
		// resolved by ToReg's boolean-materialisation path.
	}
	return nil
}

// ToVal is the weaker normalisation used before a constant-pool lookup: e
// ends up either a constant or a materialised register.
func (fs *FuncState) ToVal(e *ExpDesc) error {
	if e.HasJump() {
		return fs.toAnyRegInternal(e)
	}
	return fs.Discharge(e)
}

// ToReg forces e into register r, emitting the concrete load/move
// instruction for e's kind and patching e's true/false jump lists to the
// current PC (since the value is now materialised, any pending branches
// resolve to "fall through to here").
func (fs *FuncState) ToReg(e *ExpDesc, r BCReg) error {
	if err := fs.Discharge(e); err != nil {
		return err
	}
	switch e.Kind {
	case ExpNil:
		fs.emit(e.Span, ABC(OpKNil, uint8(r), uint8(r), 0))
	case ExpFalse:
		fs.emit(e.Span, ABC(OpKPri, uint8(r), uint8(PrimFalse), 0))
	case ExpTrue:
		fs.emit(e.Span, ABC(OpKPri, uint8(r), uint8(PrimTrue), 0))
	case ExpNum:
		idx, err := fs.constants.internNumber(e.Span, e.Num)
		if err != nil {
			return err
		}
		fs.emit(e.Span, AD(OpKNum, uint8(r), uint16(idx)))
	case ExpStr:
		idx, err := fs.constants.internString(e.Span, e.Str)
		if err != nil {
			return err
		}
		fs.emit(e.Span, AD(OpKStr, uint8(r), uint16(idx)))
	case ExpNonReloc:
		if e.Info != r {
			fs.emit(e.Span, ABC(OpMov, uint8(r), uint8(e.Info), 0))
		}
	case ExpRelocable:
		fs.code[e.Info] = fs.code[e.Info].WithArgA(uint8(r))
	case ExpJmp:
		// boolean materialisation handled by the caller (presence/ternary).
	}

	if e.HasJump() {
		if e.T != NoJump {
			if err := fs.g().MakeTrueEdge(e.T).PatchHere(); err != nil {
				return err
			}
		}
		if e.F != NoJump {
			if err := fs.g().MakeFalseEdge(e.F).PatchHere(); err != nil {
				return err
			}
		}
		e.T, e.F = NoJump, NoJump
	}

	e.Kind = ExpNonReloc
	e.Info = r
	return nil
}

func (fs *FuncState) g() *ControlFlowGraph { return fs.cfg }

// ToNextReg forces e into the next free register and reserves it.
func (fs *FuncState) ToNextReg(e *ExpDesc) error {
	if err := fs.ToReg(e, fs.regs.FreeReg()); err != nil {
		return err
	}
	_, err := fs.regs.Reserve(e.Span, 1)
	return err
}

// ToAnyReg returns a register holding e's value: if e is already a
// register, that register is reused; otherwise one is allocated.
func (fs *FuncState) ToAnyReg(e *ExpDesc) (BCReg, error) {
	if err := fs.toAnyRegInternal(e); err != nil {
		return 0, err
	}
	return e.Info, nil
}

func (fs *FuncState) toAnyRegInternal(e *ExpDesc) error {
	if err := fs.Discharge(e); err != nil {
		return err
	}
	if e.Kind == ExpNonReloc && !e.HasJump() {
		return nil
	}
	return fs.ToNextReg(e)
}

// releaseOperandRegisters releases a and b's registers, LIFO, when both
// are the two topmost temporaries — used after comparisons/arithmetic to
// collapse freereg back down.
func (fs *FuncState) releaseOperandRegisters(a, b *ExpDesc) {
	fs.regs.ReleaseExpression(b)
	fs.regs.ReleaseExpression(a)
}
