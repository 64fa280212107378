package emitter

import "fluid/token"

// AllocatedRegister is a handle to a single reserved register. The
// original implementation manages this lifetime with a move-only RAII type
// whose destructor releases the register; Go has no destructors, so the
// handle here is released explicitly via (*RegisterAllocator).Release,
// typically through a deferred call at the point of reservation — the
// explicit-end-of-scope idiom SPEC_FULL.md's Design Notes section asks for,
// following the same pattern already used by the pack's own Go Lua
// bytecode compiler (luacode's FuncState, which has no finalizer either).
type AllocatedRegister struct {
	reg         BCReg
	expectedTop BCReg
	released    bool
}

// Reg returns the allocated register.
func (h AllocatedRegister) Reg() BCReg { return h.reg }

// RegisterSpan is a handle to a contiguous run of reserved registers.
type RegisterSpan struct {
	base        BCReg
	n           int
	expectedTop BCReg
	released    bool
}

// Base returns the first register of the span.
func (s RegisterSpan) Base() BCReg { return s.base }

// Len returns the number of registers in the span.
func (s RegisterSpan) Len() int { return s.n }

// RegisterAllocator manages a single watermark, freereg, denoting the
// first unused register above the active-variable floor nactvar. Registers
// below nactvar are live locals and are never handed out or released by
// this allocator.
type RegisterAllocator struct {
	freereg BCReg
	nactvar BCReg
}

func newRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{}
}

// FreeReg returns the current watermark.
func (ra *RegisterAllocator) FreeReg() BCReg { return ra.freereg }

// NActVar returns the active-variable floor.
func (ra *RegisterAllocator) NActVar() BCReg { return ra.nactvar }

// SetNActVar adjusts the active-variable floor, used when locals are
// declared or a scope pops them back off.
func (ra *RegisterAllocator) SetNActVar(n BCReg) { ra.nactvar = n }

// Bump ensures freereg+n does not exceed the per-function register limit.
func (ra *RegisterAllocator) Bump(span token.Token, n int) error {
	if int(ra.freereg)+n > MaxRegisters {
		return newSourceError(XSlots, span, "function or expression needs too many registers")
	}
	return nil
}

// Reserve bumps then advances freereg by n, returning a span handle the
// caller must Release exactly once.
func (ra *RegisterAllocator) Reserve(span token.Token, n int) (RegisterSpan, error) {
	if err := ra.Bump(span, n); err != nil {
		return RegisterSpan{}, err
	}
	base := ra.freereg
	ra.freereg += BCReg(n)
	return RegisterSpan{base: base, n: n, expectedTop: ra.freereg}, nil
}

// Acquire reserves a single register.
func (ra *RegisterAllocator) Acquire(span token.Token) (AllocatedRegister, error) {
	s, err := ra.Reserve(span, 1)
	if err != nil {
		return AllocatedRegister{}, err
	}
	return AllocatedRegister{reg: s.base, expectedTop: s.expectedTop}, nil
}

// Release reverts freereg if h is still the topmost allocation; otherwise
// it is a no-op because a later allocation has already grown past it.
// Releasing an already-released handle is a no-op.
func (ra *RegisterAllocator) Release(h *AllocatedRegister) {
	if h.released {
		return
	}
	h.released = true
	if ra.freereg == h.expectedTop {
		ra.freereg--
	}
}

// ReleaseSpan is the span analogue of Release.
func (ra *RegisterAllocator) ReleaseSpan(s *RegisterSpan) {
	if s.released {
		return
	}
	s.released = true
	if ra.freereg == s.expectedTop {
		ra.freereg -= BCReg(s.n)
	}
}

// ReleaseRegister is a pure watermark collapse: if r is live and sits
// exactly at the top of the free-register range, drop the watermark by
// one. Used when the caller only has a raw register index rather than a
// handle (e.g. releasing an ExpDesc's NonReloc register).
func (ra *RegisterAllocator) ReleaseRegister(r BCReg) {
	if r >= ra.nactvar && r+1 == ra.freereg {
		ra.freereg--
	}
}

// ReleaseExpression releases the register backing e, if e owns one
// (kind NonReloc).
func (ra *RegisterAllocator) ReleaseExpression(e *ExpDesc) {
	if e.Kind == ExpNonReloc {
		ra.ReleaseRegister(e.Info)
	}
}
