package emitter

import "fluid/token"

// VarInfo is one entry of the (emitter-local analogue of the) lexer
// variable stack described in SPEC_FULL.md §3.4: every declared local gets
// an entry recording its name, the slot it occupies, the PC at which the
// binding starts, and defer-related flags.
type VarInfo struct {
	Name     string
	Blank    bool // the reserved write-only "_" identifier
	Slot     BCReg
	StartPC  BCPos
	Defer    bool
	DeferArg bool
}

// FuncScope is one entry of a function's scope stack (§4.6): it records
// the active-variable floor at entry and whether any local declared in
// this scope was captured as an upvalue by a nested function, in which
// case scope exit must emit UCLO.
type FuncScope struct {
	nactvarAtEntry BCReg
	isLoop         bool
	hasUpvalue     bool
}

// LoopContext is the per-loop state described in §3.6: break and continue
// are jump-list edges collected until the loop resolves them, defer_base
// is the active-variable floor defers must unwind to, and continueTarget
// is the PC a `continue` jumps to (the loop's test/iterator instruction).
type LoopContext struct {
	breakEdge      ControlFlowEdge
	continueEdge   ControlFlowEdge
	deferBase      BCReg
	continueTarget BCPos
}

// UpvalEntry is one entry of a function's upvalue map (§3.2): it either
// references a local slot in the immediately enclosing function
// (IsParentLocal) or an upvalue slot already present in that function.
type UpvalEntry struct {
	Name          string
	IsParentLocal bool // PROTO_UV_LOCAL
	Slot          BCReg
}

// FuncState is the per-function compilation state created on entry to
// every function body, including the script's top level and every nested
// function literal (§3.2). Nested literals are compiled with their own
// FuncState chained to their lexical parent via Parent, mirroring
// save/restore of the original's shared bytecode arena — here each
// FuncState simply owns its own instruction slice, since Go's GC makes
// the original's shared-arena-with-saved-base-offsets an unneeded
// memory-locality optimisation rather than a semantic requirement.
type FuncState struct {
	Parent *FuncState

	code  []Instruction
	lines []int32
	pc    BCPos

	lastTarget BCPos
	lastline   int32
	lastSpan   token.Token

	constants *constantPool
	regs      *RegisterAllocator
	cfg       *ControlFlowGraph

	vstack []VarInfo
	uvmap  []UpvalEntry
	scopes []*FuncScope
	loops  []*LoopContext

	HasReturn      bool
	ChildHasReturn bool
	Vararg         bool
	FixUpReturn    bool
	HasFfi         bool
	Child          bool

	ctx *Context
}

func newFuncState(ctx *Context, parent *FuncState) *FuncState {
	fs := &FuncState{
		Parent:     parent,
		constants:  newConstantPool(),
		regs:       newRegisterAllocator(),
		lastTarget: NoJump,
		ctx:        ctx,
	}
	fs.cfg = newControlFlowGraph(fs)
	return fs
}

// --- bytecode emission ---

func (fs *FuncState) emit(span token.Token, instr Instruction) BCPos {
	fs.lastSpan = span
	fs.lastline = span.Line
	pos := fs.pc
	fs.code = append(fs.code, instr)
	fs.lines = append(fs.lines, fs.lastline)
	fs.pc++
	return pos
}

// emitJump appends a BC_JMP-family instruction with an unresolved (NoJump)
// target, suitable for immediate chaining into a jump-list edge.
func (fs *FuncState) emitJump(span token.Token, op OpCode, a uint8) BCPos {
	return fs.emit(span, AJ(op, a, int32(NoJump)))
}

// patchJumpHere rewrites the instruction at pos (assumed to be a
// BC_JMP-family instruction with no further chain) to target the current
// PC, and records lastTarget so peephole folds don't cross it.
func (fs *FuncState) patchJumpHere(pos BCPos) {
	patchInstruction(fs, pos, fs.pc)
	fs.lastTarget = fs.pc
}

// --- scopes ---

// BeginScope pushes a new lexical scope, recording the active-variable
// floor at entry.
func (fs *FuncState) BeginScope(isLoop bool) {
	fs.scopes = append(fs.scopes, &FuncScope{nactvarAtEntry: fs.regs.NActVar(), isLoop: isLoop})
}

// EndScope pops the current scope: it runs any pending defers down to the
// scope's floor, pops the scope's locals off the variable stack, and
// closes upvalues (UCLO) if any popped local was captured.
func (fs *FuncState) EndScope(span token.Token) error {
	n := len(fs.scopes)
	scope := fs.scopes[n-1]
	fs.scopes = fs.scopes[:n-1]

	if err := fs.runDefers(span, scope.nactvarAtEntry); err != nil {
		return err
	}

	if scope.hasUpvalue {
		fs.emit(span, ABC(OpUClo, uint8(scope.nactvarAtEntry), 0, 0))
	}

	for len(fs.vstack) > 0 && fs.vstack[len(fs.vstack)-1].Slot >= scope.nactvarAtEntry {
		fs.vstack = fs.vstack[:len(fs.vstack)-1]
	}
	fs.regs.SetNActVar(scope.nactvarAtEntry)
	return nil
}

// runDefers walks the variable stack in reverse, emitting a CALL for each
// Defer entry above floor, before the scope's locals are popped — per
// SPEC_FULL.md's defer LIFO semantics. A Defer entry's call arguments were
// pushed as the DeferArg entries immediately following it, so the reverse
// walk accumulates them before it reaches the Defer entry itself.
func (fs *FuncState) runDefers(span token.Token, floor BCReg) error {
	pendingArgs := 0
	for i := len(fs.vstack) - 1; i >= 0; i-- {
		v := fs.vstack[i]
		if v.Slot < floor {
			break
		}
		if v.DeferArg {
			pendingArgs++
			continue
		}
		if v.Defer {
			fs.emit(span, ABC(OpCall, uint8(v.Slot), 1, uint8(pendingArgs+1)))
		}
		pendingArgs = 0
	}
	return nil
}

// --- locals ---

const blankIdentifier = "_"

// DeclareLocal reserves a register for name and publishes it to the
// active floor immediately (used for parameters and loop control
// variables, where there is no separate reserve/evaluate/commit split).
func (fs *FuncState) DeclareLocal(span token.Token, name string) (BCReg, error) {
	slot, err := fs.reserveNext(span)
	if err != nil {
		return 0, err
	}
	fs.vstack = append(fs.vstack, VarInfo{Name: name, Blank: name == blankIdentifier, Slot: slot, StartPC: fs.pc})
	fs.regs.SetNActVar(slot + 1)
	return slot, nil
}

func (fs *FuncState) reserveNext(span token.Token) (BCReg, error) {
	s, err := fs.regs.Reserve(span, 1)
	if err != nil {
		return 0, err
	}
	return s.base, nil
}

// ResolveLocal scans the function's active locals (top of vstack down)
// for a non-blank symbol match.
func (fs *FuncState) ResolveLocal(name string) (BCReg, bool) {
	for i := len(fs.vstack) - 1; i >= 0; i-- {
		v := fs.vstack[i]
		if v.Blank {
			continue
		}
		if v.Name == name {
			return v.Slot, true
		}
	}
	return 0, false
}

// markUpvalueCaptured flags the innermost scope containing slot as having
// captured an upvalue, so EndScope emits UCLO on exit.
func (fs *FuncState) markUpvalueCaptured(slot BCReg) {
	for i := len(fs.scopes) - 1; i >= 0; i-- {
		if fs.scopes[i].nactvarAtEntry <= slot {
			fs.scopes[i].hasUpvalue = true
			return
		}
	}
}

// ResolveUpvalue recursively resolves name as an upvalue: first asking the
// parent function for it as a local (recording PROTO_UV_LOCAL), else
// recursing into the grandparent and recording a reference to the
// parent's own upvalue. Duplicate entries referencing the same source are
// coalesced.
func (fs *FuncState) ResolveUpvalue(span token.Token, name string) (BCReg, bool, error) {
	if fs.Parent == nil {
		return 0, false, nil
	}
	for i, uv := range fs.uvmap {
		if uv.Name == name {
			return BCReg(i), true, nil
		}
	}

	if slot, ok := fs.Parent.ResolveLocal(name); ok {
		fs.Parent.markUpvalueCaptured(slot)
		return fs.addUpvalue(span, name, true, slot)
	}
	if slot, ok, err := fs.Parent.ResolveUpvalue(span, name); err != nil {
		return 0, false, err
	} else if ok {
		return fs.addUpvalue(span, name, false, slot)
	}
	return 0, false, nil
}

func (fs *FuncState) addUpvalue(span token.Token, name string, isParentLocal bool, slot BCReg) (BCReg, bool, error) {
	if len(fs.uvmap) >= BCMaxUV {
		return 0, false, newSourceError(XLimC, span, "too many upvalues")
	}
	fs.uvmap = append(fs.uvmap, UpvalEntry{Name: name, IsParentLocal: isParentLocal, Slot: slot})
	return BCReg(len(fs.uvmap) - 1), true, nil
}

// --- loops ---

func (fs *FuncState) PushLoop(continueTarget BCPos) *LoopContext {
	lc := &LoopContext{
		breakEdge:      fs.cfg.MakeBreakEdge(NoJump),
		continueEdge:   fs.cfg.MakeContinueEdge(NoJump),
		deferBase:      fs.regs.NActVar(),
		continueTarget: continueTarget,
	}
	fs.loops = append(fs.loops, lc)
	return lc
}

func (fs *FuncState) PopLoop() {
	fs.loops = fs.loops[:len(fs.loops)-1]
}

func (fs *FuncState) currentLoop() *LoopContext {
	if len(fs.loops) == 0 {
		return nil
	}
	return fs.loops[len(fs.loops)-1]
}

// --- finalisation ---

// Prototype is what the external finaliser produces for one compiled
// function, per SPEC_FULL.md §6.3.
type Prototype struct {
	Code      []Instruction
	Lines     []int32
	Numbers   []float64
	Strings   []string
	Protos    []Prototype
	Upvalues  []UpvalEntry
	Vararg    bool
	HasFfi    bool
	HasChild  bool
	NumParams int
}

// Finish closes out a function's compilation: it coalesces JMP-to-JMP
// chains (peephole, bounded to avoid looping on malformed chains — ported
// from the original's finish()-time peephole pass), checks for edges that
// were never patched (an emitter bug, not a source error), and returns the
// finished Prototype.
func (fs *FuncState) Finish(numParams int) (Prototype, error) {
	if bad := fs.cfg.unresolvedEdges(); len(bad) > 0 {
		return Prototype{}, newInternalError("%d control-flow edge(s) left unresolved at function close", len(bad))
	}

	fs.coalesceJumpChains()

	var protos []Prototype
	for _, obj := range fs.constants.gcObjects {
		if obj.typeTag == gcTagProto {
			protos = append(protos, obj.value.(Prototype))
		}
	}

	return Prototype{
		Code:      fs.code,
		Lines:     fs.lines,
		Numbers:   fs.constants.numbers,
		Strings:   fs.constants.strings,
		Protos:    protos,
		Upvalues:  fs.uvmap,
		Vararg:    fs.Vararg,
		HasFfi:    fs.HasFfi,
		HasChild:  fs.Child,
		NumParams: numParams,
	}, nil
}

// coalesceJumpChains collapses JMP instructions that target another JMP
// into a direct jump to the ultimate target, capped at a bounded number of
// hops to tolerate (without looping forever on) a malformed chain.
const maxJumpChainHops = 64

func (fs *FuncState) coalesceJumpChains() {
	for pc, instr := range fs.code {
		if instr.OpCode() != OpJmp {
			continue
		}
		target := BCPos(pc) + 1 + BCPos(instr.J())
		hops := 0
		for target >= 0 && int(target) < len(fs.code) && fs.code[target].OpCode() == OpJmp && hops < maxJumpChainHops {
			next := target + 1 + BCPos(fs.code[target].J())
			if next == target {
				break
			}
			target = next
			hops++
		}
		fs.code[pc] = fs.code[pc].WithJ(int32(target) - int32(pc) - 1)
	}
}
