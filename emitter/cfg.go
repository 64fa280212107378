package emitter

// ControlFlowEdgeKind distinguishes the purpose of a jump-list edge.
type ControlFlowEdgeKind int

const (
	EdgeUnconditional ControlFlowEdgeKind = iota
	EdgeTrue
	EdgeFalse
	EdgeBreak
	EdgeContinue
)

type cfgEntry struct {
	head     BCPos
	kind     ControlFlowEdgeKind
	resolved bool
}

// ControlFlowGraph owns the set of outstanding jump-list edges produced
// during emission of one function, keyed by small integer ids so
// ControlFlowEdge values stay cheap to copy and compare.
type ControlFlowGraph struct {
	fs      *FuncState
	entries []cfgEntry
}

func newControlFlowGraph(fs *FuncState) *ControlFlowGraph {
	return &ControlFlowGraph{fs: fs}
}

// ControlFlowEdge is a handle into a ControlFlowGraph's entry table.
type ControlFlowEdge struct {
	g   *ControlFlowGraph
	idx int
}

func (g *ControlFlowGraph) makeEdge(kind ControlFlowEdgeKind, head BCPos) ControlFlowEdge {
	g.entries = append(g.entries, cfgEntry{head: head, kind: kind})
	return ControlFlowEdge{g: g, idx: len(g.entries) - 1}
}

func (g *ControlFlowGraph) MakeUnconditional(head BCPos) ControlFlowEdge {
	return g.makeEdge(EdgeUnconditional, head)
}
func (g *ControlFlowGraph) MakeTrueEdge(head BCPos) ControlFlowEdge   { return g.makeEdge(EdgeTrue, head) }
func (g *ControlFlowGraph) MakeFalseEdge(head BCPos) ControlFlowEdge  { return g.makeEdge(EdgeFalse, head) }
func (g *ControlFlowGraph) MakeBreakEdge(head BCPos) ControlFlowEdge  { return g.makeEdge(EdgeBreak, head) }
func (g *ControlFlowGraph) MakeContinueEdge(head BCPos) ControlFlowEdge {
	return g.makeEdge(EdgeContinue, head)
}

// Valid reports whether e refers to a live entry.
func (e ControlFlowEdge) Valid() bool { return e.g != nil }

// Empty reports whether e's jump list is empty (head == NoJump).
func (e ControlFlowEdge) Empty() bool {
	if !e.Valid() {
		return true
	}
	return e.g.entries[e.idx].head == NoJump
}

// Head returns the PC of the first jump in e's list.
func (e ControlFlowEdge) Head() BCPos {
	if !e.Valid() {
		return NoJump
	}
	return e.g.entries[e.idx].head
}

// Kind returns e's edge kind.
func (e ControlFlowEdge) Kind() ControlFlowEdgeKind {
	if !e.Valid() {
		return EdgeUnconditional
	}
	return e.g.entries[e.idx].kind
}

// nextInChain follows one jump-list node to the next, per the
// BC_JMP-family D-field encoding (signed offset relative to pc+1, NoJump
// terminates).
func nextInChain(fs *FuncState, pos BCPos) BCPos {
	if fs.code[pos].J() == int32(NoJump) {
		return NoJump
	}
	return pos + 1 + BCPos(fs.code[pos].J())
}

// patchInstruction rewrites the jump instruction at pos to target dest.
func patchInstruction(fs *FuncState, pos BCPos, dest BCPos) {
	offset := int32(dest) - int32(pos+1)
	fs.code[pos] = fs.code[pos].WithJ(offset)
}

// appendToChain splices pc onto the jump list headed by head, returning the
// (possibly unchanged) new head. This is the list-splice primitive Append
// and the free-standing jump-list helpers in the operator emitter share, so
// callers that only need to merge two PC chains don't have to allocate a
// tracked ControlFlowEdge just to do it.
func appendToChain(fs *FuncState, head, pc BCPos) BCPos {
	if pc == NoJump {
		return head
	}
	if head == NoJump {
		return pc
	}
	p := head
	for {
		next := nextInChain(fs, p)
		if next == NoJump {
			break
		}
		p = next
	}
	patchInstruction(fs, p, pc)
	return head
}

// Append splices pc (or another edge's list) onto e's jump list.
func (e ControlFlowEdge) Append(pc BCPos) {
	if !e.Valid() || pc == NoJump {
		return
	}
	entry := &e.g.entries[e.idx]
	entry.head = appendToChain(e.g.fs, entry.head, pc)
}

// AppendEdge merges other's jump list into e and marks other resolved.
func (e ControlFlowEdge) AppendEdge(other ControlFlowEdge) {
	if !e.Valid() || !other.Valid() {
		return
	}
	e.Append(other.Head())
	other.g.entries[other.idx].resolved = true
}

// patchTestRegister rewrites the destination register of an ISTC/ISFC
// "test-and-copy" instruction immediately preceding a jump at pos, if
// present. Returns whether such an instruction was found and rewritten.
func patchTestRegister(fs *FuncState, pos BCPos, reg BCReg) bool {
	if pos == 0 {
		return false
	}
	prev := fs.code[pos-1]
	switch prev.OpCode() {
	case OpISTC, OpISFC:
		fs.code[pos-1] = prev.WithArgA(uint8(reg))
		return true
	}
	return false
}

// PatchTo rewrites every jump in e's list to target, marking e resolved.
func (e ControlFlowEdge) PatchTo(target BCPos) error {
	if !e.Valid() {
		return nil
	}
	entry := &e.g.entries[e.idx]
	pos := entry.head
	for pos != NoJump {
		next := nextInChain(e.g.fs, pos)
		if target-pos-1 > BCMaxD || pos+1-target > BCMaxD {
			return newSourceError(XJump, e.g.fs.lastSpan, "jump offset out of range")
		}
		patchInstruction(e.g.fs, pos, target)
		pos = next
	}
	entry.resolved = true
	return nil
}

// PatchHere is PatchTo at the function's current PC.
func (e ControlFlowEdge) PatchHere() error {
	if !e.Valid() {
		return nil
	}
	return e.PatchTo(e.g.fs.pc)
}

// PatchHead rewrites only the head instruction's offset, used where
// instruction layout (FORI/FORL pairs) needs a specific head target while
// the remaining list nodes resolve independently.
func (e ControlFlowEdge) PatchHead(dest BCPos) {
	if !e.Valid() {
		return
	}
	entry := &e.g.entries[e.idx]
	if entry.head == NoJump {
		return
	}
	patchInstruction(e.g.fs, entry.head, dest)
}

// PatchWithValue rewrites ISTC/ISFC nodes in e's list to copy into reg and
// jump to valueTarget; any plain-test node in the list instead jumps to
// defaultTarget. This produces a boolean value out of a short-circuit
// chain without materialising both branches explicitly.
func (e ControlFlowEdge) PatchWithValue(valueTarget BCPos, reg BCReg, defaultTarget BCPos) error {
	if !e.Valid() {
		return nil
	}
	entry := &e.g.entries[e.idx]
	pos := entry.head
	for pos != NoJump {
		next := nextInChain(e.g.fs, pos)
		if patchTestRegister(e.g.fs, pos, reg) {
			patchInstruction(e.g.fs, pos, valueTarget)
		} else {
			patchInstruction(e.g.fs, pos, defaultTarget)
		}
		pos = next
	}
	entry.resolved = true
	return nil
}

// ProducesValues reports whether any node in e's list is an ISTC/ISFC
// test-and-copy (as opposed to a plain test).
func (e ControlFlowEdge) ProducesValues() bool {
	if !e.Valid() {
		return false
	}
	pos := e.g.entries[e.idx].head
	for pos != NoJump {
		if pos > 0 {
			switch e.g.fs.code[pos-1].OpCode() {
			case OpISTC, OpISFC:
				return true
			}
		}
		pos = nextInChain(e.g.fs, pos)
	}
	return false
}

// DropValues converts every ISTC/ISFC node in e's list to its plain-test
// counterpart, discarding the copy destination.
func (e ControlFlowEdge) DropValues() {
	if !e.Valid() {
		return
	}
	pos := e.g.entries[e.idx].head
	for pos != NoJump {
		if pos > 0 {
			prev := e.g.fs.code[pos-1]
			switch prev.OpCode() {
			case OpISTC:
				e.g.fs.code[pos-1] = prev.WithOp(OpIST)
			case OpISFC:
				e.g.fs.code[pos-1] = prev.WithOp(OpISF)
			}
		}
		pos = nextInChain(e.g.fs, pos)
	}
}

// unresolvedEdges reports edges that were neither patched nor left empty,
// a bug in the emitter rather than user source — surfaced by
// FuncState.Finish as an InternalError.
func (g *ControlFlowGraph) unresolvedEdges() []ControlFlowEdge {
	var bad []ControlFlowEdge
	for i, entry := range g.entries {
		if !entry.resolved && entry.head != NoJump {
			bad = append(bad, ControlFlowEdge{g: g, idx: i})
		}
	}
	return bad
}
