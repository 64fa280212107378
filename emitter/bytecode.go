// Package emitter lowers a Fluid AST into register-based bytecode, modeled
// on LuaJIT's parser/emitter pipeline: an expression descriptor lifecycle,
// a register allocator, a jump-list-based control-flow graph, and a
// function-state stack for nested literals.
package emitter

// BCPos is a bytecode program counter: an index into a FuncState's
// instruction stream.
type BCPos int32

// BCReg is a register index within a function's register window.
type BCReg int

// NoJump terminates a jump list (the D field of the final node in a list
// holds this sentinel rather than an offset to a further node).
const NoJump BCPos = -1

// NoReg marks the absence of a register, as opposed to register 0.
const NoReg BCReg = -1

// BCBiasJ biases the signed jump offset stored in an instruction's D field
// so that small negative and positive offsets both fit the unsigned 16-bit
// wire encoding; see (Instruction).J and JInstruction.
const BCBiasJ = 0x8000

// Per-function limits mirrored from the bytecode ABI in SPEC_FULL.md — a
// per-function register ceiling (matches the VM's usable register window)
// and the maximum values the unsigned 16-bit D field and the 8-bit B/C
// fields can encode.
const (
	MaxRegisters = 250
	BCMaxD       = 0xffff
	BCMaxC       = 0xff
	BCMaxB       = 0xff
	BCMaxUV      = 60
)

// OpCode identifies a bytecode instruction's operation.
type OpCode uint8

const (
	OpKNil OpCode = iota
	OpKShort
	OpKNum
	OpKStr
	OpKPri
	OpKCData

	OpMov
	OpUGet
	OpUSetV
	OpUSetS
	OpUSetN
	OpUSetP
	OpGGet
	OpGSet

	OpTGetV
	OpTGetS
	OpTGetB
	OpTSetV
	OpTSetS
	OpTSetB
	OpTSetM
	OpTNew
	OpTDup

	OpAddVN
	OpAddNV
	OpAddVV
	OpSubVN
	OpSubNV
	OpSubVV
	OpMulVN
	OpMulNV
	OpMulVV
	OpDivVN
	OpDivNV
	OpDivVV
	OpModVN
	OpModNV
	OpModVV
	OpPow

	OpCat

	OpUnm
	OpLen
	OpNot

	OpISLT
	OpISGE
	OpISLE
	OpISGT
	OpISEQV
	OpISNEV
	OpISEQS
	OpISNES
	OpISEQN
	OpISNEN
	OpISEQP
	OpISNEP

	OpIST
	OpISF
	OpISTC
	OpISFC
	OpISEmptyArr

	OpJmp
	OpLoop

	OpFORI
	OpFORL
	OpITERC
	OpITERN
	OpITERL
	OpISNext

	OpCall
	OpCallM
	OpCallT
	OpCallMT
	OpVarg

	OpRet
	OpRet0
	OpRet1
	OpRetM

	OpFNew
	OpUClo
	OpFuncF
	OpFuncV
)

var opNames = map[OpCode]string{
	OpKNil: "KNIL", OpKShort: "KSHORT", OpKNum: "KNUM", OpKStr: "KSTR", OpKPri: "KPRI", OpKCData: "KCDATA",
	OpMov: "MOV", OpUGet: "UGET", OpUSetV: "USETV", OpUSetS: "USETS", OpUSetN: "USETN", OpUSetP: "USETP",
	OpGGet: "GGET", OpGSet: "GSET",
	OpTGetV: "TGETV", OpTGetS: "TGETS", OpTGetB: "TGETB", OpTSetV: "TSETV", OpTSetS: "TSETS", OpTSetB: "TSETB",
	OpTSetM: "TSETM", OpTNew: "TNEW", OpTDup: "TDUP",
	OpAddVN: "ADDVN", OpAddNV: "ADDNV", OpAddVV: "ADDVV",
	OpSubVN: "SUBVN", OpSubNV: "SUBNV", OpSubVV: "SUBVV",
	OpMulVN: "MULVN", OpMulNV: "MULNV", OpMulVV: "MULVV",
	OpDivVN: "DIVVN", OpDivNV: "DIVNV", OpDivVV: "DIVVV",
	OpModVN: "MODVN", OpModNV: "MODNV", OpModVV: "MODVV",
	OpPow: "POW", OpCat: "CAT",
	OpUnm: "UNM", OpLen: "LEN", OpNot: "NOT",
	OpISLT: "ISLT", OpISGE: "ISGE", OpISLE: "ISLE", OpISGT: "ISGT",
	OpISEQV: "ISEQV", OpISNEV: "ISNEV", OpISEQS: "ISEQS", OpISNES: "ISNES",
	OpISEQN: "ISEQN", OpISNEN: "ISNEN", OpISEQP: "ISEQP", OpISNEP: "ISNEP",
	OpIST: "IST", OpISF: "ISF", OpISTC: "ISTC", OpISFC: "ISFC", OpISEmptyArr: "ISEMPTYARR",
	OpJmp: "JMP", OpLoop: "LOOP",
	OpFORI: "FORI", OpFORL: "FORL", OpITERC: "ITERC", OpITERN: "ITERN", OpITERL: "ITERL", OpISNext: "ISNEXT",
	OpCall: "CALL", OpCallM: "CALLM", OpCallT: "CALLT", OpCallMT: "CALLMT", OpVarg: "VARG",
	OpRet: "RET", OpRet0: "RET0", OpRet1: "RET1", OpRetM: "RETM",
	OpFNew: "FNEW", OpUClo: "UCLO", OpFuncF: "FUNCF", OpFuncV: "FUNCV",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// isJump reports whether op belongs to the BC_JMP family: instructions
// whose D field is a jump-list link rather than an ordinary operand.
func (op OpCode) isJump() bool {
	switch op {
	case OpJmp, OpIST, OpISF, OpISTC, OpISFC, OpISEQV, OpISNEV, OpISEQS, OpISNES,
		OpISEQN, OpISNEN, OpISEQP, OpISNEP, OpISLT, OpISGE, OpISLE, OpISGT, OpISEmptyArr,
		OpISNext:
		return true
	}
	return false
}

// Instruction is a packed 32-bit bytecode word, encoded as either ABC
// (8-bit opcode, A, B, C) or AD (8-bit opcode, A, 16-bit D).
type Instruction uint32

// ABC packs an 8-bit opcode, A, B and C field into one instruction.
func ABC(op OpCode, a, b, c uint8) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(b)<<24 | uint32(c)<<16)
}

// AD packs an 8-bit opcode, A field and 16-bit D field into one
// instruction.
func AD(op OpCode, a uint8, d uint16) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(d)<<16)
}

// AJ packs a signed jump offset into the D field, applying BCBiasJ so the
// wire format stays an unsigned 16-bit value.
func AJ(op OpCode, a uint8, offset int32) Instruction {
	return AD(op, a, uint16(offset+BCBiasJ))
}

func (i Instruction) OpCode() OpCode { return OpCode(i & 0xff) }
func (i Instruction) ArgA() uint8    { return uint8(i >> 8) }
func (i Instruction) ArgB() uint8    { return uint8(i >> 24) }
func (i Instruction) ArgC() uint8    { return uint8(i >> 16) }
func (i Instruction) ArgD() uint16   { return uint16(i >> 16) }

// J returns the signed jump offset of an AD-layout jump instruction,
// removing the BCBiasJ bias.
func (i Instruction) J() int32 {
	return int32(i.ArgD()) - BCBiasJ
}

// WithArgA returns i with its A field replaced, op/B/C/D unchanged.
func (i Instruction) WithArgA(a uint8) Instruction {
	return Instruction(uint32(i)&^uint32(0xff00) | uint32(a)<<8)
}

// WithArgB returns i with its B field replaced, op/A/C unchanged. Used to
// widen a CALL/CALLM's result count in place (assign_adjust's tail
// widening, §4.5).
func (i Instruction) WithArgB(b uint8) Instruction {
	return Instruction(uint32(i)&^uint32(0xff000000) | uint32(b)<<24)
}

// WithD returns i with its D field replaced.
func (i Instruction) WithD(d uint16) Instruction {
	return Instruction(uint32(i)&0xffff | uint32(d)<<16)
}

// WithJ returns i with its signed jump offset replaced.
func (i Instruction) WithJ(offset int32) Instruction {
	return i.WithD(uint16(offset + BCBiasJ))
}

// WithOp returns i with its opcode replaced, leaving operand fields intact.
func (i Instruction) WithOp(op OpCode) Instruction {
	return Instruction(uint32(i)&^uint32(0xff) | uint32(op))
}
