// Package proto renders a compiled emitter.Prototype as a human-readable
// bytecode listing, the static half of what the teacher's vm/ package used
// to do at runtime — adapted here into a pure debug dump, since actually
// interpreting the bytecode is out of scope.
package proto

import (
	"fmt"
	"strings"

	"fluid/emitter"
)

// Disassemble renders p and, recursively, every nested function prototype
// it owns, in the style of the `emit` CLI subcommand's default output.
func Disassemble(p emitter.Prototype) string {
	var b strings.Builder
	disassemble(&b, p, 0)
	return b.String()
}

func disassemble(b *strings.Builder, p emitter.Prototype, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s; function (%d params%s), %d instructions\n",
		indent, p.NumParams, varargSuffix(p.Vararg), len(p.Code))

	for pc, instr := range p.Code {
		line := int32(0)
		if pc < len(p.Lines) {
			line = p.Lines[pc]
		}
		fmt.Fprintf(b, "%s%04d  [%d]  %-10s A=%d B=%d C=%d D=%d J=%d\n",
			indent, pc, line, instr.OpCode(),
			instr.ArgA(), instr.ArgB(), instr.ArgC(), instr.ArgD(), instr.J())
	}

	if len(p.Numbers) > 0 {
		fmt.Fprintf(b, "%s; numbers: %v\n", indent, p.Numbers)
	}
	if len(p.Strings) > 0 {
		fmt.Fprintf(b, "%s; strings: %q\n", indent, p.Strings)
	}
	if len(p.Upvalues) > 0 {
		fmt.Fprintf(b, "%s; upvalues:\n", indent)
		for i, uv := range p.Upvalues {
			origin := "upvalue"
			if uv.IsParentLocal {
				origin = "parent local"
			}
			fmt.Fprintf(b, "%s  [%d] %s <- %s slot %d\n", indent, i, uv.Name, origin, uv.Slot)
		}
	}

	for i, child := range p.Protos {
		fmt.Fprintf(b, "%s; nested prototype %d:\n", indent, i)
		disassemble(b, child, depth+1)
	}
}

func varargSuffix(vararg bool) string {
	if vararg {
		return ", vararg"
	}
	return ""
}
