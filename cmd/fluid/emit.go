package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"fluid/emitter"
	"fluid/lexer"
	"fluid/parser"
	"fluid/proto"
)

type emitCmd struct {
	out string
}

func (*emitCmd) Name() string     { return "emit" }
func (*emitCmd) Synopsis() string { return "compile a source file to bytecode and disassemble it" }
func (*emitCmd) Usage() string    { return "fluid emit <file>\n" }

func (cmd *emitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.out, "out", "", "write the disassembly to this file instead of stdout")
}

func (cmd *emitCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to read file:\n\t%v\n", err)
		return subcommands.ExitFailure
	}

	listing, exitStatus := compileAndDisassemble(string(data))
	if exitStatus != subcommands.ExitSuccess {
		return exitStatus
	}

	if cmd.out == "" {
		fmt.Print(listing)
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(cmd.out, []byte(listing), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to write disassembly file:\n\t%v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// compileAndDisassemble runs the full lex/parse/emit/disassemble pipeline
// over source, shared by the `emit` subcommand and the REPL.
func compileAndDisassemble(source string) (string, subcommands.ExitStatus) {
	tokens, err := lexer.New(source).Scan()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lexing error: %v\n", err)
		return "", subcommands.ExitFailure
	}

	stmts, parseErrs := parser.New(tokens).Parse()
	if len(parseErrs) > 0 {
		fmt.Fprintf(os.Stderr, "💥 parsing error:\n")
		for _, pErr := range parseErrs {
			fmt.Fprintf(os.Stderr, "\t%v\n", pErr)
		}
		return "", subcommands.ExitFailure
	}

	em := emitter.NewEmitter(emitter.NewContext())
	top, err := em.CompileProgram(stmts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 compile error:\n\t%v\n", err)
		return "", subcommands.ExitFailure
	}

	return proto.Disassemble(top), subcommands.ExitSuccess
}
