// Command fluid is the CLI front-end for the lexer/parser/emitter
// pipeline: dump tokens, dump the parsed AST, emit and disassemble
// bytecode, or drive a REPL that compiles (but does not run) each
// statement as it's entered.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&tokensCmd{}, "")
	subcommands.Register(&parseCmd{}, "")
	subcommands.Register(&emitCmd{}, "")
	subcommands.Register(&replCmd{}, "")

	flag.Parse()
	fmt.Println("Fluid")
	os.Exit(int(subcommands.Execute(context.Background())))
}
