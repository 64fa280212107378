package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"fluid/lexer"
	"fluid/parser"
)

type parseCmd struct {
	out string
}

func (*parseCmd) Name() string     { return "parse" }
func (*parseCmd) Synopsis() string { return "parse a source file and dump its AST as JSON" }
func (*parseCmd) Usage() string    { return "fluid parse <file>\n" }

func (cmd *parseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.out, "out", "", "write the AST JSON to this file instead of stdout")
}

func (cmd *parseCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	tokens, err := lexer.New(string(data)).Scan()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lexing error: %v\n", err)
		return subcommands.ExitFailure
	}

	stmts, parseErrs := parser.New(tokens).Parse()
	if len(parseErrs) > 0 {
		fmt.Fprintf(os.Stderr, "💥 parsing error:\n")
		for _, pErr := range parseErrs {
			fmt.Fprintf(os.Stderr, "\t%v\n", pErr)
		}
		return subcommands.ExitFailure
	}

	encoded, err := json.MarshalIndent(stmts, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to encode AST:\n\t%v\n", err)
		return subcommands.ExitFailure
	}

	if cmd.out == "" {
		fmt.Println(string(encoded))
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(cmd.out, encoded, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to write AST file:\n\t%v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
