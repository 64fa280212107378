package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"fluid/lexer"
	"fluid/parser"
	"fluid/token"
)

type replCmd struct{}

func (*replCmd) Name() string             { return "repl" }
func (*replCmd) Synopsis() string         { return "compile (without running) statements interactively" }
func (*replCmd) Usage() string            { return "fluid repl\n" }
func (*replCmd) SetFlags(f *flag.FlagSet) {}

func (*replCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("Fluid REPL — each completed statement is compiled and disassembled.")
	fmt.Println(`type "exit" to quit`)

	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to start readline:\n\t%v\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	var buffer strings.Builder
	for {
		if buffer.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}

		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt {
				return subcommands.ExitSuccess
			}
			fmt.Fprintf(os.Stderr, "💥 %v\n", err)
			return subcommands.ExitFailure
		}

		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		tokens, err := lexer.New(source).Scan()
		if err != nil {
			fmt.Println(err)
			buffer.Reset()
			continue
		}

		if !isInputReady(tokens) {
			continue
		}

		listing, exitStatus := compileAndDisassemble(source)
		if exitStatus != subcommands.ExitSuccess {
			buffer.Reset()
			continue
		}
		fmt.Print(listing)
		buffer.Reset()
	}
}

// isInputReady reports whether tokens form a balanced, presumably complete
// statement, so the REPL should stop accumulating lines and try to compile.
// Grounded on the teacher's own REPL continuation check, extended to cover
// this grammar's bracket set and its END/UNTIL-terminated block forms
// (rather than the teacher's brace-only blocks).
func isInputReady(tokens []token.Token) bool {
	groupBalance := 0
	blockDepth := 0
	repeatDepth := 0
	pendingHeaders := 0 // if/elif/while/for headers still waiting for their `do`

	for _, tok := range tokens {
		switch tok.TokenType {
		case token.LPA, token.LCUR, token.LBRACKET:
			groupBalance++
		case token.RPA, token.RCUR, token.RBRACKET:
			groupBalance--
		case token.IF, token.WHILE, token.FOR:
			blockDepth++
			pendingHeaders++
		case token.ELIF:
			pendingHeaders++
		case token.DO:
			if pendingHeaders > 0 {
				pendingHeaders--
			} else {
				blockDepth++
			}
		case token.FUNC:
			blockDepth++
		case token.REPEAT:
			repeatDepth++
		case token.END:
			blockDepth--
		case token.UNTIL:
			repeatDepth--
		}
	}

	if groupBalance > 0 || blockDepth > 0 || repeatDepth > 0 {
		return false
	}

	last := lastNonEOF(tokens)
	if last == nil {
		return true
	}

	switch last.TokenType {
	case token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN,
		token.SLASH_ASSIGN, token.PERCENT_ASSIGN, token.CONCAT_ASSIGN, token.COALESCE_ASSIGN,
		token.ADD, token.SUB, token.MULT, token.DIV, token.PERCENT, token.CARET,
		token.BANG, token.EQUAL_EQUAL, token.NOT_EQUAL,
		token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL,
		token.COMMA, token.DOT, token.COLON, token.CONCAT,
		token.AND, token.OR, token.LOCAL, token.RETURN,
		token.IF, token.ELSE, token.ELIF, token.WHILE, token.FOR, token.FUNC,
		token.IN, token.DEFER:
		return false
	}

	return true
}

func lastNonEOF(tokens []token.Token) *token.Token {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].TokenType != token.EOF {
			return &tokens[i]
		}
	}
	return nil
}
