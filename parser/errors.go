package parser

import (
	"fmt"

	"fluid/token"
)

// SyntaxError is a user-visible parse error tied to a source position.
// Mirrors the lexer's own error shape so CLI output stays consistent
// across both phases.
type SyntaxError struct {
	Line    int32
	Column  int
	Message string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("💥 Fluid Syntax error:\nline:%d, column:%d - %s", e.Line, e.Column, e.Message)
}

func newSyntaxError(tok token.Token, message string) SyntaxError {
	return SyntaxError{Line: tok.Line, Column: tok.Column, Message: message}
}
