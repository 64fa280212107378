package emitter

import (
	"fmt"

	"fluid/token"
)

// SourceErrorCode identifies one of the lexer's err_syntax(code) codes the
// emitter can raise.
type SourceErrorCode string

const (
	XJump   SourceErrorCode = "XJUMP"   // jump offset out of range
	XSlots  SourceErrorCode = "XSLOTS"  // register allocation would exceed the per-function limit
	XKConst SourceErrorCode = "XKCONST" // constant pool exhausted
	XLimC   SourceErrorCode = "XLIMC"   // upvalue or method table limit exceeded
	XFixup  SourceErrorCode = "XFIXUP"  // unresolved jump at function close
)

// SourceError is a user-visible, source-attributable compile error: a bad
// program, not a bug in the emitter. Mirrors the lexer's err_syntax(code)
// path from the original implementation, returned as an ordinary error
// instead of raised via longjmp.
type SourceError struct {
	Code SourceErrorCode
	Span token.Token
	Msg  string
}

func (e SourceError) Error() string {
	return fmt.Sprintf("💥 %s: %s (line %d, col %d)", e.Code, e.Msg, e.Span.Line, e.Span.Column)
}

// InternalError signals a violated emitter invariant — a bug in the
// emitter itself, never something user source can trigger. Still returned
// as an ordinary error per the Design Notes guidance against panic-based
// unwinding.
type InternalError struct {
	Msg string
}

func (e InternalError) Error() string {
	return fmt.Sprintf("🤖 InternalError: %s", e.Msg)
}

func newSourceError(code SourceErrorCode, span token.Token, format string, args ...any) error {
	return SourceError{Code: code, Span: span, Msg: fmt.Sprintf(format, args...)}
}

func newInternalError(format string, args ...any) error {
	return InternalError{Msg: fmt.Sprintf(format, args...)}
}
