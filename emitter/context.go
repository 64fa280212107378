package emitter

import (
	"fmt"
	"os"
)

// Log is the narrow logging sink the emitter reports non-fatal diagnostics
// through (e.g. an AST node the emitter has no lowering for yet). This
// replaces the original implementation's global "unsupported node" counter
// with an injectable interface, per the REDESIGN FLAGS.
type Log interface {
	Printf(format string, args ...any)
}

// stderrLog is the default Log implementation, writing to os.Stderr the
// way the teacher repo's cmd_*.go entry points do.
type stderrLog struct{}

func (stderrLog) Printf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Context carries the state shared across an entire compilation: the
// top-level FuncState (nested function literals link back to it through
// FuncState.Parent) and the injected logging sink.
type Context struct {
	Log Log

	top *FuncState
}

// NewContext returns a Context with the default stderr logger.
func NewContext() *Context {
	return &Context{Log: stderrLog{}}
}
