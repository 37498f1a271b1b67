// Package diag is the diagnostic sink: every lex, parse and codegen error
// surfaces as exactly one human-readable line written here.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

type Sink struct {
	out io.Writer
	red func(a ...interface{}) string
}

func NewSink(w io.Writer) *Sink {
	return &Sink{
		out: w,
		red: color.New(color.FgRed).SprintFunc(),
	}
}

// Stderr returns a sink writing to os.Stderr, where the REPL expects its
// diagnostics.
func Stderr() *Sink {
	return NewSink(os.Stderr)
}

func (s *Sink) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, "%s: %s\n", s.red("error"), fmt.Sprintf(format, args...))
}

func (s *Sink) Error(err error) {
	s.Errorf("%s", err)
}
