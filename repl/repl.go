// Package repl drives the read → parse → codegen → JIT loop. One form at
// a time: definitions and top-level expressions each compile into their
// own module, which is handed to the engine; externs register a prototype
// and declare it in the current module. On a parse error the driver reports one line, discards one
// token and keeps going.
package repl

import (
	"fmt"
	"io"
	"os"

	"github.com/andreimatei/llvm-play/codegen"
	"github.com/andreimatei/llvm-play/diag"
	"github.com/andreimatei/llvm-play/jit"
	"github.com/andreimatei/llvm-play/parser"
	"github.com/andreimatei/llvm-play/types"
)

type REPL struct {
	parser *parser.Parser
	sess   *codegen.Session
	eng    *jit.Engine
	sink   *diag.Sink

	// out receives prompts, IR echoes and evaluation results. The REPL
	// writes all of it to stderr so program output composes with piping.
	out io.Writer

	// Prompt controls the "ready> " prompts; file mode turns them off.
	Prompt bool
}

func New(p *parser.Parser, sess *codegen.Session, eng *jit.Engine, sink *diag.Sink) *REPL {
	return &REPL{
		parser: p,
		sess:   sess,
		eng:    eng,
		sink:   sink,
		out:    os.Stderr,
		Prompt: true,
	}
}

// SetOutput redirects the REPL's own output (prompts, echoes, results).
func (r *REPL) SetOutput(w io.Writer) {
	r.out = w
}

func (r *REPL) prompt() {
	if r.Prompt {
		fmt.Fprint(r.out, "ready> ")
	}
}

// Run is the main loop. It primes the token cursor, then dispatches on the
// current token until EOF. The returned error is fatal (an IR module that
// failed to verify or link); everything recoverable has already been
// reported to the sink.
func (r *REPL) Run() error {
	r.prompt()
	r.parser.Advance()
	for {
		r.prompt()
		switch r.parser.Cur().Kind {
		case types.EOF:
			return nil
		case types.EOS:
			// Ignore top-level semicolons.
			r.parser.Advance()
		case types.DEF:
			if err := r.handleDefinition(); err != nil {
				return err
			}
		case types.EXTERN:
			r.handleExtern()
		default:
			if err := r.handleTopLevelExpression(); err != nil {
				return err
			}
		}
	}
}

// resync reports err and discards exactly one token, which is what keeps
// the loop alive after a parse error.
func (r *REPL) resync(err error) {
	r.sink.Error(err)
	r.parser.Advance()
}

func (r *REPL) handleDefinition() error {
	fn, err := r.parser.Definition()
	if err != nil {
		r.resync(err)
		return nil
	}
	irFn, err := r.sess.Function(fn)
	if err != nil {
		r.sink.Error(err)
		return nil
	}
	fmt.Fprintf(r.out, "Read function definition:")
	fmt.Fprintln(r.out, irFn.LLString())

	// Hand the module to the JIT and start a fresh one for future code.
	if _, err := r.eng.AddModule(r.sess.Module); err != nil {
		return err
	}
	r.sess.Reset()
	return nil
}

func (r *REPL) handleExtern() {
	proto, err := r.parser.Extern()
	if err != nil {
		r.resync(err)
		return
	}
	irFn, err := r.sess.Extern(proto)
	if err != nil {
		r.sink.Error(err)
		return
	}
	fmt.Fprintf(r.out, "Read extern:")
	fmt.Fprintln(r.out, irFn.LLString())
}

func (r *REPL) handleTopLevelExpression() error {
	fn, err := r.parser.TopLevel()
	if err != nil {
		r.resync(err)
		return nil
	}
	irFn, err := r.sess.Function(fn)
	if err != nil {
		r.sink.Error(err)
		return nil
	}
	fmt.Fprintf(r.out, "Read a top-level expr:")
	fmt.Fprintln(r.out, irFn.LLString())

	// JIT the module holding the anonymous expression, keeping the handle
	// so it can be freed after the call.
	handle, err := r.eng.AddModule(r.sess.Module)
	if err != nil {
		return err
	}
	r.sess.Reset()

	addr, err := r.eng.FindSymbol("__anon_expr")
	if err != nil {
		return err
	}
	res := jit.CallByte0(addr)
	fmt.Fprintf(r.out, "Evaluated to: %d\n", res)

	return r.eng.RemoveModule(handle)
}
