package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/repr"
	"github.com/tliron/commonlog"
	"github.com/urfave/cli/v2"
	"github.com/ztrue/tracerr"

	"github.com/andreimatei/llvm-play/codegen"
	"github.com/andreimatei/llvm-play/diag"
	"github.com/andreimatei/llvm-play/jit"
	"github.com/andreimatei/llvm-play/lexer"
	"github.com/andreimatei/llvm-play/parser"
	"github.com/andreimatei/llvm-play/repl"
	"github.com/andreimatei/llvm-play/types"
)

func main() {
	app := &cli.App{
		Name:  "llvm-play",
		Usage: "a small JIT-compiled language",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "verbose",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  "playfile",
				Value: "Playfile",
			},
		},
		Before: func(c *cli.Context) error {
			commonlog.Configure(c.Int("verbose"), nil)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "repl",
				Usage:  "interactive session; an optional .in file is pre-compiled first",
				Action: replAction,
			},
			{
				Name:   "run",
				Usage:  "compile a .in file, then call the entry symbol from the Playfile",
				Action: runAction,
			},
			{
				Name:   "dump",
				Usage:  "parse a .in file and dump its AST",
				Action: dumpAction,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		tracerr.PrintSourceColor(tracerr.Wrap(err))
		os.Exit(1)
	}
}

func newEngine(doc Playfile) (*jit.Engine, error) {
	return jit.New(jit.Config{
		Opt:   doc.Opt,
		Clang: doc.Clang,
		Libs:  doc.Libs,
	})
}

// compileFile feeds a source file through a prompt-less REPL sharing sess
// and eng with the caller.
func compileFile(path string, sess *codegen.Session, eng *jit.Engine, sink *diag.Sink) error {
	fi, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fi.Close()

	p := parser.New(lexer.New(lexer.FromReader(fi), sink))
	r := repl.New(p, sess, eng, sink)
	r.Prompt = false
	return r.Run()
}

func replAction(c *cli.Context) error {
	doc, err := loadPlayfile(c.String("playfile"))
	if err != nil {
		return err
	}
	eng, err := newEngine(doc)
	if err != nil {
		return err
	}
	defer eng.Close()

	sink := diag.Stderr()
	sess := codegen.NewSession()

	if file := c.Args().First(); file != "" {
		if err := compileFile(file, sess, eng, sink); err != nil {
			return err
		}
	}

	p := parser.New(lexer.New(lexer.FromReader(os.Stdin), sink))
	if err := repl.New(p, sess, eng, sink).Run(); err != nil {
		return err
	}

	// Print the code still pending in the current module.
	fmt.Fprintln(os.Stderr, sess.Module.String())
	return nil
}

func runAction(c *cli.Context) error {
	file := c.Args().First()
	if file == "" {
		return fmt.Errorf("no input file provided")
	}
	doc, err := loadPlayfile(c.String("playfile"))
	if err != nil {
		return err
	}
	eng, err := newEngine(doc)
	if err != nil {
		return err
	}
	defer eng.Close()

	sink := diag.Stderr()
	sess := codegen.NewSession()
	if err := compileFile(file, sess, eng, sink); err != nil {
		return err
	}

	addr, err := eng.FindSymbol(doc.Entry)
	if err != nil {
		return err
	}
	switch doc.Signature {
	case "double":
		fmt.Fprintf(os.Stderr, "%s returned %f\n", doc.Entry, jit.CallDouble0(addr))
	case "byte":
		fmt.Fprintf(os.Stderr, "%s returned %d\n", doc.Entry, jit.CallByte0(addr))
	default:
		return fmt.Errorf("unsupported entry signature: %s", doc.Signature)
	}
	return nil
}

func dumpAction(c *cli.Context) error {
	file := c.Args().First()
	if file == "" {
		return fmt.Errorf("no input file provided")
	}
	fi, err := os.Open(file)
	if err != nil {
		return err
	}
	defer fi.Close()

	sink := diag.Stderr()
	p := parser.New(lexer.New(lexer.FromReader(fi), sink))
	p.Advance()
	for p.Cur().Kind != types.EOF {
		switch p.Cur().Kind {
		case types.EOS:
			p.Advance()
		case types.DEF:
			fn, err := p.Definition()
			if err != nil {
				sink.Error(err)
				p.Advance()
				continue
			}
			repr.Println(fn)
		case types.EXTERN:
			proto, err := p.Extern()
			if err != nil {
				sink.Error(err)
				p.Advance()
				continue
			}
			repr.Println(proto)
		default:
			fn, err := p.TopLevel()
			if err != nil {
				sink.Error(err)
				p.Advance()
				continue
			}
			repr.Println(fn)
		}
	}
	return nil
}
