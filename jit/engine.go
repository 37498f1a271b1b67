// Package jit materializes IR modules into the running process. A module
// is printed to textual IR, run through opt's function pipeline, compiled
// to a shared object with clang, and loaded with dlopen; symbols resolve
// out of the loaded objects, newest first.
package jit

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/coreos/pkg/dlopen"
	"github.com/llir/llvm/ir"
	"github.com/tliron/commonlog"
)

// passes is the per-function optimization pipeline, verifier included.
const passes = "function(mem2reg,instcombine,reassociate,gvn,simplifycfg),verify"

type Config struct {
	// Opt and Clang override the tool names resolved from PATH.
	Opt   string
	Clang string
	// Libs is appended to every link line.
	Libs []string
}

func (c *Config) defaults() {
	if c.Opt == "" {
		c.Opt = "opt"
	}
	if c.Clang == "" {
		c.Clang = "clang"
	}
}

// Handle identifies a module added to the engine.
type Handle int

type loadedModule struct {
	lib  *dlopen.LibHandle
	path string
}

// Engine links freshly compiled modules into the address space. It is
// single-threaded, like the rest of the compiler.
type Engine struct {
	cfg Config
	log commonlog.Logger

	dir  string
	seq  int
	mods map[Handle]*loadedModule
	// order lists live handles oldest first.
	order []Handle
}

func New(cfg Config) (*Engine, error) {
	cfg.defaults()
	dir, err := os.MkdirTemp("", "llvm-play-*")
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:  cfg,
		log:  commonlog.GetLogger("jit"),
		dir:  dir,
		mods: make(map[Handle]*loadedModule),
	}, nil
}

// AddModule compiles and links m into the process. Verification failure
// (opt or clang rejecting the module) is returned as an error; a module
// that type-checked must verify, so callers treat it as fatal.
func (e *Engine) AddModule(m *ir.Module) (Handle, error) {
	e.seq++
	base := filepath.Join(e.dir, fmt.Sprintf("mod%04d", e.seq))

	ll := base + ".ll"
	if err := os.WriteFile(ll, []byte(m.String()), 0o644); err != nil {
		return 0, err
	}

	opt := base + ".opt.ll"
	if out, err := e.run(e.cfg.Opt, "-S", "-passes="+passes, "-o", opt, ll); err != nil {
		return 0, fmt.Errorf("verification failed: %w\n%s", err, out)
	}

	so := base + ".so"
	args := []string{"-shared", "-fPIC", "-o", so, opt}
	// Link the live modules newest first, so the newest definition of a
	// redefined symbol wins for modules compiled from here on.
	for i := len(e.order) - 1; i >= 0; i-- {
		args = append(args, e.mods[e.order[i]].path)
	}
	args = append(args, e.cfg.Libs...)
	if out, err := e.run(e.cfg.Clang, args...); err != nil {
		return 0, fmt.Errorf("compiling module: %w\n%s", err, out)
	}

	lib, err := dlopen.GetHandle([]string{so})
	if err != nil {
		return 0, fmt.Errorf("loading module: %w", err)
	}

	h := Handle(e.seq)
	e.mods[h] = &loadedModule{lib: lib, path: so}
	e.order = append(e.order, h)
	e.log.Debugf("added module %d (%s)", h, so)
	return h, nil
}

// FindSymbol resolves name out of the loaded modules, newest first, and
// returns its address.
func (e *Engine) FindSymbol(name string) (uintptr, error) {
	for i := len(e.order) - 1; i >= 0; i-- {
		mod := e.mods[e.order[i]]
		p, err := mod.lib.GetSymbolPointer(name)
		if err == nil {
			e.log.Debugf("resolved %s in module %d", name, e.order[i])
			return uintptr(p), nil
		}
	}
	return 0, fmt.Errorf("symbol not found: %s", name)
}

// RemoveModule unloads a module. The artifacts stay on disk until Close:
// later modules may name them on their link lines.
func (e *Engine) RemoveModule(h Handle) error {
	mod, ok := e.mods[h]
	if !ok {
		return fmt.Errorf("unknown module handle: %d", h)
	}
	delete(e.mods, h)
	for i, o := range e.order {
		if o == h {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.log.Debugf("removed module %d", h)
	return mod.lib.Close()
}

// Close unloads everything and deletes the artifact directory.
func (e *Engine) Close() error {
	for _, mod := range e.mods {
		mod.lib.Close()
	}
	e.mods = make(map[Handle]*loadedModule)
	e.order = nil
	return os.RemoveAll(e.dir)
}

func (e *Engine) run(name string, args ...string) (string, error) {
	e.log.Debugf("running %s %v", name, args)
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}
