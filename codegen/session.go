// Package codegen lowers the AST to LLVM IR, one module per top-level
// form. The Session collects everything that outlives a single form: the
// current module, the prototype registry, and the builder position.
package codegen

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/andreimatei/llvm-play/ast"
	"github.com/andreimatei/llvm-play/types"
)

// binding is one in-scope name: its language type and the stack slot
// holding its value.
type binding struct {
	typ  types.VarType
	irt  irtypes.Type // type of the cell the slot points at
	slot value.Value
}

// Session owns the compilation state shared across top-level forms. It is
// single-threaded by design; the REPL drives it from one goroutine.
type Session struct {
	// Module is the current module. Each successful definition or
	// top-level expression is compiled into it and the module is then
	// handed to the JIT; Reset starts the next one.
	Module *ir.Module

	// protos preserves the latest-declared signature of every function
	// across modules, so calls into previous modules can re-declare them.
	protos map[string]*ast.Prototype

	// strs dedups string-literal globals within the current module.
	strs map[string]value.Value

	fn     *ir.Func
	proto  *ast.Prototype
	block  *ir.Block
	scopes []map[string]*binding
	labels map[string]int
}

// newBlock appends a block with a function-unique label, numbering
// repeats the way LLVM does (then, then1, then2, ...).
func (s *Session) newBlock(name string) *ir.Block {
	n := s.labels[name]
	s.labels[name] = n + 1
	if n > 0 {
		name = fmt.Sprintf("%s%d", name, n)
	}
	return s.fn.NewBlock(name)
}

func NewSession() *Session {
	s := &Session{
		protos: make(map[string]*ast.Prototype),
	}
	s.Reset()
	return s
}

// Reset discards the current module and starts a fresh one. String-literal
// dedup state is per-module and resets with it.
func (s *Session) Reset() {
	s.Module = ir.NewModule()
	s.strs = make(map[string]value.Value)
}

func (s *Session) catch(err *error) {
	if r := recover(); r != nil {
		e, ok := r.(error)
		if !ok {
			panic(r)
		}
		*err = e
	}
}

// irType maps a language type to its IR type.
func irType(t types.VarType) irtypes.Type {
	switch t {
	case types.Double:
		return irtypes.Double
	case types.Byte:
		return irtypes.I8
	case types.Bool:
		return irtypes.I1
	case types.BytePtr:
		return irtypes.NewPointer(irtypes.I8)
	}
	panic(fmt.Errorf("no IR type for %v", t))
}

// zeroValue returns the zero constant of a language type.
func zeroValue(t types.VarType) constant.Constant {
	switch t {
	case types.Double:
		return constant.NewFloat(irtypes.Double, 0)
	case types.Byte:
		return constant.NewInt(irtypes.I8, 0)
	case types.Bool:
		return constant.NewInt(irtypes.I1, 0)
	case types.BytePtr:
		return constant.NewNull(irtypes.NewPointer(irtypes.I8))
	}
	panic(fmt.Errorf("no zero value for %v", t))
}

func (s *Session) pushScope() {
	s.scopes = append(s.scopes, make(map[string]*binding))
}

func (s *Session) popScope() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *Session) scope() map[string]*binding {
	return s.scopes[len(s.scopes)-1]
}

// lookup finds the innermost binding of name, or nil.
func (s *Session) lookup(name string) *binding {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if b, ok := s.scopes[i][name]; ok {
			return b
		}
	}
	return nil
}

// entryAlloca creates a stack slot in the function's entry block, ahead of
// any instruction already there, so mem2reg promotes it.
func (s *Session) entryAlloca(t irtypes.Type) *ir.InstAlloca {
	a := ir.NewAlloca(t)
	entry := s.fn.Blocks[0]
	entry.Insts = append([]ir.Instruction{a}, entry.Insts...)
	return a
}

// findFunc looks a function up in the current module.
func (s *Session) findFunc(name string) *ir.Func {
	for _, f := range s.Module.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// eraseFunc removes a partially built function from the current module so
// the name can be defined again.
func (s *Session) eraseFunc(f *ir.Func) {
	for i, fn := range s.Module.Funcs {
		if fn == f {
			s.Module.Funcs = append(s.Module.Funcs[:i], s.Module.Funcs[i+1:]...)
			return
		}
	}
}

// declareProto emits a prototype-only function into the current module.
func (s *Session) declareProto(p *ast.Prototype) *ir.Func {
	params := make([]*ir.Param, len(p.ArgNames))
	for i, name := range p.ArgNames {
		params[i] = ir.NewParam(name, irType(p.ArgTypes[i]))
	}
	return s.Module.NewFunc(p.Name, irType(p.Ret), params...)
}

// getFunction resolves a callee: first the current module, then the
// prototype registry, which re-declares it here so the JIT linker binds it
// to the implementation materialized in an earlier module.
func (s *Session) getFunction(name string) *ir.Func {
	if f := s.findFunc(name); f != nil {
		return f
	}
	if p, ok := s.protos[name]; ok {
		return s.declareProto(p)
	}
	return nil
}

func hash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 10)
}
