package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/andreimatei/llvm-play/ast"
	"github.com/andreimatei/llvm-play/types"
)

// Function compiles a definition into the current module: resolve or
// create the IR function, lower the body, and synthesize a trailing return
// of the zero value when the body can fall off the end. On error the
// partially built function is erased so the name can be defined again.
func (s *Session) Function(fn *ast.Function) (f *ir.Func, err error) {
	defer func() {
		if err != nil && f != nil {
			s.eraseFunc(f)
			f = nil
		}
	}()
	defer s.catch(&err)

	proto := fn.Proto
	s.protos[proto.Name] = proto

	f = s.getFunction(proto.Name)
	if f == nil {
		f = s.declareProto(proto)
	}
	if len(f.Blocks) != 0 {
		// The existing body is not ours to erase.
		f = nil
		panic(Redefinition{Name: proto.Name})
	}

	s.fn = f
	s.proto = proto
	s.labels = make(map[string]int)
	s.block = s.newBlock("entry")
	s.scopes = s.scopes[:0]
	s.pushScope()
	for i, param := range f.Params {
		t := proto.ArgTypes[i]
		slot := s.entryAlloca(irType(t))
		s.block.NewStore(param, slot)
		s.scope()[proto.ArgNames[i]] = &binding{typ: t, irt: irType(t), slot: slot}
	}

	returned := s.stmt(fn.Body)
	if !returned {
		s.block.NewRet(zeroValue(proto.Ret))
	}
	s.popScope()

	return f, nil
}

// Extern registers the prototype and emits a declaration into the current
// module; the JIT resolves it against the host process.
func (s *Session) Extern(p *ast.Prototype) (f *ir.Func, err error) {
	defer s.catch(&err)
	s.protos[p.Name] = p
	if f := s.findFunc(p.Name); f != nil {
		return f, nil
	}
	return s.declareProto(p), nil
}

// stmt lowers one statement. The return value reports whether the
// statement emitted a terminator on every path leaving the current block;
// callers use it to avoid branching out of a finished block.
func (s *Session) stmt(st ast.Stmt) bool {
	switch st := st.(type) {
	case *ast.ExprStmt:
		s.expr(st.X)
		return false

	case *ast.VarDecl:
		var init value.Value
		if st.Init != nil {
			init = s.expr(st.Init)
			if !init.Type().Equal(irType(st.Type)) {
				panic(TypeMismatch{Context: "initializer of " + st.Name})
			}
		} else {
			init = zeroValue(st.Type)
		}
		slot := s.entryAlloca(irType(st.Type))
		s.block.NewStore(init, slot)
		s.scope()[st.Name] = &binding{typ: st.Type, irt: irType(st.Type), slot: slot}
		return false

	case *ast.If:
		return s.ifStmt(st)

	case *ast.For:
		return s.forStmt(st)

	case *ast.Block:
		s.pushScope()
		defer s.popScope()
		for _, child := range st.Stmts {
			if s.stmt(child) {
				return true
			}
		}
		return false

	case *ast.Return:
		v := s.expr(st.X)
		if !v.Type().Equal(s.fn.Sig.RetType) {
			v = s.coerceAnonReturn(v)
		}
		s.block.NewRet(v)
		return true
	}
	panic(TypeMismatch{Context: "statement"})
}

// coerceAnonReturn narrows the value of a top-level expression to the
// anonymous wrapper's byte return type. Everywhere else a return type
// mismatch is an error.
func (s *Session) coerceAnonReturn(v value.Value) value.Value {
	if s.proto.Name == "__anon_expr" && s.proto.Ret == types.Byte {
		switch v.Type().(type) {
		case *irtypes.FloatType:
			return s.block.NewFPToUI(v, irtypes.I8)
		case *irtypes.IntType:
			return s.block.NewZExt(v, irtypes.I8)
		}
	}
	panic(TypeMismatch{Context: "return value"})
}

func (s *Session) ifStmt(st *ast.If) bool {
	cond := s.nonZero(s.expr(st.Cond))

	thenB := s.newBlock("then")
	elseB := s.newBlock("else")
	s.block.NewCondBr(cond, thenB, elseB)

	s.block = thenB
	thenRet := s.stmt(st.Then)
	thenEnd := s.block

	s.block = elseB
	elseRet := s.stmt(st.Else)
	elseEnd := s.block

	if thenRet && elseRet {
		// Both arms return; a merge block would have no predecessors.
		return true
	}

	merge := s.newBlock("ifcont")
	if !thenRet {
		thenEnd.NewBr(merge)
	}
	if !elseRet {
		elseEnd.NewBr(merge)
	}
	s.block = merge
	return false
}

// forStmt lowers the counted loop. The loop variable is a Double held in
// its own stack slot and its own scope frame, so it shadows an outer
// binding of the same name for exactly the extent of the loop.
func (s *Session) forStmt(st *ast.For) bool {
	slot := s.entryAlloca(irtypes.Double)
	start := s.expr(st.Start)
	if !start.Type().Equal(irtypes.Double) {
		panic(TypeMismatch{Context: "loop start value"})
	}
	s.block.NewStore(start, slot)

	s.pushScope()
	defer s.popScope()
	s.scope()[st.Var] = &binding{typ: types.Double, irt: irtypes.Double, slot: slot}

	loop := s.newBlock("loop")
	s.block.NewBr(loop)
	s.block = loop

	if s.stmt(st.Body) {
		// The body returns on every path; the backedge is unreachable.
		return true
	}

	cur := s.block.NewLoad(irtypes.Double, slot)
	step := s.expr(st.Step)
	if !step.Type().Equal(irtypes.Double) {
		panic(TypeMismatch{Context: "loop step value"})
	}
	next := s.block.NewFAdd(cur, step)
	s.block.NewStore(next, slot)

	end := s.nonZero(s.expr(st.End))

	after := s.newBlock("afterloop")
	s.block.NewCondBr(end, loop, after)
	s.block = after
	return false
}

// expr lowers one expression and yields its IR value.
func (s *Session) expr(e ast.Expr) value.Value {
	switch e := e.(type) {
	case *ast.Number:
		return s.number(e)

	case *ast.VarRef:
		b := s.lookup(e.Name)
		if b == nil {
			panic(UnknownVariable{Name: e.Name})
		}
		return s.block.NewLoad(b.irt, b.slot)

	case *ast.Unary:
		return s.unary(e)

	case *ast.Binary:
		return s.binary(e)

	case *ast.Call:
		return s.call(e)
	}
	panic(TypeMismatch{Context: "expression"})
}

func (s *Session) number(n *ast.Number) value.Value {
	switch {
	case n.IsFP:
		return constant.NewFloat(irtypes.Double, n.FP)
	case n.IsInt:
		// Integer literals are byte-sized; truncation is the language's
		// documented behavior.
		return constant.NewInt(irtypes.I8, int64(int8(n.Int)))
	default:
		return s.stringConstant(n.Str)
	}
}

// stringConstant emits a private null-terminated byte-array global for the
// literal (one per distinct literal per module) and yields a pointer to
// its first byte.
func (s *Session) stringConstant(data []byte) value.Value {
	g, ok := s.strs[string(data)]
	if !ok {
		init := constant.NewCharArray(append(append([]byte{}, data...), 0))
		def := s.Module.NewGlobalDef("_str_"+hash(string(data)), init)
		def.Linkage = enum.LinkagePrivate
		def.Immutable = true
		s.strs[string(data)] = def
		g = def
	}
	arrType := g.Type().(*irtypes.PointerType).ElemType
	zero := constant.NewInt(irtypes.I32, 0)
	return s.block.NewGetElementPtr(arrType, g, zero, zero)
}

func (s *Session) unary(u *ast.Unary) value.Value {
	ref, ok := u.Operand.(*ast.VarRef)
	if !ok {
		panic(NotAVariable{Op: u.Op})
	}
	b := s.lookup(ref.Name)
	if b == nil {
		panic(UnknownVariable{Name: ref.Name})
	}

	switch u.Op {
	case '&':
		return b.slot
	case '*':
		if b.typ != types.BytePtr {
			panic(NotAPointer{Name: ref.Name})
		}
		ptr := s.block.NewLoad(irtypes.NewPointer(irtypes.I8), b.slot)
		return s.block.NewLoad(irtypes.I8, ptr)
	}
	panic(InvalidBinOp{Op: u.Op})
}

func (s *Session) binary(b *ast.Binary) value.Value {
	if b.Op == '=' {
		return s.assign(b)
	}

	l := s.expr(b.LHS)
	r := s.expr(b.RHS)
	if !l.Type().Equal(r.Type()) {
		panic(TypeMismatch{Context: "binary '" + string(b.Op) + "'"})
	}

	// Operator selection follows the operand type; no conversions are
	// inserted.
	_, isFloat := l.Type().(*irtypes.FloatType)
	_, isInt := l.Type().(*irtypes.IntType)
	if !isFloat && !isInt {
		panic(InvalidBinOp{Op: b.Op})
	}

	switch b.Op {
	case '+':
		if isFloat {
			return s.block.NewFAdd(l, r)
		}
		return s.block.NewAdd(l, r)
	case '-':
		if isFloat {
			return s.block.NewFSub(l, r)
		}
		return s.block.NewSub(l, r)
	case '*':
		if isFloat {
			return s.block.NewFMul(l, r)
		}
		return s.block.NewMul(l, r)
	case '<':
		if isFloat {
			return s.block.NewFCmp(enum.FPredULT, l, r)
		}
		return s.block.NewICmp(enum.IPredULT, l, r)
	}
	panic(InvalidBinOp{Op: b.Op})
}

func (s *Session) assign(b *ast.Binary) value.Value {
	ref, ok := b.LHS.(*ast.VarRef)
	if !ok {
		panic(NotAVariable{Op: '='})
	}
	v := s.expr(b.RHS)
	dst := s.lookup(ref.Name)
	if dst == nil {
		panic(UnknownVariable{Name: ref.Name})
	}
	if !v.Type().Equal(dst.irt) {
		panic(TypeMismatch{Context: "assignment to " + ref.Name})
	}
	s.block.NewStore(v, dst.slot)
	return v
}

func (s *Session) call(c *ast.Call) value.Value {
	f := s.getFunction(c.Callee)
	if f == nil {
		panic(UnknownFunction{Name: c.Callee})
	}
	if len(f.Params) != len(c.Args) {
		panic(ArgCountMismatch{Name: c.Callee, Want: len(f.Params), Got: len(c.Args)})
	}

	args := make([]value.Value, len(c.Args))
	for i, a := range c.Args {
		v := s.expr(a)
		if !v.Type().Equal(f.Sig.Params[i]) {
			panic(ArgTypeMismatch{Name: c.Callee, Idx: i})
		}
		args[i] = v
	}
	return s.block.NewCall(f, args...)
}

// nonZero compares v against the zero of its own type, yielding an i1.
func (s *Session) nonZero(v value.Value) value.Value {
	switch t := v.Type().(type) {
	case *irtypes.FloatType:
		return s.block.NewFCmp(enum.FPredONE, v, constant.NewFloat(t, 0))
	case *irtypes.IntType:
		return s.block.NewICmp(enum.IPredNE, v, constant.NewInt(t, 0))
	case *irtypes.PointerType:
		return s.block.NewICmp(enum.IPredNE, v, constant.NewNull(t))
	}
	panic(TypeMismatch{Context: "condition"})
}
