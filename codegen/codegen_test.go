package codegen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreimatei/llvm-play/ast"
	"github.com/andreimatei/llvm-play/diag"
	"github.com/andreimatei/llvm-play/lexer"
	"github.com/andreimatei/llvm-play/parser"
)

func parseDef(t *testing.T, src string) *ast.Function {
	t.Helper()
	p := parser.New(lexer.New(lexer.FromString(src), diag.NewSink(&bytes.Buffer{})))
	p.Advance()
	fn, err := p.Definition()
	require.NoError(t, err)
	return fn
}

func parseTop(t *testing.T, src string) *ast.Function {
	t.Helper()
	p := parser.New(lexer.New(lexer.FromString(src), diag.NewSink(&bytes.Buffer{})))
	p.Advance()
	fn, err := p.TopLevel()
	require.NoError(t, err)
	return fn
}

func TestSquare(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double foo(double x) return x * x"))
	require.NoError(t, err)

	ir := s.Module.String()
	assert.Contains(t, ir, "define double @foo(double %x)")
	assert.Contains(t, ir, "fmul double")
	assert.Contains(t, ir, "ret double")
}

func TestByteArithmeticUsesIntegerOps(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def byte f(byte a, byte b) return a + b * b"))
	require.NoError(t, err)

	ir := s.Module.String()
	assert.Contains(t, ir, "mul i8")
	assert.Contains(t, ir, "add i8")
	assert.NotContains(t, ir, "fadd")
}

func TestComparisonYieldsI1(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t,
		"def double f(double a, double b) if a < b then return a else return b"))
	require.NoError(t, err)

	ir := s.Module.String()
	assert.Contains(t, ir, "fcmp ult double")
	// The condition is itself compared against zero of its type.
	assert.Contains(t, ir, "icmp ne i1")
}

func TestMixedOperandTypesRejected(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double f(double a, byte b) return a + b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatched operand types")
	// The partial function must be gone so the name can be redefined.
	assert.Nil(t, s.findFunc("f"))
}

func TestInvalidBinOp(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double f(double a, double b) return a ! b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bin op: !")
}

func TestUnknownVariable(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double bad() return *x"))
	require.Error(t, err)
	assert.Equal(t, "unknown variable: x", err.Error())
}

func TestDerefRequiresBytePtr(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def byte f(byte x) return *x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a byte_ptr")
}

func TestAssignToNonVariable(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double f(double a) return (a + 1.0) = 2.0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a variable")
}

func TestAddressOfAndDeref(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t,
		"def byte f(byte x) { var p byte_ptr = &x; return *p; }"))
	require.NoError(t, err)

	ir := s.Module.String()
	assert.Contains(t, ir, "alloca i8*")
	assert.Contains(t, ir, "load i8*")
}

func TestStringLiteralGlobal(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t,
		`def byte_ptr greet() { var s byte_ptr = "\x4849"; return s; }`))
	require.NoError(t, err)

	ir := s.Module.String()
	// Null-terminated private constant: "HI" plus the terminator.
	assert.Contains(t, ir, "private")
	assert.Contains(t, ir, `c"HI\00"`)
}

func TestStringLiteralsDeduped(t *testing.T) {
	s := NewSession()
	_, err := s.Extern(parseProto("extern byte my_strcmp(byte_ptr a, byte la, byte_ptr b, byte lb)"))
	require.NoError(t, err)
	_, err = s.Function(parseDef(t,
		`def byte f() return my_strcmp("\x41", 1, "\x41", 1)`))
	require.NoError(t, err)

	// The same literal twice produces a single private global.
	assert.Equal(t, 1, strings.Count(s.Module.String(), `c"A\00"`))
}

func TestCallUnknownFunction(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double f() return g(1.0)"))
	require.Error(t, err)
	assert.Equal(t, "unknown function referenced: g", err.Error())
}

func TestCallArgCount(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double g(double x) return x"))
	require.NoError(t, err)
	_, err = s.Function(parseDef(t, "def double f() return g(1.0, 2.0)"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incorrect # arguments passed to g: expected 1, got 2")
}

func TestCrossModuleCallRedeclares(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double g(double x) return x"))
	require.NoError(t, err)
	s.Reset() // g's module went to the JIT; a fresh module starts

	_, err = s.Function(parseDef(t, "def double f() return g(1.0)"))
	require.NoError(t, err)

	ir := s.Module.String()
	assert.Contains(t, ir, "declare double @g(double %x)")
	assert.Contains(t, ir, "call double @g")
}

func TestRedefinitionInSameModule(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double f() return 1.0"))
	require.NoError(t, err)
	_, err = s.Function(parseDef(t, "def double f() return 2.0"))
	require.Error(t, err)
	assert.Equal(t, "function f cannot be redefined", err.Error())
}

func TestRedefinitionAcrossModules(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double f() return 1.0"))
	require.NoError(t, err)
	s.Reset()
	_, err = s.Function(parseDef(t, "def double f() return 2.0"))
	require.NoError(t, err)
}

func TestBothArmsReturnOmitsMerge(t *testing.T) {
	s := NewSession()
	f, err := s.Function(parseDef(t,
		"def double f(double a) if a then return 1.0 else return 2.0"))
	require.NoError(t, err)

	for _, b := range f.Blocks {
		assert.NotEqual(t, "ifcont", b.LocalName)
	}
}

func TestFallthroughArmGetsMerge(t *testing.T) {
	s := NewSession()
	f, err := s.Function(parseDef(t,
		"def double f(double a) { if a then putchard(a) else return 2.0; return 3.0; }"))
	// putchard is unknown here; declare it first.
	require.Error(t, err)

	_, err = s.Extern(protoPutchard())
	require.NoError(t, err)
	f, err = s.Function(parseDef(t,
		"def double f(double a) { if a then putchard(a) else return 2.0; return 3.0; }"))
	require.NoError(t, err)

	var names []string
	for _, b := range f.Blocks {
		names = append(names, b.LocalName)
	}
	assert.Contains(t, names, "ifcont")
}

func TestNestedIfLabelsAreUnique(t *testing.T) {
	s := NewSession()
	f, err := s.Function(parseDef(t,
		"def double f(double a) if a then { if a then return 1.0 else return 2.0; } else return 3.0"))
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, b := range f.Blocks {
		assert.False(t, seen[b.LocalName], "duplicate label %q", b.LocalName)
		seen[b.LocalName] = true
	}
}

func TestMissingReturnSynthesizesZero(t *testing.T) {
	s := NewSession()
	_, err := s.Extern(protoPutchard())
	require.NoError(t, err)
	_, err = s.Function(parseDef(t, "def double f() putchard(65.0)"))
	require.NoError(t, err)
	assert.Contains(t, s.Module.String(), "ret double 0")

	_, err = s.Function(parseDef(t, "def byte g() putchard(66.0)"))
	require.NoError(t, err)
	assert.Contains(t, s.Module.String(), "ret i8 0")
}

func TestLoop(t *testing.T) {
	s := NewSession()
	f, err := s.Function(parseDef(t,
		"def double sum(double n) { var acc double = 0.0; for i = 1.0, i < n + 1.0 { acc = acc + i; }; return acc; }"))
	require.NoError(t, err)

	var names []string
	for _, b := range f.Blocks {
		names = append(names, b.LocalName)
	}
	assert.Contains(t, names, "loop")
	assert.Contains(t, names, "afterloop")
	assert.Contains(t, s.Module.String(), "fadd double")
}

// The loop variable shadows an outer binding only for the extent of the
// loop.
func TestLoopVariableScope(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t,
		"def double f() { var i double = 7.0; for i = 0.0, i < 3.0 { }; return i; }"))
	require.NoError(t, err)

	// With no outer binding, the loop variable is gone after the loop.
	s.Reset()
	_, err = s.Function(parseDef(t,
		"def double g() { for i = 0.0, i < 3.0 { }; return i; }"))
	require.Error(t, err)
	assert.Equal(t, "unknown variable: i", err.Error())
}

func TestBlockScopePopsDeclarations(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t,
		"def double f() { { var x double = 1.0; }; return x; }"))
	require.Error(t, err)
	assert.Equal(t, "unknown variable: x", err.Error())
}

func TestAnonWrapperCoercesDouble(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def double foo(double x) return x * x"))
	require.NoError(t, err)
	s.Reset()

	_, err = s.Function(parseTop(t, "foo(3.0)"))
	require.NoError(t, err)

	ir := s.Module.String()
	assert.Contains(t, ir, "define i8 @__anon_expr()")
	assert.Contains(t, ir, "fptoui double")
}

func TestReturnTypeMismatchRejected(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t, "def byte f(double x) return x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return value")
}

func TestVarDeclZeroInit(t *testing.T) {
	s := NewSession()
	_, err := s.Function(parseDef(t,
		"def double f() { var x double; var b byte; var p byte_ptr; var t bool; return x; }"))
	require.NoError(t, err)

	ir := s.Module.String()
	assert.Contains(t, ir, "store double 0")
	assert.Contains(t, ir, "store i8 0")
	assert.Contains(t, ir, "store i8* null")
	assert.Contains(t, ir, "store i1 false")
}

func protoPutchard() *ast.Prototype {
	return parseProto("extern double putchard(double c)")
}

func parseProto(src string) *ast.Prototype {
	p := parser.New(lexer.New(lexer.FromString(src), diag.NewSink(&bytes.Buffer{})))
	p.Advance()
	proto, err := p.Extern()
	if err != nil {
		panic(err)
	}
	return proto
}
