package ast

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// The printers produce source the parser accepts again: parsing a printed
// program and printing the result yields the same string. Floats always
// carry a decimal point so they lex back as FP literals, string literals
// always print hex-escaped, and blocks separate statements with ';'.

func (n *Number) String() string {
	switch {
	case n.IsFP:
		s := strconv.FormatFloat(n.FP, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case n.IsInt:
		return strconv.FormatInt(n.Int, 10)
	default:
		return `"\x` + hex.EncodeToString(n.Str) + `"`
	}
}

func (v *VarRef) String() string {
	return v.Name
}

func (u *Unary) String() string {
	return string(u.Op) + exprString(u.Operand)
}

func (b *Binary) String() string {
	return fmt.Sprintf("(%s %c %s)", exprString(b.LHS), b.Op, exprString(b.RHS))
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = exprString(a)
	}
	return fmt.Sprintf("%s(%s)", c.Callee, strings.Join(args, ", "))
}

func (e *ExprStmt) String() string {
	return exprString(e.X)
}

func (v *VarDecl) String() string {
	s := fmt.Sprintf("var %s %s", v.Name, v.Type)
	if v.Init != nil {
		s += " = " + exprString(v.Init)
	}
	return s
}

func (i *If) String() string {
	return fmt.Sprintf("if %s then %s else %s",
		exprString(i.Cond), stmtString(i.Then), stmtString(i.Else))
}

func (f *For) String() string {
	return fmt.Sprintf("for %s = %s, %s, %s %s",
		f.Var, exprString(f.Start), exprString(f.End), exprString(f.Step),
		stmtString(f.Body))
}

func (b *Block) String() string {
	var sb strings.Builder
	sb.WriteString("{ ")
	for _, s := range b.Stmts {
		sb.WriteString(stmtString(s))
		sb.WriteString("; ")
	}
	sb.WriteString("}")
	return sb.String()
}

func (r *Return) String() string {
	return "return " + exprString(r.X)
}

func (p *Prototype) String() string {
	args := make([]string, len(p.ArgNames))
	for i, name := range p.ArgNames {
		args[i] = fmt.Sprintf("%s %s", p.ArgTypes[i], name)
	}
	return fmt.Sprintf("%s %s(%s)", p.Ret, p.Name, strings.Join(args, ", "))
}

func (f *Function) String() string {
	return fmt.Sprintf("def %s %s", f.Proto, stmtString(f.Body))
}

func exprString(e Expr) string {
	return e.(fmt.Stringer).String()
}

func stmtString(s Stmt) string {
	return s.(fmt.Stringer).String()
}
