// Package parser turns the token stream into statements and expressions:
// recursive descent for statements and primaries, precedence climbing for
// binary operators.
package parser

import (
	"github.com/andreimatei/llvm-play/ast"
	"github.com/andreimatei/llvm-play/lexer"
	"github.com/andreimatei/llvm-play/types"
)

// Parser keeps a one-token lookahead over the lexer. cur is the token the
// parser is looking at; Advance replaces it with the next one.
type Parser struct {
	lex *lexer.Lexer
	cur types.Token
}

func New(l *lexer.Lexer) *Parser {
	return &Parser{lex: l}
}

// Cur returns the current token. It is only meaningful after the first
// Advance.
func (p *Parser) Cur() types.Token {
	return p.cur
}

// Advance reads the next token into the cursor.
func (p *Parser) Advance() types.Token {
	p.cur = p.lex.Next()
	return p.cur
}

// catch converts a typed-error panic raised by a parse rule into the error
// return of the exported entry points.
func (p *Parser) catch(err *error) {
	if r := recover(); r != nil {
		e, ok := r.(error)
		if !ok {
			panic(r)
		}
		*err = e
	}
}

func (p *Parser) fail(expected string) {
	panic(UnexpectedToken{Expected: expected, Got: p.cur})
}

func (p *Parser) expectChar(c byte) {
	if !p.cur.IsChar(c) {
		p.fail("'" + string(c) + "'")
	}
	p.Advance()
}

func (p *Parser) expect(k types.TokenKind) {
	if p.cur.Kind != k {
		p.fail(k.String())
	}
	p.Advance()
}

func (p *Parser) ident(what string) string {
	if p.cur.Kind != types.IDENT {
		p.fail(what)
	}
	name := p.cur.Ident
	p.Advance()
	return name
}

// Definition parses 'def' prototype stmt.
func (p *Parser) Definition() (fn *ast.Function, err error) {
	defer p.catch(&err)
	p.Advance() // eat 'def'
	proto := p.parsePrototype()
	body := p.parseStmt()
	return &ast.Function{Proto: proto, Body: body}, nil
}

// Extern parses 'extern' prototype.
func (p *Parser) Extern() (proto *ast.Prototype, err error) {
	defer p.catch(&err)
	p.Advance() // eat 'extern'
	return p.parsePrototype(), nil
}

// TopLevel parses a bare expression typed at the REPL and wraps it into an
// anonymous byte-returning function with a synthetic return.
func (p *Parser) TopLevel() (fn *ast.Function, err error) {
	defer p.catch(&err)
	e := p.parseExpression()
	proto := &ast.Prototype{Name: "__anon_expr", Ret: types.Byte}
	return &ast.Function{Proto: proto, Body: &ast.Return{X: e}}, nil
}

// prototype ::= type ident '(' ( type ident (',' type ident)* )? ')'
func (p *Parser) parsePrototype() *ast.Prototype {
	ret := p.parseTypeName()
	name := p.ident("function name in prototype")

	p.expectChar('(')
	var argNames []string
	var argTypes []types.VarType
	if !p.cur.IsChar(')') {
		for {
			t := p.parseTypeName()
			argTypes = append(argTypes, t)
			argNames = append(argNames, p.ident("argument name in prototype"))
			if !p.cur.IsChar(',') {
				break
			}
			p.Advance() // eat ','
		}
	}
	p.expectChar(')')

	return &ast.Prototype{Name: name, Ret: ret, ArgNames: argNames, ArgTypes: argTypes}
}

func (p *Parser) parseTypeName() types.VarType {
	if p.cur.Kind != types.IDENT {
		p.fail("type name")
	}
	t, ok := types.VarTypeFromName(p.cur.Ident)
	if !ok {
		panic(UnknownType{Name: p.cur.Ident})
	}
	p.Advance()
	return t
}

// stmt ::= if | for | block | var decl | return | expr
func (p *Parser) parseStmt() ast.Stmt {
	switch p.cur.Kind {
	case types.IF:
		return p.parseIf()
	case types.FOR:
		return p.parseFor()
	case types.LBRACKET:
		return p.parseBlock()
	case types.VAR:
		return p.parseVarDecl()
	case types.RETURN:
		p.Advance() // eat 'return'
		return &ast.Return{X: p.parseExpression()}
	default:
		return &ast.ExprStmt{X: p.parseExpression()}
	}
}

// if ::= 'if' expr 'then' stmt 'else' stmt
// Both arms are mandatory.
func (p *Parser) parseIf() ast.Stmt {
	p.Advance() // eat 'if'
	cond := p.parseExpression()
	p.expect(types.THEN)
	then := p.parseStmt()
	p.expect(types.ELSE)
	els := p.parseStmt()
	return &ast.If{Cond: cond, Then: then, Else: els}
}

// for ::= 'for' ident '=' expr ',' expr (',' expr)? stmt
func (p *Parser) parseFor() ast.Stmt {
	p.Advance() // eat 'for'
	name := p.ident("identifier after 'for'")
	p.expectChar('=')
	start := p.parseExpression()
	p.expectChar(',')
	end := p.parseExpression()

	var step ast.Expr
	if p.cur.IsChar(',') {
		p.Advance() // eat ','
		step = p.parseExpression()
	} else {
		step = ast.NumberFromFP(1.0)
	}

	body := p.parseStmt()
	return &ast.For{Var: name, Start: start, End: end, Step: step, Body: body}
}

// block ::= '{' (stmt ';'?)* '}'
func (p *Parser) parseBlock() ast.Stmt {
	p.Advance() // eat '{'
	var stmts []ast.Stmt
	for {
		if p.cur.Kind == types.EOS {
			p.Advance()
			continue
		}
		if p.cur.Kind == types.RBRACKET {
			p.Advance()
			break
		}
		if p.cur.Kind == types.EOF {
			p.fail("'}'")
		}
		stmts = append(stmts, p.parseStmt())
	}
	return &ast.Block{Stmts: stmts}
}

// var decl ::= 'var' ident type ('=' expr)?
func (p *Parser) parseVarDecl() ast.Stmt {
	p.Advance() // eat 'var'
	name := p.ident("identifier after 'var'")
	typ := p.parseTypeName()

	var init ast.Expr
	if p.cur.IsChar('=') {
		p.Advance() // eat '='
		init = p.parseExpression()
	}
	return &ast.VarDecl{Name: name, Type: typ, Init: init}
}

// Binary operator precedence; larger binds tighter. '!' parses as a binary
// operator but has no codegen.
var binopPrecedence = map[byte]int{
	'=': 2,
	'!': 10,
	'<': 10,
	'+': 20,
	'-': 20,
	'*': 40,
}

// tokPrecedence returns the precedence of the current token as a binary
// operator, or -1 if it is not one.
func (p *Parser) tokPrecedence() int {
	if p.cur.Kind != types.CHAR {
		return -1
	}
	prec, ok := binopPrecedence[p.cur.Ch]
	if !ok {
		return -1
	}
	return prec
}

// expr ::= primary (binop primary)*
func (p *Parser) parseExpression() ast.Expr {
	lhs := p.parsePrimary()
	return p.parseBinOpRHS(0, lhs)
}

// parseBinOpRHS folds binary operators onto lhs for as long as their
// precedence is at least exprPrec. '=' recurses at equal precedence so it
// associates to the right; everything else associates to the left.
func (p *Parser) parseBinOpRHS(exprPrec int, lhs ast.Expr) ast.Expr {
	for {
		tokPrec := p.tokPrecedence()
		if tokPrec < exprPrec {
			return lhs
		}

		op := p.cur.Ch
		p.Advance() // eat binop

		rhs := p.parsePrimary()

		nextPrec := p.tokPrecedence()
		if tokPrec < nextPrec {
			rhs = p.parseBinOpRHS(tokPrec+1, rhs)
		} else if op == '=' && tokPrec == nextPrec {
			rhs = p.parseBinOpRHS(tokPrec, rhs)
		}

		lhs = &ast.Binary{Op: op, LHS: lhs, RHS: rhs}
	}
}

// primary ::= ident-or-call | number | string | '(' expr ')' | unary
func (p *Parser) parsePrimary() ast.Expr {
	switch p.cur.Kind {
	case types.IDENT:
		return p.parseIdentifierExpr()
	case types.INT:
		v := p.cur.Int
		p.Advance()
		return ast.NumberFromInt(v)
	case types.FP:
		v := p.cur.FP
		p.Advance()
		return ast.NumberFromFP(v)
	case types.STRING:
		v := p.cur.Str
		p.Advance()
		return ast.NumberFromStr(v)
	case types.CHAR:
		switch p.cur.Ch {
		case '(':
			p.Advance() // eat '('
			e := p.parseExpression()
			p.expectChar(')')
			return e
		case '&', '*':
			op := p.cur.Ch
			p.Advance() // eat the operator
			return &ast.Unary{Op: op, Operand: p.parsePrimary()}
		}
	}
	p.fail("expression")
	return nil
}

func (p *Parser) parseIdentifierExpr() ast.Expr {
	name := p.cur.Ident
	p.Advance() // eat the identifier

	if !p.cur.IsChar('(') {
		return &ast.VarRef{Name: name}
	}

	p.Advance() // eat '('
	var args []ast.Expr
	if !p.cur.IsChar(')') {
		for {
			args = append(args, p.parseExpression())
			if !p.cur.IsChar(',') {
				break
			}
			p.Advance() // eat ','
		}
	}
	p.expectChar(')')

	return &ast.Call{Callee: name, Args: args}
}
