package lexer

import (
	"bufio"
	"encoding/hex"
	"io"
	"strconv"
	"strings"

	"github.com/andreimatei/llvm-play/diag"
	"github.com/andreimatei/llvm-play/types"
)

// CharSource feeds the lexer one byte at a time. EOFChar signals end of
// input, matching the C getchar convention.
type CharSource func() int

const EOFChar = -1

// FromReader adapts an io.Reader into a CharSource.
func FromReader(r io.Reader) CharSource {
	br := bufio.NewReader(r)
	return func() int {
		b, err := br.ReadByte()
		if err != nil {
			return EOFChar
		}
		return int(b)
	}
}

// FromString is a convenience for tests and file mode.
func FromString(s string) CharSource {
	return FromReader(strings.NewReader(s))
}

// Lexer pulls characters from an injected source and produces tokens. It
// owns one character of lookahead: a call may leave the first character of
// the next token unconsumed in last.
type Lexer struct {
	get  CharSource
	last int
	sink *diag.Sink
}

func New(get CharSource, sink *diag.Sink) *Lexer {
	return &Lexer{
		get:  get,
		last: ' ',
		sink: sink,
	}
}

var keywords = map[string]types.TokenKind{
	"def":    types.DEF,
	"extern": types.EXTERN,
	"if":     types.IF,
	"then":   types.THEN,
	"else":   types.ELSE,
	"for":    types.FOR,
	"in":     types.IN,
	"return": types.RETURN,
	"var":    types.VAR,
}

func isSpace(c int) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isAlpha(c int) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isDigit(c int) bool {
	return c >= '0' && c <= '9'
}

func (l *Lexer) kinded(k types.TokenKind) types.Token {
	return types.Token{Kind: k}
}

// Next returns the next token from the source.
func (l *Lexer) Next() types.Token {
	for isSpace(l.last) {
		l.last = l.get()
	}

	if isAlpha(l.last) {
		var ident strings.Builder
		for isAlpha(l.last) || isDigit(l.last) {
			ident.WriteByte(byte(l.last))
			l.last = l.get()
		}
		name := ident.String()
		if kind, ok := keywords[name]; ok {
			return l.kinded(kind)
		}
		return types.Token{Kind: types.IDENT, Ident: name}
	}

	switch l.last {
	case '{':
		l.last = l.get()
		return l.kinded(types.LBRACKET)
	case '}':
		l.last = l.get()
		return l.kinded(types.RBRACKET)
	case ';':
		l.last = l.get()
		return l.kinded(types.EOS)
	}

	if isDigit(l.last) || l.last == '.' {
		var num strings.Builder
		for isDigit(l.last) || l.last == '.' {
			num.WriteByte(byte(l.last))
			l.last = l.get()
		}
		return l.number(num.String())
	}

	if l.last == '"' {
		return l.lexString()
	}

	if l.last == '#' {
		for l.last != EOFChar && l.last != '\n' && l.last != '\r' {
			l.last = l.get()
		}
		if l.last != EOFChar {
			return l.Next()
		}
	}

	if l.last == EOFChar {
		return l.kinded(types.EOF)
	}

	ch := byte(l.last)
	l.last = l.get()
	return types.Token{Kind: types.CHAR, Ch: ch}
}

func (l *Lexer) number(text string) types.Token {
	if strings.Contains(text, ".") {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			l.sink.Errorf("malformed number: %s", text)
			return types.Token{Kind: types.FP}
		}
		return types.Token{Kind: types.FP, FP: v}
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		l.sink.Errorf("malformed number: %s", text)
		return types.Token{Kind: types.INT}
	}
	return types.Token{Kind: types.INT, Int: v}
}

// lexString reads a "..." literal. A literal starting with \x holds
// hex-encoded bytes; anything else is taken verbatim. The lexer adds no
// terminator.
func (l *Lexer) lexString() types.Token {
	l.last = l.get() // eat '"'

	var raw []byte
	for l.last != '"' {
		if l.last == EOFChar {
			l.sink.Errorf("unterminated string literal")
			return types.Token{Kind: types.STRING}
		}
		if l.last == '\\' {
			raw = append(raw, byte(l.last))
			l.last = l.get()
			if l.last == EOFChar {
				continue
			}
		}
		raw = append(raw, byte(l.last))
		l.last = l.get()
	}
	l.last = l.get() // eat closing '"'

	if len(raw) >= 2 && raw[0] == '\\' && raw[1] == 'x' {
		enc := raw[2:]
		if len(enc)%2 != 0 {
			l.sink.Errorf("hex string literal has odd length")
			return types.Token{Kind: types.STRING}
		}
		dec := make([]byte, len(enc)/2)
		if _, err := hex.Decode(dec, enc); err != nil {
			l.sink.Errorf("malformed hex string literal: %s", err)
			return types.Token{Kind: types.STRING}
		}
		return types.Token{Kind: types.STRING, Str: dec}
	}

	return types.Token{Kind: types.STRING, Str: raw}
}
