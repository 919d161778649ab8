package rename

import (
	"strings"

	"github.com/xirelogy/go-moondec/internal/ast"
)

// Kind identifies the category of a token.
type Kind uint8

const (
	EOF Kind = iota
	Space
	Ident
	Keyword
	Number
	String
	Comment
	Punct
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Space:
		return "SPACE"
	case Ident:
		return "IDENT"
	case Keyword:
		return "KEYWORD"
	case Number:
		return "NUMBER"
	case String:
		return "STRING"
	case Comment:
		return "COMMENT"
	default:
		return "PUNCT"
	}
}

// Position describes a byte offset and 1-based line/column.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Token is a lexical item of decompiled output. Text is the exact source
// slice, so concatenating every token reproduces the input.
type Token struct {
	Kind Kind
	Text string
	Pos  Position
}

// Lexer splits decompiled output into tokens. It never fails: malformed
// input such as an unterminated string is returned as a best-effort token.
type Lexer struct {
	input  string
	pos    int  // current position in bytes
	ch     byte // current char, 0 at end of input
	line   int
	column int
}

// NewLexer creates a lexer for the provided text.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 1}
	if len(input) > 0 {
		l.ch = input[0]
	}
	return l
}

// Next returns the next token, or an EOF token at the end of input.
func (l *Lexer) Next() Token {
	tok := Token{Pos: Position{Offset: l.pos, Line: l.line, Column: l.column}}
	start := l.pos

	switch {
	case l.eof():
		tok.Kind = EOF
		return tok
	case isSpace(l.ch):
		for !l.eof() && isSpace(l.ch) {
			l.readChar()
		}
		tok.Kind = Space
	case l.ch == '-' && l.peekChar() == '-':
		l.skipComment()
		tok.Kind = Comment
	case l.ch == '"' || l.ch == '\'':
		l.skipQuoted(l.ch)
		tok.Kind = String
	case l.ch == '[' && l.longBracket() >= 0:
		l.skipLong(l.longBracket())
		tok.Kind = String
	case ast.IsIdentByte(l.ch, true):
		for !l.eof() && ast.IsIdentByte(l.ch, false) {
			l.readChar()
		}
		tok.Kind = Ident
		if ast.IsKeyword(l.input[start:l.pos]) {
			tok.Kind = Keyword
		}
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		l.readNumber()
		tok.Kind = Number
	case l.ch == '.':
		for n := 0; n < 3 && l.ch == '.'; n++ {
			l.readChar()
		}
		tok.Kind = Punct
	case l.ch == ':' && l.peekChar() == ':':
		l.readChar()
		l.readChar()
		tok.Kind = Punct
	default:
		l.readChar()
		tok.Kind = Punct
	}
	tok.Text = l.input[start:l.pos]
	return tok
}

// Tokens returns every token of input, excluding the final EOF.
func Tokens(input string) []Token {
	l := NewLexer(input)
	var out []Token
	for {
		tok := l.Next()
		if tok.Kind == EOF {
			return out
		}
		out = append(out, tok)
	}
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) readChar() {
	if l.eof() {
		return
	}
	if l.ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	if l.pos < len(l.input) {
		l.ch = l.input[l.pos]
	} else {
		l.ch = 0
	}
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n < len(l.input) {
		return l.input[l.pos+n]
	}
	return 0
}

func (l *Lexer) peekChar() byte {
	return l.peekAt(1)
}

// longBracket returns the level of a long bracket opening at the current
// '[', or -1 when there is none.
func (l *Lexer) longBracket() int {
	n := 1
	for l.peekAt(n) == '=' {
		n++
	}
	if l.peekAt(n) == '[' {
		return n - 1
	}
	return -1
}

func (l *Lexer) skipLong(level int) {
	for i := 0; i < level+2; i++ {
		l.readChar()
	}
	closer := "]" + strings.Repeat("=", level) + "]"
	for !l.eof() {
		if strings.HasPrefix(l.input[l.pos:], closer) {
			for i := 0; i < len(closer); i++ {
				l.readChar()
			}
			return
		}
		l.readChar()
	}
}

func (l *Lexer) skipComment() {
	l.readChar() // '-'
	l.readChar() // '-'
	if l.ch == '[' {
		if level := l.longBracket(); level >= 0 {
			l.skipLong(level)
			return
		}
	}
	for !l.eof() && l.ch != '\n' {
		l.readChar()
	}
}

func (l *Lexer) skipQuoted(quote byte) {
	l.readChar()
	for !l.eof() {
		switch l.ch {
		case '\\':
			l.readChar()
			l.readChar()
			continue
		case quote:
			l.readChar()
			return
		case '\n':
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readNumber() {
	hex := l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X')
	for !l.eof() && (ast.IsIdentByte(l.ch, false) || l.ch == '.') {
		if l.ch == '.' && l.peekChar() == '.' {
			return
		}
		prev := l.ch
		l.readChar()
		if !hex && (prev == 'e' || prev == 'E') && (l.ch == '+' || l.ch == '-') {
			l.readChar()
		}
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
