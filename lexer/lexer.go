package lexer

import (
	"fmt"

	"github.com/thiremani/cstage/token"
)

type Lexer struct {
	input        []rune
	position     int  // current position in input (points to current rune)
	readPosition int  // current reading position in input (after current rune)
	curr         rune // current rune under examination
	line         int
	column       int
	errors       []string
}

func New(input string) *Lexer {
	l := &Lexer{input: []rune(input), line: 1}
	l.readRune()
	return l
}

// Errors returns lexical errors found so far, in source order.
func (l *Lexer) Errors() []string {
	return l.errors
}

// Tokenize consumes the whole input and returns every token up to, not including, EOF.
func (l *Lexer) Tokenize() []token.Token {
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	line, col := l.line, l.column
	tok := l.scan()
	tok.Line, tok.Column = line, col
	if tok.Type == token.ILLEGAL {
		l.errors = append(l.errors, fmt.Sprintf("%d:%d: unexpected character %q", line, col, tok.Literal))
	}
	return tok
}

func (l *Lexer) scan() token.Token {
	var tok token.Token

	switch l.curr {
	case '=':
		tok = l.either('=', token.EQL, token.ASSIGN)
	case '!':
		tok = l.either('=', token.NEQ, token.NOT)
	case '<':
		tok = l.either('=', token.LEQ, token.LSS)
	case '>':
		tok = l.either('=', token.GEQ, token.GTR)
	case '+':
		tok = l.either('=', token.ADD_ASSIGN, token.ADD)
	case '-':
		tok = l.either('=', token.SUB_ASSIGN, token.SUB)
	case '*':
		tok = l.either('=', token.MUL_ASSIGN, token.MUL)
	case '/':
		tok = l.either('=', token.QUO_ASSIGN, token.QUO)
	case '%':
		tok = l.either('=', token.REM_ASSIGN, token.REM)
	case '&':
		tok = l.either('&', token.LAND, token.ILLEGAL)
	case '|':
		tok = l.either('|', token.LOR, token.ILLEGAL)
	case ',':
		tok = newToken(token.COMMA, l.curr)
	case ';':
		tok = newToken(token.SEMICOLON, l.curr)
	case '(':
		tok = newToken(token.LPAREN, l.curr)
	case ')':
		tok = newToken(token.RPAREN, l.curr)
	case '{':
		tok = newToken(token.LBRACE, l.curr)
	case '}':
		tok = newToken(token.RBRACE, l.curr)
	case '\'':
		return l.readChar()
	case 0:
		tok.Literal = ""
		tok.Type = token.EOF
		return tok
	default:
		if isLetter(l.curr) {
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(tok.Literal)
			return tok
		} else if isDigit(l.curr) {
			return l.readNumber()
		}
		tok = newToken(token.ILLEGAL, l.curr)
	}

	l.readRune()
	return tok
}

// either returns two-rune token double if the next rune is next, otherwise the
// one-rune token single.
func (l *Lexer) either(next rune, double, single token.TokenType) token.Token {
	if l.peekRune() == next {
		first := l.curr
		l.readRune()
		return token.Token{Type: double, Literal: string(first) + string(l.curr)}
	}
	return newToken(single, l.curr)
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.curr == ' ' || l.curr == '\t' || l.curr == '\n' || l.curr == '\r':
			l.readRune()
		case l.curr == '/' && l.peekRune() == '/':
			for l.curr != '\n' && l.curr != 0 {
				l.readRune()
			}
		case l.curr == '/' && l.peekRune() == '*':
			line, col := l.line, l.column
			l.readRune()
			l.readRune()
			for !(l.curr == '*' && l.peekRune() == '/') {
				if l.curr == 0 {
					l.errors = append(l.errors, fmt.Sprintf("%d:%d: unterminated block comment", line, col))
					return
				}
				l.readRune()
			}
			l.readRune()
			l.readRune()
		default:
			return
		}
	}
}

func (l *Lexer) readRune() {
	if l.curr == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.curr = 0
	} else {
		l.curr = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekRune() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.curr) || isDigit(l.curr) {
		l.readRune()
	}
	return string(l.input[position:l.position])
}

func (l *Lexer) readNumber() token.Token {
	position := l.position
	for isDigit(l.curr) {
		l.readRune()
	}
	if l.curr == '.' && isDigit(l.peekRune()) {
		l.readRune()
		for isDigit(l.curr) {
			l.readRune()
		}
		return token.Token{Type: token.FLOAT, Literal: string(l.input[position:l.position])}
	}
	return token.Token{Type: token.INT, Literal: string(l.input[position:l.position])}
}

// readChar reads a character literal such as 'a' or '\n'. The literal keeps its quotes.
func (l *Lexer) readChar() token.Token {
	position := l.position
	l.readRune() // opening quote
	if l.curr == '\\' {
		l.readRune()
	}
	if l.curr == 0 || l.curr == '\n' {
		return token.Token{Type: token.ILLEGAL, Literal: string(l.input[position:l.position])}
	}
	l.readRune()
	if l.curr != '\'' {
		return token.Token{Type: token.ILLEGAL, Literal: string(l.input[position:l.position])}
	}
	l.readRune()
	return token.Token{Type: token.CHAR, Literal: string(l.input[position:l.position])}
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func newToken(tokenType token.TokenType, curr rune) token.Token {
	return token.Token{Type: tokenType, Literal: string(curr)}
}
