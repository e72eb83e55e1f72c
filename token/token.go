package token

import (
	"fmt"
	"strconv"
)

type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	literal_beg
	// Identifiers + literals
	IDENT // main, x, add
	INT   // 42
	FLOAT // 3.14
	CHAR  // 'a'
	literal_end

	operator_beg
	// Operators and delimiters
	ASSIGN // =
	NOT    // !

	ADD // +
	SUB // -
	MUL // *
	QUO // /
	REM // %

	LAND // &&
	LOR  // ||

	ADD_ASSIGN // +=
	SUB_ASSIGN // -=
	MUL_ASSIGN // *=
	QUO_ASSIGN // /=
	REM_ASSIGN // %=

	LPAREN    // (
	LBRACE    // {
	COMMA     // ,
	SEMICOLON // ;

	RPAREN // )
	RBRACE // }

	comparison_beg
	EQL // ==
	LSS // <
	GTR // >
	NEQ // !=
	LEQ // <=
	GEQ // >=
	comparison_end
	operator_end

	keyword_beg
	// Keywords
	INT_KW
	CHAR_KW
	FLOAT_KW
	VOID
	RETURN
	IF
	ELSE
	WHILE
	FOR
	keyword_end
)

var tokens = [...]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",

	IDENT: "IDENT",
	INT:   "INT",
	FLOAT: "FLOAT",
	CHAR:  "CHAR",

	ASSIGN: "=",
	NOT:    "!",

	ADD: "+",
	SUB: "-",
	MUL: "*",
	QUO: "/",
	REM: "%",

	LAND: "&&",
	LOR:  "||",

	ADD_ASSIGN: "+=",
	SUB_ASSIGN: "-=",
	MUL_ASSIGN: "*=",
	QUO_ASSIGN: "/=",
	REM_ASSIGN: "%=",

	LPAREN:    "(",
	LBRACE:    "{",
	COMMA:     ",",
	SEMICOLON: ";",

	RPAREN: ")",
	RBRACE: "}",

	EQL: "==",
	LSS: "<",
	GTR: ">",
	NEQ: "!=",
	LEQ: "<=",
	GEQ: ">=",

	INT_KW:   "int",
	CHAR_KW:  "char",
	FLOAT_KW: "float",
	VOID:     "void",
	RETURN:   "return",
	IF:       "if",
	ELSE:     "else",
	WHILE:    "while",
	FOR:      "for",
}

var keywords map[string]TokenType

func init() {
	keywords = make(map[string]TokenType, keyword_end-keyword_beg)
	for i := keyword_beg + 1; i < keyword_end; i++ {
		keywords[tokens[i]] = i
	}
}

// LookupIdent maps an identifier to its keyword token type, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

func (t Token) IsComparison() bool {
	return comparison_beg < t.Type && t.Type < comparison_end
}

func (t Token) IsKeyword() bool {
	return keyword_beg < t.Type && t.Type < keyword_end
}

// IsTypeName reports whether the token names a declarable type.
func (t Token) IsTypeName() bool {
	switch t.Type {
	case INT_KW, CHAR_KW, FLOAT_KW, VOID:
		return true
	}
	return false
}

// IsAssign reports whether the token is = or a compound assignment.
func (t Token) IsAssign() bool {
	switch t.Type {
	case ASSIGN, ADD_ASSIGN, SUB_ASSIGN, MUL_ASSIGN, QUO_ASSIGN, REM_ASSIGN:
		return true
	}
	return false
}

// Kind is the coarse category shown in token listings.
func (t Token) Kind() string {
	switch {
	case t.IsKeyword():
		return "KEYWORD"
	case t.Type == IDENT:
		return "IDENTIFIER"
	case t.Type == INT:
		return "INTEGER"
	case t.Type == FLOAT:
		return "FLOAT"
	case t.Type == CHAR:
		return "CHAR"
	case operator_beg < t.Type && t.Type < operator_end:
		return "SYMBOL"
	}
	return t.Type.String()
}

func (t Token) Pos() string {
	return fmt.Sprintf("%d:%d", t.Line, t.Column)
}

func (t Token) String() string {
	return t.Type.String()
}

func (tokenType TokenType) String() string {
	s := ""
	if 0 <= tokenType && tokenType < TokenType(len(tokens)) {
		s = tokens[tokenType]
	}

	if s == "" {
		s = "token(" + strconv.Itoa(int(tokenType)) + ")"
	}

	return s
}
