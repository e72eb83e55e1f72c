package ast

import (
	"bytes"
	"strings"

	"github.com/thiremani/cstage/token"
)

// The base Node interface
type Node interface {
	Tok() token.Token
	String() string
}

// All statement nodes implement this
type Statement interface {
	Node
	statementNode()
}

// All expression nodes implement this
type Expression interface {
	Node
	expressionNode()
}

type Program struct {
	Functions []*Function
}

func (p *Program) Tok() token.Token {
	if len(p.Functions) > 0 {
		return p.Functions[0].Tok()
	}
	return token.Token{Type: token.EOF}
}

func (p *Program) String() string {
	var out bytes.Buffer

	for i, f := range p.Functions {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(f.String())
	}

	return out.String()
}

// Lookup returns the function with the given name, if any.
func (p *Program) Lookup(name string) (*Function, bool) {
	for _, f := range p.Functions {
		if f.Name.Value == name {
			return f, true
		}
	}
	return nil, false
}

type Param struct {
	Type token.Token
	Name *Identifier
}

func (p *Param) String() string {
	return p.Type.Literal + " " + p.Name.Value
}

type Function struct {
	Token  token.Token // the return type token
	Name   *Identifier
	Params []*Param
	Body   *BlockStatement
}

func (f *Function) Tok() token.Token { return f.Token }
func (f *Function) String() string {
	var out bytes.Buffer

	params := []string{}
	for _, p := range f.Params {
		params = append(params, p.String())
	}

	out.WriteString(f.Token.Literal + " " + f.Name.Value)
	out.WriteString("(")
	out.WriteString(strings.Join(params, ", "))
	out.WriteString(") ")
	out.WriteString(f.Body.String())

	return out.String()
}

// Statements
type DeclStatement struct {
	Token token.Token // the type token
	Name  *Identifier
	Value Expression // nil without initializer
}

func (ds *DeclStatement) statementNode()       {}
func (ds *DeclStatement) Tok() token.Token { return ds.Token }
func (ds *DeclStatement) String() string {
	var out bytes.Buffer

	out.WriteString(ds.Token.Literal + " " + ds.Name.Value)
	if ds.Value != nil {
		out.WriteString(" = ")
		out.WriteString(ds.Value.String())
	}
	out.WriteString(";")

	return out.String()
}

type AssignStatement struct {
	Token token.Token // = or a compound assignment
	Name  *Identifier
	Value Expression
}

func (as *AssignStatement) statementNode()       {}
func (as *AssignStatement) Tok() token.Token { return as.Token }
func (as *AssignStatement) String() string {
	return as.Name.Value + " " + as.Token.Literal + " " + as.Value.String() + ";"
}

type ReturnStatement struct {
	Token token.Token // the return token
	Value Expression  // nil for a bare return
}

func (rs *ReturnStatement) statementNode()       {}
func (rs *ReturnStatement) Tok() token.Token { return rs.Token }
func (rs *ReturnStatement) String() string {
	if rs.Value == nil {
		return "return;"
	}
	return "return " + rs.Value.String() + ";"
}

type ExpressionStatement struct {
	Token      token.Token // the first token of the expression
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) Tok() token.Token { return es.Token }
func (es *ExpressionStatement) String() string {
	return es.Expression.String() + ";"
}

type IfStatement struct {
	Token       token.Token // the if token
	Condition   Expression
	Consequence Statement
	Alternative Statement // nil without else
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) Tok() token.Token { return is.Token }
func (is *IfStatement) String() string {
	var out bytes.Buffer

	out.WriteString("if (")
	out.WriteString(is.Condition.String())
	out.WriteString(") ")
	out.WriteString(is.Consequence.String())
	if is.Alternative != nil {
		out.WriteString(" else ")
		out.WriteString(is.Alternative.String())
	}

	return out.String()
}

type WhileStatement struct {
	Token     token.Token // the while token
	Condition Expression
	Body      Statement
}

func (ws *WhileStatement) statementNode()       {}
func (ws *WhileStatement) Tok() token.Token { return ws.Token }
func (ws *WhileStatement) String() string {
	return "while (" + ws.Condition.String() + ") " + ws.Body.String()
}

type ForStatement struct {
	Token     token.Token // the for token
	Init      Statement   // may be nil
	Condition Expression  // may be nil, meaning true
	Post      Statement   // may be nil
	Body      Statement
}

func (fs *ForStatement) statementNode()       {}
func (fs *ForStatement) Tok() token.Token { return fs.Token }
func (fs *ForStatement) String() string {
	var out bytes.Buffer

	out.WriteString("for (")
	if fs.Init != nil {
		out.WriteString(fs.Init.String())
	} else {
		out.WriteString(";")
	}
	out.WriteString(" ")
	if fs.Condition != nil {
		out.WriteString(fs.Condition.String())
	}
	out.WriteString("; ")
	if fs.Post != nil {
		out.WriteString(strings.TrimSuffix(fs.Post.String(), ";"))
	}
	out.WriteString(") ")
	out.WriteString(fs.Body.String())

	return out.String()
}

type BlockStatement struct {
	Token      token.Token // the { token
	Statements []Statement
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) Tok() token.Token { return bs.Token }
func (bs *BlockStatement) String() string {
	var out bytes.Buffer

	out.WriteString("{ ")
	for _, s := range bs.Statements {
		out.WriteString(s.String())
		out.WriteString(" ")
	}
	out.WriteString("}")

	return out.String()
}

// Expressions
type Identifier struct {
	Token token.Token // the token.IDENT token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) Tok() token.Token { return i.Token }
func (i *Identifier) String() string       { return i.Value }

type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) Tok() token.Token { return il.Token }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }

type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) Tok() token.Token { return fl.Token }
func (fl *FloatLiteral) String() string       { return fl.Token.Literal }

type CharLiteral struct {
	Token token.Token
	Value rune
}

func (cl *CharLiteral) expressionNode()      {}
func (cl *CharLiteral) Tok() token.Token { return cl.Token }
func (cl *CharLiteral) String() string       { return cl.Token.Literal }

type PrefixExpression struct {
	Token    token.Token // The prefix token, e.g. !
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) Tok() token.Token { return pe.Token }
func (pe *PrefixExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(pe.Operator)
	out.WriteString(pe.Right.String())
	out.WriteString(")")

	return out.String()
}

type InfixExpression struct {
	Token    token.Token // The operator token, e.g. +
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) Tok() token.Token { return ie.Token }
func (ie *InfixExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(ie.Left.String())
	out.WriteString(" " + ie.Operator + " ")
	out.WriteString(ie.Right.String())
	out.WriteString(")")

	return out.String()
}

type CallExpression struct {
	Token     token.Token // The '(' token
	Function  *Identifier
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) Tok() token.Token { return ce.Token }
func (ce *CallExpression) String() string {
	var out bytes.Buffer

	args := []string{}
	for _, a := range ce.Arguments {
		args = append(args, a.String())
	}

	out.WriteString(ce.Function.String())
	out.WriteString("(")
	out.WriteString(strings.Join(args, ", "))
	out.WriteString(")")

	return out.String()
}
