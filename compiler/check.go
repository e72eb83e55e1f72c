package compiler

import (
	"fmt"

	"github.com/thiremani/cstage/ast"
	"github.com/thiremani/cstage/token"
)

// Signature is the checked shape of a declared function.
type Signature struct {
	Name   string
	Ret    Type
	Params []Type
}

// Checker performs name and arity analysis over a parsed program.
type Checker struct {
	Funcs  map[string]*Signature
	Errors []string

	scopes []Scope[Type]
	ret    Type // return type of the function being checked
}

func NewChecker() *Checker {
	return &Checker{
		Funcs:  make(map[string]*Signature),
		Errors: []string{},
	}
}

// Check runs semantic analysis on program and returns the errors found.
func Check(program *ast.Program) []string {
	ch := NewChecker()
	ch.Check(program)
	return ch.Errors
}

func (ch *Checker) errorf(tok token.Token, format string, args ...any) {
	ch.Errors = append(ch.Errors, tok.Pos()+": "+fmt.Sprintf(format, args...))
}

func (ch *Checker) Check(program *ast.Program) {
	for _, fn := range program.Functions {
		if _, dup := ch.Funcs[fn.Name.Value]; dup {
			ch.errorf(fn.Name.Token, "function %q re-declared", fn.Name.Value)
			continue
		}
		sig := &Signature{Name: fn.Name.Value, Ret: TypeOf(fn.Token)}
		for _, p := range fn.Params {
			sig.Params = append(sig.Params, TypeOf(p.Type))
		}
		ch.Funcs[sig.Name] = sig
	}

	for _, fn := range program.Functions {
		ch.checkFunction(fn)
	}
}

func (ch *Checker) checkFunction(fn *ast.Function) {
	ch.ret = TypeOf(fn.Token)
	ch.scopes = []Scope[Type]{NewScope[Type](FuncScope)}

	params := make(map[string]Type, len(fn.Params))
	for _, p := range fn.Params {
		if _, dup := params[p.Name.Value]; dup {
			ch.errorf(p.Name.Token, "parameter %q re-declared", p.Name.Value)
			continue
		}
		params[p.Name.Value] = TypeOf(p.Type)
	}
	PutBulk(ch.scopes, params)

	// the body shares the parameter scope, as in C
	for _, stmt := range fn.Body.Statements {
		ch.checkStatement(stmt)
	}
}

func (ch *Checker) checkStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.BlockStatement:
		PushScope(&ch.scopes, BlockScope)
		for _, inner := range s.Statements {
			ch.checkStatement(inner)
		}
		PopScope(&ch.scopes)
	case *ast.DeclStatement:
		typ := TypeOf(s.Token)
		if typ.Kind() == VoidKind {
			ch.errorf(s.Token, "variable %q declared void", s.Name.Value)
		}
		// the initializer cannot see the variable it initializes
		if s.Value != nil {
			ch.checkValue(s.Value)
		}
		if Declared(ch.scopes, s.Name.Value) {
			ch.errorf(s.Name.Token, "variable %q re-declared", s.Name.Value)
			return
		}
		Put(ch.scopes, s.Name.Value, typ)
	case *ast.AssignStatement:
		if _, ok := Get(ch.scopes, s.Name.Value); !ok {
			ch.errorf(s.Name.Token, "assignment to undeclared variable %q", s.Name.Value)
		}
		ch.checkValue(s.Value)
	case *ast.ReturnStatement:
		switch {
		case s.Value == nil && ch.ret.Kind() != VoidKind:
			ch.errorf(s.Token, "missing return value in function returning %s", ch.ret)
		case s.Value != nil && ch.ret.Kind() == VoidKind:
			ch.errorf(s.Token, "void function cannot return a value")
		case s.Value != nil:
			ch.checkValue(s.Value)
		}
	case *ast.ExpressionStatement:
		ch.checkExpression(s.Expression)
	case *ast.IfStatement:
		ch.checkValue(s.Condition)
		ch.checkNested(s.Consequence)
		if s.Alternative != nil {
			ch.checkNested(s.Alternative)
		}
	case *ast.WhileStatement:
		ch.checkValue(s.Condition)
		ch.checkNested(s.Body)
	case *ast.ForStatement:
		PushScope(&ch.scopes, BlockScope)
		if s.Init != nil {
			ch.checkStatement(s.Init)
		}
		if s.Condition != nil {
			ch.checkValue(s.Condition)
		}
		if s.Post != nil {
			ch.checkStatement(s.Post)
		}
		ch.checkNested(s.Body)
		PopScope(&ch.scopes)
	}
}

// checkNested checks the body of a control statement in its own scope.
func (ch *Checker) checkNested(stmt ast.Statement) {
	PushScope(&ch.scopes, BlockScope)
	ch.checkStatement(stmt)
	PopScope(&ch.scopes)
}

// checkValue checks an expression whose value is used.
func (ch *Checker) checkValue(exp ast.Expression) {
	if t := ch.checkExpression(exp); t != nil && t.Kind() == VoidKind {
		ch.errorf(exp.Tok(), "void value %s used in expression", exp.String())
	}
}

// checkExpression returns the type of exp, or nil if it could not be determined.
func (ch *Checker) checkExpression(exp ast.Expression) Type {
	switch e := exp.(type) {
	case *ast.IntegerLiteral:
		return Int
	case *ast.CharLiteral:
		return Int
	case *ast.FloatLiteral:
		return Float
	case *ast.Identifier:
		t, ok := Get(ch.scopes, e.Value)
		if !ok {
			ch.errorf(e.Token, "undeclared variable %q", e.Value)
			return nil
		}
		return t
	case *ast.PrefixExpression:
		ch.checkValue(e.Right)
		return Int
	case *ast.InfixExpression:
		ch.checkValue(e.Left)
		ch.checkValue(e.Right)
		return Int
	case *ast.CallExpression:
		sig, ok := ch.Funcs[e.Function.Value]
		if !ok {
			ch.errorf(e.Function.Token, "function %q not defined", e.Function.Value)
			for _, arg := range e.Arguments {
				ch.checkValue(arg)
			}
			return nil
		}
		if len(e.Arguments) != len(sig.Params) {
			ch.errorf(e.Token, "function %q expects %d arguments, got %d", sig.Name, len(sig.Params), len(e.Arguments))
		}
		for _, arg := range e.Arguments {
			ch.checkValue(arg)
		}
		return sig.Ret
	}
	return nil
}
