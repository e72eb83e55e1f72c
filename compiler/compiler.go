package compiler

import (
	"fmt"
	"strings"

	"github.com/thiremani/cstage/ast"
	"github.com/thiremani/cstage/parser"
	"github.com/thiremani/cstage/token"
	"tinygo.org/x/go-llvm"
)

// ModuleName is the name given to every generated module.
const ModuleName = "cstage"

// Diagnostics is a list of positioned messages from a failed stage.
type Diagnostics []string

func (d Diagnostics) Error() string {
	return strings.Join(d, "\n")
}

type Compiler struct {
	Scopes  []Scope[*Symbol]
	Context llvm.Context
	Module  llvm.Module
	builder llvm.Builder
	allocas llvm.Builder // appends stack slots to the entry block
	Funcs   map[string]*Func
	Errors  []string
	current *Func
}

func NewCompiler(ctx llvm.Context, moduleName string) *Compiler {
	return &Compiler{
		Scopes:  []Scope[*Symbol]{NewScope[*Symbol](FuncScope)},
		Context: ctx,
		Module:  ctx.NewModule(moduleName),
		builder: ctx.NewBuilder(),
		allocas: ctx.NewBuilder(),
		Funcs:   make(map[string]*Func),
		Errors:  []string{},
	}
}

// Dispose releases the builders and the module. The context stays with the caller.
func (c *Compiler) Dispose() {
	c.builder.Dispose()
	c.allocas.Dispose()
	c.Module.Dispose()
}

func (c *Compiler) errorf(tok token.Token, format string, args ...any) {
	c.Errors = append(c.Errors, tok.Pos()+": "+fmt.Sprintf(format, args...))
}

// GenerateIR parses, checks and lowers source to textual LLVM IR.
func GenerateIR(source string) (string, error) {
	program, errs := parser.Parse(source)
	if len(errs) > 0 {
		return "", Diagnostics(errs)
	}

	ctx := llvm.NewContext()
	defer ctx.Dispose()

	c := NewCompiler(ctx, ModuleName)
	defer c.Dispose()

	if errs := c.Compile(program); len(errs) > 0 {
		return "", Diagnostics(errs)
	}
	return c.GenerateIR(), nil
}

// Compile checks program and lowers it into c.Module. It returns the
// diagnostics found; the module is only valid when none are returned.
func (c *Compiler) Compile(program *ast.Program) []string {
	ch := NewChecker()
	ch.Check(program)
	if len(ch.Errors) > 0 {
		c.Errors = append(c.Errors, ch.Errors...)
		return c.Errors
	}

	c.rejectFloats(program)
	if len(c.Errors) > 0 {
		return c.Errors
	}

	for _, fn := range program.Functions {
		c.declareFunction(fn, ch.Funcs[fn.Name.Value])
	}
	for _, fn := range program.Functions {
		c.compileFunction(fn)
	}

	if err := llvm.VerifyModule(c.Module, llvm.ReturnStatusAction); err != nil {
		c.Errors = append(c.Errors, "invalid IR generated: "+err.Error())
	}
	return c.Errors
}

func (c *Compiler) GenerateIR() string {
	return c.Module.String()
}

// rejectFloats reports every use of float, which lexes and parses but has no lowering.
func (c *Compiler) rejectFloats(program *ast.Program) {
	for _, fn := range program.Functions {
		if fn.Token.Type == token.FLOAT_KW {
			c.errorf(fn.Token, "float is not supported")
		}
		for _, p := range fn.Params {
			if p.Type.Type == token.FLOAT_KW {
				c.errorf(p.Type, "float is not supported")
			}
		}
		walkStatement(fn.Body, func(n ast.Node) {
			switch n := n.(type) {
			case *ast.DeclStatement:
				if n.Token.Type == token.FLOAT_KW {
					c.errorf(n.Token, "float is not supported")
				}
			case *ast.FloatLiteral:
				c.errorf(n.Token, "float is not supported")
			}
		})
	}
}

func (c *Compiler) compileStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.BlockStatement:
		PushScope(&c.Scopes, BlockScope)
		c.compileStatements(s.Statements)
		PopScope(&c.Scopes)
	case *ast.DeclStatement:
		typ := TypeOf(s.Token)
		var val llvm.Value
		if s.Value != nil {
			val = c.compileExpression(s.Value)
		}
		ptr := c.alloca(c.mapToLLVMType(typ), s.Name.Value)
		sym := &Symbol{Ptr: ptr, Type: typ}
		if s.Value != nil {
			c.store(sym, val)
		} else {
			c.builder.CreateStore(llvm.ConstNull(c.mapToLLVMType(typ)), ptr)
		}
		c.put(s.Name.Value, sym)
	case *ast.AssignStatement:
		sym, _ := c.get(s.Name.Value)
		val := c.compileExpression(s.Value)
		if op, ok := compoundOps[s.Token.Type]; ok {
			val = defaultOps[op](c, c.load(sym, s.Name.Value), val)
		}
		c.store(sym, val)
	case *ast.ReturnStatement:
		if s.Value == nil {
			c.builder.CreateRetVoid()
			return
		}
		val := c.convert(c.compileExpression(s.Value), c.current.Sig.Ret)
		c.builder.CreateRet(val)
	case *ast.ExpressionStatement:
		c.compileExpression(s.Expression)
	case *ast.IfStatement:
		c.compileIf(s)
	case *ast.WhileStatement:
		c.compileWhile(s)
	case *ast.ForStatement:
		c.compileFor(s)
	}
}

// compileStatements stops at the first terminator; the rest of the block is unreachable.
func (c *Compiler) compileStatements(stmts []ast.Statement) {
	for _, stmt := range stmts {
		if c.terminated() {
			return
		}
		c.compileStatement(stmt)
	}
}

// compileNested compiles the body of a control statement in its own scope.
func (c *Compiler) compileNested(stmt ast.Statement) {
	PushScope(&c.Scopes, BlockScope)
	c.compileStatement(stmt)
	PopScope(&c.Scopes)
}

// compileExpression returns the i32 value of exp. Calls to void functions
// return the zero llvm.Value.
func (c *Compiler) compileExpression(exp ast.Expression) llvm.Value {
	i32 := c.Context.Int32Type()

	switch e := exp.(type) {
	case *ast.IntegerLiteral:
		return llvm.ConstInt(i32, uint64(e.Value), true)
	case *ast.CharLiteral:
		return llvm.ConstInt(i32, uint64(e.Value), true)
	case *ast.Identifier:
		sym, _ := c.get(e.Value)
		return c.load(sym, e.Value)
	case *ast.PrefixExpression:
		right := c.compileExpression(e.Right)
		switch e.Token.Type {
		case token.SUB:
			return c.builder.CreateNeg(right, "neg_tmp")
		case token.NOT:
			zero := llvm.ConstInt(i32, 0, false)
			cmp := c.builder.CreateICmp(llvm.IntEQ, right, zero, "not_tmp")
			return c.builder.CreateZExt(cmp, i32, "bool_tmp")
		}
		panic("unsupported prefix operator " + e.Operator)
	case *ast.InfixExpression:
		if e.Token.Type == token.LAND || e.Token.Type == token.LOR {
			return c.compileLogical(e)
		}
		left := c.compileExpression(e.Left)
		right := c.compileExpression(e.Right)
		op, ok := defaultOps[e.Token.Type]
		if !ok {
			panic("unsupported infix operator " + e.Operator)
		}
		return op(c, left, right)
	case *ast.CallExpression:
		return c.compileCall(e)
	}
	panic(fmt.Sprintf("unsupported expression %T", exp))
}

// load reads sym and widens it to int.
func (c *Compiler) load(sym *Symbol, name string) llvm.Value {
	v := c.builder.CreateLoad(c.mapToLLVMType(sym.Type), sym.Ptr, name)
	return c.convert(v, Int)
}

// store narrows v to the symbol's type and writes it.
func (c *Compiler) store(sym *Symbol, v llvm.Value) {
	c.builder.CreateStore(c.convert(v, sym.Type), sym.Ptr)
}

// convert casts an int or char value to the representation of t.
func (c *Compiler) convert(v llvm.Value, t Type) llvm.Value {
	want := c.mapToLLVMType(t)
	have := v.Type()
	if have == want {
		return v
	}
	if have.IntTypeWidth() < want.IntTypeWidth() {
		return c.builder.CreateSExt(v, want, "sext_tmp")
	}
	return c.builder.CreateTrunc(v, want, "trunc_tmp")
}

// alloca reserves a stack slot in the entry block of the current function.
func (c *Compiler) alloca(t llvm.Type, name string) llvm.Value {
	return c.allocas.CreateAlloca(t, name)
}

// terminated reports whether the current block already ends in a terminator.
func (c *Compiler) terminated() bool {
	last := c.builder.GetInsertBlock().LastInstruction()
	if last.IsNil() {
		return false
	}
	switch last.InstructionOpcode() {
	case llvm.Ret, llvm.Br, llvm.Unreachable:
		return true
	}
	return false
}

// walkStatement visits every statement and expression under stmt.
func walkStatement(stmt ast.Statement, visit func(ast.Node)) {
	if stmt == nil {
		return
	}
	visit(stmt)
	switch s := stmt.(type) {
	case *ast.BlockStatement:
		for _, inner := range s.Statements {
			walkStatement(inner, visit)
		}
	case *ast.DeclStatement:
		walkExpression(s.Value, visit)
	case *ast.AssignStatement:
		walkExpression(s.Value, visit)
	case *ast.ReturnStatement:
		walkExpression(s.Value, visit)
	case *ast.ExpressionStatement:
		walkExpression(s.Expression, visit)
	case *ast.IfStatement:
		walkExpression(s.Condition, visit)
		walkStatement(s.Consequence, visit)
		walkStatement(s.Alternative, visit)
	case *ast.WhileStatement:
		walkExpression(s.Condition, visit)
		walkStatement(s.Body, visit)
	case *ast.ForStatement:
		walkStatement(s.Init, visit)
		walkExpression(s.Condition, visit)
		walkStatement(s.Post, visit)
		walkStatement(s.Body, visit)
	}
}

func walkExpression(exp ast.Expression, visit func(ast.Node)) {
	if exp == nil {
		return
	}
	visit(exp)
	switch e := exp.(type) {
	case *ast.PrefixExpression:
		walkExpression(e.Right, visit)
	case *ast.InfixExpression:
		walkExpression(e.Left, visit)
		walkExpression(e.Right, visit)
	case *ast.CallExpression:
		for _, arg := range e.Arguments {
			walkExpression(arg, visit)
		}
	}
}
