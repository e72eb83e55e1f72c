package compiler

import (
	"github.com/thiremani/cstage/ast"
	"tinygo.org/x/go-llvm"
)

// declareFunction adds fn's prototype to the module so calls may precede the definition.
func (c *Compiler) declareFunction(fn *ast.Function, sig *Signature) {
	params := make([]llvm.Type, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = c.mapToLLVMType(p)
	}
	fnType := llvm.FunctionType(c.mapToLLVMType(sig.Ret), params, false)
	f := llvm.AddFunction(c.Module, sig.Name, fnType)
	for i, p := range fn.Params {
		f.Param(i).SetName(p.Name.Value)
	}

	c.Funcs[sig.Name] = &Func{Sig: sig, Fn: f, FnType: fnType}
}

func (c *Compiler) compileFunction(fn *ast.Function) {
	f := c.Funcs[fn.Name.Value]
	c.current = f

	entry := c.Context.AddBasicBlock(f.Fn, "entry")
	body := c.Context.AddBasicBlock(f.Fn, "body")
	c.allocas.SetInsertPointAtEnd(entry)
	c.builder.SetInsertPointAtEnd(body)

	c.Scopes = []Scope[*Symbol]{NewScope[*Symbol](FuncScope)}
	for i, p := range fn.Params {
		typ := f.Sig.Params[i]
		ptr := c.alloca(c.mapToLLVMType(typ), p.Name.Value+".addr")
		c.allocas.CreateStore(f.Fn.Param(i), ptr)
		c.put(p.Name.Value, &Symbol{Ptr: ptr, Type: typ})
	}

	c.compileStatements(fn.Body.Statements)

	// falling off the end returns zero, or nothing from a void function
	if !c.terminated() {
		if f.Sig.Ret.Kind() == VoidKind {
			c.builder.CreateRetVoid()
		} else {
			c.builder.CreateRet(llvm.ConstNull(c.mapToLLVMType(f.Sig.Ret)))
		}
	}

	c.allocas.CreateBr(body)
	c.current = nil
}

// compileCall passes arguments converted to the callee's parameter types
// and widens the result to int.
func (c *Compiler) compileCall(ce *ast.CallExpression) llvm.Value {
	f := c.Funcs[ce.Function.Value]
	args := make([]llvm.Value, len(ce.Arguments))
	for i, arg := range ce.Arguments {
		args[i] = c.convert(c.compileExpression(arg), f.Sig.Params[i])
	}

	if f.Sig.Ret.Kind() == VoidKind {
		c.builder.CreateCall(f.FnType, f.Fn, args, "")
		return llvm.Value{}
	}
	ret := c.builder.CreateCall(f.FnType, f.Fn, args, "call_tmp")
	return c.convert(ret, Int)
}
