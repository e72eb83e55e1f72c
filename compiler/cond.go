package compiler

import (
	"github.com/thiremani/cstage/ast"
	"github.com/thiremani/cstage/token"
	"tinygo.org/x/go-llvm"
)

// compileCondition lowers exp to an i1 that is true when exp is non-zero.
func (c *Compiler) compileCondition(exp ast.Expression) llvm.Value {
	val := c.compileExpression(exp)
	zero := llvm.ConstInt(val.Type(), 0, false)
	return c.builder.CreateICmp(llvm.IntNE, val, zero, "cond")
}

// branchTo jumps to bb unless the current block has already returned.
func (c *Compiler) branchTo(bb llvm.BasicBlock) {
	if !c.terminated() {
		c.builder.CreateBr(bb)
	}
}

func (c *Compiler) compileIf(s *ast.IfStatement) {
	fn := c.builder.GetInsertBlock().Parent()
	cond := c.compileCondition(s.Condition)

	thenBlock := c.Context.AddBasicBlock(fn, "if.then")
	var elseBlock llvm.BasicBlock
	if s.Alternative != nil {
		elseBlock = c.Context.AddBasicBlock(fn, "if.else")
	}
	contBlock := c.Context.AddBasicBlock(fn, "if.end")
	if s.Alternative == nil {
		elseBlock = contBlock
	}
	c.builder.CreateCondBr(cond, thenBlock, elseBlock)

	c.builder.SetInsertPointAtEnd(thenBlock)
	c.compileNested(s.Consequence)
	c.branchTo(contBlock)

	if s.Alternative != nil {
		c.builder.SetInsertPointAtEnd(elseBlock)
		c.compileNested(s.Alternative)
		c.branchTo(contBlock)
	}

	c.builder.SetInsertPointAtEnd(contBlock)
}

func (c *Compiler) compileWhile(s *ast.WhileStatement) {
	fn := c.builder.GetInsertBlock().Parent()
	condBlock := c.Context.AddBasicBlock(fn, "while.cond")
	bodyBlock := c.Context.AddBasicBlock(fn, "while.body")
	exitBlock := c.Context.AddBasicBlock(fn, "while.end")

	c.builder.CreateBr(condBlock)
	c.builder.SetInsertPointAtEnd(condBlock)
	c.builder.CreateCondBr(c.compileCondition(s.Condition), bodyBlock, exitBlock)

	c.builder.SetInsertPointAtEnd(bodyBlock)
	c.compileNested(s.Body)
	c.branchTo(condBlock)

	c.builder.SetInsertPointAtEnd(exitBlock)
}

func (c *Compiler) compileFor(s *ast.ForStatement) {
	PushScope(&c.Scopes, BlockScope)
	defer PopScope(&c.Scopes)

	if s.Init != nil {
		c.compileStatement(s.Init)
	}

	fn := c.builder.GetInsertBlock().Parent()
	condBlock := c.Context.AddBasicBlock(fn, "for.cond")
	bodyBlock := c.Context.AddBasicBlock(fn, "for.body")
	postBlock := c.Context.AddBasicBlock(fn, "for.post")
	exitBlock := c.Context.AddBasicBlock(fn, "for.end")

	c.builder.CreateBr(condBlock)
	c.builder.SetInsertPointAtEnd(condBlock)
	if s.Condition != nil {
		c.builder.CreateCondBr(c.compileCondition(s.Condition), bodyBlock, exitBlock)
	} else {
		c.builder.CreateBr(bodyBlock)
	}

	c.builder.SetInsertPointAtEnd(bodyBlock)
	c.compileNested(s.Body)
	c.branchTo(postBlock)

	c.builder.SetInsertPointAtEnd(postBlock)
	if s.Post != nil {
		c.compileStatement(s.Post)
	}
	c.builder.CreateBr(condBlock)

	c.builder.SetInsertPointAtEnd(exitBlock)
}

// compileLogical lowers && and || with short-circuit evaluation. The result is 0 or 1.
func (c *Compiler) compileLogical(e *ast.InfixExpression) llvm.Value {
	fn := c.builder.GetInsertBlock().Parent()
	i1 := c.Context.Int1Type()

	left := c.compileCondition(e.Left)
	leftBlock := c.builder.GetInsertBlock()

	rhsBlock := c.Context.AddBasicBlock(fn, "logic.rhs")
	endBlock := c.Context.AddBasicBlock(fn, "logic.end")

	// the value produced when the right side is skipped
	var shortCircuit llvm.Value
	if e.Token.Type == token.LAND {
		c.builder.CreateCondBr(left, rhsBlock, endBlock)
		shortCircuit = llvm.ConstInt(i1, 0, false)
	} else {
		c.builder.CreateCondBr(left, endBlock, rhsBlock)
		shortCircuit = llvm.ConstInt(i1, 1, false)
	}

	c.builder.SetInsertPointAtEnd(rhsBlock)
	right := c.compileCondition(e.Right)
	// the right side may itself have opened new blocks
	rhsEnd := c.builder.GetInsertBlock()
	c.builder.CreateBr(endBlock)

	c.builder.SetInsertPointAtEnd(endBlock)
	phi := c.builder.CreatePHI(i1, "logic_tmp")
	phi.AddIncoming([]llvm.Value{shortCircuit, right}, []llvm.BasicBlock{leftBlock, rhsEnd})
	return c.builder.CreateZExt(phi, c.Context.Int32Type(), "bool_tmp")
}
