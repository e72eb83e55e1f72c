package compiler

import (
	"github.com/thiremani/cstage/token"
	"tinygo.org/x/go-llvm"
)

// opFunc builds the i32 result of a binary operator on two i32 operands.
type opFunc func(c *Compiler, left, right llvm.Value) llvm.Value

// defaultOps maps arithmetic and comparison operators to their builders.
// Logical operators short-circuit and are handled in cond.go.
var defaultOps = map[token.TokenType]opFunc{
	// --- Arithmetic Operators ---
	token.ADD: func(c *Compiler, left, right llvm.Value) llvm.Value {
		return c.builder.CreateAdd(left, right, "add_tmp")
	},
	token.SUB: func(c *Compiler, left, right llvm.Value) llvm.Value {
		return c.builder.CreateSub(left, right, "sub_tmp")
	},
	token.MUL: func(c *Compiler, left, right llvm.Value) llvm.Value {
		return c.builder.CreateMul(left, right, "mul_tmp")
	},
	// C integer division truncates toward zero, which is what sdiv/srem do.
	token.QUO: func(c *Compiler, left, right llvm.Value) llvm.Value {
		return c.builder.CreateSDiv(left, right, "div_tmp")
	},
	token.REM: func(c *Compiler, left, right llvm.Value) llvm.Value {
		return c.builder.CreateSRem(left, right, "rem_tmp")
	},

	// --- Comparison Operators ---
	token.EQL: compareWith(llvm.IntEQ),
	token.NEQ: compareWith(llvm.IntNE),
	token.LSS: compareWith(llvm.IntSLT),
	token.LEQ: compareWith(llvm.IntSLE),
	token.GTR: compareWith(llvm.IntSGT),
	token.GEQ: compareWith(llvm.IntSGE),
}

// compareWith returns an opFunc that compares and widens the i1 result to int.
func compareWith(pred llvm.IntPredicate) opFunc {
	return func(c *Compiler, left, right llvm.Value) llvm.Value {
		cmp := c.builder.CreateICmp(pred, left, right, "cmp_tmp")
		return c.builder.CreateZExt(cmp, c.Context.Int32Type(), "bool_tmp")
	}
}

// compoundOps maps compound assignments to the operator they apply.
var compoundOps = map[token.TokenType]token.TokenType{
	token.ADD_ASSIGN: token.ADD,
	token.SUB_ASSIGN: token.SUB,
	token.MUL_ASSIGN: token.MUL,
	token.QUO_ASSIGN: token.QUO,
	token.REM_ASSIGN: token.REM,
}
