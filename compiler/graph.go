package compiler

import (
	"strings"

	"tinygo.org/x/go-llvm"
)

// FuncGraph is the control flow of one defined function. Blocks are
// numbered in layout order, so block 0 is the entry.
type FuncGraph struct {
	Name  string
	Succs [][]int
	Insts int
	// Allocas and Calls count instructions of that kind.
	Allocas int
	Calls   int
	// SelfCalls counts direct calls to the function itself.
	SelfCalls int
}

// Graphs parses textual IR and returns the control flow graph of every
// function with a body.
func Graphs(ir string) ([]FuncGraph, error) {
	if strings.TrimSpace(ir) == "" {
		return nil, Diagnostics{"empty IR module"}
	}

	ctx := llvm.NewContext()
	defer ctx.Dispose()

	// ParseIR takes ownership of the buffer
	mod, err := ctx.ParseIR(llvm.NewMemoryBufferFromRangeCopy([]byte(ir)))
	if err != nil {
		return nil, Diagnostics{"invalid IR: " + err.Error()}
	}
	defer mod.Dispose()

	var graphs []FuncGraph
	for fn := mod.FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
		if fn.BasicBlocksCount() == 0 {
			continue // declaration
		}
		graphs = append(graphs, funcGraph(fn))
	}
	return graphs, nil
}

func funcGraph(fn llvm.Value) FuncGraph {
	blocks := fn.BasicBlocks()
	index := make(map[llvm.BasicBlock]int, len(blocks))
	for i, bb := range blocks {
		index[bb] = i
	}

	g := FuncGraph{Name: fn.Name(), Succs: make([][]int, len(blocks))}
	for i, bb := range blocks {
		for inst := bb.FirstInstruction(); !inst.IsNil(); inst = llvm.NextInstruction(inst) {
			g.Insts++
			switch inst.InstructionOpcode() {
			case llvm.Alloca:
				g.Allocas++
			case llvm.Call:
				g.Calls++
				if inst.CalledValue().C == fn.C {
					g.SelfCalls++
				}
			}
		}

		// the successors of a terminator are its block operands
		term := bb.LastInstruction()
		if term.IsNil() {
			continue
		}
		for op := 0; op < term.OperandsCount(); op++ {
			v := term.Operand(op)
			if !v.IsBasicBlock() {
				continue
			}
			if j, ok := index[v.AsBasicBlock()]; ok {
				g.Succs[i] = append(g.Succs[i], j)
			}
		}
	}
	return g
}
