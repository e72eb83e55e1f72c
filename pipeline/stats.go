package pipeline

import (
	"fmt"

	"github.com/thiremani/cstage/compiler"
	"tlog.app/go/errors"
)

// IRStats summarizes the shape of an IR module.
type IRStats struct {
	Functions    int
	Blocks       int
	Instructions int
	Allocas      int
	Calls        int
	// LoopDepth is the deepest nesting of natural loops in any function.
	LoopDepth int
	// SelfCalls is the largest number of call sites a function has to itself.
	SelfCalls int
}

// Analyze parses ir and collects its statistics.
func Analyze(src string) (IRStats, error) {
	var st IRStats
	graphs, err := compiler.Graphs(src)
	if err != nil {
		return st, errors.Wrap(err, "parse IR")
	}

	for _, g := range graphs {
		st.Functions++
		st.Blocks += len(g.Succs)
		st.Instructions += g.Insts
		st.Allocas += g.Allocas
		st.Calls += g.Calls
		st.SelfCalls = max(st.SelfCalls, g.SelfCalls)
		st.LoopDepth = max(st.LoopDepth, loopDepth(g.Succs))
	}
	return st, nil
}

// loopDepth finds the natural loop of every back edge reachable from the
// entry block and returns how many loops the most nested block sits in.
// Back edges sharing a header form one loop.
func loopDepth(succs [][]int) int {
	n := len(succs)
	if n == 0 {
		return 0
	}
	preds := make([][]int, n)
	for b, ss := range succs {
		for _, s := range ss {
			preds[s] = append(preds[s], b)
		}
	}

	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, n)
	loops := map[int]map[int]bool{} // header -> body

	var visit func(b int)
	visit = func(b int) {
		state[b] = onStack
		for _, s := range succs[b] {
			switch state[s] {
			case unvisited:
				visit(s)
			case onStack:
				body := loops[s]
				if body == nil {
					body = map[int]bool{s: true}
					loops[s] = body
				}
				collect(body, preds, b)
			}
		}
		state[b] = done
	}
	visit(0)

	depth := 0
	for b := range n {
		d := 0
		for _, body := range loops {
			if body[b] {
				d++
			}
		}
		depth = max(depth, d)
	}
	return depth
}

// collect adds latch and every block reaching it backwards to body. The
// header is already in body, which stops the walk.
func collect(body map[int]bool, preds [][]int, latch int) {
	work := []int{latch}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		if body[b] {
			continue
		}
		body[b] = true
		work = append(work, preds[b]...)
	}
}

// TimeComplexity is a rough asymptotic label for the module.
func (s IRStats) TimeComplexity() string {
	switch {
	case s.SelfCalls > 1:
		return "O(2^n)"
	case s.LoopDepth > 1:
		return fmt.Sprintf("O(n^%d)", s.LoopDepth)
	case s.LoopDepth == 1 || s.SelfCalls == 1:
		return "O(n)"
	}
	return "O(1)"
}

// SpaceComplexity grows only with recursion; locals live in fixed stack slots.
func (s IRStats) SpaceComplexity() string {
	if s.SelfCalls > 0 {
		return "O(n)"
	}
	return "O(1)"
}
