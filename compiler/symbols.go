package compiler

import (
	"tinygo.org/x/go-llvm"
)

// Symbol is a local variable: its stack slot and declared type.
type Symbol struct {
	Ptr  llvm.Value
	Type Type
}

// Func is a declared function together with its LLVM signature.
type Func struct {
	Sig    *Signature
	Fn     llvm.Value
	FnType llvm.Type
}

func (c *Compiler) put(name string, s *Symbol) {
	Put(c.Scopes, name, s)
}

func (c *Compiler) get(name string) (*Symbol, bool) {
	return Get(c.Scopes, name)
}
