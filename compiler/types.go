package compiler

import (
	"github.com/thiremani/cstage/token"
	"tinygo.org/x/go-llvm"
)

type Kind int

const (
	UnresolvedKind Kind = iota
	IntKind
	CharKind
	VoidKind
	FloatKind
)

// Type is the interface for all source-level types.
type Type interface {
	String() string
	Kind() Kind
}

var (
	Int   Type = Basic{kind: IntKind, name: "int"}
	Char  Type = Basic{kind: CharKind, name: "char"}
	Void  Type = Basic{kind: VoidKind, name: "void"}
	Float Type = Basic{kind: FloatKind, name: "float"}
)

type Basic struct {
	kind Kind
	name string
}

func (b Basic) Kind() Kind     { return b.kind }
func (b Basic) String() string { return b.name }

// TypeOf maps a type keyword token to its Type.
func TypeOf(tok token.Token) Type {
	switch tok.Type {
	case token.INT_KW:
		return Int
	case token.CHAR_KW:
		return Char
	case token.VOID:
		return Void
	case token.FLOAT_KW:
		return Float
	}
	return nil
}

// IsInteger reports whether values of t take part in integer arithmetic.
func IsInteger(t Type) bool {
	return t.Kind() == IntKind || t.Kind() == CharKind
}

func (c *Compiler) mapToLLVMType(t Type) llvm.Type {
	switch t.Kind() {
	case IntKind:
		return c.Context.Int32Type()
	case CharKind:
		return c.Context.Int8Type()
	case VoidKind:
		return c.Context.VoidType()
	default:
		panic("unsupported type in mapToLLVMType: " + t.String())
	}
}
