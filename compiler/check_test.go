package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thiremani/cstage/parser"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected []string
	}{
		{
			name: "valid program",
			src: `int sq(int x) { return x * x; }
int main() { int y = sq(3); for (int i = 0; i < y; i += 1) { y -= 1; } return y; }`,
		},
		{
			name:     "redeclared function",
			src:      `int f() { return 1; } int f() { return 2; }`,
			expected: []string{`1:27: function "f" re-declared`},
		},
		{
			name:     "undefined function",
			src:      `int main() { return g(); }`,
			expected: []string{`1:21: function "g" not defined`},
		},
		{
			name:     "duplicate parameter",
			src:      `int f(int a, int a) { return a; }`,
			expected: []string{`1:18: parameter "a" re-declared`},
		},
		{
			name:     "redeclared variable",
			src:      `int main() { int x = 1; int x = 2; return x; }`,
			expected: []string{`1:29: variable "x" re-declared`},
		},
		{
			name:     "parameter shadowed in body",
			src:      `int f(int a) { int a = 1; return a; }`,
			expected: []string{`1:20: variable "a" re-declared`},
		},
		{
			name:     "assignment to undeclared",
			src:      `int main() { z = 1; return 0; }`,
			expected: []string{`1:14: assignment to undeclared variable "z"`},
		},
		{
			name:     "initializer sees outer scope only",
			src:      `int main() { int x = x; return x; }`,
			expected: []string{`1:22: undeclared variable "x"`},
		},
		{
			name:     "block scope ends",
			src:      `int main() { { int t = 1; } return t; }`,
			expected: []string{`1:36: undeclared variable "t"`},
		},
		{
			name:     "void variable",
			src:      `int main() { void v; return 0; }`,
			expected: []string{`1:14: variable "v" declared void`},
		},
		{
			name:     "void value used",
			src:      `void f() { } int main() { return f(); }`,
			expected: []string{`1:35: void value f() used in expression`},
		},
		{
			name:     "missing return value",
			src:      `int main() { return; }`,
			expected: []string{`1:14: missing return value in function returning int`},
		},
		{
			name:     "void returns value",
			src:      `void f() { return 1; }`,
			expected: []string{`1:12: void function cannot return a value`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, errs := parser.Parse(tt.src)
			require.Empty(t, errs)

			got := Check(program)
			if len(tt.expected) == 0 {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tt.expected, got)
		})
	}
}
