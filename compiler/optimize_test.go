package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptimizeFoldsLocals(t *testing.T) {
	ir := mustGenerateIR(t, `int main() { int a = 2; int b = 3; return a * b + 1; }`)
	require.Contains(t, ir, "alloca")

	opt, err := Optimize(ir, "")
	require.NoError(t, err)
	require.NotContains(t, opt, "alloca")
	require.Contains(t, opt, "ret i32 7")
}

func TestOptimizeCustomPasses(t *testing.T) {
	ir := mustGenerateIR(t, `int main() { int a = 2; return a; }`)

	opt, err := Optimize(ir, "mem2reg")
	require.NoError(t, err)
	require.NotContains(t, opt, "alloca")
}

func TestOptimizeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		ir       string
		passes   string
		expected string
	}{
		{"empty", "  \n", "", "empty IR module"},
		{"garbage", "this is not IR", "", "invalid IR"},
		{"unknown pass", "define i32 @main() {\n  ret i32 0\n}\n", "no-such-pass", "optimization failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Optimize(tt.ir, tt.passes)
			require.ErrorContains(t, err, tt.expected)
		})
	}
}

func TestOptimizeDeterministic(t *testing.T) {
	ir := mustGenerateIR(t, `int f(int n) { int s = 0; for (int i = 0; i < n; i += 1) { s += i; } return s; }
int main() { return f(5); }`)

	first, err := Optimize(ir, DefaultPasses)
	require.NoError(t, err)
	second, err := Optimize(ir, DefaultPasses)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
