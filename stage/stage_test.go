package stage

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"
)

// textLibrary mimics a front end that reports failures in-band or by panicking.
type textLibrary struct{}

func (textLibrary) Lex(source string) (string, error) {
	return "Error: bad token", nil
}

func (textLibrary) Parse(source string) (string, error) {
	return "• ROOT\n\n--- Semantic Errors ---\n❌ Undeclared variable: y\n", nil
}

func (textLibrary) GenerateIR(source string) (string, error) {
	panic("index out of range")
}

func (textLibrary) OptimizeIR(ir string) (string, error) {
	return "", errors.New("boom")
}

func TestGuardNormalizesFailures(t *testing.T) {
	lib := Guard(textLibrary{})

	tests := []struct {
		name    string
		call    func() (string, error)
		stage   Name
		message string
	}{
		{"error prefix", func() (string, error) { return lib.Lex("x") }, Lex, "bad token"},
		{"error heading", func() (string, error) { return lib.Parse("x") }, AST, "❌ Undeclared variable: y"},
		{"panic", func() (string, error) { return lib.GenerateIR("x") }, IR, "internal error: index out of range"},
		{"error value", func() (string, error) { return lib.OptimizeIR("x") }, Optimize, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.call()
			require.Empty(t, out)

			var se *Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.stage, se.Stage)
			assert.Equal(t, tt.message, se.Message)
		})
	}
}

func TestGuardIdempotent(t *testing.T) {
	g := Guard(&Native{})
	require.Equal(t, g, Guard(g))
}

func TestFromTextPassesThrough(t *testing.T) {
	out, err := FromText(IR, "; ModuleID = 'cstage'\n")
	require.NoError(t, err)
	require.Equal(t, "; ModuleID = 'cstage'\n", out)

	// an empty result is a success, not a failure
	out, err = FromText(Codegen, "")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestNativeLex(t *testing.T) {
	lib := &Native{}

	out, err := lib.Lex("int main() { return 'a'; }")
	require.NoError(t, err)
	expected := `TOKEN(KEYWORD, "int")
TOKEN(IDENTIFIER, "main")
TOKEN(SYMBOL, "(")
TOKEN(SYMBOL, ")")
TOKEN(SYMBOL, "{")
TOKEN(KEYWORD, "return")
TOKEN(CHAR, "'a'")
TOKEN(SYMBOL, ";")
TOKEN(SYMBOL, "}")
`
	require.Equal(t, expected, out)

	_, err = lib.Lex("int x = 1 @ 2;")
	var se *Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, Lex, se.Stage)
	require.Contains(t, se.Message, `1:11: unexpected character "@"`)
}

func TestNativeParse(t *testing.T) {
	lib := &Native{}

	out, err := lib.Parse("int main() { return 42; }")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "• ROOT\n"))
	require.True(t, strings.HasSuffix(out, SemanticsPassed+"\n"))

	_, err = lib.Parse("int main() { return y; }")
	require.ErrorContains(t, err, `undeclared variable "y"`)

	_, err = lib.Parse("int main() { return 1;")
	require.ErrorContains(t, err, "unbalanced braces")
}

func TestNativeIRAndOptimize(t *testing.T) {
	lib := Guard(&Native{})

	ir, err := lib.GenerateIR("int main() { int x = 40; return x + 2; }")
	require.NoError(t, err)
	require.Contains(t, ir, "define i32 @main()")

	opt, err := lib.OptimizeIR(ir)
	require.NoError(t, err)
	require.Contains(t, opt, "ret i32 42")

	_, err = lib.GenerateIR("int main() { return 1;")
	var se *Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, IR, se.Stage)

	_, err = lib.OptimizeIR("not ir")
	require.ErrorAs(t, err, &se)
	require.Equal(t, Optimize, se.Stage)
}

func TestNativeExecuteDisabled(t *testing.T) {
	_, err := (&Native{}).Execute(context.Background(), "define i32 @main() {\n  ret i32 0\n}\n")
	var se *Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, Execute, se.Stage)
}

func TestNativeConcurrentCalls(t *testing.T) {
	lib := Guard(&Native{})
	sources := []string{
		"int main() { return 1; }",
		"int main() { return 2; }",
		"int f(int a) { return a * 3; } int main() { return f(3); }",
		"int main() { int i = 0; while (i < 4) { i += 1; } return i; }",
	}

	want := make([]string, len(sources))
	for i, src := range sources {
		ir, err := lib.GenerateIR(src)
		require.NoError(t, err)
		want[i] = ir
	}

	var wg sync.WaitGroup
	got := make([]string, len(sources)*8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ir, err := lib.GenerateIR(sources[i%len(sources)])
			if err == nil {
				got[i] = ir
			}
		}(i)
	}
	wg.Wait()

	for i, ir := range got {
		require.Equal(t, want[i%len(sources)], ir)
	}
}
