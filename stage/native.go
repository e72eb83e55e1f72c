package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/thiremani/cstage/ast"
	"github.com/thiremani/cstage/compiler"
	"github.com/thiremani/cstage/lexer"
	"github.com/thiremani/cstage/parser"
	"github.com/thiremani/cstage/runner"
)

// SemanticsPassed ends an AST listing whose program checked cleanly.
const SemanticsPassed = "✅ Semantic analysis passed."

// Native is the in-process front end. Every call builds its own lexer,
// parser and LLVM context, so calls never share state.
type Native struct {
	// Passes is the optimization pipeline; empty means compiler.DefaultPasses.
	Passes string
	// Interpreter runs optimized IR; nil disables execution.
	Interpreter *runner.Interpreter
}

// Lex lists one token per line.
func (n *Native) Lex(source string) (string, error) {
	l := lexer.New(source)
	toks := l.Tokenize()
	if errs := l.Errors(); len(errs) > 0 {
		return "", &Error{Stage: Lex, Message: strings.Join(errs, "\n")}
	}

	var sb strings.Builder
	for _, tok := range toks {
		fmt.Fprintf(&sb, "TOKEN(%s, \"%s\")\n", tok.Kind(), tok.Literal)
	}
	return sb.String(), nil
}

// Parse renders the syntax tree and the outcome of semantic analysis.
func (n *Native) Parse(source string) (string, error) {
	program, errs := parser.Parse(source)
	if len(errs) > 0 {
		return "", &Error{Stage: AST, Message: strings.Join(errs, "\n")}
	}
	if errs := compiler.Check(program); len(errs) > 0 {
		return "", &Error{Stage: AST, Message: strings.Join(errs, "\n")}
	}
	return ast.Tree(program) + "\n" + SemanticsPassed + "\n", nil
}

func (n *Native) GenerateIR(source string) (string, error) {
	ir, err := compiler.GenerateIR(source)
	if err != nil {
		return "", &Error{Stage: IR, Message: err.Error()}
	}
	return ir, nil
}

func (n *Native) OptimizeIR(ir string) (string, error) {
	out, err := compiler.Optimize(ir, n.Passes)
	if err != nil {
		return "", &Error{Stage: Optimize, Message: err.Error()}
	}
	return out, nil
}

// Execute runs main from ir out of process and renders its exit status.
func (n *Native) Execute(ctx context.Context, ir string) (string, error) {
	if n.Interpreter == nil {
		return "", &Error{Stage: Execute, Message: "execution is disabled"}
	}
	code, err := n.Interpreter.Execute(ctx, ir)
	if err != nil {
		return "", &Error{Stage: Execute, Message: err.Error()}
	}
	return runner.Render(code), nil
}
