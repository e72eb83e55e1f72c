// Package stage exposes the compiler front end as uniform text-to-text operations.
package stage

import (
	"context"
	"fmt"
	"strings"

	"tlog.app/go/errors"
)

// Name identifies a pipeline stage.
type Name string

const (
	Lex      Name = "lex"
	AST      Name = "ast"
	IR       Name = "ir"
	Optimize Name = "optimize"
	Codegen  Name = "codegen"
	Execute  Name = "execute"
)

// Error is a failure reported by one stage. Message is the raw diagnostic.
type Error struct {
	Stage   Name
	Message string
}

func (e *Error) Error() string {
	return string(e.Stage) + ": " + e.Message
}

// Library is the front end: four synchronous text transformations.
type Library interface {
	Lex(source string) (string, error)
	Parse(source string) (string, error)
	GenerateIR(source string) (string, error)
	OptimizeIR(ir string) (string, error)
}

// Executor evaluates optimized IR and renders the outcome.
type Executor interface {
	Execute(ctx context.Context, ir string) (string, error)
}

// Front ends built around string results report failures in-band: either
// the whole output starts with an error prefix, or a heading introduces a
// list of errors after a partial listing.
var (
	errorPrefixes = []string{"Error:", "Execution error:"}
	errorHeadings = []string{"--- Semantic Errors ---", "Semantic Errors:"}
)

// FromText turns an error-shaped output into an *Error and passes any
// other output through unchanged.
func FromText(name Name, out string) (string, error) {
	trimmed := strings.TrimSpace(out)
	for _, p := range errorPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return "", &Error{Stage: name, Message: strings.TrimSpace(trimmed[len(p):])}
		}
	}
	for _, h := range errorHeadings {
		if strings.HasPrefix(trimmed, h) {
			return "", &Error{Stage: name, Message: strings.TrimSpace(trimmed[len(h):])}
		}
		if i := strings.Index(trimmed, "\n"+h); i >= 0 {
			return "", &Error{Stage: name, Message: strings.TrimSpace(trimmed[i+1+len(h):])}
		}
	}
	return out, nil
}

// call runs fn and normalizes any failure into an *Error for name.
func call(name Name, fn func() (string, error)) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", &Error{Stage: name, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	out, err = fn()
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return "", se
		}
		return "", &Error{Stage: name, Message: err.Error()}
	}
	return FromText(name, out)
}

// Guard wraps lib so that every failure, including panics and
// error-shaped output, surfaces as an *Error.
func Guard(lib Library) Library {
	if g, ok := lib.(guarded); ok {
		return g
	}
	return guarded{lib: lib}
}

type guarded struct {
	lib Library
}

func (g guarded) Lex(source string) (string, error) {
	return call(Lex, func() (string, error) { return g.lib.Lex(source) })
}

func (g guarded) Parse(source string) (string, error) {
	return call(AST, func() (string, error) { return g.lib.Parse(source) })
}

func (g guarded) GenerateIR(source string) (string, error) {
	return call(IR, func() (string, error) { return g.lib.GenerateIR(source) })
}

func (g guarded) OptimizeIR(ir string) (string, error) {
	return call(Optimize, func() (string, error) { return g.lib.OptimizeIR(ir) })
}
