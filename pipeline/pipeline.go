// Package pipeline sequences the compilation stages and records what each produced.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/thiremani/cstage/codegen"
	"github.com/thiremani/cstage/stage"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Request is one immutable piece of source to compile.
type Request struct {
	ID     string
	Source string
}

var requestSeq atomic.Uint64

func NewRequest(source string) Request {
	return Request{ID: fmt.Sprintf("run-%d", requestSeq.Add(1)), Source: source}
}

// FailureKind classifies why a run failed.
type FailureKind string

const (
	NoFailure         FailureKind = ""
	StageFailure      FailureKind = "stage"
	TransportFailure  FailureKind = "transport"
	CodegenDiagnostic FailureKind = "codegen"
)

// StageResult is the outcome of one stage. Err is nil exactly when the stage
// succeeded, so an empty Output is still distinguishable from a failure.
type StageResult struct {
	Stage   stage.Name
	Output  string
	Err     error
	Elapsed time.Duration
}

func (r StageResult) OK() bool { return r.Err == nil }

// Run is everything one coordinator call produced.
type Run struct {
	Request Request
	// Operation is the display label, e.g. "Code Execution".
	Operation string
	Stages    []StageResult
	Elapsed   time.Duration
	Success   bool
	Failure   FailureKind
	Err       error
	// Assembly is set once codegen succeeded.
	Assembly string
	// Execution is the "Execution result: N" line, when execution ran.
	Execution string
	Telemetry Telemetry

	display string
}

// Stage returns the result of the named stage, if it ran.
func (r *Run) Stage(name stage.Name) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Output is what a user sees: the artifact on success, the error otherwise.
func (r *Run) Output() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return r.display
}

// Codegen lowers optimized IR to assembly.
type Codegen interface {
	CompileIR(ctx context.Context, ir string) (string, error)
}

// Coordinator runs stages in a fixed order. It holds no mutable state, so one
// Coordinator may serve concurrent runs.
type Coordinator struct {
	lib     stage.Library
	codegen Codegen
	exec    stage.Executor
	now     func() time.Time
}

type Option func(*Coordinator)

// WithExecutor runs the optimized IR after a successful codegen.
func WithExecutor(e stage.Executor) Option {
	return func(c *Coordinator) {
		c.exec = e
	}
}

// WithClock replaces time.Now. The clock must be monotonic for elapsed times to hold.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func New(lib stage.Library, cg Codegen, opts ...Option) *Coordinator {
	c := &Coordinator{
		lib:     stage.Guard(lib),
		codegen: cg,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// run collects stage results and timing for one call.
type run struct {
	c     *Coordinator
	r     *Run
	start time.Time
}

func (c *Coordinator) begin(op, source string) *run {
	return &run{
		c:     c,
		r:     &Run{Request: NewRequest(source), Operation: op},
		start: c.now(),
	}
}

// step times fn and records its result.
func (rn *run) step(name stage.Name, fn func() (string, error)) StageResult {
	start := rn.c.now()
	out, err := fn()
	res := StageResult{Stage: name, Output: out, Err: err, Elapsed: rn.c.now().Sub(start)}
	rn.r.Stages = append(rn.r.Stages, res)
	return res
}

// finish settles success and telemetry. Failure must already be set when err is non-nil.
func (rn *run) finish(display string, err error) *Run {
	r := rn.r
	r.Elapsed = rn.c.now().Sub(rn.start)
	r.Err = err
	r.Success = err == nil
	if r.Success {
		r.Failure = NoFailure
		r.display = display
	}
	r.Telemetry = newTelemetry(r)
	return r
}

func (rn *run) fail(kind FailureKind, err error) *Run {
	rn.r.Failure = kind
	return rn.finish("", err)
}

// Lex lists the tokens of source.
func (c *Coordinator) Lex(source string) *Run {
	rn := c.begin("Token Generation", source)
	res := rn.step(stage.Lex, func() (string, error) { return c.lib.Lex(source) })
	if !res.OK() {
		return rn.fail(StageFailure, res.Err)
	}
	return rn.finish(res.Output, nil)
}

// Parse renders the syntax tree of source.
func (c *Coordinator) Parse(source string) *Run {
	rn := c.begin("AST Generation", source)
	res := rn.step(stage.AST, func() (string, error) { return c.lib.Parse(source) })
	if !res.OK() {
		return rn.fail(StageFailure, res.Err)
	}
	return rn.finish(res.Output, nil)
}

// IR generates unoptimized IR.
func (c *Coordinator) IR(source string) *Run {
	rn := c.begin("IR Generation", source)
	res := rn.step(stage.IR, func() (string, error) { return c.lib.GenerateIR(source) })
	if !res.OK() {
		return rn.fail(StageFailure, res.Err)
	}
	return rn.finish("LLVM IR:\n"+res.Output, nil)
}

// OptimizedIR generates IR from source and optimizes it.
func (c *Coordinator) OptimizedIR(source string) *Run {
	rn := c.begin("Optimized IR Generation", source)
	opt, ok := rn.frontEnd(source)
	if !ok {
		return rn.r
	}
	return rn.finish(opt.Output, nil)
}

// frontEnd runs GenerateIR then OptimizeIR. On failure the run is finished.
func (rn *run) frontEnd(source string) (StageResult, bool) {
	lib := rn.c.lib
	ir := rn.step(stage.IR, func() (string, error) { return lib.GenerateIR(source) })
	if !ir.OK() {
		rn.fail(StageFailure, ir.Err)
		return ir, false
	}
	opt := rn.step(stage.Optimize, func() (string, error) { return lib.OptimizeIR(ir.Output) })
	if !opt.OK() {
		rn.fail(StageFailure, opt.Err)
		return opt, false
	}
	return opt, true
}

// CompileAndRun takes source through IR, optimization, codegen and, when an
// executor is configured, execution. Every call starts again from source.
func (c *Coordinator) CompileAndRun(ctx context.Context, source string) *Run {
	rn := c.begin("Code Execution", source)
	span := tlog.SpanFromContext(ctx)

	opt, ok := rn.frontEnd(source)
	if !ok {
		span.Printw("front end failed", "req", rn.r.Request.ID, "err", rn.r.Err)
		return rn.r
	}

	cg := rn.step(stage.Codegen, func() (string, error) { return c.codegen.CompileIR(ctx, opt.Output) })
	if !cg.OK() {
		var de *codegen.DiagnosticError
		if errors.As(cg.Err, &de) {
			return rn.fail(CodegenDiagnostic, &stage.Error{Stage: stage.Codegen, Message: de.Message})
		}
		return rn.fail(TransportFailure, cg.Err)
	}
	rn.r.Assembly = cg.Output

	display := cg.Output
	if c.exec != nil {
		ex := rn.step(stage.Execute, func() (string, error) { return c.exec.Execute(ctx, opt.Output) })
		if !ex.OK() {
			return rn.fail(StageFailure, ex.Err)
		}
		rn.r.Execution = ex.Output
		display = strings.TrimRight(display, "\n") + "\n\n" + ex.Output
	}

	span.Printw("compiled", "req", rn.r.Request.ID, "stages", len(rn.r.Stages), "elapsed", c.now().Sub(rn.start))
	return rn.finish(display, nil)
}
