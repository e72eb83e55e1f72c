// Package server is the compilation service: it lowers IR to assembly with llc.
package server

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/thiremani/cstage/runner"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// State is a step in the life of one request.
type State string

const (
	Received        State = "received"
	StagingInput    State = "staging_input"
	InvokingCodegen State = "invoking_codegen"
	ReadingOutput   State = "reading_output"
	Responded       State = "responded"
	Failed          State = "failed"
)

// Diagnostic is a failure reported by the code generator, paths scrubbed.
type Diagnostic struct {
	Message string
}

func (d *Diagnostic) Error() string {
	return d.Message
}

// ResourceError is a failure to stage or collect a request's files or to launch llc.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ResourceError) Unwrap() error { return e.Err }

type Options struct {
	WorkDir    string
	LLC        string
	LLCArgs    []string
	Timeout    time.Duration
	StaleAfter time.Duration
}

// Service runs llc for each request in its own WorkingContext. It keeps no
// per-request state, so concurrent calls need no locking.
type Service struct {
	opts Options
}

// NewService prepares the work root and clears contexts left by earlier runs.
func NewService(opts Options) (*Service, error) {
	if err := os.MkdirAll(opts.WorkDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create work dir")
	}
	if opts.StaleAfter > 0 {
		n, err := Sweep(opts.WorkDir, opts.StaleAfter)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			tlog.Printw("removed stale working contexts", "count", n, "root", opts.WorkDir)
		}
	}
	return &Service{opts: opts}, nil
}

// Tool is the configured code generator command.
func (s *Service) Tool() string {
	return s.opts.LLC
}

// request tracks the state of one Compile call for logging.
type request struct {
	span  tlog.Span
	state State
	start time.Time
}

func (r *request) to(st State) {
	r.state = st
	r.span.Printw("state", "state", st, "elapsed", time.Since(r.start))
}

func (r *request) fail(err error) error {
	r.span.Printw("state", "state", Failed, "from", r.state, "err", err)
	r.state = Failed
	return err
}

// Compile lowers ir to assembly. Failures are *Diagnostic or *ResourceError.
// The WorkingContext is gone by the time Compile returns.
func (s *Service) Compile(ctx context.Context, ir string) (string, error) {
	r := &request{span: tlog.SpanFromContext(ctx), state: Received, start: time.Now()}

	r.to(StagingInput)
	wc, err := NewWorkingContext(s.opts.WorkDir)
	if err != nil {
		return "", r.fail(&ResourceError{Op: "stage input", Err: err})
	}
	defer func() {
		if err := wc.Release(); err != nil {
			r.span.Printw("release working context", "dir", wc.Dir, "err", err)
		}
	}()

	if err := os.WriteFile(wc.Input, []byte(ir), 0600); err != nil {
		return "", r.fail(&ResourceError{Op: "stage input", Err: err})
	}

	r.to(InvokingCodegen)
	args := append(append([]string{}, s.opts.LLCArgs...), wc.Input, "-o", wc.Output)
	res, err := runner.Run(ctx, runner.Cmd{
		Tool:    s.opts.LLC,
		Args:    args,
		Dir:     wc.Dir,
		Timeout: s.opts.Timeout,
	})
	var te *runner.TimeoutError
	switch {
	case errors.As(err, &te):
		return "", r.fail(&Diagnostic{Message: te.Error()})
	case err != nil:
		return "", r.fail(&ResourceError{Op: "launch code generator", Err: err})
	}

	// any stderr output counts as failure, even with a zero exit status
	if res.Failed() || strings.TrimSpace(res.Stderr) != "" {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = s.opts.LLC + ": " + res.State
		}
		return "", r.fail(&Diagnostic{Message: wc.Scrub(msg)})
	}

	r.to(ReadingOutput)
	asm, err := os.ReadFile(wc.Output)
	if err != nil {
		return "", r.fail(&ResourceError{Op: "read output", Err: err})
	}

	r.to(Responded)
	return string(asm), nil
}
