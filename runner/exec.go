package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tlog.app/go/errors"
)

// ResultPrefix starts the line an execution renders.
const ResultPrefix = "Execution result: "

// Interpreter evaluates IR modules with lli.
type Interpreter struct {
	Tool    string
	Timeout time.Duration
}

// Execute runs main from ir and returns its exit status.
func (in *Interpreter) Execute(ctx context.Context, ir string) (int, error) {
	if strings.TrimSpace(ir) == "" {
		return 0, errors.New("empty IR module")
	}

	res, err := Run(ctx, Cmd{
		Tool:    in.Tool,
		Args:    []string{"-"},
		Stdin:   ir,
		Timeout: in.Timeout,
	})
	if err != nil {
		return 0, err
	}
	if res.Signaled {
		return 0, errors.New("program terminated: %s", res.State)
	}
	// programs have no way to write to stderr, so anything there is from lli
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return 0, errors.New("%s", msg)
	}
	return res.ExitCode, nil
}

// Render formats an exit status the way the pipeline displays it.
func Render(code int) string {
	return fmt.Sprintf("%s%d", ResultPrefix, code)
}
