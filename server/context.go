package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"tlog.app/go/errors"
)

const (
	contextPrefix = "req-"
	inputName     = "input.ll"
	outputName    = "output.s"
)

// WorkingContext is the private scratch space of one request.
type WorkingContext struct {
	Dir    string
	Input  string
	Output string
}

var contextSeq atomic.Uint64

// NewWorkingContext creates a fresh directory under root. The name joins a
// process-wide counter with a random suffix, so no two requests share it.
func NewWorkingContext(root string) (*WorkingContext, error) {
	pattern := fmt.Sprintf("%s%d-*", contextPrefix, contextSeq.Add(1))
	dir, err := os.MkdirTemp(root, pattern)
	if err != nil {
		return nil, errors.Wrap(err, "create working context")
	}
	return &WorkingContext{
		Dir:    dir,
		Input:  filepath.Join(dir, inputName),
		Output: filepath.Join(dir, outputName),
	}, nil
}

// Release removes the context and everything in it.
func (w *WorkingContext) Release() error {
	return os.RemoveAll(w.Dir)
}

// Scrub replaces the context's absolute paths in msg with their base names.
func (w *WorkingContext) Scrub(msg string) string {
	return strings.NewReplacer(
		w.Input, inputName,
		w.Output, outputName,
		w.Dir+string(filepath.Separator), "",
		w.Dir, ".",
	).Replace(msg)
}

func isContextDir(name string) bool {
	return strings.HasPrefix(name, contextPrefix)
}
