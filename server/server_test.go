package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/thiremani/cstage/codegen"
	"github.com/thiremani/cstage/runner"
)

// fakeLLC writes a shell script invoked as: llc <in> -o <out>.
func fakeLLC(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake llc needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "llc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

const echoLLC = `{ echo "; asm"; cat "$1"; } > "$3"`

func newService(t *testing.T, llc string) (*Service, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "work")
	svc, err := NewService(Options{
		WorkDir:    root,
		LLC:        llc,
		Timeout:    5 * time.Second,
		StaleAfter: time.Hour,
	})
	require.NoError(t, err)
	return svc, root
}

// requireNoContexts asserts every working context under root was released.
func requireNoContexts(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, isContextDir(e.Name()), "leaked working context %s", e.Name())
	}
}

func TestCompileSuccess(t *testing.T) {
	svc, root := newService(t, fakeLLC(t, echoLLC))

	asm, err := svc.Compile(context.Background(), "define i32 @main()")
	require.NoError(t, err)
	require.Equal(t, "; asm\ndefine i32 @main()", asm)
	requireNoContexts(t, root)
}

func TestCompileFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{
			name: "non-zero exit with partial output",
			body: `echo "partial" > "$3"; echo "llc: error: bad IR" 1>&2; exit 1`,
			msg:  "llc: error: bad IR",
		},
		{
			name: "stderr with zero exit",
			body: `cat "$1" > "$3"; echo "llc: $1:1:1: warning: odd" 1>&2`,
			msg:  "llc: input.ll:1:1: warning: odd",
		},
		{
			name: "silent non-zero exit",
			body: `exit 3`,
			msg:  "exit status 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, root := newService(t, fakeLLC(t, tt.body))

			_, err := svc.Compile(context.Background(), "ir")
			var d *Diagnostic
			require.ErrorAs(t, err, &d)
			require.Contains(t, d.Message, tt.msg)
			require.NotContains(t, d.Message, root)
			requireNoContexts(t, root)
		})
	}
}

func TestCompileTimeout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	svc, err := NewService(Options{WorkDir: root, LLC: fakeLLC(t, "exec sleep 5"), Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	_, err = svc.Compile(context.Background(), "ir")
	var d *Diagnostic
	require.ErrorAs(t, err, &d)
	require.Contains(t, d.Message, "timed out")
	requireNoContexts(t, root)
}

func TestCompileLaunchFailure(t *testing.T) {
	svc, root := newService(t, filepath.Join(t.TempDir(), "no-such-llc"))

	_, err := svc.Compile(context.Background(), "ir")
	var re *ResourceError
	require.ErrorAs(t, err, &re)
	requireNoContexts(t, root)
}

func TestCompileConcurrentIsolation(t *testing.T) {
	// the sleep widens the window in which requests overlap
	svc, root := newService(t, fakeLLC(t, `sleep 0.05; `+echoLLC))

	var g errgroup.Group
	results := make([]string, 16)
	for i := range results {
		g.Go(func() error {
			asm, err := svc.Compile(context.Background(), fmt.Sprintf("module %d", i))
			results[i] = asm
			return err
		})
	}
	require.NoError(t, g.Wait())

	for i, asm := range results {
		require.Equal(t, fmt.Sprintf("; asm\nmodule %d", i), asm)
	}
	requireNoContexts(t, root)
}

func TestWorkingContextUnique(t *testing.T) {
	root := t.TempDir()
	seen := map[string]bool{}
	for range 50 {
		wc, err := NewWorkingContext(root)
		require.NoError(t, err)
		require.False(t, seen[wc.Dir])
		seen[wc.Dir] = true
		require.Equal(t, filepath.Join(wc.Dir, "input.ll"), wc.Input)
	}
}

func TestWorkingContextScrub(t *testing.T) {
	wc, err := NewWorkingContext(t.TempDir())
	require.NoError(t, err)
	defer wc.Release()

	msg := fmt.Sprintf("llc: %s:3:1: error\nwrote %s in %s", wc.Input, wc.Output, wc.Dir)
	require.Equal(t, "llc: input.ll:3:1: error\nwrote output.s in .", wc.Scrub(msg))
}

func TestSweep(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "req-1-abc")
	fresh := filepath.Join(root, "req-2-def")
	other := filepath.Join(root, "keep")
	for _, dir := range []string{old, fresh, other} {
		require.NoError(t, os.Mkdir(dir, 0755))
	}
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	n, err := Sweep(root, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoDirExists(t, old)
	require.DirExists(t, fresh)
	require.DirExists(t, other)
}

func TestSweepSkipsWhenLocked(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "req-1-abc")
	require.NoError(t, os.Mkdir(old, 0755))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	held := flock.New(filepath.Join(root, ".lock"))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	n, err := Sweep(root, time.Hour)
	require.NoError(t, err)
	require.Zero(t, n)
	require.DirExists(t, old)
}

func postIR(t *testing.T, url, body string) (int, codegen.Response) {
	t.Helper()
	resp, err := http.Post(url+"/compile-ir", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var r codegen.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	return resp.StatusCode, r
}

func TestHandler(t *testing.T) {
	llc := fakeLLC(t, echoLLC)
	svc, root := newService(t, llc)
	ts := httptest.NewServer(NewHandler(svc, HandlerOptions{MaxBodyBytes: 1 << 10, AllowOrigin: "*"}))
	defer ts.Close()

	t.Run("success", func(t *testing.T) {
		status, r := postIR(t, ts.URL, `{"ir":"define i32 @main()"}`)
		require.Equal(t, http.StatusOK, status)
		require.NotNil(t, r.Asm)
		require.Equal(t, "; asm\ndefine i32 @main()", *r.Asm)
		require.Empty(t, r.Error)
	})

	t.Run("bad body", func(t *testing.T) {
		status, r := postIR(t, ts.URL, `{"ir":`)
		require.Equal(t, http.StatusBadRequest, status)
		require.Contains(t, r.Error, "invalid request body")
	})

	t.Run("empty ir", func(t *testing.T) {
		status, r := postIR(t, ts.URL, `{"ir":"  "}`)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "missing ir", r.Error)
	})

	t.Run("body too large", func(t *testing.T) {
		status, _ := postIR(t, ts.URL, `{"ir":"`+strings.Repeat("x", 2<<10)+`"}`)
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/compile-ir")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+"/compile-ir", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var h health
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
		assert.Equal(t, "ok", h.Status)
		assert.Equal(t, llc, h.LLC)
	})

	requireNoContexts(t, root)
}

func TestHandlerDiagnostic(t *testing.T) {
	svc, _ := newService(t, fakeLLC(t, `echo "llc: error: broken" 1>&2; exit 1`))
	ts := httptest.NewServer(NewHandler(svc, HandlerOptions{}))
	defer ts.Close()

	status, r := postIR(t, ts.URL, `{"ir":"bad"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Nil(t, r.Asm)
	require.Equal(t, "llc: error: broken", r.Error)
}

func TestHandlerHidesResourcePaths(t *testing.T) {
	svc, root := newService(t, fakeLLC(t, echoLLC))
	ts := httptest.NewServer(NewHandler(svc, HandlerOptions{}))
	defer ts.Close()

	// without a work root no working context can be created
	require.NoError(t, os.RemoveAll(root))

	status, r := postIR(t, ts.URL, `{"ir":"x"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "stage input failed", r.Error)
	require.NotContains(t, r.Error, root)
}

func TestServeShutdown(t *testing.T) {
	svc, _ := newService(t, fakeLLC(t, echoLLC))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- ListenAndServe(ctx, "127.0.0.1:0", NewHandler(svc, HandlerOptions{}), time.Second)
	}()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRealLLC(t *testing.T) {
	llc, err := runner.Lookup("llc")
	if err != nil {
		t.Skip("llc not on PATH")
	}
	svc, root := newService(t, llc)

	ir := "define i32 @main() {\n  ret i32 42\n}\n"
	first, err := svc.Compile(context.Background(), ir)
	require.NoError(t, err)
	require.Contains(t, first, "main")

	second, err := svc.Compile(context.Background(), ir)
	require.NoError(t, err)
	require.Equal(t, first, second)
	requireNoContexts(t, root)

	_, err = svc.Compile(context.Background(), "this is not IR")
	var d *Diagnostic
	require.ErrorAs(t, err, &d)
	require.NotContains(t, d.Message, root)
}
