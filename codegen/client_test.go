package codegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileIRSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/compile-ir", r.URL.Path)

		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "define i32 @main()", req.IR)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"asm":"main:\r\n\\tmovl\\t$42, %eax\\n"}`))
	}))
	defer server.Close()

	c := New(server.URL + "/")
	asm, err := c.CompileIR(context.Background(), "define i32 @main()")
	require.NoError(t, err)
	require.Equal(t, "main:\n\tmovl\t$42, %eax\n", asm)
}

func TestCompileIRDiagnosticNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"llc: error: expected top-level entity"}`))
	}))
	defer server.Close()

	_, err := New(server.URL).CompileIR(context.Background(), "garbage")
	var de *DiagnosticError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "llc: error: expected top-level entity", de.Message)
	require.Equal(t, int32(1), calls.Load())
}

func TestCompileIRRetriesTransportFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"asm":"ok"}`))
	}))
	defer server.Close()

	asm, err := New(server.URL).CompileIR(context.Background(), "ir")
	require.NoError(t, err)
	require.Equal(t, "ok", asm)
	require.Equal(t, int32(2), calls.Load())
}

func TestCompileIRRetryIsBounded(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, WithRetries(5)).CompileIR(context.Background(), "ir")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusServiceUnavailable, te.Status)
	require.Equal(t, int32(1+MaxRetries), calls.Load())
}

func TestCompileIRNoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := New(server.URL, WithRetries(0)).CompileIR(context.Background(), "ir")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, int32(1), calls.Load())
}

func TestCompileIRTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := New(server.URL, WithTimeout(50*time.Millisecond)).CompileIR(context.Background(), "ir")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestCompileIRUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url, WithTimeout(time.Second)).CompileIR(context.Background(), "ir")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Zero(t, te.Status)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"a\r\nb\rc\n", "a\nb\nc\n"},
		{`\tmovl\t$1, %eax\n`, "\tmovl\t$1, %eax\n"},
		{`\\n`, "\\\n"},
		{"no escapes", "no escapes"},
		{"", ""},
	}

	for _, tt := range tests {
		got := Normalize(tt.in)
		require.Equal(t, tt.out, got)
		require.Equal(t, got, Normalize(got), "Normalize must be idempotent")
		require.NotContains(t, got, `\t`)
	}
}
