package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/thiremani/cstage/codegen"
	"github.com/thiremani/cstage/runner"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// HandlerOptions configures the HTTP surface of a Service.
type HandlerOptions struct {
	MaxBodyBytes int64
	AllowOrigin  string // empty disables CORS headers
}

type handler struct {
	svc  *Service
	opts HandlerOptions
}

// NewHandler serves POST /compile-ir and GET /healthz.
func NewHandler(svc *Service, opts HandlerOptions) http.Handler {
	h := &handler{svc: svc, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /compile-ir", h.compileIR)
	mux.HandleFunc("GET /healthz", h.healthz)
	return h.cors(mux)
}

func (h *handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.AllowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", h.opts.AllowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) compileIR(w http.ResponseWriter, r *http.Request) {
	span := tlog.Start("compile_ir", "remote", r.RemoteAddr)
	defer span.Finish()
	ctx := tlog.ContextWithSpan(r.Context(), span)

	if h.opts.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	}
	var req codegen.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.Printw("bad request", "err", err)
		writeJSON(w, http.StatusBadRequest, codegen.Response{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.IR) == "" {
		writeJSON(w, http.StatusBadRequest, codegen.Response{Error: "missing ir"})
		return
	}

	// the working context is released inside Compile, before anything is written
	asm, err := h.svc.Compile(ctx, req.IR)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, codegen.Response{Error: publicError(err)})
		return
	}
	writeJSON(w, http.StatusOK, codegen.Response{Asm: &asm})
}

// publicError is the message a client may see. Resource errors carry
// host paths, so only their operation is reported.
func publicError(err error) string {
	var re *ResourceError
	if errors.As(err, &re) {
		return re.Op + " failed"
	}
	return err.Error()
}

type health struct {
	Status string `json:"status"`
	LLC    string `json:"llc,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	path, err := runner.Lookup(h.svc.Tool())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, health{Status: "unavailable", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, health{Status: "ok", LLC: path})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		tlog.Printw("write response", "err", err)
	}
}

// ListenAndServe serves h on addr until ctx is cancelled, then drains
// in-flight requests for up to grace.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, grace time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "listen %s", addr)
	}
	return Serve(ctx, ln, h, grace)
}

func Serve(ctx context.Context, ln net.Listener, h http.Handler, grace time.Duration) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		tlog.Printw("listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
