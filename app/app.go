// Package app wires the pipeline, the codegen client and the service from a Config.
package app

import (
	"net/http"

	"github.com/samber/do"

	"github.com/thiremani/cstage/codegen"
	"github.com/thiremani/cstage/config"
	"github.com/thiremani/cstage/pipeline"
	"github.com/thiremani/cstage/runner"
	"github.com/thiremani/cstage/server"
	"github.com/thiremani/cstage/stage"
)

// NewInjector registers every component lazily; nothing starts until invoked.
func NewInjector(cfg *config.Config) *do.Injector {
	i := do.New()
	do.ProvideValue(i, cfg)
	do.Provide(i, newNative)
	do.Provide(i, newClient)
	do.Provide(i, newCoordinator)
	do.Provide(i, newService)
	do.Provide(i, newHandler)
	return i
}

func newNative(i *do.Injector) (*stage.Native, error) {
	cfg := do.MustInvoke[*config.Config](i)
	n := &stage.Native{Passes: cfg.Frontend.Passes}
	if cfg.Exec.Enabled {
		n.Interpreter = &runner.Interpreter{Tool: cfg.Exec.LLI, Timeout: cfg.Exec.Timeout.Duration}
	}
	return n, nil
}

func newClient(i *do.Injector) (*codegen.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return codegen.New(cfg.Client.URL,
		codegen.WithTimeout(cfg.Client.Timeout.Duration),
		codegen.WithRetries(cfg.Client.Retries),
	), nil
}

func newCoordinator(i *do.Injector) (*pipeline.Coordinator, error) {
	native, err := do.Invoke[*stage.Native](i)
	if err != nil {
		return nil, err
	}
	client, err := do.Invoke[*codegen.Client](i)
	if err != nil {
		return nil, err
	}

	var opts []pipeline.Option
	if native.Interpreter != nil {
		opts = append(opts, pipeline.WithExecutor(native))
	}
	return pipeline.New(native, client, opts...), nil
}

func newService(i *do.Injector) (*server.Service, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return server.NewService(server.Options{
		WorkDir:    cfg.Server.WorkDir,
		LLC:        cfg.Server.LLC,
		LLCArgs:    cfg.Server.LLCArgs,
		Timeout:    cfg.Server.Timeout.Duration,
		StaleAfter: cfg.Server.StaleAfter.Duration,
	})
}

func newHandler(i *do.Injector) (http.Handler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	svc, err := do.Invoke[*server.Service](i)
	if err != nil {
		return nil, err
	}
	return server.NewHandler(svc, server.HandlerOptions{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		AllowOrigin:  cfg.Server.AllowOrigin,
	}), nil
}
