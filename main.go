package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/thiremani/cstage/app"
	"github.com/thiremani/cstage/config"
	"github.com/thiremani/cstage/pipeline"
	"github.com/thiremani/cstage/server"
)

const shutdownGrace = 10 * time.Second

const usage = `usage: cstage <command> [-config file] [source.c]

commands:
  serve    run the compilation service
  lex      print the tokens of a program
  ast      print the syntax tree of a program
  ir       print the unoptimized IR
  opt      print the optimized IR
  run      compile through the service and execute
  config   print the effective configuration
  version  print version information

Source is read from stdin when no file is given.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "version", "-version", "--version":
		printVersion()
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file (default $"+config.EnvConfig+" or ./"+config.FileName+")")
	positional := parseArgs(fs, args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Printf("⚠️ Error loading config: %v\n", err)
		os.Exit(1)
	}

	injector := app.NewInjector(cfg)
	defer injector.Shutdown()

	switch cmd {
	case "serve":
		err = serve(injector, cfg)
	case "config":
		err = printConfig(cfg)
	case "lex", "ast", "ir", "opt", "run":
		err = runStage(injector, cmd, firstArg(positional))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Printf("⚠️ %v\n", err)
		injector.Shutdown()
		os.Exit(1)
	}
}

// parseArgs parses flags wherever they appear, so "run prog.c -config x.toml"
// honors -config, and returns the positional arguments in order.
func parseArgs(fs *flag.FlagSet, args []string) []string {
	var positional []string
	for {
		fs.Parse(args)
		if fs.NArg() == 0 {
			return positional
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func serve(i *do.Injector, cfg *config.Config) error {
	h, err := do.Invoke[http.Handler](i)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tlog.Printw("starting compilation service", "addr", cfg.Server.Addr, "llc", cfg.Server.LLC, "work_dir", cfg.Server.WorkDir)
	return server.ListenAndServe(ctx, cfg.Server.Addr, h, shutdownGrace)
}

func printConfig(cfg *config.Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func readSource(path string) (string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.Wrap(err, "read source")
	}
	return string(data), nil
}

// runStage prints one pipeline operation with its telemetry. A failed
// run is reported through the exit status, not as an error.
func runStage(i *do.Injector, cmd, path string) error {
	source, err := readSource(path)
	if err != nil {
		return err
	}
	c, err := do.Invoke[*pipeline.Coordinator](i)
	if err != nil {
		return err
	}

	var r *pipeline.Run
	switch cmd {
	case "lex":
		r = c.Lex(source)
	case "ast":
		r = c.Parse(source)
	case "ir":
		r = c.IR(source)
	case "opt":
		r = c.OptimizedIR(source)
	case "run":
		span := tlog.Start("run", "source", path)
		r = c.CompileAndRun(tlog.ContextWithSpan(context.Background(), span), source)
		span.Finish()
	}

	fmt.Println(r.Output())
	fmt.Println()
	for _, line := range r.Telemetry.Lines() {
		fmt.Println(line)
	}
	if !r.Success {
		i.Shutdown()
		os.Exit(1)
	}
	return nil
}
