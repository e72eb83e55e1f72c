package compiler

import (
	"strings"

	"tinygo.org/x/go-llvm"
)

// DefaultPasses is the new pass manager pipeline used when none is configured.
const DefaultPasses = "default<O2>"

// Optimize parses textual IR, verifies it and runs passes over it. The
// result is the optimized module as text.
func Optimize(ir, passes string) (string, error) {
	if strings.TrimSpace(ir) == "" {
		return "", Diagnostics{"empty IR module"}
	}
	if passes == "" {
		passes = DefaultPasses
	}

	ctx := llvm.NewContext()
	defer ctx.Dispose()

	// ParseIR takes ownership of the buffer
	buf := llvm.NewMemoryBufferFromRangeCopy([]byte(ir))
	mod, err := ctx.ParseIR(buf)
	if err != nil {
		return "", Diagnostics{"invalid IR: " + err.Error()}
	}
	defer mod.Dispose()

	if err := llvm.VerifyModule(mod, llvm.ReturnStatusAction); err != nil {
		return "", Diagnostics{"invalid IR: " + err.Error()}
	}

	pbo := llvm.NewPassBuilderOptions()
	defer pbo.Dispose()
	if err := mod.RunPasses(passes, llvm.TargetMachine{}, pbo); err != nil {
		return "", Diagnostics{"optimization failed: " + err.Error()}
	}
	return mod.String(), nil
}
