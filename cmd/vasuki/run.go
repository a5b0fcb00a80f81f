package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"vasuki/internal/bytecode"
	"vasuki/internal/vm"

	"github.com/google/subcommands"
)

// runCmd loads and executes a compiled Vasuki bytecode file.
type runCmd struct {
	trace bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Execute a compiled Vasuki bytecode file" }
func (*runCmd) Usage() string {
	return `run [-trace] <file.vbc>:
  Execute a compiled Vasuki bytecode file.
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.trace, "trace", false, "write a per-instruction trace to stderr")
}

func (r *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}

	file, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to open file: %v\n", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	img, err := bytecode.Load(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to load bytecode: %v\n", err)
		return subcommands.ExitFailure
	}

	machine := vm.New(img, os.Stdout)
	if r.trace {
		machine.SetTracer(os.Stderr)
	}

	result, err := machine.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %v\n", err)
		return subcommands.ExitFailure
	}

	_ = result
	return subcommands.ExitSuccess
}
