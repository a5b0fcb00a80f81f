package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"vasuki/internal/bytecode"
	"vasuki/internal/disasm"

	"github.com/google/subcommands"
)

// disasmCmd loads a compiled Vasuki bytecode file and prints its
// disassembly listing, either to stdout or to an -o output file.
type disasmCmd struct {
	output string
}

func (*disasmCmd) Name() string     { return "disasm" }
func (*disasmCmd) Synopsis() string { return "Disassemble a compiled Vasuki bytecode file" }
func (*disasmCmd) Usage() string {
	return `disasm [-o <path>] <file.vbc>:
  Print the disassembly of a compiled Vasuki bytecode file.
`
}

func (d *disasmCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.output, "o", "", "write the listing to this path instead of stdout")
}

func (d *disasmCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	out := os.Stdout
	if d.output != "" {
		f, err := os.Create(d.output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 Failed to create output file: %v\n", err)
			return subcommands.ExitFailure
		}
		defer f.Close()
		out = f
	}

	if err := disasm.Listing(out, img); err != nil {
		fmt.Fprintf(os.Stderr, "💥 %v\n", err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
