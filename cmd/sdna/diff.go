package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/subcommands"

	"sdna/internal/dna"
)

// exitDiffError is returned when an input cannot be read or decoded, so
// that it is distinct from layouts that differ.
const exitDiffError subcommands.ExitStatus = 2

type diffCommand struct{}

func newDiffCommand() *diffCommand { return &diffCommand{} }

func (*diffCommand) Name() string           { return "diff" }
func (*diffCommand) Synopsis() string       { return "compare the layouts of two DNA files" }
func (*diffCommand) SetFlags(*flag.FlagSet) {}
func (*diffCommand) Usage() string {
	return `diff <old.dna> <new.dna>

Prints a line diff of both layouts. Exits 0 when they match, 1 when they
differ and 2 when a file cannot be read or decoded.
`
}

func (c *diffCommand) Execute(ctx context.Context, fs *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if fs.NArg() != 2 {
		log.Printf("diff takes exactly two DNA files")
		return subcommands.ExitUsageError
	}
	from, err := readDNA(fs.Arg(0))
	if err != nil {
		log.Print(err)
		return exitDiffError
	}
	to, err := readDNA(fs.Arg(1))
	if err != nil {
		log.Print(err)
		return exitDiffError
	}
	changed, err := dna.Diff(os.Stdout, from, to)
	if err != nil {
		log.Print(err)
		return exitDiffError
	}
	if changed {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
