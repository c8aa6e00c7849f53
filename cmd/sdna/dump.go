package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/subcommands"

	"sdna/internal/dna"
	"sdna/internal/model"
)

type dumpCommand struct {
	format string
}

func newDumpCommand() *dumpCommand { return &dumpCommand{} }

func (*dumpCommand) Name() string     { return "dump" }
func (*dumpCommand) Synopsis() string { return "print the contents of a DNA file" }
func (*dumpCommand) Usage() string {
	return `dump [-format text|yaml|json] <file.dna>

Options:
`
}

func (c *dumpCommand) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "format", string(dna.FormatText), "Output format: text, yaml or json")
}

func (c *dumpCommand) Execute(ctx context.Context, fs *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		log.Printf("dump takes exactly one DNA file")
		return subcommands.ExitUsageError
	}
	d, err := readDNA(fs.Arg(0))
	if err != nil {
		log.Print(err)
		return subcommands.ExitFailure
	}
	if err := dna.Write(os.Stdout, d, dna.Format(c.format)); err != nil {
		log.Print(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// readDNA reads and decodes the DNA file at path.
func readDNA(path string) (*model.SDNA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, _, err := dna.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return d, nil
}
