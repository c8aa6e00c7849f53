// sdna extracts the memory layout of Go struct declarations and writes it
// as a self-describing DNA blob.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/subcommands"
)

func init() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(newGenCommand(), "")
	subcommands.Register(newDumpCommand(), "inspection")
	subcommands.Register(newDiffCommand(), "inspection")
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("sdna: ")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
