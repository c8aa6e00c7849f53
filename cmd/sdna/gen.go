package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/subcommands"

	"sdna/internal/builder"
	"sdna/internal/config"
	"sdna/internal/dna"
	"sdna/internal/model"
	"sdna/internal/oracle"
	"sdna/internal/parser"
)

// Exit statuses for failures at the output file.
const (
	exitOpenFailure subcommands.ExitStatus = 3
	exitShortWrite  subcommands.ExitStatus = 4
)

type genCommand struct {
	output     string
	configFile string
	compiler   string
	arch       string
	types      string
	exclude    string
	tags       string
	exported   bool
	tests      bool
	cNames     bool
	verbose    bool
}

func newGenCommand() *genCommand { return &genCommand{} }

func (*genCommand) Name() string     { return "gen" }
func (*genCommand) Synopsis() string { return "write the DNA of struct declarations" }
func (*genCommand) Usage() string {
	return `gen [options] [packages]

Loads the given package patterns (default ".") and writes the layout of
every struct type they declare to a DNA file.

Examples:
    # Layouts of the current package for the host platform
    sdna gen

    # All packages of a module, for 32-bit ARM, selected types only
    sdna gen -arch arm -types Header,Block -dna arm.dna ./...

Options:
`
}

func (c *genCommand) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.output, "dna", "", "Output DNA file (default: "+config.DefaultOutput+")")
	fs.StringVar(&c.configFile, "config", "", "Config file (YAML/JSON)")
	fs.StringVar(&c.compiler, "compiler", "", "Compiler whose layout rules apply (default: gc)")
	fs.StringVar(&c.arch, "arch", "", "Target architecture (default: host)")
	fs.StringVar(&c.types, "types", "", "Only reflect these types (comma-separated, bare or package-qualified names)")
	fs.StringVar(&c.exclude, "exclude", "", "Exclude these types (comma-separated, bare or package-qualified names)")
	fs.StringVar(&c.tags, "tags", "", "Build tags (comma-separated)")
	fs.BoolVar(&c.exported, "exported", false, "Only reflect exported types")
	fs.BoolVar(&c.tests, "tests", false, "Include test files")
	fs.BoolVar(&c.cNames, "cnames", false, "Emit C names for basic types")
	fs.BoolVar(&c.verbose, "v", false, "Verbose output")
}

func (c *genCommand) Execute(ctx context.Context, fs *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := c.config()
	if err != nil {
		log.Printf("error: %v", err)
		return subcommands.ExitUsageError
	}

	o, err := oracle.New(cfg.Options.Compiler, cfg.Options.Arch, oracle.WithTypeMappings(cfg.Mappings()))
	if err != nil {
		log.Printf("error: %v", err)
		return subcommands.ExitUsageError
	}

	patterns := fs.Args()
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	p := parser.New(
		parser.WithEnv("GOARCH="+cfg.Options.Arch),
		parser.WithBuildTags(cfg.Options.BuildTags...),
		parser.WithTests(cfg.Options.Tests),
	)
	res, err := p.Load(ctx, patterns...)
	if err != nil {
		log.Printf("error: %v", err)
		return subcommands.ExitFailure
	}
	for _, err := range res.Errors {
		log.Print(err)
	}
	if c.verbose {
		log.Printf("parsed %d type declarations from %s", len(res.Decls), strings.Join(patterns, " "))
	}

	d := build(o, res.Decls, cfg.Filter(), c.verbose)
	buf := dna.Encode(d)
	if c.verbose {
		log.Printf("encoded %d structs (%d bytes) to %s", len(d.Structs), len(buf), cfg.Options.Output)
	}
	return writeDNA(cfg.Options.Output, buf)
}

// config loads the config file, if any, and applies flag overrides.
func (c *genCommand) config() (*config.Config, error) {
	cfg := config.New()
	if c.configFile != "" {
		if err := cfg.LoadFile(c.configFile); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	if c.output != "" {
		cfg.Options.Output = c.output
	}
	if c.compiler != "" {
		cfg.Options.Compiler = c.compiler
	}
	if c.arch != "" {
		cfg.Options.Arch = c.arch
	}
	if c.types != "" {
		cfg.Options.IncludeTypes = parseCommaSeparated(c.types)
	}
	if c.exclude != "" {
		cfg.Options.ExcludeTypes = parseCommaSeparated(c.exclude)
	}
	if c.tags != "" {
		cfg.Options.BuildTags = parseCommaSeparated(c.tags)
	}
	if c.exported {
		cfg.Options.ExportedOnly = true
	}
	if c.tests {
		cfg.Options.Tests = true
	}
	if c.cNames {
		cfg.Options.CNames = true
	}
	return cfg, nil
}

// build reflects each selected declaration in order. Skipped declarations
// are silently dropped; layout errors are logged and do not stop the rest.
func build(o builder.Oracle, decls []parser.Decl, include func(string, bool) bool, verbose bool) *model.SDNA {
	b := builder.New(o, &model.SDNA{})
	for _, decl := range decls {
		if !include(decl.String(), decl.Exported()) {
			continue
		}
		s, err := b.AddStruct(decl.Obj)
		switch {
		case errors.Is(err, builder.ErrSkipped):
			if verbose {
				log.Printf("skipped %s", decl)
			}
		case err != nil:
			log.Printf("%s: %v", decl, err)
		case verbose:
			log.Printf("  - %s (%d bytes, %d fields)", s.Name, s.Size, len(s.Fields))
		}
	}
	return b.DNA()
}

// writeDNA writes buf to path in a single write.
func writeDNA(path string, buf []byte) subcommands.ExitStatus {
	f, err := os.Create(path)
	if err != nil {
		log.Printf("failed to open output DNA file: %v", err)
		return exitOpenFailure
	}
	n, err := f.Write(buf)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil || n != len(buf) {
		log.Printf("failed to write output DNA file: wrote %d of %d bytes: %v", n, len(buf), err)
		return exitShortWrite
	}
	return subcommands.ExitSuccess
}

// parseCommaSeparated splits a comma-separated string into a slice of trimmed strings.
func parseCommaSeparated(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
