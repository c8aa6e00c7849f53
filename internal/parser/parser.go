// Package parser loads Go packages and discovers their type declarations.
package parser

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo | packages.NeedTypesSizes

// Decl is a type declaration found in source.
type Decl struct {
	Obj     *types.TypeName // Declared type name
	Package string          // Import path of the declaring package
	Local   bool            // Declared inside a function body
}

// Result holds the declarations of a set of packages in source order.
type Result struct {
	Decls []Decl
	// Errors reported while loading or type-checking. Declarations of
	// packages with errors are still included.
	Errors []error
}

// Parser loads packages and extracts their type declarations.
type Parser struct {
	dir   string
	env   []string
	tags  []string
	tests bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithDir sets the directory patterns are resolved in.
func WithDir(dir string) Option { return func(p *Parser) { p.dir = dir } }

// WithEnv appends environment entries such as GOARCH=arm64 to the build
// environment.
func WithEnv(env ...string) Option { return func(p *Parser) { p.env = append(p.env, env...) } }

// WithBuildTags sets build tags used when selecting files.
func WithBuildTags(tags ...string) Option { return func(p *Parser) { p.tags = tags } }

// WithTests includes test files and test packages.
func WithTests(tests bool) Option { return func(p *Parser) { p.tests = tests } }

// New creates a new Parser.
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load loads the packages matched by patterns and returns every type
// declaration found in their syntax. It fails only when the loader itself
// cannot run; per-package errors are collected in the result.
func (p *Parser) Load(ctx context.Context, patterns ...string) (*Result, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     p.dir,
		Tests:   p.tests,
	}
	if len(p.env) > 0 {
		cfg.Env = append(os.Environ(), p.env...)
	}
	if len(p.tags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(p.tags, ",")}
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errors.WithMessage(err, "loading packages")
	}

	// Packages come back in no particular order.
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ID < pkgs[j].ID })

	// With tests enabled a file can belong to several package variants;
	// each declaration is reported once.
	seen := make(map[string]bool)
	result := &Result{}
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			result.Errors = append(result.Errors, errors.WithMessage(e, pkg.PkgPath))
		}
		if pkg.TypesInfo == nil {
			continue
		}
		for _, file := range pkg.Syntax {
			for _, d := range p.extractDecls(pkg, file) {
				key := pkg.Fset.Position(d.Obj.Pos()).String()
				if seen[key] {
					continue
				}
				seen[key] = true
				result.Decls = append(result.Decls, d)
			}
		}
	}
	return result, nil
}

// extractDecls returns the type declarations of file in source order,
// including those declared inside function bodies.
func (p *Parser) extractDecls(pkg *packages.Package, file *ast.File) []Decl {
	var decls []Decl
	depth := 0
	var stack []ast.Node
	ast.Inspect(file, func(n ast.Node) bool {
		if n == nil {
			if _, ok := stack[len(stack)-1].(*ast.FuncLit); ok {
				depth--
			} else if _, ok := stack[len(stack)-1].(*ast.FuncDecl); ok {
				depth--
			}
			stack = stack[:len(stack)-1]
			return true
		}
		stack = append(stack, n)
		switch n := n.(type) {
		case *ast.FuncDecl, *ast.FuncLit:
			depth++
		case *ast.GenDecl:
			if n.Tok != token.TYPE {
				return true
			}
			for _, spec := range n.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				obj, ok := pkg.TypesInfo.Defs[typeSpec.Name].(*types.TypeName)
				if !ok {
					continue
				}
				decls = append(decls, Decl{Obj: obj, Package: pkg.PkgPath, Local: depth > 0})
			}
		}
		return true
	})
	return decls
}

// Exported reports whether the declaration is visible outside its package.
func (d Decl) Exported() bool {
	return !d.Local && d.Obj.Exported()
}

func (d Decl) String() string {
	return fmt.Sprintf("%s.%s", d.Package, d.Obj.Name())
}
