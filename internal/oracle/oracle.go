// Package oracle answers layout and naming questions about Go types for a
// target platform.
package oracle

import (
	"fmt"
	"go/types"
)

// Oracle reports sizes, alignments and offsets using a types.Sizes for the
// target platform and renders type names with a package qualifier.
type Oracle struct {
	sizes    types.Sizes
	qualify  types.Qualifier
	mappings map[string]string
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithQualifier overrides how package names appear in rendered type names.
// The default uses the package name ("models.User").
func WithQualifier(q types.Qualifier) Option {
	return func(o *Oracle) { o.qualify = q }
}

// WithTypeMappings renames rendered type names that match a key exactly.
func WithTypeMappings(m map[string]string) Option {
	return func(o *Oracle) { o.mappings = m }
}

// New creates an Oracle for the given compiler and architecture, e.g.
// ("gc", "amd64").
func New(compiler, arch string, opts ...Option) (*Oracle, error) {
	sizes := types.SizesFor(compiler, arch)
	if sizes == nil {
		return nil, fmt.Errorf("unsupported target %s/%s", compiler, arch)
	}
	o := &Oracle{
		sizes:   sizes,
		qualify: PackageName,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// PackageName qualifies types by package name.
func PackageName(p *types.Package) string { return p.Name() }

// Sizeof returns the byte size of t.
func (o *Oracle) Sizeof(t types.Type) int64 { return o.sizes.Sizeof(t) }

// Alignof returns the byte alignment of t.
func (o *Oracle) Alignof(t types.Type) int64 { return o.sizes.Alignof(t) }

// Offsetsof returns the byte offsets of the given struct fields.
func (o *Oracle) Offsetsof(fields []*types.Var) []int64 { return o.sizes.Offsetsof(fields) }

// TypeString renders t, applying any configured type mapping.
func (o *Oracle) TypeString(t types.Type) string {
	s := types.TypeString(t, o.qualify)
	if mapped, ok := o.mappings[s]; ok {
		return mapped
	}
	return s
}

// DeclName renders the declared name of obj with the package qualifier,
// applying any configured type mapping. Unlike TypeString it does not look
// through aliases.
func (o *Oracle) DeclName(obj *types.TypeName) string {
	s := obj.Name()
	if pkg := obj.Pkg(); pkg != nil {
		if q := o.qualify(pkg); q != "" {
			s = q + "." + s
		}
	}
	if mapped, ok := o.mappings[s]; ok {
		return mapped
	}
	return s
}

// HasSource reports whether obj is attributed to a source position. Objects
// of the universe scope and synthesized declarations have none.
func (o *Oracle) HasSource(obj types.Object) bool {
	return obj.Pos().IsValid() && obj.Pkg() != nil
}
