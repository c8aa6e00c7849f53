// Package builder reflects struct declarations into DNA records.
package builder

import (
	"errors"
	"fmt"
	"go/types"
	"math"

	"sdna/internal/model"
)

var (
	// ErrSkipped is returned by AddStruct for declarations that have no
	// layout to reflect. It is not a failure.
	ErrSkipped = errors.New("declaration skipped")

	// ErrLayout is returned when a field's layout cannot be represented.
	ErrLayout = errors.New("unrepresentable layout")
)

// Oracle answers layout and naming questions about types.
type Oracle interface {
	Sizeof(types.Type) int64
	Alignof(types.Type) int64
	Offsetsof(fields []*types.Var) []int64
	TypeString(types.Type) string
	DeclName(obj *types.TypeName) string
	HasSource(obj types.Object) bool
}

// Builder appends struct records to an SDNA.
type Builder struct {
	oracle Oracle
	dna    *model.SDNA
}

// New creates a Builder appending to dna.
func New(o Oracle, dna *model.SDNA) *Builder {
	return &Builder{oracle: o, dna: dna}
}

// DNA returns the collection the builder appends to.
func (b *Builder) DNA() *model.SDNA { return b.dna }

// AddStruct reflects the struct declared by obj and appends it. It returns
// ErrSkipped when obj does not declare a struct, has no source position or
// is generic. On any other error nothing is appended.
func (b *Builder) AddStruct(obj *types.TypeName) (*model.Struct, error) {
	if !b.oracle.HasSource(obj) {
		return nil, ErrSkipped
	}
	typ := types.Unalias(obj.Type())
	if named, ok := typ.(*types.Named); ok && named.TypeParams().Len() > named.TypeArgs().Len() {
		return nil, ErrSkipped
	}
	st, ok := typ.Underlying().(*types.Struct)
	if !ok {
		return nil, ErrSkipped
	}

	name := b.oracle.TypeString(typ)
	if _, unnamed := typ.(*types.Struct); unnamed {
		name = b.oracle.DeclName(obj)
	}
	s := model.NewStruct(name)
	size, err := toInt32(b.oracle.Sizeof(typ))
	if err != nil {
		return nil, fmt.Errorf("%s: size: %w", name, err)
	}
	s.Size = size

	vars := make([]*types.Var, st.NumFields())
	for i := range vars {
		vars[i] = st.Field(i)
	}
	offsets := b.oracle.Offsetsof(vars)
	for i, v := range vars {
		if err := b.addField(s, v, offsets[i]); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, v.Name(), err)
		}
	}

	b.dna.Append(s)
	return s, nil
}

// addField classifies v and appends its record to s.
func (b *Builder) addField(s *model.Struct, v *types.Var, offset int64) error {
	typ := v.Type()
	if invalid(typ, nil) {
		return fmt.Errorf("%w: unresolved type %s", ErrLayout, typ)
	}
	offset32, err := toInt32(offset)
	if err != nil {
		return err
	}
	size, err := toInt32(b.oracle.Sizeof(typ))
	if err != nil {
		return err
	}
	align, err := toInt32(b.oracle.Alignof(typ))
	if err != nil {
		return err
	}

	var (
		flags model.Flags
		array int32 = 1
		name  string
	)
	switch u := typ.Underlying().(type) {
	case *types.Pointer:
		flags = model.FlagPointer
		if name, err = b.pointee(u); err != nil {
			return err
		}
	case *types.Signature:
		flags = model.FlagPointer | model.FlagFunction
		name = b.oracle.TypeString(u)
	case *types.Array:
		elem, count := flatten(u)
		if array, err = b.arity(int64(size), elem, count); err != nil {
			return err
		}
		flags = model.FlagArray
		switch e := elem.Underlying().(type) {
		case *types.Pointer:
			flags |= model.FlagPointer
			if name, err = b.pointee(e); err != nil {
				return err
			}
		case *types.Signature:
			flags |= model.FlagPointer
			name = b.oracle.TypeString(e)
		default:
			name = b.oracle.TypeString(elem)
		}
	default:
		name = b.oracle.TypeString(typ)
	}

	f := s.AddField(v.Name())
	f.SetType(name)
	f.Offset, f.Size, f.Align = offset32, size, align
	f.Array, f.Flags = array, flags
	return nil
}

// pointee renders the type p points to. A pointer to a func value is a
// pointer to a function pointer, so only the pointer flag applies to it.
func (b *Builder) pointee(p *types.Pointer) (string, error) {
	if isInvalid(p.Elem()) {
		return "", fmt.Errorf("%w: pointer to unresolved type", ErrLayout)
	}
	return b.oracle.TypeString(p.Elem()), nil
}

func isInvalid(t types.Type) bool {
	basic, ok := t.Underlying().(*types.Basic)
	return ok && basic.Kind() == types.Invalid
}

// invalid reports whether the storage of t depends on a type that did not
// resolve. Pointers are not followed; their size does not depend on the
// pointee.
func invalid(t types.Type, seen map[*types.Named]bool) bool {
	if named, ok := t.(*types.Named); ok {
		if seen[named] {
			return false
		}
		if seen == nil {
			seen = make(map[*types.Named]bool)
		}
		seen[named] = true
	}
	switch u := t.Underlying().(type) {
	case *types.Basic:
		return u.Kind() == types.Invalid
	case *types.Array:
		return invalid(u.Elem(), seen)
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if invalid(u.Field(i).Type(), seen) {
				return true
			}
		}
	}
	return false
}

// flatten descends through nested array dimensions and returns the
// innermost element type along with the product of all dimension lengths.
func flatten(arr *types.Array) (types.Type, int64) {
	count := arr.Len()
	elem := arr.Elem()
	for {
		inner, ok := elem.Underlying().(*types.Array)
		if !ok {
			return elem, count
		}
		count *= inner.Len()
		elem = inner.Elem()
	}
}

// arity computes the flattened element count of an array field from its
// total size. Zero-sized elements fall back to the dimension product.
func (b *Builder) arity(size int64, elem types.Type, count int64) (int32, error) {
	esize := b.oracle.Sizeof(elem)
	if esize == 0 {
		return toInt32(count)
	}
	if size%esize != 0 {
		return 0, fmt.Errorf("%w: size %d is not a multiple of element size %d", ErrLayout, size, esize)
	}
	return toInt32(size / esize)
}

func toInt32(v int64) (int32, error) {
	if v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d overflows a 32-bit integer", ErrLayout, v)
	}
	return int32(v), nil
}
