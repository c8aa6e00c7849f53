package builder

import (
	"errors"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdna/internal/model"
	"sdna/internal/oracle"
)

// check type-checks src as package p with amd64 layout rules.
func check(t *testing.T, src string) *types.Package {
	t.Helper()
	fset := token.NewFileSet()
	f, err := goparser.ParseFile(fset, "p.go", "package p\n\n"+src, 0)
	require.NoError(t, err)
	conf := types.Config{Sizes: types.SizesFor("gc", "amd64")}
	pkg, err := conf.Check("p", fset, []*ast.File{f}, nil)
	require.NoError(t, err)
	return pkg
}

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	o, err := oracle.New("gc", "amd64")
	require.NoError(t, err)
	return New(o, &model.SDNA{})
}

func lookup(t *testing.T, pkg *types.Package, name string) *types.TypeName {
	t.Helper()
	obj, ok := pkg.Scope().Lookup(name).(*types.TypeName)
	require.True(t, ok, "type %s not declared", name)
	return obj
}

// build reflects the named declaration of src and returns its record.
func build(t *testing.T, src, name string) *model.Struct {
	t.Helper()
	b := newBuilder(t)
	s, err := b.AddStruct(lookup(t, check(t, src), name))
	require.NoError(t, err)
	require.Len(t, b.DNA().Structs, 1)
	return s
}

func TestAddStruct_EndToEndExample(t *testing.T) {
	s := build(t, `type P struct {
	X    int32
	Ys   [2][3]float32
	Name *byte
}`, "P")

	want := &model.Struct{
		Name: "p.P",
		Size: 40,
		Fields: []model.Field{
			{Name: "X", Type: "int32", Offset: 0, Size: 4, Align: 4, Array: 1},
			{Name: "Ys", Type: "float32", Offset: 4, Size: 24, Align: 4, Array: 6, Flags: model.FlagArray},
			{Name: "Name", Type: "byte", Offset: 32, Size: 8, Align: 8, Array: 1, Flags: model.FlagPointer},
		},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("AddStruct mismatch (-want +got):\n%s", diff)
	}
}

func TestAddStruct_FieldShapes(t *testing.T) {
	src := `
type Inner struct{ A, B int64 }
type Vec [3]float64
type IntPtr *int32

type S struct {
	Empty  [4]struct{}
	Scalar uint16
	Ptr    *Inner
	Named  IntPtr
	Ptrs   [4]*int32
	Cb     func(int) error
	CbPtr  *func()
	Cbs    [2]func()
	CbPtrs [2]*func()
	V      Vec
	Vs     [2]Vec
	Grid   [2][3]*Inner
	Slice  []int
	Str    string
	Map    map[string]int
	Val    Inner
	Iface  interface{ M() }
}`
	s := build(t, src, "S")

	type shape struct {
		Type  string
		Size  int32
		Array int32
		Flags model.Flags
	}
	want := map[string]shape{
		"Empty":  {"struct{}", 0, 4, model.FlagArray},
		"Scalar": {"uint16", 2, 1, 0},
		"Ptr":    {"p.Inner", 8, 1, model.FlagPointer},
		"Named":  {"int32", 8, 1, model.FlagPointer},
		"Ptrs":   {"int32", 32, 4, model.FlagPointer | model.FlagArray},
		"Cb":     {"func(int) error", 8, 1, model.FlagPointer | model.FlagFunction},
		"CbPtr":  {"func()", 8, 1, model.FlagPointer},
		"Cbs":    {"func()", 16, 2, model.FlagPointer | model.FlagArray},
		"CbPtrs": {"func()", 16, 2, model.FlagPointer | model.FlagArray},
		"V":      {"float64", 24, 3, model.FlagArray},
		"Vs":     {"float64", 48, 6, model.FlagArray},
		"Grid":   {"p.Inner", 48, 6, model.FlagPointer | model.FlagArray},
		"Slice":  {"[]int", 24, 1, 0},
		"Str":    {"string", 16, 1, 0},
		"Map":    {"map[string]int", 8, 1, 0},
		"Val":    {"p.Inner", 16, 1, 0},
		"Iface":  {"interface{M()}", 16, 1, 0},
	}
	require.Len(t, s.Fields, len(want))
	for _, f := range s.Fields {
		got := shape{f.Type, f.Size, f.Array, f.Flags}
		assert.Equal(t, want[f.Name], got, "field %s", f.Name)
	}
}

func TestAddStruct_SizeAccounting(t *testing.T) {
	s := build(t, `type S struct {
	A  [5]int16
	B  [2][2]float64
	P  *S
	F  func()
	PA [3]*S
	C  complex128
}`, "S")

	const ptrSize = 8
	for _, f := range s.Fields {
		switch {
		case f.Flags.Has(model.FlagArray) && f.Flags.Has(model.FlagPointer):
			assert.Equal(t, ptrSize*f.Array, f.Size, f.Name)
		case f.Flags.Has(model.FlagPointer):
			assert.Equal(t, int32(ptrSize), f.Size, f.Name)
			assert.Equal(t, int32(1), f.Array, f.Name)
		case f.Flags.Has(model.FlagArray):
			assert.Zero(t, f.Size%f.Array, f.Name)
		default:
			assert.Equal(t, int32(1), f.Array, f.Name)
		}
	}
}

func TestAddStruct_ScalarFieldsHaveNoShape(t *testing.T) {
	s := build(t, `type S struct {
	A bool
	B int8
	C uint64
	D float32
	E string
}`, "S")
	for _, f := range s.Fields {
		assert.Equal(t, int32(1), f.Array, f.Name)
		assert.Equal(t, model.Flags(0), f.Flags, f.Name)
	}
}

func TestAddStruct_Names(t *testing.T) {
	pkg := check(t, `
type P struct{ X int }
type B = P
type A = struct{ Y int8 }
type E struct {
	P
	_ [3]byte
}`)

	tests := []struct {
		decl   string
		name   string
		fields []string
	}{
		{"P", "p.P", []string{"X"}},
		{"B", "p.P", []string{"X"}},
		{"A", "p.A", []string{"Y"}},
		{"E", "p.E", []string{"P", "_"}},
	}
	for _, tt := range tests {
		t.Run(tt.decl, func(t *testing.T) {
			s, err := newBuilder(t).AddStruct(lookup(t, pkg, tt.decl))
			require.NoError(t, err)
			assert.Equal(t, tt.name, s.Name)
			var names []string
			for _, f := range s.Fields {
				names = append(names, f.Name)
			}
			assert.Equal(t, tt.fields, names)
		})
	}
}

func TestAddStruct_DuplicateNamesAreKept(t *testing.T) {
	pkg := check(t, `
type P struct{ X int }
type B = P`)
	b := newBuilder(t)
	for _, name := range []string{"P", "B"} {
		_, err := b.AddStruct(lookup(t, pkg, name))
		require.NoError(t, err)
	}
	require.Len(t, b.DNA().Structs, 2)
	assert.Equal(t, b.DNA().Structs[0].Name, b.DNA().Structs[1].Name)
}

func TestAddStruct_Skipped(t *testing.T) {
	pkg := check(t, `
type F int
type I interface{ M() }
type G[T any] struct{ V T }
`)
	builtin := types.NewTypeName(token.NoPos, pkg, "Builtin", nil)
	types.NewNamed(builtin, types.NewStruct([]*types.Var{
		types.NewField(token.NoPos, pkg, "X", types.Typ[types.Int], false),
	}, nil), nil)

	for _, obj := range []*types.TypeName{
		lookup(t, pkg, "F"),
		lookup(t, pkg, "I"),
		lookup(t, pkg, "G"),
		builtin,
		types.Universe.Lookup("error").(*types.TypeName),
	} {
		b := newBuilder(t)
		s, err := b.AddStruct(obj)
		assert.ErrorIs(t, err, ErrSkipped, obj.Name())
		assert.Nil(t, s)
		assert.Empty(t, b.DNA().Structs, obj.Name())
	}
}

func TestAddStruct_TruncatesLongTypeNames(t *testing.T) {
	s := build(t, `type S struct {
	Anon struct {
		AVeryLongFieldNameNumberOne   int64
		AVeryLongFieldNameNumberTwo   int64
		AVeryLongFieldNameNumberThree int64
	}
}`, "S")
	require.Len(t, s.Fields, 1)
	assert.Len(t, s.Fields[0].Type, model.MaxNameLen-1)
	assert.True(t, strings.HasPrefix(s.Fields[0].Type, "struct{AVeryLongFieldNameNumberOne int64"))
}

// skewOracle reports a wrong element size for float32.
type skewOracle struct {
	*oracle.Oracle
}

func (o skewOracle) Sizeof(t types.Type) int64 {
	if b, ok := t.(*types.Basic); ok && b.Kind() == types.Float32 {
		return 7
	}
	return o.Oracle.Sizeof(t)
}

func TestAddStruct_LayoutErrors(t *testing.T) {
	o, err := oracle.New("gc", "amd64")
	require.NoError(t, err)

	t.Run("non-dividing element size", func(t *testing.T) {
		pkg := check(t, `type S struct{ Ys [2][3]float32 }`)
		b := New(skewOracle{o}, &model.SDNA{})
		_, err := b.AddStruct(lookup(t, pkg, "S"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLayout))
		assert.False(t, errors.Is(err, ErrSkipped))
		assert.Empty(t, b.DNA().Structs)
	})

	t.Run("overflow", func(t *testing.T) {
		pkg := check(t, `type S struct{ Big [1 << 31]byte }`)
		b := New(o, &model.SDNA{})
		_, err := b.AddStruct(lookup(t, pkg, "S"))
		assert.ErrorIs(t, err, ErrLayout)
		assert.Empty(t, b.DNA().Structs)
	})
}

func TestAddStruct_FunctionPointerIndirection(t *testing.T) {
	s := build(t, `type S struct {
	F  func()
	PF *func()
	AF [3]func()
}`, "S")
	require.Len(t, s.Fields, 3)
	f, pf, af := s.Fields[0], s.Fields[1], s.Fields[2]

	assert.Equal(t, "func()", f.Type)
	assert.Equal(t, model.FlagPointer|model.FlagFunction, f.Flags)
	assert.Equal(t, "func()", pf.Type)
	assert.Equal(t, model.FlagPointer, pf.Flags)
	assert.NotEqual(t, f, pf)
	assert.Equal(t, model.FlagPointer|model.FlagArray, af.Flags)
	assert.Equal(t, int32(3), af.Array)
}

func TestAddStruct_UnresolvedTypes(t *testing.T) {
	fset := token.NewFileSet()
	f, err := goparser.ParseFile(fset, "p.go", `package p

type A struct{ X Undefined }
type B struct{ Xs [2]Missing }
type C struct{ P *Missing }
type D struct{ V struct{ Y Missing } }
type E struct {
	P  *Nested
	Ps [2]*Nested
}
type Nested struct{ Z Missing }
type OK struct{ C int }
`, 0)
	require.NoError(t, err)
	var typeErrs []error
	conf := types.Config{
		Sizes: types.SizesFor("gc", "amd64"),
		Error: func(err error) { typeErrs = append(typeErrs, err) },
	}
	pkg, _ := conf.Check("p", fset, []*ast.File{f}, nil)
	require.NotEmpty(t, typeErrs)

	for _, name := range []string{"A", "B", "C", "D", "Nested"} {
		b := newBuilder(t)
		_, err := b.AddStruct(lookup(t, pkg, name))
		assert.ErrorIs(t, err, ErrLayout, name)
		assert.Empty(t, b.DNA().Structs, name)
	}

	// Pointers to a broken struct still have a known size and pointee name.
	b := newBuilder(t)
	for _, name := range []string{"E", "OK"} {
		_, err := b.AddStruct(lookup(t, pkg, name))
		assert.NoError(t, err, name)
	}
	require.Len(t, b.DNA().Structs, 2)
	assert.Equal(t, "p.Nested", b.DNA().Structs[0].Fields[0].Type)
}

func TestAddStruct_TargetPointerSize(t *testing.T) {
	fset := token.NewFileSet()
	f, err := goparser.ParseFile(fset, "p.go", "package p\ntype S struct{ A *int; B [2]*int; C func() }", 0)
	require.NoError(t, err)
	conf := types.Config{Sizes: types.SizesFor("gc", "386")}
	pkg, err := conf.Check("p", fset, []*ast.File{f}, nil)
	require.NoError(t, err)

	o, err := oracle.New("gc", "386")
	require.NoError(t, err)
	s, err := New(o, &model.SDNA{}).AddStruct(lookup(t, pkg, "S"))
	require.NoError(t, err)
	assert.Equal(t, int32(16), s.Size)
	assert.Equal(t, int32(4), s.Fields[0].Size)
	assert.Equal(t, int32(8), s.Fields[1].Size)
	assert.Equal(t, int32(2), s.Fields[1].Array)
	assert.Equal(t, int32(4), s.Fields[2].Size)
	assert.Equal(t, int32(12), s.Fields[2].Offset)
}
