// Package model defines the in-memory DNA representation of struct layouts.
package model

import "unicode/utf8"

// MaxNameLen is the fixed size of a name or type buffer on the wire,
// including the terminating zero byte.
const MaxNameLen = 64

// Flags describes the storage shape of a field.
type Flags int32

const (
	// FlagPointer marks a pointer field. Combined with FlagArray the
	// elements of the array are pointers.
	FlagPointer Flags = 1 << 0
	// FlagArray marks a fixed-size array; Field.Array holds the flattened
	// element count.
	FlagArray Flags = 1 << 1
	// FlagFunction marks a pointer to a function.
	FlagFunction Flags = 1 << 2
)

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// String renders the set flags, e.g. "pointer|array".
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var s string
	for _, b := range []struct {
		bit  Flags
		name string
	}{{FlagPointer, "pointer"}, {FlagArray, "array"}, {FlagFunction, "function"}} {
		if f.Has(b.bit) {
			if s != "" {
				s += "|"
			}
			s += b.name
		}
	}
	return s
}

// SDNA is an ordered collection of struct layouts.
type SDNA struct {
	Structs []*Struct
}

// Struct describes the layout of one aggregate type.
type Struct struct {
	Name   string  // Type name, at most MaxNameLen-1 bytes
	Size   int32   // Total byte size
	Fields []Field // Fields in declaration order
}

// Field describes one member of a Struct.
type Field struct {
	Name   string // Field name
	Type   string // Resolved element type name
	Offset int32  // Byte offset within the owning struct
	Size   int32  // Total bytes occupied by the field
	Align  int32  // Alignment of the field type
	Array  int32  // Element count, 1 for non-arrays
	Flags  Flags  // Storage shape
}

// NewStruct returns a detached Struct with the given name. It becomes part
// of an SDNA only through Append.
func NewStruct(name string) *Struct {
	return &Struct{Name: Truncate(name)}
}

// Append adds s to the collection.
func (d *SDNA) Append(s *Struct) {
	d.Structs = append(d.Structs, s)
}

// AddStruct appends a new empty Struct and returns it.
func (d *SDNA) AddStruct(name string) *Struct {
	s := NewStruct(name)
	d.Append(s)
	return s
}

// AddField appends a new Field with Array set to 1 and returns it. The
// returned pointer is valid until the next call to AddField.
func (s *Struct) AddField(name string) *Field {
	s.Fields = append(s.Fields, Field{Name: Truncate(name), Array: 1})
	return &s.Fields[len(s.Fields)-1]
}

// SetType assigns the field's type name, truncating it to fit.
func (f *Field) SetType(name string) {
	f.Type = Truncate(name)
}

// Truncate bounds name to MaxNameLen-1 bytes, leaving room for the
// terminator, without splitting a UTF-8 sequence.
func Truncate(name string) string {
	if len(name) < MaxNameLen {
		return name
	}
	n := MaxNameLen - 1
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}
