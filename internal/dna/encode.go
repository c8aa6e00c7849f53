// Package dna reads and writes the binary DNA format.
//
// A DNA blob starts with the 4-byte word "SDNA" followed by the struct
// count, then for each struct its name, size and field count, then for each
// field its name, type, offset, size, align, array and flags. Strings are
// zero-terminated; integers are 4-byte signed values in the byte order of
// the machine that wrote the blob. Readers detect the order by reading the
// magic as an integer.
package dna

import (
	"encoding/binary"

	"sdna/internal/model"
)

// Magic is the leading word of every DNA blob.
const Magic = "SDNA"

// Encode serializes d. The result depends only on d and the host byte
// order.
func Encode(d *model.SDNA) []byte {
	return encode(d, binary.NativeEndian)
}

func encode(d *model.SDNA, order binary.AppendByteOrder) []byte {
	e := encoder{order: order}
	e.word(Magic)
	e.int(len(d.Structs))
	for _, s := range d.Structs {
		e.string(s.Name)
		e.int32(s.Size)
		e.int(len(s.Fields))
		for i := range s.Fields {
			f := &s.Fields[i]
			e.string(f.Name)
			e.string(f.Type)
			e.int32(f.Offset)
			e.int32(f.Size)
			e.int32(f.Align)
			e.int32(f.Array)
			e.int32(int32(f.Flags))
		}
	}
	return e.buf
}

type encoder struct {
	order binary.AppendByteOrder
	buf   []byte
}

// word writes w without a terminator.
func (e *encoder) word(w string) { e.buf = append(e.buf, w...) }

// string writes s bounded to model.MaxNameLen-1 bytes plus a terminator.
func (e *encoder) string(s string) {
	e.buf = append(e.buf, model.Truncate(s)...)
	e.buf = append(e.buf, 0)
}

func (e *encoder) int32(v int32) {
	e.buf = e.order.AppendUint32(e.buf, uint32(v))
}

func (e *encoder) int(v int) { e.int32(int32(v)) }
