package dna

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"sdna/internal/model"
)

var (
	// ErrBadMagic is returned when the input does not start with Magic.
	ErrBadMagic = errors.New("not a DNA blob")

	// ErrTruncated is returned when the input ends inside a record.
	ErrTruncated = errors.New("truncated DNA blob")
)

// minStructLen is the smallest encoded struct: an empty name, size and
// field count.
const minStructLen = 1 + 4 + 4

// Decode parses a DNA blob written on a machine of either byte order. The
// order is inferred from the struct count, falling back to the other order
// when the first candidate does not decode cleanly.
func Decode(data []byte) (*model.SDNA, binary.ByteOrder, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return nil, nil, ErrBadMagic
	}
	var first error
	for _, order := range candidateOrders(data) {
		d, err := DecodeOrder(data, order)
		if err == nil {
			return d, order, nil
		}
		if first == nil {
			first = err
		}
	}
	return nil, nil, first
}

// candidateOrders returns the byte orders to try, most plausible first.
// A count is plausible when the remaining input can hold that many structs.
func candidateOrders(data []byte) []binary.ByteOrder {
	native, swapped := binary.ByteOrder(binary.NativeEndian), otherOrder()
	if len(data) < len(Magic)+4 {
		return []binary.ByteOrder{native}
	}
	raw := data[len(Magic) : len(Magic)+4]
	limit := uint64(len(data)-len(Magic)-4) / minStructLen
	if uint64(native.Uint32(raw)) > limit && uint64(swapped.Uint32(raw)) <= limit {
		return []binary.ByteOrder{swapped, native}
	}
	return []binary.ByteOrder{native, swapped}
}

func otherOrder() binary.ByteOrder {
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// DecodeOrder parses a DNA blob whose integers use the given byte order.
func DecodeOrder(data []byte, order binary.ByteOrder) (*model.SDNA, error) {
	d := decoder{data: data, order: order}
	if string(d.next(len(Magic))) != Magic {
		return nil, ErrBadMagic
	}
	dna := &model.SDNA{}
	nstructs := d.count(minStructLen)
	for i := 0; i < nstructs && d.err == nil; i++ {
		s := dna.AddStruct(d.string())
		s.Size = d.int32()
		nfields := d.count(2 + 5*4)
		for j := 0; j < nfields && d.err == nil; j++ {
			f := s.AddField(d.string())
			f.SetType(d.string())
			f.Offset = d.int32()
			f.Size = d.int32()
			f.Align = d.int32()
			f.Array = d.int32()
			f.Flags = model.Flags(d.int32())
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	if d.pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes at offset %d", len(data)-d.pos, d.pos)
	}
	return dna, nil
}

type decoder struct {
	data  []byte
	order binary.ByteOrder
	pos   int
	err   error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = fmt.Errorf("offset %d: %w", d.pos, err)
	}
}

func (d *decoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.data)-d.pos < n {
		d.fail(ErrTruncated)
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) int32() int32 {
	b := d.next(4)
	if b == nil {
		return 0
	}
	return int32(d.order.Uint32(b))
}

// count reads an element count and rejects values the remaining input
// cannot hold given the minimum encoded size of one element.
func (d *decoder) count(minLen int) int {
	n := d.int32()
	if d.err != nil {
		return 0
	}
	if n < 0 || int64(n)*int64(minLen) > int64(len(d.data)-d.pos) {
		d.fail(fmt.Errorf("implausible count %d", n))
		return 0
	}
	return int(n)
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	i := bytes.IndexByte(d.data[d.pos:], 0)
	if i < 0 {
		d.fail(ErrTruncated)
		return ""
	}
	s := string(d.data[d.pos : d.pos+i])
	d.pos += i + 1
	return s
}
