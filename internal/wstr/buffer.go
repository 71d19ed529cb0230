// Package wstr wraps externally owned UTF-16 path buffers.
//
// A Buffer never grows or shrinks. Writes are bounds checked against the
// occupied length captured at construction, so a caller holding a Buffer
// over foreign memory can only overwrite characters that already exist.
package wstr

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unsafe"
)

var ErrOutOfRange = errors.New("wstr: index out of range")

type Buffer struct {
	units []uint16
}

// New wraps units without copying. The Buffer's length is len(units).
func New(units []uint16) *Buffer {
	return &Buffer{units: units}
}

// FromString encodes s as UTF-16 into a freshly allocated Buffer.
func FromString(s string) *Buffer {
	return &Buffer{units: utf16.Encode([]rune(s))}
}

// FromPointer views length UTF-16 units starting at p. The memory stays owned
// by the caller and must outlive every use of the returned Buffer.
func FromPointer(p *uint16, length int) *Buffer {
	if p == nil || length <= 0 {
		return &Buffer{}
	}
	return &Buffer{units: unsafe.Slice(p, length)}
}

func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.units)
}

func (b *Buffer) At(i int) (uint16, error) {
	if i < 0 || i >= b.Len() {
		return 0, fmt.Errorf("%w: read %d of %d", ErrOutOfRange, i, b.Len())
	}
	return b.units[i], nil
}

func (b *Buffer) Set(i int, c uint16) error {
	if i < 0 || i >= b.Len() {
		return fmt.Errorf("%w: write %d of %d", ErrOutOfRange, i, b.Len())
	}
	b.units[i] = c
	return nil
}

// Fill writes c into [from, to), clamped to the buffer. It returns the number
// of units written.
func (b *Buffer) Fill(from, to int, c uint16) int {
	if from < 0 {
		from = 0
	}
	if to > b.Len() {
		to = b.Len()
	}
	n := 0
	for i := from; i < to; i++ {
		b.units[i] = c
		n++
	}
	return n
}

// Units returns a copy of the occupied contents.
func (b *Buffer) Units() []uint16 {
	if b == nil {
		return nil
	}
	out := make([]uint16, len(b.units))
	copy(out, b.units)
	return out
}

func (b *Buffer) String() string {
	if b == nil {
		return ""
	}
	return string(utf16.Decode(b.units))
}
