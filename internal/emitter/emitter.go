// Package emitter implements an append-only machine code writer over a fixed-capacity buffer.
package emitter

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrCapacity is returned when a write would pass the end of the buffer.
	ErrCapacity = errors.New("code buffer capacity exceeded")
	// ErrOutOfRange is returned when a patch targets bytes that were not written yet.
	ErrOutOfRange = errors.New("patch offset out of range")
	// ErrLinked is returned when relocations are applied a second time.
	ErrLinked = errors.New("relocations already applied")
)

// relocationSize is the size of an absolute address placeholder.
const relocationSize = 8

// Symbol names an absolute address that is only known at link time.
type Symbol int

// Symbols that generated code can reference.
const (
	TapeBase Symbol = iota + 1
	HostContext
	InputRoutine
	OutputRoutine
)

var symbolNames = map[Symbol]string{
	TapeBase:      "tape",
	HostContext:   "host context",
	InputRoutine:  "input routine",
	OutputRoutine: "output routine",
}

// String returns the name of the symbol.
func (s Symbol) String() string {
	if name, ok := symbolNames[s]; ok {
		return name
	}
	return fmt.Sprintf("symbol(%d)", int(s))
}

// Relocation marks an 8 byte absolute address placeholder at Offset.
type Relocation struct {
	Offset int
	Symbol Symbol
}

// Resolver returns the absolute address of a symbol.
type Resolver func(Symbol) (uint64, error)

// Buffer is an append-only code writer. The first failing write is remembered and
// all following writes are ignored, so callers can check Err once after a sequence
// of writes.
type Buffer struct {
	buf         []byte
	pos         int
	err         error
	linked      bool
	relocations []Relocation
}

// New returns a buffer that writes into buf. The capacity of the buffer is len(buf).
func New(buf []byte) *Buffer {
	return &Buffer{buf: buf}
}

// Err returns the first write error.
func (b *Buffer) Err() error {
	return b.err
}

// Offset returns the current write position.
func (b *Buffer) Offset() int {
	return b.pos
}

// Len returns the number of written bytes.
func (b *Buffer) Len() int {
	return b.pos
}

// Cap returns the capacity of the buffer.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Code returns the written bytes. The slice aliases the buffer memory.
func (b *Buffer) Code() []byte {
	return b.buf[:b.pos]
}

// Relocations returns the recorded relocations in emission order.
func (b *Buffer) Relocations() []Relocation {
	return b.relocations
}

// Byte appends a single byte.
func (b *Buffer) Byte(value byte) {
	if !b.reserve(1) {
		return
	}
	b.buf[b.pos] = value
	b.pos++
}

// Bytes appends all given bytes.
func (b *Buffer) Bytes(values ...byte) {
	if !b.reserve(len(values)) {
		return
	}
	b.pos += copy(b.buf[b.pos:], values)
}

// Uint16 appends a little-endian 16 bit value.
func (b *Buffer) Uint16(value uint16) {
	if !b.reserve(2) {
		return
	}
	binary.LittleEndian.PutUint16(b.buf[b.pos:], value)
	b.pos += 2
}

// Uint32 appends a little-endian 32 bit value.
func (b *Buffer) Uint32(value uint32) {
	if !b.reserve(4) {
		return
	}
	binary.LittleEndian.PutUint32(b.buf[b.pos:], value)
	b.pos += 4
}

// Uint64 appends a little-endian 64 bit value.
func (b *Buffer) Uint64(value uint64) {
	if !b.reserve(8) {
		return
	}
	binary.LittleEndian.PutUint64(b.buf[b.pos:], value)
	b.pos += 8
}

// Relocate records a relocation for symbol at the current offset and appends a
// zeroed address placeholder.
func (b *Buffer) Relocate(symbol Symbol) {
	if !b.reserve(relocationSize) {
		return
	}
	b.relocations = append(b.relocations, Relocation{Offset: b.pos, Symbol: symbol})
	b.Uint64(0)
}

// PatchUint32 overwrites 4 already written bytes at offset. The write position is
// not changed.
func (b *Buffer) PatchUint32(offset int, value uint32) error {
	if offset < 0 || offset+4 > b.pos {
		return fmt.Errorf("%w: offset %d, written %d", ErrOutOfRange, offset, b.pos)
	}

	frontier := b.pos
	b.pos = offset
	b.Uint32(value)
	b.pos = frontier
	return nil
}

// Link writes the resolved address of every relocation into its placeholder.
func (b *Buffer) Link(resolve Resolver) error {
	if b.linked {
		return ErrLinked
	}
	if b.err != nil {
		return b.err
	}

	for _, reloc := range b.relocations {
		address, err := resolve(reloc.Symbol)
		if err != nil {
			return fmt.Errorf("resolving %s at offset %d: %w", reloc.Symbol, reloc.Offset, err)
		}
		binary.LittleEndian.PutUint64(b.buf[reloc.Offset:], address)
	}

	b.linked = true
	return nil
}

// Reset clears the written content and all relocations.
func (b *Buffer) Reset() {
	clear(b.buf[:b.pos])
	b.pos = 0
	b.err = nil
	b.linked = false
	b.relocations = nil
}

func (b *Buffer) reserve(n int) bool {
	if b.err != nil {
		return false
	}
	if b.pos+n > len(b.buf) {
		b.err = fmt.Errorf("%w: writing %d bytes at offset %d of %d", ErrCapacity, n, b.pos, len(b.buf))
		return false
	}
	return true
}
