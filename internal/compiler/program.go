package compiler

import (
	"github.com/retroenv/bfjit/internal/emitter"
)

// Stats contains information about a translated program.
type Stats struct {
	SourceSize   int // bytes of source text
	Instructions int // instruction characters, comments excluded
	Loops        int
	MaxDepth     int // deepest loop nesting
	CodeSize     int // bytes of generated machine code
}

// Program is the machine code generated for a source program. The code contains
// zeroed placeholders for absolute addresses until Link is called.
type Program struct {
	buf *emitter.Buffer

	Stats Stats
}

// Code returns the generated machine code.
func (p *Program) Code() []byte {
	return p.buf.Code()
}

// Size returns the number of generated bytes.
func (p *Program) Size() int {
	return p.buf.Len()
}

// Relocations returns the absolute address placeholders of the code.
func (p *Program) Relocations() []emitter.Relocation {
	return p.buf.Relocations()
}

// Link writes the addresses returned by resolve into all placeholders.
func (p *Program) Link(resolve emitter.Resolver) error {
	return p.buf.Link(resolve)
}
