// Package compiler translates tape language programs into x86-64 machine code.
package compiler

import (
	"fmt"

	"github.com/retroenv/bfjit/internal/arch/amd64"
	"github.com/retroenv/bfjit/internal/emitter"
	"github.com/retroenv/bfjit/internal/source"
	"github.com/retroenv/retrogolib/log"
)

// Compiler translates source programs in a single forward pass.
type Compiler struct {
	logger     *log.Logger
	convention amd64.CallingConvention
}

// openLoop is a '[' whose jump displacement is not known yet.
type openLoop struct {
	placeholder int // offset of the rel32 displacement of the forward jump
	body        int // offset of the first instruction of the loop body
	location    source.Location
}

// New returns a compiler that emits host routine calls for the given calling convention.
func New(logger *log.Logger, convention amd64.CallingConvention) *Compiler {
	return &Compiler{
		logger:     logger,
		convention: convention,
	}
}

// Compile translates src into the empty buffer buf, whose capacity limits the size
// of the generated program. On error the content of buf is undefined and must not
// be executed.
func (c *Compiler) Compile(src source.Source, buf *emitter.Buffer) (*Program, error) {
	if buf.Len() != 0 {
		return nil, fmt.Errorf("%w: code buffer contains %d bytes", ErrBufferInUse, buf.Len())
	}

	asm := amd64.New(buf, c.convention)
	stats := Stats{
		SourceSize:   len(src),
		Instructions: src.Instructions(),
	}

	var loops []openLoop
	asm.Prologue()

	scanner := source.NewScanner(src)
	for !scanner.Done() {
		consumed := 1

		switch char := scanner.Peek(); char {
		case source.MoveRight, source.MoveLeft, source.Increment, source.Decrement:
			consumed = scanner.Run()
			emitRun(asm, char, consumed)

		case source.Output:
			asm.CallOutput()

		case source.Input:
			asm.CallInput()

		case source.LoopStart:
			asm.CompareCellZero()
			placeholder := asm.JumpIfZero()
			loops = append(loops, openLoop{
				placeholder: placeholder,
				body:        buf.Offset(),
				location:    scanner.Location(),
			})
			stats.Loops++
			stats.MaxDepth = max(stats.MaxDepth, len(loops))

		case source.LoopEnd:
			if len(loops) == 0 {
				return nil, &UnmatchedError{Bracket: source.LoopEnd, Location: scanner.Location()}
			}
			loop := loops[len(loops)-1]
			loops = loops[:len(loops)-1]

			asm.CompareCellZero()
			asm.JumpIfNotZero(loop.body)
			if err := buf.Err(); err != nil {
				return nil, invalidSource(err)
			}
			if err := asm.PatchJump(loop.placeholder, buf.Offset()); err != nil {
				return nil, invalidSource(err)
			}
		}

		scanner.Advance(consumed)
	}

	if len(loops) > 0 {
		innermost := loops[len(loops)-1]
		return nil, &UnmatchedError{Bracket: source.LoopStart, Location: innermost.location}
	}

	asm.Epilogue()
	if err := buf.Err(); err != nil {
		return nil, invalidSource(err)
	}

	stats.CodeSize = buf.Len()
	c.logger.Debug("Translated program",
		log.Int("source_size", stats.SourceSize),
		log.Int("instructions", stats.Instructions),
		log.Int("loops", stats.Loops),
		log.Int("code_size", stats.CodeSize),
	)

	return &Program{
		buf:   buf,
		Stats: stats,
	}, nil
}

// emitRun emits a single instruction for a run of n identical characters. Cell
// arithmetic wraps at 256 and cursor arithmetic at 65536, so the run length is
// reduced to the immediate width; a run that wraps around completely is a no-op.
func emitRun(asm *amd64.Assembler, char byte, n int) {
	switch char {
	case source.MoveRight:
		if delta := uint16(n); delta != 0 {
			asm.AddCursor(delta)
		}
	case source.MoveLeft:
		if delta := uint16(n); delta != 0 {
			asm.SubCursor(delta)
		}
	case source.Increment:
		if delta := uint8(n); delta != 0 {
			asm.AddCell(delta)
		}
	case source.Decrement:
		if delta := uint8(n); delta != 0 {
			asm.SubCell(delta)
		}
	}
}
