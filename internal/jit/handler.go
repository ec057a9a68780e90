package jit

import (
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/bfjit/internal/options"
)

type flusher interface {
	Flush() error
}

// handler implements the host routines of a runtime.
type handler struct {
	in  io.ByteReader
	out io.ByteWriter
	eof options.EOF
	err error // first I/O error of the current run
}

// Input flushes pending output so that prompts are visible before blocking on input.
func (h *handler) Input(current byte) byte {
	h.flush()

	if h.in != nil {
		b, err := h.in.ReadByte()
		if err == nil {
			return b
		}
		if !errors.Is(err, io.EOF) {
			h.setErr(fmt.Errorf("reading input: %w", err))
		}
	}

	switch h.eof {
	case options.EOFZero:
		return 0
	case options.EOFUnchanged:
		return current
	default:
		return 0xff
	}
}

func (h *handler) Output(value byte) {
	if h.out == nil {
		return
	}
	if err := h.out.WriteByte(value); err != nil {
		h.setErr(fmt.Errorf("writing output: %w", err))
	}
}

func (h *handler) flush() {
	f, ok := h.out.(flusher)
	if !ok {
		return
	}
	if err := f.Flush(); err != nil {
		h.setErr(fmt.Errorf("flushing output: %w", err))
	}
}

func (h *handler) setErr(err error) {
	if h.err == nil {
		h.err = err
	}
}
