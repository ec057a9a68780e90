// Package jit compiles tape language programs into native memory and executes
// them in-process.
package jit

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/ebitengine/purego"
	"github.com/retroenv/bfjit/internal/compiler"
	"github.com/retroenv/bfjit/internal/emitter"
	"github.com/retroenv/bfjit/internal/host"
	"github.com/retroenv/bfjit/internal/memory"
	"github.com/retroenv/bfjit/internal/options"
	"github.com/retroenv/bfjit/internal/source"
	"github.com/retroenv/retrogolib/log"
)

// TapeSize is the number of cells of the tape.
const TapeSize = 1 << 16

var (
	// ErrNotReset is returned when compiling while a program is loaded.
	ErrNotReset = errors.New("a program is loaded, the runtime has to be reset first")
	// ErrNoProgram is returned when running without a successfully compiled program.
	ErrNoProgram = errors.New("no program is loaded")
	// ErrUnsupportedPlatform is returned when the host can not execute x86-64 code.
	ErrUnsupportedPlatform = errors.New("native execution requires an amd64 host")
)

// Result contains the state of a program after it returned.
type Result struct {
	Cursor uint16 // final cursor position
}

// Runtime owns the code region and the tape of one program at a time.
// A runtime must not be used concurrently.
type Runtime struct {
	logger   *log.Logger
	opts     options.Runtime
	compiler *compiler.Compiler

	code   *memory.Region
	buf    *emitter.Buffer // writes into the code region
	tape   *memory.Region
	io     *handler
	handle host.Handle

	program *compiler.Program
}

// New returns a runtime that reads program input from in and writes program
// output to out. A nil reader behaves like an exhausted input.
func New(logger *log.Logger, opts options.Runtime, in io.ByteReader, out io.ByteWriter) (*Runtime, error) {
	if runtime.GOARCH != "amd64" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, runtime.GOARCH)
	}

	code, err := memory.Allocate(opts.CodeSize)
	if err != nil {
		return nil, fmt.Errorf("allocating code region: %w", err)
	}
	mem, err := code.Writable()
	if err != nil {
		_ = code.Free()
		return nil, fmt.Errorf("getting code region: %w", err)
	}
	tape, err := memory.Allocate(TapeSize)
	if err != nil {
		_ = code.Free()
		return nil, fmt.Errorf("allocating tape: %w", err)
	}

	h := &handler{
		in:  in,
		out: out,
		eof: opts.EOF,
	}
	r := &Runtime{
		logger:   logger,
		opts:     opts,
		compiler: compiler.New(logger, opts.Convention),
		code:     code,
		buf:      emitter.New(mem),
		tape:     tape,
		io:       h,
		handle:   host.Register(h),
	}

	logger.Debug("Created runtime",
		log.Int("code_capacity", r.buf.Cap()),
		log.String("eof", opts.EOF.String()),
		log.String("convention", opts.Convention.String()),
	)
	return r, nil
}

// Compile translates the source into the code region, links it and makes it
// executable. On error no program is loaded and the runtime can compile again.
func (r *Runtime) Compile(src []byte) (*compiler.Program, error) {
	if r.program != nil {
		return nil, ErrNotReset
	}

	if _, err := r.code.Writable(); err != nil {
		return nil, fmt.Errorf("getting code region: %w", err)
	}

	program, err := r.compiler.Compile(source.Source(src), r.buf)
	if err != nil {
		r.buf.Reset()
		return nil, fmt.Errorf("compiling: %w", err)
	}

	if err := program.Link(r.resolve); err != nil {
		r.buf.Reset()
		return nil, fmt.Errorf("linking: %w", err)
	}

	if err := r.code.Finalize(); err != nil {
		r.buf.Reset()
		return nil, fmt.Errorf("finalizing: %w", err)
	}

	r.program = program
	r.logger.Debug("Loaded program",
		log.Int("code_size", program.Size()),
		log.Int("relocations", len(program.Relocations())),
	)
	return program, nil
}

// resolve returns the absolute address of a relocation symbol.
func (r *Runtime) resolve(symbol emitter.Symbol) (uint64, error) {
	switch symbol {
	case emitter.TapeBase:
		addr, err := r.tape.Address()
		return uint64(addr), err
	case emitter.HostContext:
		return uint64(r.handle), nil
	case emitter.InputRoutine:
		return uint64(host.InputAddress()), nil
	case emitter.OutputRoutine:
		return uint64(host.OutputAddress()), nil
	default:
		return 0, fmt.Errorf("unknown symbol %s", symbol)
	}
}

// Run executes the loaded program on the calling goroutine until it returns.
// Errors of the output writer that occurred during the run are returned after
// the program finished.
func (r *Runtime) Run() (Result, error) {
	if r.program == nil {
		return Result{}, ErrNoProgram
	}
	entry, err := r.code.Entry()
	if err != nil {
		return Result{}, fmt.Errorf("getting entry point: %w", err)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r.io.err = nil
	ret, _, _ := purego.SyscallN(entry)
	r.io.flush()

	result := Result{
		Cursor: uint16(ret),
	}
	r.logger.Debug("Program returned", log.Uint16("cursor", result.Cursor))
	return result, r.io.err
}

// Reset unloads the program and clears the code region and the tape.
func (r *Runtime) Reset() error {
	if err := r.code.Unfinalize(); err != nil {
		return fmt.Errorf("resetting code region: %w", err)
	}
	r.buf.Reset()

	tape, err := r.tape.Writable()
	if err != nil {
		return fmt.Errorf("getting tape: %w", err)
	}
	clear(tape)

	r.program = nil
	r.io.err = nil
	return nil
}

// Tape returns the cells of the tape.
func (r *Runtime) Tape() []byte {
	tape, err := r.tape.Writable()
	if err != nil {
		return nil
	}
	return tape[:TapeSize]
}

// Program returns the loaded program or nil.
func (r *Runtime) Program() *compiler.Program {
	return r.program
}

// Close releases all native resources of the runtime.
func (r *Runtime) Close() error {
	host.Unregister(r.handle)
	r.program = nil

	codeErr := r.code.Free()
	tapeErr := r.tape.Free()
	if err := errors.Join(codeErr, tapeErr); err != nil {
		return fmt.Errorf("freeing runtime memory: %w", err)
	}
	return nil
}
