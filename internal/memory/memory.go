// Package memory manages page-aligned native memory regions that can be switched
// between writable and executable. A region is never writable and executable at
// the same time.
package memory

import (
	"errors"
	"fmt"
	"os"
	"unsafe"
)

var (
	// ErrNotWritable is returned when writing to a finalized region.
	ErrNotWritable = errors.New("memory region is not writable")
	// ErrNotExecutable is returned when requesting the entry point of a region that was not finalized.
	ErrNotExecutable = errors.New("memory region is not executable")
	// ErrFreed is returned when using a region after Free.
	ErrFreed = errors.New("memory region has been freed")
	// ErrUnsupported is returned on platforms without native memory protection support.
	ErrUnsupported = errors.New("native memory regions are not supported on this platform")
)

// State is the access capability of a region.
type State int

// Region states.
const (
	Writable   State = iota // read and write, not executable
	Executable              // read and execute, not writable
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case Writable:
		return "writable"
	case Executable:
		return "executable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Region is a native memory mapping outside of the Go heap, so its address is
// stable and can be embedded into generated code.
type Region struct {
	mem   []byte
	state State
}

// Allocate maps a new writable region of at least size bytes, rounded up to the page size.
func Allocate(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid region size %d", size)
	}

	pageSize := os.Getpagesize()
	size = (size + pageSize - 1) / pageSize * pageSize

	mem, err := mapMemory(size)
	if err != nil {
		return nil, fmt.Errorf("mapping %d bytes: %w", size, err)
	}
	return &Region{
		mem:   mem,
		state: Writable,
	}, nil
}

// Size returns the size of the region in bytes.
func (r *Region) Size() int {
	return len(r.mem)
}

// State returns the current access capability.
func (r *Region) State() State {
	return r.state
}

// Address returns the base address of the region.
func (r *Region) Address() (uintptr, error) {
	if r.mem == nil {
		return 0, ErrFreed
	}
	return uintptr(unsafe.Pointer(&r.mem[0])), nil
}

// Writable returns the region content for writing.
func (r *Region) Writable() ([]byte, error) {
	if r.mem == nil {
		return nil, ErrFreed
	}
	if r.state != Writable {
		return nil, ErrNotWritable
	}
	return r.mem, nil
}

// Finalize removes write access and grants execute access.
func (r *Region) Finalize() error {
	if r.mem == nil {
		return ErrFreed
	}
	if r.state != Writable {
		return ErrNotWritable
	}
	if err := protect(r.mem, true); err != nil {
		return fmt.Errorf("making region executable: %w", err)
	}
	r.state = Executable
	return nil
}

// Unfinalize removes execute access and grants write access again.
func (r *Region) Unfinalize() error {
	if r.mem == nil {
		return ErrFreed
	}
	if r.state != Executable {
		return nil
	}
	if err := protect(r.mem, false); err != nil {
		return fmt.Errorf("making region writable: %w", err)
	}
	r.state = Writable
	return nil
}

// Entry returns the address of the first byte of a finalized region.
func (r *Region) Entry() (uintptr, error) {
	if r.mem == nil {
		return 0, ErrFreed
	}
	if r.state != Executable {
		return 0, ErrNotExecutable
	}
	return r.Address()
}

// Free unmaps the region. Freeing a region twice is a no-op.
func (r *Region) Free() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	if err := unmapMemory(mem); err != nil {
		return fmt.Errorf("unmapping region: %w", err)
	}
	return nil
}
