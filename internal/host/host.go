// Package host provides the native entry points that generated code calls for
// input and output. The entry points are created once per process and dispatch
// to the handler registered for the handle that the code passes along.
package host

import (
	"sync"
	"sync/atomic"

	"github.com/ebitengine/purego"
)

// Handler implements the I/O operations of a running program.
type Handler interface {
	// Input returns the byte to store into the current cell, which holds current.
	Input(current byte) byte
	// Output writes the value of the current cell.
	Output(value byte)
}

// Handle identifies a registered handler. The zero value is never assigned.
type Handle uintptr

var (
	handlers sync.Map // Handle -> Handler
	next     atomic.Uintptr

	callbacks sync.Once
	input     uintptr
	output    uintptr
)

// Register makes the handler reachable from generated code through the returned handle.
func Register(h Handler) Handle {
	handle := Handle(next.Add(1))
	handlers.Store(handle, h)
	return handle
}

// Unregister removes the handler of the handle.
func Unregister(handle Handle) {
	handlers.Delete(handle)
}

// Lookup returns the handler registered for the handle.
func Lookup(handle Handle) (Handler, bool) {
	h, ok := handlers.Load(handle)
	if !ok {
		return nil, false
	}
	return h.(Handler), true
}

// InputAddress returns the native address of the input routine.
func InputAddress() uintptr {
	createCallbacks()
	return input
}

// OutputAddress returns the native address of the output routine.
func OutputAddress() uintptr {
	createCallbacks()
	return output
}

// purego limits the number of callbacks per process and never releases them.
func createCallbacks() {
	callbacks.Do(func() {
		input = purego.NewCallback(dispatchInput)
		output = purego.NewCallback(dispatchOutput)
	})
}

// dispatchInput returns the current cell unchanged when the handle is unknown.
func dispatchInput(handle, current uintptr) uintptr {
	h, ok := Lookup(Handle(handle))
	if !ok {
		return current & 0xff
	}
	return uintptr(h.Input(byte(current)))
}

func dispatchOutput(handle, value uintptr) uintptr {
	if h, ok := Lookup(Handle(handle)); ok {
		h.Output(byte(value))
	}
	return 0
}
