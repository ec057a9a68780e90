//go:build windows

package memory

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func mapMemory(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func protect(mem []byte, executable bool) error {
	var prot uint32 = windows.PAGE_READWRITE
	if executable {
		prot = windows.PAGE_EXECUTE_READ
	}
	var old uint32
	addr := uintptr(unsafe.Pointer(&mem[0]))
	return windows.VirtualProtect(addr, uintptr(len(mem)), prot, &old)
}

func unmapMemory(mem []byte) error {
	addr := uintptr(unsafe.Pointer(&mem[0]))
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
