// Package amd64 encodes the x86-64 instructions used by the tape language translator.
//
// Register usage of generated code:
//
//	rbx  tape cursor, only the low 16 bits are ever non-zero
//	rbp  tape base address
//	r12  host context handle, first argument of host routine calls
//
// All three are callee-saved in both supported calling conventions, so their
// values survive calls into the host routines.
package amd64

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/retroenv/bfjit/internal/emitter"
)

// CallingConvention describes how the host routines expect their arguments.
type CallingConvention int

// Supported calling conventions.
const (
	SysV  CallingConvention = iota // System V AMD64, used by Linux, macOS and the BSDs
	Win64                          // Microsoft x64
)

// shadowSpace is the stack area that Win64 callers reserve for the callee.
const shadowSpace = 32

// DefaultCallingConvention returns the calling convention of the host operating system.
func DefaultCallingConvention() CallingConvention {
	if runtime.GOOS == "windows" {
		return Win64
	}
	return SysV
}

// ParseCallingConvention converts a name to a calling convention. An empty name
// returns the host default.
func ParseCallingConvention(name string) (CallingConvention, error) {
	switch strings.ToLower(name) {
	case "":
		return DefaultCallingConvention(), nil
	case "sysv":
		return SysV, nil
	case "win64":
		return Win64, nil
	default:
		return 0, fmt.Errorf("unsupported calling convention: %s. Valid options: sysv, win64", name)
	}
}

// String returns the name of the calling convention.
func (c CallingConvention) String() string {
	switch c {
	case SysV:
		return "sysv"
	case Win64:
		return "win64"
	default:
		return fmt.Sprintf("convention(%d)", int(c))
	}
}

// Instruction bytes. Memory operands address the current cell as [rbx+rbp*1]:
// ModRM selects a SIB byte, SIB 0x2b encodes base rbx and index rbp.
const (
	sibCell = 0x2b

	opPushRBX  = 0x53
	opPushRBP  = 0x55
	opPopRBX   = 0x5b
	opPopRBP   = 0x5d
	opRet      = 0xc3
	opOperand  = 0x66 // 16 bit operand size prefix
	opRexW     = 0x48
	opRexWB    = 0x49
	opRexB     = 0x41
	opRexWR    = 0x4c
	opGroup1   = 0x81 // add/sub r/m, imm
	opGroup1B  = 0x80 // add/sub/cmp r/m8, imm8
	opGroup1S  = 0x83 // add/sub r/m, imm8 sign extended
	opMovStore = 0x88 // mov r/m8, r8
	opMovReg   = 0x89 // mov r/m, r
	opXor      = 0x31
	opEscape   = 0x0f
	opJE       = 0x84 // after 0x0f
	opJNE      = 0x85 // after 0x0f
	opMovzxB   = 0xb6 // after 0x0f
	opMovzxW   = 0xb7 // after 0x0f
	opMovRAX   = 0xb8 // mov rax, imm64
	opMovRBP   = 0xbd // mov rbp, imm64
	opMovR12   = 0xbc // mov r12, imm64 with REX.WB
	opPushR12  = 0x54 // with REX.B
	opPopR12   = 0x5c // with REX.B
	opCallRAX  = 0xd0 // after 0xff
	opGroup5   = 0xff

	modRMCellAdd = 0x04 // /0 [sib]
	modRMCellAL  = 0x04 // al, [sib]
	modRMCellSub = 0x2c // /5 [sib]
	modRMCellCmp = 0x3c // /7 [sib]
	modRMAddBX   = 0xc3 // /0 bx
	modRMSubBX   = 0xeb // /5 bx
	modRMXorEBX  = 0xdb // ebx, ebx
	modRMAddRSP  = 0xc4 // /0 rsp
	modRMSubRSP  = 0xec // /5 rsp
	modRMMovEAX  = 0xc3 // eax, bx
)

// jumpSize is the size of a near conditional jump: 0x0f, condition, rel32.
const jumpSize = 6

// Assembler writes instructions into a code buffer.
type Assembler struct {
	buf        *emitter.Buffer
	convention CallingConvention
}

// New returns an assembler that writes to buf using the given calling convention
// for host routine calls.
func New(buf *emitter.Buffer, convention CallingConvention) *Assembler {
	return &Assembler{
		buf:        buf,
		convention: convention,
	}
}

// Prologue saves the callee-saved registers and loads cursor, tape base and host
// context. After the three pushes the stack is 16 byte aligned for calls.
func (a *Assembler) Prologue() {
	a.buf.Bytes(opPushRBX, opPushRBP, opRexB, opPushR12)
	a.buf.Bytes(opXor, modRMXorEBX)

	a.buf.Bytes(opRexW, opMovRBP)
	a.buf.Relocate(emitter.TapeBase)

	a.buf.Bytes(opRexWB, opMovR12)
	a.buf.Relocate(emitter.HostContext)
}

// Epilogue returns the final cursor in eax, restores the saved registers and returns.
func (a *Assembler) Epilogue() {
	a.buf.Bytes(opEscape, opMovzxW, modRMMovEAX)
	a.buf.Bytes(opRexB, opPopR12, opPopRBP, opPopRBX)
	a.buf.Byte(opRet)
}

// AddCursor emits add bx, n.
func (a *Assembler) AddCursor(n uint16) {
	a.buf.Bytes(opOperand, opGroup1, modRMAddBX)
	a.buf.Uint16(n)
}

// SubCursor emits sub bx, n.
func (a *Assembler) SubCursor(n uint16) {
	a.buf.Bytes(opOperand, opGroup1, modRMSubBX)
	a.buf.Uint16(n)
}

// AddCell emits add byte [rbx+rbp], n.
func (a *Assembler) AddCell(n uint8) {
	a.buf.Bytes(opGroup1B, modRMCellAdd, sibCell, n)
}

// SubCell emits sub byte [rbx+rbp], n.
func (a *Assembler) SubCell(n uint8) {
	a.buf.Bytes(opGroup1B, modRMCellSub, sibCell, n)
}

// CompareCellZero emits cmp byte [rbx+rbp], 0.
func (a *Assembler) CompareCellZero() {
	a.buf.Bytes(opGroup1B, modRMCellCmp, sibCell, 0)
}

// JumpIfZero emits je rel32 with a zero displacement and returns the offset of the
// displacement for patching.
func (a *Assembler) JumpIfZero() int {
	a.buf.Bytes(opEscape, opJE)
	placeholder := a.buf.Offset()
	a.buf.Uint32(0)
	return placeholder
}

// JumpIfNotZero emits jne rel32 to the absolute buffer offset target.
func (a *Assembler) JumpIfNotZero(target int) {
	next := a.buf.Offset() + jumpSize
	a.buf.Bytes(opEscape, opJNE)
	a.buf.Uint32(uint32(int32(target - next)))
}

// PatchJump sets the rel32 displacement at placeholder to reach target.
func (a *Assembler) PatchJump(placeholder, target int) error {
	rel := int32(target - (placeholder + 4))
	if err := a.buf.PatchUint32(placeholder, uint32(rel)); err != nil {
		return fmt.Errorf("patching jump at offset %d: %w", placeholder, err)
	}
	return nil
}

// CallOutput passes the host context and the current cell to the output routine.
func (a *Assembler) CallOutput() {
	a.loadArguments()
	a.call(emitter.OutputRoutine)
}

// CallInput passes the host context and the current cell to the input routine and
// stores the returned byte in the current cell.
func (a *Assembler) CallInput() {
	a.loadArguments()
	a.call(emitter.InputRoutine)
	a.buf.Bytes(opMovStore, modRMCellAL, sibCell)
}

// loadArguments emits mov arg0, r12 and movzx arg1, byte [rbx+rbp].
func (a *Assembler) loadArguments() {
	switch a.convention {
	case Win64:
		a.buf.Bytes(opRexWR, opMovReg, 0xe1)           // mov rcx, r12
		a.buf.Bytes(opEscape, opMovzxB, 0x14, sibCell) // movzx edx, byte [rbx+rbp]
	default:
		a.buf.Bytes(opRexWR, opMovReg, 0xe7)           // mov rdi, r12
		a.buf.Bytes(opEscape, opMovzxB, 0x34, sibCell) // movzx esi, byte [rbx+rbp]
	}
}

func (a *Assembler) call(routine emitter.Symbol) {
	if a.convention == Win64 {
		a.buf.Bytes(opRexW, opGroup1S, modRMSubRSP, shadowSpace)
	}

	a.buf.Bytes(opRexW, opMovRAX)
	a.buf.Relocate(routine)
	a.buf.Bytes(opGroup5, opCallRAX)

	if a.convention == Win64 {
		a.buf.Bytes(opRexW, opGroup1S, modRMAddRSP, shadowSpace)
	}
}
