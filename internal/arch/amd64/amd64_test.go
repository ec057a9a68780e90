package amd64

import (
	"testing"

	"github.com/retroenv/bfjit/internal/emitter"
	"github.com/retroenv/retrogolib/assert"
)

func newTestAssembler(convention CallingConvention) (*Assembler, *emitter.Buffer) {
	buf := emitter.New(make([]byte, 256))
	return New(buf, convention), buf
}

func TestEncoding(t *testing.T) {
	tests := []struct {
		name string
		emit func(a *Assembler)
		want []byte
	}{
		{
			name: "add cursor",
			emit: func(a *Assembler) { a.AddCursor(0x1234) },
			want: []byte{0x66, 0x81, 0xc3, 0x34, 0x12},
		},
		{
			name: "sub cursor",
			emit: func(a *Assembler) { a.SubCursor(1) },
			want: []byte{0x66, 0x81, 0xeb, 0x01, 0x00},
		},
		{
			name: "add cell",
			emit: func(a *Assembler) { a.AddCell(3) },
			want: []byte{0x80, 0x04, 0x2b, 0x03},
		},
		{
			name: "sub cell",
			emit: func(a *Assembler) { a.SubCell(0xff) },
			want: []byte{0x80, 0x2c, 0x2b, 0xff},
		},
		{
			name: "compare cell",
			emit: func(a *Assembler) { a.CompareCellZero() },
			want: []byte{0x80, 0x3c, 0x2b, 0x00},
		},
		{
			name: "epilogue",
			emit: func(a *Assembler) { a.Epilogue() },
			want: []byte{0x0f, 0xb7, 0xc3, 0x41, 0x5c, 0x5d, 0x5b, 0xc3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, buf := newTestAssembler(SysV)
			tt.emit(a)
			assert.NoError(t, buf.Err())
			assert.Equal(t, tt.want, buf.Code())
		})
	}
}

func TestPrologue(t *testing.T) {
	a, buf := newTestAssembler(SysV)
	a.Prologue()

	want := []byte{
		0x53, 0x55, 0x41, 0x54,             // push rbx, push rbp, push r12
		0x31, 0xdb,                         // xor ebx, ebx
		0x48, 0xbd, 0, 0, 0, 0, 0, 0, 0, 0, // mov rbp, tape
		0x49, 0xbc, 0, 0, 0, 0, 0, 0, 0, 0, // mov r12, context
	}
	assert.Equal(t, want, buf.Code())
	assert.Equal(t, []emitter.Relocation{
		{Offset: 8, Symbol: emitter.TapeBase},
		{Offset: 18, Symbol: emitter.HostContext},
	}, buf.Relocations())
}

func TestHostCalls(t *testing.T) {
	tests := []struct {
		name       string
		convention CallingConvention
		emit       func(a *Assembler)
		want       []byte
		reloc      emitter.Relocation
	}{
		{
			name:       "sysv output",
			convention: SysV,
			emit:       func(a *Assembler) { a.CallOutput() },
			want: []byte{
				0x4c, 0x89, 0xe7,                   // mov rdi, r12
				0x0f, 0xb6, 0x34, 0x2b,             // movzx esi, byte [rbx+rbp]
				0x48, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, // mov rax, routine
				0xff, 0xd0,                         // call rax
			},
			reloc: emitter.Relocation{Offset: 9, Symbol: emitter.OutputRoutine},
		},
		{
			name:       "sysv input",
			convention: SysV,
			emit:       func(a *Assembler) { a.CallInput() },
			want: []byte{
				0x4c, 0x89, 0xe7,
				0x0f, 0xb6, 0x34, 0x2b,
				0x48, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0,
				0xff, 0xd0,
				0x88, 0x04, 0x2b, // mov [rbx+rbp], al
			},
			reloc: emitter.Relocation{Offset: 9, Symbol: emitter.InputRoutine},
		},
		{
			name:       "win64 output",
			convention: Win64,
			emit:       func(a *Assembler) { a.CallOutput() },
			want: []byte{
				0x4c, 0x89, 0xe1,       // mov rcx, r12
				0x0f, 0xb6, 0x14, 0x2b, // movzx edx, byte [rbx+rbp]
				0x48, 0x83, 0xec, 0x20, // sub rsp, 32
				0x48, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0,
				0xff, 0xd0,
				0x48, 0x83, 0xc4, 0x20, // add rsp, 32
			},
			reloc: emitter.Relocation{Offset: 13, Symbol: emitter.OutputRoutine},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, buf := newTestAssembler(tt.convention)
			tt.emit(a)
			assert.Equal(t, tt.want, buf.Code())
			assert.Equal(t, []emitter.Relocation{tt.reloc}, buf.Relocations())
		})
	}
}

func TestJumps(t *testing.T) {
	a, buf := newTestAssembler(SysV)

	a.CompareCellZero()
	placeholder := a.JumpIfZero()
	bodyStart := buf.Offset()
	a.AddCell(1)
	a.CompareCellZero()
	a.JumpIfNotZero(bodyStart)
	end := buf.Offset()
	assert.NoError(t, a.PatchJump(placeholder, end))

	want := []byte{
		0x80, 0x3c, 0x2b, 0x00,
		0x0f, 0x84, 0x0e, 0x00, 0x00, 0x00, // je +14
		0x80, 0x04, 0x2b, 0x01,
		0x80, 0x3c, 0x2b, 0x00,
		0x0f, 0x85, 0xf2, 0xff, 0xff, 0xff, // jne -14
	}
	assert.Equal(t, 6, placeholder)
	assert.Equal(t, want, buf.Code())

	assert.Error(t, a.PatchJump(end, end))
}

func TestParseCallingConvention(t *testing.T) {
	conv, err := ParseCallingConvention("Win64")
	assert.NoError(t, err)
	assert.Equal(t, Win64, conv)

	conv, err = ParseCallingConvention("sysv")
	assert.NoError(t, err)
	assert.Equal(t, SysV, conv)
	assert.Equal(t, "sysv", conv.String())

	conv, err = ParseCallingConvention("")
	assert.NoError(t, err)
	assert.Equal(t, DefaultCallingConvention(), conv)

	_, err = ParseCallingConvention("cdecl")
	assert.ErrorContains(t, err, "unsupported calling convention")
}
