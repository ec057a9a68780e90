package compiler

import (
	"encoding/binary"
	"fmt"

	"github.com/retroenv/bfjit/internal/emitter"
)

// machine decodes and executes the subset of x86-64 that the compiler emits, so
// that the semantics of generated code can be tested on every host.
type machine struct {
	code   []byte
	routes map[int]emitter.Symbol
	tape   [1 << 16]byte
	cursor uint16
	zero   bool
	al     byte
	input  []byte
	output []byte
	steps  int
}

const maxMachineSteps = 10_000_000

func newMachine(p *Program, input []byte) *machine {
	m := &machine{
		code:   p.Code(),
		routes: make(map[int]emitter.Symbol),
		input:  input,
	}
	for _, reloc := range p.Relocations() {
		m.routes[reloc.Offset] = reloc.Symbol
	}
	return m
}

func (m *machine) cell() *byte {
	return &m.tape[m.cursor]
}

// run executes until the final ret and returns the value of eax.
func (m *machine) run() (uint32, error) {
	var eax uint32
	pc := 0

	for {
		m.steps++
		if m.steps > maxMachineSteps {
			return 0, fmt.Errorf("step limit reached at offset %d", pc)
		}
		if pc < 0 || pc >= len(m.code) {
			return 0, fmt.Errorf("program counter %d outside code", pc)
		}

		code := m.code[pc:]
		switch {
		case code[0] == 0x53, code[0] == 0x55, code[0] == 0x5b, code[0] == 0x5d:
			pc++
		case code[0] == 0xc3:
			return eax, nil
		case match(code, 0x41, 0x54), match(code, 0x41, 0x5c):
			pc += 2
		case match(code, 0x31, 0xdb):
			m.cursor = 0
			pc += 2
		case match(code, 0x48, 0xbd), match(code, 0x49, 0xbc):
			pc += 10
		case match(code, 0x66, 0x81, 0xc3):
			m.cursor += binary.LittleEndian.Uint16(code[3:])
			pc += 5
		case match(code, 0x66, 0x81, 0xeb):
			m.cursor -= binary.LittleEndian.Uint16(code[3:])
			pc += 5
		case match(code, 0x80, 0x04, 0x2b):
			*m.cell() += code[3]
			pc += 4
		case match(code, 0x80, 0x2c, 0x2b):
			*m.cell() -= code[3]
			pc += 4
		case match(code, 0x80, 0x3c, 0x2b, 0x00):
			m.zero = *m.cell() == 0
			pc += 4
		case match(code, 0x0f, 0x84):
			pc += 6
			if m.zero {
				pc += int(int32(binary.LittleEndian.Uint32(code[2:])))
			}
		case match(code, 0x0f, 0x85):
			pc += 6
			if !m.zero {
				pc += int(int32(binary.LittleEndian.Uint32(code[2:])))
			}
		case match(code, 0x4c, 0x89, 0xe7), match(code, 0x4c, 0x89, 0xe1):
			pc += 3
		case match(code, 0x0f, 0xb6, 0x34, 0x2b), match(code, 0x0f, 0xb6, 0x14, 0x2b):
			pc += 4
		case match(code, 0x48, 0x83, 0xec, 0x20), match(code, 0x48, 0x83, 0xc4, 0x20):
			pc += 4
		case match(code, 0x48, 0xb8):
			if err := m.call(pc+2, code); err != nil {
				return 0, err
			}
			pc += 12
		case match(code, 0x88, 0x04, 0x2b):
			*m.cell() = m.al
			pc += 3
		case match(code, 0x0f, 0xb7, 0xc3):
			eax = uint32(m.cursor)
			pc += 3
		default:
			return 0, fmt.Errorf("unknown instruction % x at offset %d", code[:min(4, len(code))], pc)
		}
	}
}

func (m *machine) call(relocation int, code []byte) error {
	if !match(code[10:], 0xff, 0xd0) {
		return fmt.Errorf("mov rax not followed by call at offset %d", relocation-2)
	}

	switch m.routes[relocation] {
	case emitter.OutputRoutine:
		m.output = append(m.output, *m.cell())
	case emitter.InputRoutine:
		if len(m.input) == 0 {
			m.al = 0xff
			return nil
		}
		m.al = m.input[0]
		m.input = m.input[1:]
	default:
		return fmt.Errorf("call without routine relocation at offset %d", relocation)
	}
	return nil
}

func match(code []byte, prefix ...byte) bool {
	if len(code) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if code[i] != b {
			return false
		}
	}
	return true
}
