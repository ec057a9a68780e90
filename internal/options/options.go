// Package options contains the program options.
package options

import (
	"fmt"
	"strings"

	"github.com/retroenv/bfjit/internal/arch/amd64"
)

// DefaultCodeSize is the default capacity of the code region in bytes.
const DefaultCodeSize = 1 << 20

// Positional contains positional arguments.
type Positional struct {
	File string `arg:"positional" usage:"program file to run, starts the interactive mode if omitted"`
}

// Parameters contains file path options.
type Parameters struct {
	Dump   string `flag:"dump" usage:"write the generated machine code as hex to this file"`
	Config string `flag:"c" usage:"configuration file"`
}

// Flags contains behavior options. Zero values are replaced by the
// configuration file or the defaults.
type Flags struct {
	EOF        string `flag:"eof" usage:"cell value at end of input: minus-one, zero, unchanged (default: minus-one)"`
	CodeSize   int    `flag:"code-size" usage:"capacity of the code region in bytes (default: 1048576)"`
	Convention string `flag:"convention" usage:"calling convention of the host routines: sysv, win64 (default: host)"`
	NoClear    bool   `flag:"noclear" usage:"do not clear the terminal between interactive runs"`
	Debug      bool   `flag:"debug" usage:"enable debug logging"`
	Quiet      bool   `flag:"q" usage:"quiet mode"`
}

// Program options of the compiler.
type Program struct {
	Positional
	Parameters
	Flags
}

// EOF defines the value stored into the current cell when input is exhausted.
type EOF int

// EOF policies.
const (
	EOFMinusOne  EOF = iota // cell becomes 255
	EOFZero                 // cell becomes 0
	EOFUnchanged            // cell keeps its value
)

var eofNames = map[EOF]string{
	EOFMinusOne:  "minus-one",
	EOFZero:      "zero",
	EOFUnchanged: "unchanged",
}

// String returns the policy name as accepted by ParseEOF.
func (e EOF) String() string {
	if name, ok := eofNames[e]; ok {
		return name
	}
	return fmt.Sprintf("eof(%d)", int(e))
}

// ParseEOF returns the policy for the given name, an empty name selects the default.
func ParseEOF(name string) (EOF, error) {
	name = strings.ToLower(name)
	if name == "" {
		return EOFMinusOne, nil
	}
	for policy, policyName := range eofNames {
		if name == policyName {
			return policy, nil
		}
	}
	return 0, fmt.Errorf("unsupported eof policy: %s. Valid options: minus-one, zero, unchanged", name)
}

// Runtime defines options to control compilation and execution.
type Runtime struct {
	CodeSize   int                     // capacity of the code region
	EOF        EOF                     // cell value at end of input
	Convention amd64.CallingConvention // calling convention of the host routines
}

// NewRuntime returns a new options instance with default options.
func NewRuntime() Runtime {
	return Runtime{
		CodeSize:   DefaultCodeSize,
		EOF:        EOFMinusOne,
		Convention: amd64.DefaultCallingConvention(),
	}
}

// Runtime returns the runtime options for the program options.
func (p Program) Runtime() (Runtime, error) {
	opts := NewRuntime()

	if p.CodeSize < 0 {
		return opts, fmt.Errorf("invalid code size %d", p.CodeSize)
	}
	if p.CodeSize > 0 {
		opts.CodeSize = p.CodeSize
	}

	eof, err := ParseEOF(p.EOF)
	if err != nil {
		return opts, err
	}
	opts.EOF = eof

	if p.Convention != "" {
		convention, err := amd64.ParseCallingConvention(p.Convention)
		if err != nil {
			return opts, fmt.Errorf("parsing calling convention: %w", err)
		}
		opts.Convention = convention
	}

	return opts, nil
}
