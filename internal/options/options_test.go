package options

import (
	"testing"

	"github.com/retroenv/bfjit/internal/arch/amd64"
	"github.com/retroenv/retrogolib/assert"
)

func TestParseEOF(t *testing.T) {
	tests := []struct {
		name    string
		want    EOF
		wantErr bool
	}{
		{name: "", want: EOFMinusOne},
		{name: "minus-one", want: EOFMinusOne},
		{name: "ZERO", want: EOFZero},
		{name: "unchanged", want: EOFUnchanged},
		{name: "-1", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseEOF(tt.name)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestEOFString(t *testing.T) {
	for policy := range eofNames {
		parsed, err := ParseEOF(policy.String())
		assert.NoError(t, err)
		assert.Equal(t, policy, parsed)
	}
	assert.Equal(t, "eof(9)", EOF(9).String())
}

func TestProgramRuntime(t *testing.T) {
	opts, err := Program{}.Runtime()
	assert.NoError(t, err)
	assert.Equal(t, NewRuntime(), opts)
	assert.Equal(t, DefaultCodeSize, opts.CodeSize)

	opts, err = Program{
		Flags: Flags{
			EOF:        "zero",
			CodeSize:   4096,
			Convention: "win64",
		},
	}.Runtime()
	assert.NoError(t, err)
	assert.Equal(t, Runtime{CodeSize: 4096, EOF: EOFZero, Convention: amd64.Win64}, opts)

	_, err = Program{Flags: Flags{CodeSize: -1}}.Runtime()
	assert.ErrorContains(t, err, "invalid code size")

	_, err = Program{Flags: Flags{EOF: "eof"}}.Runtime()
	assert.ErrorContains(t, err, "unsupported eof policy")

	_, err = Program{Flags: Flags{Convention: "cdecl"}}.Runtime()
	assert.ErrorContains(t, err, "unsupported calling convention")
}
