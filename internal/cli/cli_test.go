package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/bfjit/internal/arch/amd64"
	"github.com/retroenv/bfjit/internal/options"
	"github.com/retroenv/retrogolib/assert"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		file    string
		runtime options.Runtime
	}{
		{
			name:    "interactive",
			args:    []string{"prog"},
			runtime: options.NewRuntime(),
		},
		{
			name:    "file",
			args:    []string{"prog", "hello.bf"},
			file:    "hello.bf",
			runtime: options.NewRuntime(),
		},
		{
			name: "runtime flags",
			args: []string{"prog", "-eof", "zero", "-code-size", "4096", "-convention", "win64", "hello.bf"},
			file: "hello.bf",
			runtime: options.Runtime{
				CodeSize:   4096,
				EOF:        options.EOFZero,
				Convention: amd64.Win64,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			t.Cleanup(func() { os.Args = oldArgs })

			os.Args = tt.args

			opts, runtimeOptions, err := ParseFlags()
			assert.NoError(t, err)
			assert.Equal(t, tt.file, opts.File)
			assert.Equal(t, tt.runtime, runtimeOptions)
		})
	}
}

func TestParseFlagsConfigFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bfjit.conf")
	content := "[runtime]\neof = unchanged\ncode_size = 8192\n\n[log]\ndebug = true\n"
	assert.NoError(t, os.WriteFile(name, []byte(content), 0o600))

	opts, runtimeOptions, err := parseArgs([]string{"prog", "-c", name, "-eof", "zero", "x.bf"})
	assert.NoError(t, err)
	assert.True(t, opts.Debug)
	assert.Equal(t, options.EOFZero, runtimeOptions.EOF)
	assert.Equal(t, 8192, runtimeOptions.CodeSize)

	_, _, err = parseArgs([]string{"prog", "-c", filepath.Join(t.TempDir(), "missing.conf")})
	assert.ErrorContains(t, err, "opening config file")
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		usage bool
	}{
		{name: "unknown flag", args: []string{"prog", "-unknown"}, usage: true},
		{name: "flag after file", args: []string{"prog", "hello.bf", "-debug"}, usage: true},
		{name: "two files", args: []string{"prog", "a.bf", "b.bf"}, usage: true},
		{name: "help", args: []string{"prog", "-h"}, usage: true},
		{name: "invalid eof", args: []string{"prog", "-eof", "never"}},
		{name: "invalid code size", args: []string{"prog", "-code-size", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseArgs(tt.args)
			assert.Error(t, err)

			var usageErr *UsageError
			if tt.usage {
				assert.ErrorAs(t, err, &usageErr)
			}
		})
	}
}
