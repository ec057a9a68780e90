// Package config handles application configuration and setup
package config

import (
	"fmt"
	"io"

	"github.com/retroenv/bfjit/internal/options"
	"github.com/retroenv/retrogolib/config"
	"github.com/retroenv/retrogolib/log"
)

// File contains the settings that can be set in a configuration file.
//
//	[runtime]
//	code_size = 65536
//	eof = zero
//	convention = sysv
//
//	[terminal]
//	noclear = true
//
//	[log]
//	debug = true
type File struct {
	CodeSize   int    `config:"runtime.code_size"`
	EOF        string `config:"runtime.eof"`
	Convention string `config:"runtime.convention"`
	NoClear    bool   `config:"terminal.noclear"`
	Debug      bool   `config:"log.debug"`
}

// LoadFile reads the configuration file with the given name.
func LoadFile(filename string) (File, error) {
	doc, err := config.Open(filename, config.Options{})
	if err != nil {
		return File{}, fmt.Errorf("opening config file %s: %w", filename, err)
	}
	return unmarshal(doc)
}

// ParseFile reads a configuration from the reader.
func ParseFile(reader io.Reader) (File, error) {
	doc, err := config.Parse(reader, config.Options{})
	if err != nil {
		return File{}, fmt.Errorf("parsing config: %w", err)
	}
	return unmarshal(doc)
}

func unmarshal(doc *config.Config) (File, error) {
	var file File
	if err := doc.Unmarshal(&file); err != nil {
		return File{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	return file, nil
}

// Apply sets all options that were not set on the command line to the values of the file.
func (f File) Apply(opts *options.Program) {
	if opts.CodeSize == 0 {
		opts.CodeSize = f.CodeSize
	}
	if opts.EOF == "" {
		opts.EOF = f.EOF
	}
	if opts.Convention == "" {
		opts.Convention = f.Convention
	}
	opts.NoClear = opts.NoClear || f.NoClear
	opts.Debug = opts.Debug || f.Debug
}

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}
