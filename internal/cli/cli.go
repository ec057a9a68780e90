// Package cli handles command line interface logic
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/retroenv/bfjit/internal/config"
	"github.com/retroenv/bfjit/internal/options"
	"github.com/retroenv/retrogolib/cli"
)

// ParseFlags parses command line flags and returns program and runtime options.
// Options that are not set on the command line are read from the configuration
// file if one is given.
func ParseFlags() (options.Program, options.Runtime, error) {
	return parseArgs(os.Args)
}

func parseArgs(args []string) (options.Program, options.Runtime, error) {
	var opts options.Program
	flags := cli.NewFlagSet(args[0])
	flags.AddSection("Parameters", &opts.Parameters)
	flags.AddSection("Flags", &opts.Flags)
	flags.AddPositional(&opts.Positional)

	remaining, err := flags.Parse(args[1:])
	if err != nil {
		if errors.Is(err, cli.ErrHelpRequested) {
			return opts, options.Runtime{}, &UsageError{flags: flags}
		}
		return opts, options.Runtime{}, &UsageError{flags: flags, msg: err.Error()}
	}

	if err := validateArgs(remaining); err != nil {
		return opts, options.Runtime{}, err
	}

	if opts.Config != "" {
		file, err := config.LoadFile(opts.Config)
		if err != nil {
			return opts, options.Runtime{}, err
		}
		file.Apply(&opts)
	}

	runtimeOptions, err := opts.Runtime()
	if err != nil {
		return opts, options.Runtime{}, err
	}
	return opts, runtimeOptions, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *cli.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	if e.flags != nil {
		e.flags.ShowUsage()
	}
}

// validateArgs checks that only a single program file is passed.
func validateArgs(remaining []string) error {
	if len(remaining) == 0 {
		return nil
	}
	arg := remaining[0]
	if arg != "" && arg[0] == '-' {
		return &UsageError{
			msg: fmt.Sprintf("Potential argument %s found after program file, please pass the program file as last argument", arg),
		}
	}
	return &UsageError{
		msg: fmt.Sprintf("Unexpected argument %s, only a single program file is supported", arg),
	}
}
