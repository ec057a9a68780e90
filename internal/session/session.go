// Package session implements the file and interactive modes of the command line tool.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/retroenv/bfjit/internal/compiler"
	"github.com/retroenv/bfjit/internal/hexdump"
	"github.com/retroenv/bfjit/internal/jit"
	"github.com/retroenv/bfjit/internal/options"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

const (
	prompt       = "Enter the code: "
	executed     = "\n----------------\nProgram Executed."
	clearConsole = "\033[2J\033[1;1H"
)

// Session connects a runtime to the console. Program input and the
// interactive prompt share the same input stream.
type Session struct {
	logger  *log.Logger
	opts    options.Program
	runtime *jit.Runtime
	in      *bufio.Reader
	out     *bufio.Writer
}

// New creates a session with a runtime that uses in and out as program I/O.
func New(logger *log.Logger, opts options.Program, runtimeOpts options.Runtime,
	in io.Reader, out io.Writer) (*Session, error) {

	s := &Session{
		logger: logger,
		opts:   opts,
		in:     bufio.NewReader(in),
		out:    bufio.NewWriter(out),
	}

	rt, err := jit.New(logger, runtimeOpts, s.in, s.out)
	if err != nil {
		return nil, fmt.Errorf("creating runtime: %w", err)
	}
	s.runtime = rt
	return s, nil
}

// Close releases the runtime.
func (s *Session) Close() error {
	return s.runtime.Close()
}

// RunFile loads the program file, compiles and runs it. Nothing is compiled
// if the file can not be loaded. Compilation errors are printed to the output.
func (s *Session) RunFile(filename string) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("loading program file %s: %w", filename, err)
	}

	s.logger.Debug("Loaded program file",
		log.String("file", filename),
		log.Int("size", len(src)),
	)

	err = s.execute(src)
	if reported, printErr := s.reportCompileError(err); reported {
		return printErr
	}
	return err
}

// Interactive reads programs line by line until the input ends or the context
// is cancelled. Compilation errors are reported and do not stop the loop.
func (s *Session) Interactive(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interactive mode: %w", err)
		}

		if err := s.print(prompt); err != nil {
			return err
		}
		line, err := s.in.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading code: %w", err)
			}
			if line == "" {
				return nil
			}
		}
		line = strings.TrimRight(line, "\r\n")

		if err := s.clear(); err != nil {
			return err
		}

		err = s.execute([]byte(line))
		reported, printErr := s.reportCompileError(err)
		switch {
		case printErr != nil:
			return printErr
		case err != nil && !reported:
			return err
		}

		if err := s.reset(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// execute compiles and runs a program, writes the optional hex dump and
// prints the trailer.
func (s *Session) execute(src []byte) error {
	program, err := s.runtime.Compile(src)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.runtime.Reset(); err != nil {
			s.logger.Error("Resetting runtime failed", log.Err(err))
		}
	}()

	if s.opts.Dump != "" {
		if err := hexdump.WriteFile(s.opts.Dump, program.Code()); err != nil {
			return err
		}
	}

	result, err := s.runtime.Run()
	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	s.logger.Debug("Program executed",
		log.Int("code_size", program.Size()),
		log.Uint16("cursor", result.Cursor),
	)

	return s.print(executed)
}

// reportCompileError prints errors of the source program. It returns whether
// err was a compilation error.
func (s *Session) reportCompileError(err error) (bool, error) {
	var unmatched *compiler.UnmatchedError
	switch {
	case errors.As(err, &unmatched):
		return true, s.print("Compilation error! " + unmatched.Error())
	case errors.Is(err, compiler.ErrInvalidSource):
		return true, s.print("Compilation error! Source is invalid.")
	default:
		return false, nil
	}
}

// reset waits for the user to acknowledge the output and clears the console.
func (s *Session) reset() error {
	if _, err := s.in.ReadString('\n'); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("reading input: %w", err)
	}
	return s.clear()
}

func (s *Session) clear() error {
	if s.opts.NoClear {
		return s.print("\n")
	}
	return s.print(clearConsole)
}

func (s *Session) print(text string) error {
	if _, err := s.out.WriteString(text); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err := s.out.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	return nil
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	if len(commit) > 7 {
		commit = commit[:7]
	}
	if strings.Contains(date, "unknown") {
		date = ""
	}
	logger.Info("bfjit", log.String("version", buildinfo.Version(version, commit, date)))
}
