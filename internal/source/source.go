// Package source represents a tape language program and its source locations.
package source

import (
	"fmt"

	"github.com/retroenv/retrogolib/set"
)

// Instruction characters of the tape language.
const (
	MoveRight = '>'
	MoveLeft  = '<'
	Increment = '+'
	Decrement = '-'
	Output    = '.'
	Input     = ','
	LoopStart = '['
	LoopEnd   = ']'
)

// instructions contains all characters that have a meaning, everything else is a comment.
var instructions = set.NewFromSlice([]byte{
	MoveRight, MoveLeft, Increment, Decrement, Output, Input, LoopStart, LoopEnd,
})

// Location is a 1-based line and column position in a source program.
type Location struct {
	Line   int
	Column int
}

// String returns the location in line:column format.
func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Source is a program text.
type Source []byte

// IsInstruction returns whether the character is one of the eight instructions.
func IsInstruction(c byte) bool {
	return instructions.Contains(c)
}

// RunLength returns the number of identical characters starting at index.
func (s Source) RunLength(index int) int {
	if index < 0 || index >= len(s) {
		return 0
	}

	c := s[index]
	n := 1
	for index+n < len(s) && s[index+n] == c {
		n++
	}
	return n
}

// Instructions returns the number of instruction characters in the source.
func (s Source) Instructions() int {
	var count int
	for _, c := range s {
		if IsInstruction(c) {
			count++
		}
	}
	return count
}

// Scanner walks a source program and tracks the location of the current character.
type Scanner struct {
	src      Source
	index    int
	location Location
}

// NewScanner returns a scanner positioned at the first character.
func NewScanner(src Source) *Scanner {
	return &Scanner{
		src:      src,
		location: Location{Line: 1, Column: 1},
	}
}

// Done returns whether all characters have been consumed.
func (s *Scanner) Done() bool {
	return s.index >= len(s.src)
}

// Peek returns the current character.
func (s *Scanner) Peek() byte {
	return s.src[s.index]
}

// Location returns the location of the current character.
func (s *Scanner) Location() Location {
	return s.location
}

// Run returns the length of the run of identical characters at the current position.
func (s *Scanner) Run() int {
	return s.src.RunLength(s.index)
}

// Advance consumes n characters, updating the location for every newline passed.
func (s *Scanner) Advance(n int) {
	for ; n > 0 && s.index < len(s.src); n-- {
		if s.src[s.index] == '\n' {
			s.location.Line++
			s.location.Column = 1
		} else {
			s.location.Column++
		}
		s.index++
	}
}
