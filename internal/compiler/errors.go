package compiler

import (
	"errors"
	"fmt"

	"github.com/retroenv/bfjit/internal/source"
)

// ErrInvalidSource is returned for any translation failure that is not a bracket
// mismatch, for example when the generated code does not fit into the buffer.
var ErrInvalidSource = errors.New("source is invalid")

// ErrBufferInUse is returned when compiling into a buffer that was not reset.
var ErrBufferInUse = errors.New("code buffer is in use")

// UnmatchedError reports a loop bracket without a partner.
type UnmatchedError struct {
	Bracket  byte
	Location source.Location
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("unmatched '%c' at %s", e.Bracket, e.Location)
}

func invalidSource(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidSource, err)
}
