package bf

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// ErrUnmatchedLoopEnd means a ']' was executed with no loop open. It is not
// a validation error: programs are never checked up front, so reaching it
// signals malformed program text at run time.
var ErrUnmatchedLoopEnd = fmt.Errorf("mismatched loop: %w", errdefs.ErrInternal)

// UnmatchedLoopError records where an unmatched ']' was hit.
type UnmatchedLoopError struct {
	Pos int
}

func (e *UnmatchedLoopError) Error() string {
	return fmt.Sprintf("']' at position %d: %v", e.Pos, ErrUnmatchedLoopEnd)
}

func (e *UnmatchedLoopError) Unwrap() error {
	return ErrUnmatchedLoopEnd
}
