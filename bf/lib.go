package bf

import (
	"context"
	"io"
)

// Run executes source on a fresh tape.
func Run(ctx context.Context, source string, input io.Reader, output io.Writer, opts ...Option) error {
	interpreter := NewInterpreter([]byte(source), input, output, opts...)
	return interpreter.RunContext(ctx)
}
