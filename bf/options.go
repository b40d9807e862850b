package bf

import (
	"fmt"
	"strings"

	"github.com/containerd/errdefs"
)

// EOFPolicy decides what ',' does once the input is exhausted.
type EOFPolicy int

const (
	// EOFUnchanged leaves the current cell as it is.
	EOFUnchanged EOFPolicy = iota
	// EOFZero stores 0.
	EOFZero
	// EOFMax stores the largest cell value, i.e. -1 in cell arithmetic.
	EOFMax
	// EOFHalt stops the program without an error.
	EOFHalt
)

var eofPolicyNames = []string{
	EOFUnchanged: "unchanged",
	EOFZero:      "zero",
	EOFMax:       "max",
	EOFHalt:      "halt",
}

func (p EOFPolicy) String() string {
	if p < 0 || int(p) >= len(eofPolicyNames) {
		return fmt.Sprintf("EOFPolicy(%d)", int(p))
	}
	return eofPolicyNames[p]
}

func ParseEOFPolicy(s string) (EOFPolicy, error) {
	for p, name := range eofPolicyNames {
		if strings.EqualFold(s, name) {
			return EOFPolicy(p), nil
		}
	}
	return EOFUnchanged, fmt.Errorf("unknown eof policy %q: %w", s, errdefs.ErrInvalidArgument)
}

type config struct {
	tapeSize int
	maxCells int
	eof      EOFPolicy
	crlf     bool
}

// Option configures an Interpreter.
type Option func(*config)

// WithTapeSize sets the initial number of cells.
func WithTapeSize(n int) Option {
	return func(c *config) {
		c.tapeSize = n
	}
}

// WithMaxCells caps tape growth. Walking past the cap fails with
// ErrOutOfMemory. Zero means unbounded.
func WithMaxCells(n int) Option {
	return func(c *config) {
		c.maxCells = n
	}
}

func WithEOF(p EOFPolicy) Option {
	return func(c *config) {
		c.eof = p
	}
}

// WithCRLF writes every '\n' output byte as "\r\n". Container logs attached
// to a tty need it.
func WithCRLF(on bool) Option {
	return func(c *config) {
		c.crlf = on
	}
}
