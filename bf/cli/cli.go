// Package cli is the command line front end of the interpreter. It is shared
// by the standalone binary and the shim, which re-executes itself as an
// interpreter for every task.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/containerd/errdefs"
	"github.com/containerd/log"

	"github.com/MarcinKonowalczyk/tapebf/bf"
)

// comptime override for debug flag
// set with `-ldflags="-X 'github.com/MarcinKonowalczyk/tapebf/bf/cli.debug=true'"`
var debug string

const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2

	// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html#tag_18_21_18
	exitCodeSignal  = 128
	ExitInterrupted = exitCodeSignal + 2 // SIGINT
	ExitFatal       = exitCodeSignal + 6 // SIGABRT
)

type CLI struct {
	Program  string `arg:"" optional:"" help:"Brainfuck program text."`
	File     string `short:"f" type:"path" env:"RUNBF_FILE" help:"Read the program from a file instead."`
	EOF      string `name:"eof" enum:"unchanged,zero,max,halt" default:"unchanged" env:"RUNBF_EOF" help:"What ',' stores once input is exhausted (${enum})."`
	TapeSize int    `name:"tape-size" default:"512" env:"RUNBF_TAPE_SIZE" help:"Initial number of tape cells."`
	MaxCells int    `name:"max-cells" default:"0" env:"RUNBF_MAX_CELLS" help:"Fail instead of growing the tape past this many cells. 0 is unbounded."`
	CRLF     bool   `name:"crlf" env:"RUNBF_CRLF" help:"Write newlines as CRLF."`
	Strip    bool   `help:"Print the program without comments and exit."`
	Debug    bool   `env:"RUNBF_DEBUG" help:"Log interpreter events to stderr."`
}

// Main parses args and runs the program they describe. It returns the
// process exit code.
func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var c CLI

	exited, exitCode := false, ExitOK
	parser, err := kong.New(&c,
		kong.Name("brainfuck"),
		kong.Description("Run a brainfuck program on a growable tape."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) {
			exited, exitCode = true, code
		}),
	)
	if err != nil {
		return fail(stderr, ExitFailure, err)
	}

	_, err = parser.Parse(args)
	if exited {
		// --help
		return exitCode
	}
	if err != nil {
		return fail(stderr, ExitUsage, err)
	}
	return c.Run(ctx, stdin, stdout, stderr)
}

// Run executes the configured program. Usage errors are reported before the
// interpreter starts.
func (c *CLI) Run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) int {
	if c.Debug || debug != "" {
		if err := log.SetLevel("debug"); err != nil {
			return fail(stderr, ExitFailure, err)
		}
	}

	source, err := c.source()
	if err != nil {
		return fail(stderr, ExitCode(err), err)
	}

	if c.Strip {
		fmt.Fprintln(stdout, bf.Strip(source))
		return ExitOK
	}

	opts, err := c.options()
	if err != nil {
		return fail(stderr, ExitCode(err), err)
	}

	log.G(ctx).WithField("bytes", len(source)).Debug("running program")
	if err := bf.Run(ctx, source, stdin, stdout, opts...); err != nil {
		return fail(stderr, ExitCode(err), err)
	}
	return ExitOK
}

func (c *CLI) source() (string, error) {
	if c.File == "" {
		if c.Program == "" {
			return "", fmt.Errorf("required brainfuck code as command-line argument or --file: %w", errdefs.ErrInvalidArgument)
		}
		return c.Program, nil
	}

	if c.Program != "" {
		return "", fmt.Errorf("program text and --file are mutually exclusive: %w", errdefs.ErrInvalidArgument)
	}
	data, err := os.ReadFile(c.File)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, errdefs.ErrInvalidArgument)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%s is empty: %w", c.File, errdefs.ErrInvalidArgument)
	}
	return string(data), nil
}

func (c *CLI) options() ([]bf.Option, error) {
	policy, err := bf.ParseEOFPolicy(c.EOF)
	if err != nil {
		return nil, err
	}
	if c.TapeSize < 1 {
		return nil, fmt.Errorf("tape size must be positive, got %d: %w", c.TapeSize, errdefs.ErrInvalidArgument)
	}
	if c.MaxCells < 0 {
		return nil, fmt.Errorf("max cells must not be negative, got %d: %w", c.MaxCells, errdefs.ErrInvalidArgument)
	}
	return []bf.Option{
		bf.WithEOF(policy),
		bf.WithTapeSize(c.TapeSize),
		bf.WithMaxCells(c.MaxCells),
		bf.WithCRLF(c.CRLF),
	}, nil
}

// ExitCode maps an interpreter error to a process exit code. Invariant
// violations and exhausted memory exit like an abort.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errdefs.IsInvalidArgument(err):
		return ExitUsage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitInterrupted
	case errdefs.IsInternal(err), errdefs.IsResourceExhausted(err):
		return ExitFatal
	default:
		return ExitFailure
	}
}

func fail(stderr io.Writer, code int, err error) int {
	fmt.Fprintf(stderr, "ERROR: %v\n", err)
	return code
}

// Hijack reports whether args ask for the interpreter subcommand name and
// returns args without it.
func Hijack(args []string, name string) (bool, []string) {
	for i, arg := range args {
		if arg == name {
			rest := make([]string, 0, len(args)-1)
			rest = append(rest, args[:i]...)
			return true, append(rest, args[i+1:]...)
		}
	}
	return false, args
}
