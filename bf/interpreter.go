package bf

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/containerd/log"
)

// Interpreter executes one program against one tape. It scans the raw program
// text; loops are matched lazily while running, there is no jump table.
type Interpreter struct {
	Program []byte
	ip      int
	tape    *Tape
	loops   loopStack
	input   io.ByteReader
	output  *bufio.Writer
	eof     EOFPolicy
	crlf    bool
}

// NewInterpreter prepares program for execution. A nil input behaves as
// exhausted input and a nil output discards everything written.
func NewInterpreter(program []byte, input io.Reader, output io.Writer, opts ...Option) *Interpreter {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	tape := NewTape(cfg.tapeSize)
	tape.limit = cfg.maxCells

	var in io.ByteReader
	if input != nil {
		if br, ok := input.(io.ByteReader); ok {
			in = br
		} else {
			in = bufio.NewReader(input)
		}
	}
	if output == nil {
		output = io.Discard
	}

	return &Interpreter{
		Program: program,
		tape:    tape,
		input:   in,
		output:  bufio.NewWriter(output),
		eof:     cfg.eof,
		crlf:    cfg.crlf,
	}
}

// Tape exposes the memory, mostly for inspection after a run.
func (i *Interpreter) Tape() *Tape {
	return i.tape
}

// At indexes the memory. Negative indices wrap to the end of the tape.
func (i *Interpreter) At(j int) Cell {
	return i.tape.At(j)
}

func (i *Interpreter) Reset() {
	i.ip = 0
	i.loops.reset()
	i.tape.Reset()
}

func (i *Interpreter) Run() error {
	return i.RunContext(context.Background())
}

// RunContext runs the program until the end of the text, a NUL byte, an error
// or cancellation of ctx. Buffered output is flushed in every case.
func (i *Interpreter) RunContext(ctx context.Context) (err error) {
	i.ip = 0
	i.loops.reset()

	defer func() {
		if ferr := i.output.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flushing output: %w", ferr)
		}
		if err != nil {
			log.G(ctx).WithError(err).WithField("ip", i.ip).Debug("program aborted")
			return
		}
		log.G(ctx).WithField("open_loops", i.loops.len()).Debug("program finished")
	}()

	for i.ip < len(i.Program) && i.Program[i.ip] != 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		done, err := i.step(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		i.ip++
	}
	return nil
}

// step executes the instruction under ip. It reports done when the program
// has to stop early without an error.
func (i *Interpreter) step(ctx context.Context) (done bool, err error) {
	switch Command(i.Program[i.ip]) {
	case Increment:
		i.tape.Increment()
	case Decrement:
		i.tape.Decrement()
	case Right:
		n := i.tape.Len()
		if err := i.tape.Advance(); err != nil {
			return false, fmt.Errorf("'>' at position %d: %w", i.ip, err)
		}
		if i.tape.Len() != n {
			log.G(ctx).Debugf("tape grew from %d to %d cells", n, i.tape.Len())
		}
	case Left:
		i.tape.Retreat()
	case Output:
		if err := i.write(byte(i.tape.Read())); err != nil {
			return false, fmt.Errorf("writing output: %w", err)
		}
	case Input:
		return i.read(ctx)
	case LoopStart:
		if i.tape.Read() != 0 {
			i.loops.push(i.ip)
			return false, nil
		}
		end, ok := i.matchLoopEnd()
		if !ok {
			// an open loop runs its body once, like any other
			log.G(ctx).Debugf("'[' at position %d has no match, entering it", i.ip)
			i.loops.push(i.ip)
			return false, nil
		}
		i.ip = end
	case LoopEnd:
		start, ok := i.loops.top()
		if !ok {
			return false, &UnmatchedLoopError{Pos: i.ip}
		}
		if i.tape.Read() != 0 {
			// resume right after the '[', its marker stays on the stack
			i.ip = start
		} else {
			i.loops.pop()
		}
	}
	return false, nil
}

// matchLoopEnd finds the ']' closing the '[' under ip.
func (i *Interpreter) matchLoopEnd() (int, bool) {
	depth := 1
	for j := i.ip + 1; j < len(i.Program) && i.Program[j] != 0; j++ {
		switch Command(i.Program[j]) {
		case LoopStart:
			depth++
		case LoopEnd:
			depth--
			if depth == 0 {
				return j, true
			}
		}
	}
	return 0, false
}

func (i *Interpreter) write(b byte) error {
	if i.crlf && b == '\n' {
		_, err := i.output.WriteString("\r\n")
		return err
	}
	return i.output.WriteByte(b)
}

func (i *Interpreter) read(ctx context.Context) (bool, error) {
	// a prompt printed before the read has to be visible
	if err := i.output.Flush(); err != nil {
		return false, fmt.Errorf("flushing output: %w", err)
	}
	if i.input == nil {
		return i.atEOF(ctx), nil
	}
	b, err := i.input.ReadByte()
	if err == io.EOF {
		return i.atEOF(ctx), nil
	}
	if err != nil {
		return false, fmt.Errorf("reading input: %w", err)
	}
	i.tape.Write(Cell(b))
	return false, nil
}

func (i *Interpreter) atEOF(ctx context.Context) bool {
	log.G(ctx).WithField("policy", i.eof).Debug("EOF")
	switch i.eof {
	case EOFZero:
		i.tape.Write(0)
	case EOFMax:
		i.tape.Write(^Cell(0))
	case EOFHalt:
		return true
	}
	return false
}
