package bf

import (
	"fmt"
	"math"
	"runtime"

	"github.com/containerd/errdefs"
)

// Cell is a single tape slot. Arithmetic on it wraps modulo 2^64.
type Cell uint64

// DefaultTapeSize is the number of cells a fresh tape starts with.
const DefaultTapeSize = 512

// ErrOutOfMemory is returned when the tape cannot grow any further.
var ErrOutOfMemory = fmt.Errorf("tape cannot grow: %w", errdefs.ErrResourceExhausted)

// Tape is the interpreter memory. It grows to the right by doubling and wraps
// around to its last cell when moving left from cell 0.
type Tape struct {
	cells  []Cell
	cursor int
	// limit caps growth. Zero means unbounded.
	limit int
}

func NewTape(size int) *Tape {
	if size <= 0 {
		size = DefaultTapeSize
	}
	return &Tape{
		cells: make([]Cell, size),
	}
}

func (t *Tape) Len() int {
	return len(t.cells)
}

func (t *Tape) Cursor() int {
	return t.cursor
}

func wrapIndex(i int, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// At returns the cell at index i. The index wraps, so -1 is the last cell.
func (t *Tape) At(i int) Cell {
	return t.cells[wrapIndex(i, len(t.cells))]
}

// Reset zeroes every cell and moves the cursor home. Capacity is kept.
func (t *Tape) Reset() {
	t.cursor = 0
	clear(t.cells)
}

// Advance moves the cursor one cell to the right, doubling the tape when it
// runs off the end. On error the tape is left untouched.
func (t *Tape) Advance() error {
	if t.cursor+1 > len(t.cells)-1 {
		if err := t.grow(); err != nil {
			return err
		}
	}
	t.cursor++
	return nil
}

func (t *Tape) grow() (err error) {
	n := len(t.cells)
	if n > math.MaxInt/2 {
		return fmt.Errorf("doubling %d cells: %w", n, ErrOutOfMemory)
	}
	if t.limit > 0 && n*2 > t.limit {
		return fmt.Errorf("doubling %d cells exceeds limit of %d: %w", n, t.limit, ErrOutOfMemory)
	}

	defer func() {
		if e := recover(); e != nil {
			re, ok := e.(runtime.Error)
			if !ok {
				panic(e)
			}
			err = fmt.Errorf("doubling %d cells: %v: %w", n, re, ErrOutOfMemory)
		}
	}()

	// new cells in the upper half are zero
	cells := make([]Cell, n*2)
	copy(cells, t.cells)
	t.cells = cells
	return nil
}

// Retreat moves the cursor one cell to the left. From cell 0 it wraps to the
// last cell of the tape as currently sized.
func (t *Tape) Retreat() {
	if t.cursor == 0 {
		t.cursor = len(t.cells) - 1
	} else {
		t.cursor--
	}
}

func (t *Tape) Increment() {
	t.cells[t.cursor]++
}

func (t *Tape) Decrement() {
	t.cells[t.cursor]--
}

func (t *Tape) Read() Cell {
	return t.cells[t.cursor]
}

func (t *Tape) Write(v Cell) {
	t.cells[t.cursor] = v
}
