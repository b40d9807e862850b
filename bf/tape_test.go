package bf_test

import (
	"testing"

	"github.com/MarcinKonowalczyk/tapebf/bf"
	"github.com/MarcinKonowalczyk/tapebf/utils"
)

func TestTape_New(t *testing.T) {
	tape := bf.NewTape(0)
	utils.AssertEqual(t, tape.Len(), bf.DefaultTapeSize)
	utils.AssertEqual(t, tape.Cursor(), 0)
	utils.AssertEqual(t, tape.Read(), 0)

	tape = bf.NewTape(16)
	utils.AssertEqual(t, tape.Len(), 16)
}

func TestTape_AdvanceDoubles(t *testing.T) {
	tape := bf.NewTape(4)
	for j := 0; j < 4; j++ {
		tape.Write(bf.Cell(j + 10))
		if j < 3 {
			utils.AssertNoError(t, tape.Advance())
		}
	}
	utils.AssertEqual(t, tape.Len(), 4)
	utils.AssertEqual(t, tape.Cursor(), 3)

	utils.AssertNoError(t, tape.Advance())
	utils.AssertEqual(t, tape.Len(), 8)
	utils.AssertEqual(t, tape.Cursor(), 4)
	for j := 0; j < 4; j++ {
		utils.AssertEqual(t, tape.At(j), bf.Cell(j+10))
	}
	for j := 4; j < 8; j++ {
		utils.AssertEqual(t, tape.At(j), 0)
	}

	// no second doubling until the new end is passed
	for j := 0; j < 3; j++ {
		utils.AssertNoError(t, tape.Advance())
	}
	utils.AssertEqual(t, tape.Len(), 8)
	utils.AssertEqual(t, tape.Cursor(), 7)
}

func TestTape_RetreatWraps(t *testing.T) {
	tape := bf.NewTape(8)
	tape.Retreat()
	utils.AssertEqual(t, tape.Cursor(), 7)
	tape.Retreat()
	utils.AssertEqual(t, tape.Cursor(), 6)
	utils.AssertEqual(t, tape.Len(), 8)
}

func TestTape_IncrementDecrementWrap(t *testing.T) {
	tape := bf.NewTape(1)
	tape.Decrement()
	utils.AssertEqual(t, tape.Read(), ^bf.Cell(0))
	tape.Increment()
	utils.AssertEqual(t, tape.Read(), 0)
	tape.Write(41)
	tape.Increment()
	utils.AssertEqual(t, tape.Read(), 42)
}

func TestTape_At(t *testing.T) {
	tape := bf.NewTape(4)
	tape.Retreat()
	tape.Write(7)
	utils.AssertEqual(t, tape.At(-1), 7)
	utils.AssertEqual(t, tape.At(3), 7)
	utils.AssertEqual(t, tape.At(7), 7)
	utils.AssertEqual(t, tape.At(-5), 7)
}

func TestTape_Reset(t *testing.T) {
	tape := bf.NewTape(2)
	tape.Increment()
	utils.AssertNoError(t, tape.Advance())
	utils.AssertNoError(t, tape.Advance())
	tape.Increment()
	tape.Reset()
	utils.AssertEqual(t, tape.Cursor(), 0)
	utils.AssertEqual(t, tape.Len(), 4)
	for j := 0; j < tape.Len(); j++ {
		utils.AssertEqual(t, tape.At(j), 0)
	}
}
