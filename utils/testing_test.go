package utils

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTesting_CompareArrays(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	b := []int{1, 2, 3, 4, 5}
	Assert(t, CompareArrays(a, b), "Arrays are not equal")
}

func TestTesting_CompareArrays_Order(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	b := []int{5, 4, 3, 2, 1}
	Assert(t, !CompareArrays(a, b), "Arrays are equal")
}

func TestTesting_CompareArrays_DifferentLengths(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	b := []int{1, 2, 3, 4}
	Assert(t, !CompareArrays(a, b), "Arrays are equal")
}

func TestTesting_AssertErrorIs(t *testing.T) {
	base := errors.New("base")
	AssertErrorIs(t, fmt.Errorf("wrapped: %w", base), base)
}

func TestTesting_DiffArrays_WantIsRemoved(t *testing.T) {
	got := []int{1, 3}
	want := []int{1, 2}
	var removed, added string
	for _, line := range strings.Split(diffArrays(got, want), "\n") {
		switch {
		case strings.HasPrefix(line, "-"):
			removed += line
		case strings.HasPrefix(line, "+"):
			added += line
		}
	}
	Assert(t, strings.Contains(removed, "2"), "want is not on the - side")
	Assert(t, strings.Contains(added, "3"), "got is not on the + side")
	AssertEqual(t, diffArrays(want, want), "")
}
