package book

import (
	"errors"
	"testing"
)

func TestParseSelection(t *testing.T) {
	t.Run("full forms", func(t *testing.T) {
		for _, expr := range []string{"", "full", "all", "  full  "} {
			sel, err := ParseSelection(expr)
			if err != nil {
				t.Fatalf("ParseSelection(%q) error = %v", expr, err)
			}
			if !sel.IsFull() {
				t.Errorf("ParseSelection(%q) not full", expr)
			}
		}
	})

	t.Run("range", func(t *testing.T) {
		sel, err := ParseSelection("3-5")
		if err != nil {
			t.Fatalf("ParseSelection error = %v", err)
		}
		got, err := sel.Resolve(10)
		if err != nil {
			t.Fatalf("Resolve error = %v", err)
		}
		want := []int{2, 3, 4}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("got %v, want %v", got, want)
				break
			}
		}
	})

	t.Run("explicit list collapses duplicates", func(t *testing.T) {
		sel, err := ParseSelection("7,1,7,3")
		if err != nil {
			t.Fatalf("ParseSelection error = %v", err)
		}
		got, err := sel.Resolve(10)
		if err != nil {
			t.Fatalf("Resolve error = %v", err)
		}
		want := []int{0, 2, 6}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, expr := range []string{"x", "1-x", "0", "-3", "5-2", "1,,2"} {
			if _, err := ParseSelection(expr); !errors.Is(err, ErrInvalidSelection) {
				t.Errorf("ParseSelection(%q) error = %v, want ErrInvalidSelection", expr, err)
			}
		}
	})
}

func TestSelectionResolve(t *testing.T) {
	t.Run("full expands to chapter count", func(t *testing.T) {
		got, err := FullSelection().Resolve(4)
		if err != nil {
			t.Fatalf("Resolve error = %v", err)
		}
		if len(got) != 4 || got[0] != 0 || got[3] != 3 {
			t.Errorf("got %v", got)
		}
	})

	t.Run("out of range rejected before any fetch", func(t *testing.T) {
		sel, err := ParseSelection("8-12")
		if err != nil {
			t.Fatalf("ParseSelection error = %v", err)
		}
		if _, err := sel.Resolve(10); !errors.Is(err, ErrInvalidSelection) {
			t.Errorf("Resolve error = %v, want ErrInvalidSelection", err)
		}
	})

	t.Run("empty book rejected", func(t *testing.T) {
		if _, err := FullSelection().Resolve(0); !errors.Is(err, ErrInvalidSelection) {
			t.Errorf("Resolve error = %v, want ErrInvalidSelection", err)
		}
	})
}

func TestToleranceAllows(t *testing.T) {
	t.Run("zero failures always allowed", func(t *testing.T) {
		if !(Tolerance{}).Allows(0, 10) {
			t.Error("expected zero failures to pass a strict tolerance")
		}
	})

	t.Run("count bound", func(t *testing.T) {
		tol := Tolerance{MaxFailed: 2}
		if !tol.Allows(2, 10) {
			t.Error("2 of 10 should be within MaxFailed=2")
		}
		if tol.Allows(3, 10) {
			t.Error("3 of 10 should exceed MaxFailed=2")
		}
	})

	t.Run("ratio bound", func(t *testing.T) {
		tol := Tolerance{MaxFailedRatio: 0.1}
		if !tol.Allows(1, 10) {
			t.Error("1 of 10 should be within 10%")
		}
		if tol.Allows(2, 10) {
			t.Error("2 of 10 should exceed 10%")
		}
	})
}
