package book

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidSelection indicates a chapter selection that cannot be
// satisfied by the book. It is raised before any network activity.
var ErrInvalidSelection = errors.New("invalid chapter selection")

// Selection is the set of requested chapter indices (zero-based),
// materialized in ascending order with no duplicates.
type Selection struct {
	indices []int
	full    bool
}

// FullSelection requests every chapter of the book.
func FullSelection() Selection {
	return Selection{full: true}
}

// IndexSelection requests an explicit set of zero-based indices.
// Duplicates are collapsed.
func IndexSelection(indices ...int) Selection {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return Selection{indices: out}
}

// RangeSelection requests the contiguous zero-based range [start, end].
func RangeSelection(start, end int) Selection {
	if end < start {
		return Selection{indices: []int{}}
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return Selection{indices: out}
}

// IsFull reports whether the selection covers the whole book.
func (s Selection) IsFull() bool { return s.full }

// Resolve validates the selection against the book's chapter count and
// returns the concrete ascending index list. Out-of-range indices are
// rejected with ErrInvalidSelection.
func (s Selection) Resolve(chapterCount int) ([]int, error) {
	if chapterCount <= 0 {
		return nil, fmt.Errorf("%w: book has no chapters", ErrInvalidSelection)
	}
	if s.full {
		out := make([]int, chapterCount)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	if len(s.indices) == 0 {
		return nil, fmt.Errorf("%w: empty selection", ErrInvalidSelection)
	}
	for _, i := range s.indices {
		if i < 0 || i >= chapterCount {
			return nil, fmt.Errorf("%w: chapter %d out of range [1, %d]", ErrInvalidSelection, i+1, chapterCount)
		}
	}
	out := make([]int, len(s.indices))
	copy(out, s.indices)
	return out, nil
}

// ParseSelection parses a user-facing chapter selection expression.
// Accepted forms, all with 1-based chapter numbers:
//
//	""   or "full"  - every chapter
//	"5-12"          - contiguous range, inclusive
//	"1,4,9"         - explicit list
//
// The result is zero-based internally.
func ParseSelection(expr string) (Selection, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "full" || expr == "all" {
		return FullSelection(), nil
	}

	if strings.Contains(expr, ",") {
		parts := strings.Split(expr, ",")
		indices := make([]int, 0, len(parts))
		for _, p := range parts {
			n, err := parseChapterNumber(p)
			if err != nil {
				return Selection{}, err
			}
			indices = append(indices, n-1)
		}
		return IndexSelection(indices...), nil
	}

	if strings.Contains(expr, "-") {
		bounds := strings.SplitN(expr, "-", 2)
		start, err := parseChapterNumber(bounds[0])
		if err != nil {
			return Selection{}, err
		}
		end, err := parseChapterNumber(bounds[1])
		if err != nil {
			return Selection{}, err
		}
		if end < start {
			return Selection{}, fmt.Errorf("%w: range %q is reversed", ErrInvalidSelection, expr)
		}
		return RangeSelection(start-1, end-1), nil
	}

	n, err := parseChapterNumber(expr)
	if err != nil {
		return Selection{}, err
	}
	return IndexSelection(n - 1), nil
}

func parseChapterNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a chapter number", ErrInvalidSelection, strings.TrimSpace(s))
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: chapter numbers start at 1, got %d", ErrInvalidSelection, n)
	}
	return n, nil
}
