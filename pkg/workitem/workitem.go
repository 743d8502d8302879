// Package workitem describes the ordered, immutable sequence of IDs a
// collection session walks through.
//
// A Spec is small and JSON-serializable so it can live inside a checkpoint;
// the Sequence it produces is evaluated lazily, so a range of two million
// vendor IDs costs nothing until an index is read.
package workitem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind selects how a Spec produces IDs.
type Kind string

const (
	// KindRange produces the decimal integers Start..End inclusive.
	KindRange Kind = "range"

	// KindList produces the explicit IDs in order.
	KindList Kind = "list"
)

// MaxRangeLen caps the number of items a range may describe.
const MaxRangeLen = 100_000_000

// ErrInvalidSpec is returned for malformed or empty item specifications.
var ErrInvalidSpec = errors.New("invalid work item spec")

// Spec is the persisted description of a work item sequence.
type Spec struct {
	Kind  Kind     `json:"kind"`
	Start int64    `json:"start,omitempty"`
	End   int64    `json:"end,omitempty"`
	IDs   []string `json:"ids,omitempty"`
}

// Sequence is an ordered, immutable list of work item IDs.
type Sequence interface {
	Len() int
	At(i int) string
}

// Range returns a spec for the inclusive numeric range [start, end].
func Range(start, end int64) Spec {
	return Spec{Kind: KindRange, Start: start, End: end}
}

// List returns a spec for an explicit ID list.
func List(ids ...string) Spec {
	return Spec{Kind: KindList, IDs: ids}
}

// Parse accepts either "START-END" or a comma-separated ID list.
func Parse(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Spec{}, fmt.Errorf("%w: empty", ErrInvalidSpec)
	}

	if lo, hi, ok := strings.Cut(s, "-"); ok && !strings.Contains(s, ",") {
		start, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: range start %q: %v", ErrInvalidSpec, lo, err)
		}
		end, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: range end %q: %v", ErrInvalidSpec, hi, err)
		}
		spec := Range(start, end)
		return spec, spec.Validate()
	}

	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	spec := List(ids...)
	return spec, spec.Validate()
}

// Validate checks that the spec describes at least one item.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindRange:
		if s.End < s.Start {
			return fmt.Errorf("%w: range end %d before start %d", ErrInvalidSpec, s.End, s.Start)
		}
		// End >= Start, so the unsigned difference is exact.
		if uint64(s.End)-uint64(s.Start) >= MaxRangeLen {
			return fmt.Errorf("%w: range %d-%d exceeds %d items", ErrInvalidSpec, s.Start, s.End, MaxRangeLen)
		}
	case KindList:
		if len(s.IDs) == 0 {
			return fmt.Errorf("%w: empty id list", ErrInvalidSpec)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s.Kind)
	}
	return nil
}

// Sequence materializes the spec. It panics on an invalid spec; call
// Validate first for untrusted input.
func (s Spec) Sequence() Sequence {
	if err := s.Validate(); err != nil {
		panic(err)
	}
	if s.Kind == KindRange {
		return rangeSeq{start: s.Start, n: int(s.End - s.Start + 1)}
	}
	return listSeq(s.IDs)
}

// String renders the spec in the form accepted by Parse.
func (s Spec) String() string {
	if s.Kind == KindRange {
		return fmt.Sprintf("%d-%d", s.Start, s.End)
	}
	return strings.Join(s.IDs, ",")
}

type rangeSeq struct {
	start int64
	n     int
}

func (r rangeSeq) Len() int { return r.n }

func (r rangeSeq) At(i int) string {
	if i < 0 || i >= r.n {
		panic(fmt.Sprintf("workitem: index %d out of range [0,%d)", i, r.n))
	}
	return strconv.FormatInt(r.start+int64(i), 10)
}

type listSeq []string

func (l listSeq) Len() int        { return len(l) }
func (l listSeq) At(i int) string { return l[i] }
