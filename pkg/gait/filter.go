package gait

import (
	"sort"
	"strconv"
	"strings"
)

// SettleFilter restricts which servos the settler drives. A nil filter allows every
// servo; an empty one allows none.
//
// Filters are never modified after creation; With returns a new filter.
type SettleFilter struct {
	indices map[int]struct{}
}

// NewSettleFilter returns a filter that allows exactly the given indices.
func NewSettleFilter(indices ...int) *SettleFilter {
	f := &SettleFilter{indices: make(map[int]struct{}, len(indices))}
	for _, i := range indices {
		f.indices[i] = struct{}{}
	}
	return f
}

// With returns a copy of f that also allows index.
func (f *SettleFilter) With(index int) *SettleFilter {
	if f == nil {
		return nil
	}
	return NewSettleFilter(append(f.Indices(), index)...)
}

// Allows reports whether the servo with the given index may be settled.
func (f *SettleFilter) Allows(index int) bool {
	if f == nil {
		return true
	}
	_, ok := f.indices[index]
	return ok
}

// Indices returns the allowed indices in ascending order, or nil for an
// unrestricted filter.
func (f *SettleFilter) Indices() []int {
	if f == nil {
		return nil
	}
	out := make([]int, 0, len(f.indices))
	for i := range f.indices {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (f *SettleFilter) String() string {
	if f == nil {
		return "all"
	}
	parts := make([]string, 0, len(f.indices))
	for _, i := range f.Indices() {
		parts = append(parts, strconv.Itoa(i))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
