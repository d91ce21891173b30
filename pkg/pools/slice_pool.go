package pools

import (
	"slices"
	"sync"
)

// SlicePool pools slices of T by capacity class. Requests above the
// largest class are allocated directly and never pooled.
type SlicePool[T any] struct {
	classes []int
	pools   []sync.Pool
}

// NewSlicePool creates a pool with the given capacity classes.
func NewSlicePool[T any](classes ...int) *SlicePool[T] {
	classes = slices.Clone(classes)
	slices.Sort(classes)
	classes = slices.Compact(classes)

	p := &SlicePool[T]{
		classes: classes,
		pools:   make([]sync.Pool, len(classes)),
	}
	for i, size := range classes {
		p.pools[i].New = func() any {
			s := make([]T, 0, size)
			return &s
		}
	}
	return p
}

// class returns the index of the smallest class holding n elements, or -1.
func (p *SlicePool[T]) class(n int) int {
	i, _ := slices.BinarySearch(p.classes, n)
	if i == len(p.classes) {
		return -1
	}
	return i
}

// Get returns a slice with length 0 and capacity of at least n.
func (p *SlicePool[T]) Get(n int) []T {
	i := p.class(n)
	if i < 0 {
		return make([]T, 0, n)
	}
	sp := p.pools[i].Get().(*[]T)
	return (*sp)[:0]
}

// GetSized returns a slice of length n. Contents are not zeroed.
func (p *SlicePool[T]) GetSized(n int) []T {
	return p.Get(n)[:n]
}

// Put returns s to the pool. Slices whose capacity is not exactly one of
// the classes are dropped.
func (p *SlicePool[T]) Put(s []T) {
	if s == nil {
		return
	}
	i, found := slices.BinarySearch(p.classes, cap(s))
	if !found {
		return
	}
	clear(s[:cap(s)])
	s = s[:0]
	p.pools[i].Put(&s)
}
