package graph

import (
	"errors"
	"fmt"
	"math"
)

// ErrTooManyNodes is returned when the internal index space is exhausted.
var ErrTooManyNodes = errors.New("too many nodes for int32 index space")

// MaxNodes is the largest node count a Graph can hold.
const MaxNodes = math.MaxInt32

// IDMap maps store identifiers to dense internal indices and back. It is
// written by a single owner during loading and read-only afterwards.
type IDMap struct {
	toInternal map[uint64]int32
	toOriginal []uint64
}

// NewIDMap creates an empty map sized for the expected node count.
func NewIDMap(expected int) *IDMap {
	if expected < 0 {
		expected = 0
	}
	return &IDMap{
		toInternal: make(map[uint64]int32, expected),
		toOriginal: make([]uint64, 0, expected),
	}
}

// add assigns the next index to id. Known ids keep their first index and
// report false.
func (m *IDMap) add(id uint64) (int32, bool, error) {
	if idx, ok := m.toInternal[id]; ok {
		return idx, false, nil
	}
	if len(m.toOriginal) >= MaxNodes {
		return 0, false, fmt.Errorf("%w: %d", ErrTooManyNodes, len(m.toOriginal)+1)
	}
	idx := int32(len(m.toOriginal))
	m.toInternal[id] = idx
	m.toOriginal = append(m.toOriginal, id)
	return idx, true, nil
}

// Len returns the number of mapped nodes.
func (m *IDMap) Len() int {
	return len(m.toOriginal)
}

// ToInternal returns the internal index of a store identifier.
func (m *IDMap) ToInternal(id uint64) (int, bool) {
	idx, ok := m.toInternal[id]
	return int(idx), ok
}

// OriginalID returns the store identifier of an internal index.
func (m *IDMap) OriginalID(i int) uint64 {
	return m.toOriginal[i]
}
