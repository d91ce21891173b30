// Package loading turns record-store scans into a graph.Graph. Records are
// scanned in id-range chunks, filtered into fixed-capacity batch buffers
// and handed to the graph builder strictly in chunk order.
package loading

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-graphalgo/pkg/pools"
	"github.com/dd0wney/cluso-graphalgo/pkg/store"
)

// ErrBufferFull is returned when a record is added to a full buffer.
var ErrBufferFull = errors.New("batch buffer is full")

// Buffer collects the accepted records of one scan chunk. R is the record
// type offered by the scan, T the projected entry kept per record. When
// property reading was requested, each entry is paired with the record's
// property reference.
type Buffer[R any, T any] struct {
	accept  func(R) bool
	project func(R) (T, store.PropertyRef)
	release func([]T)

	entries  []T
	props    []store.PropertyRef
	capacity int
	rejected int
}

// NewBuffer creates a buffer holding at most capacity entries.
func NewBuffer[R any, T any](capacity int, readProperties bool, accept func(R) bool, project func(R) (T, store.PropertyRef)) *Buffer[R, T] {
	b := &Buffer[R, T]{
		accept:   accept,
		project:  project,
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
	if readProperties {
		b.props = make([]store.PropertyRef, 0, capacity)
	}
	return b
}

// Offer adds the record if the filter accepts it.
func (b *Buffer[R, T]) Offer(r R) error {
	if !b.accept(r) {
		b.rejected++
		return nil
	}
	entry, ref := b.project(r)
	return b.Add(entry, ref)
}

// Add appends an entry without consulting the filter.
func (b *Buffer[R, T]) Add(entry T, ref store.PropertyRef) error {
	if len(b.entries) >= b.capacity {
		return fmt.Errorf("%w: capacity %d", ErrBufferFull, b.capacity)
	}
	b.entries = append(b.entries, entry)
	if b.props != nil {
		b.props = append(b.props, ref)
	}
	return nil
}

// Entries returns the accepted entries in offer order.
func (b *Buffer[R, T]) Entries() []T { return b.entries }

// Properties returns the property references paired 1:1 with Entries, or
// nil when property reading was not requested.
func (b *Buffer[R, T]) Properties() []store.PropertyRef { return b.props }

func (b *Buffer[R, T]) Len() int { return len(b.entries) }

func (b *Buffer[R, T]) Cap() int { return b.capacity }

func (b *Buffer[R, T]) IsFull() bool { return len(b.entries) >= b.capacity }

// Rejected returns how many offered records the filter turned away.
func (b *Buffer[R, T]) Rejected() int { return b.rejected }

// Reset empties the buffer, keeping its capacity.
func (b *Buffer[R, T]) Reset() {
	b.entries = b.entries[:0]
	if b.props != nil {
		b.props = b.props[:0]
	}
	b.rejected = 0
}

// Release hands pooled storage back. The buffer must not be used afterwards.
func (b *Buffer[R, T]) Release() {
	if b.release != nil {
		b.release(b.entries)
	}
	b.entries, b.props = nil, nil
}

// NodesBuffer buffers the ids of accepted nodes.
type NodesBuffer = Buffer[*store.NodeRecord, uint64]

// NewNodesBatchBuffer creates a node buffer accepting nodes that carry at
// least one of labels (any node when labels is empty).
func NewNodesBatchBuffer(labels LabelSet, capacity int, readProperties bool) *NodesBuffer {
	b := &NodesBuffer{
		accept: func(r *store.NodeRecord) bool {
			return labels.AcceptsAny(r.Labels)
		},
		project: func(r *store.NodeRecord) (uint64, store.PropertyRef) {
			return r.ID, r.NextProp
		},
		release:  pools.Uint64s.Put,
		entries:  pools.Uint64s.Get(capacity),
		capacity: capacity,
	}
	if readProperties {
		b.props = make([]store.PropertyRef, 0, capacity)
	}
	return b
}

// RelationshipEntry is the endpoint pair of a buffered relationship.
type RelationshipEntry struct {
	Source uint64
	Target uint64
}

// RelationshipsBuffer buffers endpoint pairs of accepted relationships.
type RelationshipsBuffer = Buffer[*store.RelationshipRecord, RelationshipEntry]

// NewRelationshipsBatchBuffer creates a relationship buffer accepting the
// given types (any type when types is empty).
func NewRelationshipsBatchBuffer(types LabelSet, capacity int, readProperties bool) *RelationshipsBuffer {
	return NewBuffer(capacity, readProperties,
		func(r *store.RelationshipRecord) bool {
			return types.Accepts(r.Type)
		},
		func(r *store.RelationshipRecord) (RelationshipEntry, store.PropertyRef) {
			return RelationshipEntry{Source: r.Source, Target: r.Target}, r.NextProp
		})
}
