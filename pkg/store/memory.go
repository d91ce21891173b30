package store

import (
	"context"
	"slices"
	"sync"

	"github.com/tidwall/btree"
)

// scanBatch bounds how many records a scan copies out of the index per
// lock acquisition.
const scanBatch = 1024

type propertyEntry struct {
	Key   string
	Value Value
	Next  PropertyRef
}

// MemoryStore is an in-memory record store. Records are kept in ID order
// in B-trees; property blocks live in an append-only arena and are linked
// into per-record chains.
type MemoryStore struct {
	mu sync.RWMutex

	labels *TokenRegistry
	types  *TokenRegistry

	nodes         *btree.BTreeG[*NodeRecord]
	relationships *btree.BTreeG[*RelationshipRecord]
	properties    []propertyEntry

	nextNodeID uint64
	nextRelID  uint64
	closed     bool
}

func nodeLess(a, b *NodeRecord) bool { return a.ID < b.ID }

func relationshipLess(a, b *RelationshipRecord) bool { return a.ID < b.ID }

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		labels:        NewTokenRegistry(),
		types:         NewTokenRegistry(),
		nodes:         btree.NewBTreeG(nodeLess),
		relationships: btree.NewBTreeG(relationshipLess),
	}
}

// AddNode stores a node under the next free id.
func (s *MemoryStore) AddNode(labels []string, props map[string]any) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextNodeID
	if err := s.insertNodeLocked(id, labels, props); err != nil {
		return 0, err
	}
	return id, nil
}

// AddNodeWithID stores a node under an explicit id.
func (s *MemoryStore) AddNodeWithID(id uint64, labels []string, props map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertNodeLocked(id, labels, props)
}

func (s *MemoryStore) insertNodeLocked(id uint64, labels []string, props map[string]any) error {
	if s.closed {
		return NewError("AddNode").Node(id).Cause(ErrStoreClosed)
	}
	if _, ok := s.nodes.Get(&NodeRecord{ID: id}); ok {
		return NewError("AddNode").Node(id).Cause(ErrDuplicateID)
	}
	ref, err := s.appendPropertiesLocked(props)
	if err != nil {
		return NewError("AddNode").Node(id).Cause(err)
	}

	rec := &NodeRecord{ID: id, NextProp: ref}
	for _, l := range labels {
		tok := s.labels.Intern(l)
		if !slices.Contains(rec.Labels, tok) {
			rec.Labels = append(rec.Labels, tok)
		}
	}
	s.nodes.Set(rec)
	if id >= s.nextNodeID {
		s.nextNodeID = id + 1
	}
	return nil
}

// AddRelationship stores a relationship between two existing nodes.
func (s *MemoryStore) AddRelationship(source, target uint64, relType string, props map[string]any) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextRelID
	if s.closed {
		return 0, NewError("AddRelationship").Relationship(id).Cause(ErrStoreClosed)
	}
	for _, endpoint := range []uint64{source, target} {
		if _, ok := s.nodes.Get(&NodeRecord{ID: endpoint}); !ok {
			return 0, NewError("AddRelationship").Relationship(id).
				Context("endpoint %d", endpoint).Cause(ErrNodeNotFound)
		}
	}
	ref, err := s.appendPropertiesLocked(props)
	if err != nil {
		return 0, NewError("AddRelationship").Relationship(id).Cause(err)
	}

	s.relationships.Set(&RelationshipRecord{
		ID:       id,
		Source:   source,
		Target:   target,
		Type:     s.types.Intern(relType),
		NextProp: ref,
	})
	s.nextRelID++
	return id, nil
}

// appendPropertiesLocked writes props as a chain in sorted key order and
// returns its head.
func (s *MemoryStore) appendPropertiesLocked(props map[string]any) (PropertyRef, error) {
	if len(props) == 0 {
		return NoProperties, nil
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	values := make([]Value, len(keys))
	for i, k := range keys {
		v, err := ValueOf(props[k])
		if err != nil {
			return NoProperties, err
		}
		values[i] = v
	}

	head := NoProperties
	for i := len(keys) - 1; i >= 0; i-- {
		s.properties = append(s.properties, propertyEntry{Key: keys[i], Value: values[i], Next: head})
		head = PropertyRef(len(s.properties) - 1)
	}
	return head, nil
}

// NodeCount returns the number of stored nodes.
func (s *MemoryStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes.Len()
}

// RelationshipCount returns the number of stored relationships.
func (s *MemoryStore) RelationshipCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relationships.Len()
}

// LabelName returns the name behind a label token.
func (s *MemoryStore) LabelName(id TokenID) (string, error) {
	if name, ok := s.labels.Name(id); ok {
		return name, nil
	}
	return "", ErrUnknownToken
}

// TypeName returns the name behind a relationship type token.
func (s *MemoryStore) TypeName(id TokenID) (string, error) {
	if name, ok := s.types.Name(id); ok {
		return name, nil
	}
	return "", ErrUnknownToken
}

// Close marks the store closed. Further writes and scans fail.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) LabelToken(name string) (TokenID, bool) { return s.labels.Lookup(name) }

func (s *MemoryStore) TypeToken(name string) (TokenID, bool) { return s.types.Lookup(name) }

func (s *MemoryStore) NodeIDBound(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, NewError("NodeIDBound").Cause(ErrStoreClosed)
	}
	return s.nextNodeID, nil
}

func (s *MemoryStore) RelationshipIDBound(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, NewError("RelationshipIDBound").Cause(ErrStoreClosed)
	}
	return s.nextRelID, nil
}

// ScanNodes copies records out in batches so visit runs without the lock
// held and may call back into the store.
func (s *MemoryStore) ScanNodes(ctx context.Context, from, to uint64, visit func(*NodeRecord) error) error {
	return scanRange(ctx, s, "ScanNodes", s.nodes, from, to,
		func(id uint64) *NodeRecord { return &NodeRecord{ID: id} },
		func(r *NodeRecord) uint64 { return r.ID }, visit)
}

func (s *MemoryStore) ScanRelationships(ctx context.Context, from, to uint64, visit func(*RelationshipRecord) error) error {
	return scanRange(ctx, s, "ScanRelationships", s.relationships, from, to,
		func(id uint64) *RelationshipRecord { return &RelationshipRecord{ID: id} },
		func(r *RelationshipRecord) uint64 { return r.ID }, visit)
}

func scanRange[R any](
	ctx context.Context,
	s *MemoryStore,
	op string,
	tree *btree.BTreeG[R],
	from, to uint64,
	pivot func(uint64) R,
	idOf func(R) uint64,
	visit func(R) error,
) error {
	batch := make([]R, 0, scanBatch)
	next := from
	for next < to {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch = batch[:0]
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			return NewError(op).Cause(ErrStoreClosed)
		}
		tree.Ascend(pivot(next), func(r R) bool {
			if idOf(r) >= to {
				return false
			}
			batch = append(batch, r)
			return len(batch) < scanBatch
		})
		s.mu.RUnlock()

		if len(batch) == 0 {
			return nil
		}
		for _, r := range batch {
			if err := visit(r); err != nil {
				return err
			}
		}
		next = idOf(batch[len(batch)-1]) + 1
	}
	return nil
}

// ReadProperty walks the chain at ref. Chains written by MemoryStore hold
// each key at most once.
func (s *MemoryStore) ReadProperty(ctx context.Context, ref PropertyRef, key string) (Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ref != NoProperties {
		if ref < 0 || int(ref) >= len(s.properties) {
			return Value{}, false, NewError("ReadProperty").Context("ref %d", ref).Cause(ErrInvalidPropertyRef)
		}
		entry := &s.properties[ref]
		if entry.Key == key {
			return entry.Value, true, nil
		}
		ref = entry.Next
	}
	return Value{}, false, nil
}

// Properties returns every property on the chain at ref.
func (s *MemoryStore) Properties(ref PropertyRef) (map[string]Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	props := make(map[string]Value)
	for ref != NoProperties {
		if ref < 0 || int(ref) >= len(s.properties) {
			return nil, NewError("Properties").Context("ref %d", ref).Cause(ErrInvalidPropertyRef)
		}
		entry := &s.properties[ref]
		props[entry.Key] = entry.Value
		ref = entry.Next
	}
	return props, nil
}

var _ Scanner = (*MemoryStore)(nil)
