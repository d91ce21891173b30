package store

import "context"

// Scanner is what the graph loader needs from a record store. Scans over
// disjoint id ranges may run concurrently.
type Scanner interface {
	// LabelToken resolves a node label name.
	LabelToken(name string) (TokenID, bool)
	// TypeToken resolves a relationship type name.
	TypeToken(name string) (TokenID, bool)

	// NodeIDBound is an exclusive upper bound of all node ids.
	NodeIDBound(ctx context.Context) (uint64, error)
	// RelationshipIDBound is an exclusive upper bound of all relationship ids.
	RelationshipIDBound(ctx context.Context) (uint64, error)

	// ScanNodes visits nodes with from <= id < to in ascending id order.
	ScanNodes(ctx context.Context, from, to uint64, visit func(*NodeRecord) error) error
	// ScanRelationships visits relationships with from <= id < to in
	// ascending id order.
	ScanRelationships(ctx context.Context, from, to uint64, visit func(*RelationshipRecord) error) error

	// ReadProperty walks the property chain starting at ref and returns the
	// value stored under key.
	ReadProperty(ctx context.Context, ref PropertyRef, key string) (Value, bool, error)
}
