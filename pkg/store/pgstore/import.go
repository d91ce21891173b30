package pgstore

import (
	"context"
	"fmt"

	"github.com/dd0wney/cluso-graphalgo/pkg/store"
	"github.com/jackc/pgx/v5"
)

// ImportStats reports rows written by Import.
type ImportStats struct {
	Nodes         int64
	Relationships int64
}

// Import copies every record of src into the tables inside one
// transaction, keeping record ids. The target tables must not already
// hold those ids.
func (s *PGStore) Import(ctx context.Context, src *store.MemoryStore) (ImportStats, error) {
	nodeRows, err := nodeRows(ctx, src)
	if err != nil {
		return ImportStats{}, err
	}
	relRows, err := relationshipRows(ctx, src)
	if err != nil {
		return ImportStats{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ImportStats{}, fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stats ImportStats
	stats.Nodes, err = tx.CopyFrom(ctx, pgx.Identifier{"graph_nodes"},
		[]string{"id", "labels", "properties"}, pgx.CopyFromRows(nodeRows))
	if err != nil {
		return ImportStats{}, fmt.Errorf("failed to copy nodes: %w", err)
	}
	stats.Relationships, err = tx.CopyFrom(ctx, pgx.Identifier{"graph_relationships"},
		[]string{"id", "source", "target", "type", "properties"}, pgx.CopyFromRows(relRows))
	if err != nil {
		return ImportStats{}, fmt.Errorf("failed to copy relationships: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ImportStats{}, fmt.Errorf("failed to commit import: %w", err)
	}
	return stats, s.Refresh(ctx)
}

func propertyDocument(src *store.MemoryStore, ref store.PropertyRef) (map[string]any, error) {
	props, err := src.Properties(ref)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]any, len(props))
	for k, v := range props {
		doc[k] = v.Interface()
	}
	return doc, nil
}

func nodeRows(ctx context.Context, src *store.MemoryStore) ([][]any, error) {
	bound, err := src.NodeIDBound(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, src.NodeCount())
	err = src.ScanNodes(ctx, 0, bound, func(r *store.NodeRecord) error {
		labels := make([]string, 0, len(r.Labels))
		for _, tok := range r.Labels {
			name, err := src.LabelName(tok)
			if err != nil {
				return store.NewError("Import").Node(r.ID).Cause(err)
			}
			labels = append(labels, name)
		}
		doc, err := propertyDocument(src, r.NextProp)
		if err != nil {
			return store.NewError("Import").Node(r.ID).Cause(err)
		}
		rows = append(rows, []any{int64(r.ID), labels, doc})
		return nil
	})
	return rows, err
}

func relationshipRows(ctx context.Context, src *store.MemoryStore) ([][]any, error) {
	bound, err := src.RelationshipIDBound(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, src.RelationshipCount())
	err = src.ScanRelationships(ctx, 0, bound, func(r *store.RelationshipRecord) error {
		relType, err := src.TypeName(r.Type)
		if err != nil {
			return store.NewError("Import").Relationship(r.ID).Cause(err)
		}
		doc, err := propertyDocument(src, r.NextProp)
		if err != nil {
			return store.NewError("Import").Relationship(r.ID).Cause(err)
		}
		rows = append(rows, []any{int64(r.ID), int64(r.Source), int64(r.Target), relType, doc})
		return nil
	})
	return rows, err
}
