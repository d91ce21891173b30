// Package pgstore is a PostgreSQL-backed record store. Nodes and
// relationships live in two tables keyed by their stable ids; properties
// are stored as jsonb and fetched per key only when the loader asks for
// one.
package pgstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-graphalgo/pkg/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultPageSize is the number of rows fetched per keyset page.
const DefaultPageSize = 5000

const schema = `
CREATE TABLE IF NOT EXISTS graph_nodes (
	id         BIGINT PRIMARY KEY,
	labels     TEXT[] NOT NULL DEFAULT '{}',
	properties JSONB  NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS graph_relationships (
	id         BIGINT PRIMARY KEY,
	source     BIGINT NOT NULL REFERENCES graph_nodes(id),
	target     BIGINT NOT NULL REFERENCES graph_nodes(id),
	type       TEXT   NOT NULL,
	properties JSONB  NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_graph_relationships_type ON graph_relationships(type);
`

// PGStore handles graph record persistence using PostgreSQL
type PGStore struct {
	pool     *pgxpool.Pool
	pageSize int

	labels *store.TokenRegistry
	types  *store.TokenRegistry
}

// NewPGStore creates a new PostgreSQL-backed record store, creates the
// tables if needed and loads the label and type vocabularies.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pooling configuration
	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{
		pool:     pool,
		pageSize: DefaultPageSize,
		labels:   store.NewTokenRegistry(),
		types:    store.NewTokenRegistry(),
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	if err := s.Refresh(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the record tables if they don't exist.
func (s *PGStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Refresh reloads the label and relationship type vocabularies. Tokens
// already handed out keep their values.
func (s *PGStore) Refresh(ctx context.Context) error {
	if err := s.loadTokens(ctx, s.labels,
		`SELECT DISTINCT unnest(labels) AS label FROM graph_nodes ORDER BY label`); err != nil {
		return fmt.Errorf("failed to load labels: %w", err)
	}
	if err := s.loadTokens(ctx, s.types,
		`SELECT DISTINCT type FROM graph_relationships ORDER BY type`); err != nil {
		return fmt.Errorf("failed to load relationship types: %w", err)
	}
	return nil
}

func (s *PGStore) loadTokens(ctx context.Context, reg *store.TokenRegistry, query string) error {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return err
	}
	for _, name := range names {
		reg.Intern(name)
	}
	return nil
}

// SetPageSize changes the keyset page size used by scans.
func (s *PGStore) SetPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

// Ping checks database connectivity
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) LabelToken(name string) (store.TokenID, bool) { return s.labels.Lookup(name) }

func (s *PGStore) TypeToken(name string) (store.TokenID, bool) { return s.types.Lookup(name) }

// NodeIDBound returns max(id)+1, or 0 for an empty table.
func (s *PGStore) NodeIDBound(ctx context.Context) (uint64, error) {
	return s.idBound(ctx, "NodeIDBound", `SELECT COALESCE(MAX(id) + 1, 0) FROM graph_nodes`)
}

func (s *PGStore) RelationshipIDBound(ctx context.Context) (uint64, error) {
	return s.idBound(ctx, "RelationshipIDBound", `SELECT COALESCE(MAX(id) + 1, 0) FROM graph_relationships`)
}

func (s *PGStore) idBound(ctx context.Context, op, query string) (uint64, error) {
	var bound int64
	if err := s.pool.QueryRow(ctx, query).Scan(&bound); err != nil {
		return 0, store.NewError(op).Cause(err)
	}
	if bound < 0 {
		return 0, store.NewError(op).Context("negative id bound %d", bound)
	}
	return uint64(bound), nil
}

// Property refs carry the owning record: the id shifted left by one, with
// the low bit set for relationships. Ids must stay below 2^62.
const relationshipBit = 1

func nodeRef(id uint64) store.PropertyRef { return store.PropertyRef(id << 1) }

func relationshipRef(id uint64) store.PropertyRef {
	return store.PropertyRef(id<<1 | relationshipBit)
}

// propertyRef returns ref for records with properties and NoProperties
// for records whose document is empty.
func propertyRef(hasProps bool, ref store.PropertyRef) store.PropertyRef {
	if !hasProps {
		return store.NoProperties
	}
	return ref
}

// ScanNodes pages through graph_nodes by id.
func (s *PGStore) ScanNodes(ctx context.Context, from, to uint64, visit func(*store.NodeRecord) error) error {
	const query = `SELECT id, labels, properties <> '{}'::jsonb FROM graph_nodes
		WHERE id >= $1 AND id < $2 ORDER BY id LIMIT $3`

	return s.page(ctx, from, to, query, func(rows pgx.Rows) (uint64, error) {
		var (
			id       int64
			labels   []string
			hasProps bool
		)
		if err := rows.Scan(&id, &labels, &hasProps); err != nil {
			return 0, err
		}
		rec := &store.NodeRecord{ID: uint64(id), NextProp: propertyRef(hasProps, nodeRef(uint64(id)))}
		for _, l := range labels {
			rec.Labels = append(rec.Labels, s.labels.Intern(l))
		}
		return rec.ID, visit(rec)
	})
}

// ScanRelationships pages through graph_relationships by id.
func (s *PGStore) ScanRelationships(ctx context.Context, from, to uint64, visit func(*store.RelationshipRecord) error) error {
	const query = `SELECT id, source, target, type, properties <> '{}'::jsonb FROM graph_relationships
		WHERE id >= $1 AND id < $2 ORDER BY id LIMIT $3`

	return s.page(ctx, from, to, query, func(rows pgx.Rows) (uint64, error) {
		var (
			id, source, target int64
			relType            string
			hasProps           bool
		)
		if err := rows.Scan(&id, &source, &target, &relType, &hasProps); err != nil {
			return 0, err
		}
		rec := &store.RelationshipRecord{
			ID:       uint64(id),
			Source:   uint64(source),
			Target:   uint64(target),
			Type:     s.types.Intern(relType),
			NextProp: propertyRef(hasProps, relationshipRef(uint64(id))),
		}
		return rec.ID, visit(rec)
	})
}

// page runs query repeatedly, advancing the lower bound past the last id
// seen, until a page comes back short.
func (s *PGStore) page(ctx context.Context, from, to uint64, query string, row func(pgx.Rows) (uint64, error)) error {
	next := from
	for next < to {
		rows, err := s.pool.Query(ctx, query, int64(next), int64(to), s.pageSize)
		if err != nil {
			return store.NewError("Scan").Context("ids [%d,%d)", next, to).Cause(err)
		}

		n := 0
		var last uint64
		for rows.Next() {
			id, err := row(rows)
			if err != nil {
				rows.Close()
				return err
			}
			last = id
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return store.NewError("Scan").Context("ids [%d,%d)", next, to).Cause(err)
		}
		if n < s.pageSize {
			return nil
		}
		next = last + 1
	}
	return nil
}

// ReadProperty fetches key from the properties of the record ref points
// at. Only the requested field leaves the database.
func (s *PGStore) ReadProperty(ctx context.Context, ref store.PropertyRef, key string) (store.Value, bool, error) {
	if ref == store.NoProperties {
		return store.Value{}, false, nil
	}
	if ref < 0 {
		return store.Value{}, false, store.NewError("ReadProperty").Context("ref %d", ref).Cause(store.ErrInvalidPropertyRef)
	}

	id := uint64(ref) >> 1
	query := `SELECT properties -> $2::text FROM graph_nodes WHERE id = $1`
	if ref&relationshipBit != 0 {
		query = `SELECT properties -> $2::text FROM graph_relationships WHERE id = $1`
	}

	var field []byte
	err := s.pool.QueryRow(ctx, query, int64(id), key).Scan(&field)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Value{}, false, store.NewError("ReadProperty").Context("ref %d", ref).Cause(store.ErrInvalidPropertyRef)
	}
	if err != nil {
		return store.Value{}, false, store.NewError("ReadProperty").Context("ref %d", ref).Cause(err)
	}
	return decodeField(field, key)
}

// decodeField converts one jsonb field. A nil field means the key is
// absent.
func decodeField(field []byte, key string) (store.Value, bool, error) {
	if field == nil {
		return store.Value{}, false, nil
	}
	v, err := jsonValue(field)
	if err != nil {
		return store.Value{}, false, fmt.Errorf("property %q: %w", key, err)
	}
	if v == nil {
		return store.Value{}, false, nil
	}
	value, err := store.ValueOf(v)
	if err != nil {
		return store.Value{}, false, fmt.Errorf("property %q: %w", key, err)
	}
	return value, true, nil
}

// jsonValue converts a scalar JSON value. Integers stay integral; null
// yields nil.
func jsonValue(field []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(field))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case nil, string, bool:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	}
	return nil, fmt.Errorf("%w: %s", store.ErrUnsupportedValueType, field)
}

var _ store.Scanner = (*PGStore)(nil)
