package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/dd0wney/cluso-graphalgo/pkg/pools"
	"github.com/golang/snappy"
	"golang.org/x/exp/mmap"
)

// Snapshot layout:
//
//	[magic:8]
//	repeated [kind:1][rawLen:4][compLen:4][crc32:4][snappy data:compLen]
//
// Blocks appear in kind order: tokens, properties, nodes..., relationships...,
// end. The crc covers the compressed bytes. Payloads are gob encoded.
const (
	snapshotMagic      = "CGSNAP01"
	blockHeaderSize    = 13
	recordsPerBlock    = 1 << 14
	propertiesPerBlock = 1 << 15
)

type blockKind uint8

const (
	blockTokens blockKind = iota + 1
	blockProperties
	blockNodes
	blockRelationships
	blockEnd
)

type tokensPayload struct {
	Labels []string
	Types  []string
}

type endPayload struct {
	Nodes         uint64
	Relationships uint64
	Properties    uint64
	NextNodeID    uint64
	NextRelID     uint64
}

// SnapshotInfo summarizes a written or opened snapshot.
type SnapshotInfo struct {
	Nodes         uint64
	Relationships uint64
	Blocks        int
	Bytes         int64
}

type snapshotWriter struct {
	w      *bufio.Writer
	blocks int
	bytes  int64
	raw    bytes.Buffer
}

func (sw *snapshotWriter) writeBlock(kind blockKind, payload any) error {
	sw.raw.Reset()
	if err := gob.NewEncoder(&sw.raw).Encode(payload); err != nil {
		return fmt.Errorf("encode block %d: %w", kind, err)
	}
	raw := sw.raw.Bytes()

	buf := pools.Bytes.GetSized(snappy.MaxEncodedLen(len(raw)))
	defer pools.Bytes.Put(buf)
	compressed := snappy.Encode(buf, raw)

	var header [blockHeaderSize]byte
	header[0] = byte(kind)
	binary.BigEndian.PutUint32(header[1:5], uint32(len(raw)))
	binary.BigEndian.PutUint32(header[5:9], uint32(len(compressed)))
	binary.BigEndian.PutUint32(header[9:13], crc32.ChecksumIEEE(compressed))

	if _, err := sw.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := sw.w.Write(compressed); err != nil {
		return err
	}
	sw.blocks++
	sw.bytes += int64(blockHeaderSize + len(compressed))
	return nil
}

// WriteSnapshot writes the store's records to path. The file is written
// under a temporary name and renamed into place once synced.
func (s *MemoryStore) WriteSnapshot(path string) (SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return SnapshotInfo{}, NewError("WriteSnapshot").Context("path %s", path).Cause(ErrStoreClosed)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return SnapshotInfo{}, NewError("WriteSnapshot").Context("path %s", path).Cause(err)
	}
	info, err := s.writeSnapshotLocked(file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return SnapshotInfo{}, NewError("WriteSnapshot").Context("path %s", path).Cause(err)
	}
	return info, nil
}

func (s *MemoryStore) writeSnapshotLocked(file *os.File) (SnapshotInfo, error) {
	sw := &snapshotWriter{w: bufio.NewWriter(file)}
	if _, err := sw.w.WriteString(snapshotMagic); err != nil {
		return SnapshotInfo{}, err
	}
	sw.bytes = int64(len(snapshotMagic))

	if err := sw.writeBlock(blockTokens, tokensPayload{
		Labels: s.labels.Names(),
		Types:  s.types.Names(),
	}); err != nil {
		return SnapshotInfo{}, err
	}

	for lo := 0; lo < len(s.properties); lo += propertiesPerBlock {
		hi := min(lo+propertiesPerBlock, len(s.properties))
		if err := sw.writeBlock(blockProperties, s.properties[lo:hi]); err != nil {
			return SnapshotInfo{}, err
		}
	}

	nodes := make([]NodeRecord, 0, min(s.nodes.Len(), recordsPerBlock))
	var err error
	s.nodes.Scan(func(r *NodeRecord) bool {
		nodes = append(nodes, *r)
		if len(nodes) == recordsPerBlock {
			err = sw.writeBlock(blockNodes, nodes)
			nodes = nodes[:0]
		}
		return err == nil
	})
	if err == nil && len(nodes) > 0 {
		err = sw.writeBlock(blockNodes, nodes)
	}
	if err != nil {
		return SnapshotInfo{}, err
	}

	rels := make([]RelationshipRecord, 0, min(s.relationships.Len(), recordsPerBlock))
	s.relationships.Scan(func(r *RelationshipRecord) bool {
		rels = append(rels, *r)
		if len(rels) == recordsPerBlock {
			err = sw.writeBlock(blockRelationships, rels)
			rels = rels[:0]
		}
		return err == nil
	})
	if err == nil && len(rels) > 0 {
		err = sw.writeBlock(blockRelationships, rels)
	}
	if err != nil {
		return SnapshotInfo{}, err
	}

	end := endPayload{
		Nodes:         uint64(s.nodes.Len()),
		Relationships: uint64(s.relationships.Len()),
		Properties:    uint64(len(s.properties)),
		NextNodeID:    s.nextNodeID,
		NextRelID:     s.nextRelID,
	}
	if err := sw.writeBlock(blockEnd, end); err != nil {
		return SnapshotInfo{}, err
	}
	if err := sw.w.Flush(); err != nil {
		return SnapshotInfo{}, err
	}
	if err := file.Sync(); err != nil {
		return SnapshotInfo{}, err
	}
	return SnapshotInfo{
		Nodes:         end.Nodes,
		Relationships: end.Relationships,
		Blocks:        sw.blocks,
		Bytes:         sw.bytes,
	}, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptSnapshot, fmt.Sprintf(format, args...))
}

// OpenSnapshot memory-maps the snapshot at path and rebuilds a MemoryStore
// from it.
func OpenSnapshot(path string) (*MemoryStore, SnapshotInfo, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, SnapshotInfo{}, NewError("OpenSnapshot").Context("path %s", path).Cause(err)
	}
	defer reader.Close()

	s, info, err := readSnapshot(reader)
	if err != nil {
		return nil, SnapshotInfo{}, NewError("OpenSnapshot").Context("path %s", path).Cause(err)
	}
	return s, info, nil
}

func readSnapshot(r *mmap.ReaderAt) (*MemoryStore, SnapshotInfo, error) {
	size := int64(r.Len())
	magic := make([]byte, len(snapshotMagic))
	if size < int64(len(magic)) {
		return nil, SnapshotInfo{}, corrupt("file too short")
	}
	if _, err := r.ReadAt(magic, 0); err != nil {
		return nil, SnapshotInfo{}, err
	}
	if string(magic) != snapshotMagic {
		return nil, SnapshotInfo{}, corrupt("bad magic %q", magic)
	}

	s := NewMemoryStore()
	info := SnapshotInfo{Bytes: size}
	offset := int64(len(snapshotMagic))
	last := blockKind(0)
	var end *endPayload

	for offset < size {
		if end != nil {
			return nil, SnapshotInfo{}, corrupt("trailing data at offset %d", offset)
		}
		kind, raw, next, err := readBlock(r, offset, size)
		if err != nil {
			return nil, SnapshotInfo{}, err
		}
		if kind < last {
			pools.Bytes.Put(raw)
			return nil, SnapshotInfo{}, corrupt("block %d out of order at offset %d", kind, offset)
		}
		last = kind

		err = s.applyBlock(kind, raw, &end)
		pools.Bytes.Put(raw)
		if err != nil {
			return nil, SnapshotInfo{}, fmt.Errorf("block at offset %d: %w", offset, err)
		}
		info.Blocks++
		offset = next
	}

	if end == nil {
		return nil, SnapshotInfo{}, corrupt("missing end block")
	}
	if uint64(s.nodes.Len()) != end.Nodes || uint64(s.relationships.Len()) != end.Relationships ||
		uint64(len(s.properties)) != end.Properties {
		return nil, SnapshotInfo{}, corrupt("record counts do not match end block")
	}
	s.nextNodeID = end.NextNodeID
	s.nextRelID = end.NextRelID
	info.Nodes = end.Nodes
	info.Relationships = end.Relationships
	return s, info, nil
}

// readBlock returns the decoded payload, borrowed from pools.Bytes.
func readBlock(r io.ReaderAt, offset, size int64) (blockKind, []byte, int64, error) {
	if size-offset < blockHeaderSize {
		return 0, nil, 0, corrupt("truncated block header at offset %d", offset)
	}
	var header [blockHeaderSize]byte
	if _, err := r.ReadAt(header[:], offset); err != nil {
		return 0, nil, 0, err
	}
	kind := blockKind(header[0])
	rawLen := int64(binary.BigEndian.Uint32(header[1:5]))
	compLen := int64(binary.BigEndian.Uint32(header[5:9]))
	checksum := binary.BigEndian.Uint32(header[9:13])

	if kind < blockTokens || kind > blockEnd {
		return 0, nil, 0, corrupt("unknown block kind %d at offset %d", kind, offset)
	}
	dataStart := offset + blockHeaderSize
	if compLen > size-dataStart {
		return 0, nil, 0, corrupt("block at offset %d overruns file", offset)
	}

	compressed := pools.Bytes.GetSized(int(compLen))
	defer pools.Bytes.Put(compressed)
	if _, err := r.ReadAt(compressed, dataStart); err != nil {
		return 0, nil, 0, err
	}
	if crc32.ChecksumIEEE(compressed) != checksum {
		return 0, nil, 0, corrupt("checksum mismatch at offset %d", offset)
	}
	if n, err := snappy.DecodedLen(compressed); err != nil || int64(n) != rawLen {
		return 0, nil, 0, corrupt("bad block length at offset %d", offset)
	}
	raw, err := snappy.Decode(pools.Bytes.GetSized(int(rawLen)), compressed)
	if err != nil {
		return 0, nil, 0, corrupt("decompress at offset %d: %v", offset, err)
	}
	return kind, raw, dataStart + compLen, nil
}

func (s *MemoryStore) applyBlock(kind blockKind, raw []byte, end **endPayload) error {
	dec := gob.NewDecoder(bytes.NewReader(raw))
	switch kind {
	case blockTokens:
		var p tokensPayload
		if err := dec.Decode(&p); err != nil {
			return corrupt("tokens: %v", err)
		}
		for _, name := range p.Labels {
			s.labels.Intern(name)
		}
		for _, name := range p.Types {
			s.types.Intern(name)
		}

	case blockProperties:
		var entries []propertyEntry
		if err := dec.Decode(&entries); err != nil {
			return corrupt("properties: %v", err)
		}
		s.properties = append(s.properties, entries...)

	case blockNodes:
		var records []NodeRecord
		if err := dec.Decode(&records); err != nil {
			return corrupt("nodes: %v", err)
		}
		for i := range records {
			rec := records[i]
			for _, l := range rec.Labels {
				if _, ok := s.labels.Name(l); !ok {
					return NewError("applyBlock").Node(rec.ID).Cause(fmt.Errorf("%w: label %d: %w", ErrCorruptSnapshot, l, ErrUnknownToken))
				}
			}
			if !s.validRef(rec.NextProp) {
				return corrupt("node %d property ref %d", rec.ID, rec.NextProp)
			}
			s.nodes.Set(&rec)
		}

	case blockRelationships:
		var records []RelationshipRecord
		if err := dec.Decode(&records); err != nil {
			return corrupt("relationships: %v", err)
		}
		for i := range records {
			rec := records[i]
			if _, ok := s.types.Name(rec.Type); !ok {
				return NewError("applyBlock").Relationship(rec.ID).Cause(fmt.Errorf("%w: type %d: %w", ErrCorruptSnapshot, rec.Type, ErrUnknownToken))
			}
			if !s.validRef(rec.NextProp) {
				return corrupt("relationship %d property ref %d", rec.ID, rec.NextProp)
			}
			for _, endpoint := range []uint64{rec.Source, rec.Target} {
				if _, ok := s.nodes.Get(&NodeRecord{ID: endpoint}); !ok {
					return corrupt("relationship %d endpoint %d missing", rec.ID, endpoint)
				}
			}
			s.relationships.Set(&rec)
		}

	case blockEnd:
		var p endPayload
		if err := dec.Decode(&p); err != nil {
			return corrupt("end: %v", err)
		}
		*end = &p
	}
	return nil
}

func (s *MemoryStore) validRef(ref PropertyRef) bool {
	return ref == NoProperties || (ref >= 0 && int(ref) < len(s.properties))
}
