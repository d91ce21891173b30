// Package pools provides size-class slice pooling for reducing GC pressure.
//
// Snapshot I/O borrows block buffers from Bytes, and the loader borrows
// per-chunk id scratch from Uint64s and Float64s. Buffers are returned
// once the owning chunk or block has been consumed.
package pools

// Size classes for snapshot block buffers.
const (
	BlockSmall  = 4 << 10
	BlockMedium = 64 << 10
	BlockLarge  = 1 << 20
	BlockHuge   = 8 << 20
)

// Size classes for per-chunk loader scratch, in elements.
const (
	ChunkSmall  = 1 << 10
	ChunkMedium = 1 << 13
	ChunkLarge  = 1 << 16
	ChunkHuge   = 1 << 20
)

var (
	// Bytes serves snappy-compressed and decoded snapshot blocks.
	Bytes = NewSlicePool[byte](BlockSmall, BlockMedium, BlockLarge, BlockHuge)
	// Uint64s serves chunk-sized original id slices.
	Uint64s = NewSlicePool[uint64](ChunkSmall, ChunkMedium, ChunkLarge, ChunkHuge)
	// Float64s serves chunk-sized weight and property slices.
	Float64s = NewSlicePool[float64](ChunkSmall, ChunkMedium, ChunkLarge, ChunkHuge)
)
