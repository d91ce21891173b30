package parallel

// MinPartitionSize is the smallest range ForEachPartition hands to a task.
const MinPartitionSize = 256

// Range is the half-open index interval [Lo, Hi).
type Range struct {
	Lo, Hi int
}

// Partitions splits [0, n) into at most parts contiguous, non-empty ranges
// whose lengths differ by at most one.
func Partitions(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts <= 0 {
		parts = 1
	}
	if parts > n {
		parts = n
	}

	ranges := make([]Range, parts)
	size, extra := n/parts, n%parts
	lo := 0
	for i := range ranges {
		hi := lo + size
		if i < extra {
			hi++
		}
		ranges[i] = Range{Lo: lo, Hi: hi}
		lo = hi
	}
	return ranges
}
