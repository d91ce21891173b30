package graph

// Adjacency is a compressed sparse row adjacency: the neighbors of node i
// are targets[offsets[i]:offsets[i+1]], with weights at the same positions
// when the graph is weighted.
type Adjacency struct {
	offsets []int64
	targets []int32
	weights []float64
	sums    []float64 // per-node weight sum, nil when unweighted
}

// Degree returns the number of adjacency entries of node i.
func (a *Adjacency) Degree(i int) int {
	return int(a.offsets[i+1] - a.offsets[i])
}

// Offset returns the position of node i's first entry in the flat
// adjacency arrays.
func (a *Adjacency) Offset(i int) int64 {
	return a.offsets[i]
}

// Targets returns the neighbor slice of node i. The slice aliases the
// adjacency and must not be modified.
func (a *Adjacency) Targets(i int) []int32 {
	return a.targets[a.offsets[i]:a.offsets[i+1]]
}

// Weights returns the weight slice of node i, or nil when unweighted.
func (a *Adjacency) Weights(i int) []float64 {
	if a.weights == nil {
		return nil
	}
	return a.weights[a.offsets[i]:a.offsets[i+1]]
}

// Weight returns the weight of the slot-th entry of node i, 1.0 when
// unweighted.
func (a *Adjacency) Weight(i, slot int) float64 {
	if a.weights == nil {
		return 1.0
	}
	return a.weights[a.offsets[i]+int64(slot)]
}

// WeightSum returns the total weight of node i's entries. For unweighted
// adjacencies this is the degree.
func (a *Adjacency) WeightSum(i int) float64 {
	if a.sums == nil {
		return float64(a.Degree(i))
	}
	return a.sums[i]
}

// Len returns the total number of adjacency entries.
func (a *Adjacency) Len() int64 {
	return int64(len(a.targets))
}

func newAdjacency(lists [][]int32, weights [][]float64) *Adjacency {
	n := len(lists)
	adj := &Adjacency{offsets: make([]int64, n+1)}

	var total int64
	for i, l := range lists {
		adj.offsets[i] = total
		total += int64(len(l))
	}
	adj.offsets[n] = total

	adj.targets = make([]int32, 0, total)
	for _, l := range lists {
		adj.targets = append(adj.targets, l...)
	}

	if weights != nil {
		adj.weights = make([]float64, 0, total)
		adj.sums = make([]float64, n)
		for i, w := range weights {
			adj.weights = append(adj.weights, w...)
			var sum float64
			for _, x := range w {
				sum += x
			}
			adj.sums[i] = sum
		}
	}
	return adj
}
