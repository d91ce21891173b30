package algorithms

import (
	"context"
	"sync"

	"github.com/dd0wney/cluso-graphalgo/pkg/parallel"
)

// localMover runs the local-moving phase of one Louvain level. Each pass
// first lets every node pick a better community against a frozen view of
// the partition, in parallel, then applies the picks in node order,
// re-evaluating each against the live partition.
type localMover struct {
	g    *levelGraph
	comm []int32   // community of every node
	tot  []float64 // summed degree of every community id

	pool       *parallel.WorkerPool
	candidates []bool
	scratch    sync.Pool
}

// neighborScratch accumulates the weight from one node into each
// neighboring community.
type neighborScratch struct {
	weight  []float64
	seen    []bool
	touched []int32
}

func (s *neighborScratch) add(c int32, w float64) {
	if !s.seen[c] {
		s.seen[c] = true
		s.touched = append(s.touched, c)
	}
	s.weight[c] += w
}

func (s *neighborScratch) reset() {
	for _, c := range s.touched {
		s.weight[c] = 0
		s.seen[c] = false
	}
	s.touched = s.touched[:0]
}

// newLocalMover starts from the given partition; community ids must be
// node indices of g.
func newLocalMover(g *levelGraph, initial []int32, pool *parallel.WorkerPool) *localMover {
	n := g.nodes()
	m := &localMover{
		g:          g,
		comm:       initial,
		tot:        make([]float64, n),
		pool:       pool,
		candidates: make([]bool, n),
	}
	for i, c := range initial {
		m.tot[c] += g.degree[i]
	}
	m.scratch.New = func() any {
		return &neighborScratch{weight: make([]float64, n), seen: make([]bool, n)}
	}
	return m
}

// best returns the community that node i gains most by joining. Moving
// must be strictly better than staying; among equally good other
// communities the lowest id wins.
func (m *localMover) best(i int, sc *neighborScratch) int32 {
	own := m.comm[i]
	if m.g.total == 0 {
		return own
	}
	sc.reset()
	targets, weights := m.g.neighbors(i)
	for s, j := range targets {
		sc.add(m.comm[j], weights[s])
	}

	ki := m.g.degree[i]
	scale := ki / m.g.total
	best := own
	bestGain := sc.weight[own] - (m.tot[own]-ki)*scale
	for _, c := range sc.touched {
		if c == own {
			continue
		}
		gain := sc.weight[c] - m.tot[c]*scale
		if gain > bestGain || (gain == bestGain && best != own && c < best) {
			best, bestGain = c, gain
		}
	}
	return best
}

func (m *localMover) move(i int, c int32) {
	ki := m.g.degree[i]
	m.tot[m.comm[i]] -= ki
	m.tot[c] += ki
	m.comm[i] = c
}

// pass runs one local-moving pass and returns the number of moves.
func (m *localMover) pass() (int, error) {
	err := m.pool.ForEachPartition(m.g.nodes(), func(lo, hi int) {
		sc := m.scratch.Get().(*neighborScratch)
		defer m.scratch.Put(sc)
		for i := lo; i < hi; i++ {
			m.candidates[i] = m.best(i, sc) != m.comm[i]
		}
	})
	if err != nil {
		return 0, err
	}

	sc := m.scratch.Get().(*neighborScratch)
	defer m.scratch.Put(sc)
	moves := 0
	for i, wants := range m.candidates {
		if !wants {
			continue
		}
		if c := m.best(i, sc); c != m.comm[i] {
			m.move(i, c)
			moves++
		}
	}
	return moves, nil
}

// run repeats passes until nothing moves, maxPasses is reached or a pass
// improves modularity by less than tolerance. It returns the total number
// of moves, the passes run and the final modularity.
func (m *localMover) run(ctx context.Context, maxPasses int, tolerance float64) (moved, passes int, q float64, cancelled bool, err error) {
	q = m.modularity()
	for passes < maxPasses {
		if ctx.Err() != nil {
			return moved, passes, q, true, nil
		}
		moves, perr := m.pass()
		if perr != nil {
			return moved, passes, q, false, perr
		}
		passes++
		if moves == 0 {
			break
		}
		moved += moves
		next := m.modularity()
		gain := next - q
		q = next
		if gain < tolerance {
			break
		}
	}
	return moved, passes, q, false, nil
}

// modularity of the current partition.
func (m *localMover) modularity() float64 {
	return modularity(m.g, m.comm, m.tot)
}

func modularity(g *levelGraph, comm []int32, tot []float64) float64 {
	if g.total == 0 {
		return 0
	}
	var internal float64
	for u := 0; u < g.nodes(); u++ {
		internal += g.loops[u]
		targets, weights := g.neighbors(u)
		for s, v := range targets {
			if comm[v] == comm[u] {
				internal += weights[s]
			}
		}
	}
	q := internal / g.total
	for _, t := range tot {
		f := t / g.total
		q -= f * f
	}
	return q
}
