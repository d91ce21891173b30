package algorithms

import (
	"github.com/dd0wney/cluso-graphalgo/pkg/logging"
	"github.com/dd0wney/cluso-graphalgo/pkg/metrics"
	"github.com/dd0wney/cluso-graphalgo/pkg/parallel"
	"github.com/google/uuid"
)

// Algorithm names, used in logs and as metric labels.
const (
	AlgorithmPageRank = "pagerank"
	AlgorithmLouvain  = "louvain"
)

// RunOption configures an algorithm run.
type RunOption func(*runSettings)

type runSettings struct {
	logger  logging.Logger
	metrics *metrics.Registry
	pool    *parallel.WorkerPool
}

// WithLogger sets the logger. Nil selects a NopLogger.
func WithLogger(l logging.Logger) RunOption {
	return func(s *runSettings) { s.logger = logging.OrNop(l) }
}

// WithMetrics records run metrics into r.
func WithMetrics(r *metrics.Registry) RunOption {
	return func(s *runSettings) { s.metrics = r }
}

// WithPool runs the algorithm on an existing pool instead of creating one
// per run. The caller keeps ownership of the pool.
func WithPool(p *parallel.WorkerPool) RunOption {
	return func(s *runSettings) { s.pool = p }
}

func newRunSettings(opts []RunOption) runSettings {
	s := runSettings{logger: logging.NopLogger{}}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// acquirePool returns the configured pool, or a fresh one with the given
// concurrency together with the function that closes it.
func (s runSettings) acquirePool(concurrency int) (*parallel.WorkerPool, func(), error) {
	if s.pool != nil {
		return s.pool, func() {}, nil
	}
	p, err := parallel.NewWorkerPool(concurrency)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

func newRunID() string {
	return uuid.NewString()
}
