// Package parallel provides the fixed-size worker pool that loading and
// the iterative algorithms share, plus helpers for splitting index ranges
// across it.
package parallel

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

var (
	// ErrTooManyWorkers is returned when the worker count exceeds the maximum allowed.
	ErrTooManyWorkers = errors.New("worker count exceeds maximum")
	// ErrPoolClosed is returned when work is handed to a closed pool.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrTaskPanicked wraps a panic recovered from a partition task.
	ErrTaskPanicked = errors.New("task panicked")
)

// MaxWorkers is the maximum number of workers allowed in a pool.
const MaxWorkers = math.MaxInt / 2

// DefaultConcurrency returns the number of logical cores, falling back to
// runtime.NumCPU when CPU detection reports nothing.
func DefaultConcurrency() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// WorkerPool manages a pool of worker goroutines
type WorkerPool struct {
	workers   int
	taskQueue chan func()
	wg        sync.WaitGroup
	once      sync.Once
	mu        sync.RWMutex // Protects taskQueue from concurrent close during send
	closed    bool         // Protected by mu
}

// NewWorkerPool creates a new worker pool with specified number of workers.
// A non-positive count selects DefaultConcurrency.
func NewWorkerPool(workers int) (*WorkerPool, error) {
	if workers <= 0 {
		workers = DefaultConcurrency()
	}

	// Prevent overflow in buffer size calculation
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}

	pool := &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*2), // Buffer for 2x workers
	}

	pool.start()
	return pool, nil
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// start initializes the worker goroutines
func (wp *WorkerPool) start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// worker processes tasks from the queue
func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for task := range wp.taskQueue {
		func() {
			// a panicking task must not take its worker down
			defer func() { _ = recover() }()
			task()
		}()
	}
}

// Submit adds a task to the worker pool
// Returns false if the pool is closed, true if task was submitted
func (wp *WorkerPool) Submit(task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return false
	}

	// Safe to send because we hold the lock and pool is not closed
	wp.taskQueue <- task
	return true
}

// ForEachPartition splits [0, n) into contiguous ranges, runs fn on each
// range in the pool and returns once all of them finished. fn must only
// write state owned by its range. A panic in fn is returned as
// ErrTaskPanicked after the remaining ranges completed.
func (wp *WorkerPool) ForEachPartition(n int, fn func(lo, hi int)) error {
	if n <= 0 {
		return nil
	}
	ranges := Partitions(n, wp.partitionsFor(n))

	var (
		done     sync.WaitGroup
		panicMu  sync.Mutex
		panicked error
	)
	done.Add(len(ranges))
	for _, r := range ranges {
		ok := wp.Submit(func() {
			defer done.Done()
			defer func() {
				if v := recover(); v != nil {
					panicMu.Lock()
					if panicked == nil {
						panicked = fmt.Errorf("%w: range [%d,%d): %v", ErrTaskPanicked, r.Lo, r.Hi, v)
					}
					panicMu.Unlock()
				}
			}()
			fn(r.Lo, r.Hi)
		})
		if !ok {
			done.Done()
			panicMu.Lock()
			if panicked == nil {
				panicked = ErrPoolClosed
			}
			panicMu.Unlock()
		}
	}
	done.Wait()
	return panicked
}

// partitionsFor picks a partition count: a few ranges per worker, but
// none smaller than MinPartitionSize.
func (wp *WorkerPool) partitionsFor(n int) int {
	parts := wp.workers * 4
	if limit := (n + MinPartitionSize - 1) / MinPartitionSize; parts > limit {
		parts = limit
	}
	return max(parts, 1)
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		// Acquire write lock before closing
		wp.mu.Lock()
		wp.closed = true
		close(wp.taskQueue)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}
