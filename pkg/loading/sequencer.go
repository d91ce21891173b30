package loading

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type chunkResult[T any] struct {
	chunk int
	value T
}

// runChunks scans chunks [0, chunks) concurrently and passes each result
// to drain strictly in chunk order on the calling goroutine. The first
// error from either side cancels the remaining scans.
func runChunks[T any](
	ctx context.Context,
	chunks, concurrency int,
	scan func(ctx context.Context, chunk int) (T, error),
	drain func(chunk int, value T) error,
) error {
	if chunks == 0 {
		return ctx.Err()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	results := make(chan chunkResult[T], concurrency)

	var scanErr error
	go func() {
		defer close(results)
		for c := 0; c < chunks; c++ {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				v, err := scan(gctx, c)
				if err != nil {
					return err
				}
				select {
				case results <- chunkResult[T]{chunk: c, value: v}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		scanErr = g.Wait()
	}()

	pending := make(map[int]T)
	next := 0
	var drainErr error
	for r := range results {
		if drainErr != nil {
			continue
		}
		pending[r.chunk] = r.value
		for {
			v, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := drain(next, v); err != nil {
				drainErr = err
				cancel()
				break
			}
			next++
		}
	}

	if drainErr != nil {
		return drainErr
	}
	if scanErr != nil {
		return scanErr
	}
	return ctx.Err()
}
