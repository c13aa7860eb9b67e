package dataflow

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orneryd/nornicflow/pkg/metrics"
	"github.com/orneryd/nornicflow/pkg/record"
)

// RunParallel feeds each input through stages on a pool of workers and
// hands every output to sink. Sink calls are serialized. Output order across
// inputs is not defined; within one input it follows the stages.
//
// The first error from a stage or from sink cancels the remaining work and
// is returned.
func RunParallel(ctx context.Context, inputs []record.Record, workers int, sink func(record.Record) error, stages ...FlatMapFunction) error {
	start := time.Now()
	defer func() { metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	for _, in := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for out, err := range Chain(gctx, Source(in), stages...) {
				if err != nil {
					return err
				}
				mu.Lock()
				err = sink(out)
				mu.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
