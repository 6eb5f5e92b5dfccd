package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/metrics"
)

type storeFunc func(ctx context.Context, store domain.Store) (*storeOutcome, error)

// processStores fans stores out over a fixed worker pool. Every store gets
// exactly one outcome, in input order; errors and panics stay with the
// store that raised them.
func processStores(ctx context.Context, stores []domain.Store, workers int, severity domain.Severity, fn storeFunc) []*storeOutcome {
	if workers < 1 {
		workers = 1
	}
	if workers > len(stores) {
		workers = len(stores)
	}

	outcomes := make([]*storeOutcome, len(stores))
	jobChan := make(chan int, len(stores))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobChan {
				outcomes[idx] = runStore(ctx, stores[idx], severity, fn)
				if e := outcomes[idx].Err; e != nil {
					log.Warn().
						Int("worker", workerID).
						Str("store_id", e.StoreID).
						Str("product_id", e.ProductID).
						Str("severity", string(e.Severity)).
						Msg(e.Message)
				}
			}
		}(i)
	}

	// Enqueue stores; canceled runs still give every store an outcome
	for i := range stores {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	return outcomes
}

func runStore(ctx context.Context, store domain.Store, severity domain.Severity, fn storeFunc) (out *storeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("store_id", store.ID).Bytes("stack", debug.Stack()).Msgf("store panicked: %v", r)
			err := fmt.Errorf("%w: %v", metrics.ErrPanic, r)
			out = &storeOutcome{StoreID: store.ID, Err: storeError(store.ID, err, severity), cause: err}
		}
	}()

	if err := ctx.Err(); err != nil {
		return &storeOutcome{StoreID: store.ID, Err: storeError(store.ID, err, severity), cause: err}
	}

	res, err := fn(ctx, store)
	if err != nil {
		out = &storeOutcome{StoreID: store.ID, Err: storeError(store.ID, err, severity), cause: err}
		if res != nil {
			out.ProductsAnalyzed = res.ProductsAnalyzed
			out.Forecasts = res.Forecasts
		}
		return out
	}
	if res == nil {
		res = &storeOutcome{}
	}
	res.StoreID = store.ID
	return res
}
