// Package execution runs per-item work through a bounded worker pool.
package execution

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"
)

// DefaultConcurrency is used when a non-positive concurrency is requested.
const DefaultConcurrency = 1

// ItemResult is the outcome of one item. Ran is false for items that were
// never dispatched because the context ended or the fanout aborted.
type ItemResult[T any] struct {
	Index int
	Value T
	Err   error
	Ran   bool
}

// FanoutResult holds the results of a fanout execution, in input order.
type FanoutResult[T any] struct {
	Results        []ItemResult[T]
	TotalItems     int
	SuccessCount   int
	FailureCount   int
	NotRunCount    int
	AbortTriggered bool
	AbortErr       error
}

type indexedResult[T any] struct {
	ItemResult[T]
	abort bool
}

// ItemFunc processes one item. Errors are recorded per item and do not stop
// the fanout unless the AbortOn predicate says so.
type ItemFunc[I, T any] func(ctx context.Context, index int, item I) (T, error)

type Options struct {
	Concurrency int
	// AbortOn stops dispatching further items when it returns true for an
	// item error. Items already running finish.
	AbortOn func(err error) bool
}

// Fanout runs fn for every item with at most opts.Concurrency items in flight.
// The context is checked before each item is dispatched.
func Fanout[I, T any](ctx context.Context, logger ectologger.Logger, items []I, opts Options, fn ItemFunc[I, T]) *FanoutResult[T] {
	result := &FanoutResult[T]{
		Results:    make([]ItemResult[T], len(items)),
		TotalItems: len(items),
	}
	for i := range result.Results {
		result.Results[i].Index = i
	}
	if len(items) == 0 {
		return result
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	logger.WithContext(ctx).Debugf("Executing fanout: %d items with concurrency %d", len(items), concurrency)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	itemChan := make(chan int)
	resultChan := make(chan indexedResult[T], len(items))

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range itemChan {
				if workerCtx.Err() != nil {
					continue
				}
				value, err := fn(workerCtx, idx, items[idx])
				abort := err != nil && opts.AbortOn != nil && opts.AbortOn(err)
				if abort {
					cancel()
				}
				resultChan <- indexedResult[T]{
					ItemResult: ItemResult[T]{Index: idx, Value: value, Err: err, Ran: true},
					abort:      abort,
				}
			}
		}()
	}

	go func() {
		defer close(itemChan)
		for i := range items {
			if workerCtx.Err() != nil {
				return
			}
			select {
			case <-workerCtx.Done():
				return
			case itemChan <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for res := range resultChan {
		result.Results[res.Index] = res.ItemResult
		if res.Err != nil {
			result.FailureCount++
		} else {
			result.SuccessCount++
		}
		if res.abort && !result.AbortTriggered {
			result.AbortTriggered = true
			result.AbortErr = res.Err
			logger.WithContext(ctx).WithError(res.Err).Warn("Fanout aborted, no further items will be dispatched")
		}
	}

	result.NotRunCount = result.TotalItems - result.SuccessCount - result.FailureCount
	return result
}
