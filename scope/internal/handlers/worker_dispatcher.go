package handlers

import (
	"context"
	"sync"

	"github.com/on-the-ground/flux_ive_go/scope/model"
)

// WorkerDispatcher routes a message to the channel of the worker that owns it.
type WorkerDispatcher[T any] interface {
	GetChannelOf(msg T) chan<- T

	// Stop blocks until every worker has returned, then passes each message
	// still buffered to drop. Workers return once their context is done.
	Stop(drop func(T))
}

// workerPool runs one goroutine per channel. pick selects the channel of a message.
type workerPool[T any] struct {
	channels []chan T
	pick     func(msg T) int
	workers  sync.WaitGroup
}

func (wp *workerPool[T]) GetChannelOf(msg T) chan<- T {
	return wp.channels[wp.pick(msg)]
}

func (wp *workerPool[T]) Stop(drop func(T)) {
	wp.workers.Wait()
	for _, ch := range wp.channels {
		for len(ch) > 0 {
			drop(<-ch)
		}
	}
}

func startWorkerPool[T any](
	ctx context.Context,
	numWorkers, bufferSize int,
	pick func(msg T) int,
	handleFn func(context.Context, T),
) *workerPool[T] {
	wp := &workerPool[T]{
		channels: make([]chan T, numWorkers),
		pick:     pick,
	}
	ready := sync.WaitGroup{}
	for i := range wp.channels {
		ch := make(chan T, bufferSize)
		wp.channels[i] = ch
		ready.Add(1)
		wp.workers.Add(1)
		go func() {
			defer wp.workers.Done()
			ready.Done()
			for {
				// a cancelled worker must not pick another message even when one is buffered
				if ctx.Err() != nil {
					return
				}
				select {
				case msg := <-ch:
					handleFn(ctx, msg)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	ready.Wait()
	return wp
}

// NewSingleQueue starts one worker that handles messages in arrival order.
// The worker stops when ctx is done.
func NewSingleQueue[T any](
	ctx context.Context,
	bufferSize int,
	handleFn func(context.Context, T),
) WorkerDispatcher[T] {
	return startWorkerPool(ctx, 1, bufferSize, func(T) int { return 0 }, handleFn)
}

// NewPartitionedQueue starts numWorkers workers. Messages sharing a
// PartitionKey always land on the same worker, so they keep their order.
func NewPartitionedQueue[T model.Partitionable](
	ctx context.Context,
	numWorkers, bufferSize int,
	handleFn func(context.Context, T),
) WorkerDispatcher[T] {
	return startWorkerPool(ctx, numWorkers, bufferSize, func(msg T) int {
		return getIndexByHash(msg, numWorkers)
	}, handleFn)
}
