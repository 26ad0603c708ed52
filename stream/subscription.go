package stream

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Subscription is a live run of a publisher.
//
// Values is unbuffered: the consumer must drain it, or Cancel, for the run
// to make progress. Values is closed after the completion is recorded, so
// Completion is valid as soon as Values is drained.
type Subscription[T any] struct {
	id     string
	values chan T
	done   chan struct{}
	cancel context.CancelFunc

	state      atomic.Int32
	completion Completion
	dropped    atomic.Bool
}

// Subscribe starts p on its own goroutine.
func (p Publisher[T]) Subscribe(ctx context.Context) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{
		id:     uuid.NewString(),
		values: make(chan T),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	ready := make(chan struct{})
	go func() {
		close(ready)
		sub.run(ctx, p)
	}()
	<-ready
	return sub
}

func (s *Subscription[T]) run(ctx context.Context, p Publisher[T]) {
	defer s.cancel()

	send := func(v T) bool {
		select {
		case <-ctx.Done():
			s.dropped.Store(true)
			return false
		case s.values <- v:
			return true
		}
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("stream: producer panicked: %v", r)
			}
		}()
		return p.run(ctx, send)
	}()

	s.finish(completionOf(ctx, err, s.dropped.Load()))
}

func (s *Subscription[T]) finish(c Completion) {
	if s.state.CompareAndSwap(int32(StateRunning), int32(stateOf(c))) {
		s.completion = c
	}
	close(s.values)
	close(s.done)
}

func (s *Subscription[T]) ID() string {
	return s.id
}

func (s *Subscription[T]) Values() <-chan T {
	return s.values
}

// Done is closed once the run reached its completion.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Completion returns the terminal signal. It is meaningful only after Done.
func (s *Subscription[T]) Completion() Completion {
	select {
	case <-s.done:
		return s.completion
	default:
		return Completion{}
	}
}

func (s *Subscription[T]) State() State {
	return State(s.state.Load())
}

// Cancel stops the run. It is safe to call more than once and after completion.
func (s *Subscription[T]) Cancel() {
	s.cancel()
}

// Sink drains the subscription, blocking until it completes.
// Either callback may be nil.
func (s *Subscription[T]) Sink(onValue func(T), onCompletion func(Completion)) {
	for v := range s.values {
		if onValue != nil {
			onValue(v)
		}
	}
	<-s.done
	if onCompletion != nil {
		onCompletion(s.completion)
	}
}

// Collect drains sub until it completes. When ctx ends first, sub is
// cancelled and the values seen so far are returned as Cancelled.
func Collect[T any](ctx context.Context, sub *Subscription[T]) ([]T, Completion) {
	var out []T
	for {
		select {
		case <-ctx.Done():
			sub.Cancel()
			return out, Completion{Kind: Cancelled}
		case v, ok := <-sub.values:
			if !ok {
				<-sub.done
				return out, sub.completion
			}
			out = append(out, v)
		}
	}
}
