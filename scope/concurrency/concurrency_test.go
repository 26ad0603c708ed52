package concurrency_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/on-the-ground/flux_ive_go/scope/concurrency"
	"github.com/on-the-ground/flux_ive_go/scope/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyEff_AllChildrenRunAndComplete(t *testing.T) {
	ctx := context.Background()
	ctx, endOfLogHandler := log.WithTestEffectHandler(t, ctx)
	defer endOfLogHandler()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(ctx, 10)
	defer endOfConcurrencyHandler()

	var mu sync.Mutex
	var ran []int
	var wg sync.WaitGroup
	wg.Add(3)

	f := func(i int) func(context.Context) {
		return func(ctx context.Context) {
			defer wg.Done()
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
		}
	}

	require.True(t, concurrency.ConcurrencyEff(ctx, f(1), f(2), f(3)))

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	sort.Ints(ran)
	assert.Equal(t, []int{1, 2, 3}, ran)
}

func TestConcurrencyEff_ContextCancelPropagatesToChildren(t *testing.T) {
	ctx := context.Background()
	ctx, endOfLogHandler := log.WithTestEffectHandler(t, ctx)
	defer endOfLogHandler()

	ctx, cancel := context.WithCancel(ctx)

	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(ctx, 10)
	defer endOfConcurrencyHandler()

	blocked := make(chan struct{})
	unblocked := make(chan struct{})

	concurrency.ConcurrencyEff(ctx,
		func(ctx context.Context) {
			blocked <- struct{}{}
			<-ctx.Done()
			close(unblocked)
		},
	)

	<-blocked
	cancel()

	select {
	case <-unblocked:
	case <-time.After(1 * time.Second):
		t.Fatal("expected child to unblock on context cancel")
	}
}

func TestConcurrencyEff_HandlesPanicsGracefully(t *testing.T) {
	ctx := context.Background()
	ctx, endOfLogHandler := log.WithTestEffectHandler(t, ctx)
	defer endOfLogHandler()

	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(ctx, 10)
	defer endOfConcurrencyHandler()

	done := make(chan struct{})
	concurrency.ConcurrencyEff(ctx,
		func(ctx context.Context) {
			panic("child boom")
		},
		func(ctx context.Context) {
			close(done)
		},
	)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("expected non-panicking goroutine to finish")
	}
}

func TestConcurrencyEff_TeardownWaitsForChildren(t *testing.T) {
	ctx := context.Background()
	ctx, endOfLogHandler := log.WithTestEffectHandler(t, ctx)
	defer endOfLogHandler()

	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(ctx, 10)

	var finished atomic.Int32
	started := make(chan struct{}, 5)
	sleep50msAndCount := func(ctx context.Context) {
		started <- struct{}{}
		time.Sleep(50 * time.Millisecond)
		finished.Add(1)
	}
	concurrency.ConcurrencyEff(ctx,
		sleep50msAndCount,
		sleep50msAndCount,
		sleep50msAndCount,
		sleep50msAndCount,
		sleep50msAndCount,
	)
	for i := 0; i < 5; i++ {
		<-started
	}

	endOfConcurrencyHandler()
	assert.Equal(t, int32(5), finished.Load())
}

func TestConcurrencyEff_TeardownJoinsChildrenSpawnedDuringShutdown(t *testing.T) {
	ctx := context.Background()
	ctx, endOfLogHandler := log.WithTestEffectHandler(t, ctx)
	defer endOfLogHandler()

	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(ctx, 4)

	var started, finished atomic.Int32
	child := func(ctx context.Context) {
		started.Add(1)
		time.Sleep(time.Millisecond)
		finished.Add(1)
	}

	spawning := make(chan struct{})
	go func() {
		defer close(spawning)
		for concurrency.ConcurrencyEff(ctx, child, child) {
		}
	}()

	time.Sleep(20 * time.Millisecond)
	endOfConcurrencyHandler()
	assert.Equal(t, started.Load(), finished.Load())

	select {
	case <-spawning:
	case <-time.After(time.Second):
		t.Fatal("ConcurrencyEff kept accepting work after teardown")
	}
	assert.False(t, concurrency.ConcurrencyEff(ctx, child))
}
