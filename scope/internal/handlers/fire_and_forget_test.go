package handlers_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/on-the-ground/flux_ive_go/scope/internal/handlers"
	"github.com/on-the-ground/flux_ive_go/scope/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireAndForgetHandler_BasicExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	handler := handlers.NewFireAndForgetHandler(
		ctx,
		10,
		func(ctx context.Context, msg string) {
			received <- msg
		},
		func() {}, // no-op teardown
	)
	defer handler.Close()

	handler.FireAndForgetEffect(ctx, "hello")

	select {
	case msg := <-received:
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handler")
	}
}

func TestFireAndForgetHandler_ClosedScopeDoesNotBlock(t *testing.T) {
	ctx := context.Background()

	tornDown := false
	handler := handlers.NewFireAndForgetHandler(
		ctx,
		0,
		func(ctx context.Context, msg string) {
			t.Errorf("handler should not run after close, got %q", msg)
		},
		func() { tornDown = true },
	)
	handler.Close()
	handler.Close()
	assert.True(t, tornDown)

	done := make(chan struct{})
	go func() {
		handler.FireAndForgetEffect(ctx, "late")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send on closed scope blocked")
	}
}

func TestFireAndForgetHandler_ReportsDroppedPayload(t *testing.T) {
	handler := handlers.NewFireAndForgetHandler(
		context.Background(),
		1,
		func(ctx context.Context, msg string) {},
		func() {},
	)
	defer handler.Close()

	callerCtx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, handler.FireAndForgetEffect(callerCtx, "caller gone"))
	assert.True(t, handler.FireAndForgetEffect(context.Background(), "queued"))

	handler.Close()
	assert.False(t, handler.FireAndForgetEffect(context.Background(), "scope gone"))
}

func TestFireAndForgetHandler_CloseWaitsForRunningHandler(t *testing.T) {
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	var finishedBeforeTeardown atomic.Bool

	handler := handlers.NewFireAndForgetHandler(
		ctx,
		1,
		func(ctx context.Context, msg string) {
			close(started)
			<-release
			finished.Store(true)
		},
		func() { finishedBeforeTeardown.Store(finished.Load()) },
	)
	require.True(t, handler.FireAndForgetEffect(ctx, "slow"))
	<-started

	closed := make(chan struct{})
	go func() {
		handler.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while the handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the handler finished")
	}
	assert.True(t, finishedBeforeTeardown.Load())
}

func TestFireAndForgetHandler_CloseHandlesQueuedPayloads(t *testing.T) {
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var (
		mu      sync.Mutex
		handled []string
	)
	handler := handlers.NewFireAndForgetHandler(
		ctx,
		4,
		func(_ context.Context, msg string) {
			if msg == "first" {
				close(started)
				<-release
			}
			mu.Lock()
			handled = append(handled, msg)
			mu.Unlock()
		},
		func() {},
	)

	require.True(t, handler.FireAndForgetEffect(ctx, "first"))
	<-started
	require.True(t, handler.FireAndForgetEffect(ctx, "second"))
	require.True(t, handler.FireAndForgetEffect(ctx, "third"))

	go func() {
		<-handler.Done()
		close(release)
	}()
	handler.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, handled)
}

type keyedPayload string

func (k keyedPayload) PartitionKey() string { return string(k) }

func TestResumableHandler_ReturnsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := handlers.NewPartitionableResumableHandler(
		ctx,
		model.NewEffectScopeConfig(4, 2),
		func(ctx context.Context, p keyedPayload) (int, error) {
			return len(p), nil
		},
		func() {},
	)
	defer handler.Close()

	res, ok := <-handler.PerformEffect(ctx, "four")
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, 4, res.Value)
}

func TestResumableHandler_ClosedScopeClosesResultChannel(t *testing.T) {
	ctx := context.Background()

	handler := handlers.NewPartitionableResumableHandler(
		ctx,
		model.NewEffectScopeConfig(1, 1),
		func(ctx context.Context, p keyedPayload) (int, error) {
			return 0, nil
		},
		func() {},
	)
	handler.Close()

	select {
	case _, ok := <-handler.PerformEffect(ctx, "gone"):
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("result channel was not closed")
	}
}

func TestResumableHandler_CloseClosesQueuedResultChannels(t *testing.T) {
	ctx := context.Background()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	handler := handlers.NewPartitionableResumableHandler(
		ctx,
		model.NewEffectScopeConfig(2, 1),
		func(ctx context.Context, p keyedPayload) (int, error) {
			started <- struct{}{}
			<-release
			return len(p), nil
		},
		func() {},
	)

	running := handler.PerformEffect(ctx, "run")
	<-started
	queued := handler.PerformEffect(ctx, "queued")

	closed := make(chan struct{})
	go func() {
		handler.Close()
		close(closed)
	}()
	<-handler.Done()
	close(release)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	res, ok := <-running
	require.True(t, ok)
	assert.Equal(t, 3, res.Value)

	_, ok = <-queued
	assert.False(t, ok)
}
