package log_test

import (
	"context"
	"testing"
	"time"

	"github.com/on-the-ground/flux_ive_go/scope/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogEff_WritesThroughZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	ctx, endOfLog := log.WithZapEffectHandler(context.Background(), 4, zap.New(core))
	defer endOfLog()

	log.LogEff(ctx, log.LogInfo, "reduced", map[string]interface{}{"action": "increment"})
	log.LogEff(ctx, log.LogError, "failed", nil)

	require.Eventually(t, func() bool { return logs.Len() == 2 }, time.Second, 5*time.Millisecond)

	entries := logs.AllUntimed()
	assert.Equal(t, "reduced", entries[0].Message)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "increment", entries[0].ContextMap()["action"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}

func TestLogEff_PanicsWithoutHandler(t *testing.T) {
	assert.Panics(t, func() {
		log.LogEff(context.Background(), log.LogInfo, "nobody listens", nil)
	})
}

func TestLogEff_AfterTeardownDoesNotBlock(t *testing.T) {
	ctx, endOfLog := log.WithTestEffectHandler(t, context.Background())
	endOfLog()

	done := make(chan struct{})
	go func() {
		log.LogEff(ctx, log.LogWarn, "late", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LogEff blocked on a closed scope")
	}
}

func TestLogEff_KeepsCallTimeAndBoundFields(t *testing.T) {
	ctx, endOfLog, logs := log.WithObservedEffectHandler(context.Background())

	ctx = log.WithFields(ctx, map[string]interface{}{"store": "s-1", "action": "bound"})
	ctx = log.WithFields(ctx, map[string]interface{}{"subscription": "sub-1"})

	calledAt := time.Now()
	log.LogEff(ctx, log.LogWarn, "side effect failed", map[string]interface{}{"action": "increment"})
	endOfLog()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	assert.Equal(t, map[string]interface{}{
		"store":        "s-1",
		"subscription": "sub-1",
		"action":       "increment",
	}, entry.ContextMap())
	assert.WithinDuration(t, calledAt, entry.Time, 5*time.Millisecond)
}

func TestLogEff_CancelledContextStillLogs(t *testing.T) {
	ctx, endOfLog, logs := log.WithObservedEffectHandler(context.Background())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	log.LogEff(cancelled, log.LogInfo, "context cancelled, cancelling child routines", nil)
	endOfLog()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "context cancelled, cancelling child routines", logs.All()[0].Message)
}

func TestLogEff_TeardownWritesQueuedEntries(t *testing.T) {
	ctx, endOfLog, logs := log.WithObservedEffectHandler(context.Background())

	for i := 0; i < 20; i++ {
		log.LogEff(ctx, log.LogDebug, "queued", nil)
	}
	endOfLog()

	assert.Equal(t, 20, logs.Len())
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "debug", log.LogDebug.String())
	assert.Equal(t, "error", log.LogError.String())
}
