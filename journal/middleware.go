package journal

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/flux_ive_go/internal/helper"
	"github.com/on-the-ground/flux_ive_go/scope/log"
	"github.com/on-the-ground/flux_ive_go/store"
	"github.com/rickb777/date/v2/timespan"
)

type config struct {
	clock func() time.Time
}

type Option func(*config)

func WithClock(clock func() time.Time) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// Middleware writes an Entry for every action that comes back from the rest
// of the chain. Storage failures are logged through the store it is installed
// in and never block the store.
type Middleware[S any] struct {
	ctx     context.Context
	storage Storage
	clock   func() time.Time
	store   atomic.Pointer[store.Store[S]]
}

func NewMiddleware[S any](ctx context.Context, storage Storage, opts ...Option) *Middleware[S] {
	c := config{clock: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return &Middleware[S]{
		ctx:     ctx,
		storage: storage,
		clock:   c.clock,
	}
}

func (m *Middleware[S]) AttachStore(st *store.Store[S]) {
	m.store.Store(st)
}

func (m *Middleware[S]) HandleEvent(event store.Event, getState store.GetState[S], next func(store.Event, store.GetState[S])) {
	next(event, getState)
}

func (m *Middleware[S]) HandleAction(action store.Action, getState store.GetState[S], next func(store.Action, store.GetState[S])) {
	startedAt := m.clock()
	next(action, getState)
	finishedAt := m.clock()

	entry := Entry{
		ID:         uuid.New(),
		ActionType: helper.TypeName(action),
		Action:     action,
		State:      getState(),
		Span:       timespan.BetweenTimes(startedAt, finishedAt),
	}
	if err := m.storage.Save(m.ctx, entry); err != nil {
		if st := m.store.Load(); st != nil {
			st.Log(log.LogWarn, "failed to save journal entry", map[string]interface{}{
				"id":         entry.ID.String(),
				"actionType": entry.ActionType,
				"error":      err.Error(),
			})
		}
	}
}

// Close closes the storage if it holds resources.
func (m *Middleware[S]) Close() error {
	if c, ok := m.storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
