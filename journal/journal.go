// Package journal records every reduced action together with the state it
// produced, for inspection and replay.
package journal

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rickb777/date/v2/timespan"
)

var ErrInvalidCapacity = errors.New("journal: capacity must be positive")

// Entry is one reduced action.
type Entry struct {
	ID         uuid.UUID
	ActionType string
	Action     any
	State      any
	// Span runs from the action entering the journal middleware to the
	// rest of the chain returning.
	Span timespan.TimeSpan
}

// Storage persists entries.
type Storage interface {
	Save(ctx context.Context, entry Entry) error
	// Fetch returns up to limit of the newest entries, oldest first.
	// A limit of zero or less returns everything.
	Fetch(ctx context.Context, limit int) ([]Entry, error)
}

// MemoryStorage keeps the last capacity entries in a ring buffer.
type MemoryStorage struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

func NewMemoryStorage(capacity int) (*MemoryStorage, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &MemoryStorage{entries: make([]Entry, capacity)}, nil
}

func (m *MemoryStorage) Save(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = entry
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *MemoryStorage) Fetch(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.next
	start := 0
	if m.full {
		size = len(m.entries)
		start = m.next
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]Entry, 0, limit)
	for i := size - limit; i < size; i++ {
		out = append(out, m.entries[(start+i)%len(m.entries)])
	}
	return out, nil
}

func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return len(m.entries)
	}
	return m.next
}
