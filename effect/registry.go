package effect

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-reflect"
)

// Token identifies a cancellable run. Any comparable value works; nil means none.
type Token = any

// Cancellable is a running unit of work.
type Cancellable interface {
	Cancel()
	Done() <-chan struct{}
}

// Registry maps tokens to running work.
type Registry interface {
	// Register stores c under token. Work already registered under the same
	// token is cancelled: the latest run wins.
	Register(token Token, c Cancellable)
	// Cancel cancels the work registered under token and reports whether there was any.
	Cancel(token Token) bool
}

// Context is what an effect runs with.
type Context[D any] struct {
	Dependencies  D
	Cancellations Registry
}

// Cancel forwards to the registry. It is a no-op without one.
func (c Context[D]) Cancel(token Token) bool {
	if c.Cancellations == nil || token == nil {
		return false
	}
	return c.Cancellations.Cancel(token)
}

func mustBeComparable(token Token) {
	if token == nil {
		return
	}
	if !reflect.TypeOf(token).Comparable() {
		panic(fmt.Sprintf("effect: token of type %T is not comparable", token))
	}
}

type registryShard struct {
	mu      sync.Mutex
	running map[Token]Cancellable
}

// ShardedRegistry is an in-memory Registry. Tokens are spread over shards
// by hash so unrelated tokens do not contend on one lock.
type ShardedRegistry struct {
	shards []*registryShard
}

func NewRegistry(shards int) *ShardedRegistry {
	if shards <= 0 {
		shards = 1
	}
	r := &ShardedRegistry{shards: make([]*registryShard, shards)}
	for i := range r.shards {
		r.shards[i] = &registryShard{running: make(map[Token]Cancellable)}
	}
	return r
}

func (r *ShardedRegistry) shardOf(token Token) *registryShard {
	h := xxhash.Sum64String(fmt.Sprintf("%T:%v", token, token))
	return r.shards[h%uint64(len(r.shards))]
}

func (r *ShardedRegistry) Register(token Token, c Cancellable) {
	if token == nil || c == nil {
		return
	}
	mustBeComparable(token)
	shard := r.shardOf(token)

	shard.mu.Lock()
	prev, ok := shard.running[token]
	shard.running[token] = c
	shard.mu.Unlock()

	if ok && prev != c {
		prev.Cancel()
	}

	go func() {
		<-c.Done()
		shard.mu.Lock()
		defer shard.mu.Unlock()
		if shard.running[token] == c {
			delete(shard.running, token)
		}
	}()
}

func (r *ShardedRegistry) Cancel(token Token) bool {
	if token == nil {
		return false
	}
	mustBeComparable(token)
	shard := r.shardOf(token)

	shard.mu.Lock()
	c, ok := shard.running[token]
	delete(shard.running, token)
	shard.mu.Unlock()

	if ok {
		c.Cancel()
	}
	return ok
}

// Len reports how many runs are registered.
func (r *ShardedRegistry) Len() int {
	n := 0
	for _, shard := range r.shards {
		shard.mu.Lock()
		n += len(shard.running)
		shard.mu.Unlock()
	}
	return n
}
