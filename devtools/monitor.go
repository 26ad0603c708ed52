// Package devtools exposes a store over a websocket so external tools can
// watch its state and dispatch into it.
//
// Every connection first receives the current state, then a new state
// frame after each reduction. Under load intermediate states may be skipped,
// but the latest one is always delivered. Clients send frames of type
// "action" or "event"; their payload is decoded with the configured Decoder.
package devtools

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/on-the-ground/flux_ive_go/scope/log"
	"github.com/on-the-ground/flux_ive_go/store"
)

const (
	FrameState  = "state"
	FrameAction = "action"
	FrameEvent  = "event"
	FrameError  = "error"

	writeWait = 5 * time.Second
)

var (
	ErrNoDecoder        = errors.New("devtools: no decoder configured")
	ErrUnknownFrameType = errors.New("devtools: unknown frame type")
)

// Frame is the message exchanged with clients in both directions.
type Frame struct {
	Type    string          `json:"type"`
	State   any             `json:"state,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Decoder turns a client payload into an action or event. kind is
// FrameAction or FrameEvent.
type Decoder func(kind string, payload json.RawMessage) (any, error)

type Option func(*config)

type config struct {
	decoder     Decoder
	checkOrigin func(*http.Request) bool
}

// WithDecoder enables dispatching from clients.
func WithDecoder(decoder Decoder) Option {
	return func(c *config) {
		c.decoder = decoder
	}
}

// WithCheckOrigin replaces the same-origin check of the upgrader.
func WithCheckOrigin(check func(*http.Request) bool) Option {
	return func(c *config) {
		c.checkOrigin = check
	}
}

// Monitor is an http.Handler serving the websocket endpoint.
// Connection failures are logged through the store's log scope.
type Monitor[S any] struct {
	st       *store.Store[S]
	upgrader websocket.Upgrader
	decoder  Decoder
}

func NewMonitor[S any](st *store.Store[S], opts ...Option) *Monitor[S] {
	c := config{}
	for _, opt := range opts {
		opt(&c)
	}
	return &Monitor[S]{
		st: st,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     c.checkOrigin,
		},
		decoder: c.decoder,
	}
}

func (m *Monitor[S]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logFailure("devtools upgrade failed", r, err)
		return
	}
	defer conn.Close()

	c := &connection[S]{conn: conn, changed: make(chan struct{}, 1)}
	unsubscribe := m.st.Subscribe(c.offer)
	defer unsubscribe()

	if err := c.write(Frame{Type: FrameState, State: m.st.State()}); err != nil {
		m.logFailure("devtools initial write failed", r, err)
		return
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		m.readLoop(c, r)
	}()

	for {
		select {
		case <-c.changed:
			if err := c.write(Frame{Type: FrameState, State: c.latest()}); err != nil {
				m.logFailure("devtools write failed", r, err)
				return
			}
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (m *Monitor[S]) readLoop(c *connection[S], r *http.Request) {
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logFailure("devtools read failed", r, err)
			}
			return
		}
		if err := m.dispatch(f); err != nil {
			if werr := c.write(Frame{Type: FrameError, Error: err.Error()}); werr != nil {
				return
			}
		}
	}
}

func (m *Monitor[S]) logFailure(msg string, r *http.Request, err error) {
	m.st.Log(log.LogDebug, msg, map[string]interface{}{
		"remote": r.RemoteAddr,
		"error":  err.Error(),
	})
}

func (m *Monitor[S]) dispatch(f Frame) error {
	if f.Type != FrameAction && f.Type != FrameEvent {
		return fmt.Errorf("%w: %q", ErrUnknownFrameType, f.Type)
	}
	if m.decoder == nil {
		return ErrNoDecoder
	}
	value, err := m.decoder(f.Type, f.Payload)
	if err != nil {
		return fmt.Errorf("devtools: decode %s: %w", f.Type, err)
	}
	if f.Type == FrameEvent {
		return m.st.Dispatch(value)
	}
	return m.st.DispatchAction(value)
}

// connection keeps one pending state so the store's worker never waits on a slow client.
type connection[S any] struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   S
	changed   chan struct{}
}

func (c *connection[S]) offer(state S) {
	c.pendingMu.Lock()
	c.pending = state
	c.pendingMu.Unlock()
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

func (c *connection[S]) latest() S {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.pending
}

func (c *connection[S]) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(f)
}
