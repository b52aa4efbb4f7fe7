package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/vigil-agent/vigil/internal/trace"
)

// subscriberBuffer is each subscriber's pending-record capacity. A client
// that cannot keep up is disconnected rather than back-pressuring the runs.
const subscriberBuffer = 64

// RunBroker fans live trace records out to websocket subscribers. It
// implements trace.Sink, so it is wired as one more sink behind the async
// emitter.
type RunBroker struct {
	mu     sync.Mutex
	subs   map[chan trace.Record]struct{}
	closed bool
	logger *slog.Logger
}

// NewRunBroker creates an empty broker.
func NewRunBroker(logger *slog.Logger) *RunBroker {
	return &RunBroker{
		subs:   make(map[chan trace.Record]struct{}),
		logger: logger,
	}
}

// Write implements trace.Sink. Slow subscribers are dropped.
func (b *RunBroker) Write(rec trace.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- rec:
		default:
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Len reports the current subscriber count.
func (b *RunBroker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close disconnects all subscribers.
func (b *RunBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

func (b *RunBroker) subscribe() (chan trace.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	ch := make(chan trace.Record, subscriberBuffer)
	b.subs[ch] = struct{}{}
	return ch, true
}

func (b *RunBroker) unsubscribe(ch chan trace.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// ServeHTTP upgrades the connection and streams trace records as JSON text
// frames until the client disconnects or the broker closes.
func (b *RunBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusInternalError, "unexpected close") }()

	ch, ok := b.subscribe()
	if !ok {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer b.unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		case rec, open := <-ch:
			if !open {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

// Interface guard.
var _ trace.Sink = (*RunBroker)(nil)
