// Package eventws streams engine events to WebSocket clients. It is one
// concrete implementation of the engine's Listener contract; the engine
// itself stays transport-agnostic.
package eventws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/proseflow/proseflow/internal/engine"
)

const writeTimeout = 5 * time.Second

// Broadcaster accepts WebSocket connections and fans every published
// engine event out to them as JSON. A client that cannot be written to in
// time is dropped.
type Broadcaster struct {
	log *zap.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewBroadcaster(log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		log:   log,
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and holds the connection open until the
// client goes away. Inbound frames are read and discarded; the stream is
// one-way.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		b.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	b.register(c)
	defer func() {
		b.unregister(c)
		_ = c.CloseNow()
	}()

	ctx := r.Context()
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}

// Notify implements engine.Listener.
func (b *Broadcaster) Notify(ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.Warn("event marshal failed", zap.Error(err))
		return
	}

	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			b.unregister(c)
			_ = c.CloseNow()
		}
	}
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *Broadcaster) register(c *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[c] = struct{}{}
}

func (b *Broadcaster) unregister(c *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, c)
}
