package engine

import (
	"sync"
	"time"
)

// Event is what Debrief and Emit steps publish to registered listeners.
type Event struct {
	Name    string    `json:"name"`
	Agent   string    `json:"agent,omitempty"`
	Message string    `json:"message,omitempty"`
	Payload any       `json:"payload,omitempty"`
	RunID   string    `json:"run_id"`
	Time    time.Time `json:"time"`
}

// Listener receives published events. Delivery is fire-and-forget from the
// engine's perspective; a slow or failing listener is the listener's
// problem.
type Listener interface {
	Notify(ev Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(ev Event)

func (f ListenerFunc) Notify(ev Event) { f(ev) }

// Bus fans events out to listeners synchronously, in subscription order.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()
	for _, l := range listeners {
		l.Notify(ev)
	}
}
