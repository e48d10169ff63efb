// Package sink provides the narrow write-through capability Persist steps
// use. The engine never assumes a storage technology: a destination either
// routes to the file sink (anything that looks like a path) or to a named
// collection store, and a failed write surfaces as a warning, never a
// fatal error.
package sink

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Sink writes one value under a destination name. Write either succeeds or
// returns a fault the engine records as a warning.
type Sink interface {
	Name() string
	Write(ctx context.Context, dest string, value any) error
}

// Registry routes Persist destinations. Destinations containing a path
// separator or a file extension go to the file sink; "store:collection"
// picks a named store; a bare token is a collection in the default store.
type Registry struct {
	mu       sync.RWMutex
	file     Sink
	stores   map[string]Sink
	fallback string
}

func NewRegistry(file Sink) *Registry {
	return &Registry{file: file, stores: make(map[string]Sink)}
}

// AddStore registers a collection store. The first one added becomes the
// default unless SetDefault is called.
func (r *Registry) AddStore(name string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[name] = s
	if r.fallback == "" {
		r.fallback = name
	}
}

func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = name
}

// Route picks the sink and the collection/path argument for a destination.
func (r *Registry) Route(dest string) (Sink, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if looksLikePath(dest) {
		if r.file == nil {
			return nil, "", fmt.Errorf("no file sink configured for destination %q", dest)
		}
		return r.file, dest, nil
	}

	collection := dest
	storeName := r.fallback
	if i := strings.IndexByte(dest, ':'); i > 0 {
		storeName = dest[:i]
		collection = dest[i+1:]
	}
	s, ok := r.stores[storeName]
	if !ok {
		return nil, "", fmt.Errorf("no store %q for destination %q", storeName, dest)
	}
	return s, collection, nil
}

// Write resolves the destination and performs the write.
func (r *Registry) Write(ctx context.Context, dest string, value any) error {
	s, arg, err := r.Route(dest)
	if err != nil {
		return err
	}
	return s.Write(ctx, arg, value)
}

func looksLikePath(dest string) bool {
	if strings.ContainsAny(dest, "/\\") {
		return true
	}
	if i := strings.LastIndexByte(dest, '.'); i > 0 && i < len(dest)-1 {
		return true
	}
	return false
}
