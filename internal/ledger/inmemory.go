package ledger

import (
	"context"
	"sync"
)

type inMemoryRepository struct {
	mu  sync.RWMutex
	doc []byte
}

// NewInMemory creates a concurrency-safe in-memory repository useful for tests
// and for sessions that do not need to survive a restart. The portfolio is
// kept in its encoded form so readers never share memory with the store.
func NewInMemory() Repository {
	return &inMemoryRepository{}
}

func (r *inMemoryRepository) Load(_ context.Context) (Portfolio, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.doc == nil {
		return Portfolio{}, ErrNotFound
	}
	return Decode(r.doc)
}

func (r *inMemoryRepository) Save(_ context.Context, p Portfolio) error {
	doc, err := Encode(p)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc = doc
	return nil
}
