package memory

import (
	"context"
	"sync"
	"time"

	"iam/internal/storage"
)

// CodeRegistry remembers consumed authorization codes until they expire
type CodeRegistry struct {
	mu       sync.Mutex
	consumed map[string]time.Time
	now      func() time.Time
}

// NewCodeRegistry creates new instance of CodeRegistry
func NewCodeRegistry(now func() time.Time) *CodeRegistry {
	if now == nil {
		now = time.Now
	}
	return &CodeRegistry{consumed: make(map[string]time.Time), now: now}
}

// Consume marks fingerprint as used for ttl, storage.ErrCodeConsumed if it already is
func (r *CodeRegistry) Consume(_ context.Context, fingerprint string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for fp, until := range r.consumed {
		if !now.Before(until) {
			delete(r.consumed, fp)
		}
	}

	if _, ok := r.consumed[fingerprint]; ok {
		return storage.ErrCodeConsumed
	}
	r.consumed[fingerprint] = now.Add(ttl)
	return nil
}
