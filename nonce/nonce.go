// Package nonce defines the response-nonce store that guards against
// assertion replay, and ships an in-memory implementation whose
// GetAndDelete is atomic under concurrent callers.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned by Store.GetAndDelete when no nonce exists (or
// it was already consumed) for the given id.
var ErrNotFound = errors.New("nonce: not found")

// Nonce is a response-unique token the OP issues alongside a positive
// assertion and an RP consumes at most once via check_authentication.
type Nonce struct {
	ID     string
	Expiry time.Time
}

// Expired reports whether the nonce's expiry has passed as of now.
func (n Nonce) Expired(now time.Time) bool {
	return now.After(n.Expiry)
}

// Store is the nonce persistence interface. GetAndDelete MUST behave as
// an atomic test-and-remove: at most one caller ever observes a non-error
// result for a given id, even under concurrent callers (spec §4.3, §5).
type Store interface {
	Put(ctx context.Context, n Nonce) error
	GetAndDelete(ctx context.Context, id string) (Nonce, error)
}

// NewID returns a fresh response_nonce value: "YYYY-MM-DDThh:mm:ssZ"
// (UTC, second precision) followed by 8 hex characters of random suffix,
// per spec §3/§4.6.4. Uniqueness across concurrent calls is the caller's
// responsibility in the sense that collisions are astronomically
// unlikely, not structurally prevented.
func NewID(now time.Time) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("nonce: generating suffix: %w", err)
	}
	return now.UTC().Format("2006-01-02T15:04:05Z") + hex.EncodeToString(suffix), nil
}

// memoryStore is a mutex-guarded, in-memory Store.
type memoryStore struct {
	mu     sync.Mutex
	nonces map[string]Nonce
}

// NewMemoryStore returns an in-memory nonce Store.
func NewMemoryStore() Store {
	return &memoryStore{nonces: make(map[string]Nonce)}
}

func (s *memoryStore) Put(_ context.Context, n Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[n.ID] = n
	return nil
}

func (s *memoryStore) GetAndDelete(_ context.Context, id string) (Nonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nonces[id]
	if !ok {
		return Nonce{}, ErrNotFound
	}
	delete(s.nonces, id)
	return n, nil
}
