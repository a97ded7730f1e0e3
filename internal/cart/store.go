package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/noah-isme/store-bridge/internal/lock"
)

// Store keeps every cart in process memory keyed by user id. Carts are
// created lazily, never evicted and never shared: readers receive copies.
type Store struct {
	mu       sync.RWMutex
	carts    map[string]Cart
	locks    lock.Keyed
	lockWait time.Duration
}

// NewStore constructs an empty store. lockWait bounds how long a mutation
// waits for the user's lock; zero waits until the context is done.
func NewStore(lockWait time.Duration) *Store {
	return &Store{carts: make(map[string]Cart), lockWait: lockWait}
}

// Get returns a copy of the user's cart, materializing an empty one first.
func (s *Store) Get(userID string) Cart {
	s.mu.RLock()
	c, ok := s.carts[userID]
	s.mu.RUnlock()
	if ok {
		return c.Clone()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.carts[userID]; !ok {
		c = NewCart()
		s.carts[userID] = c
	}
	return c.Clone()
}

// Update runs fn against a private copy of the user's cart while holding the
// user's lock. The copy replaces the stored cart only when fn succeeds.
func (s *Store) Update(ctx context.Context, userID string, fn func(*Cart) error) (Cart, error) {
	var out Cart
	err := s.locks.WithLock(ctx, userID, s.lockWait, func(context.Context) error {
		working := s.Get(userID)
		if err := fn(&working); err != nil {
			return err
		}
		s.put(userID, working)
		out = working.Clone()
		return nil
	})
	if errors.Is(err, lock.ErrTimeout) {
		return Cart{}, ErrCartBusy
	}
	return out, err
}

// Reset replaces the user's cart with a fresh empty cart.
func (s *Store) Reset(ctx context.Context, userID string) (Cart, error) {
	return s.Update(ctx, userID, func(c *Cart) error {
		*c = NewCart()
		return nil
	})
}

// Len reports how many carts are held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}

func (s *Store) put(userID string, c Cart) {
	s.mu.Lock()
	s.carts[userID] = c
	s.mu.Unlock()
}
