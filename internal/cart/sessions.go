package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Sessions hands out one Store per browser session. Stores are kept in memory
// and snapshotted to the cache after every mutation.
type Sessions struct {
	cache  SessionCache
	logger *zap.Logger

	mu       sync.Mutex
	stores   map[string]*Store
	lastSeen map[string]time.Time
	sfg      singleflight.Group // collapses concurrent cache loads of one session
}

func NewSessions(cache SessionCache, logger *zap.Logger) *Sessions {
	return &Sessions{
		cache:    cache,
		logger:   logger,
		stores:   make(map[string]*Store),
		lastSeen: make(map[string]time.Time),
	}
}

// Get returns the session's store, restoring it from the cache on first use.
// A cache failure yields an empty cart, never an error.
func (s *Sessions) Get(ctx context.Context, sessionID string) *Store {
	if st := s.lookup(sessionID); st != nil {
		return st
	}

	v, _, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if st := s.lookup(sessionID); st != nil {
			return st, nil
		}

		st := NewStore()
		state, err := s.cache.Get(ctx, sessionID)
		switch {
		case err == nil:
			st = restoreStore(state)
		case !errors.Is(err, ErrCacheMiss):
			s.logger.Warn("cart cache get failed", zap.String("session_id", sessionID), zap.Error(err))
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.lastSeen[sessionID] = time.Now()
		if existing, ok := s.stores[sessionID]; ok {
			return existing, nil
		}
		s.stores[sessionID] = st
		return st, nil
	})
	return v.(*Store)
}

// Peek reads the session's cart without registering it. Sessions that only
// ever look at an empty cart leave nothing behind in memory.
func (s *Sessions) Peek(ctx context.Context, sessionID string) *Store {
	if st := s.lookup(sessionID); st != nil {
		return st
	}
	state, err := s.cache.Get(ctx, sessionID)
	switch {
	case err == nil:
		return restoreStore(state)
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn("cart cache get failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return NewStore()
}

// Save snapshots the session's store to the cache.
func (s *Sessions) Save(ctx context.Context, sessionID string, store *Store) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, sessionID, store.state()); err != nil {
		s.logger.Warn("cart cache set failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Clear empties the session's cart and drops its snapshot.
func (s *Sessions) Clear(ctx context.Context, sessionID string) {
	s.Get(ctx, sessionID).Clear()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("cart cache invalidate failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// EvictIdle runs until ctx is done, forgetting stores untouched for longer
// than idle. An evicted cart is restored from the cache on its next use.
func (s *Sessions) EvictIdle(ctx context.Context, idle time.Duration) {
	ticker := time.NewTicker(sweepInterval(idle))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.sweep(time.Now().Add(-idle)); n > 0 {
				s.logger.Debug("evicted idle carts", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// sweep forgets every store last used before cutoff.
func (s *Sessions) sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, seen := range s.lastSeen {
		if seen.Before(cutoff) {
			delete(s.stores, id)
			delete(s.lastSeen, id)
			n++
		}
	}
	return n
}

// Len reports how many stores are held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}

func (s *Sessions) lookup(sessionID string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[sessionID]
	if ok {
		s.lastSeen[sessionID] = time.Now()
	}
	return st
}

func sweepInterval(idle time.Duration) time.Duration {
	if every := idle / 4; every > time.Second {
		return every
	}
	return time.Second
}
