package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/auth"
	"go.uber.org/zap"
)

type IdentityNotifier interface {
	Subscribe(fn func(auth.IdentityChange)) func()
}

// Service keeps one Orchestrator per browser session.
type Service struct {
	carts    CartSessions
	identity IdentitySource
	payment  *PaymentHandler
	orders   *OrderHandler
	branding Branding
	logger   *zap.Logger

	mu            sync.Mutex
	orchestrators map[string]*Orchestrator
	lastSeen      map[string]time.Time
	unsubscribe   func()
}

func NewService(carts CartSessions, identity IdentitySource, notifier IdentityNotifier, payment *PaymentHandler, orders *OrderHandler, branding Branding, logger *zap.Logger) *Service {
	s := &Service{
		carts:         carts,
		identity:      identity,
		payment:       payment,
		orders:        orders,
		branding:      branding,
		logger:        logger,
		orchestrators: make(map[string]*Orchestrator),
		lastSeen:      make(map[string]time.Time),
	}
	s.unsubscribe = notifier.Subscribe(s.onIdentityChange)
	return s
}

// For returns the session's orchestrator, creating it in Idle on first use.
func (s *Service) For(sessionID string) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orchestrators[sessionID]
	if !ok {
		o = s.newOrchestrator(sessionID)
		s.orchestrators[sessionID] = o
	}
	s.lastSeen[sessionID] = time.Now()
	return o
}

// Peek returns the session's orchestrator without registering one. A session
// that never started a checkout gets a throwaway orchestrator in Idle.
func (s *Service) Peek(sessionID string) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.orchestrators[sessionID]; ok {
		s.lastSeen[sessionID] = time.Now()
		return o
	}
	return s.newOrchestrator(sessionID)
}

// EvictIdle runs until ctx is done, forgetting orchestrators untouched for
// longer than idle. Busy ones stay so a late gateway result still lands.
func (s *Service) EvictIdle(ctx context.Context, idle time.Duration) {
	every := idle / 4
	if every < time.Second {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.sweep(time.Now().Add(-idle)); n > 0 {
				s.logger.Debug("evicted idle checkouts", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, seen := range s.lastSeen {
		if seen.Before(cutoff) && s.forgetLocked(id) {
			n++
		}
	}
	return n
}

// forgetLocked drops the session's orchestrator unless a payment is in flight.
func (s *Service) forgetLocked(sessionID string) bool {
	o, ok := s.orchestrators[sessionID]
	if !ok {
		return false
	}
	if o.State().IsBusy() {
		return false
	}
	delete(s.orchestrators, sessionID)
	delete(s.lastSeen, sessionID)
	return true
}

// Len reports how many orchestrators are held in memory.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orchestrators)
}

func (s *Service) newOrchestrator(sessionID string) *Orchestrator {
	return NewOrchestrator(sessionID, s.carts, s.identity, s.payment, s.orders, s.branding, s.logger)
}

func (s *Service) onIdentityChange(change auth.IdentityChange) {
	if change.SignedIn {
		return
	}
	s.mu.Lock()
	o, ok := s.orchestrators[change.SessionID]
	s.mu.Unlock()
	if ok {
		o.signedOut()
	}
}

func (s *Service) Close() {
	s.unsubscribe()
}
