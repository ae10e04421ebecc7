package cart

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrInvalidLine = errors.New("invalid cart line")

// Store is the cart of one browser session. Lines keep insertion order and
// there is at most one line per (product, size).
type Store struct {
	mu    sync.RWMutex
	lines []domain.CartLine
	open  bool
}

func NewStore() *Store {
	return &Store{}
}

func restoreStore(state *State) *Store {
	s := &Store{open: state.Open}
	s.lines = append(s.lines, state.Lines...)
	return s
}

// AddLine merges line into the cart. An existing (product, size) gains exactly
// one unit regardless of line.Quantity; a new pair is appended as given.
// The cart is opened either way.
func (s *Store) AddLine(line domain.CartLine) error {
	if err := validateLine(line); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := line.Key()
	for i, existing := range s.lines {
		if existing.Key() == key {
			existing.Quantity++
			s.lines[i] = existing
			s.open = true
			return nil
		}
	}
	s.lines = append(s.lines, line)
	s.open = true
	return nil
}

// RemoveLine drops the (product, size) line if present.
func (s *Store) RemoveLine(productID, size string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.LineKey{ProductID: productID, Size: size}
	for i, existing := range s.lines {
		if existing.Key() == key {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return
		}
	}
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.SumLines(s.lines)
}

func (s *Store) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLines()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Snapshot captures lines and total atomically.
func (s *Store) Snapshot() domain.CartSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := s.copyLines()
	return domain.CartSnapshot{
		Lines:      lines,
		Total:      domain.SumLines(lines),
		CapturedAt: time.Now(),
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

func (s *Store) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = open
}

func (s *Store) state() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &State{Lines: s.copyLines(), Open: s.open}
}

func (s *Store) copyLines() []domain.CartLine {
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

func validateLine(line domain.CartLine) error {
	switch {
	case strings.TrimSpace(line.ProductID) == "":
		return ErrInvalidLine
	case strings.TrimSpace(line.Size) == "":
		return ErrInvalidLine
	case line.Quantity < 1:
		return ErrInvalidLine
	case !line.UnitPrice.IsPositive():
		return ErrInvalidLine
	}
	return nil
}
