package cart

import (
	"context"
	"errors"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
)

// State is the cached form of a session cart.
type State struct {
	Lines []domain.CartLine `json:"lines"`
	Open  bool              `json:"open"`
}

type SessionCache interface {
	Get(ctx context.Context, sessionID string) (*State, error)
	Set(ctx context.Context, sessionID string, state *State) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
