package checkout

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/JUNGLI-STORE/jungli-store/internal/cart"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/JUNGLI-STORE/jungli-store/internal/payment"
	"github.com/shopspring/decimal"
)

// MockGateway implements payment.Gateway for testing
type MockGateway struct {
	Calls     atomic.Int32
	Intent    *domain.PaymentIntent
	Err       error
	VerifyErr error
	// Block, when set, holds CreateIntent until closed.
	Block chan struct{}
}

func (m *MockGateway) CreateIntent(ctx context.Context, amount decimal.Decimal) (*domain.PaymentIntent, error) {
	m.Calls.Add(1)
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Intent != nil {
		return m.Intent, nil
	}
	return &domain.PaymentIntent{
		IntentID:         "order_test",
		AmountMinorUnits: payment.ToMinorUnits(amount),
		Currency:         domain.CurrencyINR,
		Receipt:          "receipt_order_test",
	}, nil
}

func (m *MockGateway) VerifyResult(_, _, _ string) error {
	return m.VerifyErr
}

func (m *MockGateway) CheckoutKey() string {
	return "rzp_test_key"
}

// MockOrders implements OrderWriter for testing
type MockOrders struct {
	mu      sync.Mutex
	Created []*domain.OrderRecord
	Err     error
	// ExistingID is returned alongside Err, as for a duplicate payment.
	ExistingID string
	// CtxErr records the context state seen by CreateOrder.
	CtxErr error
}

func (m *MockOrders) CreateOrder(ctx context.Context, order *domain.OrderRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, order)
	m.CtxErr = ctx.Err()
	if m.Err != nil {
		return m.ExistingID, m.Err
	}
	return "ord-1", nil
}

func (m *MockOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created)
}

// MockIdentity implements IdentitySource for testing
type MockIdentity struct {
	mu       sync.Mutex
	identity *domain.Identity
}

func (m *MockIdentity) CurrentIdentity(context.Context) (domain.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return domain.Identity{}, false
	}
	return *m.identity, true
}

func (m *MockIdentity) set(id *domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = id
}

// MockCarts implements CartSessions over plain stores
type MockCarts struct {
	mu     sync.Mutex
	stores map[string]*cart.Store
}

func newMockCarts() *MockCarts {
	return &MockCarts{stores: map[string]*cart.Store{}}
}

func (m *MockCarts) Get(_ context.Context, sessionID string) *cart.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stores[sessionID]
	if !ok {
		st = cart.NewStore()
		m.stores[sessionID] = st
	}
	return st
}

func (m *MockCarts) Clear(ctx context.Context, sessionID string) {
	m.Get(ctx, sessionID).Clear()
}
