package checkout

import (
	"context"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/cart"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/JUNGLI-STORE/jungli-store/internal/payment"
	"github.com/shopspring/decimal"
)

// OrderWriter persists paid orders. Implementations must return
// domain.ErrDuplicatePayment when the payment reference is already recorded.
type OrderWriter interface {
	CreateOrder(ctx context.Context, order *domain.OrderRecord) (string, error)
}

type IdentitySource interface {
	CurrentIdentity(ctx context.Context) (domain.Identity, bool)
}

type CartSessions interface {
	Get(ctx context.Context, sessionID string) *cart.Store
	Clear(ctx context.Context, sessionID string)
}

type PaymentHandler struct {
	gateway payment.Gateway
	timeout time.Duration
}

func NewPaymentHandler(gateway payment.Gateway, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		gateway: gateway,
		timeout: timeout,
	}
}

func (h *PaymentHandler) createIntent(ctx context.Context, amount decimal.Decimal) (*domain.PaymentIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.gateway.CreateIntent(ctx, amount)
}

type OrderHandler struct {
	orders  OrderWriter
	timeout time.Duration
}

func NewOrderHandler(orders OrderWriter, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		timeout: timeout,
	}
}

// createOrder runs detached from the caller's cancellation: the payment is
// already captured, so a dropped request must not abandon the write.
func (h *OrderHandler) createOrder(ctx context.Context, order *domain.OrderRecord) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()
	return h.orders.CreateOrder(ctx, order)
}
