package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrOrderNotFound = errors.New("order not found")

const (
	EventOrderPaid          = "OrderPaid"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

// OutboxEvent is a row of the transactional outbox, written in the same
// transaction as the order change it describes.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// OrderEvent is the payload published for order changes.
type OrderEvent struct {
	OrderID     string             `json:"order_id"`
	PaymentID   string             `json:"payment_id"`
	UserID      string             `json:"user_id,omitempty"`
	Email       string             `json:"email,omitempty"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Currency    string             `json:"currency"`
	Status      domain.OrderStatus `json:"status"`
	Items       []domain.CartLine  `json:"items,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.OrderRecord) error
	GetOrder(ctx context.Context, id string) (*domain.OrderRecord, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.OrderRecord, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error
	Revenue(ctx context.Context) (decimal.Decimal, int, error)
	RunMigrations(*Credentials) error
	Close() error
}

// OutboxRepository is what the event relay needs.
type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}
