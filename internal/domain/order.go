package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDuplicatePayment means an order already exists for the payment reference.
var ErrDuplicatePayment = errors.New("order already recorded for this payment")

type OrderStatus string

const (
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return st, true
	}
	return "", false
}

// CanTransitionTo allows only the single forward step paid -> shipped -> delivered.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPaid:
		return next == OrderStatusShipped
	case OrderStatusShipped:
		return next == OrderStatusDelivered
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

type OrderRecord struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id,omitempty"`
	CustomerName     string          `json:"customer_name"`
	Email            string          `json:"email,omitempty"`
	Phone            string          `json:"phone"`
	Address          string          `json:"address"`
	City             string          `json:"city,omitempty"`
	Pincode          string          `json:"pincode"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentReference string          `json:"payment_id"`
	IntentID         string          `json:"intent_id"`
	LineItems        []CartLine      `json:"items"`
	Status           OrderStatus     `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewPaidOrder builds the record written after a captured payment.
func NewPaidOrder(snapshot CartSnapshot, details ShippingDetails, userID, intentID, paymentRef string) *OrderRecord {
	lines := make([]CartLine, len(snapshot.Lines))
	copy(lines, snapshot.Lines)
	return &OrderRecord{
		UserID:           userID,
		CustomerName:     details.FullName,
		Email:            details.Email,
		Phone:            details.Phone,
		Address:          details.Address,
		City:             details.City,
		Pincode:          details.Pincode,
		TotalAmount:      snapshot.Total,
		PaymentReference: paymentRef,
		IntentID:         intentID,
		LineItems:        lines,
		Status:           OrderStatusPaid,
	}
}

type OrderFilter struct {
	// Query matches customer name or phone, case-insensitive.
	Query string
	Email string
	Limit int
}
