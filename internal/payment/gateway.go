package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway creates payment intents and verifies what the hosted checkout
// reports back. Implementations never retry.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal) (*domain.PaymentIntent, error)
	VerifyResult(intentID, paymentRef, signature string) error
	// CheckoutKey is the public key handed to the hosted checkout UI.
	CheckoutKey() string
}

var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrInvalidSignature = errors.New("payment signature mismatch")
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts rupees to paise, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// newReceipt labels one intent request. It is not an idempotency key.
func newReceipt() string {
	return "receipt_order_" + uuid.NewString()[:8]
}

func sign(secret, intentID, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentID + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret, intentID, paymentRef, signature string) error {
	if intentID == "" || paymentRef == "" {
		return &apperrors.GatewayError{Op: "verify result", Err: fmt.Errorf("missing intent or payment reference")}
	}
	expected := sign(secret, intentID, paymentRef)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return &apperrors.GatewayError{Op: "verify result", Err: ErrInvalidSignature}
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || ToMinorUnits(amount) <= 0 {
		return &apperrors.GatewayError{Op: "create intent", Err: ErrInvalidAmount}
	}
	return nil
}
