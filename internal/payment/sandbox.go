package payment

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeDecider picks the outcome of a sandbox charge.
type ChargeDecider interface {
	Decide() (domain.GatewayOutcome, string)
}

type RandomStatus struct{}

func (RandomStatus) Decide() (domain.GatewayOutcome, string) {
	randomInt := rand.Intn(101) // 101 because Intn is exclusive of the upper bound
	return calcStatus(randomInt)
}

var refusalReasons = []string{
	"insufficient funds",
	"card declined by issuer",
	"card expired",
	"suspected fraud",
	"bank unavailable",
}

func calcStatus(randomInt int) (domain.GatewayOutcome, string) {
	if randomInt < 95 {
		return domain.OutcomeSucceeded, ""
	}
	reason := randomInt - 95
	if reason == 0 || reason > len(refusalReasons) {
		return domain.OutcomeFailed, "unknown reason"
	}
	return domain.OutcomeFailed, refusalReasons[reason-1]
}

type FixedOutcome domain.GatewayOutcome

func (f FixedOutcome) Decide() (domain.GatewayOutcome, string) {
	if domain.GatewayOutcome(f) == domain.OutcomeFailed {
		return domain.OutcomeFailed, "declined"
	}
	return domain.GatewayOutcome(f), ""
}

// Sandbox is an in-process gateway used when no Razorpay credentials are
// configured. Charge plays the role of the hosted checkout UI.
type Sandbox struct {
	secret  string
	decider ChargeDecider

	mu      sync.Mutex
	intents map[string]*domain.PaymentIntent
	charged map[string]bool
}

// NewSandbox signs results with secret. An empty secret gets a random one for
// the life of the process.
func NewSandbox(secret string, decider ChargeDecider) *Sandbox {
	if decider == nil {
		decider = RandomStatus{}
	}
	if secret == "" {
		secret = randomSecret()
	}
	return &Sandbox{
		secret:  secret,
		decider: decider,
		intents: make(map[string]*domain.PaymentIntent),
		charged: make(map[string]bool),
	}
}

func (s *Sandbox) CheckoutKey() string {
	return "rzp_sandbox"
}

func (s *Sandbox) CreateIntent(ctx context.Context, amount decimal.Decimal) (*domain.PaymentIntent, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &apperrors.GatewayError{Op: "create intent", Err: err}
	}

	intent := &domain.PaymentIntent{
		IntentID:         "order_" + uuid.NewString()[:14],
		AmountMinorUnits: ToMinorUnits(amount),
		Currency:         domain.CurrencyINR,
		Receipt:          newReceipt(),
	}

	s.mu.Lock()
	s.intents[intent.IntentID] = intent
	s.mu.Unlock()
	return intent, nil
}

// Charge settles an intent once and returns the result the hosted UI would report.
func (s *Sandbox) Charge(intentID string) (domain.GatewayResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.intents[intentID]; !ok {
		return domain.GatewayResult{}, &apperrors.NotFoundError{Resource: "payment intent", ID: intentID}
	}
	if s.charged[intentID] {
		return domain.GatewayResult{}, &apperrors.GatewayError{Op: "charge", Err: fmt.Errorf("intent %s already charged", intentID)}
	}
	s.charged[intentID] = true

	outcome, reason := s.decider.Decide()
	result := domain.GatewayResult{Outcome: outcome, IntentID: intentID, Reason: reason}
	if outcome == domain.OutcomeSucceeded {
		result.PaymentReference = "pay_" + uuid.NewString()[:14]
		result.Signature = sign(s.secret, intentID, result.PaymentReference)
	}
	return result, nil
}

func (s *Sandbox) VerifyResult(intentID, paymentRef, signature string) error {
	return verify(s.secret, intentID, paymentRef, signature)
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := crand.Read(b); err != nil {
		panic(fmt.Sprintf("sandbox: read random secret: %v", err))
	}
	return hex.EncodeToString(b)
}
