package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JUNGLI-STORE/jungli-store/internal/auth"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/JUNGLI-STORE/jungli-store/internal/payment"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"go.uber.org/zap"
)

// Branding is what the hosted checkout UI shows.
type Branding struct {
	StoreName   string
	Description string
	Image       string
	ThemeColor  string
}

func DefaultBranding() Branding {
	return Branding{
		StoreName:   "JUNGLI STORE",
		Description: "Premium Sneaker Purchase",
		Image:       "/logo.svg",
		ThemeColor:  "#FF5F1F",
	}
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type Theme struct {
	Color string `json:"color"`
}

// HostedCheckout carries the options needed to open the gateway's payment UI.
type HostedCheckout struct {
	Key              string  `json:"key"`
	IntentID         string  `json:"order_id"`
	AmountMinorUnits int64   `json:"amount"`
	Currency         string  `json:"currency"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Image            string  `json:"image"`
	Prefill          Prefill `json:"prefill"`
	Theme            Theme   `json:"theme"`
}

// View is a consistent read of the orchestrator.
type View struct {
	State     domain.CheckoutStatus  `json:"state"`
	Details   domain.ShippingDetails `json:"details"`
	Intent    *domain.PaymentIntent  `json:"intent,omitempty"`
	Snapshot  *domain.CartSnapshot   `json:"snapshot,omitempty"`
	OrderID   string                 `json:"order_id,omitempty"`
	LastError error                  `json:"-"`
}

// Orchestrator drives one session's checkout. Network calls happen outside the
// lock; the busy states keep a second attempt out meanwhile.
type Orchestrator struct {
	sessionID string
	carts     CartSessions
	identity  IdentitySource
	payment   *PaymentHandler
	orders    *OrderHandler
	branding  Branding
	logger    *zap.Logger

	mu             sync.Mutex
	state          domain.CheckoutStatus
	details        domain.ShippingDetails
	buyer          domain.Identity
	snapshot       *domain.CartSnapshot
	intent         *domain.PaymentIntent
	resolvedIntent string
	orderID        string
	lastErr        error
}

func NewOrchestrator(sessionID string, carts CartSessions, identity IdentitySource, payment *PaymentHandler, orders *OrderHandler, branding Branding, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		sessionID: sessionID,
		carts:     carts,
		identity:  identity,
		payment:   payment,
		orders:    orders,
		branding:  branding,
		logger:    logger.With(zap.String("session_id", sessionID)),
		state:     domain.CheckoutStatusIdle,
	}
}

// Begin is the checkout entry guard. Without an identity the session parks in
// AwaitingAuth and the caller gets an AuthRequiredError to redirect on.
func (o *Orchestrator) Begin(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.IsBusy() {
		return ErrCheckoutInProgress
	}
	if o.state == domain.CheckoutStatusSuccess {
		o.resetLocked()
	}

	identity, ok := o.identity.CurrentIdentity(ctx)
	if !ok {
		if err := o.transitionLocked(domain.CheckoutStatusAwaitingAuth); err != nil {
			return err
		}
		return &apperrors.AuthRequiredError{Redirect: auth.LoginPath}
	}

	if o.state != domain.CheckoutStatusCollectingDetails {
		if err := o.transitionLocked(domain.CheckoutStatusCollectingDetails); err != nil {
			return err
		}
	}
	o.buyer = identity
	if o.details.Email == "" {
		o.details.Email = identity.Email
	}
	return nil
}

// Pay validates the shipping details, snapshots the cart and asks the gateway
// for a payment intent.
func (o *Orchestrator) Pay(ctx context.Context, details domain.ShippingDetails) (*HostedCheckout, error) {
	snapshot, err := o.prepare(ctx, details)
	if err != nil {
		return nil, err
	}

	intent, err := o.payment.createIntent(ctx, snapshot.Total)
	if err == nil && intent.AmountMinorUnits != payment.ToMinorUnits(snapshot.Total) {
		err = &apperrors.GatewayError{Op: "create intent", Err: ErrAmountMismatch}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		var gwErr *apperrors.GatewayError
		if !errors.As(err, &gwErr) {
			err = &apperrors.GatewayError{Op: "create intent", Err: err}
		}
		o.failLocked(err)
		o.logger.Warn("intent creation failed", zap.Error(err))
		return nil, err
	}

	o.intent = intent
	if err := o.transitionLocked(domain.CheckoutStatusAwaitingGatewayResult); err != nil {
		return nil, err
	}
	o.logger.Info("awaiting gateway result",
		zap.String("intent_id", intent.IntentID),
		zap.Int64("amount", intent.AmountMinorUnits))

	return &HostedCheckout{
		Key:              o.payment.gateway.CheckoutKey(),
		IntentID:         intent.IntentID,
		AmountMinorUnits: intent.AmountMinorUnits,
		Currency:         intent.Currency,
		Name:             o.branding.StoreName,
		Description:      o.branding.Description,
		Image:            o.branding.Image,
		Prefill: Prefill{
			Name:    o.details.FullName,
			Email:   o.details.Email,
			Contact: o.details.Phone,
		},
		Theme: Theme{Color: o.branding.ThemeColor},
	}, nil
}

func (o *Orchestrator) prepare(ctx context.Context, details domain.ShippingDetails) (domain.CartSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.IsBusy() {
		return domain.CartSnapshot{}, ErrCheckoutInProgress
	}
	if o.state == domain.CheckoutStatusFailed {
		// retry keeps cart and details
		if err := o.transitionLocked(domain.CheckoutStatusCollectingDetails); err != nil {
			return domain.CartSnapshot{}, err
		}
	}
	if o.state != domain.CheckoutStatusCollectingDetails {
		return domain.CartSnapshot{}, o.illegal(domain.CheckoutStatusRequestingIntent)
	}

	identity, ok := o.identity.CurrentIdentity(ctx)
	if !ok {
		_ = o.transitionLocked(domain.CheckoutStatusAwaitingAuth)
		return domain.CartSnapshot{}, &apperrors.AuthRequiredError{Redirect: auth.LoginPath}
	}
	o.buyer = identity

	details = trimDetails(details)
	if details.Email == "" {
		details.Email = identity.Email
	}
	o.details = details
	if err := details.Validate(); err != nil {
		return domain.CartSnapshot{}, err
	}

	snapshot := o.carts.Get(ctx, o.sessionID).Snapshot()
	if snapshot.IsEmpty() {
		return domain.CartSnapshot{}, ErrEmptyCart
	}

	o.snapshot = &snapshot
	o.intent = nil
	o.lastErr = nil
	if err := o.transitionLocked(domain.CheckoutStatusRequestingIntent); err != nil {
		return domain.CartSnapshot{}, err
	}
	return snapshot, nil
}

// Resolve consumes the hosted checkout's result for the pending intent. It
// returns the written order on success and nil after a cancellation.
func (o *Orchestrator) Resolve(ctx context.Context, result domain.GatewayResult) (*domain.OrderRecord, error) {
	order, err := o.accept(result)
	if err != nil || order == nil {
		return nil, err
	}

	orderID, err := o.orders.createOrder(ctx, order)
	if errors.Is(err, domain.ErrDuplicatePayment) {
		o.logger.Warn("order already recorded for payment",
			zap.String("payment_id", order.PaymentReference),
			zap.String("order_id", orderID))
		err = nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		pErr := &apperrors.PersistenceError{PaymentReference: order.PaymentReference, Err: err}
		o.failLocked(pErr)
		o.logger.Error("payment captured but order not saved",
			zap.String("payment_id", order.PaymentReference),
			zap.String("intent_id", order.IntentID),
			zap.Error(err))
		return nil, pErr
	}

	order.ID = orderID
	o.orderID = orderID
	if err := o.transitionLocked(domain.CheckoutStatusSuccess); err != nil {
		return nil, err
	}
	o.carts.Clear(context.WithoutCancel(ctx), o.sessionID)
	o.logger.Info("order placed",
		zap.String("order_id", orderID),
		zap.String("payment_id", order.PaymentReference))
	return order, nil
}

// accept applies the gateway outcome under the lock and, for a verified
// success, moves to Submitting and returns the order to write.
func (o *Orchestrator) accept(result domain.GatewayResult) (*domain.OrderRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if result.IntentID != "" && result.IntentID == o.resolvedIntent {
		return nil, ErrAlreadyResolved
	}
	if o.state != domain.CheckoutStatusAwaitingGatewayResult {
		return nil, o.illegal(domain.CheckoutStatusSubmitting)
	}
	if o.intent == nil || result.IntentID != o.intent.IntentID {
		return nil, ErrUnknownIntent
	}
	if !result.Outcome.Valid() {
		return nil, &apperrors.ValidationError{Fields: map[string]string{"outcome": fmt.Sprintf("unknown outcome %q", result.Outcome)}}
	}

	switch result.Outcome {
	case domain.OutcomeCancelled:
		o.resolvedIntent = result.IntentID
		o.intent = nil
		o.snapshot = nil
		o.logger.Info("payment cancelled by customer", zap.String("intent_id", result.IntentID))
		return nil, o.transitionLocked(domain.CheckoutStatusCollectingDetails)

	case domain.OutcomeFailed:
		o.resolvedIntent = result.IntentID
		reason := result.Reason
		if reason == "" {
			reason = "payment failed"
		}
		err := &apperrors.GatewayError{Op: "payment", Err: errors.New(reason)}
		o.failLocked(err)
		o.logger.Warn("payment failed", zap.String("intent_id", result.IntentID), zap.String("reason", reason))
		return nil, err

	default: // succeeded
		if strings.TrimSpace(result.PaymentReference) == "" {
			return nil, &apperrors.GatewayError{Op: "payment", Err: ErrMissingReference}
		}
		if err := o.payment.gateway.VerifyResult(result.IntentID, result.PaymentReference, result.Signature); err != nil {
			o.logger.Warn("payment result rejected", zap.String("intent_id", result.IntentID), zap.Error(err))
			return nil, err
		}
		o.resolvedIntent = result.IntentID

		snapshot := *o.snapshot
		total := domain.SumLines(snapshot.Lines)
		if !total.Equal(snapshot.Total) || payment.ToMinorUnits(total) != o.intent.AmountMinorUnits {
			err := &apperrors.PersistenceError{PaymentReference: result.PaymentReference, Err: ErrAmountMismatch}
			o.failLocked(err)
			return nil, err
		}

		if err := o.transitionLocked(domain.CheckoutStatusSubmitting); err != nil {
			return nil, err
		}
		return domain.NewPaidOrder(snapshot, o.details, o.buyer.UserID, result.IntentID, result.PaymentReference), nil
	}
}

// Reset returns a settled checkout to Idle.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.IsBusy() {
		return ErrCheckoutInProgress
	}
	o.resetLocked()
	return nil
}

// signedOut parks a session that is filling in details until it signs in again.
func (o *Orchestrator) signedOut() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == domain.CheckoutStatusCollectingDetails {
		_ = o.transitionLocked(domain.CheckoutStatusAwaitingAuth)
		o.buyer = domain.Identity{}
		o.logger.Info("identity lost during checkout")
	}
}

func (o *Orchestrator) State() domain.CheckoutStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Details() domain.ShippingDetails {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.details
}

func (o *Orchestrator) Intent() *domain.PaymentIntent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.intent == nil {
		return nil
	}
	intent := *o.intent
	return &intent
}

func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()

	v := View{
		State:     o.state,
		Details:   o.details,
		OrderID:   o.orderID,
		LastError: o.lastErr,
	}
	if o.intent != nil {
		intent := *o.intent
		v.Intent = &intent
	}
	if o.snapshot != nil {
		snap := *o.snapshot
		v.Snapshot = &snap
	}
	return v
}

func (o *Orchestrator) resetLocked() {
	o.state = domain.CheckoutStatusIdle
	o.intent = nil
	o.snapshot = nil
	o.orderID = ""
	o.lastErr = nil
}

func (o *Orchestrator) failLocked(err error) {
	o.lastErr = err
	if tErr := o.transitionLocked(domain.CheckoutStatusFailed); tErr != nil {
		o.logger.Error("failed to record checkout failure", zap.Error(tErr))
	}
}

func (o *Orchestrator) transitionLocked(next domain.CheckoutStatus) error {
	if o.state == next {
		return nil
	}
	if !o.state.CanTransitionTo(next) {
		return o.illegal(next)
	}
	o.logger.Debug("checkout transition", zap.Stringer("from", o.state), zap.Stringer("to", next))
	o.state = next
	return nil
}

func (o *Orchestrator) illegal(next domain.CheckoutStatus) error {
	return fmt.Errorf("%w: %w", ErrIllegalTransition, &apperrors.InvalidStateTransitionError{From: o.state.String(), To: next.String()})
}

func trimDetails(d domain.ShippingDetails) domain.ShippingDetails {
	return domain.ShippingDetails{
		FullName: strings.TrimSpace(d.FullName),
		Phone:    strings.TrimSpace(d.Phone),
		Address:  strings.TrimSpace(d.Address),
		City:     strings.TrimSpace(d.City),
		Pincode:  strings.TrimSpace(d.Pincode),
		Email:    strings.TrimSpace(d.Email),
	}
}
