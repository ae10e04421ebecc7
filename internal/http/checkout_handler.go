package http

import (
	"context"
	"net/http"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/auth"
	"github.com/JUNGLI-STORE/jungli-store/internal/checkout"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutSessions interface {
	For(sessionID string) *checkout.Orchestrator
	Peek(sessionID string) *checkout.Orchestrator
}

// SandboxCharger settles a pending intent without a real payment UI.
type SandboxCharger interface {
	Charge(intentID string) (domain.GatewayResult, error)
}

type CheckoutHandler struct {
	checkout CheckoutSessions
	sandbox  SandboxCharger
	timeout  time.Duration
	logger   *zap.Logger
}

// NewCheckoutHandler builds the checkout endpoints. sandbox may be nil.
func NewCheckoutHandler(sessions CheckoutSessions, sandbox SandboxCharger, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: sessions,
		sandbox:  sandbox,
		timeout:  timeout,
		logger:   logger,
	}
}

type CheckoutResponseDTO struct {
	checkout.View
	Error string `json:"error,omitempty"`
}

// PaymentCallbackDTO is the payload the hosted payment UI hands back.
type PaymentCallbackDTO struct {
	OrderID   string           `json:"razorpay_order_id"`
	PaymentID string           `json:"razorpay_payment_id"`
	Signature string           `json:"razorpay_signature"`
	Error     *GatewayErrorDTO `json:"error,omitempty"`
}

type GatewayErrorDTO struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Reason      string `json:"reason,omitempty"`
	Metadata    struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
	} `json:"metadata"`
}

type CancelRequestDTO struct {
	OrderID string `json:"razorpay_order_id"`
}

type OrderConfirmationDTO struct {
	OrderID   string             `json:"order_id,omitempty"`
	PaymentID string             `json:"payment_id"`
	Status    domain.OrderStatus `json:"status"`
	Total     decimal.Decimal    `json:"total_amount"`
}

func (h *CheckoutHandler) orchestrator(r *http.Request) *checkout.Orchestrator {
	return h.checkout.For(auth.SessionID(r.Context()))
}

func (h *CheckoutHandler) peek(r *http.Request) *checkout.Orchestrator {
	return h.checkout.Peek(auth.SessionID(r.Context()))
}

func viewResponse(o *checkout.Orchestrator) CheckoutResponseDTO {
	v := o.View()
	resp := CheckoutResponseDTO{View: v}
	if v.LastError != nil {
		resp.Error = v.LastError.Error()
	}
	return resp
}

// GET /api/v1/checkout
func (h *CheckoutHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, viewResponse(h.peek(r)))
}

// POST /api/v1/checkout/start
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	o := h.orchestrator(r)
	if err := o.Begin(r.Context()); err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, viewResponse(o))
}

// POST /api/v1/checkout/pay
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var details domain.ShippingDetails
	if err := decodeJSON(r, &details); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	hosted, err := h.orchestrator(r).Pay(ctx, details)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, hosted)
}

// POST /api/v1/checkout/callback
func (h *CheckoutHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req PaymentCallbackDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.resolve(w, r, callbackResult(req))
}

// POST /api/v1/checkout/cancel
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.resolve(w, r, domain.GatewayResult{Outcome: domain.OutcomeCancelled, IntentID: req.OrderID})
}

// POST /api/v1/checkout/sandbox/charge settles the pending intent through the
// sandbox gateway.
func (h *CheckoutHandler) SandboxCharge(w http.ResponseWriter, r *http.Request) {
	if h.sandbox == nil {
		respondError(w, http.StatusNotFound, "not_found", "sandbox gateway is not enabled")
		return
	}
	intent := h.peek(r).Intent()
	if intent == nil {
		respondError(w, http.StatusConflict, "conflict", "no payment is pending")
		return
	}

	result, err := h.sandbox.Charge(intent.IntentID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	h.resolve(w, r, result)
}

// POST /api/v1/checkout/reset
func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	o := h.orchestrator(r)
	if err := o.Reset(); err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, viewResponse(o))
}

func (h *CheckoutHandler) resolve(w http.ResponseWriter, r *http.Request, result domain.GatewayResult) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	o := h.orchestrator(r)
	order, err := o.Resolve(ctx, result)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if order == nil {
		// cancelled: back to the details form
		respondJSON(w, http.StatusOK, viewResponse(o))
		return
	}

	respondJSON(w, http.StatusCreated, OrderConfirmationDTO{
		OrderID:   order.ID,
		PaymentID: order.PaymentReference,
		Status:    order.Status,
		Total:     order.TotalAmount,
	})
}

func callbackResult(req PaymentCallbackDTO) domain.GatewayResult {
	if req.Error != nil {
		intentID := req.Error.Metadata.OrderID
		if intentID == "" {
			intentID = req.OrderID
		}
		reason := req.Error.Description
		if reason == "" {
			reason = req.Error.Reason
		}
		return domain.GatewayResult{Outcome: domain.OutcomeFailed, IntentID: intentID, Reason: reason}
	}
	return domain.GatewayResult{
		Outcome:          domain.OutcomeSucceeded,
		IntentID:         req.OrderID,
		PaymentReference: req.PaymentID,
		Signature:        req.Signature,
	}
}
