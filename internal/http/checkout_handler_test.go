package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JUNGLI-STORE/jungli-store/internal/auth"
	"github.com/JUNGLI-STORE/jungli-store/internal/cart"
	"github.com/JUNGLI-STORE/jungli-store/internal/checkout"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/JUNGLI-STORE/jungli-store/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type checkoutFixture struct {
	cart     *CartHandler
	checkout *CheckoutHandler
	sessions *cart.Sessions
	catalog  *MockCatalog
	sandbox  *payment.Sandbox
	service  *checkout.Service
}

func newCheckoutFixture(t *testing.T, outcome domain.GatewayOutcome) *checkoutFixture {
	t.Helper()
	logger := zap.NewNop()
	sessions := cart.NewSessions(newMemCache(), logger)
	cat := newMockCatalog()
	guard := auth.NewGuard(auth.NewAllowList(nil))
	sandbox := payment.NewSandbox("test-secret", payment.FixedOutcome(outcome))

	svc := checkout.NewService(sessions, guard, guard,
		checkout.NewPaymentHandler(sandbox, testTimeout),
		checkout.NewOrderHandler(cat, testTimeout),
		checkout.DefaultBranding(), logger)
	t.Cleanup(svc.Close)

	return &checkoutFixture{
		cart:     NewCartHandler(sessions, cat, testTimeout, logger),
		checkout: NewCheckoutHandler(svc, sandbox, testTimeout, logger),
		sessions: sessions,
		catalog:  cat,
		sandbox:  sandbox,
		service:  svc,
	}
}

func (f *checkoutFixture) do(t *testing.T, handler http.HandlerFunc, method, target string, body interface{}, signedIn bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, jsonBody(t, body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = withSession(req, "s1")
	if signedIn {
		req = withUser(req, "asha@example.com")
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

var validDetails = domain.ShippingDetails{
	FullName: "Asha Rao",
	Phone:    "9876543210",
	Address:  "12 MG Road",
	Pincode:  "560001",
}

func (f *checkoutFixture) readyToPay(t *testing.T) checkout.HostedCheckout {
	t.Helper()
	require.Equal(t, http.StatusOK, addItem(t, f.cart, "s1", AddItemRequestDTO{ProductID: "P1", Size: "UK 9"}).Code)
	require.Equal(t, http.StatusOK, addItem(t, f.cart, "s1", AddItemRequestDTO{ProductID: "P1", Size: "UK 9"}).Code)
	require.Equal(t, http.StatusOK, f.do(t, f.checkout.Start, http.MethodPost, "/api/v1/checkout/start", nil, true).Code)

	rec := f.do(t, f.checkout.Pay, http.MethodPost, "/api/v1/checkout/pay", validDetails, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var hosted checkout.HostedCheckout
	decodeBody(t, rec, &hosted)
	return hosted
}

func TestStart_WithoutIdentity(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	addItem(t, f.cart, "s1", AddItemRequestDTO{ProductID: "P1", Size: "UK 9"})

	rec := f.do(t, f.checkout.Start, http.MethodPost, "/api/v1/checkout/start", nil, false)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "auth_required", resp.Code)
	assert.Equal(t, auth.LoginPath, resp.Redirect)
	assert.Equal(t, domain.CheckoutStatusAwaitingAuth, f.service.For("s1").State())
}

func TestPay_ReturnsHostedCheckout(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)

	hosted := f.readyToPay(t)

	assert.Equal(t, "rzp_sandbox", hosted.Key)
	assert.EqualValues(t, 699800, hosted.AmountMinorUnits)
	assert.Equal(t, domain.CurrencyINR, hosted.Currency)
	assert.Equal(t, "JUNGLI STORE", hosted.Name)
	assert.Equal(t, "Asha Rao", hosted.Prefill.Name)
	assert.Equal(t, "asha@example.com", hosted.Prefill.Email)
	assert.NotEmpty(t, hosted.IntentID)
	assert.Equal(t, domain.CheckoutStatusAwaitingGatewayResult, f.service.For("s1").State())
}

func TestPay_InvalidDetails(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	addItem(t, f.cart, "s1", AddItemRequestDTO{ProductID: "P1", Size: "UK 9"})
	f.do(t, f.checkout.Start, http.MethodPost, "/api/v1/checkout/start", nil, true)

	rec := f.do(t, f.checkout.Pay, http.MethodPost, "/api/v1/checkout/pay", domain.ShippingDetails{FullName: "Asha"}, true)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "validation_failed", resp.Code)
	assert.Contains(t, resp.Fields, "phone")
	assert.Contains(t, resp.Fields, "pincode")
}

func TestPay_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	f.do(t, f.checkout.Start, http.MethodPost, "/api/v1/checkout/start", nil, true)

	rec := f.do(t, f.checkout.Pay, http.MethodPost, "/api/v1/checkout/pay", validDetails, true)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "empty_cart", resp.Code)
}

func TestSandboxCharge_PlacesOrderAndClearsCart(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	f.readyToPay(t)

	rec := f.do(t, f.checkout.SandboxCharge, http.MethodPost, "/api/v1/checkout/sandbox/charge", nil, true)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp OrderConfirmationDTO
	decodeBody(t, rec, &resp)
	assert.Equal(t, "order-1", resp.OrderID)
	assert.Equal(t, domain.OrderStatusPaid, resp.Status)
	assert.Equal(t, "6998", resp.Total.String())

	require.Len(t, f.catalog.Orders, 1)
	assert.Equal(t, resp.PaymentID, f.catalog.Orders[0].PaymentReference)
	assert.Zero(t, f.sessions.Get(t.Context(), "s1").Len())
	assert.Equal(t, domain.CheckoutStatusSuccess, f.service.For("s1").State())
}

func TestCallback_SignedSuccess(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	hosted := f.readyToPay(t)

	result, err := f.sandbox.Charge(hosted.IntentID)
	require.NoError(t, err)

	rec := f.do(t, f.checkout.Callback, http.MethodPost, "/api/v1/checkout/callback", PaymentCallbackDTO{
		OrderID:   hosted.IntentID,
		PaymentID: result.PaymentReference,
		Signature: result.Signature,
	}, true)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.catalog.Orders, 1)

	// replayed callback
	rec = f.do(t, f.checkout.Callback, http.MethodPost, "/api/v1/checkout/callback", PaymentCallbackDTO{
		OrderID:   hosted.IntentID,
		PaymentID: result.PaymentReference,
		Signature: result.Signature,
	}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, f.catalog.Orders, 1)
}

func TestCallback_BadSignature(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	hosted := f.readyToPay(t)

	rec := f.do(t, f.checkout.Callback, http.MethodPost, "/api/v1/checkout/callback", PaymentCallbackDTO{
		OrderID:   hosted.IntentID,
		PaymentID: "pay_forged",
		Signature: "deadbeef",
	}, true)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, f.catalog.Orders)
	assert.Equal(t, 1, f.sessions.Get(t.Context(), "s1").Len())
	assert.Equal(t, domain.CheckoutStatusAwaitingGatewayResult, f.service.For("s1").State())
}

func TestCallback_GatewayFailure(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	hosted := f.readyToPay(t)

	body := PaymentCallbackDTO{Error: &GatewayErrorDTO{Code: "BAD_REQUEST_ERROR", Description: "Payment declined by bank"}}
	body.Error.Metadata.OrderID = hosted.IntentID
	rec := f.do(t, f.checkout.Callback, http.MethodPost, "/api/v1/checkout/callback", body, true)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, f.catalog.Orders)
	assert.Equal(t, 1, f.sessions.Get(t.Context(), "s1").Len())

	rec = f.do(t, f.checkout.GetState, http.MethodGet, "/api/v1/checkout", nil, true)
	var view CheckoutResponseDTO
	decodeBody(t, rec, &view)
	assert.Equal(t, domain.CheckoutStatusFailed, view.State)
	assert.Contains(t, view.Error, "Payment declined by bank")
	assert.Equal(t, "Asha Rao", view.Details.FullName)
}

func TestCancel_ReturnsToDetails(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	hosted := f.readyToPay(t)

	rec := f.do(t, f.checkout.Cancel, http.MethodPost, "/api/v1/checkout/cancel", CancelRequestDTO{OrderID: hosted.IntentID}, true)

	require.Equal(t, http.StatusOK, rec.Code)
	var view CheckoutResponseDTO
	decodeBody(t, rec, &view)
	assert.Equal(t, domain.CheckoutStatusCollectingDetails, view.State)
	assert.Nil(t, view.Intent)
	assert.Equal(t, 1, f.sessions.Get(t.Context(), "s1").Len())
}

func TestSandboxCharge_Declined(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeFailed)
	f.readyToPay(t)

	rec := f.do(t, f.checkout.SandboxCharge, http.MethodPost, "/api/v1/checkout/sandbox/charge", nil, true)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, domain.CheckoutStatusFailed, f.service.For("s1").State())
}

func TestSandboxCharge_NothingPending(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	rec := f.do(t, f.checkout.SandboxCharge, http.MethodPost, "/api/v1/checkout/sandbox/charge", nil, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSandboxCharge_Disabled(t *testing.T) {
	h := NewCheckoutHandler(nil, nil, testTimeout, zap.NewNop())
	rec := httptest.NewRecorder()
	h.SandboxCharge(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sandbox/charge", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallback_OrderWriteFails(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	hosted := f.readyToPay(t)
	f.catalog.CreateErr = errors.New("connection refused")

	result, err := f.sandbox.Charge(hosted.IntentID)
	require.NoError(t, err)
	rec := f.do(t, f.checkout.Callback, http.MethodPost, "/api/v1/checkout/callback", PaymentCallbackDTO{
		OrderID:   hosted.IntentID,
		PaymentID: result.PaymentReference,
		Signature: result.Signature,
	}, true)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "order_not_saved", resp.Code)
	assert.Equal(t, result.PaymentReference, resp.PaymentID)
	assert.Contains(t, resp.Error, result.PaymentReference)
}

func TestReset(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)
	f.do(t, f.checkout.Start, http.MethodPost, "/api/v1/checkout/start", nil, true)

	rec := f.do(t, f.checkout.Reset, http.MethodPost, "/api/v1/checkout/reset", nil, true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.CheckoutStatusIdle, f.service.For("s1").State())
}

func TestGetState_ReadOnlyLeavesNoSession(t *testing.T) {
	f := newCheckoutFixture(t, domain.OutcomeSucceeded)

	rec := f.do(t, f.checkout.GetState, http.MethodGet, "/api/v1/checkout", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp CheckoutResponseDTO
	decodeBody(t, rec, &resp)
	assert.Equal(t, domain.CheckoutStatusIdle, resp.State)
	assert.Zero(t, f.service.Len())

	rec = f.do(t, f.checkout.SandboxCharge, http.MethodPost, "/api/v1/checkout/sandbox/charge", nil, false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, f.service.Len())
}
