package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RazorpayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// RazorpayClient talks to the Razorpay orders API.
type RazorpayClient struct {
	cfg     RazorpayConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*domain.PaymentIntent]
	logger  *zap.Logger
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func NewRazorpayClient(cfg RazorpayConfig, logger *zap.Logger) *RazorpayClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	breaker := gobreaker.NewCircuitBreaker[*domain.PaymentIntent](gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &RazorpayClient{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
		logger:  logger,
	}
}

func (c *RazorpayClient) CheckoutKey() string {
	return c.cfg.KeyID
}

func (c *RazorpayClient) CreateIntent(ctx context.Context, amount decimal.Decimal) (*domain.PaymentIntent, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	req := createOrderRequest{
		Amount:   ToMinorUnits(amount),
		Currency: domain.CurrencyINR,
		Receipt:  newReceipt(),
	}

	intent, err := c.breaker.Execute(func() (*domain.PaymentIntent, error) {
		return c.createOrder(ctx, req)
	})
	if err != nil {
		return nil, &apperrors.GatewayError{Op: "create intent", Err: err}
	}

	c.logger.Info("payment intent created",
		zap.String("intent_id", intent.IntentID),
		zap.Int64("amount", intent.AmountMinorUnits),
		zap.String("receipt", intent.Receipt))
	return intent, nil
}

func (c *RazorpayClient) createOrder(ctx context.Context, body createOrderRequest) (*domain.PaymentIntent, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post order: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read order response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out createOrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	if out.ID == "" || out.Amount <= 0 {
		return nil, fmt.Errorf("malformed order response: missing id or amount")
	}
	if out.Currency == "" {
		out.Currency = body.Currency
	}

	return &domain.PaymentIntent{
		IntentID:         out.ID,
		AmountMinorUnits: out.Amount,
		Currency:         out.Currency,
		Receipt:          body.Receipt,
	}, nil
}

// VerifyResult checks the signature the hosted checkout returns with a
// successful payment.
func (c *RazorpayClient) VerifyResult(intentID, paymentRef, signature string) error {
	return verify(c.cfg.KeySecret, intentID, paymentRef, signature)
}
