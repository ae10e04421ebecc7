package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/auth"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultOrderLimit = 100

type OrderBook interface {
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.OrderRecord, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error
}

type IdentitySource interface {
	CurrentIdentity(ctx context.Context) (domain.Identity, bool)
}

type OrdersHandler struct {
	orders   OrderBook
	identity IdentitySource
	timeout  time.Duration
	logger   *zap.Logger
}

func NewOrdersHandler(orders OrderBook, identity IdentitySource, timeout time.Duration, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:   orders,
		identity: identity,
		timeout:  timeout,
		logger:   logger,
	}
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// GET /api/v1/me/orders
func (h *OrdersHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	identity, ok := h.identity.CurrentIdentity(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "auth_required", Redirect: auth.LoginPath})
		return
	}

	list, err := h.orders.ListOrders(ctx, domain.OrderFilter{Email: identity.Email, Limit: defaultOrderLimit})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GET /api/v1/admin/orders?q=&limit=
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := defaultOrderLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.orders.ListOrders(ctx, domain.OrderFilter{Query: r.URL.Query().Get("q"), Limit: limit})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// PATCH /api/v1/admin/orders/{id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	status, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_status", "status must be paid, shipped or delivered")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.orders.UpdateOrderStatus(ctx, id, status); err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": status.String()})
}
