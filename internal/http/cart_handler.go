package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/auth"
	"github.com/JUNGLI-STORE/jungli-store/internal/cart"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartSessions interface {
	Get(ctx context.Context, sessionID string) *cart.Store
	Peek(ctx context.Context, sessionID string) *cart.Store
	Save(ctx context.Context, sessionID string, store *cart.Store)
	Clear(ctx context.Context, sessionID string)
}

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type CartHandler struct {
	carts    CartSessions
	products ProductReader
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCartHandler(carts CartSessions, products ProductReader, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		products: products,
		timeout:  timeout,
		logger:   logger,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
}

type SetOpenRequestDTO struct {
	Open bool `json:"open"`
}

type CartResponseDTO struct {
	Lines []domain.CartLine `json:"lines"`
	Total decimal.Decimal   `json:"total"`
	Count int               `json:"count"`
	Open  bool              `json:"open"`
}

func cartResponse(store *cart.Store) CartResponseDTO {
	lines := store.Lines()
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return CartResponseDTO{
		Lines: lines,
		Total: store.TotalPrice(),
		Count: count,
		Open:  store.IsOpen(),
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store := h.carts.Peek(ctx, auth.SessionID(r.Context()))
	respondJSON(w, http.StatusOK, cartResponse(store))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Size = strings.TrimSpace(req.Size)
	if req.ProductID == "" || req.Size == "" {
		handleError(w, h.logger, &apperrors.ValidationError{
			Message: "Please select a size",
			Fields:  map[string]string{"size": "size is required"},
		})
		return
	}

	// prices always come from the catalog, never from the client
	product, err := h.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if !product.IsAvailable {
		handleError(w, h.logger, &apperrors.ValidationError{Message: "This product is sold out"})
		return
	}
	size, ok := matchSize(product.Sizes, req.Size)
	if !ok {
		handleError(w, h.logger, &apperrors.ValidationError{Fields: map[string]string{"size": "size not available"}})
		return
	}

	sid := auth.SessionID(r.Context())
	store := h.carts.Get(ctx, sid)
	err = store.AddLine(domain.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		ImageRef:  product.ImageURL,
		Size:      size,
		Quantity:  1,
	})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	h.carts.Save(ctx, sid, store)

	respondJSON(w, http.StatusOK, cartResponse(store))
}

// DELETE /api/v1/cart/items/{product_id}?size=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	size := r.URL.Query().Get("size")
	if productID == "" || size == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "product_id and size are required")
		return
	}

	sid := auth.SessionID(r.Context())
	store := h.carts.Get(ctx, sid)
	store.RemoveLine(productID, size)
	h.carts.Save(ctx, sid, store)

	respondJSON(w, http.StatusOK, cartResponse(store))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sid := auth.SessionID(r.Context())
	h.carts.Clear(ctx, sid)
	respondJSON(w, http.StatusOK, cartResponse(h.carts.Get(ctx, sid)))
}

// POST /api/v1/cart/open
func (h *CartHandler) SetOpen(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetOpenRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sid := auth.SessionID(r.Context())
	store := h.carts.Get(ctx, sid)
	store.SetOpen(req.Open)
	h.carts.Save(ctx, sid, store)

	respondJSON(w, http.StatusOK, cartResponse(store))
}

// matchSize returns the catalog spelling of size. Products without a size
// list accept any size.
func matchSize(sizes []string, size string) (string, bool) {
	if len(sizes) == 0 {
		return size, true
	}
	for _, s := range sizes {
		if strings.EqualFold(s, size) {
			return s, true
		}
	}
	return "", false
}
