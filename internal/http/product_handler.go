package http

import (
	"context"
	"net/http"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter, key domain.SortKey) ([]*domain.Product, error)
}

type ProductHandler struct {
	catalog ProductCatalog
	timeout time.Duration
	logger  *zap.Logger
}

func NewProductHandler(catalog ProductCatalog, timeout time.Duration, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
		logger:  logger,
	}
}

// GET /api/v1/products?s=&min_price=&max_price=&category=&size=&sort=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, err := parseProductFilter(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	filter.OnlyAvailable = true

	products, err := h.catalog.ListProducts(ctx, filter, domain.ParseSortKey(r.URL.Query().Get("sort")))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func parseProductFilter(r *http.Request) (domain.ProductFilter, error) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Search:   q.Get("s"),
		Category: q.Get("category"),
		Size:     q.Get("size"),
	}

	fields := map[string]string{}
	if v := q.Get("min_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			fields["min_price"] = "must be a number"
		} else {
			filter.MinPrice = &d
		}
	}
	if v := q.Get("max_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			fields["max_price"] = "must be a number"
		} else {
			filter.MaxPrice = &d
		}
	}
	if len(fields) > 0 {
		return filter, &apperrors.ValidationError{Fields: fields}
	}
	return filter, nil
}
