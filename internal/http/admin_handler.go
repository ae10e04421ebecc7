package http

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/catalog"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Inventory interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter, key domain.SortKey) ([]*domain.Product, error)
	CreateProductWithMedia(ctx context.Context, p *domain.Product, image catalog.Upload, video *catalog.Upload) error
	UpdateProductAvailability(ctx context.Context, id string, available bool) error
	DeleteProduct(ctx context.Context, id string) error
	InventoryStats(ctx context.Context) (domain.InventoryStats, error)
}

type AdminHandler struct {
	inventory     Inventory
	maxUploadSize int64
	timeout       time.Duration
	logger        *zap.Logger
}

func NewAdminHandler(inventory Inventory, maxUploadSize int64, timeout time.Duration, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		inventory:     inventory,
		maxUploadSize: maxUploadSize,
		timeout:       timeout,
		logger:        logger,
	}
}

type AvailabilityRequestDTO struct {
	IsAvailable bool `json:"is_available"`
}

// GET /api/v1/admin/products
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.inventory.ListProducts(ctx, domain.ProductFilter{}, domain.SortNewest)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// POST /api/v1/admin/products (multipart: fields plus "image" and optional "video")
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	p, err := productFromForm(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	imageFile, imageHeader, err := r.FormFile("image")
	if err != nil {
		handleError(w, h.logger, &apperrors.ValidationError{Fields: map[string]string{"image": "image is required"}})
		return
	}
	defer imageFile.Close()
	image := catalog.Upload{Filename: imageHeader.Filename, ContentType: imageHeader.Header.Get("Content-Type"), Body: imageFile}

	var video *catalog.Upload
	videoFile, videoHeader, err := r.FormFile("video")
	switch {
	case err == nil:
		defer videoFile.Close()
		video = &catalog.Upload{Filename: videoHeader.Filename, ContentType: videoContentType(videoHeader), Body: videoFile}
	case !errors.Is(err, http.ErrMissingFile):
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid video upload")
		return
	}

	if err := h.inventory.CreateProductWithMedia(ctx, p, image, video); err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// PATCH /api/v1/admin/products/{id}/availability
func (h *AdminHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AvailabilityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.inventory.UpdateProductAvailability(ctx, id, req.IsAvailable); err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "is_available": req.IsAvailable})
}

// DELETE /api/v1/admin/products/{id}
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.inventory.DeleteProduct(ctx, chi.URLParam(r, "id")); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.inventory.InventoryStats(ctx)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func productFromForm(r *http.Request) (*domain.Product, error) {
	fields := map[string]string{}

	price, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("jungli_price")))
	if err != nil {
		fields["jungli_price"] = "must be a number"
	}
	luxury := decimal.Zero
	if v := strings.TrimSpace(r.FormValue("luxury_price")); v != "" {
		if luxury, err = decimal.NewFromString(v); err != nil {
			fields["luxury_price"] = "must be a number"
		}
	}
	if len(fields) > 0 {
		return nil, &apperrors.ValidationError{Fields: fields}
	}

	var sizes []string
	for _, s := range strings.Split(r.FormValue("sizes"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			sizes = append(sizes, s)
		}
	}

	return &domain.Product{
		Name:        r.FormValue("name"),
		LuxuryPrice: luxury,
		Price:       price,
		Tag:         r.FormValue("tag"),
		Description: strings.TrimSpace(r.FormValue("description")),
		Sizes:       sizes,
	}, nil
}

func videoContentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "video/mp4"
}
