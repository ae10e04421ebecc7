package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/JUNGLI-STORE/jungli-store/internal/repository/orders"
	"github.com/JUNGLI-STORE/jungli-store/internal/repository/products"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MediaURLPrefix is where stored media is served from.
const MediaURLPrefix = "/api/v1/media/"

type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.OrderRecord) error
	GetOrder(ctx context.Context, id string) (*domain.OrderRecord, error)
	GetOrderByPayment(ctx context.Context, paymentRef string) (*domain.OrderRecord, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.OrderRecord, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error
	Revenue(ctx context.Context) (decimal.Decimal, int, error)
}

type ProductStore interface {
	ListProducts(ctx context.Context, onlyAvailable bool) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	SetAvailability(ctx context.Context, id string, available bool) error
	DeleteProduct(ctx context.Context, id string) error
	CountAvailable(ctx context.Context) (int, error)
}

type MediaStore interface {
	PutImage(ctx context.Context, filename string, r io.Reader) (string, error)
	PutFile(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, id string) error
}

// Upload is a media file received from the admin console.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type Service struct {
	orders   OrderStore
	products ProductStore
	media    MediaStore
	logger   *zap.Logger
}

func NewService(orderStore OrderStore, productStore ProductStore, media MediaStore, logger *zap.Logger) *Service {
	return &Service{
		orders:   orderStore,
		products: productStore,
		media:    media,
		logger:   logger,
	}
}

// CreateOrder stores a paid order and returns its id. A second write for the
// same payment reference fails with domain.ErrDuplicatePayment and returns the
// id of the order already recorded for it.
func (s *Service) CreateOrder(ctx context.Context, order *domain.OrderRecord) (string, error) {
	if err := validateOrder(order); err != nil {
		return "", err
	}
	err := s.orders.CreateOrder(ctx, order)
	if errors.Is(err, domain.ErrDuplicatePayment) {
		existing, lookupErr := s.orders.GetOrderByPayment(ctx, order.PaymentReference)
		if lookupErr != nil {
			s.logger.Warn("duplicate payment lookup failed",
				zap.String("payment_id", order.PaymentReference), zap.Error(lookupErr))
			return "", err
		}
		return existing.ID, err
	}
	if err != nil {
		return "", err
	}
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("payment_id", order.PaymentReference),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order.ID, nil
}

func validateOrder(order *domain.OrderRecord) error {
	if order == nil {
		return &apperrors.ValidationError{Message: "order is required"}
	}
	fields := map[string]string{}
	if order.Status != domain.OrderStatusPaid {
		fields["status"] = "new orders must be paid"
	}
	if strings.TrimSpace(order.PaymentReference) == "" {
		fields["payment_id"] = "payment reference is required"
	}
	if len(order.LineItems) == 0 {
		fields["items"] = "order has no items"
	} else if !order.TotalAmount.Equal(domain.SumLines(order.LineItems)) || !order.TotalAmount.IsPositive() {
		fields["total_amount"] = "total does not match items"
	}
	if len(fields) > 0 {
		return &apperrors.ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.OrderRecord, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return nil, &apperrors.NotFoundError{Resource: "order", ID: id}
	}
	return order, err
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	err := s.orders.UpdateOrderStatus(ctx, id, status)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return &apperrors.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return err
	}
	s.logger.Info("order status updated", zap.String("order_id", id), zap.String("status", status.String()))
	return nil
}

func (s *Service) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.OrderRecord, error) {
	list, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.OrderRecord{}
	}
	return list, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if errors.Is(err, products.ErrProductNotFound) {
		return nil, &apperrors.NotFoundError{Resource: "product", ID: id}
	}
	return p, err
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter, key domain.SortKey) ([]*domain.Product, error) {
	all, err := s.products.ListProducts(ctx, filter.OnlyAvailable)
	if err != nil {
		return nil, err
	}
	return Apply(all, filter, key), nil
}

// CreateProduct normalizes and stores p. Name and tag are upper-cased the way
// the storefront renders them.
func (s *Service) CreateProduct(ctx context.Context, p *domain.Product) error {
	normalizeProduct(p)
	if err := validateProduct(p); err != nil {
		return err
	}
	if err := s.products.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.logger.Info("product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return nil
}

// CreateProductWithMedia uploads the image (and optional video) before storing
// the product. Uploaded media is removed again when the product write fails.
func (s *Service) CreateProductWithMedia(ctx context.Context, p *domain.Product, image Upload, video *Upload) error {
	normalizeProduct(p)
	if err := validateProduct(p); err != nil {
		return err
	}
	if image.Body == nil {
		return &apperrors.ValidationError{Fields: map[string]string{"image": "image is required"}}
	}

	imageID, err := s.media.PutImage(ctx, image.Filename, image.Body)
	if err != nil {
		return fmt.Errorf("upload image: %w", err)
	}
	uploaded := []string{imageID}
	p.ImageURL = MediaURLPrefix + imageID

	if video != nil && video.Body != nil {
		videoID, err := s.media.PutFile(ctx, video.Filename, video.ContentType, video.Body)
		if err != nil {
			s.cleanupMedia(uploaded)
			return fmt.Errorf("upload video: %w", err)
		}
		uploaded = append(uploaded, videoID)
		p.VideoURL = MediaURLPrefix + videoID
	}

	if err := s.products.CreateProduct(ctx, p); err != nil {
		s.cleanupMedia(uploaded)
		return err
	}
	s.logger.Info("product created", zap.String("product_id", p.ID), zap.Int("media", len(uploaded)))
	return nil
}

func (s *Service) UpdateProductAvailability(ctx context.Context, id string, available bool) error {
	err := s.products.SetAvailability(ctx, id, available)
	if errors.Is(err, products.ErrProductNotFound) {
		return &apperrors.NotFoundError{Resource: "product", ID: id}
	}
	return err
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			return &apperrors.NotFoundError{Resource: "product", ID: id}
		}
		return err
	}

	var ids []string
	for _, u := range []string{p.ImageURL, p.VideoURL} {
		if mediaID, ok := strings.CutPrefix(u, MediaURLPrefix); ok && mediaID != "" {
			ids = append(ids, mediaID)
		}
	}
	s.cleanupMedia(ids)
	return nil
}

func (s *Service) InventoryStats(ctx context.Context) (domain.InventoryStats, error) {
	revenue, count, err := s.orders.Revenue(ctx)
	if err != nil {
		return domain.InventoryStats{}, fmt.Errorf("revenue: %w", err)
	}
	active, err := s.products.CountAvailable(ctx)
	if err != nil {
		return domain.InventoryStats{}, fmt.Errorf("active products: %w", err)
	}
	return domain.InventoryStats{
		Revenue:        revenue,
		ActiveProducts: active,
		TotalOrders:    count,
	}, nil
}

func (s *Service) cleanupMedia(ids []string) {
	if s.media == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range ids {
		if err := s.media.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to delete media", zap.String("media_id", id), zap.Error(err))
		}
	}
}

func normalizeProduct(p *domain.Product) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Name = strings.ToUpper(strings.TrimSpace(p.Name))
	p.Tag = strings.ToUpper(strings.TrimSpace(p.Tag))
	if p.Tag == "" {
		p.Tag = domain.DefaultProductTag
	}
	p.IsAvailable = true
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
}

func validateProduct(p *domain.Product) error {
	fields := map[string]string{}
	if p.Name == "" {
		fields["name"] = "name is required"
	}
	if !p.Price.IsPositive() {
		fields["jungli_price"] = "price must be positive"
	}
	if p.LuxuryPrice.IsNegative() {
		fields["luxury_price"] = "price must not be negative"
	}
	if len(fields) > 0 {
		return &apperrors.ValidationError{Fields: fields}
	}
	return nil
}
