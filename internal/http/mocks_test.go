package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/auth"
	"github.com/JUNGLI-STORE/jungli-store/internal/cart"
	"github.com/JUNGLI-STORE/jungli-store/internal/catalog"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/JUNGLI-STORE/jungli-store/internal/media"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type memCache struct {
	mu     sync.Mutex
	states map[string]*cart.State
}

func newMemCache() *memCache {
	return &memCache{states: map[string]*cart.State{}}
}

func (c *memCache) Get(_ context.Context, sid string) (*cart.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[sid]
	if !ok {
		return nil, cart.ErrCacheMiss
	}
	return s, nil
}

func (c *memCache) Set(_ context.Context, sid string, state *cart.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[sid] = state
	return nil
}

func (c *memCache) Delete(_ context.Context, sid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, sid)
	return nil
}

// MockCatalog serves products and records orders in memory.
type MockCatalog struct {
	mu        sync.Mutex
	Products  []*domain.Product
	Orders    []*domain.OrderRecord
	CreateErr error
	Err       error
	Created   []*domain.Product
	Stats     domain.InventoryStats
}

func newMockCatalog() *MockCatalog {
	return &MockCatalog{Products: []*domain.Product{
		{ID: "P1", Name: "AIR JORDAN 1", Price: decimal.NewFromInt(3499), Sizes: []string{"UK 8", "UK 9"}, IsAvailable: true, ImageURL: "/p1.jpg"},
		{ID: "P2", Name: "YEEZY 350", Price: decimal.NewFromInt(2999), Sizes: []string{"UK 7"}, IsAvailable: false},
	}}
}

func (m *MockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.Products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, &apperrors.NotFoundError{Resource: "product", ID: id}
}

func (m *MockCatalog) ListProducts(_ context.Context, filter domain.ProductFilter, key domain.SortKey) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return catalog.Apply(m.Products, filter, key), nil
}

func (m *MockCatalog) CreateOrder(_ context.Context, order *domain.OrderRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	order.ID = "order-1"
	m.Orders = append(m.Orders, order)
	return order.ID, nil
}

func (m *MockCatalog) ListOrders(_ context.Context, filter domain.OrderFilter) ([]*domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.OrderRecord{}
	for _, o := range m.Orders {
		if filter.Email != "" && o.Email != filter.Email {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *MockCatalog) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.Orders {
		if o.ID == id {
			if !o.Status.CanTransitionTo(status) {
				return &apperrors.InvalidStateTransitionError{From: o.Status.String(), To: status.String()}
			}
			o.Status = status
			return nil
		}
	}
	return &apperrors.NotFoundError{Resource: "order", ID: id}
}

func (m *MockCatalog) CreateProductWithMedia(_ context.Context, p *domain.Product, image catalog.Upload, video *catalog.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := io.ReadAll(image.Body); err != nil {
		return err
	}
	p.ID = "new-product"
	p.ImageURL = catalog.MediaURLPrefix + image.Filename
	if video != nil {
		p.VideoURL = catalog.MediaURLPrefix + video.Filename
	}
	m.Created = append(m.Created, p)
	return nil
}

func (m *MockCatalog) UpdateProductAvailability(ctx context.Context, id string, available bool) error {
	p, err := m.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.IsAvailable = available
	return nil
}

func (m *MockCatalog) DeleteProduct(ctx context.Context, id string) error {
	if _, err := m.GetProduct(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.Products {
		if p.ID == id {
			m.Products = append(m.Products[:i], m.Products[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockCatalog) InventoryStats(context.Context) (domain.InventoryStats, error) {
	return m.Stats, m.Err
}

type MockMedia struct {
	files map[string]string
}

func (m *MockMedia) Open(_ context.Context, id string) (*media.Object, error) {
	body, ok := m.files[id]
	if !ok {
		return nil, media.ErrNotFound
	}
	return &media.Object{
		ReadCloser:  io.NopCloser(bytes.NewReader([]byte(body))),
		ContentType: "image/jpeg",
		Size:        int64(len(body)),
	}, nil
}

func withSession(r *http.Request, sid string) *http.Request {
	return r.WithContext(auth.WithSessionID(r.Context(), sid))
}

func withUser(r *http.Request, email string) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), domain.Identity{UserID: "u-" + email, Email: email}))
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

const testTimeout = 5 * time.Second

func contextWithRoute(r *http.Request, rctx *chi.Context) context.Context {
	return context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
}
