package catalog_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/JUNGLI-STORE/jungli-store/internal/repository/orders"
	"github.com/JUNGLI-STORE/jungli-store/internal/repository/products"
	"github.com/shopspring/decimal"
)

type MockOrders struct {
	mu        sync.Mutex
	orders    map[string]*domain.OrderRecord
	Created   int
	CreateErr error
	revenue   decimal.Decimal
}

func NewMockOrders() *MockOrders {
	return &MockOrders{orders: map[string]*domain.OrderRecord{}}
}

func (m *MockOrders) CreateOrder(_ context.Context, order *domain.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created++
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, o := range m.orders {
		if o.PaymentReference == order.PaymentReference {
			return domain.ErrDuplicatePayment
		}
	}
	if order.ID == "" {
		order.ID = "order-" + order.PaymentReference
	}
	m.orders[order.ID] = order
	m.revenue = m.revenue.Add(order.TotalAmount)
	return nil
}

func (m *MockOrders) GetOrder(_ context.Context, id string) (*domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrders) GetOrderByPayment(_ context.Context, paymentRef string) (*domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.PaymentReference == paymentRef {
			return o, nil
		}
	}
	return nil, orders.ErrOrderNotFound
}

func (m *MockOrders) ListOrders(_ context.Context, filter domain.OrderFilter) ([]*domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.OrderRecord
	for _, o := range m.orders {
		if filter.Email != "" && o.Email != filter.Email {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *MockOrders) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (m *MockOrders) Revenue(context.Context) (decimal.Decimal, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revenue, len(m.orders), nil
}

type MockProducts struct {
	mu        sync.Mutex
	products  []*domain.Product
	CreateErr error
}

func (m *MockProducts) ListProducts(_ context.Context, onlyAvailable bool) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		if onlyAvailable && !p.IsAvailable {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MockProducts) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, products.ErrProductNotFound
}

func (m *MockProducts) CreateProduct(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.products = append(m.products, p)
	return nil
}

func (m *MockProducts) SetAvailability(_ context.Context, id string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ID == id {
			p.IsAvailable = available
			return nil
		}
	}
	return products.ErrProductNotFound
}

func (m *MockProducts) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return products.ErrProductNotFound
}

func (m *MockProducts) CountAvailable(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.products {
		if p.IsAvailable {
			n++
		}
	}
	return n, nil
}

type MockMedia struct {
	mu       sync.Mutex
	files    map[string][]byte
	next     int
	VideoErr error
	Deleted  []string
}

func NewMockMedia() *MockMedia {
	return &MockMedia{files: map[string][]byte{}}
}

func (m *MockMedia) PutImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	return m.PutFile(ctx, filename, "image/jpeg", r)
}

func (m *MockMedia) PutFile(_ context.Context, _ string, contentType string, r io.Reader) (string, error) {
	if contentType != "image/jpeg" && m.VideoErr != nil {
		return "", m.VideoErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := "media" + string(rune('0'+m.next))
	m.files[id] = b
	return id, nil
}

func (m *MockMedia) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return errors.New("no such file")
	}
	delete(m.files, id)
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockMedia) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}
