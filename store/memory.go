package store

import (
	"context"
	"encoding/json"
	"sort"
	models "storefront-checkout/model"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. A single mutex serialises every
// mutation, which gives the same atomicity as the Postgres transactions.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]*models.Product
	orders   map[string]*models.Order
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
		now:      time.Now,
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return models.Product{}, ErrProductNotFound
	}
	return *p, nil
}

func (s *MemoryStore) UpsertProduct(ctx context.Context, p models.Product) error {
	if p.ID == "" || p.Stock < 0 {
		return ErrInvalidProduct
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) ReserveStock(ctx context.Context, productID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return "", ErrProductNotFound
	}
	if p.Stock <= 0 {
		return "", ErrOutOfStock
	}
	p.Stock--
	return p.PriceRef, nil
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.SessionID]; ok {
		return ErrOrderExists
	}
	now := s.now()
	s.orders[o.SessionID] = &models.Order{
		SessionID: o.SessionID,
		ProductID: o.ProductID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, sessionID string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[sessionID]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	out := *o
	out.CustomerDetails = cloneJSON(o.CustomerDetails)
	out.ShippingDetails = cloneJSON(o.ShippingDetails)
	return out, nil
}

func (s *MemoryStore) MarkOrderPaid(ctx context.Context, sessionID string, customer, shipping json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[sessionID]
	if !ok {
		return ErrOrderNotFound
	}
	o.CustomerDetails = cloneJSON(customer)
	o.ShippingDetails = cloneJSON(shipping)
	o.Paid = true
	o.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) SaveOrderDetails(ctx context.Context, sessionID string, customer, shipping json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[sessionID]
	if !ok {
		return ErrOrderNotFound
	}
	o.CustomerDetails = cloneJSON(customer)
	o.ShippingDetails = cloneJSON(shipping)
	o.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) ReleaseOrder(ctx context.Context, sessionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[sessionID]
	if !ok {
		return "", ErrOrderNotFound
	}
	if o.Paid {
		return "", ErrOrderPaid
	}
	p, ok := s.products[o.ProductID]
	if !ok {
		return "", ErrProductNotFound
	}
	p.Stock++
	delete(s.orders, sessionID)
	return o.ProductID, nil
}

// cloneJSON keeps the store from sharing buffers with callers.
func cloneJSON(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
