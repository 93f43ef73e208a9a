package store

import (
	"context"
	"encoding/json"
	models "storefront-checkout/model"
)

// Store is the inventory and order ledger backing checkout.
// ReserveStock and ReleaseOrder must be atomic with respect to each other
// for the same product.
type Store interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (models.Product, error)
	UpsertProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id string) error

	// ReserveStock takes one unit of stock and returns the price reference.
	// ErrOutOfStock when nothing is left, ErrProductNotFound for unknown ids.
	ReserveStock(ctx context.Context, productID string) (string, error)

	CreateOrder(ctx context.Context, o models.Order) error
	GetOrder(ctx context.Context, sessionID string) (models.Order, error)
	MarkOrderPaid(ctx context.Context, sessionID string, customer, shipping json.RawMessage) error
	// SaveOrderDetails records customer and shipping details without
	// changing whether the order is paid.
	SaveOrderDetails(ctx context.Context, sessionID string, customer, shipping json.RawMessage) error
	// ReleaseOrder deletes a pending order and puts its unit back into stock.
	ReleaseOrder(ctx context.Context, sessionID string) (string, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
