package service

import (
	"context"
	"errors"
	"fmt"
	models "storefront-checkout/model"
	"storefront-checkout/store"
)

// Catalog is the admin surface over products. It is not used on the
// checkout path.
type Catalog struct {
	store store.Store
}

func NewCatalog(s store.Store) *Catalog {
	return &Catalog{store: s}
}

func (c *Catalog) ListProducts(ctx context.Context) ([]models.Product, error) {
	ps, err := c.store.ListProducts(ctx)
	if err != nil {
		return nil, storeError("list products", err)
	}
	return ps, nil
}

func (c *Catalog) UpsertProduct(ctx context.Context, p models.Product) error {
	const op = "upsert product"
	if p.ID == "" {
		return validationError(op, errors.New("id is required"))
	}
	if p.PriceRef == "" {
		return validationError(op, errors.New("price_ref is required"))
	}
	if p.Stock < 0 {
		return validationError(op, fmt.Errorf("stock must be >= 0, got %d", p.Stock))
	}
	if err := c.store.UpsertProduct(ctx, p); err != nil {
		if errors.Is(err, store.ErrInvalidProduct) {
			return validationError(op, err)
		}
		return storeError(op, err)
	}
	return nil
}

// DeleteProduct returns an error wrapping store.ErrProductNotFound for
// unknown ids.
func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	if err := c.store.DeleteProduct(ctx, id); err != nil {
		return storeError("delete product", err)
	}
	return nil
}
