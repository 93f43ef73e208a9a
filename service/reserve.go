package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-checkout/metrics"
	"storefront-checkout/store"
	"time"
)

type ReservationStatus int

const (
	Reserved ReservationStatus = iota + 1
	OutOfStock
)

func (s ReservationStatus) String() string {
	switch s {
	case Reserved:
		return "reserved"
	case OutOfStock:
		return "out_of_stock"
	default:
		return "unknown"
	}
}

// Reservation is the result of taking one unit of stock. PriceRef is set
// only when Status is Reserved.
type Reservation struct {
	Status   ReservationStatus
	PriceRef string
}

type Reserver struct {
	store   store.Store
	metrics *metrics.Metrics
}

func NewReserver(s store.Store, m *metrics.Metrics) *Reserver {
	return &Reserver{store: s, metrics: m}
}

// Reserve decrements the product's stock by one in a single store
// transaction. Running out of stock is a status, not an error.
func (r *Reserver) Reserve(ctx context.Context, productID string) (Reservation, error) {
	const op = "reserve"
	if productID == "" {
		return Reservation{}, validationError(op, errors.New("product_id is required"))
	}

	start := time.Now()
	priceRef, err := r.store.ReserveStock(ctx, productID)
	r.metrics.ReserveDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return Reservation{Status: Reserved, PriceRef: priceRef}, nil
	case errors.Is(err, store.ErrOutOfStock):
		return Reservation{Status: OutOfStock}, nil
	case errors.Is(err, store.ErrProductNotFound):
		return Reservation{}, validationError(op, fmt.Errorf("product %q: %w", productID, err))
	default:
		return Reservation{}, storeError(op, err)
	}
}
