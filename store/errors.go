package store

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("out of stock")
	ErrInvalidProduct  = errors.New("invalid product")

	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order already exists")
	// ErrOrderPaid is returned when releasing an order that was already committed.
	ErrOrderPaid = errors.New("order already paid")
)
