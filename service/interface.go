package service

import (
	"context"
	models "storefront-checkout/model"
	"storefront-checkout/payment"
)

type ServiceInterface interface {
	StartCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error)
	HandleEvent(ctx context.Context, ev payment.Event) Outcome

	ListProducts(ctx context.Context) ([]models.Product, error)
	UpsertProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id string) error

	Ping(ctx context.Context) error
}

var _ ServiceInterface = (*Service)(nil)
