// Package payment talks to the hosted payment provider: it creates checkout
// sessions and authenticates the provider's webhook events.
package payment

import (
	"context"
	"time"
)

// ShippingOptions asks the provider to collect a shipping address.
type ShippingOptions struct {
	AllowedCountries []string
	ShippingRate     string
}

// SessionParams describes a single-item checkout session.
type SessionParams struct {
	PriceRef   string
	Quantity   int64
	SuccessURL string
	CancelURL  string
	ExpiresAt  time.Time
	// Shipping is nil when no shipping address should be collected.
	Shipping *ShippingOptions
	Metadata map[string]string
}

// Session is the provider's checkout session. URL is where the customer is
// redirected to pay.
type Session struct {
	ID  string
	URL string
}

type Provider interface {
	CreateSession(ctx context.Context, params SessionParams) (Session, error)
}

// Verifier authenticates a raw webhook body against its signature header.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (Event, error)
}
