package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeProvider creates Stripe Checkout sessions.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider builds a provider for secretKey. backends may be nil to
// use the default Stripe API endpoints.
func NewStripeProvider(secretKey string, backends *stripe.Backends) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeProvider{api: api}
}

func (p *StripeProvider) CreateSession(ctx context.Context, params SessionParams) (Session, error) {
	sp := checkoutSessionParams(params)
	sp.Context = ctx

	s, err := p.api.CheckoutSessions.New(sp)
	if err != nil {
		return Session{}, fmt.Errorf("create stripe checkout session: %w", err)
	}
	if s.URL == "" {
		return Session{ID: s.ID}, ErrNoRedirectURL
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

func checkoutSessionParams(params SessionParams) *stripe.CheckoutSessionParams {
	qty := params.Quantity
	if qty <= 0 {
		qty = 1
	}
	sp := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(params.PriceRef), Quantity: stripe.Int64(qty)},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		ExpiresAt:  stripe.Int64(params.ExpiresAt.Unix()),
	}
	if params.Shipping != nil {
		sp.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(params.Shipping.AllowedCountries),
		}
		sp.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{
			{ShippingRate: stripe.String(params.Shipping.ShippingRate)},
		}
	}
	for k, v := range params.Metadata {
		sp.AddMetadata(k, v)
	}
	return sp
}

// StripeVerifier checks the Stripe-Signature header of webhook deliveries.
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeVerifier(secret string, tolerance time.Duration) *StripeVerifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeVerifier{secret: secret, tolerance: tolerance}
}

func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (Event, error) {
	if signatureHeader == "" {
		return Event{}, fmt.Errorf("%w: missing signature header", ErrAuth)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return decodeEvent(ev)
}

type sessionObject struct {
	ID              string            `json:"id"`
	PaymentStatus   string            `json:"payment_status"`
	CustomerDetails json.RawMessage   `json:"customer_details"`
	ShippingDetails json.RawMessage   `json:"shipping_details"`
	Metadata        map[string]string `json:"metadata"`
}

func decodeEvent(ev stripe.Event) (Event, error) {
	out := Event{ID: ev.ID, Type: EventType(ev.Type)}
	if !strings.HasPrefix(string(ev.Type), checkoutSessionTypePrefix) {
		return out, nil
	}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return Event{}, fmt.Errorf("%w: event %s has no data object", ErrAuth, ev.ID)
	}

	var obj sessionObject
	if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
		return Event{}, fmt.Errorf("%w: decode session: %v", ErrAuth, err)
	}
	if obj.ID == "" {
		return Event{}, fmt.Errorf("%w: event %s has no session id", ErrAuth, ev.ID)
	}

	out.SessionID = obj.ID
	out.PaymentStatus = obj.PaymentStatus
	out.CustomerDetails = nonNull(obj.CustomerDetails)
	out.ShippingDetails = nonNull(obj.ShippingDetails)
	out.Metadata = obj.Metadata
	return out, nil
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}
