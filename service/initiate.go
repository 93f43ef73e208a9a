package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-checkout/logger"
	"storefront-checkout/metrics"
	models "storefront-checkout/model"
	"storefront-checkout/payment"
	"storefront-checkout/store"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultSessionTTL is how long a provider session stays open before the
// provider expires it and the reserved unit is released.
const DefaultSessionTTL = 2700 * time.Second

// ShippingConfig is attached to sessions that ask for shipping.
type ShippingConfig struct {
	AllowedCountries []string
	ShippingRate     string
}

type InitiateRequest struct {
	ProductID       string
	PriceRef        string
	IncludeShipping bool
	Origin          string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type Initiator struct {
	provider   payment.Provider
	store      store.Store
	metrics    *metrics.Metrics
	shipping   ShippingConfig
	sessionTTL time.Duration
	logger     *zap.Logger

	// Now is the clock used for session expiry.
	Now func() time.Time
}

func NewInitiator(p payment.Provider, s store.Store, m *metrics.Metrics, shipping ShippingConfig, sessionTTL time.Duration, l *zap.Logger) *Initiator {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if len(shipping.AllowedCountries) == 0 {
		shipping.AllowedCountries = []string{"US"}
	}
	return &Initiator{
		provider:   p,
		store:      s,
		metrics:    m,
		shipping:   shipping,
		sessionTTL: sessionTTL,
		logger:     l,
		Now:        time.Now,
	}
}

// CanShip reports whether a shipping rate is configured.
func (i *Initiator) CanShip() bool {
	return i.shipping.ShippingRate != ""
}

// Initiate creates a provider session for one unit of req.PriceRef and
// writes a pending order keyed by the session id.
func (i *Initiator) Initiate(ctx context.Context, req InitiateRequest) (CheckoutSession, error) {
	const op = "initiate"
	if req.IncludeShipping && !i.CanShip() {
		return CheckoutSession{}, validationError(op, errors.New("shipping is not available"))
	}

	params := i.sessionParams(req)

	start := time.Now()
	sess, err := i.provider.CreateSession(ctx, params)
	i.metrics.ProviderDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, payment.ErrNoRedirectURL) && sess.ID != "" {
			// the session exists and will expire; record it so the
			// expiration event can return the unit
			if werr := i.writePending(ctx, sess.ID, req.ProductID); werr != nil {
				i.logStranded(ctx, sess.ID, req.ProductID, werr)
				return CheckoutSession{}, storeError(op, werr)
			}
		}
		return CheckoutSession{}, providerError(op, err)
	}

	if err := i.writePending(ctx, sess.ID, req.ProductID); err != nil {
		i.logStranded(ctx, sess.ID, req.ProductID, err)
		return CheckoutSession{}, storeError(op, err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (i *Initiator) sessionParams(req InitiateRequest) payment.SessionParams {
	origin := strings.TrimRight(req.Origin, "/")
	params := payment.SessionParams{
		PriceRef:   req.PriceRef,
		Quantity:   1,
		SuccessURL: origin + "/shop?success=true",
		CancelURL:  origin + "/shop?canceled=true",
		ExpiresAt:  i.Now().Add(i.sessionTTL),
		Metadata:   map[string]string{"product_id": req.ProductID},
	}
	if req.IncludeShipping {
		params.Shipping = &payment.ShippingOptions{
			AllowedCountries: append([]string(nil), i.shipping.AllowedCountries...),
			ShippingRate:     i.shipping.ShippingRate,
		}
	}
	return params
}

func (i *Initiator) writePending(ctx context.Context, sessionID, productID string) error {
	err := i.store.CreateOrder(ctx, models.Order{SessionID: sessionID, ProductID: productID})
	if err != nil {
		return fmt.Errorf("write pending order %s: %w", sessionID, err)
	}
	return nil
}

// logStranded reports a reserved unit that no order points at. The session's
// expiration event will find nothing to release, so the unit has to be put
// back through the admin surface.
func (i *Initiator) logStranded(ctx context.Context, sessionID, productID string, err error) {
	logger.Error(ctx, i.logger, "reserved unit stranded, pending order not written",
		zap.String("session_id", sessionID),
		zap.String("product_id", productID),
		zap.Error(err),
	)
}
