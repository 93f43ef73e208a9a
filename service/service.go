package service

import (
	"context"
	"errors"
	"storefront-checkout/logger"
	"storefront-checkout/metrics"
	models "storefront-checkout/model"
	"storefront-checkout/payment"
	"storefront-checkout/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// CheckoutRequest is one checkout attempt. Origin is the scheme and host the
// provider redirects back to.
type CheckoutRequest struct {
	ProductID       string
	IncludeShipping bool
	Origin          string
}

// CheckoutResult carries either a redirect url or OutOfStock.
type CheckoutResult struct {
	URL        string
	SessionID  string
	OutOfStock bool
}

type Service struct {
	store      store.Store
	reserver   *Reserver
	initiator  *Initiator
	reconciler *Reconciler
	catalog    *Catalog
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewService(s store.Store, in *Initiator, rec *Reconciler, m *metrics.Metrics, l *zap.Logger) *Service {
	return &Service{
		store:      s,
		reserver:   NewReserver(s, m),
		initiator:  in,
		reconciler: rec,
		catalog:    NewCatalog(s),
		metrics:    m,
		logger:     l,
	}
}

// StartCheckout reserves one unit and opens a provider session for it. A
// failure after the reservation leaves the unit taken until the provider
// expires the session.
func (s *Service) StartCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "StartCheckout")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.Bool("checkout.include_shipping", req.IncludeShipping),
	)

	res, err := s.startCheckout(ctx, req)
	s.metrics.CheckoutOutcomes.WithLabelValues(checkoutOutcome(res, err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields := []zap.Field{zap.String("product_id", req.ProductID), zap.Error(err)}
		if KindOf(err) == KindValidation {
			logger.Warn(ctx, s.logger, "checkout rejected", fields...)
		} else {
			logger.Error(ctx, s.logger, "checkout failed", fields...)
		}
	}
	return res, err
}

func (s *Service) startCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	const op = "start checkout"
	if req.Origin == "" {
		return CheckoutResult{}, validationError(op, errors.New("origin is required"))
	}
	// refuse before touching stock so a bad request never strands a unit
	if req.IncludeShipping && !s.initiator.CanShip() {
		return CheckoutResult{}, validationError(op, errors.New("shipping is not available"))
	}

	rsv, err := s.reserver.Reserve(ctx, req.ProductID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if rsv.Status == OutOfStock {
		logger.Info(ctx, s.logger, "product out of stock", zap.String("product_id", req.ProductID))
		return CheckoutResult{OutOfStock: true}, nil
	}

	sess, err := s.initiator.Initiate(ctx, InitiateRequest{
		ProductID:       req.ProductID,
		PriceRef:        rsv.PriceRef,
		IncludeShipping: req.IncludeShipping,
		Origin:          req.Origin,
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	logger.Info(ctx, s.logger, "checkout session created",
		zap.String("product_id", req.ProductID),
		zap.String("session_id", sess.ID),
	)
	return CheckoutResult{URL: sess.URL, SessionID: sess.ID}, nil
}

func checkoutOutcome(res CheckoutResult, err error) string {
	switch {
	case err != nil:
		return KindOf(err).String() + "_error"
	case res.OutOfStock:
		return "out_of_stock"
	default:
		return "reserved"
	}
}

func (s *Service) HandleEvent(ctx context.Context, ev payment.Event) Outcome {
	return s.reconciler.Reconcile(ctx, ev)
}

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.catalog.ListProducts(ctx)
}

func (s *Service) UpsertProduct(ctx context.Context, p models.Product) error {
	return s.catalog.UpsertProduct(ctx, p)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.catalog.DeleteProduct(ctx, id)
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}
