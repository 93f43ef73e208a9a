package service

import (
	"context"
	"errors"
	"storefront-checkout/dedup"
	"storefront-checkout/events"
	"storefront-checkout/logger"
	"storefront-checkout/metrics"
	"storefront-checkout/payment"
	"storefront-checkout/store"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Outcome describes what reconciling one event did. The webhook is acked
// whatever the outcome.
type Outcome string

const (
	OutcomeCommitted   Outcome = "committed"
	OutcomeCompensated Outcome = "compensated"
	// OutcomeAwaitingPayment records details of a completed session whose
	// payment settles later. The order stays pending.
	OutcomeAwaitingPayment Outcome = "awaiting_payment"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeFailed          Outcome = "failed"
)

type Reconciler struct {
	store     store.Store
	dedup     dedup.Deduper
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	Now func() time.Time
}

func NewReconciler(s store.Store, d dedup.Deduper, p events.Publisher, m *metrics.Metrics, l *zap.Logger) *Reconciler {
	if d == nil {
		d = dedup.Nop{}
	}
	if p == nil {
		p = events.NopPublisher{}
	}
	return &Reconciler{store: s, dedup: d, publisher: p, metrics: m, logger: l, Now: time.Now}
}

// Reconcile applies the terminal transition an authenticated event asks
// for. Completed and async-succeeded sessions commit the order; expired and
// async-failed sessions compensate it. Failures are logged, never returned.
func (r *Reconciler) Reconcile(ctx context.Context, ev payment.Event) Outcome {
	ctx, span := otel.Tracer("service").Start(ctx, "Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", string(ev.Type)),
		attribute.String("session.id", ev.SessionID),
	)

	outcome := r.reconcile(ctx, ev)
	if outcome == OutcomeFailed {
		span.SetStatus(codes.Error, "reconcile failed")
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	r.metrics.WebhookOutcomes.WithLabelValues(string(ev.Type), string(outcome)).Inc()
	return outcome
}

func (r *Reconciler) reconcile(ctx context.Context, ev payment.Event) Outcome {
	log := r.logger.With(
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type)),
		zap.String("session_id", ev.SessionID),
	)

	if !ev.Commits() && !ev.Compensates() && !ev.AwaitsPayment() {
		logger.Info(ctx, log, "unhandled event type")
		return OutcomeIgnored
	}

	claimed, err := r.dedup.Claim(ctx, ev.ID)
	if err != nil {
		// the store transactions still guard against double application
		logger.Warn(ctx, log, "event dedup unavailable", zap.Error(err))
		claimed = true
	}
	if !claimed {
		logger.Info(ctx, log, "event already processed, skipping")
		return OutcomeDuplicate
	}

	var (
		outcome Outcome
		publish events.OrderEvent
	)
	switch {
	case ev.Commits():
		outcome, publish, err = r.commit(ctx, ev)
	case ev.Compensates():
		outcome, publish, err = r.compensate(ctx, ev)
	default:
		outcome, err = r.awaitPayment(ctx, ev)
	}
	if err != nil {
		r.logFailure(ctx, log, err)
		if rerr := r.dedup.Release(context.WithoutCancel(ctx), ev.ID); rerr != nil {
			logger.Warn(ctx, log, "failed to release event claim", zap.Error(rerr))
		}
		return OutcomeFailed
	}

	if outcome == OutcomeAwaitingPayment {
		logger.Info(ctx, log, "session completed, payment pending")
		return outcome
	}

	logger.Info(ctx, log, "order reconciled", zap.String("outcome", string(outcome)), zap.String("product_id", publish.ProductID))

	if err := r.publisher.Publish(ctx, publish); err != nil {
		logger.Error(ctx, log, "failed to publish order event", zap.Error(err))
	}
	return outcome
}

func (r *Reconciler) commit(ctx context.Context, ev payment.Event) (Outcome, events.OrderEvent, error) {
	if err := r.store.MarkOrderPaid(ctx, ev.SessionID, ev.CustomerDetails, ev.ShippingDetails); err != nil {
		return OutcomeFailed, events.OrderEvent{}, err
	}
	return OutcomeCommitted, events.OrderEvent{
		Type:       events.OrderPaid,
		SessionID:  ev.SessionID,
		ProductID:  ev.Metadata["product_id"],
		EventID:    ev.ID,
		OccurredAt: r.Now().UTC(),
	}, nil
}

// awaitPayment keeps the order pending so a later async_payment_failed can
// still return the unit.
func (r *Reconciler) awaitPayment(ctx context.Context, ev payment.Event) (Outcome, error) {
	if err := r.store.SaveOrderDetails(ctx, ev.SessionID, ev.CustomerDetails, ev.ShippingDetails); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeAwaitingPayment, nil
}

func (r *Reconciler) compensate(ctx context.Context, ev payment.Event) (Outcome, events.OrderEvent, error) {
	productID, err := r.store.ReleaseOrder(ctx, ev.SessionID)
	if err != nil {
		return OutcomeFailed, events.OrderEvent{}, err
	}
	return OutcomeCompensated, events.OrderEvent{
		Type:       events.OrderReleased,
		SessionID:  ev.SessionID,
		ProductID:  productID,
		EventID:    ev.ID,
		OccurredAt: r.Now().UTC(),
	}, nil
}

func (r *Reconciler) logFailure(ctx context.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		logger.Error(ctx, log, "no order recorded for session", zap.Error(err))
	case errors.Is(err, store.ErrOrderPaid):
		logger.Warn(ctx, log, "order already paid, not releasing stock", zap.Error(err))
	default:
		logger.Error(ctx, log, "failed to reconcile order", zap.Error(err))
	}
}
