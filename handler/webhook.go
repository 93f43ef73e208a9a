package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"storefront-checkout/logger"
	"storefront-checkout/payment"

	"go.uber.org/zap"
)

// maxWebhookBody bounds the webhook payload read into memory. Checkout
// session events with long metadata and line items stay well under it.
const maxWebhookBody = 512 << 10

// Webhook handles POST /api/webhook
// Nothing in the body is acted on before the Stripe-Signature header checks
// out. Verified events are always acked with 200.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeWebhookErr(w, fmt.Errorf("read body: %w", err))
		return
	}

	ev, err := h.verifier.Verify(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if !errors.Is(err, payment.ErrAuth) {
			logger.Error(r.Context(), h.logger, "webhook verification failed", zap.Error(err))
		}
		writeWebhookErr(w, err)
		return
	}

	// the provider is acked whatever happens, so a dropped connection must
	// not abort the store transaction halfway
	outcome := h.svc.HandleEvent(context.WithoutCancel(r.Context()), ev)
	logger.Debug(r.Context(), h.logger, "webhook handled",
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type)),
		zap.String("outcome", string(outcome)),
	)

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST")
	w.Header().Set("Access-Control-Allow-Headers", "content-type, stripe-signature")
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func writeWebhookErr(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = fmt.Fprintf(w, "Webhook Error: %v", err)
}
