package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"storefront-checkout/service"
)

type checkoutReq struct {
	ProductID       string `json:"product_id" validate:"required,max=128"`
	IncludeShipping *bool  `json:"include_shipping" validate:"required"`
}

// Checkout handles POST /api/checkout
// body: { "product_id": "...", "include_shipping": true }
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, map[string]string{"body": "invalid json"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeBadRequest(w, formatValidationError(err))
		return
	}

	res, err := h.svc.StartCheckout(r.Context(), service.CheckoutRequest{
		ProductID:       req.ProductID,
		IncludeShipping: *req.IncludeShipping,
		Origin:          h.origin(r),
	})
	if err != nil {
		if service.KindOf(err) == service.KindValidation {
			writeBadRequest(w, map[string]string{"request": unwrapMessage(err)})
			return
		}
		writeErr(w, http.StatusInternalServerError, "internal")
		return
	}
	if res.OutOfStock {
		writeErr(w, http.StatusOK, "out of stock")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": res.URL})
}

func writeBadRequest(w http.ResponseWriter, details map[string]string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "bad request", "details": details})
}

// origin is the scheme and host the provider redirects back to.
func (h *Handler) origin(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func unwrapMessage(err error) string {
	var se *service.Error
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}
