package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"storefront-checkout/logger"
	models "storefront-checkout/model"
	"storefront-checkout/service"
	"storefront-checkout/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type upsertProductReq struct {
	PriceRef string `json:"price_ref" validate:"required,max=255"`
	Stock    *int   `json:"stock" validate:"required,gte=0"`
}

// ListProducts handles GET /admin/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context())
	if err != nil {
		logger.Error(r.Context(), h.logger, "list products failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// UpsertProduct handles PUT /admin/products/{id}
// body: { "price_ref": "price_...", "stock": 10 }
func (h *Handler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req upsertProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, map[string]string{"body": "invalid json"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeBadRequest(w, formatValidationError(err))
		return
	}

	p := models.Product{ID: id, PriceRef: req.PriceRef, Stock: *req.Stock}
	if err := h.svc.UpsertProduct(r.Context(), p); err != nil {
		if service.KindOf(err) == service.KindValidation {
			writeBadRequest(w, map[string]string{"product": unwrapMessage(err)})
			return
		}
		logger.Error(r.Context(), h.logger, "upsert product failed", zap.String("product_id", id), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /admin/products/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			writeErr(w, http.StatusNotFound, "product not found")
			return
		}
		logger.Error(r.Context(), h.logger, "delete product failed", zap.String("product_id", id), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
