package handler

import (
	"encoding/json"
	"net/http"
	"reflect"
	"storefront-checkout/logger"
	"storefront-checkout/payment"
	"storefront-checkout/service"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Handler is the HTTP layer that talks to service.ServiceInterface
type Handler struct {
	svc      service.ServiceInterface
	verifier payment.Verifier
	validate *validator.Validate
	logger   *zap.Logger

	publicBaseURL string
	adminToken    string
	metrics       http.Handler
}

type Options struct {
	// PublicBaseURL overrides the request host when building redirect urls.
	PublicBaseURL string
	// AdminToken protects /admin routes when set.
	AdminToken string
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, v payment.Verifier, logger *zap.Logger, opts Options) *Handler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		svc:           s,
		verifier:      v,
		validate:      validate,
		logger:        logger,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		adminToken:    opts.AdminToken,
		metrics:       opts.Metrics,
	}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(h.requestID)

	// Checkout
	r.HandleFunc("/api/checkout", h.Checkout).Methods("POST")
	r.HandleFunc("/api/webhook", h.Webhook).Methods("POST")

	// Admin
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(h.requireAdmin)
	admin.HandleFunc("/products", h.ListProducts).Methods("GET")
	admin.HandleFunc("/products/{id}", h.UpsertProduct).Methods("PUT")
	admin.HandleFunc("/products/{id}", h.DeleteProduct).Methods("DELETE")

	r.HandleFunc("/healthz", h.Health).Methods("GET")
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics).Methods("GET")
	}
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		logger.Error(r.Context(), h.logger, "health check failed", zap.Error(err))
		writeErr(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
