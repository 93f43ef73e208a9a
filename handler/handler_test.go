package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"storefront-checkout/logger"
	"storefront-checkout/metrics"
	models "storefront-checkout/model"
	"storefront-checkout/payment"
	"storefront-checkout/service"
	"storefront-checkout/store"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const testSecret = "whsec_handler_test"

// ---- fakeService implementing service.ServiceInterface ----
type fakeService struct {
	StartCheckoutFn func(ctx context.Context, req service.CheckoutRequest) (service.CheckoutResult, error)
	HandleEventFn   func(ctx context.Context, ev payment.Event) service.Outcome
	UpsertFn        func(ctx context.Context, p models.Product) error
	DeleteFn        func(ctx context.Context, id string) error
}

func (f *fakeService) StartCheckout(ctx context.Context, req service.CheckoutRequest) (service.CheckoutResult, error) {
	return f.StartCheckoutFn(ctx, req)
}
func (f *fakeService) HandleEvent(ctx context.Context, ev payment.Event) service.Outcome {
	return f.HandleEventFn(ctx, ev)
}
func (f *fakeService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return []models.Product{{ID: "tee", PriceRef: "price_tee", Stock: 3}}, nil
}
func (f *fakeService) UpsertProduct(ctx context.Context, p models.Product) error {
	return f.UpsertFn(ctx, p)
}
func (f *fakeService) DeleteProduct(ctx context.Context, id string) error { return f.DeleteFn(ctx, id) }
func (f *fakeService) Ping(ctx context.Context) error                     { return nil }

func newRouter(svc service.ServiceInterface, opts Options) *mux.Router {
	h := NewHandler(svc, payment.NewStripeVerifier(testSecret, 0), zap.NewNop(), opts)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Host = "shop.test"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func signedHeader(body string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(body),
		Secret:  testSecret,
	}).Header
}

// ---- checkout ----

func TestCheckout_ReturnsURL(t *testing.T) {
	var (
		got   service.CheckoutRequest
		gotID string
	)
	r := newRouter(&fakeService{StartCheckoutFn: func(ctx context.Context, req service.CheckoutRequest) (service.CheckoutResult, error) {
		got = req
		gotID = logger.RequestID(ctx)
		return service.CheckoutResult{URL: "https://pay.test/cs_1", SessionID: "cs_1"}, nil
	}}, Options{})

	rec := do(r, "POST", "/api/checkout", `{"product_id":"tee","include_shipping":true}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://pay.test/cs_1", decode(t, rec)["checkout_url"])
	assert.Equal(t, "tee", got.ProductID)
	assert.True(t, got.IncludeShipping)
	assert.Equal(t, "http://shop.test", got.Origin)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), gotID)
}

func TestCheckout_PublicBaseURLOverridesHost(t *testing.T) {
	var got service.CheckoutRequest
	r := newRouter(&fakeService{StartCheckoutFn: func(ctx context.Context, req service.CheckoutRequest) (service.CheckoutResult, error) {
		got = req
		return service.CheckoutResult{URL: "u"}, nil
	}}, Options{PublicBaseURL: "https://store.example.com/"})

	do(r, "POST", "/api/checkout", `{"product_id":"tee","include_shipping":false}`, nil)
	assert.Equal(t, "https://store.example.com", got.Origin)
}

func TestCheckout_OutOfStockIs200(t *testing.T) {
	r := newRouter(&fakeService{StartCheckoutFn: func(ctx context.Context, req service.CheckoutRequest) (service.CheckoutResult, error) {
		return service.CheckoutResult{OutOfStock: true}, nil
	}}, Options{})

	rec := do(r, "POST", "/api/checkout", `{"product_id":"tee","include_shipping":false}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "out of stock", decode(t, rec)["error"])
}

func TestCheckout_BadRequest(t *testing.T) {
	called := false
	r := newRouter(&fakeService{StartCheckoutFn: func(ctx context.Context, req service.CheckoutRequest) (service.CheckoutResult, error) {
		called = true
		return service.CheckoutResult{}, nil
	}}, Options{})

	for _, body := range []string{
		`not json`,
		`{}`,
		`{"product_id":"","include_shipping":false}`,
		`{"product_id":"tee"}`,
		`{"product_id":"tee","include_shipping":null}`,
		`{"product_id":"tee","include_shipping":"yes"}`,
	} {
		rec := do(r, "POST", "/api/checkout", body, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "bad request", decode(t, rec)["error"])
	}
	assert.False(t, called)

	rec := do(r, "POST", "/api/checkout", `{}`, nil)
	details := decode(t, rec)["details"].(map[string]interface{})
	assert.Equal(t, "product_id is required", details["product_id"])

	rec = do(r, "POST", "/api/checkout", `{"product_id":"tee","include_shipping":null}`, nil)
	details = decode(t, rec)["details"].(map[string]interface{})
	assert.Equal(t, "include_shipping is required", details["include_shipping"])
}

func TestCheckout_IncludeShippingFalseIsAccepted(t *testing.T) {
	var got service.CheckoutRequest
	r := newRouter(&fakeService{StartCheckoutFn: func(ctx context.Context, req service.CheckoutRequest) (service.CheckoutResult, error) {
		got = req
		return service.CheckoutResult{URL: "u"}, nil
	}}, Options{})

	rec := do(r, "POST", "/api/checkout", `{"product_id":"tee","include_shipping":false}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tee", got.ProductID)
	assert.False(t, got.IncludeShipping)
}

func TestCheckout_ErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{&service.Error{Kind: service.KindValidation, Op: "reserve", Err: store.ErrProductNotFound}, http.StatusBadRequest, "bad request"},
		{&service.Error{Kind: service.KindStore, Op: "reserve", Err: errors.New("db down")}, http.StatusInternalServerError, "internal"},
		{&service.Error{Kind: service.KindProvider, Op: "initiate", Err: payment.ErrNoRedirectURL}, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		r := newRouter(&fakeService{StartCheckoutFn: func(ctx context.Context, req service.CheckoutRequest) (service.CheckoutResult, error) {
			return service.CheckoutResult{}, tc.err
		}}, Options{})

		rec := do(r, "POST", "/api/checkout", `{"product_id":"tee","include_shipping":false}`, nil)
		assert.Equal(t, tc.code, rec.Code)
		assert.Equal(t, tc.msg, decode(t, rec)["error"])
	}
}

// ---- webhook ----

const expiredBody = `{"id":"evt_1","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_1","object":"checkout.session","payment_status":"unpaid"}}}`

func TestWebhook_InvalidSignatureRejected(t *testing.T) {
	called := false
	r := newRouter(&fakeService{HandleEventFn: func(ctx context.Context, ev payment.Event) service.Outcome {
		called = true
		return service.OutcomeCompensated
	}}, Options{})

	for _, header := range []string{"", "t=1,v1=deadbeef", signedHeader(`{"id":"other"}`)} {
		rec := do(r, "POST", "/api/webhook", expiredBody, map[string]string{"Stripe-Signature": header})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Body.String(), "Webhook Error: "), rec.Body.String())
	}
	assert.False(t, called)
}

func TestWebhook_AcksWhateverTheOutcome(t *testing.T) {
	for _, outcome := range []service.Outcome{service.OutcomeCompensated, service.OutcomeFailed, service.OutcomeIgnored} {
		var got payment.Event
		r := newRouter(&fakeService{HandleEventFn: func(ctx context.Context, ev payment.Event) service.Outcome {
			got = ev
			return outcome
		}}, Options{})

		rec := do(r, "POST", "/api/webhook", expiredBody, map[string]string{"Stripe-Signature": signedHeader(expiredBody)})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decode(t, rec)["received"])
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "content-type, stripe-signature", rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "cs_1", got.SessionID)
		assert.Equal(t, payment.EventSessionExpired, got.Type)
	}
}

func TestWebhook_LargeSignedEventAccepted(t *testing.T) {
	var got payment.Event
	r := newRouter(&fakeService{HandleEventFn: func(ctx context.Context, ev payment.Event) service.Outcome {
		got = ev
		return service.OutcomeCompensated
	}}, Options{})

	note := strings.Repeat("n", 200<<10)
	body := `{"id":"evt_big","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_big","object":"checkout.session","metadata":{"note":"` + note + `"}}}}`

	rec := do(r, "POST", "/api/webhook", body, map[string]string{"Stripe-Signature": signedHeader(body)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cs_big", got.SessionID)
}

func TestWebhook_RequestIDReachesService(t *testing.T) {
	var id string
	r := newRouter(&fakeService{HandleEventFn: func(ctx context.Context, ev payment.Event) service.Outcome {
		id = logger.RequestID(ctx)
		return service.OutcomeIgnored
	}}, Options{})

	const reqID = "6f1c2b8e-3a4d-4e5f-9a0b-1c2d3e4f5a6b"
	rec := do(r, "POST", "/api/webhook", expiredBody, map[string]string{
		"Stripe-Signature": signedHeader(expiredBody),
		"X-Request-ID":     reqID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reqID, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, reqID, id)
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	r := newRouter(&fakeService{}, Options{})
	big := strings.Repeat("x", maxWebhookBody+1)

	rec := do(r, "POST", "/api/webhook", big, map[string]string{"Stripe-Signature": signedHeader(big)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- admin ----

func TestAdmin_RequiresToken(t *testing.T) {
	r := newRouter(&fakeService{}, Options{AdminToken: "s3cret"})

	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "/admin/products", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "/admin/products", "", map[string]string{"Authorization": "Bearer nope"}).Code)

	rec := do(r, "GET", "/admin/products", "", map[string]string{"Authorization": "Bearer s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price_ref":"price_tee"`)
}

func TestAdmin_Upsert(t *testing.T) {
	var got models.Product
	r := newRouter(&fakeService{UpsertFn: func(ctx context.Context, p models.Product) error {
		got = p
		return nil
	}}, Options{})

	rec := do(r, "PUT", "/admin/products/tee", `{"price_ref":"price_tee","stock":0}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Product{ID: "tee", PriceRef: "price_tee", Stock: 0}, got)

	rec = do(r, "PUT", "/admin/products/tee", `{"price_ref":"price_tee","stock":-1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, "PUT", "/admin/products/tee", `{"price_ref":"price_tee"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Delete(t *testing.T) {
	r := newRouter(&fakeService{DeleteFn: func(ctx context.Context, id string) error {
		if id == "tee" {
			return nil
		}
		return &service.Error{Kind: service.KindStore, Op: "delete product", Err: store.ErrProductNotFound}
	}}, Options{})

	assert.Equal(t, http.StatusNoContent, do(r, "DELETE", "/admin/products/tee", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, "DELETE", "/admin/products/ghost", "", nil).Code)
}

// ---- end to end over the memory store ----

func TestEndToEnd_InvalidSignatureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	require.NoError(t, ms.UpsertProduct(ctx, models.Product{ID: "tee", PriceRef: "price_tee", Stock: 5}))

	m := metrics.New(prometheus.NewRegistry())
	provider := payment.Provider(providerStub{})
	in := service.NewInitiator(provider, ms, m, service.ShippingConfig{ShippingRate: "shr_1"}, 45*time.Minute, zap.NewNop())
	rec := service.NewReconciler(ms, nil, nil, m, zap.NewNop())
	svc := service.NewService(ms, in, rec, m, zap.NewNop())
	r := newRouter(svc, Options{Metrics: m.Handler()})

	resp := do(r, "POST", "/api/checkout", `{"product_id":"tee","include_shipping":false}`, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	body := `{"id":"evt_9","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_stub","object":"checkout.session"}}}`
	bad := do(r, "POST", "/api/webhook", body, map[string]string{"Stripe-Signature": "t=1,v1=00"})
	require.Equal(t, http.StatusBadRequest, bad.Code)

	p, _ := ms.GetProduct(ctx, "tee")
	assert.Equal(t, 4, p.Stock)
	_, err := ms.GetOrder(ctx, "cs_stub")
	require.NoError(t, err)

	good := do(r, "POST", "/api/webhook", body, map[string]string{"Stripe-Signature": signedHeader(body)})
	require.Equal(t, http.StatusOK, good.Code)
	p, _ = ms.GetProduct(ctx, "tee")
	assert.Equal(t, 5, p.Stock)

	metricsResp := do(r, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metricsResp.Code)
	assert.True(t, bytes.Contains(metricsResp.Body.Bytes(), []byte(`outcome="compensated"`)))

	health := do(r, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, health.Code)
}

type providerStub struct{}

func (providerStub) CreateSession(ctx context.Context, p payment.SessionParams) (payment.Session, error) {
	return payment.Session{ID: "cs_stub", URL: "https://pay.test/cs_stub"}, nil
}
