package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, body string, secret string) string {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(body),
		Secret:  secret,
	})
	return sp.Header
}

const completedBody = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "payment_status": "paid",
      "customer_details": {"email": "jane@example.com", "name": "Jane"},
      "shipping_details": null,
      "metadata": {"product_id": "tee"}
    }
  }
}`

func TestStripeVerifier_ValidSignatureDecodesSession(t *testing.T) {
	v := NewStripeVerifier(testSecret, 0)

	ev, err := v.Verify([]byte(completedBody), signed(t, completedBody, testSecret))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventSessionCompleted, ev.Type)
	assert.Equal(t, "cs_test_1", ev.SessionID)
	assert.Equal(t, "paid", ev.PaymentStatus)
	assert.JSONEq(t, `{"email": "jane@example.com", "name": "Jane"}`, string(ev.CustomerDetails))
	assert.Nil(t, ev.ShippingDetails)
	assert.Equal(t, "tee", ev.Metadata["product_id"])
	assert.True(t, ev.Commits())
	assert.False(t, ev.Compensates())
}

func TestEvent_UnpaidCompletionAwaitsPayment(t *testing.T) {
	ev := Event{Type: EventSessionCompleted, PaymentStatus: "unpaid"}
	assert.False(t, ev.Commits())
	assert.True(t, ev.AwaitsPayment())

	ev.PaymentStatus = "no_payment_required"
	assert.True(t, ev.Commits())
	assert.False(t, ev.AwaitsPayment())

	async := Event{Type: EventAsyncPaymentSucceeded, PaymentStatus: "paid"}
	assert.True(t, async.Commits())
	assert.False(t, async.AwaitsPayment())
}

func TestStripeVerifier_RejectsWrongSecret(t *testing.T) {
	v := NewStripeVerifier(testSecret, 0)

	_, err := v.Verify([]byte(completedBody), signed(t, completedBody, "whsec_other"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth))
}

func TestStripeVerifier_RejectsTamperedBody(t *testing.T) {
	v := NewStripeVerifier(testSecret, 0)
	header := signed(t, completedBody, testSecret)

	tampered := []byte(completedBody + " ")
	_, err := v.Verify(tampered, header)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestStripeVerifier_MissingHeader(t *testing.T) {
	v := NewStripeVerifier(testSecret, 0)

	_, err := v.Verify([]byte(completedBody), "")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestStripeVerifier_SessionEventWithoutObject(t *testing.T) {
	v := NewStripeVerifier(testSecret, 0)
	body := `{"id":"evt_2","object":"event","type":"checkout.session.expired","data":{"object":{"object":"checkout.session"}}}`

	_, err := v.Verify([]byte(body), signed(t, body, testSecret))
	assert.ErrorIs(t, err, ErrAuth)
}

func TestStripeVerifier_OtherEventTypesPassThrough(t *testing.T) {
	v := NewStripeVerifier(testSecret, 0)
	body := `{"id":"evt_3","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge"}}}`

	ev, err := v.Verify([]byte(body), signed(t, body, testSecret))
	require.NoError(t, err)
	assert.Equal(t, EventType("charge.refunded"), ev.Type)
	assert.Empty(t, ev.SessionID)
	assert.False(t, ev.Commits())
	assert.False(t, ev.Compensates())
}

func TestCheckoutSessionParams_WithShipping(t *testing.T) {
	expires := time.Unix(1_700_002_700, 0)
	sp := checkoutSessionParams(SessionParams{
		PriceRef:   "price_123",
		Quantity:   1,
		SuccessURL: "http://shop.test/shop?success=true",
		CancelURL:  "http://shop.test/shop?canceled=true",
		ExpiresAt:  expires,
		Shipping:   &ShippingOptions{AllowedCountries: []string{"US"}, ShippingRate: "shr_123"},
		Metadata:   map[string]string{"product_id": "tee"},
	})

	require.Len(t, sp.LineItems, 1)
	assert.Equal(t, "price_123", *sp.LineItems[0].Price)
	assert.Equal(t, int64(1), *sp.LineItems[0].Quantity)
	assert.Equal(t, "payment", *sp.Mode)
	assert.Equal(t, expires.Unix(), *sp.ExpiresAt)
	require.NotNil(t, sp.ShippingAddressCollection)
	require.Len(t, sp.ShippingAddressCollection.AllowedCountries, 1)
	assert.Equal(t, "US", *sp.ShippingAddressCollection.AllowedCountries[0])
	require.Len(t, sp.ShippingOptions, 1)
	assert.Equal(t, "shr_123", *sp.ShippingOptions[0].ShippingRate)
	assert.Equal(t, "tee", sp.Metadata["product_id"])
}

func TestCheckoutSessionParams_WithoutShipping(t *testing.T) {
	sp := checkoutSessionParams(SessionParams{PriceRef: "price_123", ExpiresAt: time.Now()})

	assert.Nil(t, sp.ShippingAddressCollection)
	assert.Empty(t, sp.ShippingOptions)
	assert.Equal(t, int64(1), *sp.LineItems[0].Quantity)
}
