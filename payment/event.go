package payment

import "encoding/json"

type EventType string

const (
	EventSessionCompleted      EventType = "checkout.session.completed"
	EventAsyncPaymentSucceeded EventType = "checkout.session.async_payment_succeeded"
	EventSessionExpired        EventType = "checkout.session.expired"
	EventAsyncPaymentFailed    EventType = "checkout.session.async_payment_failed"
)

const checkoutSessionTypePrefix = "checkout.session."

// PaymentStatusUnpaid marks a completed session whose payment method
// settles later with an async_payment_succeeded or async_payment_failed.
const PaymentStatusUnpaid = "unpaid"

// Event is an authenticated provider event. Session fields are only set
// for checkout.session.* events.
type Event struct {
	ID              string
	Type            EventType
	SessionID       string
	PaymentStatus   string
	CustomerDetails json.RawMessage
	ShippingDetails json.RawMessage
	Metadata        map[string]string
}

// Commits reports whether the event completes payment for its session.
func (e Event) Commits() bool {
	switch e.Type {
	case EventAsyncPaymentSucceeded:
		return true
	case EventSessionCompleted:
		return e.PaymentStatus != PaymentStatusUnpaid
	}
	return false
}

// AwaitsPayment reports whether the customer finished the session but the
// payment has not settled yet.
func (e Event) AwaitsPayment() bool {
	return e.Type == EventSessionCompleted && e.PaymentStatus == PaymentStatusUnpaid
}

// Compensates reports whether the event abandons its session.
func (e Event) Compensates() bool {
	return e.Type == EventSessionExpired || e.Type == EventAsyncPaymentFailed
}
