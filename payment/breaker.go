package payment

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerProvider fails fast while the provider keeps erroring, instead of
// holding every checkout request on a dead upstream.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerProvider(next Provider, logger *zap.Logger) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        "PaymentProvider",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// a session without url is a provider answer, not an outage
			return err == nil || errors.Is(err, ErrNoRedirectURL)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &BreakerProvider{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerProvider) CreateSession(ctx context.Context, params SessionParams) (Session, error) {
	return executeWithBreaker(b.cb, func() (Session, error) {
		return b.next.CreateSession(ctx, params)
	})
}

func executeWithBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if v, ok := res.(T); ok {
			return v, err
		}
		return *new(T), err
	}
	return res.(T), nil
}
