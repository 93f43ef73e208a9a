package service

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is malformed caller input.
	KindValidation
	// KindStore is a transaction or connectivity failure in the store.
	KindStore
	// KindProvider is a payment provider failure, including a session without redirect url.
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStore:
		return "store"
	case KindProvider:
		return "provider"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}
func storeError(op string, err error) error    { return &Error{Kind: KindStore, Op: op, Err: err} }
func providerError(op string, err error) error { return &Error{Kind: KindProvider, Op: op, Err: err} }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
