package payment

import "errors"

var (
	// ErrAuth marks a webhook that failed signature verification or could
	// not be decoded. Such events must never be acted upon.
	ErrAuth = errors.New("webhook authentication failed")

	ErrNoRedirectURL = errors.New("provider returned no checkout url")
)
