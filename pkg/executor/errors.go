package executor

import "errors"

var (
	// ErrQuoteUnavailable is a network or service failure fetching a quote.
	// Retryable with backoff.
	ErrQuoteUnavailable = errors.New("executor quote unavailable")

	// ErrQuoteMalformed is a quote response that does not parse to the
	// expected tagged format.
	ErrQuoteMalformed = errors.New("executor quote malformed")

	// ErrInvalidPayeeFormat is a payee field that fails validation for the
	// paying chain family. The quote must be discarded and a new one
	// fetched; paying an unvalidated payee has drained funds in practice.
	ErrInvalidPayeeFormat = errors.New("quote payee has invalid format for chain family")

	// ErrQuoteExpired marks rejections caused by a stale quote. Fetch a
	// fresh quote and resubmit.
	ErrQuoteExpired = errors.New("executor quote expired")
)
