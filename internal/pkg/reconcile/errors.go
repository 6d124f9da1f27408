package reconcile

import (
	"errors"
	"fmt"

	"github.com/ledgersync/ledgersync/internal/pkg/plans"
)

// VerificationError rejects an untrusted inbound payload. The message is
// safe to return to the caller.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return "webhook verification failed: " + e.Reason
}

// Business-rule failures. These are acknowledged to the provider so it stops
// retrying; operators see them in the response errors and the audit trail.
var (
	ErrUnresolvedIdentity  = errors.New("customer email could not be resolved")
	ErrAlreadySubscribed   = errors.New("account already has an active subscription")
	ErrMissingSubscription = errors.New("invoice has no associated subscription")
)

// PayloadError reports a payload that decoded as JSON but does not match
// the shape its event kind promises. The event is permanently
// unprocessable, so it is acknowledged rather than retried.
type PayloadError struct {
	Kind Kind
	Err  error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Kind, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// handlerPanicError wraps a recovered handler panic. Treated like a
// business failure: reported, acknowledged, mutation rolled back.
type handlerPanicError struct {
	value interface{}
}

func (e *handlerPanicError) Error() string {
	return fmt.Sprintf("unexpected handler failure: %v", e.value)
}

// errConcurrentlyProcessed signals that another worker committed the same
// event id while this transaction was in flight. The loser rolls back and
// reports a duplicate, which is a success.
var errConcurrentlyProcessed = errors.New("event was processed concurrently")

// isBusinessError separates recoverable business-rule failures from infra
// faults. Business failures are acknowledged; everything else withholds
// acknowledgement so the provider retries.
func isBusinessError(err error) bool {
	if errors.Is(err, ErrUnresolvedIdentity) ||
		errors.Is(err, ErrAlreadySubscribed) ||
		errors.Is(err, ErrMissingSubscription) {
		return true
	}
	var unknownPrice *plans.UnknownPriceError
	if errors.As(err, &unknownPrice) {
		return true
	}
	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) {
		return true
	}
	var panicErr *handlerPanicError
	return errors.As(err, &panicErr)
}
