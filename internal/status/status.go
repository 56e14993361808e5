package status

import (
	"errors"
	"fmt"
)

var (
	// ErrTransactionNotFound is returned when a payment callback references a
	// transaction id with no stored pending transaction (expired, already
	// completed, or tampered callback parameters).
	ErrTransactionNotFound = errors.New("transaction: pending transaction not found")

	// ErrDuplicateInitiate is returned when an initiation is attempted while
	// another transaction for the same account is still awaiting payment.
	ErrDuplicateInitiate = errors.New("transaction: another transaction is pending for this account")

	// ErrInvalidTransition is returned when a transaction is asked to move
	// backwards or skip a state.
	ErrInvalidTransition = errors.New("transaction: invalid state transition")

	// ErrProviderUnavailable is returned when the circuit breaker is open and
	// the call was not attempted.
	ErrProviderUnavailable = errors.New("provider: temporarily unavailable")
)

// AuthError reports a failure to obtain or refresh a provider access token.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: token request failed: status=%d body=%s", e.StatusCode, e.Body)
}

// VendError reports a rejected validate or execute call. The raw status and
// body are kept for operator diagnosis and are not parsed further.
type VendError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *VendError) Error() string {
	return fmt.Sprintf("vend: %s failed: status=%d body=%s", e.Op, e.StatusCode, e.Body)
}

// PaymentError reports a gateway create/execute failure. Message is surfaced
// to the user verbatim.
type PaymentError struct {
	Op      string
	Message string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment: %s failed: %s", e.Op, e.Message)
}
