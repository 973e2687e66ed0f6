package verification

import (
	"errors"
	"fmt"

	"listings_backend/pkg/gateway"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrNotFoundOrUnauthorized = errors.New("listing not found or not owned by caller")
	ErrPersistence            = errors.New("persistence failure")

	ErrGatewayUnavailable     = gateway.ErrGatewayUnavailable
	ErrGatewayResponseInvalid = gateway.ErrGatewayResponseInvalid
)

// PaymentNotConfirmedError is returned when the gateway does not report the
// payment as settled.
type PaymentNotConfirmedError struct {
	RawStatus string
}

func (e *PaymentNotConfirmedError) Error() string {
	return fmt.Sprintf("payment not confirmed (status %q)", e.RawStatus)
}

type InsufficientAmountError struct {
	Expected int64
	Received int64
}

func (e *InsufficientAmountError) Error() string {
	return fmt.Sprintf("insufficient amount: expected %d, received %d", e.Expected, e.Received)
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Kind names the error class for logs and metrics. nil is "ok".
func Kind(err error) string {
	var notConfirmed *PaymentNotConfirmedError
	var insufficient *InsufficientAmountError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotFoundOrUnauthorized):
		return "not_found"
	case errors.As(err, &notConfirmed):
		return "payment_not_confirmed"
	case errors.As(err, &insufficient):
		return "insufficient_amount"
	case errors.Is(err, ErrGatewayUnavailable):
		return "gateway_unavailable"
	case errors.Is(err, ErrGatewayResponseInvalid):
		return "gateway_response_invalid"
	default:
		return "persistence"
	}
}
