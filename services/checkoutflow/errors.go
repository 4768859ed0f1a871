package checkoutflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrCouponUnavailable  = errors.New("coupon could not be validated")
	ErrOrderCreation      = errors.New("order could not be created")
	ErrGatewayUnavailable = errors.New("payment system unavailable")
	ErrVerificationFailed = errors.New("payment failed")
	ErrStepInProgress     = errors.New("another step is in progress")
	ErrInvalidTransition  = errors.New("invalid step transition")
	ErrNoPendingPayment   = errors.New("no payment is awaiting a result")
	ErrAlreadyResolved    = errors.New("payment result already received")
)

// FieldErrors maps a form field to a message the client can show next to it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e[field]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e FieldErrors) copy() FieldErrors {
	result := FieldErrors{}
	for k, v := range e {
		result[k] = v
	}
	return result
}

// IsRetryable reports whether the client can simply try the same step again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOrderCreation) || errors.Is(err, ErrCouponUnavailable) || errors.Is(err, ErrStepInProgress)
}
