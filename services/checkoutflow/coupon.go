package checkoutflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

const couponUnavailableMessage = "Coupon could not be checked right now, you can continue without it"

type couponKey struct {
	code        string
	serviceCode string
}

// CouponValidator looks up a coupon and writes the resulting price back into the form.
type CouponValidator struct {
	api    PaymentsAPI
	form   *Controller
	logger mylog.Logger

	mu        sync.Mutex
	lastKey   *couponKey
	lastValid checkoutapi.CouponValidationResult
}

func NewCouponValidator(api PaymentsAPI, form *Controller, logger mylog.Logger) *CouponValidator {
	return &CouponValidator{
		api:    api,
		form:   form,
		logger: logger,
	}
}

// Validate checks code against the selected service. A blank code means no coupon.
// Consecutive calls for the same accepted pair are answered without a network call.
func (v *CouponValidator) Validate(c context.Context, code string) (checkoutapi.CouponValidationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	code = normalizeCouponCode(code)
	key := couponKey{code: code, serviceCode: v.form.FormData().ServiceCode}

	if code == "" {
		v.lastKey = nil
		v.form.rejectCoupon("")
		return checkoutapi.CouponValidationResult{Valid: false}, nil
	}

	if v.lastKey != nil && *v.lastKey == key {
		v.apply(code, v.lastValid)
		return v.lastValid, nil
	}

	result, err := v.api.ValidateCoupon(c, checkoutapi.ValidateCouponRequest{
		Code:        key.code,
		ServiceCode: key.serviceCode,
	})
	if err != nil {
		v.lastKey = nil
		v.form.rejectCoupon(couponUnavailableMessage)
		v.logger.Log(c, key.code, mylog.SeverityWarn, "Error validating coupon %s for service %s: %s", key.code, key.serviceCode, err)
		return checkoutapi.CouponValidationResult{}, fmt.Errorf("%w: %s", ErrCouponUnavailable, err)
	}

	v.apply(code, result)

	if result.Valid {
		v.lastKey = &key
		v.lastValid = result
	} else {
		v.lastKey = nil
	}

	v.logger.Log(c, key.code, mylog.SeverityInfo, "Coupon %s for service %s: valid=%v", key.code, key.serviceCode, result.Valid)

	return result, nil
}

func (v *CouponValidator) apply(code string, result checkoutapi.CouponValidationResult) {
	if !result.Valid {
		message := result.Message
		if message == "" {
			message = "Invalid coupon code"
		}
		v.form.rejectCoupon(message)
		return
	}

	amount := v.form.FormData().Amount
	discount := result.DiscountOn(amount)
	v.form.applyCoupon(code, discount, amount-discount)
}

func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
