package checkoutflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

func TestCouponValidator(t *testing.T) {
	c := context.TODO()

	t.Run("Valid percentage coupon lowers the payable amount", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		api := NewMockPaymentsAPI(ctrl)
		form := controllerAt(validApplication(), StepCoupon)
		sut := NewCouponValidator(api, form, mylog.New("test"))

		// given
		api.EXPECT().ValidateCoupon(gomock.Any(), checkoutapi.ValidateCouponRequest{Code: "SAVE10", ServiceCode: "ARCH-REVIEW"}).
			Return(checkoutapi.CouponValidationResult{Valid: true, DiscountPercentage: 10}, nil)

		// when
		result, err := sut.Validate(c, " save10")

		// then
		assert.NoError(t, err)
		assert.True(t, result.Valid)
		data, applied := form.pricing()
		assert.True(t, applied)
		assert.Equal(t, "SAVE10", data.CouponCode)
		assert.Equal(t, int64(500000), data.DiscountAmount)
		assert.Equal(t, int64(4500000), data.FinalAmount)
		assert.Equal(t, int64(4500000), data.PayableAmount())
	})

	t.Run("Repeated validation of an accepted coupon uses one network call", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		api := NewMockPaymentsAPI(ctrl)
		form := controllerAt(validApplication(), StepCoupon)
		sut := NewCouponValidator(api, form, mylog.New("test"))

		// given
		api.EXPECT().ValidateCoupon(gomock.Any(), gomock.Any()).
			Return(checkoutapi.CouponValidationResult{Valid: true, DiscountAmount: 1000000}, nil).Times(1)

		// when
		_, err1 := sut.Validate(c, "FLAT10K")
		result, err2 := sut.Validate(c, "FLAT10K")

		// then
		assert.NoError(t, err1)
		assert.NoError(t, err2)
		assert.True(t, result.Valid)
		assert.Equal(t, int64(4000000), form.FormData().FinalAmount)
	})

	t.Run("Rejected coupon clears a previous discount", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		api := NewMockPaymentsAPI(ctrl)
		form := controllerAt(validApplication(), StepCoupon)
		sut := NewCouponValidator(api, form, mylog.New("test"))

		// given
		gomock.InOrder(
			api.EXPECT().ValidateCoupon(gomock.Any(), gomock.Any()).
				Return(checkoutapi.CouponValidationResult{Valid: true, DiscountPercentage: 10}, nil),
			api.EXPECT().ValidateCoupon(gomock.Any(), checkoutapi.ValidateCouponRequest{Code: "EXPIRED", ServiceCode: "ARCH-REVIEW"}).
				Return(checkoutapi.CouponValidationResult{Valid: false, Message: "Coupon has expired"}, nil),
		)
		_, err := sut.Validate(c, "SAVE10")
		assert.NoError(t, err)

		// when
		result, err := sut.Validate(c, "EXPIRED")

		// then
		assert.NoError(t, err)
		assert.False(t, result.Valid)
		data, applied := form.pricing()
		assert.False(t, applied)
		assert.Empty(t, data.CouponCode)
		assert.Equal(t, int64(0), data.DiscountAmount)
		assert.Equal(t, int64(5000000), data.PayableAmount())
		assert.Equal(t, "Coupon has expired", form.Errors()["couponCode"])
	})

	t.Run("Rejected coupons are asked again", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		api := NewMockPaymentsAPI(ctrl)
		form := controllerAt(validApplication(), StepCoupon)
		sut := NewCouponValidator(api, form, mylog.New("test"))

		// given
		api.EXPECT().ValidateCoupon(gomock.Any(), gomock.Any()).
			Return(checkoutapi.CouponValidationResult{Valid: false}, nil).Times(2)

		// when
		_, _ = sut.Validate(c, "UNKNOWN")
		result, err := sut.Validate(c, "UNKNOWN")

		// then
		assert.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, "Invalid coupon code", form.Errors()["couponCode"])
	})

	t.Run("Unreachable backend clears the discount", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		api := NewMockPaymentsAPI(ctrl)
		form := controllerAt(validApplication(), StepCoupon)
		sut := NewCouponValidator(api, form, mylog.New("test"))
		form.applyCoupon("SAVE10", 500000, 4500000)

		// given
		api.EXPECT().ValidateCoupon(gomock.Any(), gomock.Any()).
			Return(checkoutapi.CouponValidationResult{}, fmt.Errorf("connection refused"))

		// when
		_, err := sut.Validate(c, "SAVE20")

		// then
		assert.ErrorIs(t, err, ErrCouponUnavailable)
		assert.True(t, IsRetryable(err))
		data, applied := form.pricing()
		assert.False(t, applied)
		assert.Equal(t, int64(5000000), data.PayableAmount())
		assert.Equal(t, couponUnavailableMessage, form.Errors()["couponCode"])
	})

	t.Run("Blank coupon removes the coupon without a network call", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		api := NewMockPaymentsAPI(ctrl)
		form := controllerAt(validApplication(), StepCoupon)
		sut := NewCouponValidator(api, form, mylog.New("test"))
		form.applyCoupon("SAVE10", 500000, 4500000)

		// when
		result, err := sut.Validate(c, "  ")

		// then
		assert.NoError(t, err)
		assert.False(t, result.Valid)
		data, applied := form.pricing()
		assert.False(t, applied)
		assert.Empty(t, data.CouponCode)
		assert.Empty(t, form.Errors())
	})

	t.Run("Another service invalidates the cached coupon", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		api := NewMockPaymentsAPI(ctrl)
		form := controllerAt(validApplication(), StepCoupon)
		sut := NewCouponValidator(api, form, mylog.New("test"))

		// given
		api.EXPECT().ValidateCoupon(gomock.Any(), checkoutapi.ValidateCouponRequest{Code: "SAVE10", ServiceCode: "ARCH-REVIEW"}).
			Return(checkoutapi.CouponValidationResult{Valid: true, DiscountPercentage: 10}, nil)
		api.EXPECT().ValidateCoupon(gomock.Any(), checkoutapi.ValidateCouponRequest{Code: "SAVE10", ServiceCode: "DUE-DILIGENCE"}).
			Return(checkoutapi.CouponValidationResult{Valid: false, Message: "Not applicable"}, nil)
		_, _ = sut.Validate(c, "SAVE10")

		// when
		form.UpdateFormData(checkoutapi.ApplicationFormData{ServiceCode: "DUE-DILIGENCE"})
		result, err := sut.Validate(c, "SAVE10")

		// then
		assert.NoError(t, err)
		assert.False(t, result.Valid)
	})
}
