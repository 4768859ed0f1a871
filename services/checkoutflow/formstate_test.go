package checkoutflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

func TestController(t *testing.T) {

	t.Run("Walk through all input steps", func(t *testing.T) {
		// given
		form := NewController(validApplication())
		assert.Equal(t, StepContact, form.Step())

		// when
		s1, err1 := form.NextStep()
		s2, err2 := form.NextStep()
		s3, err3 := form.NextStep()

		// then
		assert.NoError(t, err1)
		assert.NoError(t, err2)
		assert.NoError(t, err3)
		assert.Equal(t, []Step{StepCompany, StepCoupon, StepPayment}, []Step{s1, s2, s3})
		assert.Empty(t, form.Errors())
	})

	t.Run("Missing contact details block the first step", func(t *testing.T) {
		// given
		form := NewController(checkoutapi.ApplicationFormData{Email: "not-an-email", FirstName: "Asha"})

		// when
		step, err := form.NextStep()

		// then
		assert.Error(t, err)
		assert.Equal(t, StepContact, step)
		errs := form.Errors()
		assert.Equal(t, "Email is invalid", errs["email"])
		assert.Equal(t, "Last name is required", errs["lastName"])
		assert.Equal(t, "Phone is required", errs["phone"])
		assert.NotContains(t, errs, "firstName")

		var fieldErrors FieldErrors
		assert.ErrorAs(t, err, &fieldErrors)
	})

	t.Run("Invalid website blocks company step", func(t *testing.T) {
		// given
		data := validApplication()
		data.Website = "acme dot com"
		form := controllerAt(data, StepCompany)

		// when
		step, err := form.NextStep()

		// then
		assert.Error(t, err)
		assert.Equal(t, StepCompany, step)
		assert.Equal(t, "Website is invalid", form.Errors()["website"])
	})

	t.Run("Fixing the data clears the errors", func(t *testing.T) {
		// given
		form := NewController(checkoutapi.ApplicationFormData{})
		_, err := form.NextStep()
		assert.Error(t, err)

		// when
		form.UpdateFormData(validApplication())
		step, err := form.NextStep()

		// then
		assert.NoError(t, err)
		assert.Equal(t, StepCompany, step)
		assert.Empty(t, form.Errors())
	})

	t.Run("Coupon step does not require a coupon", func(t *testing.T) {
		// given
		form := controllerAt(validApplication(), StepCoupon)

		// when
		step, err := form.NextStep()

		// then
		assert.NoError(t, err)
		assert.Equal(t, StepPayment, step)
	})

	t.Run("Payment step cannot be skipped", func(t *testing.T) {
		// given
		form := controllerAt(validApplication(), StepPayment)

		// when
		step, err := form.NextStep()

		// then
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StepPayment, step)
	})

	t.Run("Previous step keeps data and stops at first step", func(t *testing.T) {
		// given
		form := controllerAt(validApplication(), StepCoupon)
		before := form.FormData()

		// when
		s1, _ := form.PrevStep()
		atCompany := form.FormData()
		s2, _ := form.PrevStep()
		atContact := form.FormData()
		s3, err := form.PrevStep()

		// then
		assert.NoError(t, err)
		assert.Equal(t, []Step{StepCompany, StepContact, StepContact}, []Step{s1, s2, s3})
		assert.Equal(t, validApplication().Email, before.Email)
		assert.Equal(t, before, atCompany)
		assert.Equal(t, before, atContact)
		assert.Equal(t, before, form.FormData())
	})

	t.Run("Changing the price drops an applied coupon", func(t *testing.T) {
		// given
		form := controllerAt(validApplication(), StepCoupon)
		form.applyCoupon("SAVE10", 500000, 4500000)

		// when
		form.UpdateFormData(checkoutapi.ApplicationFormData{Amount: 6000000})

		// then
		data, applied := form.pricing()
		assert.False(t, applied)
		assert.Equal(t, int64(0), data.DiscountAmount)
		assert.Equal(t, int64(6000000), data.PayableAmount())
	})

	t.Run("Changing the coupon code drops the discount", func(t *testing.T) {
		// given
		form := controllerAt(validApplication(), StepCoupon)
		form.applyCoupon("SAVE10", 500000, 4500000)

		// when
		form.UpdateFormData(checkoutapi.ApplicationFormData{CouponCode: " save20 "})

		// then
		data, applied := form.pricing()
		assert.False(t, applied)
		assert.Equal(t, "SAVE20", data.CouponCode)
		assert.Equal(t, int64(5000000), data.PayableAmount())
	})

	t.Run("Order references cannot be set by the client", func(t *testing.T) {
		// given
		form := controllerAt(validApplication(), StepCoupon)

		// when
		form.UpdateFormData(checkoutapi.ApplicationFormData{OrderID: "forged", DiscountAmount: 5000000, FinalAmount: 1})

		// then
		data := form.FormData()
		assert.Empty(t, data.OrderID)
		assert.Equal(t, int64(0), data.DiscountAmount)
	})

	t.Run("Completion requires a verified confirmation of the current order", func(t *testing.T) {
		// given
		form := controllerAt(validApplication(), StepPayment)
		form.recordOrder(OrderReference{OrderID: "order_1"}, "fp")

		// when
		errUnverified := form.complete(Confirmation{order: checkoutapi.PaymentOrder{OrderID: "order_1", Status: checkoutapi.OrderStatusPaid}})
		errOther := form.complete(Confirmation{verified: true, order: checkoutapi.PaymentOrder{OrderID: "order_2", Status: checkoutapi.OrderStatusPaid}})
		errOK := form.complete(Confirmation{verified: true, order: checkoutapi.PaymentOrder{OrderID: "order_1", Status: checkoutapi.OrderStatusPaid}})

		// then
		assert.ErrorIs(t, errUnverified, ErrVerificationFailed)
		assert.ErrorIs(t, errOther, ErrVerificationFailed)
		assert.NoError(t, errOK)
		assert.Equal(t, StepSuccess, form.Step())

		_, err := form.PrevStep()
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestFieldErrors(t *testing.T) {
	err := FieldErrors{"phone": "Phone is required", "email": "Email is required"}
	assert.Equal(t, "validation failed: email: Email is required, phone: Phone is required", err.Error())
}
