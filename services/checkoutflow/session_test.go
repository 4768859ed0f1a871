package checkoutflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/consultcheckout/lib/myhttpclient"
	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

var testRoutes = Routes{
	SuccessURL: "/payment/success",
	FailureURL: "/payment/failure",
}

func setupSession(t *testing.T, ctrl *gomock.Controller, scriptFailures int32) (*Session, *MockPaymentsAPI, *MockCollector) {
	server, _ := scriptServer(t, scriptFailures)
	loader, err := NewScriptLoader(server.URL+"/checkout.js", server.URL, myhttpclient.New(nil))
	assert.NoError(t, err)

	api := NewMockPaymentsAPI(ctrl)
	collector := NewMockCollector(ctrl)
	gateway := NewGateway(loader, collector, GatewayConfig{MerchantName: "Acme Consulting"})
	session := NewSession("session_1", validApplication(), api, gateway, testRoutes, mylog.New("test"))

	return session, api, collector
}

func toStep(t *testing.T, session *Session, step Step) {
	for session.Form().Step() != step {
		_, err := session.Form().NextStep()
		assert.NoError(t, err)
	}
}

func verifiedPayment(orderID string) checkoutapi.VerifyPaymentResponse {
	return checkoutapi.VerifyPaymentResponse{
		Order: checkoutapi.PaymentOrder{
			OrderID:        orderID,
			GatewayOrderID: "gw_" + orderID,
			PaymentID:      "pay_1",
			Status:         checkoutapi.OrderStatusPaid,
			FinalAmount:    4500000,
		},
		Engagement:  &checkoutapi.Engagement{ID: "eng_1", OrderID: orderID, Status: checkoutapi.EngagementStatusActive},
		Credentials: &checkoutapi.Credentials{Email: "asha@example.com", Password: "Xk7pQ2mR9tWz4a"},
	}
}

func proofFor(orderID string) checkoutapi.VerificationProof {
	return checkoutapi.VerificationProof{
		GatewayOrderID:   "gw_" + orderID,
		GatewayPaymentID: "pay_1",
		GatewaySignature: "sig",
	}
}

func TestSession(t *testing.T) {
	c := context.TODO()

	t.Run("Checkout with coupon completes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, api, collector := setupSession(t, ctrl, 0)
		toStep(t, sut, StepCoupon)

		// given
		api.EXPECT().ValidateCoupon(gomock.Any(), gomock.Any()).Return(checkoutapi.CouponValidationResult{Valid: true, DiscountPercentage: 10}, nil)
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 500000), nil)
		collector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).Return(Outcome{Proof: proofFor("order_1")}, nil)
		api.EXPECT().VerifyPayment(gomock.Any(), proofFor("order_1")).Return(verifiedPayment("order_1"), nil)

		// when
		coupon, err := sut.ValidateCoupon(c, "SAVE10")
		assert.NoError(t, err)
		assert.True(t, coupon.Valid)
		assert.Equal(t, int64(4500000), sut.Form().FormData().FinalAmount)
		toStep(t, sut, StepPayment)
		result, err := sut.Pay(c)

		// then
		assert.NoError(t, err)
		assert.Equal(t, PaymentResult{
			Outcome:      PaymentSucceeded,
			OrderID:      "order_1",
			EngagementID: "eng_1",
			RedirectURL:  "/payment/success",
		}, result)
		assert.Equal(t, StepSuccess, sut.Form().Step())

		details, found := sut.Handoff().Reveal()
		assert.True(t, found)
		assert.Equal(t, "Xk7pQ2mR9tWz4a", details.Password)
		_, found = sut.Handoff().Reveal()
		assert.False(t, found)

		_, err = sut.Pay(c)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("Dismissed collector keeps the order and the step", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, api, collector := setupSession(t, ctrl, 0)
		toStep(t, sut, StepPayment)

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil).Times(1)
		gomock.InOrder(
			collector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).Return(Outcome{Cancelled: true}, nil),
			collector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).Return(Outcome{Proof: proofFor("order_1")}, nil),
		)
		api.EXPECT().VerifyPayment(gomock.Any(), gomock.Any()).Return(verifiedPayment("order_1"), nil)

		// when
		cancelled, err := sut.Pay(c)

		// then
		assert.NoError(t, err)
		assert.Equal(t, PaymentResult{
			Outcome:     PaymentCancelled,
			OrderID:     "order_1",
			RedirectURL: "/payment/failure?reason=cancelled",
		}, cancelled)
		assert.Equal(t, StepPayment, sut.Form().Step())
		assert.Equal(t, "order_1", sut.Form().FormData().OrderID)

		// when
		retried, err := sut.Pay(c)

		// then
		assert.NoError(t, err)
		assert.Equal(t, PaymentSucceeded, retried.Outcome)
		assert.Equal(t, "order_1", retried.OrderID)
	})

	t.Run("Rejected signature keeps the payment step", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, api, collector := setupSession(t, ctrl, 0)
		toStep(t, sut, StepPayment)

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil)
		collector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).Return(Outcome{Proof: proofFor("order_1")}, nil)
		api.EXPECT().VerifyPayment(gomock.Any(), gomock.Any()).Return(checkoutapi.VerifyPaymentResponse{}, APIError{StatusCode: 400, Message: "signature mismatch"})

		// when
		result, err := sut.Pay(c)

		// then
		assert.ErrorIs(t, err, ErrVerificationFailed)
		assert.Equal(t, PaymentFailed, result.Outcome)
		assert.Equal(t, "/payment/failure?reason=verification_failed", result.RedirectURL)
		assert.Equal(t, StepPayment, sut.Form().Step())
		_, found := sut.Handoff().Reveal()
		assert.False(t, found)
	})

	t.Run("Unavailable collector creates no order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, _, _ := setupSession(t, ctrl, 1)
		toStep(t, sut, StepPayment)

		// when
		result, err := sut.Pay(c)

		// then
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
		assert.Equal(t, "/payment/failure?reason=gateway_unavailable", result.RedirectURL)
		assert.Empty(t, sut.Form().FormData().OrderID)
		assert.Equal(t, StepPayment, sut.Form().Step())
	})

	t.Run("Steps of a session do not overlap", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, api, collector := setupSession(t, ctrl, 0)
		toStep(t, sut, StepPayment)

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil)
		collector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(c context.Context, script Script, options ModalOptions) (Outcome, error) {
				_, err := sut.Pay(c)
				assert.ErrorIs(t, err, ErrStepInProgress)
				_, err = sut.ValidateCoupon(c, "SAVE10")
				assert.ErrorIs(t, err, ErrStepInProgress)
				return Outcome{Cancelled: true}, nil
			})

		// when
		result, err := sut.Pay(c)

		// then
		assert.NoError(t, err)
		assert.Equal(t, PaymentCancelled, result.Outcome)
	})

	t.Run("Form is frozen while the collector is open", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, api, collector := setupSession(t, ctrl, 0)
		toStep(t, sut, StepPayment)
		before := sut.Form().FormData()

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil)
		collector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(c context.Context, script Script, options ModalOptions) (Outcome, error) {
				step, err := sut.Form().PrevStep()
				assert.ErrorIs(t, err, ErrStepInProgress)
				assert.Equal(t, StepPayment, step)
				err = sut.Form().UpdateFormData(checkoutapi.ApplicationFormData{Company: "Other Corp"})
				assert.ErrorIs(t, err, ErrStepInProgress)
				return Outcome{Proof: proofFor("order_1")}, nil
			})
		api.EXPECT().VerifyPayment(gomock.Any(), proofFor("order_1")).Return(verifiedPayment("order_1"), nil)

		// when
		result, err := sut.Pay(c)

		// then
		assert.NoError(t, err)
		assert.Equal(t, PaymentSucceeded, result.Outcome)
		assert.Equal(t, StepSuccess, sut.Form().Step())
		assert.Equal(t, before.Company, sut.Form().FormData().Company)
		details, found := sut.Handoff().Reveal()
		assert.True(t, found)
		assert.Equal(t, "eng_1", details.EngagementID)
	})

	t.Run("Form can change again after a dismissed collector", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, api, collector := setupSession(t, ctrl, 0)
		toStep(t, sut, StepPayment)

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil)
		collector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).Return(Outcome{Cancelled: true}, nil)
		_, err := sut.Pay(c)
		assert.NoError(t, err)

		// when
		step, err := sut.Form().PrevStep()

		// then
		assert.NoError(t, err)
		assert.Equal(t, StepCoupon, step)
	})

	t.Run("Payment before the payment step", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, _, _ := setupSession(t, ctrl, 0)
		toStep(t, sut, StepCoupon)

		// when
		_, err := sut.Pay(c)

		// then
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("Coupon outside the coupon step", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, _, _ := setupSession(t, ctrl, 0)

		// when
		_, err := sut.ValidateCoupon(c, "SAVE10")

		// then
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestFailureReasonFor(t *testing.T) {
	assert.Equal(t, FailureGatewayUnavailable, FailureReasonFor(ErrGatewayUnavailable))
	assert.Equal(t, FailureOrder, FailureReasonFor(ErrOrderCreation))
	assert.Equal(t, FailureVerification, FailureReasonFor(ErrVerificationFailed))
}
