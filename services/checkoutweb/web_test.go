package checkoutweb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/consultcheckout/lib/myhttpclient"
	"github.com/MarcGrol/consultcheckout/lib/mytime"
	"github.com/MarcGrol/consultcheckout/lib/myuuid"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
	"github.com/MarcGrol/consultcheckout/services/checkoutflow"
)

var testRoutes = checkoutflow.Routes{
	SuccessURL: "/payment/success",
	FailureURL: "/payment/failure",
}

func scriptServer(t *testing.T, healthy bool) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(`window.Collector = function(options) { this.options = options; };`))
	}))
	t.Cleanup(server.Close)
	return server
}

func setup(t *testing.T, ctrl *gomock.Controller, scriptHealthy bool) (*WebService, *mux.Router, *checkoutflow.MockPaymentsAPI, *myuuid.MockUUIDer) {
	server := scriptServer(t, scriptHealthy)
	loader, err := checkoutflow.NewScriptLoader(server.URL+"/checkout.js", server.URL, myhttpclient.New(nil))
	assert.NoError(t, err)

	api := checkoutflow.NewMockPaymentsAPI(ctrl)
	uuider := myuuid.NewMockUUIDer(ctrl)

	sut, err := NewWebService(context.TODO(), Options{
		MerchantName: "Acme Consulting",
		ThemeColor:   "#1f4e79",
		Routes:       testRoutes,
	}, mytime.RealNower{}, uuider, api, loader)
	assert.NoError(t, err)

	router := mux.NewRouter()
	err = sut.RegisterEndpoints(context.TODO(), router)
	assert.NoError(t, err)

	return sut, router, api, uuider
}

func application() url.Values {
	return url.Values{
		"email":       {"asha@example.com"},
		"firstName":   {"Asha"},
		"lastName":    {"Rao"},
		"phone":       {"+919800000000"},
		"company":     {"Acme Analytics"},
		"designation": {"CTO"},
		"website":     {"https://acme.example.com"},
		"size":        {"11-50"},
		"serviceCode": {"ARCH-REVIEW"},
		"serviceName": {"Architecture review"},
		"amount":      {"5000000"},
		"currency":    {"INR"},
	}
}

func send(t *testing.T, router *mux.Router, method string, path string, contentType string, body string) *httptest.ResponseRecorder {
	request, err := http.NewRequest(method, path, strings.NewReader(body))
	assert.NoError(t, err)
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	return response
}

func sendForm(t *testing.T, router *mux.Router, method string, path string, values url.Values) *httptest.ResponseRecorder {
	return send(t, router, method, path, "application/x-www-form-urlencoded", values.Encode())
}

func viewFrom(t *testing.T, response *httptest.ResponseRecorder) SessionView {
	view := SessionView{}
	err := json.Unmarshal(response.Body.Bytes(), &view)
	assert.NoError(t, err)
	return view
}

// startedSession creates a session for the full application and walks it to step.
func startedSession(t *testing.T, router *mux.Router, uuider *myuuid.MockUUIDer, step checkoutflow.Step) string {
	uuider.EXPECT().Create().Return("session_1")
	response := sendForm(t, router, http.MethodPost, "/checkout/session", application())
	assert.Equal(t, http.StatusCreated, response.Code)

	for viewFrom(t, response).Step != step {
		response = send(t, router, http.MethodPost, "/checkout/session/session_1/next", "", "")
		assert.Equal(t, http.StatusOK, response.Code)
	}
	return "session_1"
}

func createdOrder(orderID string, amount int64, discount int64) checkoutapi.CreateOrderResponse {
	return checkoutapi.CreateOrderResponse{
		Success: true,
		Data: &checkoutapi.CreateOrderData{
			Order: checkoutapi.PaymentOrder{
				OrderID:        orderID,
				Status:         checkoutapi.OrderStatusPending,
				Amount:         amount,
				DiscountAmount: discount,
				FinalAmount:    amount - discount,
				Currency:       "INR",
				GatewayOrderID: "gw_" + orderID,
			},
			GatewayOrder: checkoutapi.GatewayOrder{
				Provider: "signed",
				ID:       "gw_" + orderID,
				KeyID:    "key_123",
				Amount:   amount - discount,
				Currency: "INR",
				Receipt:  "rcpt_" + orderID,
			},
		},
	}
}

func paidOrder(orderID string) checkoutapi.VerifyPaymentResponse {
	return checkoutapi.VerifyPaymentResponse{
		Order: checkoutapi.PaymentOrder{
			OrderID:        orderID,
			GatewayOrderID: "gw_" + orderID,
			PaymentID:      "pay_1",
			Status:         checkoutapi.OrderStatusPaid,
			FinalAmount:    5000000,
		},
		Engagement:  &checkoutapi.Engagement{ID: "eng_1", OrderID: orderID, Status: checkoutapi.EngagementStatusActive},
		Credentials: &checkoutapi.Credentials{Email: "asha@example.com", Password: "Xk7pQ2mR9tWz4a", LoginURL: "https://portal.example.com/login"},
	}
}

func proofJSON(orderID string) string {
	return fmt.Sprintf(`{"gateway_order_id":"gw_%s","gateway_payment_id":"pay_1","gateway_signature":"sig"}`, orderID)
}

func TestSessionEndpoints(t *testing.T) {

	t.Run("Create session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, uuider := setup(t, ctrl, true)

		// given
		uuider.EXPECT().Create().Return("session_1")

		// when
		response := sendForm(t, router, http.MethodPost, "/checkout/session", url.Values{
			"serviceCode": {"ARCH-REVIEW"},
			"serviceName": {"Architecture review"},
			"amount":      {"5000000"},
			"currency":    {"INR"},
		})

		// then
		assert.Equal(t, http.StatusCreated, response.Code)
		view := viewFrom(t, response)
		assert.Equal(t, "session_1", view.UID)
		assert.Equal(t, checkoutflow.StepContact, view.Step)
		assert.Equal(t, int64(5000000), view.Form.Amount)
	})

	t.Run("Create session without service", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _ := setup(t, ctrl, true)

		// when
		response := sendForm(t, router, http.MethodPost, "/checkout/session", url.Values{"email": {"asha@example.com"}})

		// then
		assert.Equal(t, http.StatusBadRequest, response.Code)
	})

	t.Run("Unknown session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _ := setup(t, ctrl, true)

		// when
		response := send(t, router, http.MethodGet, "/checkout/session/nope", "", "")

		// then
		assert.Equal(t, http.StatusNotFound, response.Code)
	})

	t.Run("Incomplete step reports field errors", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, uuider := setup(t, ctrl, true)
		uuider.EXPECT().Create().Return("session_1")
		sendForm(t, router, http.MethodPost, "/checkout/session", url.Values{"serviceCode": {"ARCH-REVIEW"}})

		// given
		sendForm(t, router, http.MethodPut, "/checkout/session/session_1/form", url.Values{"email": {"not-an-email"}, "firstName": {"Asha"}})

		// when
		response := send(t, router, http.MethodPost, "/checkout/session/session_1/next", "", "")

		// then
		assert.Equal(t, http.StatusBadRequest, response.Code)
		view := viewFrom(t, response)
		assert.Equal(t, checkoutflow.StepContact, view.Step)
		assert.Contains(t, view.Errors, "email")
		assert.Contains(t, view.Errors, "lastName")
		assert.NotContains(t, view.Errors, "firstName")
	})

	t.Run("Step back keeps data", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepCoupon)
		before := viewFrom(t, send(t, router, http.MethodGet, "/checkout/session/"+sessionUID, "", "")).Form

		// when
		toCompany := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/prev", "", "")
		toContact := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/prev", "", "")

		// then
		assert.Equal(t, http.StatusOK, toCompany.Code)
		assert.Equal(t, checkoutflow.StepCompany, viewFrom(t, toCompany).Step)
		assert.Equal(t, before, viewFrom(t, toCompany).Form)
		assert.Equal(t, http.StatusOK, toContact.Code)
		assert.Equal(t, checkoutflow.StepContact, viewFrom(t, toContact).Step)
		assert.Equal(t, before, viewFrom(t, toContact).Form)
		assert.Equal(t, "Acme Analytics", before.Company)
		assert.Equal(t, "https://acme.example.com", before.Website)
		assert.Equal(t, "+919800000000", before.Phone)
	})

	t.Run("Payment cannot be skipped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepPayment)

		// when
		response := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/next", "", "")

		// then
		assert.Equal(t, http.StatusConflict, response.Code)
	})
}

func TestCouponEndpoint(t *testing.T) {

	t.Run("Valid coupon lowers the price", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, api, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepCoupon)

		// given
		api.EXPECT().ValidateCoupon(gomock.Any(), checkoutapi.ValidateCouponRequest{Code: "SAVE10", ServiceCode: "ARCH-REVIEW"}).
			Return(checkoutapi.CouponValidationResult{Valid: true, DiscountPercentage: 10}, nil)

		// when
		response := sendForm(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/coupon", url.Values{"code": {"save10"}})

		// then
		assert.Equal(t, http.StatusOK, response.Code)
		view := viewFrom(t, response)
		assert.True(t, view.Coupon.Valid)
		assert.Equal(t, "SAVE10", view.Form.CouponCode)
		assert.Equal(t, int64(500000), view.Form.DiscountAmount)
		assert.Equal(t, int64(4500000), view.Form.FinalAmount)
	})

	t.Run("Unavailable validation does not block checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, api, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepCoupon)

		// given
		api.EXPECT().ValidateCoupon(gomock.Any(), gomock.Any()).Return(checkoutapi.CouponValidationResult{}, fmt.Errorf("connection refused"))

		// when
		response := sendForm(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/coupon", url.Values{"code": {"SAVE10"}})

		// then
		assert.Equal(t, http.StatusOK, response.Code)
		view := viewFrom(t, response)
		assert.Nil(t, view.Coupon)
		assert.Contains(t, view.Errors, "couponCode")
		assert.Equal(t, int64(0), view.Form.DiscountAmount)

		response = send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/next", "", "")
		assert.Equal(t, http.StatusOK, response.Code)
		assert.Equal(t, checkoutflow.StepPayment, viewFrom(t, response).Step)
	})

	t.Run("Coupon outside coupon step", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepContact)

		// when
		response := sendForm(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/coupon", url.Values{"code": {"SAVE10"}})

		// then
		assert.Equal(t, http.StatusConflict, response.Code)
	})
}

func TestPaymentEndpoints(t *testing.T) {

	t.Run("Paid checkout reveals credentials once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, api, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepPayment)

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil)
		api.EXPECT().VerifyPayment(gomock.Any(), gomock.Any()).Return(paidOrder("order_1"), nil)

		// when
		response := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment", "", "")

		// then
		assert.Equal(t, http.StatusOK, response.Code)
		opened := checkoutflow.Opened{}
		err := json.Unmarshal(response.Body.Bytes(), &opened)
		assert.NoError(t, err)
		assert.Equal(t, "gw_order_1", opened.Options.OrderID)
		assert.Equal(t, int64(5000000), opened.Options.Amount)
		assert.Equal(t, "/checkout/session/session_1/payment/callback", opened.Options.Handler)
		assert.Equal(t, "/checkout/session/session_1/payment/dismiss", opened.Options.Modal.OnDismiss)
		assert.True(t, strings.HasPrefix(opened.Script.Integrity, "sha384-"))

		// when
		response = send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment/callback", "application/json", proofJSON("order_1"))

		// then
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Equal(t, "/payment/success", response.Header().Get("Location"))

		response = send(t, router, http.MethodGet, "/checkout/session/"+sessionUID, "", "")
		assert.Equal(t, checkoutflow.StepSuccess, viewFrom(t, response).Step)

		response = send(t, router, http.MethodGet, "/checkout/session/"+sessionUID+"/credentials", "", "")
		assert.Equal(t, http.StatusOK, response.Code)
		assert.Equal(t, "no-store", response.Header().Get("Cache-Control"))
		details := checkoutflow.AccessDetails{}
		err = json.Unmarshal(response.Body.Bytes(), &details)
		assert.NoError(t, err)
		assert.Equal(t, checkoutflow.AccessDetails{EngagementID: "eng_1", Email: "asha@example.com", Password: "Xk7pQ2mR9tWz4a", LoginURL: "https://portal.example.com/login"}, details)

		response = send(t, router, http.MethodGet, "/checkout/session/"+sessionUID+"/credentials", "", "")
		assert.Equal(t, http.StatusNotFound, response.Code)
	})

	t.Run("Dismissed collector keeps the order for a retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, api, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepPayment)

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil).Times(1)
		response := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment", "", "")
		assert.Equal(t, http.StatusOK, response.Code)

		// when
		response = send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment/dismiss", "", "")

		// then
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Equal(t, "/payment/failure?reason=cancelled", response.Header().Get("Location"))
		view := viewFrom(t, send(t, router, http.MethodGet, "/checkout/session/"+sessionUID, "", ""))
		assert.Equal(t, checkoutflow.StepPayment, view.Step)
		assert.Equal(t, "order_1", view.Form.OrderID)

		// when
		response = send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment", "", "")

		// then
		assert.Equal(t, http.StatusOK, response.Code)
		opened := checkoutflow.Opened{}
		_ = json.Unmarshal(response.Body.Bytes(), &opened)
		assert.Equal(t, "gw_order_1", opened.Options.OrderID)
		send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment/dismiss", "", "")
	})

	t.Run("Rejected proof ends on the failure page", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, api, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepPayment)

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil)
		api.EXPECT().VerifyPayment(gomock.Any(), gomock.Any()).Return(checkoutapi.VerifyPaymentResponse{}, checkoutflow.APIError{StatusCode: 400, Message: "payment verification failed"})
		send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment", "", "")

		// when
		response := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment/callback", "application/json", proofJSON("order_1"))

		// then
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Equal(t, "/payment/failure?reason=verification_failed", response.Header().Get("Location"))
		view := viewFrom(t, send(t, router, http.MethodGet, "/checkout/session/"+sessionUID, "", ""))
		assert.Equal(t, checkoutflow.StepPayment, view.Step)
		response = send(t, router, http.MethodGet, "/checkout/session/"+sessionUID+"/credentials", "", "")
		assert.Equal(t, http.StatusNotFound, response.Code)
	})

	t.Run("Unavailable collector creates no order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, uuider := setup(t, ctrl, false)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepPayment)

		// when
		response := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment", "", "")

		// then
		assert.Equal(t, http.StatusServiceUnavailable, response.Code)
	})

	t.Run("Failed order creation can be retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, api, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepPayment)

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(checkoutapi.CreateOrderResponse{}, checkoutflow.APIError{StatusCode: 500, Message: "boom"})

		// when
		response := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment", "", "")

		// then
		assert.Equal(t, http.StatusBadGateway, response.Code)
		view := viewFrom(t, send(t, router, http.MethodGet, "/checkout/session/"+sessionUID, "", ""))
		assert.Equal(t, checkoutflow.StepPayment, view.Step)
		assert.Empty(t, view.Form.OrderID)
	})

	t.Run("Callback without payment in progress", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepPayment)

		// when
		response := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment/callback", "application/json", proofJSON("order_1"))

		// then
		assert.Equal(t, http.StatusConflict, response.Code)
	})

	t.Run("Payment before the payment step", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepCompany)

		// when
		response := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment", "", "")

		// then
		assert.Equal(t, http.StatusConflict, response.Code)
	})

	t.Run("Abandoned session cancels the waiting collector", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, router, api, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepPayment)
		session, _, _ := sut.sessions.Get(context.TODO(), sessionUID)

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil)
		send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment", "", "")

		// when
		response := send(t, router, http.MethodDelete, "/checkout/session/"+sessionUID, "", "")

		// then
		assert.Equal(t, http.StatusNoContent, response.Code)
		run := session.currentRun()
		<-run.done
		assert.NoError(t, run.err)
		assert.Equal(t, checkoutflow.PaymentCancelled, run.result.Outcome)
		response = send(t, router, http.MethodGet, "/checkout/session/"+sessionUID, "", "")
		assert.Equal(t, http.StatusNotFound, response.Code)
	})
}

func TestSessionEviction(t *testing.T) {

	t.Run("Idle session is evicted and its waiting collector cancelled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, router, api, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepPayment)
		session, _, _ := sut.sessions.Get(context.TODO(), sessionUID)

		// given
		api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil)
		response := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment", "", "")
		assert.Equal(t, http.StatusOK, response.Code)
		nower := mytime.NewMockNower(ctrl)
		nower.EXPECT().Now().Return(time.Now().Add(25 * time.Hour)).AnyTimes()
		sut.nower = nower

		// when
		evicted, err := sut.EvictIdleSessions(context.TODO())

		// then
		assert.NoError(t, err)
		assert.Equal(t, 1, evicted)
		run := session.currentRun()
		<-run.done
		assert.NoError(t, run.err)
		assert.Equal(t, checkoutflow.PaymentCancelled, run.result.Outcome)
		assert.Equal(t, "order_1", run.result.OrderID)
		response = send(t, router, http.MethodGet, "/checkout/session/"+sessionUID, "", "")
		assert.Equal(t, http.StatusNotFound, response.Code)
	})

	t.Run("Active session is kept", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		sut, router, _, uuider := setup(t, ctrl, true)
		sessionUID := startedSession(t, router, uuider, checkoutflow.StepCompany)
		nower := mytime.NewMockNower(ctrl)
		nower.EXPECT().Now().Return(time.Now().Add(23 * time.Hour)).AnyTimes()
		sut.nower = nower

		// when
		evicted, err := sut.EvictIdleSessions(context.TODO())

		// then
		assert.NoError(t, err)
		assert.Equal(t, 0, evicted)
		response := send(t, router, http.MethodGet, "/checkout/session/"+sessionUID, "", "")
		assert.Equal(t, http.StatusOK, response.Code)
	})
}

func TestFormFrozenDuringPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// setup
	_, router, api, uuider := setup(t, ctrl, true)
	sessionUID := startedSession(t, router, uuider, checkoutflow.StepPayment)

	// given
	api.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(createdOrder("order_1", 5000000, 0), nil)
	api.EXPECT().VerifyPayment(gomock.Any(), gomock.Any()).Return(paidOrder("order_1"), nil)
	response := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment", "", "")
	assert.Equal(t, http.StatusOK, response.Code)

	// when
	back := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/prev", "", "")
	edit := sendForm(t, router, http.MethodPut, "/checkout/session/"+sessionUID+"/form", url.Values{"company": {"Other Corp"}})
	callback := send(t, router, http.MethodPost, "/checkout/session/"+sessionUID+"/payment/callback", "application/json", proofJSON("order_1"))

	// then
	assert.Equal(t, http.StatusConflict, back.Code)
	assert.Equal(t, http.StatusConflict, edit.Code)
	assert.Equal(t, http.StatusSeeOther, callback.Code)
	assert.Equal(t, "/payment/success", callback.Header().Get("Location"))
	response = send(t, router, http.MethodGet, "/checkout/session/"+sessionUID, "", "")
	assert.Equal(t, checkoutflow.StepSuccess, viewFrom(t, response).Step)
	assert.Equal(t, "Acme Analytics", viewFrom(t, response).Form.Company)
	response = send(t, router, http.MethodGet, "/checkout/session/"+sessionUID+"/credentials", "", "")
	assert.Equal(t, http.StatusOK, response.Code)
}
