package checkoutflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/MarcGrol/consultcheckout/lib/myhttpclient"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

//go:generate mockgen -source=api.go -package checkoutflow -destination api_mock.go PaymentsAPI
type PaymentsAPI interface {
	CreateOrder(c context.Context, req checkoutapi.CreateOrderRequest) (checkoutapi.CreateOrderResponse, error)
	ValidateCoupon(c context.Context, req checkoutapi.ValidateCouponRequest) (checkoutapi.CouponValidationResult, error)
	VerifyPayment(c context.Context, proof checkoutapi.VerificationProof) (checkoutapi.VerifyPaymentResponse, error)
}

// APIError is a non-2xx answer of the payments backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e APIError) Error() string {
	return fmt.Sprintf("payments backend responded %d: %s", e.StatusCode, e.Message)
}

type paymentsClient struct {
	baseURL string
	sender  myhttpclient.HTTPSender
}

func NewPaymentsClient(baseURL string, sender myhttpclient.HTTPSender) PaymentsAPI {
	return &paymentsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		sender:  sender,
	}
}

func (pc *paymentsClient) CreateOrder(c context.Context, req checkoutapi.CreateOrderRequest) (checkoutapi.CreateOrderResponse, error) {
	resp := checkoutapi.CreateOrderResponse{}
	err := pc.post(c, "/payments/create-order", req, &resp)
	if err != nil {
		return resp, err
	}
	return resp, nil
}

func (pc *paymentsClient) ValidateCoupon(c context.Context, req checkoutapi.ValidateCouponRequest) (checkoutapi.CouponValidationResult, error) {
	resp := checkoutapi.CouponValidationResult{}
	err := pc.post(c, "/payments/validate-coupon", req, &resp)
	if err != nil {
		return resp, err
	}
	return resp, nil
}

func (pc *paymentsClient) VerifyPayment(c context.Context, proof checkoutapi.VerificationProof) (checkoutapi.VerifyPaymentResponse, error) {
	resp := checkoutapi.VerifyPaymentResponse{}
	err := pc.post(c, "/payments/verify", proof, &resp)
	if err != nil {
		return resp, err
	}
	return resp, nil
}

func (pc *paymentsClient) post(c context.Context, path string, req any, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("error marshalling request for %s: %s", path, err)
	}

	status, respBody, err := pc.sender.Send(c, http.MethodPost, pc.baseURL+path, body)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		failure := struct {
			Message string `json:"message"`
		}{}
		_ = json.Unmarshal(respBody, &failure)
		return APIError{StatusCode: status, Message: failure.Message}
	}

	err = json.Unmarshal(respBody, resp)
	if err != nil {
		return fmt.Errorf("error parsing response of %s: %s", path, err)
	}

	return nil
}
