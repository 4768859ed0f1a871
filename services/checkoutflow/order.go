package checkoutflow

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

// OrderReference identifies the pending order of a checkout attempt at the backend and at the gateway.
type OrderReference struct {
	OrderID      string
	Order        checkoutapi.PaymentOrder
	GatewayOrder checkoutapi.GatewayOrder
}

type OrderOrchestrator struct {
	api    PaymentsAPI
	form   *Controller
	logger mylog.Logger
}

func NewOrderOrchestrator(api PaymentsAPI, form *Controller, logger mylog.Logger) *OrderOrchestrator {
	return &OrderOrchestrator{
		api:    api,
		form:   form,
		logger: logger,
	}
}

// CreateOrder returns the pending order for the current form. An order created earlier for the same
// priced fields is reused without a network call.
func (o *OrderOrchestrator) CreateOrder(c context.Context) (OrderReference, error) {
	data, couponApplied := o.form.pricing()
	if !couponApplied {
		data.CouponCode = ""
		data.DiscountAmount = 0
		data.FinalAmount = data.Amount
	}

	fingerprint := Fingerprint(data)
	if ref, found := o.form.existingOrder(fingerprint); found {
		o.logger.Log(c, ref.OrderID, mylog.SeverityInfo, "Reusing order %s", ref.OrderID)
		return ref, nil
	}

	resp, err := o.api.CreateOrder(c, checkoutapi.CreateOrderRequest{
		Amount:         data.Amount,
		Currency:       data.Currency,
		Email:          data.Email,
		FirstName:      data.FirstName,
		LastName:       data.LastName,
		Company:        data.Company,
		Phone:          data.Phone,
		ServiceCode:    data.ServiceCode,
		ServiceName:    data.ServiceName,
		CouponCode:     data.CouponCode,
		DiscountAmount: data.DiscountAmount,
		Metadata: map[string]string{
			"designation": data.Designation,
			"size":        data.Size,
			"website":     data.Website,
		},
	})
	if err != nil {
		o.logger.Log(c, data.ServiceCode, mylog.SeverityError, "Error creating order: %s", err)
		return OrderReference{}, fmt.Errorf("%w: %s", ErrOrderCreation, err)
	}
	if !resp.Success || resp.Data == nil {
		o.logger.Log(c, data.ServiceCode, mylog.SeverityWarn, "Order rejected: %s", resp.Message)
		return OrderReference{}, fmt.Errorf("%w: %s", ErrOrderCreation, resp.Message)
	}

	payable := data.PayableAmount()
	if resp.Data.GatewayOrder.Amount != payable || resp.Data.Order.FinalAmount != payable {
		o.logger.Log(c, resp.Data.Order.OrderID, mylog.SeverityWarn, "Order amount %d differs from expected %d", resp.Data.GatewayOrder.Amount, payable)
		return OrderReference{}, fmt.Errorf("%w: amount changed, please review your order", ErrOrderCreation)
	}

	ref := OrderReference{
		OrderID:      resp.Data.Order.OrderID,
		Order:        resp.Data.Order,
		GatewayOrder: resp.Data.GatewayOrder,
	}
	o.form.recordOrder(ref, fingerprint)

	o.logger.Log(c, ref.OrderID, mylog.SeverityInfo, "Created order %s (gateway order %s) for %d %s", ref.OrderID, ref.GatewayOrder.ID, payable, data.Currency)

	return ref, nil
}

// Fingerprint is derived from the fields that determine the price of an order.
func Fingerprint(data checkoutapi.ApplicationFormData) string {
	sha2 := sha256.New()
	_, _ = io.WriteString(sha2, fmt.Sprintf("%d|%d|%d|%s|%s|%s",
		data.Amount, data.DiscountAmount, data.PayableAmount(), data.Currency, data.ServiceCode, data.CouponCode))
	return base64.RawURLEncoding.EncodeToString(sha2.Sum(nil))
}
