package checkoutapi

import (
	"math"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusPaid     OrderStatus = "PAID"
	OrderStatusFailed   OrderStatus = "FAILED"
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

func (s OrderStatus) IsTerminal() bool {
	return s != OrderStatusPending
}

// POST /payments/create-order

type CreateOrderRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Email          string            `json:"email"`
	FirstName      string            `json:"firstName,omitempty"`
	LastName       string            `json:"lastName,omitempty"`
	Company        string            `json:"company,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	ServiceCode    string            `json:"serviceCode"`
	ServiceName    string            `json:"serviceName"`
	CouponCode     string            `json:"couponCode,omitempty"`
	DiscountAmount int64             `json:"discountAmount,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type CreateOrderResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Data    *CreateOrderData `json:"data,omitempty"`
}

type CreateOrderData struct {
	Order        PaymentOrder `json:"order"`
	GatewayOrder GatewayOrder `json:"gatewayOrder"`
}

type PaymentOrder struct {
	OrderID        string      `json:"orderId"`
	Receipt        string      `json:"receipt"`
	Status         OrderStatus `json:"status"`
	Amount         int64       `json:"amount"`
	DiscountAmount int64       `json:"discountAmount"`
	FinalAmount    int64       `json:"finalAmount"`
	Currency       string      `json:"currency"`
	CouponCode     string      `json:"couponCode,omitempty"`
	ServiceCode    string      `json:"serviceCode"`
	ServiceName    string      `json:"serviceName"`
	Email          string      `json:"email"`
	Provider       string      `json:"provider"`
	GatewayOrderID string      `json:"gatewayOrderId"`
	PaymentID      string      `json:"paymentId,omitempty"`
	Signature      string      `json:"signature,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	PaidAt         *time.Time  `json:"paidAt,omitempty"`
}

// GatewayOrder describes the order as known by the payment gateway; it is what the collector is opened with.
type GatewayOrder struct {
	Provider     string `json:"provider"`
	ID           string `json:"id"`
	KeyID        string `json:"keyId"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Receipt      string `json:"receipt"`
	ClientSecret string `json:"clientSecret,omitempty"`
	CheckoutURL  string `json:"checkoutUrl,omitempty"`
}

// POST /payments/validate-coupon

type ValidateCouponRequest struct {
	Code        string `json:"code"`
	ServiceCode string `json:"serviceCode"`
}

type CouponValidationResult struct {
	Valid              bool    `json:"valid"`
	DiscountAmount     int64   `json:"discountAmount,omitempty"`
	DiscountPercentage float64 `json:"discountPercentage,omitempty"`
	Message            string  `json:"message,omitempty"`
}

// DiscountOn prefers an absolute discount over a percentage and never exceeds amount.
func (r CouponValidationResult) DiscountOn(amount int64) int64 {
	if !r.Valid || amount <= 0 {
		return 0
	}

	discount := r.DiscountAmount
	if discount <= 0 && r.DiscountPercentage > 0 {
		discount = int64(math.Round(float64(amount) * r.DiscountPercentage / 100))
	}

	return max(0, min(discount, amount))
}

// POST /payments/verify

// VerificationProof is what the gateway hands to the success handler. It is an unverified claim.
type VerificationProof struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

type VerifyPaymentResponse struct {
	Order       PaymentOrder `json:"order"`
	Engagement  *Engagement  `json:"engagement,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

type EngagementStatus string

const (
	EngagementStatusActive EngagementStatus = "ACTIVE"
)

type Engagement struct {
	ID          string           `json:"id"`
	OrderID     string           `json:"orderId"`
	ServiceCode string           `json:"serviceCode"`
	ServiceName string           `json:"serviceName"`
	Email       string           `json:"email"`
	Company     string           `json:"company,omitempty"`
	Status      EngagementStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	LoginURL string `json:"loginUrl,omitempty"`
}
