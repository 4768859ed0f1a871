package payments

import (
	"time"

	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

// Order is the stored form of a payment order.
type Order struct {
	OrderID        string
	Receipt        string
	Status         checkoutapi.OrderStatus
	Amount         int64
	DiscountAmount int64
	FinalAmount    int64
	Currency       string
	CouponCode     string
	ServiceCode    string
	ServiceName    string
	Email          string
	FirstName      string
	LastName       string
	Company        string
	Phone          string
	Designation    string `datastore:",noindex"`
	CompanySize    string `datastore:",noindex"`
	Website        string `datastore:",noindex"`
	Provider       string
	GatewayOrderID string
	GatewayKeyID   string `datastore:",noindex"`
	ClientSecret   string `datastore:",noindex"`
	CheckoutURL    string `datastore:",noindex"`
	PaymentID      string
	Signature      string `datastore:",noindex"`
	EngagementID   string
	CreatedAt      time.Time
	PaidAt         *time.Time
}

func (o Order) toAPI() checkoutapi.PaymentOrder {
	return checkoutapi.PaymentOrder{
		OrderID:        o.OrderID,
		Receipt:        o.Receipt,
		Status:         o.Status,
		Amount:         o.Amount,
		DiscountAmount: o.DiscountAmount,
		FinalAmount:    o.FinalAmount,
		Currency:       o.Currency,
		CouponCode:     o.CouponCode,
		ServiceCode:    o.ServiceCode,
		ServiceName:    o.ServiceName,
		Email:          o.Email,
		Provider:       o.Provider,
		GatewayOrderID: o.GatewayOrderID,
		PaymentID:      o.PaymentID,
		CreatedAt:      o.CreatedAt,
		PaidAt:         o.PaidAt,
	}
}

func (o Order) gatewayOrder() checkoutapi.GatewayOrder {
	return checkoutapi.GatewayOrder{
		Provider:     o.Provider,
		ID:           o.GatewayOrderID,
		KeyID:        o.GatewayKeyID,
		Amount:       o.FinalAmount,
		Currency:     o.Currency,
		Receipt:      o.Receipt,
		ClientSecret: o.ClientSecret,
		CheckoutURL:  o.CheckoutURL,
	}
}
