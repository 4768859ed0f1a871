package checkoutapi

import (
	"fmt"
	"net/http"
	"net/url"

	formcodec "github.com/go-playground/form/v4"

	"github.com/MarcGrol/consultcheckout/lib/myerrors"
)

// ApplicationFormData accumulates everything the client entered during checkout.
// Amounts are in minor currency units.
type ApplicationFormData struct {
	// contact
	Email     string `form:"email" json:"email,omitempty"`
	FirstName string `form:"firstName" json:"firstName,omitempty"`
	LastName  string `form:"lastName" json:"lastName,omitempty"`
	Phone     string `form:"phone" json:"phone,omitempty"`

	// company
	Company     string `form:"company" json:"company,omitempty"`
	Designation string `form:"designation" json:"designation,omitempty"`
	Website     string `form:"website" json:"website,omitempty"`
	Size        string `form:"size" json:"size,omitempty"`

	// service selection
	ServiceCode string `form:"serviceCode" json:"serviceCode,omitempty"`
	ServiceName string `form:"serviceName" json:"serviceName,omitempty"`
	Amount      int64  `form:"amount" json:"amount,omitempty"`
	Currency    string `form:"currency" json:"currency,omitempty"`

	// coupon
	CouponCode     string `form:"couponCode" json:"couponCode,omitempty"`
	DiscountAmount int64  `form:"-" json:"discountAmount,omitempty"`
	FinalAmount    int64  `form:"-" json:"finalAmount,omitempty"`

	// order references
	OrderID        string `form:"-" json:"orderId,omitempty"`
	GatewayOrderID string `form:"-" json:"gatewayOrderId,omitempty"`
}

func NewFromRequest(r *http.Request) (ApplicationFormData, error) {
	err := r.ParseForm()
	if err != nil {
		return ApplicationFormData{}, myerrors.NewInvalidInputError(err)
	}
	return NewFromValues(r.Form)
}

func NewFromValues(values url.Values) (ApplicationFormData, error) {
	data := ApplicationFormData{}
	err := formcodec.NewDecoder().Decode(&data, values)
	if err != nil {
		return data, myerrors.NewInvalidInputErrorf("error decoding form: %s", err)
	}

	return data, nil
}

func (d ApplicationFormData) ToForm() (url.Values, error) {
	values, err := formcodec.NewEncoder().Encode(d)
	if err != nil {
		return nil, fmt.Errorf("error encoding form: %s", err)
	}

	return values, nil
}

// PayableAmount is the amount the client will be charged.
func (d ApplicationFormData) PayableAmount() int64 {
	if d.FinalAmount > 0 || d.DiscountAmount > 0 {
		return d.FinalAmount
	}
	return d.Amount
}
