package checkoutflow

import (
	"context"

	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

// Confirmation is a payment the backend has verified. Only Verifier creates one.
type Confirmation struct {
	order       checkoutapi.PaymentOrder
	engagement  *checkoutapi.Engagement
	credentials *checkoutapi.Credentials
	verified    bool
}

func (c Confirmation) Order() checkoutapi.PaymentOrder {
	return c.order
}

func (c Confirmation) Engagement() *checkoutapi.Engagement {
	return c.engagement
}

func (c Confirmation) confirmed() bool {
	return c.verified && c.order.Status == checkoutapi.OrderStatusPaid
}

type Verifier struct {
	api    PaymentsAPI
	logger mylog.Logger
}

func NewVerifier(api PaymentsAPI, logger mylog.Logger) *Verifier {
	return &Verifier{
		api:    api,
		logger: logger,
	}
}

// Verify submits the proof reported by the gateway. Anything other than an explicit confirmation
// of this very order is a failure.
func (v *Verifier) Verify(c context.Context, ref OrderReference, proof checkoutapi.VerificationProof) (Confirmation, error) {
	if proof.GatewayOrderID == "" || proof.GatewayPaymentID == "" || proof.GatewaySignature == "" {
		v.logger.Log(c, ref.OrderID, mylog.SeverityWarn, "Incomplete payment proof for order %s", ref.OrderID)
		return Confirmation{}, ErrVerificationFailed
	}
	if proof.GatewayOrderID != ref.GatewayOrder.ID {
		v.logger.Log(c, ref.OrderID, mylog.SeverityWarn, "Payment proof for gateway order %s does not belong to order %s", proof.GatewayOrderID, ref.OrderID)
		return Confirmation{}, ErrVerificationFailed
	}

	resp, err := v.api.VerifyPayment(c, proof)
	if err != nil {
		v.logger.Log(c, ref.OrderID, mylog.SeverityError, "Verification of order %s failed: %s", ref.OrderID, err)
		return Confirmation{}, ErrVerificationFailed
	}

	order := resp.Order
	if order.Status != checkoutapi.OrderStatusPaid || order.OrderID != ref.OrderID || order.GatewayOrderID != proof.GatewayOrderID {
		v.logger.Log(c, ref.OrderID, mylog.SeverityError, "Verification of order %s not confirmed: got order %s with status %s", ref.OrderID, order.OrderID, order.Status)
		return Confirmation{}, ErrVerificationFailed
	}

	v.logger.Log(c, ref.OrderID, mylog.SeverityInfo, "Payment %s for order %s verified", order.PaymentID, ref.OrderID)

	return Confirmation{
		order:       order,
		engagement:  resp.Engagement,
		credentials: resp.Credentials,
		verified:    true,
	}, nil
}
