package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcGrol/consultcheckout/lib/myconfig"
	"github.com/MarcGrol/consultcheckout/lib/myhttpclient"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

// ErrPaymentRejected means the gateway positively refused the reported payment.
var ErrPaymentRejected = errors.New("payment rejected by gateway")

//go:generate mockgen -source=gateway.go -package payments -destination gateway_mock.go Gateway
type Gateway interface {
	Name() string
	CreateOrder(c context.Context, order Order) (checkoutapi.GatewayOrder, error)
	// Verify returns ErrPaymentRejected when proof does not confirm payment of order.
	Verify(c context.Context, order Order, proof checkoutapi.VerificationProof) error
}

// NewGateway returns the provider selected in config.
func NewGateway(config myconfig.Config) (Gateway, error) {
	switch config.GatewayProvider {
	case "", signedProviderName:
		return NewSignedGateway(config.GatewayKeyID, config.GatewayKeySecret, config.GatewayAPIBaseURL,
			myhttpclient.New(myhttpclient.BasicAuth(config.GatewayKeyID, config.GatewayKeySecret))), nil
	case stripeProviderName:
		if config.StripeAPIKey == "" {
			return nil, fmt.Errorf("provider %s requires STRIPE_API_KEY", stripeProviderName)
		}
		return NewStripeGateway(config.GatewayKeyID, NewPaymentIntents(config.StripeAPIKey)), nil
	case mollieProviderName:
		if config.MollieAPIKey == "" {
			return nil, fmt.Errorf("provider %s requires MOLLIE_API_KEY", mollieProviderName)
		}
		payer, err := NewMolliePayer(config.MollieAPIKey)
		if err != nil {
			return nil, err
		}
		return NewMollieGateway(payer, config.BaseURL+config.SuccessURL), nil
	default:
		return nil, fmt.Errorf("unknown gateway provider %s", config.GatewayProvider)
	}
}
