package payments

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

const stripeProviderName = "stripe"

//go:generate mockgen -source=gateway_stripe.go -package payments -destination intents_mock.go PaymentIntents
type PaymentIntents interface {
	Create(c context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(c context.Context, id string) (*stripe.PaymentIntent, error)
}

type paymentIntents struct {
	client paymentintent.Client
}

func NewPaymentIntents(apiKey string) PaymentIntents {
	return &paymentIntents{
		client: paymentintent.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: apiKey,
		},
	}
}

func (p *paymentIntents) Create(c context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = c
	return p.client.New(params)
}

func (p *paymentIntents) Get(c context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = c
	params.AddExpand("latest_charge")
	return p.client.Get(id, params)
}

// stripeGateway uses a PaymentIntent as gateway order. The collector reports the intent id, the id of
// the charge and the client secret; the payment is accepted once stripe itself reports it succeeded.
type stripeGateway struct {
	publishableKey string
	intents        PaymentIntents
}

func NewStripeGateway(publishableKey string, intents PaymentIntents) Gateway {
	return &stripeGateway{
		publishableKey: publishableKey,
		intents:        intents,
	}
}

func (g *stripeGateway) Name() string {
	return stripeProviderName
}

func (g *stripeGateway) CreateOrder(c context.Context, order Order) (checkoutapi.GatewayOrder, error) {
	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(order.FinalAmount),
		Currency:     stripe.String(strings.ToLower(order.Currency)),
		Description:  stripe.String(order.ServiceName),
		ReceiptEmail: stripe.String(order.Email),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("orderId", order.OrderID)
	params.AddMetadata("receipt", order.Receipt)
	params.SetIdempotencyKey(order.OrderID)

	intent, err := g.intents.Create(c, params)
	if err != nil {
		return checkoutapi.GatewayOrder{}, fmt.Errorf("error creating payment intent: %w", err)
	}

	return checkoutapi.GatewayOrder{
		Provider:     stripeProviderName,
		ID:           intent.ID,
		KeyID:        g.publishableKey,
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		Receipt:      order.Receipt,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (g *stripeGateway) Verify(c context.Context, order Order, proof checkoutapi.VerificationProof) error {
	if proof.GatewayOrderID != order.GatewayOrderID {
		return ErrPaymentRejected
	}

	intent, err := g.intents.Get(c, order.GatewayOrderID)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return ErrPaymentRejected
		}
		return fmt.Errorf("error fetching payment intent %s: %w", order.GatewayOrderID, err)
	}

	if subtle.ConstantTimeCompare([]byte(intent.ClientSecret), []byte(proof.GatewaySignature)) != 1 {
		return ErrPaymentRejected
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return ErrPaymentRejected
	}
	if intent.Amount != order.FinalAmount || !strings.EqualFold(string(intent.Currency), order.Currency) {
		return ErrPaymentRejected
	}
	if intent.Metadata["orderId"] != order.OrderID {
		return ErrPaymentRejected
	}
	if intent.LatestCharge == nil || intent.LatestCharge.ID != proof.GatewayPaymentID {
		return ErrPaymentRejected
	}

	return nil
}
