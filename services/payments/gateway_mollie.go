package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/VictorAvelar/mollie-api-go/v3/mollie"

	"github.com/MarcGrol/consultcheckout/lib/myerrors"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

const (
	mollieProviderName = "mollie"
	mollieStatusPaid   = "paid"
)

//go:generate mockgen -source=gateway_mollie.go -package payments -destination mollie_payer_mock.go MolliePayer
type MolliePayer interface {
	CreatePayment(c context.Context, request mollie.Payment) (mollie.Payment, error)
	GetPaymentOnID(c context.Context, paymentID string) (mollie.Payment, error)
}

type molliePayer struct {
	client *mollie.Client
}

func NewMolliePayer(apiKey string) (MolliePayer, error) {
	config := mollie.NewAPIConfig(true)
	if strings.HasPrefix(apiKey, "test_") {
		config = mollie.NewAPITestingConfig(true)
	}

	client, err := mollie.NewClient(nil, config)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error creating mollie client: %s", err))
	}
	client.WithAuthenticationValue(apiKey)

	return &molliePayer{
		client: client,
	}, nil
}

func (p *molliePayer) CreatePayment(c context.Context, request mollie.Payment) (mollie.Payment, error) {
	_, payment, err := p.client.Payments.Create(c, request, nil)
	if err != nil {
		return mollie.Payment{}, fmt.Errorf("error creating mollie payment: %w", err)
	}

	return *payment, nil
}

func (p *molliePayer) GetPaymentOnID(c context.Context, id string) (mollie.Payment, error) {
	_, payment, err := p.client.Payments.Get(c, id, &mollie.PaymentOptions{})
	if err != nil {
		return mollie.Payment{}, fmt.Errorf("error getting mollie payment: %w", err)
	}

	return *payment, nil
}

// mollieGateway uses a hosted mollie payment as gateway order. Mollie signs nothing the client can
// forward, so a payment is accepted only when fetching it from mollie shows it paid in full.
type mollieGateway struct {
	payer       MolliePayer
	redirectURL string
}

func NewMollieGateway(payer MolliePayer, redirectURL string) Gateway {
	return &mollieGateway{
		payer:       payer,
		redirectURL: redirectURL,
	}
}

func (g *mollieGateway) Name() string {
	return mollieProviderName
}

func (g *mollieGateway) CreateOrder(c context.Context, order Order) (checkoutapi.GatewayOrder, error) {
	payment, err := g.payer.CreatePayment(c, mollie.Payment{
		Description:  order.ServiceName + " (" + order.Receipt + ")",
		RedirectURL:  g.redirectURL,
		BillingEmail: order.Email,
		Metadata: map[string]string{
			"orderId": order.OrderID,
			"receipt": order.Receipt,
		},
		Amount: &mollie.Amount{
			Currency: order.Currency,
			Value:    formatMinorUnits(order.FinalAmount),
		},
	})
	if err != nil {
		return checkoutapi.GatewayOrder{}, err
	}

	checkoutURL := ""
	if payment.Links.Checkout != nil {
		checkoutURL = payment.Links.Checkout.Href
	}

	return checkoutapi.GatewayOrder{
		Provider:    mollieProviderName,
		ID:          payment.ID,
		Amount:      order.FinalAmount,
		Currency:    order.Currency,
		Receipt:     order.Receipt,
		CheckoutURL: checkoutURL,
	}, nil
}

func (g *mollieGateway) Verify(c context.Context, order Order, proof checkoutapi.VerificationProof) error {
	if proof.GatewayOrderID != order.GatewayOrderID || proof.GatewayPaymentID != order.GatewayOrderID {
		return ErrPaymentRejected
	}

	payment, err := g.payer.GetPaymentOnID(c, order.GatewayOrderID)
	if err != nil {
		return err
	}

	if payment.ID != order.GatewayOrderID || payment.Status != mollieStatusPaid {
		return ErrPaymentRejected
	}
	if payment.Amount == nil || payment.Amount.Value != formatMinorUnits(order.FinalAmount) || !strings.EqualFold(payment.Amount.Currency, order.Currency) {
		return ErrPaymentRejected
	}

	return nil
}

// formatMinorUnits renders an amount in cents or paise as the decimal string mollie expects.
func formatMinorUnits(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}
