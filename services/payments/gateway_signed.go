package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/MarcGrol/consultcheckout/lib/myhttpclient"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

const signedProviderName = "signed"

// signedGateway creates orders over REST and accepts a payment when the collector
// returns an HMAC-SHA256 signature of "<gateway order id>|<payment id>" under the key secret.
type signedGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	sender    myhttpclient.HTTPSender
}

func NewSignedGateway(keyID string, keySecret string, baseURL string, sender myhttpclient.HTTPSender) Gateway {
	return &signedGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		sender:    sender,
	}
}

type gatewayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type gatewayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

func (g *signedGateway) Name() string {
	return signedProviderName
}

func (g *signedGateway) CreateOrder(c context.Context, order Order) (checkoutapi.GatewayOrder, error) {
	body, err := json.Marshal(gatewayOrderRequest{
		Amount:   order.FinalAmount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		Notes: map[string]string{
			"orderId":     order.OrderID,
			"serviceCode": order.ServiceCode,
		},
	})
	if err != nil {
		return checkoutapi.GatewayOrder{}, fmt.Errorf("error marshalling gateway order: %s", err)
	}

	status, respBody, err := g.sender.Send(c, http.MethodPost, g.baseURL+"/v1/orders", body)
	if err != nil {
		return checkoutapi.GatewayOrder{}, fmt.Errorf("error creating gateway order: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return checkoutapi.GatewayOrder{}, fmt.Errorf("gateway responded %d on order creation", status)
	}

	resp := gatewayOrderResponse{}
	err = json.Unmarshal(respBody, &resp)
	if err != nil {
		return checkoutapi.GatewayOrder{}, fmt.Errorf("error parsing gateway order: %s", err)
	}
	if resp.ID == "" || resp.Amount != order.FinalAmount || !strings.EqualFold(resp.Currency, order.Currency) {
		return checkoutapi.GatewayOrder{}, fmt.Errorf("gateway order %s does not match %d %s", resp.ID, order.FinalAmount, order.Currency)
	}

	return checkoutapi.GatewayOrder{
		Provider: signedProviderName,
		ID:       resp.ID,
		KeyID:    g.keyID,
		Amount:   resp.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
	}, nil
}

func (g *signedGateway) Verify(c context.Context, order Order, proof checkoutapi.VerificationProof) error {
	if proof.GatewayOrderID != order.GatewayOrderID {
		return ErrPaymentRejected
	}

	expected := sign(g.keySecret, order.GatewayOrderID+"|"+proof.GatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(proof.GatewaySignature))) {
		return ErrPaymentRejected
	}

	return nil
}

func sign(secret string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
