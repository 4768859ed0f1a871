package contracttests

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/VictorAvelar/mollie-api-go/v3/mollie"
	"github.com/stripe/stripe-go/v74"

	"github.com/MarcGrol/consultcheckout/lib/mystore"
	"github.com/MarcGrol/consultcheckout/lib/myuuid"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

// FakePaymentIntents behaves like the stripe PaymentIntents api for the calls the stripe gateway makes.
type FakePaymentIntents struct {
	uuider myuuid.RealUUIDer
	Store  *mystore.InMemoryStore[stripe.PaymentIntent]
}

func NewFakePaymentIntents() *FakePaymentIntents {
	store, _, _ := mystore.NewInMemoryStore[stripe.PaymentIntent](context.Background())
	return &FakePaymentIntents{
		Store: store,
	}
}

func (f *FakePaymentIntents) Create(c context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params.Amount == nil || *params.Amount <= 0 {
		return nil, &stripe.Error{HTTPStatusCode: http.StatusBadRequest, Msg: "amount must be positive"}
	}

	id := "pi_" + f.uuider.Create()
	intent := stripe.PaymentIntent{
		ID:           id,
		Amount:       *params.Amount,
		Currency:     stripe.Currency(stripe.StringValue(params.Currency)),
		ClientSecret: id + "_secret_" + f.uuider.Create(),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		Metadata:     params.Metadata,
	}
	err := f.Store.Put(c, id, intent)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (f *FakePaymentIntents) Get(c context.Context, id string) (*stripe.PaymentIntent, error) {
	intent, exists, err := f.Store.Get(c, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "no such payment_intent"}
	}
	return &intent, nil
}

// Confirm completes the intent the way stripe.js does after the customer paid.
func (f *FakePaymentIntents) Confirm(c context.Context, gatewayOrder checkoutapi.GatewayOrder) (checkoutapi.VerificationProof, error) {
	intent, exists, err := f.Store.Get(c, gatewayOrder.ID)
	if err != nil {
		return checkoutapi.VerificationProof{}, err
	}
	if !exists {
		return checkoutapi.VerificationProof{}, fmt.Errorf("payment intent %s does not exist", gatewayOrder.ID)
	}

	intent.Status = stripe.PaymentIntentStatusSucceeded
	intent.LatestCharge = &stripe.Charge{ID: "ch_" + f.uuider.Create()}
	err = f.Store.Put(c, intent.ID, intent)
	if err != nil {
		return checkoutapi.VerificationProof{}, err
	}

	return checkoutapi.VerificationProof{
		GatewayOrderID:   intent.ID,
		GatewayPaymentID: intent.LatestCharge.ID,
		GatewaySignature: gatewayOrder.ClientSecret,
	}, nil
}

// FakeMolliePayer keeps mollie payments in memory. Payments stay open until MarkPaid.
type FakeMolliePayer struct {
	uuider myuuid.RealUUIDer
	Store  *mystore.InMemoryStore[mollie.Payment]
}

func NewFakeMolliePayer() *FakeMolliePayer {
	store, _, _ := mystore.NewInMemoryStore[mollie.Payment](context.Background())
	return &FakeMolliePayer{
		Store: store,
	}
}

func (f *FakeMolliePayer) CreatePayment(c context.Context, request mollie.Payment) (mollie.Payment, error) {
	if request.Amount == nil || request.Amount.Value == "" {
		return mollie.Payment{}, fmt.Errorf("error creating mollie payment: amount is required")
	}

	id := "tr_" + f.uuider.Create()
	payment := request
	payment.ID = id
	payment.Status = "open"
	payment.Links = mollie.PaymentLinks{
		Checkout: &mollie.URL{Href: "https://www.mollie.com/checkout/select-method/" + id},
	}
	err := f.Store.Put(c, id, payment)
	if err != nil {
		return mollie.Payment{}, err
	}
	return payment, nil
}

func (f *FakeMolliePayer) GetPaymentOnID(c context.Context, id string) (mollie.Payment, error) {
	payment, exists, err := f.Store.Get(c, id)
	if err != nil {
		return mollie.Payment{}, err
	}
	if !exists {
		return mollie.Payment{}, fmt.Errorf("error getting mollie payment: %s not found", id)
	}
	return payment, nil
}

// MarkPaid settles the payment as the hosted checkout does, and returns what the redirect reports.
func (f *FakeMolliePayer) MarkPaid(c context.Context, gatewayOrder checkoutapi.GatewayOrder) (checkoutapi.VerificationProof, error) {
	payment, exists, err := f.Store.Get(c, gatewayOrder.ID)
	if err != nil {
		return checkoutapi.VerificationProof{}, err
	}
	if !exists {
		return checkoutapi.VerificationProof{}, fmt.Errorf("mollie payment %s does not exist", gatewayOrder.ID)
	}

	payment.Status = "paid"
	err = f.Store.Put(c, payment.ID, payment)
	if err != nil {
		return checkoutapi.VerificationProof{}, err
	}

	return checkoutapi.VerificationProof{
		GatewayOrderID:   payment.ID,
		GatewayPaymentID: payment.ID,
		GatewaySignature: "redirect",
	}, nil
}

type fakeGatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// FakeGatewayAPI serves the order endpoint of a signing gateway and plays its collector.
type FakeGatewayAPI struct {
	uuider    myuuid.RealUUIDer
	keyID     string
	keySecret string
	Store     *mystore.InMemoryStore[fakeGatewayOrder]
}

func NewFakeGatewayAPI(keyID string, keySecret string) *FakeGatewayAPI {
	store, _, _ := mystore.NewInMemoryStore[fakeGatewayOrder](context.Background())
	return &FakeGatewayAPI{
		keyID:     keyID,
		keySecret: keySecret,
		Store:     store,
	}
}

func (f *FakeGatewayAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
		http.NotFound(w, r)
		return
	}
	username, password, ok := r.BasicAuth()
	if !ok || username != f.keyID || password != f.keySecret {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	order := fakeGatewayOrder{}
	err := json.NewDecoder(r.Body).Decode(&order)
	if err != nil || order.Amount <= 0 {
		http.Error(w, "invalid order", http.StatusBadRequest)
		return
	}
	order.ID = "order_" + f.uuider.Create()
	order.Status = "created"
	err = f.Store.Put(r.Context(), order.ID, order)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(order)
}

// Collect captures the payment and signs it the way the hosted collector does.
func (f *FakeGatewayAPI) Collect(c context.Context, gatewayOrder checkoutapi.GatewayOrder) (checkoutapi.VerificationProof, error) {
	order, exists, err := f.Store.Get(c, gatewayOrder.ID)
	if err != nil {
		return checkoutapi.VerificationProof{}, err
	}
	if !exists {
		return checkoutapi.VerificationProof{}, fmt.Errorf("gateway order %s does not exist", gatewayOrder.ID)
	}

	order.Status = "paid"
	err = f.Store.Put(c, order.ID, order)
	if err != nil {
		return checkoutapi.VerificationProof{}, err
	}

	paymentID := "pay_" + f.uuider.Create()
	mac := hmac.New(sha256.New, []byte(f.keySecret))
	mac.Write([]byte(order.ID + "|" + paymentID))

	return checkoutapi.VerificationProof{
		GatewayOrderID:   order.ID,
		GatewayPaymentID: paymentID,
		GatewaySignature: strings.ToLower(hex.EncodeToString(mac.Sum(nil))),
	}, nil
}
