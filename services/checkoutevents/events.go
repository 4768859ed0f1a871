package checkoutevents

const (
	TopicName                 = "payment"
	orderCreatedName          = TopicName + ".orderCreated"
	paymentVerifiedName       = TopicName + ".verified"
	verificationFailedName    = TopicName + ".verificationFailed"
	engagementProvisionedName = TopicName + ".engagementProvisioned"
)

type OrderCreated struct {
	OrderID        string
	Receipt        string
	Provider       string
	GatewayOrderID string
	ServiceCode    string
	CouponCode     string
	Amount         int64
	DiscountAmount int64
	FinalAmount    int64
	Currency       string
	Email          string
}

func (e OrderCreated) GetEventTypeName() string {
	return orderCreatedName
}

func (e OrderCreated) GetAggregateName() string {
	return e.OrderID
}

type PaymentVerified struct {
	OrderID        string
	Provider       string
	GatewayOrderID string
	PaymentID      string
	FinalAmount    int64
	Currency       string
}

func (e PaymentVerified) GetEventTypeName() string {
	return paymentVerifiedName
}

func (e PaymentVerified) GetAggregateName() string {
	return e.OrderID
}

type VerificationFailureReason string

const (
	VerificationFailureUnknownOrder   VerificationFailureReason = "unknown-order"
	VerificationFailureAlreadySettled VerificationFailureReason = "already-settled"
	VerificationFailureRejected       VerificationFailureReason = "rejected"
)

type PaymentVerificationFailed struct {
	OrderID          string
	GatewayOrderID   string
	GatewayPaymentID string
	Reason           VerificationFailureReason
}

func (e PaymentVerificationFailed) GetEventTypeName() string {
	return verificationFailedName
}

func (e PaymentVerificationFailed) GetAggregateName() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.GatewayOrderID
}

type EngagementProvisioned struct {
	EngagementID string
	OrderID      string
	ServiceCode  string
	Email        string
	Company      string
}

func (e EngagementProvisioned) GetEventTypeName() string {
	return engagementProvisionedName
}

func (e EngagementProvisioned) GetAggregateName() string {
	return e.EngagementID
}
