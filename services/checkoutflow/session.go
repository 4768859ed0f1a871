package checkoutflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

type FailureReason string

const (
	FailureCancelled          FailureReason = "cancelled"
	FailureVerification       FailureReason = "verification_failed"
	FailureGatewayUnavailable FailureReason = "gateway_unavailable"
	FailureOrder              FailureReason = "order_failed"
)

// Routes are the external pages a checkout ends on.
type Routes struct {
	SuccessURL string
	FailureURL string
}

func (r Routes) Success() string {
	return r.SuccessURL
}

func (r Routes) Failure(reason FailureReason) string {
	u, err := url.Parse(r.FailureURL)
	if err != nil {
		return r.FailureURL
	}
	params := u.Query()
	params.Set("reason", string(reason))
	u.RawQuery = params.Encode()

	return u.String()
}

func FailureReasonFor(err error) FailureReason {
	switch {
	case errors.Is(err, ErrGatewayUnavailable):
		return FailureGatewayUnavailable
	case errors.Is(err, ErrOrderCreation):
		return FailureOrder
	default:
		return FailureVerification
	}
}

type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "succeeded"
	PaymentCancelled PaymentOutcome = "cancelled"
	PaymentFailed    PaymentOutcome = "failed"
)

type PaymentResult struct {
	Outcome      PaymentOutcome `json:"outcome"`
	OrderID      string         `json:"orderId,omitempty"`
	EngagementID string         `json:"engagementId,omitempty"`
	RedirectURL  string         `json:"redirectUrl"`
}

// Session drives one checkout from contact details to provisioned credentials.
// Network bound steps of a session never overlap.
type Session struct {
	UID      string
	form     *Controller
	coupons  *CouponValidator
	orders   *OrderOrchestrator
	gateway  *Gateway
	verifier *Verifier
	handoff  *Handoff
	routes   Routes
	logger   mylog.Logger
	busy     sync.Mutex
}

func NewSession(uid string, initial checkoutapi.ApplicationFormData, api PaymentsAPI, gateway *Gateway, routes Routes, logger mylog.Logger) *Session {
	form := NewController(initial)
	return &Session{
		UID:      uid,
		form:     form,
		coupons:  NewCouponValidator(api, form, logger),
		orders:   NewOrderOrchestrator(api, form, logger),
		gateway:  gateway,
		verifier: NewVerifier(api, logger),
		handoff:  &Handoff{},
		routes:   routes,
		logger:   logger,
	}
}

func (s *Session) Form() *Controller {
	return s.form
}

func (s *Session) Handoff() *Handoff {
	return s.handoff
}

func (s *Session) Routes() Routes {
	return s.routes
}

func (s *Session) ValidateCoupon(c context.Context, code string) (checkoutapi.CouponValidationResult, error) {
	if !s.busy.TryLock() {
		return checkoutapi.CouponValidationResult{}, ErrStepInProgress
	}
	defer s.busy.Unlock()

	if step := s.form.Step(); step != StepCoupon {
		return checkoutapi.CouponValidationResult{}, fmt.Errorf("%w: coupons are applied at step %s, not %s", ErrInvalidTransition, StepCoupon, step)
	}

	return s.coupons.Validate(c, code)
}

// Pay runs the payment step: load the collector, get the order, collect, verify.
// A dismissed collector is not an error; the session stays at the payment step.
func (s *Session) Pay(c context.Context) (PaymentResult, error) {
	if !s.busy.TryLock() {
		return PaymentResult{}, ErrStepInProgress
	}
	defer s.busy.Unlock()

	err := s.form.beginPayment()
	if err != nil {
		return PaymentResult{}, err
	}
	defer s.form.endPayment()

	script, err := s.gateway.Prepare(c)
	if err != nil {
		s.logger.Log(c, s.UID, mylog.SeverityError, "Collector unavailable: %s", err)
		return s.failed(FailureGatewayUnavailable, ""), err
	}

	ref, err := s.orders.CreateOrder(c)
	if err != nil {
		return PaymentResult{}, err
	}

	outcome, err := s.gateway.Collect(c, script, s.form.FormData(), ref)
	if err != nil {
		s.logger.Log(c, s.UID, mylog.SeverityError, "Error collecting payment for order %s: %s", ref.OrderID, err)
		return PaymentResult{}, err
	}
	if outcome.Cancelled {
		s.logger.Log(c, s.UID, mylog.SeverityInfo, "Payment for order %s cancelled", ref.OrderID)
		return PaymentResult{
			Outcome:     PaymentCancelled,
			OrderID:     ref.OrderID,
			RedirectURL: s.routes.Failure(FailureCancelled),
		}, nil
	}

	confirmation, err := s.verifier.Verify(c, ref, outcome.Proof)
	if err != nil {
		return s.failed(FailureVerification, ref.OrderID), err
	}

	err = s.form.complete(confirmation)
	if err != nil {
		s.logger.Log(c, s.UID, mylog.SeverityError, "Error completing checkout for order %s: %s", ref.OrderID, err)
		return s.failed(FailureVerification, ref.OrderID), err
	}
	s.handoff.store(confirmation)

	result := PaymentResult{
		Outcome:     PaymentSucceeded,
		OrderID:     ref.OrderID,
		RedirectURL: s.routes.Success(),
	}
	if confirmation.Engagement() != nil {
		result.EngagementID = confirmation.Engagement().ID
	}

	s.logger.Log(c, s.UID, mylog.SeverityInfo, "Checkout completed with order %s", ref.OrderID)

	return result, nil
}

func (s *Session) failed(reason FailureReason, orderID string) PaymentResult {
	return PaymentResult{
		Outcome:     PaymentFailed,
		OrderID:     orderID,
		RedirectURL: s.routes.Failure(reason),
	}
}
