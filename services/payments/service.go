package payments

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/MarcGrol/consultcheckout/lib/myerrors"
	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/lib/mypublisher"
	"github.com/MarcGrol/consultcheckout/lib/mysecret"
	"github.com/MarcGrol/consultcheckout/lib/mystore"
	"github.com/MarcGrol/consultcheckout/lib/mytime"
	"github.com/MarcGrol/consultcheckout/lib/myuuid"
	"github.com/MarcGrol/consultcheckout/lib/myvault"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
	"github.com/MarcGrol/consultcheckout/services/checkoutevents"
)

// errVerification is all a caller learns about a rejected verification.
var errVerification = errors.New("payment verification failed")

type service struct {
	logger          mylog.Logger
	nower           mytime.Nower
	uuider          myuuid.UUIDer
	catalog         *Catalog
	gateway         Gateway
	orderStore      mystore.Store[Order]
	engagementStore mystore.Store[checkoutapi.Engagement]
	vault           myvault.Vault
	publisher       mypublisher.Publisher
	metrics         *metrics
	loginURL        string
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(logger mylog.Logger, nower mytime.Nower, uuider myuuid.UUIDer, catalog *Catalog, gateway Gateway,
	orderStore mystore.Store[Order], engagementStore mystore.Store[checkoutapi.Engagement], vault myvault.Vault,
	publisher mypublisher.Publisher, metrics *metrics, loginURL string) *service {
	return &service{
		logger:          logger,
		nower:           nower,
		uuider:          uuider,
		catalog:         catalog,
		gateway:         gateway,
		orderStore:      orderStore,
		engagementStore: engagementStore,
		vault:           vault,
		publisher:       publisher,
		metrics:         metrics,
		loginURL:        loginURL,
	}
}

func (s *service) validateCoupon(c context.Context, req checkoutapi.ValidateCouponRequest) checkoutapi.CouponValidationResult {
	result := s.catalog.CheckCoupon(req.Code, req.ServiceCode, s.nower.Now())

	label := "valid"
	if !result.Valid {
		label = "invalid"
	}
	s.metrics.couponsValidated.WithLabelValues(label).Inc()

	s.logger.Log(c, req.Code, mylog.SeverityInfo, "Coupon %s for service %s: valid=%v", req.Code, req.ServiceCode, result.Valid)

	return result
}

// createOrder prices the request against the catalog; the amounts sent by the client are not trusted.
func (s *service) createOrder(c context.Context, req checkoutapi.CreateOrderRequest) (checkoutapi.CreateOrderData, error) {
	err := validateOrderRequest(req)
	if err != nil {
		return checkoutapi.CreateOrderData{}, err
	}

	catalogService, found := s.catalog.Service(req.ServiceCode)
	if !found {
		return checkoutapi.CreateOrderData{}, myerrors.NewInvalidInputErrorf("unknown service %s", req.ServiceCode)
	}
	if !strings.EqualFold(catalogService.Currency, req.Currency) {
		return checkoutapi.CreateOrderData{}, myerrors.NewInvalidInputErrorf("service %s is sold in %s", catalogService.Code, catalogService.Currency)
	}

	now := s.nower.Now()

	discount := int64(0)
	couponCode := strings.ToUpper(strings.TrimSpace(req.CouponCode))
	if couponCode != "" {
		result := s.catalog.CheckCoupon(couponCode, catalogService.Code, now)
		if !result.Valid {
			return checkoutapi.CreateOrderData{}, myerrors.NewInvalidInputError(errors.New(result.Message))
		}
		discount = result.DiscountOn(catalogService.Amount)
	}

	orderID := s.uuider.Create()
	order := Order{
		OrderID:        orderID,
		Receipt:        receiptFor(orderID),
		Status:         checkoutapi.OrderStatusPending,
		Amount:         catalogService.Amount,
		DiscountAmount: discount,
		FinalAmount:    catalogService.Amount - discount,
		Currency:       catalogService.Currency,
		CouponCode:     couponCode,
		ServiceCode:    catalogService.Code,
		ServiceName:    catalogService.Name,
		Email:          strings.TrimSpace(req.Email),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Company:        req.Company,
		Phone:          req.Phone,
		Designation:    req.Metadata["designation"],
		CompanySize:    req.Metadata["size"],
		Website:        req.Metadata["website"],
		Provider:       s.gateway.Name(),
		CreatedAt:      now,
	}

	s.logger.Log(c, orderID, mylog.SeverityInfo, "Create order %s for service %s: %d - %d %s", orderID, order.ServiceCode, order.Amount, order.DiscountAmount, order.Currency)

	gatewayOrder, err := s.gateway.CreateOrder(c, order)
	if err != nil {
		s.logger.Log(c, orderID, mylog.SeverityError, "Error creating %s gateway order: %s", s.gateway.Name(), err)
		return checkoutapi.CreateOrderData{}, myerrors.NewBadGatewayError(fmt.Errorf("payment provider could not create order"))
	}
	order.GatewayOrderID = gatewayOrder.ID
	order.GatewayKeyID = gatewayOrder.KeyID
	order.ClientSecret = gatewayOrder.ClientSecret
	order.CheckoutURL = gatewayOrder.CheckoutURL

	err = s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		err := s.orderStore.Put(c, orderID, order)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing order: %s", err))
		}

		err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.OrderCreated{
			OrderID:        order.OrderID,
			Receipt:        order.Receipt,
			Provider:       order.Provider,
			GatewayOrderID: order.GatewayOrderID,
			ServiceCode:    order.ServiceCode,
			CouponCode:     order.CouponCode,
			Amount:         order.Amount,
			DiscountAmount: order.DiscountAmount,
			FinalAmount:    order.FinalAmount,
			Currency:       order.Currency,
			Email:          order.Email,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return checkoutapi.CreateOrderData{}, err
	}

	s.metrics.ordersCreated.WithLabelValues(order.Provider).Inc()

	s.logger.Log(c, orderID, mylog.SeverityInfo, "Created order %s with gateway order %s", orderID, order.GatewayOrderID)

	return checkoutapi.CreateOrderData{
		Order:        order.toAPI(),
		GatewayOrder: order.gatewayOrder(),
	}, nil
}

func validateOrderRequest(req checkoutapi.CreateOrderRequest) error {
	missing := []string{}
	if strings.TrimSpace(req.ServiceCode) == "" {
		missing = append(missing, "serviceCode")
	}
	if strings.TrimSpace(req.Currency) == "" {
		missing = append(missing, "currency")
	}
	if req.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return myerrors.NewInvalidInputErrorf("missing or invalid fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func receiptFor(orderID string) string {
	compact := strings.ReplaceAll(orderID, "-", "")
	if len(compact) > 20 {
		compact = compact[:20]
	}
	return "rcpt_" + compact
}

// verifyPayment settles the order the proof refers to. Every rejection looks the same to the caller.
func (s *service) verifyPayment(c context.Context, proof checkoutapi.VerificationProof) (checkoutapi.VerifyPaymentResponse, error) {
	if proof.GatewayOrderID == "" || proof.GatewayPaymentID == "" || proof.GatewaySignature == "" {
		s.metrics.verifications.WithLabelValues("incomplete").Inc()
		return checkoutapi.VerifyPaymentResponse{}, myerrors.NewInvalidInputError(errVerification)
	}

	orders, err := s.orderStore.Query(c, []mystore.Filter{{Field: "GatewayOrderID", Compare: "=", Value: proof.GatewayOrderID}}, "")
	if err != nil {
		return checkoutapi.VerifyPaymentResponse{}, myerrors.NewInternalError(fmt.Errorf("error looking up order: %s", err))
	}
	if len(orders) != 1 {
		s.logger.Log(c, proof.GatewayOrderID, mylog.SeverityWarn, "Verification for unknown gateway order %s", proof.GatewayOrderID)
		return checkoutapi.VerifyPaymentResponse{}, s.rejectVerification(c, Order{GatewayOrderID: proof.GatewayOrderID}, proof, checkoutevents.VerificationFailureUnknownOrder)
	}
	order := orders[0]

	if order.Status != checkoutapi.OrderStatusPending {
		s.logger.Log(c, order.OrderID, mylog.SeverityWarn, "Verification for order %s with status %s", order.OrderID, order.Status)
		return checkoutapi.VerifyPaymentResponse{}, s.rejectVerification(c, order, proof, checkoutevents.VerificationFailureAlreadySettled)
	}

	err = s.gateway.Verify(c, order, proof)
	if err != nil {
		if errors.Is(err, ErrPaymentRejected) {
			// the order stays pending: a forged proof must not be able to fail a genuine payment
			s.logger.Log(c, order.OrderID, mylog.SeverityWarn, "Payment proof for order %s rejected by %s", order.OrderID, order.Provider)
			return checkoutapi.VerifyPaymentResponse{}, s.rejectVerification(c, order, proof, checkoutevents.VerificationFailureRejected)
		}
		s.metrics.verifications.WithLabelValues("unavailable").Inc()
		s.logger.Log(c, order.OrderID, mylog.SeverityError, "Error verifying order %s with %s: %s", order.OrderID, order.Provider, err)
		return checkoutapi.VerifyPaymentResponse{}, myerrors.NewBadGatewayError(errVerification)
	}

	password, err := mysecret.NewTemporaryPassword()
	if err != nil {
		return checkoutapi.VerifyPaymentResponse{}, myerrors.NewInternalError(err)
	}
	passwordHash, err := mysecret.HashPassword(password)
	if err != nil {
		return checkoutapi.VerifyPaymentResponse{}, myerrors.NewInternalError(err)
	}
	engagementID := s.uuider.Create()
	now := s.nower.Now()

	resp := checkoutapi.VerifyPaymentResponse{}
	err = s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		current, found, err := s.orderStore.Get(c, order.OrderID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching order: %s", err))
		}
		if !found || current.Status != checkoutapi.OrderStatusPending {
			// settled by a concurrent verification
			return myerrors.NewInvalidInputError(errVerification)
		}

		current.Status = checkoutapi.OrderStatusPaid
		current.PaymentID = proof.GatewayPaymentID
		current.Signature = proof.GatewaySignature
		current.PaidAt = &now
		current.EngagementID = engagementID
		err = s.orderStore.Put(c, current.OrderID, current)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing order: %s", err))
		}

		engagement := checkoutapi.Engagement{
			ID:          engagementID,
			OrderID:     current.OrderID,
			ServiceCode: current.ServiceCode,
			ServiceName: current.ServiceName,
			Email:       current.Email,
			Company:     current.Company,
			Status:      checkoutapi.EngagementStatusActive,
			CreatedAt:   now,
		}
		err = s.engagementStore.Put(c, engagementID, engagement)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing engagement: %s", err))
		}

		credentials, err := s.provisionAccount(c, current.Email, engagementID, password, passwordHash, now)
		if err != nil {
			return err
		}

		err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.PaymentVerified{
			OrderID:        current.OrderID,
			Provider:       current.Provider,
			GatewayOrderID: current.GatewayOrderID,
			PaymentID:      current.PaymentID,
			FinalAmount:    current.FinalAmount,
			Currency:       current.Currency,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.EngagementProvisioned{
			EngagementID: engagementID,
			OrderID:      current.OrderID,
			ServiceCode:  current.ServiceCode,
			Email:        current.Email,
			Company:      current.Company,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		resp = checkoutapi.VerifyPaymentResponse{
			Order:       current.toAPI(),
			Engagement:  &engagement,
			Credentials: credentials,
		}

		return nil
	})
	if err != nil {
		s.metrics.verifications.WithLabelValues("failed").Inc()
		return checkoutapi.VerifyPaymentResponse{}, err
	}

	s.metrics.verifications.WithLabelValues("verified").Inc()

	s.logger.Log(c, order.OrderID, mylog.SeverityInfo, "Order %s paid, engagement %s provisioned", order.OrderID, engagementID)

	return resp, nil
}

// provisionAccount creates the portal login for email. An existing login keeps its password,
// so no credentials are returned for it.
func (s *service) provisionAccount(c context.Context, email string, engagementID string, password string, passwordHash string, now time.Time) (*checkoutapi.Credentials, error) {
	accountUID := strings.ToLower(email)

	_, exists, err := s.vault.Get(c, accountUID)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching account: %s", err))
	}
	if exists {
		s.logger.Log(c, engagementID, mylog.SeverityInfo, "Engagement %s added to existing account", engagementID)
		return nil, nil
	}

	err = s.vault.Put(c, accountUID, myvault.Account{
		Email:              email,
		EngagementID:       engagementID,
		PasswordHash:       passwordHash,
		MustChangePassword: true,
		CreatedAt:          now,
	})
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error storing account: %s", err))
	}

	return &checkoutapi.Credentials{
		Email:    email,
		Password: password,
		LoginURL: s.loginURL,
	}, nil
}

func (s *service) rejectVerification(c context.Context, order Order, proof checkoutapi.VerificationProof, reason checkoutevents.VerificationFailureReason) error {
	s.metrics.verifications.WithLabelValues(string(reason)).Inc()

	err := s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.PaymentVerificationFailed{
		OrderID:          order.OrderID,
		GatewayOrderID:   proof.GatewayOrderID,
		GatewayPaymentID: proof.GatewayPaymentID,
		Reason:           reason,
	})
	if err != nil {
		s.logger.Log(c, proof.GatewayOrderID, mylog.SeverityError, "Error publishing verification failure: %s", err)
	}

	return myerrors.NewInvalidInputError(errVerification)
}
