package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MarcGrol/consultcheckout/lib/myauth"
	"github.com/MarcGrol/consultcheckout/lib/mycontext"
	"github.com/MarcGrol/consultcheckout/lib/myerrors"
	"github.com/MarcGrol/consultcheckout/lib/myhttp"
	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/lib/mypublisher"
	"github.com/MarcGrol/consultcheckout/lib/myratelimit"
	"github.com/MarcGrol/consultcheckout/lib/mystore"
	"github.com/MarcGrol/consultcheckout/lib/mytime"
	"github.com/MarcGrol/consultcheckout/lib/myuuid"
	"github.com/MarcGrol/consultcheckout/lib/myvault"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

const maxRequestSize = 64 * 1024

type WebService struct {
	logger        mylog.Logger
	service       *service
	issuer        *myauth.Issuer
	couponLimiter *myratelimit.Limiter
	gatherer      prometheus.Gatherer
}

type Options struct {
	Catalog                  *Catalog
	Gateway                  Gateway
	Issuer                   *myauth.Issuer
	Registry                 *prometheus.Registry
	CouponRateLimitPerMinute int
	LoginURL                 string
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(options Options, nower mytime.Nower, uuider myuuid.UUIDer, orderStore mystore.Store[Order],
	engagementStore mystore.Store[checkoutapi.Engagement], vault myvault.Vault, publisher mypublisher.Publisher) (*WebService, error) {
	logger := mylog.New("payments")

	m, err := newMetrics(options.Registry)
	if err != nil {
		return nil, fmt.Errorf("error registering metrics: %s", err)
	}

	return &WebService{
		logger:        logger,
		service:       newService(logger, nower, uuider, options.Catalog, options.Gateway, orderStore, engagementStore, vault, publisher, m, options.LoginURL),
		issuer:        options.Issuer,
		couponLimiter: myratelimit.NewPerMinute(options.CouponRateLimitPerMinute, 0),
		gatherer:      options.Registry,
	}, nil
}

func (s *WebService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	subRouter := router.PathPrefix("/payments").Subrouter()
	subRouter.Use(s.issuer.Middleware(s.logger))

	subRouter.HandleFunc("/validate-coupon", s.validateCoupon()).Methods("POST")
	subRouter.HandleFunc("/create-order", s.createOrder()).Methods("POST")
	subRouter.HandleFunc("/verify", s.verifyPayment()).Methods("POST")

	router.Handle("/metrics", metricsHandler(s.gatherer)).Methods("GET")

	return nil
}

func (s *WebService) validateCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		if !s.couponLimiter.Allow(myhttp.ClientIP(r), s.service.nower.Now()) {
			errorWriter.WriteError(c, w, 1, myerrors.NewTooManyRequestsError(fmt.Errorf("too many coupon attempts, try again later")))
			return
		}

		req := checkoutapi.ValidateCouponRequest{}
		err := decodeJSON(r, &req)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		result := s.service.validateCoupon(c, req)

		errorWriter.Write(c, w, http.StatusOK, result)
	}
}

func (s *WebService) createOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := checkoutapi.CreateOrderRequest{}
		err := decodeJSON(r, &req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		data, err := s.service.createOrder(c, req)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusCreated, checkoutapi.CreateOrderResponse{
			Success: true,
			Data:    &data,
		})
	}
}

func (s *WebService) verifyPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		proof := checkoutapi.VerificationProof{}
		err := decodeJSON(r, &proof)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		resp, err := s.service.verifyPayment(c, proof)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, resp)
	}
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestSize))
	err := decoder.Decode(target)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error parsing request body: %s", err))
	}
	return nil
}
