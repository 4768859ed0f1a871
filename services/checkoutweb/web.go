package checkoutweb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/consultcheckout/lib/mycontext"
	"github.com/MarcGrol/consultcheckout/lib/myerrors"
	"github.com/MarcGrol/consultcheckout/lib/myhttp"
	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/lib/mystore"
	"github.com/MarcGrol/consultcheckout/lib/mytime"
	"github.com/MarcGrol/consultcheckout/lib/myuuid"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
	"github.com/MarcGrol/consultcheckout/services/checkoutflow"
)

const (
	maxRequestSize     = 64 * 1024
	defaultOpenTimeout = 30 * time.Second
	defaultIdleTimeout = 24 * time.Hour
)

type Options struct {
	MerchantName string
	ThemeColor   string
	Routes       checkoutflow.Routes
	// OpenTimeout bounds how long starting a payment waits for the collector to open.
	OpenTimeout time.Duration
	// IdleTimeout is how long a session survives without requests. It also bounds a payment run.
	IdleTimeout time.Duration
}

// SessionView is what the page needs to render the current step.
type SessionView struct {
	UID    string                              `json:"uid"`
	Step   checkoutflow.Step                   `json:"step"`
	Form   checkoutapi.ApplicationFormData     `json:"form"`
	Errors checkoutflow.FieldErrors            `json:"errors,omitempty"`
	Coupon *checkoutapi.CouponValidationResult `json:"coupon,omitempty"`
}

type WebService struct {
	logger   mylog.Logger
	nower    mytime.Nower
	uuider   myuuid.UUIDer
	api      checkoutflow.PaymentsAPI
	loader   *checkoutflow.ScriptLoader
	sessions *mystore.InMemoryStore[*checkoutSession]
	options  Options
}

// Sessions hold credentials in memory, so they are never written to a durable store.
func NewWebService(c context.Context, options Options, nower mytime.Nower, uuider myuuid.UUIDer, api checkoutflow.PaymentsAPI, loader *checkoutflow.ScriptLoader) (*WebService, error) {
	sessions, _, err := mystore.NewInMemoryStore[*checkoutSession](c)
	if err != nil {
		return nil, fmt.Errorf("error creating session store: %s", err)
	}
	if options.OpenTimeout <= 0 {
		options.OpenTimeout = defaultOpenTimeout
	}
	if options.IdleTimeout <= 0 {
		options.IdleTimeout = defaultIdleTimeout
	}

	return &WebService{
		logger:   mylog.New("checkoutweb"),
		nower:    nower,
		uuider:   uuider,
		api:      api,
		loader:   loader,
		sessions: sessions,
		options:  options,
	}, nil
}

func (s *WebService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/checkout/session", s.createSession()).Methods("POST")
	router.HandleFunc("/checkout/session/{sessionUID}", s.getSession()).Methods("GET")
	router.HandleFunc("/checkout/session/{sessionUID}", s.abandonSession()).Methods("DELETE")
	router.HandleFunc("/checkout/session/{sessionUID}/form", s.updateForm()).Methods("PUT")
	router.HandleFunc("/checkout/session/{sessionUID}/next", s.nextStep()).Methods("POST")
	router.HandleFunc("/checkout/session/{sessionUID}/prev", s.prevStep()).Methods("POST")
	router.HandleFunc("/checkout/session/{sessionUID}/coupon", s.applyCoupon()).Methods("POST")
	router.HandleFunc("/checkout/session/{sessionUID}/payment", s.startPayment()).Methods("POST")
	router.HandleFunc("/checkout/session/{sessionUID}/payment/callback", s.paymentCallback()).Methods("POST")
	router.HandleFunc("/checkout/session/{sessionUID}/payment/dismiss", s.paymentDismissed()).Methods("POST")
	router.HandleFunc("/checkout/session/{sessionUID}/credentials", s.revealCredentials()).Methods("GET")

	return nil
}

func (s *WebService) createSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		initial, err := checkoutapi.NewFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}
		if strings.TrimSpace(initial.ServiceCode) == "" {
			errorWriter.WriteError(c, w, 2, myerrors.NewInvalidInputErrorf("missing serviceCode"))
			return
		}

		_, err = s.EvictIdleSessions(c)
		if err != nil {
			errorWriter.WriteError(c, w, 3, myerrors.NewInternalError(err))
			return
		}

		sessionUID := s.uuider.Create()
		bridge := checkoutflow.NewBridge()
		gateway := checkoutflow.NewGateway(s.loader, bridge, checkoutflow.GatewayConfig{
			MerchantName: s.options.MerchantName,
			ThemeColor:   s.options.ThemeColor,
			SuccessURL:   fmt.Sprintf("/checkout/session/%s/payment/callback", sessionUID),
			DismissURL:   fmt.Sprintf("/checkout/session/%s/payment/dismiss", sessionUID),
		})
		flow := checkoutflow.NewSession(sessionUID, initial, s.api, gateway, s.options.Routes, s.logger)

		err = s.sessions.Put(c, sessionUID, newCheckoutSession(flow, bridge, s.nower.Now()))
		if err != nil {
			errorWriter.WriteError(c, w, 4, myerrors.NewInternalError(err))
			return
		}

		s.logger.Log(c, sessionUID, mylog.SeverityInfo, "Started checkout session %s for service %s", sessionUID, initial.ServiceCode)

		errorWriter.Write(c, w, http.StatusCreated, viewOf(flow))
	}
}

func (s *WebService) getSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.lookup(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, viewOf(session.flow))
	}
}

func (s *WebService) updateForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.lookup(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		patch, err := checkoutapi.NewFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}
		err = session.flow.Form().UpdateFormData(patch)
		if err != nil {
			errorWriter.WriteError(c, w, 3, asHTTPError(err))
			return
		}

		errorWriter.Write(c, w, http.StatusOK, viewOf(session.flow))
	}
}

func (s *WebService) nextStep() http.HandlerFunc {
	return s.move(func(form *checkoutflow.Controller) (checkoutflow.Step, error) {
		return form.NextStep()
	})
}

func (s *WebService) prevStep() http.HandlerFunc {
	return s.move(func(form *checkoutflow.Controller) (checkoutflow.Step, error) {
		return form.PrevStep()
	})
}

func (s *WebService) move(transition func(form *checkoutflow.Controller) (checkoutflow.Step, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.lookup(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		from := session.flow.Form().Step()
		to, err := transition(session.flow.Form())
		if err != nil {
			fieldErrors := checkoutflow.FieldErrors{}
			if errors.As(err, &fieldErrors) {
				// the page renders the messages next to the fields
				errorWriter.Write(c, w, http.StatusBadRequest, viewOf(session.flow))
				return
			}
			errorWriter.WriteError(c, w, 2, asHTTPError(err))
			return
		}

		s.logger.Log(c, session.flow.UID, mylog.SeverityInfo, "Session %s moved from %s to %s", session.flow.UID, from, to)

		errorWriter.Write(c, w, http.StatusOK, viewOf(session.flow))
	}
}

func (s *WebService) applyCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.lookup(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		result, err := session.flow.ValidateCoupon(c, r.FormValue("code"))
		if err != nil && !errors.Is(err, checkoutflow.ErrCouponUnavailable) {
			errorWriter.WriteError(c, w, 2, asHTTPError(err))
			return
		}

		view := viewOf(session.flow)
		if err == nil {
			view.Coupon = &result
		}
		errorWriter.Write(c, w, http.StatusOK, view)
	}
}

// startPayment answers once the collector is open, with what the page needs to render it.
// The payment itself continues until a callback, a dismiss, or an abandon resolves it.
func (s *WebService) startPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.lookup(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		run, err := session.startPayment(s.options.IdleTimeout)
		if err != nil {
			errorWriter.WriteError(c, w, 2, asHTTPError(err))
			return
		}

		timer := time.NewTimer(s.options.OpenTimeout)
		defer timer.Stop()

		select {
		case opened := <-session.bridge.Opened():
			errorWriter.Write(c, w, http.StatusOK, opened)
		case <-run.done:
			if run.err != nil {
				errorWriter.WriteError(c, w, 3, asHTTPError(run.err))
				return
			}
			errorWriter.Write(c, w, http.StatusOK, run.result)
		case <-timer.C:
			run.cancel()
			errorWriter.WriteError(c, w, 4, myerrors.NewUnavailableError(checkoutflow.ErrGatewayUnavailable))
		case <-c.Done():
			// nobody is left to show the collector to
			run.cancel()
		}
	}
}

func (s *WebService) paymentCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.lookup(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		proof := checkoutapi.VerificationProof{}
		err = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(&proof)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInvalidInputError(fmt.Errorf("error parsing payment result: %s", err)))
			return
		}

		s.resolvePayment(c, w, r, session, func() error {
			return session.bridge.Succeed(proof)
		})
	}
}

func (s *WebService) paymentDismissed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.lookup(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		s.resolvePayment(c, w, r, session, session.bridge.Dismiss)
	}
}

// resolvePayment hands the gateway callback to the waiting payment and redirects to where it ended.
func (s *WebService) resolvePayment(c context.Context, w http.ResponseWriter, r *http.Request, session *checkoutSession, resolve func() error) {
	errorWriter := myhttp.NewWriter(s.logger)

	run := session.currentRun()
	if run == nil {
		errorWriter.WriteError(c, w, 3, asHTTPError(checkoutflow.ErrNoPendingPayment))
		return
	}

	err := resolve()
	if err != nil {
		errorWriter.WriteError(c, w, 4, asHTTPError(err))
		return
	}

	if !run.wait(c) {
		return
	}

	redirectURL := run.result.RedirectURL
	if run.err != nil {
		s.logger.Log(c, session.flow.UID, mylog.SeverityWarn, "Payment of session %s failed: %s", session.flow.UID, run.err)
		if redirectURL == "" {
			redirectURL = session.flow.Routes().Failure(checkoutflow.FailureReasonFor(run.err))
		}
	}

	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

func (s *WebService) revealCredentials() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.lookup(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")

		details, found := session.flow.Handoff().Reveal()
		if !found {
			errorWriter.WriteError(c, w, 2, myerrors.NewNotFoundError(fmt.Errorf("no credentials available")))
			return
		}

		s.logger.Log(c, session.flow.UID, mylog.SeverityInfo, "Credentials of engagement %s revealed", details.EngagementID)

		errorWriter.Write(c, w, http.StatusOK, details)
	}
}

func (s *WebService) abandonSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.lookup(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		session.abandon()

		err = s.sessions.Delete(c, session.flow.UID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInternalError(err))
			return
		}

		s.logger.Log(c, session.flow.UID, mylog.SeverityInfo, "Session %s abandoned", session.flow.UID)

		w.WriteHeader(http.StatusNoContent)
	}
}

// EvictIdleSessions removes sessions without requests for longer than the idle timeout.
// A payment still waiting for the collector resolves as cancelled.
func (s *WebService) EvictIdleSessions(c context.Context) (int, error) {
	sessions, err := s.sessions.List(c)
	if err != nil {
		return 0, fmt.Errorf("error listing sessions: %s", err)
	}

	cutoff := s.nower.Now().Add(-s.options.IdleTimeout)
	evicted := 0
	for _, session := range sessions {
		if !session.idleSince(cutoff) {
			continue
		}
		session.abandon()
		err = s.sessions.Delete(c, session.flow.UID)
		if err != nil {
			return evicted, fmt.Errorf("error evicting session %s: %s", session.flow.UID, err)
		}
		evicted++
		s.logger.Log(c, session.flow.UID, mylog.SeverityInfo, "Session %s evicted after being idle", session.flow.UID)
	}

	return evicted, nil
}

// RunEviction evicts idle sessions every interval until c is done.
func (s *WebService) RunEviction(c context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Done():
			return
		case <-ticker.C:
			_, err := s.EvictIdleSessions(c)
			if err != nil {
				s.logger.Log(c, "", mylog.SeverityError, "Error evicting idle sessions: %s", err)
			}
		}
	}
}

func (s *WebService) lookup(c context.Context, r *http.Request) (*checkoutSession, error) {
	sessionUID := mux.Vars(r)["sessionUID"]

	session, found, err := s.sessions.Get(c, sessionUID)
	if err != nil {
		return nil, myerrors.NewInternalError(err)
	}
	if !found {
		return nil, myerrors.NewNotFoundError(fmt.Errorf("checkout session %s not found", sessionUID))
	}
	session.touch(s.nower.Now())

	return session, nil
}

func viewOf(flow *checkoutflow.Session) SessionView {
	view := SessionView{
		UID:  flow.UID,
		Step: flow.Form().Step(),
		Form: flow.Form().FormData(),
	}
	if errs := flow.Form().Errors(); len(errs) > 0 {
		view.Errors = errs
	}
	return view
}

func asHTTPError(err error) error {
	fieldErrors := checkoutflow.FieldErrors{}
	switch {
	case errors.As(err, &fieldErrors):
		return myerrors.NewInvalidInputError(err)
	case errors.Is(err, checkoutflow.ErrGatewayUnavailable), errors.Is(err, checkoutflow.ErrCouponUnavailable):
		return myerrors.NewUnavailableError(err)
	case errors.Is(err, checkoutflow.ErrOrderCreation):
		return myerrors.NewBadGatewayError(err)
	case errors.Is(err, checkoutflow.ErrVerificationFailed):
		return myerrors.NewInvalidInputError(err)
	case errors.Is(err, checkoutflow.ErrStepInProgress), errors.Is(err, checkoutflow.ErrInvalidTransition),
		errors.Is(err, checkoutflow.ErrNoPendingPayment), errors.Is(err, checkoutflow.ErrAlreadyResolved):
		return myerrors.NewConflictError(err)
	default:
		return myerrors.NewInternalError(err)
	}
}
