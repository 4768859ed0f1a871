package checkoutflow

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

type Step string

const (
	StepContact Step = "contact"
	StepCompany Step = "company"
	StepCoupon  Step = "coupon"
	StepPayment Step = "payment"
	StepSuccess Step = "success"
)

var (
	steps        = []Step{StepContact, StepCompany, StepCoupon, StepPayment, StepSuccess}
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func (s Step) index() int {
	for i, step := range steps {
		if step == s {
			return i
		}
	}
	return -1
}

type orderRecord struct {
	reference   OrderReference
	fingerprint string
}

// Controller owns the step machine and the accumulated form data of one checkout session.
// It never talks to the network.
type Controller struct {
	sync.Mutex
	step          Step
	data          checkoutapi.ApplicationFormData
	couponApplied bool
	errors        FieldErrors
	order         *orderRecord
	// paying holds the step at payment while the collector may still report a result
	paying bool
}

func NewController(initial checkoutapi.ApplicationFormData) *Controller {
	c := &Controller{
		step:   StepContact,
		errors: FieldErrors{},
	}
	c.merge(initial)
	return c
}

func (c *Controller) Step() Step {
	c.Lock()
	defer c.Unlock()

	return c.step
}

func (c *Controller) FormData() checkoutapi.ApplicationFormData {
	c.Lock()
	defer c.Unlock()

	return c.data
}

func (c *Controller) Errors() FieldErrors {
	c.Lock()
	defer c.Unlock()

	return c.errors.copy()
}

// UpdateFormData merges the non-empty user editable fields of patch.
// Discount and order references are owned by the other components and are ignored here.
func (c *Controller) UpdateFormData(patch checkoutapi.ApplicationFormData) error {
	c.Lock()
	defer c.Unlock()

	if c.paying {
		return fmt.Errorf("%w: form cannot change while paying", ErrStepInProgress)
	}
	c.merge(patch)

	return nil
}

// merge does the work of UpdateFormData; caller holds the lock.
func (c *Controller) merge(patch checkoutapi.ApplicationFormData) {
	d := &c.data
	mergeString(&d.Email, patch.Email)
	mergeString(&d.FirstName, patch.FirstName)
	mergeString(&d.LastName, patch.LastName)
	mergeString(&d.Phone, patch.Phone)
	mergeString(&d.Company, patch.Company)
	mergeString(&d.Designation, patch.Designation)
	mergeString(&d.Website, patch.Website)
	mergeString(&d.Size, patch.Size)

	pricedBefore := [3]string{d.ServiceCode, d.Currency, fmt.Sprint(d.Amount)}
	mergeString(&d.ServiceCode, patch.ServiceCode)
	mergeString(&d.ServiceName, patch.ServiceName)
	mergeString(&d.Currency, patch.Currency)
	if patch.Amount > 0 {
		d.Amount = patch.Amount
	}
	pricedAfter := [3]string{d.ServiceCode, d.Currency, fmt.Sprint(d.Amount)}

	codeChanged := patch.CouponCode != "" && !strings.EqualFold(strings.TrimSpace(patch.CouponCode), d.CouponCode)
	if codeChanged || pricedBefore != pricedAfter {
		// a discount only holds for the code and price it was validated against
		c.resetCoupon()
	}
	if codeChanged {
		d.CouponCode = normalizeCouponCode(patch.CouponCode)
	}
}

func mergeString(target *string, value string) {
	value = strings.TrimSpace(value)
	if value != "" {
		*target = value
	}
}

// NextStep advances when the current step is complete, otherwise it returns the field errors and stays.
func (c *Controller) NextStep() (Step, error) {
	c.Lock()
	defer c.Unlock()

	switch c.step {
	case StepPayment:
		return c.step, fmt.Errorf("%w: success requires a verified payment", ErrInvalidTransition)
	case StepSuccess:
		return c.step, fmt.Errorf("%w: checkout already completed", ErrInvalidTransition)
	}

	errs := c.validate(c.step)
	if len(errs) > 0 {
		c.errors = errs
		return c.step, errs
	}

	c.errors = FieldErrors{}
	c.step = steps[c.step.index()+1]

	return c.step, nil
}

// PrevStep goes back one step without touching the form data. The first step is the floor.
func (c *Controller) PrevStep() (Step, error) {
	c.Lock()
	defer c.Unlock()

	if c.step == StepSuccess {
		return c.step, fmt.Errorf("%w: checkout already completed", ErrInvalidTransition)
	}
	if c.paying {
		return c.step, fmt.Errorf("%w: payment has not finished", ErrStepInProgress)
	}
	if c.step != StepContact {
		c.step = steps[c.step.index()-1]
	}
	c.errors = FieldErrors{}

	return c.step, nil
}

func (c *Controller) validate(step Step) FieldErrors {
	d := c.data
	errs := FieldErrors{}

	switch step {
	case StepContact:
		if d.Email == "" {
			errs["email"] = "Email is required"
		} else if !emailPattern.MatchString(d.Email) {
			errs["email"] = "Email is invalid"
		}
		if d.FirstName == "" {
			errs["firstName"] = "First name is required"
		}
		if d.LastName == "" {
			errs["lastName"] = "Last name is required"
		}
		if d.Phone == "" {
			errs["phone"] = "Phone is required"
		}
	case StepCompany:
		if d.Company == "" {
			errs["company"] = "Company is required"
		}
		if d.Designation == "" {
			errs["designation"] = "Designation is required"
		}
		if d.Size == "" {
			errs["size"] = "Company size is required"
		}
		if d.Website != "" && !isWebsite(d.Website) {
			errs["website"] = "Website is invalid"
		}
	case StepCoupon:
		// the coupon itself is optional
		if d.ServiceCode == "" {
			errs["serviceCode"] = "Service is required"
		}
		if d.Amount <= 0 {
			errs["amount"] = "Amount is invalid"
		}
		if d.Currency == "" {
			errs["currency"] = "Currency is required"
		}
	}

	return errs
}

func isWebsite(value string) bool {
	u, err := url.ParseRequestURI(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// beginPayment pins the controller to the payment step until endPayment.
func (c *Controller) beginPayment() error {
	c.Lock()
	defer c.Unlock()

	if c.step != StepPayment {
		return fmt.Errorf("%w: payment requires step %s, not %s", ErrInvalidTransition, StepPayment, c.step)
	}
	if c.paying {
		return ErrStepInProgress
	}
	c.paying = true

	return nil
}

func (c *Controller) endPayment() {
	c.Lock()
	defer c.Unlock()

	c.paying = false
}

func (c *Controller) complete(confirmation Confirmation) error {
	c.Lock()
	defer c.Unlock()

	if c.step != StepPayment {
		return fmt.Errorf("%w: cannot complete from step %s", ErrInvalidTransition, c.step)
	}
	if !confirmation.confirmed() || confirmation.Order().OrderID != c.data.OrderID {
		return fmt.Errorf("%w: confirmation does not match this checkout", ErrVerificationFailed)
	}

	c.step = StepSuccess
	c.errors = FieldErrors{}

	return nil
}

func (c *Controller) applyCoupon(code string, discount int64, finalAmount int64) {
	c.Lock()
	defer c.Unlock()

	c.data.CouponCode = code
	c.data.DiscountAmount = discount
	c.data.FinalAmount = finalAmount
	c.couponApplied = true
	delete(c.errors, "couponCode")
}

func (c *Controller) rejectCoupon(message string) {
	c.Lock()
	defer c.Unlock()

	c.data.CouponCode = ""
	c.resetCoupon()
	if message != "" {
		c.errors["couponCode"] = message
	} else {
		delete(c.errors, "couponCode")
	}
}

// resetCoupon drops any discount; caller holds the lock.
func (c *Controller) resetCoupon() {
	c.data.DiscountAmount = 0
	c.data.FinalAmount = c.data.Amount
	c.couponApplied = false
}

// pricing returns the form data together with whether its coupon has been validated.
func (c *Controller) pricing() (checkoutapi.ApplicationFormData, bool) {
	c.Lock()
	defer c.Unlock()

	return c.data, c.couponApplied
}

func (c *Controller) recordOrder(reference OrderReference, fingerprint string) {
	c.Lock()
	defer c.Unlock()

	c.order = &orderRecord{
		reference:   reference,
		fingerprint: fingerprint,
	}
	c.data.OrderID = reference.OrderID
	c.data.GatewayOrderID = reference.GatewayOrder.ID
}

func (c *Controller) existingOrder(fingerprint string) (OrderReference, bool) {
	c.Lock()
	defer c.Unlock()

	if c.order == nil || c.order.fingerprint != fingerprint {
		return OrderReference{}, false
	}
	return c.order.reference, true
}
