package payments

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const (
	msgInvalidCoupon       = "Invalid coupon code"
	msgCouponExpired       = "Coupon expired"
	msgCouponNotApplicable = "Coupon not applicable to this service"
)

// Service is a consulting engagement that can be bought.
type Service struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"`
}

type Coupon struct {
	Code               string     `yaml:"code"`
	DiscountAmount     int64      `yaml:"discountAmount"`
	DiscountPercentage float64    `yaml:"discountPercentage"`
	ValidFrom          *time.Time `yaml:"validFrom"`
	ValidUntil         *time.Time `yaml:"validUntil"`
	ServiceCodes       []string   `yaml:"serviceCodes"`
}

type Catalog struct {
	Services []Service `yaml:"services"`
	Coupons  []Coupon  `yaml:"coupons"`
}

// LoadCatalog reads the catalog from filename, or uses the built-in catalog when filename is empty.
func LoadCatalog(filename string) (*Catalog, error) {
	data := defaultCatalog
	if filename != "" {
		var err error
		data, err = os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("error reading catalog %s: %s", filename, err)
		}
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	catalog := Catalog{}
	err := yaml.Unmarshal(data, &catalog)
	if err != nil {
		return nil, fmt.Errorf("error parsing catalog: %s", err)
	}

	err = catalog.validate()
	if err != nil {
		return nil, err
	}

	return &catalog, nil
}

func (c *Catalog) validate() error {
	seen := map[string]bool{}
	for i, s := range c.Services {
		s.Code = strings.ToUpper(strings.TrimSpace(s.Code))
		if s.Code == "" || s.Name == "" || s.Currency == "" || s.Amount <= 0 {
			return fmt.Errorf("service %d is incomplete", i)
		}
		if seen[s.Code] {
			return fmt.Errorf("duplicate service %s", s.Code)
		}
		seen[s.Code] = true
		s.Currency = strings.ToUpper(s.Currency)
		c.Services[i] = s
	}

	seen = map[string]bool{}
	for i, cp := range c.Coupons {
		cp.Code = strings.ToUpper(strings.TrimSpace(cp.Code))
		if cp.Code == "" {
			return fmt.Errorf("coupon %d has no code", i)
		}
		if seen[cp.Code] {
			return fmt.Errorf("duplicate coupon %s", cp.Code)
		}
		seen[cp.Code] = true
		if cp.DiscountAmount < 0 || cp.DiscountPercentage < 0 || cp.DiscountPercentage > 100 {
			return fmt.Errorf("coupon %s has an invalid discount", cp.Code)
		}
		if (cp.DiscountAmount > 0) == (cp.DiscountPercentage > 0) {
			return fmt.Errorf("coupon %s needs either a discount amount or a percentage", cp.Code)
		}
		for j, code := range cp.ServiceCodes {
			cp.ServiceCodes[j] = strings.ToUpper(strings.TrimSpace(code))
		}
		c.Coupons[i] = cp
	}

	return nil
}

func (c *Catalog) Service(code string) (Service, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, s := range c.Services {
		if s.Code == code {
			return s, true
		}
	}
	return Service{}, false
}

// CheckCoupon tells whether code gives a discount on serviceCode at moment now.
func (c *Catalog) CheckCoupon(code string, serviceCode string, now time.Time) checkoutapi.CouponValidationResult {
	code = strings.ToUpper(strings.TrimSpace(code))
	serviceCode = strings.ToUpper(strings.TrimSpace(serviceCode))

	idx := slices.IndexFunc(c.Coupons, func(cp Coupon) bool { return cp.Code == code })
	if code == "" || idx < 0 {
		return checkoutapi.CouponValidationResult{Valid: false, Message: msgInvalidCoupon}
	}
	cp := c.Coupons[idx]

	if (cp.ValidFrom != nil && now.Before(*cp.ValidFrom)) || (cp.ValidUntil != nil && now.After(*cp.ValidUntil)) {
		return checkoutapi.CouponValidationResult{Valid: false, Message: msgCouponExpired}
	}
	if len(cp.ServiceCodes) > 0 && !slices.Contains(cp.ServiceCodes, serviceCode) {
		return checkoutapi.CouponValidationResult{Valid: false, Message: msgCouponNotApplicable}
	}

	return checkoutapi.CouponValidationResult{
		Valid:              true,
		DiscountAmount:     cp.DiscountAmount,
		DiscountPercentage: cp.DiscountPercentage,
	}
}
