package checkoutflow

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MarcGrol/consultcheckout/lib/myhttpclient"
	"github.com/MarcGrol/consultcheckout/lib/mylog"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

// Script is the collector script as it must be embedded in the page.
type Script struct {
	URL       string `json:"src"`
	Integrity string `json:"integrity"`
}

// ScriptLoader fetches the collector script at most once per process.
// Concurrent callers share one in-flight load. A failed load is not remembered.
type ScriptLoader struct {
	url    string
	sender myhttpclient.HTTPSender
	logger mylog.Logger
	group  singleflight.Group

	mu     sync.Mutex
	script *Script
}

var (
	sharedLoadersMu sync.Mutex
	sharedLoaders   = map[string]*ScriptLoader{}
)

// SharedScriptLoader returns the process wide loader for scriptURL, creating it on first use.
func SharedScriptLoader(scriptURL string, origin string, sender myhttpclient.HTTPSender) (*ScriptLoader, error) {
	sharedLoadersMu.Lock()
	defer sharedLoadersMu.Unlock()

	loader, found := sharedLoaders[scriptURL]
	if found {
		return loader, nil
	}

	loader, err := NewScriptLoader(scriptURL, origin, sender)
	if err != nil {
		return nil, err
	}
	sharedLoaders[scriptURL] = loader

	return loader, nil
}

func NewScriptLoader(scriptURL string, origin string, sender myhttpclient.HTTPSender) (*ScriptLoader, error) {
	err := checkOrigin(scriptURL, origin)
	if err != nil {
		return nil, err
	}
	return &ScriptLoader{
		url:    scriptURL,
		sender: sender,
		logger: mylog.New("scriptloader"),
	}, nil
}

// checkOrigin pins the script to a single https origin; plain http is only accepted on loopback.
func checkOrigin(scriptURL string, origin string) error {
	u, err := url.Parse(scriptURL)
	if err != nil {
		return fmt.Errorf("invalid script url %s: %s", scriptURL, err)
	}
	o, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid script origin %s: %s", origin, err)
	}
	if u.Scheme != o.Scheme || u.Host != o.Host {
		return fmt.Errorf("script url %s is not served from pinned origin %s", scriptURL, origin)
	}
	if u.Scheme != "https" && !(u.Scheme == "http" && isLoopback(u.Hostname())) {
		return fmt.Errorf("script url %s must use https", scriptURL)
	}
	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func (l *ScriptLoader) Load(c context.Context) (Script, error) {
	if script, ok := l.loaded(); ok {
		return script, nil
	}

	// the load outlives a single caller: others may be waiting for it
	result, err, _ := l.group.Do(l.url, func() (any, error) {
		if script, ok := l.loaded(); ok {
			return script, nil
		}
		return l.fetch(context.WithoutCancel(c))
	})
	if err != nil {
		return Script{}, err
	}

	return result.(Script), nil
}

// Preload loads the script ahead of the first checkout.
func (l *ScriptLoader) Preload(c context.Context) error {
	_, err := l.Load(c)
	return err
}

func (l *ScriptLoader) loaded() (Script, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.script == nil {
		return Script{}, false
	}
	return *l.script, true
}

func (l *ScriptLoader) fetch(c context.Context) (Script, error) {
	status, body, err := l.sender.Send(c, http.MethodGet, l.url, nil)
	if err != nil {
		l.logger.Log(c, l.url, mylog.SeverityError, "Error loading collector script: %s", err)
		return Script{}, fmt.Errorf("%w: %s", ErrGatewayUnavailable, err)
	}
	if status != http.StatusOK || len(body) == 0 {
		l.logger.Log(c, l.url, mylog.SeverityError, "Error loading collector script: status %d, %d bytes", status, len(body))
		return Script{}, fmt.Errorf("%w: script responded with status %d", ErrGatewayUnavailable, status)
	}

	digest := sha512.Sum384(body)
	script := Script{
		URL:       l.url,
		Integrity: "sha384-" + base64.StdEncoding.EncodeToString(digest[:]),
	}

	l.mu.Lock()
	l.script = &script
	l.mu.Unlock()

	l.logger.Log(c, l.url, mylog.SeverityInfo, "Loaded collector script (%d bytes)", len(body))

	return script, nil
}

// ModalOptions configures the collector. Handler and Modal.OnDismiss name the endpoints the page
// reports the gateway callbacks to.
type ModalOptions struct {
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	OrderID     string            `json:"order_id"`
	Handler     string            `json:"handler"`
	Prefill     *Prefill          `json:"prefill,omitempty"`
	Notes       map[string]string `json:"notes,omitempty"`
	Theme       *Theme            `json:"theme,omitempty"`
	Modal       ModalConfig       `json:"modal"`
}

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type Theme struct {
	Color string `json:"color,omitempty"`
}

type ModalConfig struct {
	OnDismiss string `json:"ondismiss"`
}

// Outcome is how a collector interaction ended: either a proof to verify, or a cancellation.
type Outcome struct {
	Cancelled bool
	Proof     checkoutapi.VerificationProof
}

//go:generate mockgen -source=gateway.go -package checkoutflow -destination collector_mock.go Collector
type Collector interface {
	// Open shows the collector and blocks until it resolves. Cancellation of c resolves as cancelled.
	Open(c context.Context, script Script, options ModalOptions) (Outcome, error)
}

type GatewayConfig struct {
	MerchantName string
	ThemeColor   string
	SuccessURL   string
	DismissURL   string
}

// Gateway loads the collector script and opens the collector for an order.
type Gateway struct {
	loader    *ScriptLoader
	collector Collector
	config    GatewayConfig
}

func NewGateway(loader *ScriptLoader, collector Collector, config GatewayConfig) *Gateway {
	return &Gateway{
		loader:    loader,
		collector: collector,
		config:    config,
	}
}

func (g *Gateway) Prepare(c context.Context) (Script, error) {
	return g.loader.Load(c)
}

func (g *Gateway) Collect(c context.Context, script Script, data checkoutapi.ApplicationFormData, ref OrderReference) (Outcome, error) {
	options := ModalOptions{
		Key:         ref.GatewayOrder.KeyID,
		Amount:      ref.GatewayOrder.Amount,
		Currency:    ref.GatewayOrder.Currency,
		Name:        g.config.MerchantName,
		Description: data.ServiceName,
		OrderID:     ref.GatewayOrder.ID,
		Handler:     g.config.SuccessURL,
		Prefill: &Prefill{
			Name:    strings.TrimSpace(data.FirstName + " " + data.LastName),
			Email:   data.Email,
			Contact: data.Phone,
		},
		Notes: map[string]string{
			"orderId":     ref.OrderID,
			"receipt":     ref.GatewayOrder.Receipt,
			"serviceCode": data.ServiceCode,
		},
		Modal: ModalConfig{
			OnDismiss: g.config.DismissURL,
		},
	}
	if g.config.ThemeColor != "" {
		options.Theme = &Theme{Color: g.config.ThemeColor}
	}

	return g.collector.Open(c, script, options)
}
